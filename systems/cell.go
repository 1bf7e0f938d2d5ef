// Package systems holds the forest kernel: cell states, the grid, random
// fields, wind and the per-cell transition rule.
package systems

import (
	"fmt"
	"log/slog"
)

// Cell is the state of one grid cell.
type Cell uint8

const (
	Empty Cell = iota
	Tree
	Burning
	Lightning
	Ash
	Water

	numCells
)

var cellNames = [numCells]string{
	Empty:     "empty",
	Tree:      "tree",
	Burning:   "burning",
	Lightning: "lightning",
	Ash:       "ash",
	Water:     "water",
}

// Valid reports whether c is one of the declared states.
func (c Cell) Valid() bool { return c < numCells }

func (c Cell) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Cell(%d)", uint8(c))
	}
	return cellNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Cell) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid cell state %d", uint8(c))
	}
	return []byte(cellNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cell) UnmarshalText(text []byte) error {
	s := string(text)
	for i, name := range cellNames {
		if name == s {
			*c = Cell(i)
			return nil
		}
	}
	return fmt.Errorf("unknown cell state %q", s)
}

// CellCounts holds the number of cells in each state.
type CellCounts struct {
	Empty     int `json:"empty"`
	Tree      int `json:"tree"`
	Burning   int `json:"burning"`
	Lightning int `json:"lightning"`
	Ash       int `json:"ash"`
	Water     int `json:"water"`
}

// LogValue implements slog.LogValuer for structured logging.
func (cc CellCounts) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("empty", cc.Empty),
		slog.Int("tree", cc.Tree),
		slog.Int("burning", cc.Burning),
		slog.Int("lightning", cc.Lightning),
		slog.Int("ash", cc.Ash),
		slog.Int("water", cc.Water),
	)
}

// Add increments the counter for c.
func (cc *CellCounts) Add(c Cell) {
	switch c {
	case Empty:
		cc.Empty++
	case Tree:
		cc.Tree++
	case Burning:
		cc.Burning++
	case Lightning:
		cc.Lightning++
	case Ash:
		cc.Ash++
	case Water:
		cc.Water++
	}
}

// Of returns the count for state c.
func (cc CellCounts) Of(c Cell) int {
	switch c {
	case Empty:
		return cc.Empty
	case Tree:
		return cc.Tree
	case Burning:
		return cc.Burning
	case Lightning:
		return cc.Lightning
	case Ash:
		return cc.Ash
	case Water:
		return cc.Water
	}
	return 0
}

// Total is the sum over all states.
func (cc CellCounts) Total() int {
	return cc.Empty + cc.Tree + cc.Burning + cc.Lightning + cc.Ash + cc.Water
}
