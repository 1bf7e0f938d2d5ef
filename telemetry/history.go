// Package telemetry records per-step history, run statistics, bookmarks and
// snapshots, and writes them to a run output directory.
package telemetry

import (
	"log/slog"

	"github.com/pthm-cable/wildfire/systems"
)

// Record is one row of the per-step history. Only burning, tree and empty
// cells are tracked.
type Record struct {
	Step    int `csv:"step" json:"step"`
	Burning int `csv:"burning" json:"burning"`
	Tree    int `csv:"tree" json:"tree"`
	Empty   int `csv:"empty" json:"empty"`
}

// LogValue implements slog.LogValuer for structured logging.
func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", r.Step),
		slog.Int("burning", r.Burning),
		slog.Int("tree", r.Tree),
		slog.Int("empty", r.Empty),
	)
}

// History is an append-only time series of step records. Ordering is the
// caller's responsibility; steps are stored exactly as given.
type History struct {
	records []Record
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{records: make([]Record, 0, 256)}
}

// Record appends one row built from counts.
func (h *History) Record(step int, counts systems.CellCounts) Record {
	r := Record{
		Step:    step,
		Burning: counts.Burning,
		Tree:    counts.Tree,
		Empty:   counts.Empty,
	}
	h.records = append(h.records, r)
	return r
}

// Len returns the number of records.
func (h *History) Len() int { return len(h.records) }

// Last returns the newest record.
func (h *History) Last() (Record, bool) {
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

// Records returns a copy of all rows in insertion order.
func (h *History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Since returns a copy of the rows appended after the first n.
func (h *History) Since(n int) []Record {
	if n < 0 {
		n = 0
	}
	if n >= len(h.records) {
		return nil
	}
	out := make([]Record, len(h.records)-n)
	copy(out, h.records[n:])
	return out
}

// Clear drops every row.
func (h *History) Clear() {
	h.records = h.records[:0]
}
