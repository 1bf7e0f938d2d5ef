package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/wildfire/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds one generation of forest state for offline inspection.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    int64  `json:"seed"`
	RunID   string `json:"run_id"`

	Step int `json:"step"`
	Size int `json:"size"`

	// Cells holds one state byte per cell, row-major.
	Cells    []byte             `json:"cells"`
	Humidity []float64          `json:"humidity"`
	Wind     systems.Vec2       `json:"wind"`
	Counts   systems.CellCounts `json:"counts"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// Grid rebuilds the cell grid stored in the snapshot.
func (s *Snapshot) Grid() (*systems.Grid, error) {
	if s.Size <= 0 || len(s.Cells) != s.Size*s.Size {
		return nil, fmt.Errorf("snapshot has %d cells for size %d", len(s.Cells), s.Size)
	}
	g := systems.NewGrid(s.Size)
	cells := g.Cells()
	for i, b := range s.Cells {
		c := systems.Cell(b)
		if !c.Valid() {
			return nil, fmt.Errorf("snapshot cell %d has invalid state %d", i, b)
		}
		cells[i] = c
	}
	return g, nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Step)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Step, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
