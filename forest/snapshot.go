package forest

import (
	"fmt"
	"math"

	"github.com/pthm-cable/wildfire/systems"
	"github.com/pthm-cable/wildfire/telemetry"
)

// Snapshot captures the current generation. bm may be nil.
func (s *Simulation) Snapshot(runID string, step int, bm *telemetry.Bookmark) *telemetry.Snapshot {
	cells := s.grid.Cells()
	raw := make([]byte, len(cells))
	for i, c := range cells {
		raw[i] = byte(c)
	}
	return &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		Seed:     s.seed,
		RunID:    runID,
		Step:     step,
		Size:     s.cfg.Forest.Size,
		Cells:    raw,
		Humidity: s.Humidity(),
		Wind:     s.wind.Dir(),
		Counts:   s.counts,
		Bookmark: bm,
	}
}

// Restore replaces the grid, humidity and wind with a snapshot's. The
// snapshot must match the configured size. History and the RNG stream are
// left as they are.
func (s *Simulation) Restore(snap *telemetry.Snapshot) error {
	if snap.Size != s.cfg.Forest.Size {
		return fmt.Errorf("forest: snapshot size %d, want %d", snap.Size, s.cfg.Forest.Size)
	}
	if len(snap.Humidity) != len(s.humidity) {
		return fmt.Errorf("forest: snapshot has %d humidity values, want %d", len(snap.Humidity), len(s.humidity))
	}
	for i, h := range snap.Humidity {
		if math.IsNaN(h) || h < systems.HumidityMin || h > systems.HumidityMax {
			return fmt.Errorf("forest: snapshot humidity %d is %v, want [%g, %g]", i, h, systems.HumidityMin, systems.HumidityMax)
		}
	}
	g, err := snap.Grid()
	if err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	wind, err := systems.NewWindState(snap.Wind.X, snap.Wind.Y)
	if err != nil {
		return fmt.Errorf("forest: %w", err)
	}

	copy(s.grid.Cells(), g.Cells())
	copy(s.humidity, snap.Humidity)
	s.wind = wind
	s.counts = s.grid.Count()
	s.generation = snap.Step
	return nil
}
