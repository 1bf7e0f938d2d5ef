package forest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/wildfire/systems"
	"github.com/pthm-cable/wildfire/telemetry"
)

func TestWatcherSavesSnapshots(t *testing.T) {
	cfg := testConfig(16)
	cfg.Forest.LightningProb = 0
	cfg.Forest.GrowthProb = 0
	cfg.Telemetry.SnapshotDir = t.TempDir()
	s := newSim(t, cfg, 3)

	// A single burning cell that burns out next step.
	s.grid.Fill(systems.Empty)
	s.grid.Set(8, 8, systems.Burning)
	s.counts = s.grid.Count()

	w := NewWatcher(s, "run-w", nil, quietLogger())
	w.Observe(s, telemetry.Record{Step: 0, Burning: 1})
	got := w.Observe(s, s.StepTracked(1))

	if len(got) != 1 || got[0].Type != telemetry.BookmarkBurnout {
		t.Fatalf("bookmarks = %+v", got)
	}
	if len(w.Bookmarks()) != 1 {
		t.Errorf("Bookmarks() = %+v", w.Bookmarks())
	}

	path := filepath.Join(cfg.Telemetry.SnapshotDir, "snapshot_1_burnout.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if snap.RunID != "run-w" || snap.Counts.Burning != 0 {
		t.Errorf("snapshot = run %q counts %v", snap.RunID, snap.Counts)
	}
}

func TestNilWatcher(t *testing.T) {
	var w *Watcher
	if got := w.Observe(nil, telemetry.Record{}); got != nil {
		t.Errorf("Observe = %v", got)
	}
	w.Reset()
	if w.Bookmarks() != nil {
		t.Error("expected nil bookmarks")
	}
}
