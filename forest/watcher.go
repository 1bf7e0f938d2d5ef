package forest

import (
	"log/slog"

	"github.com/pthm-cable/wildfire/telemetry"
)

// Watcher runs bookmark detection over tracked steps. Each bookmark is
// logged, appended to the run output and, when a snapshot directory is set,
// saved alongside the forest state that triggered it. A nil Watcher ignores
// every call.
type Watcher struct {
	detector    *telemetry.BookmarkDetector
	runID       string
	snapshotDir string
	output      *telemetry.OutputManager
	logger      *slog.Logger

	marks []telemetry.Bookmark
}

// NewWatcher sizes the detector from telemetry.bookmark_history.
func NewWatcher(sim *Simulation, runID string, output *telemetry.OutputManager, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := sim.Config()
	return &Watcher{
		detector:    telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory),
		runID:       runID,
		snapshotDir: cfg.Telemetry.SnapshotDir,
		output:      output,
		logger:      logger,
	}
}

// Observe checks the record just produced by sim.StepTracked.
func (w *Watcher) Observe(sim *Simulation, rec telemetry.Record) []telemetry.Bookmark {
	if w == nil {
		return nil
	}
	found := w.detector.Check(rec)
	for i := range found {
		bm := found[i]
		bm.LogBookmark(w.logger)
		if err := w.output.WriteBookmark(bm); err != nil {
			w.logger.Error("failed to write bookmark", "error", err)
		}
		if w.snapshotDir != "" {
			path, err := telemetry.SaveSnapshot(sim.Snapshot(w.runID, rec.Step, &bm), w.snapshotDir)
			if err != nil {
				w.logger.Error("failed to save snapshot", "error", err)
			} else {
				w.logger.Info("snapshot saved", "path", path)
			}
		}
	}
	w.marks = append(w.marks, found...)
	return found
}

// Reset clears detector state after the forest is redrawn. Bookmarks
// already found are kept.
func (w *Watcher) Reset() {
	if w == nil {
		return
	}
	w.detector.Reset()
}

// Bookmarks returns a copy of every bookmark found so far.
func (w *Watcher) Bookmarks() []telemetry.Bookmark {
	if w == nil {
		return nil
	}
	out := make([]telemetry.Bookmark, len(w.marks))
	copy(out, w.marks)
	return out
}
