package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkOutbreak    BookmarkType = "outbreak"
	BookmarkBurnout     BookmarkType = "burnout"
	BookmarkForestCrash BookmarkType = "forest_crash"
	BookmarkRegrowth    BookmarkType = "regrowth"
	BookmarkSteadyState BookmarkType = "steady_state"
)

// Detection thresholds.
const (
	outbreakFactor   = 2.0  // burning vs rolling average
	outbreakMin      = 10   // burning cells
	crashDrop        = 0.30 // fraction below the recent tree peak
	crashMinCells    = 10
	regrowthFactor   = 1.5 // tree count vs the recent minimum
	regrowthMinCells = 10
	steadyWindow     = 20   // records inspected for steady state
	steadyMaxCV2     = 0.01 // squared coefficient of variation of tree count
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Step        int          `csv:"step" json:"step"`
	Description string       `csv:"description" json:"description"`
}

// LogValue implements slog.LogValuer for structured logging.
func (b Bookmark) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(b.Type)),
		slog.Int("step", b.Step),
		slog.String("description", b.Description),
	)
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bookmark", "bookmark", b)
}

// BookmarkDetector watches the per-step history for moments worth
// revisiting: fire outbreaks, burnouts, forest crashes and recoveries.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []Record
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentTreePeak int  // peak tree count since the last crash
	recentTreeMin  int  // minimum tree count since the last regrowth
	haveTreeMin    bool // recentTreeMin has been seeded
	wasBurning     bool // previous record had burning cells
	steady         bool // steady state already reported for this stretch
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < steadyWindow {
		historySize = steadyWindow
	}
	return &BookmarkDetector{
		history:     make([]Record, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest record and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(r Record) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkOutbreak(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkBurnout(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkForestCrash(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkRegrowth(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(r)

	// Steady state looks at the window including this record.
	if b := bd.checkSteadyState(r); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.wasBurning = r.Burning > 0
	if r.Tree > bd.recentTreePeak {
		bd.recentTreePeak = r.Tree
	}
	if !bd.haveTreeMin || r.Tree < bd.recentTreeMin {
		bd.recentTreeMin = r.Tree
		bd.haveTreeMin = true
	}

	return bookmarks
}

// Reset forgets all history, as after a forest reset.
func (bd *BookmarkDetector) Reset() {
	*bd = BookmarkDetector{
		history:     make([]Record, bd.historySize),
		historySize: bd.historySize,
	}
}

func (bd *BookmarkDetector) addToHistory(r Record) {
	bd.history[bd.historyIdx] = r
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns the buffered records oldest first.
func (bd *BookmarkDetector) getHistory() []Record {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]Record, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkOutbreak(r Record) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Burning
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(r.Burning) > avg*outbreakFactor && r.Burning >= outbreakMin {
		return &Bookmark{
			Type:        BookmarkOutbreak,
			Step:        r.Step,
			Description: fmt.Sprintf("%d burning cells is %.1fx average (%.1f)", r.Burning, float64(r.Burning)/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkBurnout(r Record) *Bookmark {
	if !bd.wasBurning || r.Burning > 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkBurnout,
		Step:        r.Step,
		Description: fmt.Sprintf("Fire burned out with %d trees standing", r.Tree),
	}
}

func (bd *BookmarkDetector) checkForestCrash(r Record) *Bookmark {
	if bd.recentTreePeak == 0 {
		return nil
	}

	drop := 1.0 - float64(r.Tree)/float64(bd.recentTreePeak)
	if drop > crashDrop && r.Tree < bd.recentTreePeak-crashMinCells {
		oldPeak := bd.recentTreePeak
		bd.recentTreePeak = r.Tree

		return &Bookmark{
			Type:        BookmarkForestCrash,
			Step:        r.Step,
			Description: fmt.Sprintf("Trees fell %.0f%% from peak %d to %d", drop*100, oldPeak, r.Tree),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkRegrowth(r Record) *Bookmark {
	if !bd.haveTreeMin {
		return nil
	}

	threshold := float64(bd.recentTreeMin) * regrowthFactor
	if float64(r.Tree) >= threshold && r.Tree >= bd.recentTreeMin+regrowthMinCells {
		oldMin := bd.recentTreeMin
		bd.recentTreeMin = r.Tree

		return &Bookmark{
			Type:        BookmarkRegrowth,
			Step:        r.Step,
			Description: fmt.Sprintf("Trees recovered from %d to %d", oldMin, r.Tree),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSteadyState(r Record) *Bookmark {
	history := bd.getHistory()
	if len(history) < steadyWindow || r.Tree == 0 {
		bd.steady = false
		return nil
	}

	recent := history[len(history)-steadyWindow:]
	var sum float64
	for _, h := range recent {
		sum += float64(h.Tree)
	}
	mean := sum / steadyWindow

	var variance float64
	for _, h := range recent {
		d := float64(h.Tree) - mean
		variance += d * d
	}
	variance /= steadyWindow

	cv2 := variance / (mean * mean)
	if cv2 >= steadyMaxCV2 {
		bd.steady = false
		return nil
	}
	if bd.steady {
		return nil
	}
	bd.steady = true

	return &Bookmark{
		Type:        BookmarkSteadyState,
		Step:        r.Step,
		Description: fmt.Sprintf("Tree count steady near %.0f over %d steps", mean, steadyWindow),
	}
}
