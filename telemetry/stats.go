package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a history into run-level statistics.
type Summary struct {
	Steps int `json:"steps"`

	BurningMean float64 `json:"burning_mean"`
	BurningStd  float64 `json:"burning_std"`
	BurningP50  float64 `json:"burning_p50"`
	BurningP90  float64 `json:"burning_p90"`
	BurningPeak int     `json:"burning_peak"`
	PeakStep    int     `json:"peak_step"`

	// Fractions of the grid, averaged over the run
	TreeFraction    float64 `json:"tree_fraction"`
	BurningFraction float64 `json:"burning_fraction"`
	EmptyFraction   float64 `json:"empty_fraction"`
}

// Percentile calculates the p-th percentile of a sorted slice with linear
// interpolation. p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	n := len(sorted)
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summarize computes run statistics over records for a grid of cells cells.
func Summarize(records []Record, cells int) Summary {
	s := Summary{Steps: len(records)}
	if len(records) == 0 {
		return s
	}

	burning := make([]float64, len(records))
	tree := make([]float64, len(records))
	empty := make([]float64, len(records))
	for i, r := range records {
		burning[i] = float64(r.Burning)
		tree[i] = float64(r.Tree)
		empty[i] = float64(r.Empty)
		if r.Burning > s.BurningPeak || i == 0 {
			s.BurningPeak = r.Burning
			s.PeakStep = r.Step
		}
	}

	s.BurningMean, s.BurningStd = stat.PopMeanStdDev(burning, nil)

	sorted := make([]float64, len(burning))
	copy(sorted, burning)
	sort.Float64s(sorted)
	s.BurningP50 = Percentile(sorted, 0.5)
	s.BurningP90 = Percentile(sorted, 0.9)

	if cells > 0 {
		n := float64(cells)
		s.BurningFraction = s.BurningMean / n
		s.TreeFraction = stat.Mean(tree, nil) / n
		s.EmptyFraction = stat.Mean(empty, nil) / n
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("steps", s.Steps),
		slog.Float64("burning_mean", s.BurningMean),
		slog.Float64("burning_std", s.BurningStd),
		slog.Float64("burning_p50", s.BurningP50),
		slog.Float64("burning_p90", s.BurningP90),
		slog.Int("burning_peak", s.BurningPeak),
		slog.Int("peak_step", s.PeakStep),
		slog.Float64("tree_fraction", s.TreeFraction),
		slog.Float64("burning_fraction", s.BurningFraction),
		slog.Float64("empty_fraction", s.EmptyFraction),
	)
}
