package telemetry

import (
	"log/slog"
	"slices"
	"time"
)

// Phase is one fixed stage of a forest step.
type Phase uint8

// Step phases in execution order.
const (
	PhaseNoise Phase = iota
	PhaseRule
	PhaseHumidity
	PhaseCensus
	PhaseWind

	numPhases
)

var phaseNames = [numPhases]string{
	PhaseNoise:    "noise",
	PhaseRule:     "rule",
	PhaseHumidity: "humidity",
	PhaseCensus:   "census",
	PhaseWind:     "wind",
}

func (p Phase) String() string {
	if p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// PhaseTimes holds one duration per phase.
type PhaseTimes [numPhases]time.Duration

// stepSample is the timing of one step.
type stepSample struct {
	total  time.Duration
	phases PhaseTimes
}

// PerfCollector times forest steps by phase over a rolling window of steps.
// Every step visits the same fixed phases, so samples are flat arrays and
// recording allocates nothing.
type PerfCollector struct {
	windowSize int
	cells      int // cells updated per step
	samples    []stepSample
	writeIndex int
	count      int

	current    stepSample
	stepStart  time.Time
	phaseStart time.Time
	inPhase    bool
	phase      Phase

	// Frame timing (for the streaming server)
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize steps of a
// grid with the given number of cells. windowSize < 1 falls back to 60.
func NewPerfCollector(windowSize, cells int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize: windowSize,
		cells:      cells,
		samples:    make([]stepSample, windowSize),
	}
}

// StartStep begins timing a new step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.current = stepSample{}
	p.inPhase = false
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
	p.inPhase = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase && p.phase < numPhases {
		p.current.phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.inPhase = false
}

// EndStep closes the running phase and stores the step in the window.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	p.closePhase(now)
	p.current.total = now.Sub(p.stepStart)

	p.samples[p.writeIndex] = p.current
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.count < p.windowSize {
		p.count++
	}
}

// RecordFrame records the interval between streamed frames.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats aggregates the steps in the current window.
type PerfStats struct {
	Steps int // samples in the window

	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration
	P90StepDuration time.Duration

	PhaseAvg PhaseTimes
	PhasePct [numPhases]float64 // share of the average step, 0-100

	StepsPerSecond float64
	CellsPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Steps: p.count, FrameDuration: p.frameDuration}
	if p.frameDuration > 0 {
		s.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.count == 0 {
		return s
	}

	window := p.samples[:p.count]
	totals := make([]float64, len(window))
	var sum time.Duration
	var phaseSum PhaseTimes
	for i, sample := range window {
		totals[i] = float64(sample.total)
		sum += sample.total
		for ph, d := range sample.phases {
			phaseSum[ph] += d
		}
	}
	slices.Sort(totals)

	n := time.Duration(p.count)
	s.AvgStepDuration = sum / n
	s.MinStepDuration = time.Duration(totals[0])
	s.MaxStepDuration = time.Duration(totals[len(totals)-1])
	s.P90StepDuration = time.Duration(Percentile(totals, 0.9))

	for ph := range phaseSum {
		s.PhaseAvg[ph] = phaseSum[ph] / n
		if s.AvgStepDuration > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgStepDuration) * 100
		}
	}

	if s.AvgStepDuration > 0 {
		s.StepsPerSecond = float64(time.Second) / float64(s.AvgStepDuration)
		s.CellsPerSecond = s.StepsPerSecond * float64(p.cells)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("p90_step_us", s.P90StepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
		slog.Float64("mcells_per_sec", s.CellsPerSecond/1e6),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd   int     `csv:"window_end"`
	AvgStepUS   int64   `csv:"avg_step_us"`
	MinStepUS   int64   `csv:"min_step_us"`
	MaxStepUS   int64   `csv:"max_step_us"`
	P90StepUS   int64   `csv:"p90_step_us"`
	StepsPerSec float64 `csv:"steps_per_sec"`
	CellsPerSec float64 `csv:"cells_per_sec"`
	FPS         float64 `csv:"fps"`
	NoisePct    float64 `csv:"noise_pct"`
	RulePct     float64 `csv:"rule_pct"`
	HumidityPct float64 `csv:"humidity_pct"`
	CensusPct   float64 `csv:"census_pct"`
	WindPct     float64 `csv:"wind_pct"`
}

// ToCSV flattens the stats for the window ending at step windowEnd.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:   windowEnd,
		AvgStepUS:   s.AvgStepDuration.Microseconds(),
		MinStepUS:   s.MinStepDuration.Microseconds(),
		MaxStepUS:   s.MaxStepDuration.Microseconds(),
		P90StepUS:   s.P90StepDuration.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
		CellsPerSec: s.CellsPerSecond,
		FPS:         s.FPS,
		NoisePct:    s.PhasePct[PhaseNoise],
		RulePct:     s.PhasePct[PhaseRule],
		HumidityPct: s.PhasePct[PhaseHumidity],
		CensusPct:   s.PhasePct[PhaseCensus],
		WindPct:     s.PhasePct[PhaseWind],
	}
}
