// Package forest runs the probabilistic forest-fire automaton: a square grid
// of cells advanced one generation at a time under wind and humidity.
package forest

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/wildfire/config"
	"github.com/pthm-cable/wildfire/systems"
	"github.com/pthm-cable/wildfire/telemetry"
)

// Options are construction-time knobs that are not part of the config file.
type Options struct {
	Seed   int64
	Logger *slog.Logger             // nil uses slog.Default()
	Perf   *telemetry.PerfCollector // nil creates one sized by telemetry.perf_window
}

// Simulation owns the grid, humidity field, wind and RNG of one forest.
// It is not safe for concurrent use.
type Simulation struct {
	cfg    config.Config
	seed   int64
	params systems.RuleParams
	logger *slog.Logger
	perf   *telemetry.PerfCollector

	rng  *systems.RNG
	wind *systems.WindState

	grid     *systems.Grid
	next     *systems.Grid
	humidity []float64
	delta    []float64 // nil when humidity is not coupled
	noise    []float64

	counts     systems.CellCounts
	generation int
	history    *telemetry.History

	// Frozen views handed to the row pool for the current step
	in   systems.StepInput
	out  systems.StepOutput
	pool *rowPool
}

// New validates cfg and builds a freshly reset forest.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	c := *cfg
	c.ComputeDerived()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("forest: %w", err)
	}

	wind, err := systems.NewWindState(c.Wind.X, c.Wind.Y)
	if err != nil {
		return nil, fmt.Errorf("forest: %w: %w", config.ErrInvalid, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perf := opts.Perf
	if perf == nil {
		perf = telemetry.NewPerfCollector(c.Telemetry.PerfWindow, c.Derived.Cells)
	}

	n := c.Forest.Size
	s := &Simulation{
		cfg:  c,
		seed: opts.Seed,
		params: systems.RuleParams{
			LightningProb:      c.Forest.LightningProb,
			GrowthProb:         c.Forest.GrowthProb,
			SpreadProb:         c.Forest.SpreadProb,
			Radius:             c.Forest.Radius,
			HumidityChange:     c.Humidity.Change,
			HumidityChangeFire: c.Humidity.ChangeFire,
		},
		logger:  logger,
		perf:    perf,
		rng:     systems.NewRNG(opts.Seed),
		wind:    wind,
		grid:    systems.NewGrid(n),
		next:    systems.NewGrid(n),
		noise:   make([]float64, systems.DrawsPerCell*n*n),
		history: telemetry.NewHistory(),
	}
	if s.params.Coupled() {
		s.delta = make([]float64, n*n)
	}
	s.pool = newRowPool(c.Parallel.Workers, s.applyRows)

	s.reset()

	logger.Info("forest created",
		"size", n,
		"seed", opts.Seed,
		"workers", s.pool.numWorkers,
		"coupled", s.params.Coupled(),
		"water", c.Derived.WaterEnabled,
		"counts", s.counts,
	)
	return s, nil
}

// fieldParams converts a config section to generator parameters.
func fieldParams(f config.FieldConfig) systems.FieldParams {
	return systems.FieldParams{
		MinClusters:  f.MinClusters,
		MaxClusters:  f.MaxClusters,
		SigmaMin:     f.SigmaMin,
		SigmaMax:     f.SigmaMax,
		NoiseScale:   f.NoiseScale,
		AmplitudeMin: f.AmplitudeMin,
		AmplitudeMax: f.AmplitudeMax,
	}
}

// reset draws a new humidity field and tree layout from the running RNG.
func (s *Simulation) reset() {
	n := s.cfg.Forest.Size

	hf := systems.GenerateClusterField(s.rng, n, fieldParams(s.cfg.HumidityField))
	s.humidity = systems.HumidityFromField(hf.Values)

	tf := systems.GenerateClusterField(s.rng, n, fieldParams(s.cfg.TreeField.FieldConfig))
	s.grid.Fill(systems.Empty)
	systems.PlaceTrees(s.rng, s.grid, tf.Values, s.cfg.Forest.TreeDensity, s.cfg.TreeField.Jitter)
	if s.cfg.Derived.WaterEnabled {
		systems.FloodWater(s.grid, s.humidity, s.cfg.Humidity.WaterThreshold)
	}

	s.counts = s.grid.Count()
	s.generation = 0
	s.history.Clear()
}

// Reset redraws the forest. Configuration and the current wind heading are
// kept; the RNG stream continues rather than restarting.
func (s *Simulation) Reset() {
	s.reset()
	s.logger.Info("forest reset", "counts", s.counts, "wind_x", s.wind.Dir().X, "wind_y", s.wind.Dir().Y)
}

// applyRows is the row-pool callback.
func (s *Simulation) applyRows(start, end int) {
	s.params.Apply(&s.in, &s.out, start, end)
}

// Step advances one generation without recording history.
func (s *Simulation) Step() {
	s.perf.StartStep()

	s.perf.StartPhase(telemetry.PhaseNoise)
	s.rng.Fill(s.noise)

	s.perf.StartPhase(telemetry.PhaseRule)
	s.in = systems.StepInput{Grid: s.grid, Humidity: s.humidity, Wind: s.wind.Dir(), Noise: s.noise}
	s.out = systems.StepOutput{Grid: s.next, HumidityDelta: s.delta}
	s.pool.forRows(s.cfg.Forest.Size, s.cfg.Derived.Cells)
	s.grid, s.next = s.next, s.grid

	if s.delta != nil {
		s.perf.StartPhase(telemetry.PhaseHumidity)
		systems.ApplyHumidity(s.humidity, s.delta, systems.HumidityMin, systems.HumidityMax)
	}

	s.perf.StartPhase(telemetry.PhaseCensus)
	s.counts = s.grid.Count()

	s.perf.StartPhase(telemetry.PhaseWind)
	if s.cfg.Derived.WindChange > 0 {
		s.wind.Drift(s.rng, s.cfg.Derived.WindChange)
	}

	s.perf.EndStep()
	s.generation++

	if every := s.cfg.Telemetry.LogEvery; every > 0 && s.generation%every == 0 {
		s.logger.Info("stats",
			"generation", s.generation,
			"counts", s.counts,
			"perf", s.perf.Stats(),
		)
	}
}

// StepTracked advances one generation and appends its counts to the history
// under the caller's step id.
func (s *Simulation) StepTracked(step int) telemetry.Record {
	s.Step()
	return s.history.Record(step, s.counts)
}

// Size returns the grid side length.
func (s *Simulation) Size() int { return s.cfg.Forest.Size }

// Grid returns a copy of the current generation.
func (s *Simulation) Grid() *systems.Grid { return s.grid.Clone() }

// Cells returns the current generation in row-major order. The slice is
// owned by the simulation and valid until the next Step or Reset.
func (s *Simulation) Cells() []systems.Cell { return s.grid.Cells() }

// Humidity returns a copy of the humidity field.
func (s *Simulation) Humidity() []float64 {
	out := make([]float64, len(s.humidity))
	copy(out, s.humidity)
	return out
}

// Wind returns the current unit wind heading.
func (s *Simulation) Wind() systems.Vec2 { return s.wind.Dir() }

// History returns a copy of the recorded steps.
func (s *Simulation) History() []telemetry.Record { return s.history.Records() }

// HistorySince returns the records appended after the first n.
func (s *Simulation) HistorySince(n int) []telemetry.Record { return s.history.Since(n) }

// Summary aggregates the recorded history.
func (s *Simulation) Summary() telemetry.Summary {
	return telemetry.Summarize(s.history.Records(), s.cfg.Derived.Cells)
}

// Counts returns the census of the current generation.
func (s *Simulation) Counts() systems.CellCounts { return s.counts }

// Generation returns the number of steps since the last reset.
func (s *Simulation) Generation() int { return s.generation }

// Perf returns the step timing collector.
func (s *Simulation) Perf() *telemetry.PerfCollector { return s.perf }

// Config returns a copy of the active configuration.
func (s *Simulation) Config() config.Config { return s.cfg }

// Close stops the worker pool. The simulation must not be stepped afterwards.
func (s *Simulation) Close() {
	s.pool.stopWorkers()
}
