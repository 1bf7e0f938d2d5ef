package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/wildfire/config"
	"github.com/pthm-cable/wildfire/forest"
	"github.com/pthm-cable/wildfire/telemetry"
)

// Penalties added to the target error.
const (
	// Charged when the forest never burns after warmup.
	noFirePenalty = 1.0
	// Charged per unit of tree fraction below minTreeFraction.
	deforestPenalty = 4.0
	minTreeFraction = 0.05
)

// FitnessEvaluator runs headless simulations and scores how close their
// mean burning fraction lands to a target.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	seeds      []int64
	steps      int
	warmup     int
	target     float64
	logger     *slog.Logger

	mu   sync.Mutex
	last telemetry.Summary // averaged summary from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, seeds []int64, steps, warmup int, target float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		baseConfig: baseCfg,
		seeds:      seeds,
		steps:      steps,
		warmup:     warmup,
		target:     target,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// LastSummary returns the seed-averaged summary from the most recent evaluation.
func (fe *FitnessEvaluator) LastSummary() telemetry.Summary {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	summary telemetry.Summary
	err     error
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	// Seeds already run in parallel
	cfg.Parallel.Workers = 1
	cfg.Telemetry.LogEvery = 0

	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			summary, err := fe.runSimulation(cfg, s)
			results[idx] = seedResult{
				fitness: fe.computeFitness(summary),
				summary: summary,
				err:     err,
			}
		}(i, seed)
	}
	wg.Wait()

	var total float64
	var avg telemetry.Summary
	for _, r := range results {
		if r.err != nil {
			slog.Error("evaluation failed", "error", r.err)
			return math.Inf(1)
		}
		total += r.fitness
		avg.BurningFraction += r.summary.BurningFraction
		avg.TreeFraction += r.summary.TreeFraction
		avg.EmptyFraction += r.summary.EmptyFraction
		avg.BurningPeak = max(avg.BurningPeak, r.summary.BurningPeak)
	}
	n := float64(len(results))
	avg.Steps = fe.steps - fe.warmup
	avg.BurningFraction /= n
	avg.TreeFraction /= n
	avg.EmptyFraction /= n

	fe.mu.Lock()
	fe.last = avg
	fe.mu.Unlock()

	return total / n
}

// runSimulation steps one seed and summarizes the tracked steps after warmup.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) (telemetry.Summary, error) {
	sim, err := forest.New(cfg, forest.Options{Seed: seed, Logger: fe.logger})
	if err != nil {
		return telemetry.Summary{}, err
	}
	defer sim.Close()

	for step := 1; step <= fe.steps; step++ {
		if step <= fe.warmup {
			sim.Step()
			continue
		}
		sim.StepTracked(step)
	}
	return sim.Summary(), nil
}

// computeFitness is the relative distance to the target burning fraction,
// plus penalties for runs that never burn or burn the forest away.
func (fe *FitnessEvaluator) computeFitness(s telemetry.Summary) float64 {
	fitness := math.Abs(s.BurningFraction-fe.target) / fe.target
	if s.BurningPeak == 0 {
		fitness += noFirePenalty
	}
	if s.TreeFraction < minTreeFraction {
		fitness += deforestPenalty * (minTreeFraction - s.TreeFraction)
	}
	return fitness
}

func (fe *FitnessEvaluator) copyConfig() *config.Config {
	c := *fe.baseConfig
	return &c
}
