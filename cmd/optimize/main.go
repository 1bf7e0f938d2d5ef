// Command optimize searches fire parameters with CMA-ES so that a forest
// settles at a target mean burning fraction.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/wildfire/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// EvalRow is one line of optimize_log.csv.
type EvalRow struct {
	Eval            int     `csv:"eval"`
	Fitness         float64 `csv:"fitness"`
	BurningFraction float64 `csv:"burning_fraction"`
	TreeFraction    float64 `csv:"tree_fraction"`
	SpreadProb      float64 `csv:"spread_prob"`
	GrowthProb      float64 `csv:"growth_prob"`
	LightningProb   float64 `csv:"lightning_prob"`
}

// evalLog appends EvalRows to a CSV file, header first.
type evalLog struct {
	f             *os.File
	headerWritten bool
}

func (l *evalLog) write(row EvalRow) error {
	rows := []EvalRow{row}
	if !l.headerWritten {
		l.headerWritten = true
		return gocsv.Marshal(rows, l.f)
	}
	return gocsv.MarshalWithoutHeaders(rows, l.f)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cmd := &cli.Command{
		Name:  "optimize",
		Usage: "calibrate spread, growth and lightning probabilities with CMA-ES",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "base config YAML file (empty = use defaults)"},
			&cli.StringFlag{Name: "output", Usage: "output directory for results", Required: true},
			&cli.IntFlag{Name: "size", Value: 64, Usage: "grid side length used during evaluation"},
			&cli.IntFlag{Name: "steps", Value: 2000, Usage: "steps per evaluation run"},
			&cli.IntFlag{Name: "warmup", Value: 500, Usage: "untracked steps before scoring"},
			&cli.IntFlag{Name: "seeds", Value: 3, Usage: "number of seeds per evaluation"},
			&cli.IntFlag{Name: "max-evals", Value: 200, Usage: "maximum number of evaluations"},
			&cli.IntFlag{Name: "population", Usage: "CMA-ES population size (0 = auto)"},
			&cli.FloatFlag{Name: "target", Value: 0.01, Usage: "target mean burning fraction"},
		},
		Action: runOptimize,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

func runOptimize(ctx context.Context, cmd *cli.Command) error {
	outputDir := cmd.String("output")
	steps := cmd.Int("steps")
	warmup := cmd.Int("warmup")
	maxEvals := cmd.Int("max-evals")
	target := cmd.Float("target")

	if target <= 0 || target >= 1 {
		return errors.New("--target must be in (0, 1)")
	}
	if warmup < 0 || warmup >= steps {
		return errors.New("--warmup must be in [0, steps)")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	baseCfg.Forest.Size = cmd.Int("size")
	baseCfg.ComputeDerived()
	if err := baseCfg.Validate(); err != nil {
		return err
	}

	params := NewParamVector()

	evalSeeds := make([]int64, cmd.Int("seeds"))
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, baseCfg, evalSeeds, steps, warmup, target)

	dim := params.Dim()
	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(baseCfg)))

	popSize := cmd.Int("population")
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Concurrent:      0, // Sequential evaluation
	}

	logFile, err := os.Create(filepath.Join(outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("creating optimize_log.csv: %w", err)
	}
	defer logFile.Close()
	evals := &evalLog{f: logFile}

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			summary := evaluator.LastSummary()
			row := EvalRow{
				Eval:            evalCount,
				Fitness:         fitness,
				BurningFraction: summary.BurningFraction,
				TreeFraction:    summary.TreeFraction,
				SpreadProb:      clamped[0],
				GrowthProb:      clamped[1],
				LightningProb:   clamped[2],
			}
			if err := evals.write(row); err != nil {
				slog.Error("failed to write eval log", "error", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(maxEvals-evalCount) * avgPerEval

			slog.Info("eval",
				"n", evalCount,
				"max", maxEvals,
				"fitness", fitness,
				"burning_fraction", summary.BurningFraction,
				"best", bestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	slog.Info("starting CMA-ES optimization",
		"params", dim,
		"population", popSize,
		"max_evals", maxEvals,
		"seeds", len(evalSeeds),
		"steps", steps,
		"target", target,
	)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	// Best params may come from any evaluation, not just the final one
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return errors.New("no evaluations completed")
	}

	attrs := []any{"evals", evalCount, "duration", formatDuration(time.Since(startTime)), "best_fitness", bestFitness}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, bestParams[i])
	}
	slog.Info("optimization complete", attrs...)

	bestCfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		return err
	}
	slog.Info("best config saved", "path", configOutPath)
	return nil
}
