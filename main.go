package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/wildfire/api"
	"github.com/pthm-cable/wildfire/config"
	"github.com/pthm-cable/wildfire/forest"
	"github.com/pthm-cable/wildfire/storage"
	"github.com/pthm-cable/wildfire/telemetry"
	"github.com/pthm-cable/wildfire/transport/websocket"
)

func main() {
	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cmd := newApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("wildfire failed", "error", err)
		os.Exit(1)
	}
}

// newApp builds the wildfire command tree.
func newApp() *cli.Command {
	return &cli.Command{
		Name:  "wildfire",
		Usage: "probabilistic forest-fire simulation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config.yaml (empty = use defaults)"},
			&cli.Int64Flag{Name: "seed", Usage: "RNG seed (0 = time-based)"},
			&cli.IntFlag{Name: "workers", Value: -1, Usage: "cell-pass workers (-1 = use config, 0 = GOMAXPROCS)"},
			&cli.StringFlag{Name: "output-dir", Usage: "root directory for per-run CSV logs and config snapshot"},
			&cli.StringFlag{Name: "store", Usage: "run store backend: none or sqlite (memory keeps runs only until the process exits)"},
			&cli.StringFlag{Name: "db", Value: "wildfire.db", Usage: "sqlite database path for --store sqlite"},
			&cli.StringFlag{Name: "snapshot-dir", Usage: "save a forest snapshot on every bookmark (empty = use config)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "step a forest headlessly and record its history",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1000, Usage: "number of tracked steps"},
					&cli.IntFlag{Name: "log-every", Value: -1, Usage: "steps between stats lines (-1 = use config, 0 = never)"},
				},
				Action: runHeadless,
			},
			{
				Name:  "serve",
				Usage: "step a forest in real time and stream frames over websocket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (empty = use config)"},
					&cli.IntFlag{Name: "fps", Usage: "frames per second (0 = use config)"},
				},
				Action: serve,
			},
		},
	}
}

// setup is shared by run and serve: config, seed, run id and output.
type setup struct {
	cfg    *config.Config
	seed   int64
	runID  string
	output *telemetry.OutputManager
	store  storage.Store
}

// newSetup loads the config and applies flag overrides. apply runs
// subcommand-specific overrides before config.yaml is written.
func newSetup(ctx context.Context, cmd *cli.Command, apply func(*config.Config)) (*setup, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if w := cmd.Int("workers"); w >= 0 {
		cfg.Parallel.Workers = w
	}
	if dir := cmd.String("snapshot-dir"); dir != "" {
		cfg.Telemetry.SnapshotDir = dir
	}
	if apply != nil {
		apply(cfg)
	}
	cfg.ComputeDerived()

	seed := cmd.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	om, err := telemetry.NewOutputManager(cmd.String("output-dir"))
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, err
	}

	runID := om.RunID()
	if runID == "" {
		runID = uuid.NewString()
	}

	store, err := storage.NewStore(cmd.String("store"), cmd.String("db"))
	if err != nil {
		om.Close()
		return nil, err
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			om.Close()
			return nil, fmt.Errorf("opening run store: %w", err)
		}
	}

	return &setup{cfg: cfg, seed: seed, runID: runID, output: om, store: store}, nil
}

func (s *setup) close() {
	if err := s.output.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("failed to close run store", "error", err)
		}
	}
}

// persist saves the finished run to the store, if one is configured.
func (s *setup) persist(ctx context.Context, sim *forest.Simulation, steps int) error {
	if s.store == nil {
		return nil
	}
	cfgYAML, err := yaml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	run := storage.Run{
		ID:        s.runID,
		Seed:      s.seed,
		Size:      sim.Size(),
		Steps:     steps,
		CreatedAt: time.Now().UTC(),
		Config:    cfgYAML,
		Summary:   sim.Summary(),
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	if err := s.store.SaveHistory(ctx, s.runID, sim.History()); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

func runHeadless(ctx context.Context, cmd *cli.Command) error {
	s, err := newSetup(ctx, cmd, func(cfg *config.Config) {
		if every := cmd.Int("log-every"); every >= 0 {
			cfg.Telemetry.LogEvery = every
		}
	})
	if err != nil {
		return err
	}
	defer s.close()

	logger := slog.Default().With("run_id", s.runID)
	sim, err := forest.New(s.cfg, forest.Options{Seed: s.seed, Logger: logger})
	if err != nil {
		return err
	}
	defer sim.Close()
	watch := forest.NewWatcher(sim, s.runID, s.output, logger)

	steps := cmd.Int("steps")
	window := max(s.cfg.Telemetry.PerfWindow, 1)

	slog.Info("starting headless run",
		"run_id", s.runID,
		"seed", s.seed,
		"steps", steps,
		"output", s.output.Dir(),
	)

	done := 0
	for step := 1; step <= steps; step++ {
		if ctx.Err() != nil {
			slog.Info("interrupted", "step", step)
			break
		}
		watch.Observe(sim, sim.StepTracked(step))
		done = step

		if step%window == 0 {
			if err := s.output.WritePerf(sim.Perf().Stats(), step); err != nil {
				slog.Error("failed to write perf", "error", err)
			}
		}
	}

	if err := s.output.WriteHistory(sim.History()); err != nil {
		return err
	}
	summary := sim.Summary()
	if err := s.output.WriteSummary(summary); err != nil {
		return err
	}
	// Persist even when interrupted; use a fresh context for the write.
	if err := s.persist(context.WithoutCancel(ctx), sim, done); err != nil {
		return err
	}

	slog.Info("run complete",
		"run_id", s.runID,
		"steps", done,
		"bookmarks", len(watch.Bookmarks()),
		"summary", summary,
	)
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	s, err := newSetup(ctx, cmd, func(cfg *config.Config) {
		if a := cmd.String("addr"); a != "" {
			cfg.Server.Addr = a
		}
		if f := cmd.Int("fps"); f > 0 {
			cfg.Server.FPS = f
		}
	})
	if err != nil {
		return err
	}
	defer s.close()

	addr := s.cfg.Server.Addr
	fps := s.cfg.Server.FPS

	logger := slog.Default().With("run_id", s.runID)
	sim, err := forest.New(s.cfg, forest.Options{Seed: s.seed, Logger: logger})
	if err != nil {
		return err
	}
	defer sim.Close()

	hub := websocket.NewHub(logger)
	srv := api.NewServer(sim, hub, api.Options{
		RunID:  s.runID,
		FPS:    fps,
		Logger: logger,
		Output: s.output,
		Watch:  forest.NewWatcher(sim, s.runID, s.output, logger),
	})
	httpSrv := &http.Server{Addr: addr, Handler: srv}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("serving", "addr", addr, "fps", fps)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return s.persist(context.WithoutCancel(ctx), sim, sim.Generation())
}
