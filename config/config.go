// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Forest        ForestConfig    `yaml:"forest"`
	Wind          WindConfig      `yaml:"wind"`
	Humidity      HumidityConfig  `yaml:"humidity"`
	HumidityField FieldConfig     `yaml:"humidity_field"`
	TreeField     TreeFieldConfig `yaml:"tree_field"`
	Parallel      ParallelConfig  `yaml:"parallel"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Server        ServerConfig    `yaml:"server"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ForestConfig holds the grid and transition-rule parameters.
type ForestConfig struct {
	Size          int     `yaml:"size"`           // Grid side length in cells
	TreeDensity   float64 `yaml:"tree_density"`   // Target fraction of Tree cells after reset
	LightningProb float64 `yaml:"lightning_prob"` // Per-cell ambient ignition chance per step
	GrowthProb    float64 `yaml:"growth_prob"`    // Empty -> Tree chance when a tree is nearby
	SpreadProb    float64 `yaml:"spread_prob"`    // Base Tree -> Burning chance
	Radius        int     `yaml:"radius"`         // Chebyshev neighbourhood radius
}

// WindConfig holds the initial wind heading and its drift.
type WindConfig struct {
	X         float64 `yaml:"x"`          // Row component of the initial heading
	Y         float64 `yaml:"y"`          // Column component of the initial heading
	ChangeDeg float64 `yaml:"change_deg"` // Max heading change per step, degrees
}

// HumidityConfig holds humidity coupling parameters.
type HumidityConfig struct {
	Change         float64 `yaml:"change"`          // Re-moistening per step away from fire
	ChangeFire     float64 `yaml:"change_fire"`     // Drying per step near fire
	WaterThreshold float64 `yaml:"water_threshold"` // Humidity at or above which cells become Water (0 = off)
}

// FieldConfig parameterises a cluster field.
type FieldConfig struct {
	MinClusters  int     `yaml:"min_clusters"`
	MaxClusters  int     `yaml:"max_clusters"`
	SigmaMin     float64 `yaml:"sigma_min"`
	SigmaMax     float64 `yaml:"sigma_max"`
	NoiseScale   float64 `yaml:"noise_scale"` // Blur sigma for the wobble noise
	AmplitudeMin float64 `yaml:"amplitude_min"`
	AmplitudeMax float64 `yaml:"amplitude_max"`
}

// TreeFieldConfig is the cluster field used for initial tree placement.
type TreeFieldConfig struct {
	FieldConfig `yaml:",inline"`
	Jitter      float64 `yaml:"jitter"` // Std-dev of per-cell Gaussian jitter before thresholding
}

// ParallelConfig controls the cell-pass worker pool.
type ParallelConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow      int    `yaml:"perf_window"`      // Steps averaged by the perf collector
	LogEvery        int    `yaml:"log_every"`        // Steps between stats log lines (0 = never)
	BookmarkHistory int    `yaml:"bookmark_history"` // Steps of rolling history for bookmark detection
	SnapshotDir     string `yaml:"snapshot_dir"`     // Where bookmark snapshots are saved (empty = off)
}

// ServerConfig holds frame-stream server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	FPS  int    `yaml:"fps"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells        int     // Forest.Size squared
	WindChange   float64 // Wind.ChangeDeg in radians
	WaterEnabled bool    // Humidity.WaterThreshold > 0
	Coupled      bool    // any humidity rate non-zero
}

// FieldError describes one invalid configuration value.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s = %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match any FieldError with errors.Is(err, ErrInvalid).
func (e *FieldError) Unwrap() error { return ErrInvalid }

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are broken: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()
	return cfg, nil
}

// ComputeDerived recalculates derived values. Call after mutating fields in code.
func (c *Config) ComputeDerived() {
	c.Derived.Cells = c.Forest.Size * c.Forest.Size
	c.Derived.WindChange = c.Wind.ChangeDeg * math.Pi / 180
	c.Derived.WaterEnabled = c.Humidity.WaterThreshold > 0
	c.Derived.Coupled = c.Humidity.Change != 0 || c.Humidity.ChangeFire != 0
}

// Validate reports every invalid field. The returned error matches ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, v any, reason string) {
		errs = append(errs, &FieldError{Field: field, Value: v, Reason: reason})
	}
	prob := func(field string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			bad(field, v, "must be in [0, 1]")
		}
	}

	if c.Forest.Size <= 0 {
		bad("forest.size", c.Forest.Size, "must be positive")
	}
	if c.Forest.Radius < 1 {
		bad("forest.radius", c.Forest.Radius, "must be at least 1")
	}
	prob("forest.tree_density", c.Forest.TreeDensity)
	prob("forest.lightning_prob", c.Forest.LightningProb)
	prob("forest.growth_prob", c.Forest.GrowthProb)
	prob("forest.spread_prob", c.Forest.SpreadProb)

	nonNeg := func(field string, v float64) {
		if !finite(v) || v < 0 {
			bad(field, v, "must be finite and not negative")
		}
	}

	switch {
	case !finite(c.Wind.X) || !finite(c.Wind.Y):
		bad("wind", fmt.Sprintf("(%g, %g)", c.Wind.X, c.Wind.Y), "heading must be finite")
	case c.Wind.X == 0 && c.Wind.Y == 0:
		bad("wind", fmt.Sprintf("(%g, %g)", c.Wind.X, c.Wind.Y), "heading must be non-zero")
	}
	nonNeg("wind.change_deg", c.Wind.ChangeDeg)

	nonNeg("humidity.change", c.Humidity.Change)
	nonNeg("humidity.change_fire", c.Humidity.ChangeFire)
	nonNeg("humidity.water_threshold", c.Humidity.WaterThreshold)

	errs = append(errs, c.HumidityField.validate("humidity_field")...)
	errs = append(errs, c.TreeField.validate("tree_field")...)
	nonNeg("tree_field.jitter", c.TreeField.Jitter)

	if c.Parallel.Workers < 0 {
		bad("parallel.workers", c.Parallel.Workers, "must not be negative")
	}

	return errors.Join(errs...)
}

func (f FieldConfig) validate(prefix string) []error {
	var errs []error
	bad := func(field string, v any, reason string) {
		errs = append(errs, &FieldError{Field: prefix + "." + field, Value: v, Reason: reason})
	}
	if f.MinClusters < 1 {
		bad("min_clusters", f.MinClusters, "must be at least 1")
	}
	if f.MaxClusters < f.MinClusters {
		bad("max_clusters", f.MaxClusters, "must be >= min_clusters")
	}
	if !finite(f.SigmaMin) || f.SigmaMin <= 0 {
		bad("sigma_min", f.SigmaMin, "must be finite and positive")
	}
	if !finite(f.SigmaMax) || f.SigmaMax < f.SigmaMin {
		bad("sigma_max", f.SigmaMax, "must be finite and >= sigma_min")
	}
	if !finite(f.NoiseScale) || f.NoiseScale < 0 {
		bad("noise_scale", f.NoiseScale, "must be finite and not negative")
	}
	// A field with no positive cluster cannot be normalised onto [0, 1].
	if !finite(f.AmplitudeMin) || f.AmplitudeMin <= 0 {
		bad("amplitude_min", f.AmplitudeMin, "must be finite and positive")
	}
	if !finite(f.AmplitudeMax) || f.AmplitudeMax < f.AmplitudeMin {
		bad("amplitude_max", f.AmplitudeMax, "must be finite and >= amplitude_min")
	}
	return errs
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
