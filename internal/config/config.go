// Package config provides unified configuration loading for wfsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joshuachristie/biofunc-models/internal/constants"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
	"gopkg.in/yaml.v3"
)

// WfsimConfig contains all wfsim configuration settings.
type WfsimConfig struct {
	// Simulation holds the defaults applied to every run unless a scenario
	// file or command-line flag overrides them.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output controls where and in which formats results are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and run logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig holds run defaults. Population size and model
// coefficients are per run and have no default.
type SimulationConfig struct {
	Replicates         int     `json:"replicates" yaml:"replicates"`
	MaxReinvasions     int     `json:"max_reinvasions" yaml:"max_reinvasions"`
	MaxGenerations     int     `json:"max_generations" yaml:"max_generations"`
	Tolerance          float64 `json:"tolerance" yaml:"tolerance"`
	CurveGenerations   int     `json:"curve_generations" yaml:"curve_generations"`
	RecordTrajectories bool    `json:"record_trajectories" yaml:"record_trajectories"`

	// Workers is the number of replicate goroutines. Zero means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`

	// Seed fixes every run's PRNG streams. Zero draws a fresh seed per run.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// OutputConfig configures result sinks.
type OutputConfig struct {
	// DataDir is the root of the result tree. Empty means ~/.wfsim/data.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Formats lists the sinks each run is written to.
	Formats []constants.OutputFormat `json:"formats" yaml:"formats"`
}

// LoggingConfig configures wfsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables run logging to <data>/runs.jsonl.
	// "trace" additionally records every replicate outcome.
	Level string `json:"level" yaml:"level"`
}

// Default returns a WfsimConfig with sensible defaults.
func Default() *WfsimConfig {
	return &WfsimConfig{
		Simulation: SimulationConfig{
			Replicates:     wrightfisher.DefaultReplicates,
			MaxReinvasions: 0,
			MaxGenerations: wrightfisher.DefaultMaxGenerations,
			Tolerance:      wrightfisher.DefaultTolerance,
		},
		Output: OutputConfig{
			Formats: []constants.OutputFormat{constants.FormatSQLite, constants.FormatCSV, constants.FormatArrow},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.wfsim/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.AppDirName, constants.ConfigFileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.wfsim/config.yaml -> environment variables
func Load() (*WfsimConfig, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys absent
// from the file keep their defaults.
func LoadFromFile(path string) (*WfsimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Output.DataDir = expandHome(os.ExpandEnv(config.Output.DataDir))

	return config, nil
}

// Save replaces the file at path through a temporary file so a failed
// write never leaves a truncated config behind.
func (c *WfsimConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *WfsimConfig) Validate() error {
	s := c.Simulation
	if s.Replicates < 1 {
		return fmt.Errorf("simulation.replicates must be >= 1, got %d", s.Replicates)
	}
	if s.MaxReinvasions < 0 {
		return fmt.Errorf("simulation.max_reinvasions must be >= 0, got %d", s.MaxReinvasions)
	}
	if s.MaxGenerations < 1 {
		return fmt.Errorf("simulation.max_generations must be >= 1, got %d", s.MaxGenerations)
	}
	if s.Tolerance <= 0 || s.Tolerance >= 0.5 {
		return fmt.Errorf("simulation.tolerance must be in (0, 0.5), got %g", s.Tolerance)
	}
	if s.CurveGenerations < 0 {
		return fmt.Errorf("simulation.curve_generations must be >= 0, got %d", s.CurveGenerations)
	}
	if s.Workers < 0 {
		return fmt.Errorf("simulation.workers must be >= 0, got %d", s.Workers)
	}

	for _, f := range c.Output.Formats {
		if !f.Valid() {
			return fmt.Errorf("invalid output format: %s (valid: sqlite, csv, arrow)", f)
		}
	}

	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// DataDir returns the resolved data directory.
func (c *WfsimConfig) DataDir() (string, error) {
	if c.Output.DataDir != "" {
		return filepath.Abs(expandHome(c.Output.DataDir))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.AppDirName, constants.DefaultDataDirName), nil
}

// HasFormat reports whether f is among the configured output formats.
func (c *WfsimConfig) HasFormat(f constants.OutputFormat) bool {
	for _, have := range c.Output.Formats {
		if have == f {
			return true
		}
	}
	return false
}

// RunConfig builds the engine configuration for a population of size n
// from the configured defaults.
func (c *WfsimConfig) RunConfig(n int) wrightfisher.SimulationConfig {
	s := c.Simulation
	workers := s.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cfg := wrightfisher.SimulationConfig{
		PopulationSize:     n,
		MaxReinvasions:     s.MaxReinvasions,
		MaxGenerations:     s.MaxGenerations,
		Tolerance:          s.Tolerance,
		Replicates:         s.Replicates,
		CurveGenerations:   s.CurveGenerations,
		RecordTrajectories: s.RecordTrajectories,
		Seed:               s.Seed,
		Workers:            workers,
	}
	if n > 0 {
		cfg.InitialFrequency = 1.0 / float64(n)
	}
	return cfg
}

// applyEnvOverrides applies WFSIM_* environment variable overrides.
func applyEnvOverrides(config *WfsimConfig) error {
	ints := []struct {
		env string
		dst *int
	}{
		{"WFSIM_REPLICATES", &config.Simulation.Replicates},
		{"WFSIM_MAX_REINVASIONS", &config.Simulation.MaxReinvasions},
		{"WFSIM_MAX_GENERATIONS", &config.Simulation.MaxGenerations},
		{"WFSIM_CURVE_GENERATIONS", &config.Simulation.CurveGenerations},
		{"WFSIM_WORKERS", &config.Simulation.Workers},
	}
	for _, o := range ints {
		if v := os.Getenv(o.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %q is not an integer", o.env, v)
			}
			*o.dst = n
		}
	}

	if v := os.Getenv("WFSIM_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid WFSIM_TOLERANCE: %q is not a number", v)
		}
		config.Simulation.Tolerance = f
	}

	if v := os.Getenv("WFSIM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid WFSIM_SEED: %q", v)
		}
		config.Simulation.Seed = seed
	}

	if v := os.Getenv("WFSIM_RECORD_TRAJECTORIES"); v != "" {
		config.Simulation.RecordTrajectories = v == "true" || v == "1"
	}

	if v := os.Getenv("WFSIM_DATA_DIR"); v != "" {
		config.Output.DataDir = expandHome(v)
	}

	if v := os.Getenv("WFSIM_OUTPUT_FORMATS"); v != "" {
		formats, err := constants.ParseOutputFormats(v)
		if err != nil {
			return fmt.Errorf("invalid WFSIM_OUTPUT_FORMATS: %w", err)
		}
		config.Output.Formats = formats
	}

	if v := os.Getenv("WFSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
