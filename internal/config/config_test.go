package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuachristie/biofunc-models/internal/constants"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Simulation.Replicates != 1_000_000 {
		t.Errorf("expected 1000000 replicates, got %d", config.Simulation.Replicates)
	}
	if config.Simulation.Tolerance != 1e-12 {
		t.Errorf("expected tolerance 1e-12, got %g", config.Simulation.Tolerance)
	}
	if config.Simulation.MaxReinvasions != 0 {
		t.Errorf("expected no reinvasions by default, got %d", config.Simulation.MaxReinvasions)
	}
	if config.Output.DataDir != "" {
		t.Errorf("expected empty DataDir, got %q", config.Output.DataDir)
	}
	if len(config.Output.Formats) != 3 {
		t.Errorf("expected all output formats by default, got %v", config.Output.Formats)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
simulation:
  replicates: 5000
  max_reinvasions: 2
  curve_generations: 50
  record_trajectories: true
  seed: 99

output:
  data_dir: /tmp/wfsim-data
  formats: [sqlite, arrow]

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Simulation.Replicates != 5000 {
		t.Errorf("expected 5000 replicates, got %d", config.Simulation.Replicates)
	}
	if config.Simulation.MaxReinvasions != 2 {
		t.Errorf("expected 2 reinvasions, got %d", config.Simulation.MaxReinvasions)
	}
	if !config.Simulation.RecordTrajectories {
		t.Error("expected RecordTrajectories to be true")
	}
	if config.Simulation.Seed != 99 {
		t.Errorf("expected seed 99, got %d", config.Simulation.Seed)
	}
	// Unset keys keep their defaults
	if config.Simulation.MaxGenerations != wrightfisher.DefaultMaxGenerations {
		t.Errorf("expected default MaxGenerations, got %d", config.Simulation.MaxGenerations)
	}
	if config.Output.DataDir != "/tmp/wfsim-data" {
		t.Errorf("expected DataDir /tmp/wfsim-data, got %q", config.Output.DataDir)
	}
	if !config.HasFormat(constants.FormatArrow) || config.HasFormat(constants.FormatCSV) {
		t.Errorf("unexpected formats: %v", config.Output.Formats)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("output:\n  data_dir: ~/results\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if want := filepath.Join(home, "results"); config.Output.DataDir != want {
		t.Errorf("expected DataDir %q, got %q", want, config.Output.DataDir)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("simulation: [not, a, map"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_UsesHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.Simulation.Replicates = 42
	path := filepath.Join(home, ".wfsim", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Simulation.Replicates != 42 {
		t.Errorf("expected 42 replicates from ~/.wfsim/config.yaml, got %d", loaded.Simulation.Replicates)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 0600", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.Replicates != Default().Simulation.Replicates {
		t.Errorf("expected defaults without a config file, got %d replicates", config.Simulation.Replicates)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WFSIM_REPLICATES", "777")
	t.Setenv("WFSIM_MAX_REINVASIONS", "3")
	t.Setenv("WFSIM_TOLERANCE", "1e-9")
	t.Setenv("WFSIM_SEED", "12345")
	t.Setenv("WFSIM_RECORD_TRAJECTORIES", "1")
	t.Setenv("WFSIM_DATA_DIR", "/srv/wfsim")
	t.Setenv("WFSIM_OUTPUT_FORMATS", "csv")
	t.Setenv("WFSIM_LOG_LEVEL", "trace")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Simulation.Replicates != 777 {
		t.Errorf("expected 777 replicates, got %d", config.Simulation.Replicates)
	}
	if config.Simulation.MaxReinvasions != 3 {
		t.Errorf("expected 3 reinvasions, got %d", config.Simulation.MaxReinvasions)
	}
	if config.Simulation.Tolerance != 1e-9 {
		t.Errorf("expected tolerance 1e-9, got %g", config.Simulation.Tolerance)
	}
	if config.Simulation.Seed != 12345 {
		t.Errorf("expected seed 12345, got %d", config.Simulation.Seed)
	}
	if !config.Simulation.RecordTrajectories {
		t.Error("expected RecordTrajectories from env")
	}
	if config.Output.DataDir != "/srv/wfsim" {
		t.Errorf("expected DataDir /srv/wfsim, got %q", config.Output.DataDir)
	}
	if len(config.Output.Formats) != 1 || config.Output.Formats[0] != constants.FormatCSV {
		t.Errorf("expected [csv], got %v", config.Output.Formats)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_Invalid(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"WFSIM_REPLICATES", "many"},
		{"WFSIM_TOLERANCE", "small"},
		{"WFSIM_SEED", "-1"},
		{"WFSIM_OUTPUT_FORMATS", "csv,xml"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv(tt.env, tt.value)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.env) {
				t.Errorf("expected error naming %s, got %v", tt.env, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WfsimConfig)
		wantErr string
	}{
		{"valid", func(c *WfsimConfig) {}, ""},
		{"zero replicates", func(c *WfsimConfig) { c.Simulation.Replicates = 0 }, "replicates"},
		{"negative reinvasions", func(c *WfsimConfig) { c.Simulation.MaxReinvasions = -1 }, "max_reinvasions"},
		{"zero generation cap", func(c *WfsimConfig) { c.Simulation.MaxGenerations = 0 }, "max_generations"},
		{"zero tolerance", func(c *WfsimConfig) { c.Simulation.Tolerance = 0 }, "tolerance"},
		{"huge tolerance", func(c *WfsimConfig) { c.Simulation.Tolerance = 0.5 }, "tolerance"},
		{"negative curve", func(c *WfsimConfig) { c.Simulation.CurveGenerations = -5 }, "curve_generations"},
		{"negative workers", func(c *WfsimConfig) { c.Simulation.Workers = -1 }, "workers"},
		{"bad format", func(c *WfsimConfig) { c.Output.Formats = []constants.OutputFormat{"xlsx"} }, "output format"},
		{"bad level", func(c *WfsimConfig) { c.Logging.Level = "verbose" }, "log level"},
		{"empty level", func(c *WfsimConfig) { c.Logging.Level = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	config := Default()
	dir, err := config.DataDir()
	if err != nil {
		t.Fatalf("DataDir failed: %v", err)
	}
	if want := filepath.Join(home, ".wfsim", "data"); dir != want {
		t.Errorf("default DataDir = %q, want %q", dir, want)
	}

	config.Output.DataDir = "~/sims"
	dir, err = config.DataDir()
	if err != nil {
		t.Fatalf("DataDir failed: %v", err)
	}
	if want := filepath.Join(home, "sims"); dir != want {
		t.Errorf("DataDir = %q, want %q", dir, want)
	}
}

func TestRunConfig(t *testing.T) {
	config := Default()
	config.Simulation.Replicates = 100
	config.Simulation.CurveGenerations = 10
	config.Simulation.Workers = 0

	cfg := config.RunConfig(250)
	if cfg.PopulationSize != 250 || cfg.InitialFrequency != 1.0/250 {
		t.Errorf("population %d / initial frequency %g", cfg.PopulationSize, cfg.InitialFrequency)
	}
	if cfg.Replicates != 100 || cfg.CurveGenerations != 10 {
		t.Errorf("replicates %d / curve %d", cfg.Replicates, cfg.CurveGenerations)
	}
	if cfg.Workers < 1 {
		t.Errorf("expected Workers resolved from GOMAXPROCS, got %d", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("RunConfig produced an invalid engine config: %v", err)
	}
}

func TestGetSet(t *testing.T) {
	config := Default()

	for _, key := range Keys {
		if _, ok := config.Get(key); !ok {
			t.Errorf("Get(%q) not found", key)
		}
	}
	if _, ok := config.Get("llm.provider"); ok {
		t.Error("expected unknown key to be missing")
	}

	sets := []struct {
		key, value string
		want       any
	}{
		{"simulation.replicates", "2500", 2500},
		{"simulation.tolerance", "1e-10", 1e-10},
		{"simulation.record_trajectories", "true", true},
		{"simulation.seed", "7", uint64(7)},
		{"output.formats", "arrow,sqlite", "arrow,sqlite"},
		{"logging.level", "debug", "debug"},
	}
	for _, s := range sets {
		if err := config.Set(s.key, s.value); err != nil {
			t.Fatalf("Set(%q, %q): %v", s.key, s.value, err)
		}
		got, _ := config.Get(s.key)
		if got != s.want {
			t.Errorf("Get(%q) = %v (%T), want %v (%T)", s.key, got, got, s.want, s.want)
		}
	}
}

func TestSet_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"simulation.replicates", "lots"},
		{"simulation.replicates", "0"},
		{"simulation.tolerance", "tiny"},
		{"simulation.seed", "-3"},
		{"output.formats", "pdf"},
		{"logging.level", "loud"},
		{"nope.key", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			config := Default()
			before, _ := config.Get(tt.key)
			if err := config.Set(tt.key, tt.value); err == nil {
				t.Fatal("expected error")
			}
			after, _ := config.Get(tt.key)
			if before != after {
				t.Errorf("failed Set changed %s from %v to %v", tt.key, before, after)
			}
		})
	}
}
