package wrightfisher

import (
	"fmt"
	"math"
	"runtime"
)

// Defaults used by DefaultSimulationConfig.
const (
	DefaultTolerance      = 1e-12
	DefaultReplicates     = 1_000_000
	DefaultMaxGenerations = 1_000_000
)

// SimulationConfig holds the run-wide settings shared by every replicate. It
// is created once per run and never mutated afterwards.
type SimulationConfig struct {
	// PopulationSize is the number of individuals N.
	PopulationSize int `json:"population_size" yaml:"population_size"`

	// InitialFrequency is the frequency at which the trait is introduced and
	// the amount removed on each reinvasion. Zero means 1/N.
	InitialFrequency float64 `json:"initial_frequency" yaml:"initial_frequency"`

	// MaxReinvasions bounds the number of reinvasion attempts per replicate.
	MaxReinvasions int `json:"max_reinvasions" yaml:"max_reinvasions"`

	// MaxGenerations is the per-attempt generation cap. An attempt that
	// reaches it without fixing or going extinct counts as persisting.
	MaxGenerations int `json:"max_generations" yaml:"max_generations"`

	// Tolerance is the absorption threshold for frequency comparisons.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`

	// Replicates is the number of independent replicates R.
	Replicates int `json:"replicates" yaml:"replicates"`

	// CurveGenerations is the short horizon over which per-generation
	// presence is recorded for the initial invasion. Zero disables the curve.
	CurveGenerations int `json:"curve_generations" yaml:"curve_generations"`

	// RecordTrajectories additionally keeps the raw allele frequency of every
	// generation inside the short horizon.
	RecordTrajectories bool `json:"record_trajectories" yaml:"record_trajectories"`

	// Seed fixes the run's PRNG streams. Zero draws a fresh seed.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Workers is the number of goroutines replicates are spread over.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultSimulationConfig returns the settings used when nothing else is
// specified, introducing a single individual into a population of size n.
func DefaultSimulationConfig(n int) SimulationConfig {
	cfg := SimulationConfig{
		PopulationSize: n,
		MaxGenerations: DefaultMaxGenerations,
		Tolerance:      DefaultTolerance,
		Replicates:     DefaultReplicates,
		Workers:        runtime.GOMAXPROCS(0),
	}
	if n > 0 {
		cfg.InitialFrequency = 1.0 / float64(n)
	}
	return cfg
}

// withDefaults fills the zero-valued InitialFrequency and Workers.
func (c SimulationConfig) withDefaults() SimulationConfig {
	if c.InitialFrequency == 0 && c.PopulationSize > 0 {
		c.InitialFrequency = 1.0 / float64(c.PopulationSize)
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Validate reports the first field outside its valid range.
func (c SimulationConfig) Validate() error {
	switch {
	case c.PopulationSize < 1:
		return fmt.Errorf("%w: population_size must be >= 1, got %d", ErrInvalidConfig, c.PopulationSize)
	case math.IsNaN(c.InitialFrequency) || c.InitialFrequency <= 0 || c.InitialFrequency > 1:
		return fmt.Errorf("%w: initial_frequency must be in (0, 1], got %g", ErrInvalidConfig, c.InitialFrequency)
	case c.MaxReinvasions < 0:
		return fmt.Errorf("%w: max_reinvasions must be >= 0, got %d", ErrInvalidConfig, c.MaxReinvasions)
	case c.MaxGenerations < 1:
		return fmt.Errorf("%w: max_generations must be >= 1, got %d", ErrInvalidConfig, c.MaxGenerations)
	case math.IsNaN(c.Tolerance) || c.Tolerance <= 0:
		return fmt.Errorf("%w: tolerance must be > 0, got %g", ErrInvalidConfig, c.Tolerance)
	case c.Replicates < 1:
		return fmt.Errorf("%w: replicates must be >= 1, got %d", ErrInvalidConfig, c.Replicates)
	case c.CurveGenerations < 0:
		return fmt.Errorf("%w: curve_generations must be >= 0, got %d", ErrInvalidConfig, c.CurveGenerations)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}
