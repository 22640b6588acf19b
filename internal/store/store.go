// Package store persists simulation runs. A Sink receives each finished run;
// the SQLite store additionally answers queries over past runs.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joshuachristie/biofunc-models/internal/pathutil"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
)

// ErrRunNotFound is returned when no stored run matches an id.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousID is returned when an id prefix matches more than one run.
var ErrAmbiguousID = errors.New("run id prefix is ambiguous")

// Run is one finished simulation together with its inputs.
type Run struct {
	ID        string                        `json:"id"`
	Name      string                        `json:"name,omitempty"`
	CreatedAt time.Time                     `json:"created_at"`
	Duration  time.Duration                 `json:"duration"`
	Model     wrightfisher.ModelSpec        `json:"model"`
	Config    wrightfisher.SimulationConfig `json:"config"`
	Summary   wrightfisher.Summary          `json:"summary"`

	// Curve is the per-generation presence probability over the recorded
	// horizon, if one was recorded.
	Curve []float64 `json:"curve,omitempty"`

	// Trajectories holds one raw allele frequency series per replicate. Only
	// the Arrow sink writes them.
	Trajectories [][]float64 `json:"-"`
}

// NewRun assembles a Run with a fresh id from an orchestrator's inputs and
// its result.
func NewRun(name string, o *wrightfisher.Orchestrator, result *wrightfisher.AggregateResult, elapsed time.Duration) Run {
	return Run{
		ID:           uuid.NewString(),
		Name:         name,
		CreatedAt:    time.Now().UTC(),
		Duration:     elapsed,
		Model:        o.Spec(),
		Config:       o.Config(),
		Summary:      result.Summary(),
		Curve:        result.Curve(),
		Trajectories: result.Trajectories,
	}
}

// ParameterName returns the file stem shared by the run's result files:
// model, population size, model coefficients and reinvasion cap joined by
// underscores, e.g. "HSE_1000_0.01_0".
func (r Run) ParameterName() string {
	params := r.Model.Parameters()
	parts := make([]string, 0, len(params)+3)
	parts = append(parts, string(r.Model.Kind), strconv.Itoa(r.Config.PopulationSize))
	for _, p := range params {
		parts = append(parts, pathutil.FormatValue(p.Value))
	}
	parts = append(parts, strconv.Itoa(r.Config.MaxReinvasions))
	return pathutil.ParameterName(parts...)
}

// Sink receives finished runs.
type Sink interface {
	// Record persists run. Implementations must not retain run's slices.
	Record(ctx context.Context, run Run) error

	// Close releases the sink's resources.
	Close() error
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Model wrightfisher.ModelKind
	Limit int
}
