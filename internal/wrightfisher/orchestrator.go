package wrightfisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshuachristie/biofunc-models/internal/logging"
	"golang.org/x/sync/errgroup"
)

// chunksPerWorker controls how finely replicates are partitioned. Chunks
// larger than one replicate amortise goroutine overhead; several chunks per
// worker keep the pool busy when replicate lengths vary.
const chunksPerWorker = 8

// cancelCheckInterval is how many replicates a worker runs between context
// checks.
const cancelCheckInterval = 64

// EventLogger receives structured run events. *logging.RunLogger satisfies
// it, including as a nil pointer.
type EventLogger interface {
	Log(event map[string]any)
}

// Orchestrator runs the replicates of one simulation.
type Orchestrator struct {
	spec   ModelSpec
	model  Model
	cfg    SimulationConfig
	seed   uint64
	logger *slog.Logger
	events EventLogger
}

// NewOrchestrator validates spec and cfg and prepares a run. Configuration
// errors are reported here, before any replicate runs. A zero cfg.Seed is
// replaced by a fresh seed, available from Seed.
func NewOrchestrator(spec ModelSpec, cfg SimulationConfig) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := NewModel(spec, cfg.PopulationSize)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = NewSeed()
	}
	cfg.Seed = seed

	return &Orchestrator{spec: spec, model: model, cfg: cfg, seed: seed}, nil
}

// SetLogger sets the operational logger and the structured event logger.
// Either may be nil.
func (o *Orchestrator) SetLogger(logger *slog.Logger, events EventLogger) {
	o.logger = logger
	o.events = events
}

// Seed returns the seed the run's PRNG streams derive from.
func (o *Orchestrator) Seed() uint64 { return o.seed }

// Config returns the effective configuration, with defaults and the seed
// filled in.
func (o *Orchestrator) Config() SimulationConfig { return o.cfg }

// Spec returns the model specification.
func (o *Orchestrator) Spec() ModelSpec { return o.spec }

// RunReplicate runs replicate index: the initial invasion followed by up to
// MaxReinvasions reinvasion attempts while the trait survives. Only the
// initial invasion is recorded.
func (o *Orchestrator) RunReplicate(index int) ReplicateOutcome {
	rng := ReplicateRand(o.seed, index)
	traitIndex := o.model.TraitIndex()
	state := NewFrequencyState(o.model.Dimension(), traitIndex, o.cfg.InitialFrequency)

	first := Invade(o.model, state, o.cfg, rng, o.cfg.CurveGenerations > 0)
	out := ReplicateOutcome{
		Index:                index,
		Status:               first.Status,
		Presence:             first.Presence,
		Trajectory:           first.Trajectory,
		Invasions:            1,
		ExtinctionGeneration: -1,
	}
	elapsed := first.Generations
	if first.Status == Extinct {
		out.ExtinctionGeneration = elapsed
	}

	for reinvasions := 0; out.Status != Extinct && reinvasions < o.cfg.MaxReinvasions; reinvasions++ {
		// One trait carrier is replaced by one resident.
		state[traitIndex] -= o.cfg.InitialFrequency
		inv := Invade(o.model, state, o.cfg, rng, false)
		out.Invasions++
		out.Status = inv.Status
		elapsed += inv.Generations
		if inv.Status == Extinct {
			out.ExtinctionGeneration = elapsed
		} else {
			out.ReinvasionsSurvived++
		}
	}

	out.Present = out.Status.Present()
	return out
}

type replicateRange struct{ lo, hi int }

// partition splits [0, n) into at most parts contiguous ranges.
func partition(n, parts int) []replicateRange {
	if parts > n {
		parts = n
	}
	if parts < 1 {
		parts = 1
	}
	ranges := make([]replicateRange, 0, parts)
	size, extra := n/parts, n%parts
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < extra {
			hi++
		}
		ranges = append(ranges, replicateRange{lo, hi})
		lo = hi
	}
	return ranges
}

// Run executes all replicates on cfg.Workers goroutines and returns the
// aggregate. Each worker range accumulates into its own AggregateResult and
// the partials are merged in replicate order, so a seeded run gives the same
// result for any worker count. If ctx is cancelled Run returns its error and
// no result.
func (o *Orchestrator) Run(ctx context.Context) (*AggregateResult, error) {
	if o.logger != nil {
		o.logger.Info("simulation started",
			"model", o.spec.Kind,
			"population_size", o.cfg.PopulationSize,
			"replicates", o.cfg.Replicates,
			"max_reinvasions", o.cfg.MaxReinvasions,
			"workers", o.cfg.Workers,
			"seed", o.seed)
		if o.cfg.MaxReinvasions > 0 && o.cfg.CurveGenerations > 0 {
			o.logger.Warn("per-generation curve reflects the initial invasion only",
				"max_reinvasions", o.cfg.MaxReinvasions,
				"curve_generations", o.cfg.CurveGenerations)
		}
	}
	if o.events != nil {
		o.events.Log(map[string]any{
			"event":      "run_start",
			"model":      string(o.spec.Kind),
			"params":     o.spec.Parameters(),
			"config":     o.cfg,
			"replicates": o.cfg.Replicates,
		})
	}

	traceReplicates := o.events != nil && o.logger != nil && o.logger.Enabled(ctx, logging.LevelTrace)

	ranges := partition(o.cfg.Replicates, o.cfg.Workers*chunksPerWorker)
	partials := make([]*AggregateResult, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, r := range ranges {
		g.Go(func() error {
			agg := NewAggregateResult(o.cfg.CurveGenerations, o.cfg.MaxReinvasions)
			for rep := r.lo; rep < r.hi; rep++ {
				if (rep-r.lo)%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				out := o.RunReplicate(rep)
				if traceReplicates {
					o.events.Log(map[string]any{
						"event":       "replicate",
						"replicate":   rep,
						"status":      out.Status.String(),
						"present":     out.Present,
						"invasions":   out.Invasions,
						"extinct_gen": out.ExtinctionGeneration,
					})
				}
				agg.Add(out)
			}
			partials[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation aborted: %w", err)
	}

	result := NewAggregateResult(o.cfg.CurveGenerations, o.cfg.MaxReinvasions)
	for _, p := range partials {
		result.Merge(p)
	}

	if o.logger != nil {
		o.logger.Info("simulation finished",
			"model", o.spec.Kind,
			"probability", result.Probability(),
			"std_err", result.StdErr())
	}
	if o.events != nil {
		o.events.Log(map[string]any{
			"event":   "run_finish",
			"model":   string(o.spec.Kind),
			"summary": result.Summary(),
		})
	}
	return result, nil
}
