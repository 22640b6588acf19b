package wrightfisher

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ReplicateOutcome is the result of one replicate: the initial invasion plus
// any reinvasion attempts.
type ReplicateOutcome struct {
	// Index is the replicate's position in the run.
	Index int

	// Present reports whether the trait survived every attempt.
	Present bool

	// Status is the terminal state of the last attempt.
	Status Status

	// Presence and Trajectory come from the initial invasion only.
	Presence   []bool
	Trajectory []float64

	// Invasions counts Invade calls, at most 1 + MaxReinvasions.
	Invasions int

	// ReinvasionsSurvived counts reinvasion attempts the trait withstood.
	ReinvasionsSurvived int

	// ExtinctionGeneration is the cumulative generation, across attempts, at
	// which the trait went extinct, or -1 if it never did.
	ExtinctionGeneration int
}

// AggregateResult accumulates replicate outcomes into persistence
// probability estimates. It is not safe for concurrent use; parallel runs
// give each worker its own AggregateResult and Merge them afterwards.
type AggregateResult struct {
	// Replicates is the number of outcomes added.
	Replicates int

	// Present is the number of replicates in which the trait persisted.
	Present int

	// Trajectories holds the raw trajectory of each replicate in replicate
	// order, when recording was enabled.
	Trajectories [][]float64

	curveGenerations int
	presentByGen     []int
	statusCounts     [4]int
	extinctions      int
	extinctionGenSum float64
	maxReinvasions   int

	// survived grows to the largest reinvasion count seen, never to
	// maxReinvasions, which may be arbitrarily large.
	survived []int
}

// NewAggregateResult returns an empty accumulator for a run recording
// curveGenerations generations and allowing maxReinvasions reinvasions.
func NewAggregateResult(curveGenerations, maxReinvasions int) *AggregateResult {
	return &AggregateResult{
		curveGenerations: curveGenerations,
		presentByGen:     make([]int, curveGenerations),
		maxReinvasions:   maxReinvasions,
	}
}

// Add folds one outcome into the accumulator.
func (a *AggregateResult) Add(o ReplicateOutcome) {
	a.Replicates++
	if o.Present {
		a.Present++
	}
	for i, present := range o.Presence {
		if i < len(a.presentByGen) && present {
			a.presentByGen[i]++
		}
	}
	if o.Trajectory != nil {
		a.Trajectories = append(a.Trajectories, o.Trajectory)
	}
	if int(o.Status) < len(a.statusCounts) {
		a.statusCounts[o.Status]++
	}
	if o.ExtinctionGeneration >= 0 {
		a.extinctions++
		a.extinctionGenSum += float64(o.ExtinctionGeneration)
	}
	if o.ReinvasionsSurvived >= 0 {
		a.countSurvived(o.ReinvasionsSurvived, 1)
	}
}

func (a *AggregateResult) countSurvived(i, n int) {
	for len(a.survived) <= i {
		a.survived = append(a.survived, 0)
	}
	a.survived[i] += n
}

// Merge appends b's counts to a. Trajectories from b follow a's, so merging
// partial results in replicate order preserves replicate order.
func (a *AggregateResult) Merge(b *AggregateResult) {
	a.Replicates += b.Replicates
	a.Present += b.Present
	for i := range a.presentByGen {
		if i < len(b.presentByGen) {
			a.presentByGen[i] += b.presentByGen[i]
		}
	}
	a.Trajectories = append(a.Trajectories, b.Trajectories...)
	for i := range a.statusCounts {
		a.statusCounts[i] += b.statusCounts[i]
	}
	a.extinctions += b.extinctions
	a.extinctionGenSum += b.extinctionGenSum
	a.maxReinvasions = max(a.maxReinvasions, b.maxReinvasions)
	for i, c := range b.survived {
		if c > 0 {
			a.countSurvived(i, c)
		}
	}
}

// Probability is the infinite-horizon persistence probability: the fraction
// of replicates in which the trait persisted.
func (a *AggregateResult) Probability() float64 {
	if a.Replicates == 0 {
		return 0
	}
	return float64(a.Present) / float64(a.Replicates)
}

// Curve returns the fraction of replicates in which the trait was present at
// each generation of the short horizon. It is nil when no curve was recorded.
func (a *AggregateResult) Curve() []float64 {
	if a.curveGenerations == 0 {
		return nil
	}
	curve := make([]float64, len(a.presentByGen))
	for i, c := range a.presentByGen {
		curve[i] = float64(c)
	}
	if a.Replicates > 0 {
		floats.Scale(1/float64(a.Replicates), curve)
	}
	return curve
}

// StdErr is the binomial standard error of Probability.
func (a *AggregateResult) StdErr() float64 {
	if a.Replicates == 0 {
		return 0
	}
	p := a.Probability()
	return math.Sqrt(p * (1 - p) / float64(a.Replicates))
}

// ConfidenceInterval returns the normal-approximation interval for
// Probability at the given two-sided level (for example 0.95), clamped to
// [0, 1].
func (a *AggregateResult) ConfidenceInterval(level float64) (lo, hi float64) {
	z := distuv.UnitNormal.Quantile(0.5 + level/2)
	p := a.Probability()
	half := z * a.StdErr()
	return math.Max(0, p-half), math.Min(1, p+half)
}

// StatusCount returns the number of replicates whose last attempt ended in s.
func (a *AggregateResult) StatusCount(s Status) int {
	if int(s) < 0 || int(s) >= len(a.statusCounts) {
		return 0
	}
	return a.statusCounts[s]
}

// MeanExtinctionGeneration is the mean cumulative generation of extinction
// over the replicates that went extinct, or NaN if none did.
func (a *AggregateResult) MeanExtinctionGeneration() float64 {
	if a.extinctions == 0 {
		return math.NaN()
	}
	return a.extinctionGenSum / float64(a.extinctions)
}

// ReinvasionsSurvived returns how many replicates withstood exactly i
// reinvasion attempts. The slice ends at the largest count observed, so it
// is shorter than MaxReinvasions+1 when no replicate withstood every attempt.
func (a *AggregateResult) ReinvasionsSurvived() []int {
	out := make([]int, len(a.survived))
	copy(out, a.survived)
	return out
}

// Summary is a serialisable snapshot of an AggregateResult.
type Summary struct {
	Replicates               int     `json:"replicates"`
	Present                  int     `json:"present"`
	Probability              float64 `json:"probability"`
	StdErr                   float64 `json:"std_err"`
	CILow                    float64 `json:"ci95_low"`
	CIHigh                   float64 `json:"ci95_high"`
	Extinct                  int     `json:"extinct"`
	Fixed                    int     `json:"fixed"`
	HorizonReached           int     `json:"horizon_reached"`
	MeanExtinctionGeneration float64 `json:"mean_extinction_generation,omitempty"`
	ReinvasionsSurvived      []int   `json:"reinvasions_survived,omitempty"`
}

// Summary returns the scalar statistics of a.
func (a *AggregateResult) Summary() Summary {
	lo, hi := a.ConfidenceInterval(0.95)
	s := Summary{
		Replicates:     a.Replicates,
		Present:        a.Present,
		Probability:    a.Probability(),
		StdErr:         a.StdErr(),
		CILow:          lo,
		CIHigh:         hi,
		Extinct:        a.StatusCount(Extinct),
		Fixed:          a.StatusCount(Fixed),
		HorizonReached: a.StatusCount(HorizonReached),
	}
	if a.extinctions > 0 {
		s.MeanExtinctionGeneration = a.MeanExtinctionGeneration()
	}
	if a.maxReinvasions > 0 {
		s.ReinvasionsSurvived = a.ReinvasionsSurvived()
	}
	return s
}
