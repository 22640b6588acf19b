package wrightfisher

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ModelKind identifies a Wright-Fisher model variant.
type ModelKind string

const (
	// HSE is the haploid single-environment model.
	HSE ModelKind = "HSE"
	// DSE is the diploid single-environment model.
	DSE ModelKind = "DSE"
	// HTE is the haploid model with an environment switch.
	HTE ModelKind = "HTE"
	// HTEOE is the haploid model with two additive effects per allele.
	HTEOE ModelKind = "HTEOE"
)

// ModelKinds lists the supported variants in display order.
var ModelKinds = []ModelKind{HSE, DSE, HTE, HTEOE}

// ParseModelKind maps a case-insensitive identifier to a ModelKind.
func ParseModelKind(s string) (ModelKind, error) {
	k := ModelKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ModelKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q (valid: HSE, DSE, HTE, HTEOE)", ErrUnknownModel, s)
}

// Description returns a short human-readable name for the variant.
func (k ModelKind) Description() string {
	switch k {
	case HSE:
		return "haploid, single environment"
	case DSE:
		return "diploid, single environment"
	case HTE:
		return "haploid, two environments"
	case HTEOE:
		return "haploid, two effects, one environment"
	default:
		return "unknown"
	}
}

// ModelSpec carries the selection coefficients of one model variant. Only
// the fields belonging to Kind are read.
type ModelSpec struct {
	Kind ModelKind `json:"kind" yaml:"kind"`

	// Selection is the HSE selection coefficient of allele A.
	Selection float64 `json:"selection,omitempty" yaml:"selection,omitempty"`

	// Homozygote and Heterozygote are the DSE selection coefficients of the
	// AA and Aa genotypes.
	Homozygote   float64 `json:"homozygote,omitempty" yaml:"homozygote,omitempty"`
	Heterozygote float64 `json:"heterozygote,omitempty" yaml:"heterozygote,omitempty"`

	// TraitIndex selects the DSE genotype that is introduced and removed on
	// reinvasion: 0 for AA, 1 for Aa. Haploid models always use 0.
	TraitIndex int `json:"trait_index,omitempty" yaml:"trait_index,omitempty"`

	// HTE coefficients of allele A and the resident allele a in each
	// environment, and the generation at which environment 2 takes over.
	AEnv1            float64 `json:"a_env1,omitempty" yaml:"a_env1,omitempty"`
	AEnv2            float64 `json:"a_env2,omitempty" yaml:"a_env2,omitempty"`
	ResidentEnv1     float64 `json:"resident_env1,omitempty" yaml:"resident_env1,omitempty"`
	ResidentEnv2     float64 `json:"resident_env2,omitempty" yaml:"resident_env2,omitempty"`
	SwitchGeneration int     `json:"switch_generation,omitempty" yaml:"switch_generation,omitempty"`

	// HTEOE additive effects of allele A and the resident allele a.
	A1        float64 `json:"a1,omitempty" yaml:"a1,omitempty"`
	A2        float64 `json:"a2,omitempty" yaml:"a2,omitempty"`
	Resident1 float64 `json:"resident1,omitempty" yaml:"resident1,omitempty"`
	Resident2 float64 `json:"resident2,omitempty" yaml:"resident2,omitempty"`
}

// Parameter is a named model coefficient.
type Parameter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Parameters returns the coefficients that belong to the spec's Kind, in a
// fixed order. Output file names are built from this list.
func (m ModelSpec) Parameters() []Parameter {
	switch m.Kind {
	case HSE:
		return []Parameter{{"selection", m.Selection}}
	case DSE:
		return []Parameter{
			{"homozygote", m.Homozygote},
			{"heterozygote", m.Heterozygote},
			{"trait_index", float64(m.TraitIndex)},
		}
	case HTE:
		return []Parameter{
			{"a_env1", m.AEnv1},
			{"a_env2", m.AEnv2},
			{"resident_env1", m.ResidentEnv1},
			{"resident_env2", m.ResidentEnv2},
			{"switch_generation", float64(m.SwitchGeneration)},
		}
	case HTEOE:
		return []Parameter{
			{"a1", m.A1},
			{"a2", m.A2},
			{"resident1", m.Resident1},
			{"resident2", m.Resident2},
		}
	default:
		return nil
	}
}

// Fitness computes the model's FitnessVector.
func (m ModelSpec) Fitness() (FitnessVector, error) {
	switch m.Kind {
	case HSE:
		return HaploidFitness(m.Selection), nil
	case DSE:
		return DiploidFitness(m.Homozygote, m.Heterozygote), nil
	case HTE:
		return TwoEnvironmentFitness(m.AEnv1, m.AEnv2, m.ResidentEnv1, m.ResidentEnv2), nil
	case HTEOE:
		return TwoEffectFitness(m.A1, m.A2, m.Resident1, m.Resident2), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, m.Kind)
	}
}

// Model advances a FrequencyState by one generation of selection followed by
// drift. Implementations are immutable and safe for concurrent use as long
// as each goroutine passes its own state and PRNG.
type Model interface {
	// Advance replaces state with the next generation's frequencies. gen is
	// the index of the generation being left and only matters to models with
	// an environment schedule.
	Advance(state FrequencyState, gen int, rng *rand.Rand)

	// Dimension is the length of the FrequencyState the model expects.
	Dimension() int

	// TraitIndex is the component of the state holding the trait of interest.
	TraitIndex() int
}

// NewModel validates spec against the population size and returns the
// matching Model.
func NewModel(spec ModelSpec, populationSize int) (Model, error) {
	if populationSize < 1 {
		return nil, fmt.Errorf("%w: population size must be >= 1, got %d", ErrInvalidConfig, populationSize)
	}
	fitness, err := spec.Fitness()
	if err != nil {
		return nil, err
	}

	switch spec.Kind {
	case HSE, HTEOE:
		if spec.TraitIndex != 0 {
			return nil, fmt.Errorf("%w: %s has a single trait, got trait index %d", ErrDimensionMismatch, spec.Kind, spec.TraitIndex)
		}
		if err := fitness.validate([]int{0, 1}); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Kind, err)
		}
		return &haploidModel{n: populationSize, fitness: fitness}, nil

	case HTE:
		if spec.TraitIndex != 0 {
			return nil, fmt.Errorf("%w: %s has a single trait, got trait index %d", ErrDimensionMismatch, spec.Kind, spec.TraitIndex)
		}
		if spec.SwitchGeneration < 0 {
			return nil, fmt.Errorf("%w: switch generation must be >= 0, got %d", ErrInvalidConfig, spec.SwitchGeneration)
		}
		if err := fitness.validate([]int{0, 2}, []int{1, 3}); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Kind, err)
		}
		return &twoEnvironmentModel{n: populationSize, fitness: fitness, switchGen: spec.SwitchGeneration}, nil

	case DSE:
		if spec.TraitIndex != 0 && spec.TraitIndex != 1 {
			return nil, fmt.Errorf("%w: DSE trait index must be 0 (AA) or 1 (Aa), got %d", ErrDimensionMismatch, spec.TraitIndex)
		}
		if err := fitness.validate([]int{0, 1, 2}); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Kind, err)
		}
		return &diploidModel{n: populationSize, fitness: fitness, traitIndex: spec.TraitIndex}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, spec.Kind)
}

// unitFrequency clamps p to [0, 1]. A reinvasion decrement can push a
// state that was never absorbed slightly outside that range.
func unitFrequency(p float64) float64 {
	return min(max(p, 0), 1)
}

// selectHaploid returns the post-selection expectation of P(A).
func selectHaploid(p, wA, wa float64) float64 {
	p = unitFrequency(p)
	weightA := p * wA
	total := weightA + (1.0-p)*wa
	if total == 0 {
		// Only reachable from an absorbed state; leave it where it is.
		return p
	}
	return weightA / total
}

type haploidModel struct {
	n       int
	fitness FitnessVector
}

func (m *haploidModel) Advance(state FrequencyState, _ int, rng *rand.Rand) {
	p := selectHaploid(state[0], m.fitness[0], m.fitness[1])
	state[0] = float64(sampleBinomial(m.n, p, rng)) / float64(m.n)
}

func (m *haploidModel) Dimension() int  { return 1 }
func (m *haploidModel) TraitIndex() int { return 0 }

type twoEnvironmentModel struct {
	n         int
	fitness   FitnessVector
	switchGen int
}

func (m *twoEnvironmentModel) Advance(state FrequencyState, gen int, rng *rand.Rand) {
	env := 0
	if gen >= m.switchGen {
		env = 1
	}
	p := selectHaploid(state[0], m.fitness[env], m.fitness[2+env])
	state[0] = float64(sampleBinomial(m.n, p, rng)) / float64(m.n)
}

func (m *twoEnvironmentModel) Dimension() int  { return 1 }
func (m *twoEnvironmentModel) TraitIndex() int { return 0 }

type diploidModel struct {
	n          int
	fitness    FitnessVector
	traitIndex int
}

func (m *diploidModel) Advance(state FrequencyState, _ int, rng *rand.Rand) {
	p := unitFrequency(state.AlleleFrequency())
	q := 1.0 - p
	weights := [3]float64{
		p * p * m.fitness[0],
		2.0 * p * q * m.fitness[1],
		q * q * m.fitness[2],
	}
	total := floats.Sum(weights[:])
	if total == 0 {
		return
	}
	floats.Scale(1/total, weights[:])

	var counts [3]int
	sampleMultinomial(m.n, weights[:], rng, counts[:])
	state[0] = float64(counts[0]) / float64(m.n)
	state[1] = float64(counts[1]) / float64(m.n)
}

func (m *diploidModel) Dimension() int  { return 2 }
func (m *diploidModel) TraitIndex() int { return m.traitIndex }
