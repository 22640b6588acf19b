// Package diffusion computes Kimura's diffusion approximation to the
// fixation probability of a single new mutant, the analytic baseline that
// simulated persistence probabilities are compared against.
package diffusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/joshuachristie/biofunc-models/internal/constants"
	"github.com/joshuachristie/biofunc-models/internal/wrightfisher"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidInput is returned for parameters outside the approximation's
// domain.
var ErrInvalidInput = errors.New("invalid diffusion parameters")

// ErrNoBaseline is returned by ForModel for variants without a closed form.
var ErrNoBaseline = errors.New("no diffusion baseline for model")

// FixationProbability returns the probability that a single copy of an
// allele with selection coefficient s eventually fixes in a population of n
// individuals of the given ploidy:
//
//	u = (1 - e^(-2s)) / (1 - e^(-2·ploidy·n·s))
//
// which tends to the neutral value 1/(ploidy·n) as s approaches 0.
func FixationProbability(n int, s float64, ploidy int) (float64, error) {
	if err := validate(n, s, ploidy); err != nil {
		return 0, err
	}

	m := float64(ploidy * n)
	return fixation(m, s, 1/m), nil
}

// fixation is the diffusion approximation for m gene copies, selection s
// and initial frequency p.
func fixation(m, s, p float64) float64 {
	if s == 0 {
		return p
	}
	if s > 0 {
		return math.Expm1(-2*m*s*p) / math.Expm1(-2*m*s)
	}
	// Rewritten for s < 0 so the denominator does not overflow.
	return math.Expm1(-2*m*s*p) * math.Exp(2*m*s) / -math.Expm1(2*m*s)
}

// ForModel returns the diffusion baseline for a run of spec in a population
// of n. HSE uses the haploid form. DSE uses the diploid form with the
// heterozygote coefficient, which is exact for additive selection, starting
// from one allele copy for an Aa introduction and two for AA. The
// environment-switching and two-effect models have no baseline and return
// ErrNoBaseline.
func ForModel(spec wrightfisher.ModelSpec, n int) (float64, error) {
	switch spec.Kind {
	case wrightfisher.HSE:
		return FixationProbability(n, spec.Selection, 1)
	case wrightfisher.DSE:
		if err := validate(n, spec.Heterozygote, 2); err != nil {
			return 0, err
		}
		m := float64(2 * n)
		copies := 2.0
		if spec.TraitIndex == 1 {
			copies = 1
		}
		return fixation(m, spec.Heterozygote, copies/m), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrNoBaseline, spec.Kind)
	}
}

// RelativeFixation returns FixationProbability divided by the neutral
// value 1/(ploidy·n).
func RelativeFixation(n int, s float64, ploidy int) (float64, error) {
	u, err := FixationProbability(n, s, ploidy)
	if err != nil {
		return 0, err
	}
	return u * float64(ploidy*n), nil
}

// Point is one sample of a selection sweep.
type Point struct {
	Selection   float64 `json:"selection"`
	Probability float64 `json:"probability"`
}

// Sweep evaluates FixationProbability at steps evenly spaced selection
// coefficients from lo to hi inclusive.
func Sweep(n, ploidy int, lo, hi float64, steps int) ([]Point, error) {
	if steps < 2 {
		return nil, fmt.Errorf("%w: sweep needs at least 2 steps, got %d", ErrInvalidInput, steps)
	}
	if !(lo < hi) {
		return nil, fmt.Errorf("%w: sweep range [%g, %g] is empty", ErrInvalidInput, lo, hi)
	}

	coefs := floats.Span(make([]float64, steps), lo, hi)
	points := make([]Point, steps)
	for i, s := range coefs {
		u, err := FixationProbability(n, s, ploidy)
		if err != nil {
			return nil, err
		}
		points[i] = Point{Selection: s, Probability: u}
	}
	return points, nil
}

func validate(n int, s float64, ploidy int) error {
	if n < 1 {
		return fmt.Errorf("%w: population size must be >= 1, got %d", ErrInvalidInput, n)
	}
	if !constants.ValidPloidies[ploidy] {
		return fmt.Errorf("%w: ploidy must be 1 or 2, got %d", ErrInvalidInput, ploidy)
	}
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: selection coefficient must be finite, got %g", ErrInvalidInput, s)
	}
	return nil
}
