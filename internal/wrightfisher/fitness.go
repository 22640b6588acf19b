package wrightfisher

import "fmt"

// FitnessVector holds the relative fitnesses of the alleles, genotypes or
// allele/environment combinations of a model variant.
type FitnessVector []float64

// HaploidFitness returns [w_A, w_a] = [1+s, 1].
func HaploidFitness(s float64) FitnessVector {
	return FitnessVector{1.0 + s, 1.0}
}

// DiploidFitness returns the genotype fitnesses [w_AA, w_Aa, w_aa].
func DiploidFitness(homozygote, heterozygote float64) FitnessVector {
	return FitnessVector{1.0 + homozygote, 1.0 + heterozygote, 1.0}
}

// TwoEnvironmentFitness returns [w_A1, w_A2, w_a1, w_a2], the fitness of
// each allele in environments 1 and 2.
func TwoEnvironmentFitness(aEnv1, aEnv2, residentEnv1, residentEnv2 float64) FitnessVector {
	return FitnessVector{
		1.0 + aEnv1,
		1.0 + aEnv2,
		1.0 + residentEnv1,
		1.0 + residentEnv2,
	}
}

// TwoEffectFitness returns [w_A, w_a] where each allele's fitness is the sum
// of two additive effects.
func TwoEffectFitness(a1, a2, resident1, resident2 float64) FitnessVector {
	return FitnessVector{
		1.0 + a1 + a2,
		1.0 + resident1 + resident2,
	}
}

// validate rejects negative entries and any group of entries that sums to
// zero. groups lists index sets that are normalised together by the
// selection step.
func (f FitnessVector) validate(groups ...[]int) error {
	for i, w := range f {
		if w < 0 {
			return fmt.Errorf("%w: fitness[%d] = %g", ErrNegativeFitness, i, w)
		}
	}
	for _, g := range groups {
		allZero := true
		for _, i := range g {
			if f[i] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			return fmt.Errorf("%w: indices %v", ErrZeroFitness, g)
		}
	}
	return nil
}
