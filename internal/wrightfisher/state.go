package wrightfisher

// FrequencyState is the per-replicate state of the population: [P(A)] for
// haploid models and [P(AA), P(Aa)] for the diploid model, with the resident
// mass left implicit.
type FrequencyState []float64

// NewFrequencyState returns a state of length dim with initial placed on
// traitIndex and every other component zero.
func NewFrequencyState(dim, traitIndex int, initial float64) FrequencyState {
	s := make(FrequencyState, dim)
	s[traitIndex] = initial
	return s
}

// AlleleFrequency returns the frequency of the A allele: P(A) for haploid
// states and P(AA) + P(Aa)/2 for diploid states. Extinction and fixation are
// judged on this value.
func (s FrequencyState) AlleleFrequency() float64 {
	if len(s) == 2 {
		return s[0] + 0.5*s[1]
	}
	return s[0]
}

// Clone returns an independent copy of s.
func (s FrequencyState) Clone() FrequencyState {
	c := make(FrequencyState, len(s))
	copy(c, s)
	return c
}
