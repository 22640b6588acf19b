package wrightfisher

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// sampleBinomial draws the number of successes in n trials with success
// probability p. The edges p <= 0 and p >= 1 are deterministic.
func sampleBinomial(n int, p float64, src rand.Source) int {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	k := int(distuv.Binomial{N: float64(n), P: p, Src: src}.Rand())
	// Guard the float conversion at the boundaries.
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}

// sampleMultinomial distributes n trials over len(probs) categories and
// writes the counts into counts. probs must sum to 1. Categories are drawn
// as a chain of conditional binomials, the last one taking the remainder.
func sampleMultinomial(n int, probs []float64, src rand.Source, counts []int) {
	left := n
	remaining := 1.0
	last := len(probs) - 1
	for i := 0; i < last; i++ {
		if left == 0 || remaining <= 0 {
			counts[i] = 0
			continue
		}
		p := probs[i] / remaining
		counts[i] = sampleBinomial(left, p, src)
		left -= counts[i]
		remaining -= probs[i]
	}
	counts[last] = left
}
