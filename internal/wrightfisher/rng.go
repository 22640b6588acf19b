package wrightfisher

import (
	"math/rand/v2"
	"time"
)

// NewSeed returns a fresh run seed mixing the runtime's entropy-seeded
// generator with the wall clock.
func NewSeed() uint64 {
	seed := splitmix64(rand.Uint64() ^ uint64(time.Now().UnixNano()))
	if seed == 0 {
		seed = 1
	}
	return seed
}

// ReplicateRand returns the PRNG stream owned by one replicate. Streams for
// different indices of the same seed are independent, and the same
// (seed, index) pair always yields the same stream.
func ReplicateRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, splitmix64(seed^uint64(index))))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
