package choice

import (
	"math"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// RandSource is the non-deterministic backend: draws are uniform in range and
// consumption-free, and Remaining always reports unbounded so the
// minimum-bytes guard never trips.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource returns a RandSource seeded deterministically from the
// provided int64. The two 64-bit PCG seeds are derived with a splitmix-style
// finalizer so call sites get reproducible sequences for a given seed.
func NewRandSource(seed int64) *RandSource {
	u := uint64(seed)
	return &RandSource{rng: rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

// IntRange returns a uniform integer in [min, max] inclusive.
func (s *RandSource) IntRange(min, max int) int {
	return min + s.rng.IntN(max-min+1)
}

// Pick returns a uniform index in [0, n).
func (s *RandSource) Pick(n int) int {
	return s.IntRange(1, n) - 1
}

// Remaining reports unbounded input.
func (s *RandSource) Remaining() int {
	return math.MaxInt
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
