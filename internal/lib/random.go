package lib

import (
	"hash/fnv"
	"math/rand/v2"
)

// Seeder hands out generators that are deterministic for a given seed and key.
type Seeder struct {
	seed uint64
}

func NewSeeder(seed uint64) Seeder {
	return Seeder{seed: seed}
}

// For returns a fresh generator seeded from the process seed and the given parts.
// Generators are not shared, so callers need no locking.
func (s Seeder) For(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return rand.New(rand.NewPCG(s.seed, h.Sum64()))
}

// Uniform draws from [lo, hi).
func Uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// IntBetween draws from [lo, hi] inclusive.
func IntBetween(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

func Pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}
