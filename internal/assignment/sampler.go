package assignment

import (
	"math/rand/v2"
	"sync"

	"github.com/arloliu/vario/internal/hash"
	"github.com/arloliu/vario/types"
)

// RandomSampler draws uniform values from a seeded PCG generator.
type RandomSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ types.Sampler = (*RandomSampler)(nil)

// NewRandomSampler creates a pseudo-random sampler.
//
// Parameters:
//   - seed: Generator seed; 0 picks a random seed
//
// Returns:
//   - *RandomSampler: Sampler safe for concurrent use
func NewRandomSampler(seed uint64) *RandomSampler {
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &RandomSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // sampling, not crypto
}

// Sample returns the next value in [0, 1).
func (s *RandomSampler) Sample(_, _ string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.Float64()
}

// HashSampler derives the draw from the experiment id and visitor token.
//
// Losing a sticky mapping and re-sampling the same token reproduces the
// previous choice as long as the weights have not changed.
type HashSampler struct {
	seed uint64
}

var _ types.Sampler = (*HashSampler)(nil)

// NewHashSampler creates a deterministic sampler.
//
// Parameters:
//   - seed: xxh3 seed; deployments sharing a seed agree on every draw
func NewHashSampler(seed uint64) *HashSampler {
	return &HashSampler{seed: seed}
}

// Sample returns hash.Unit of the experiment id and token.
func (s *HashSampler) Sample(experimentID, token string) float64 {
	return hash.Unit(s.seed, experimentID, token)
}

// NewSampler builds a sampler by name: "random" (default) or "hash".
func NewSampler(kind string, seed uint64) (types.Sampler, bool) {
	switch kind {
	case "", "random":
		return NewRandomSampler(seed), true
	case "hash":
		return NewHashSampler(seed), true
	default:
		return nil, false
	}
}
