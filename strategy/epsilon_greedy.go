package strategy

import (
	"math"

	"github.com/arloliu/vario/types"
)

// DefaultEpsilon is the exploration share used when none is configured.
const DefaultEpsilon = 0.1

// EpsilonGreedy implements the epsilon-greedy bandit reallocation policy.
//
// The best variant (highest conversions / max(1, impressions), lowest index
// on ties) receives 1-ε+ε/n of the traffic; every other variant receives ε/n.
type EpsilonGreedy struct {
	epsilon float64
}

var _ types.ReallocationPolicy = (*EpsilonGreedy)(nil)

// EpsilonGreedyOption configures an EpsilonGreedy policy.
type EpsilonGreedyOption func(*EpsilonGreedy)

// NewEpsilonGreedy creates a new epsilon-greedy policy.
//
// An epsilon outside [0, 1] (or NaN) falls back to DefaultEpsilon; use New to
// get an error instead.
//
// Parameters:
//   - opts: Optional configuration (WithEpsilon)
//
// Returns:
//   - *EpsilonGreedy: Initialized policy ready for use
//
// Example:
//
//	policy := strategy.NewEpsilonGreedy(strategy.WithEpsilon(0.2))
//	svc, err := vario.NewService(cfg, repo, sticky, policy)
func NewEpsilonGreedy(opts ...EpsilonGreedyOption) *EpsilonGreedy {
	eg := &EpsilonGreedy{epsilon: DefaultEpsilon}

	for _, opt := range opts {
		if opt != nil {
			opt(eg)
		}
	}

	if !ValidEpsilon(eg.epsilon) {
		eg.epsilon = DefaultEpsilon
	}

	return eg
}

// WithEpsilon sets the exploration share.
func WithEpsilon(epsilon float64) EpsilonGreedyOption {
	return func(eg *EpsilonGreedy) {
		eg.epsilon = epsilon
	}
}

// Epsilon returns the configured exploration share.
func (eg *EpsilonGreedy) Epsilon() float64 {
	return eg.epsilon
}

// Recompute returns a copy of variants with epsilon-greedy weights.
//
// The algorithm:
//  1. rate_i = conversions_i / max(1, impressions_i)
//  2. best = argmax rate_i, ties broken by lowest index
//  3. weight_best = 1-ε+ε/n, weight_i = ε/n otherwise
//
// Parameters:
//   - variants: Snapshot of the experiment's variants (not modified)
//
// Returns:
//   - []types.Variant: New slice in the same order with updated weights
//
// Example:
//
//	// A: 40/100, B: 10/100, ε=0.1 → A=0.95, B=0.05
//	next := policy.Recompute(exp.Variants)
func (eg *EpsilonGreedy) Recompute(variants []types.Variant) []types.Variant {
	n := len(variants)
	out := make([]types.Variant, n)
	copy(out, variants)

	if n == 0 {
		return out
	}

	best := BestIndex(variants)
	explore := eg.epsilon / float64(n)

	for i := range out {
		out[i].Weight = explore
	}
	// Computed as the remainder so the weights sum to one.
	out[best].Weight = math.Max(0, 1-explore*float64(n-1))

	return out
}

// BestIndex returns the index of the variant with the highest conversion rate.
//
// Ties are broken by the lowest index. Returns -1 for an empty slice.
func BestIndex(variants []types.Variant) int {
	if len(variants) == 0 {
		return -1
	}

	best := 0
	bestRate := variants[0].Rate()

	for i := 1; i < len(variants); i++ {
		if rate := variants[i].Rate(); rate > bestRate {
			best = i
			bestRate = rate
		}
	}

	return best
}

// ValidEpsilon reports whether epsilon is a usable exploration share.
func ValidEpsilon(epsilon float64) bool {
	return !math.IsNaN(epsilon) && epsilon >= 0 && epsilon <= 1
}
