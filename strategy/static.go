package strategy

import "github.com/arloliu/vario/types"

// Static keeps the weights the experiment was created with.
//
// Counters still accumulate, so Static is a plain fixed-split A/B test.
type Static struct{}

var _ types.ReallocationPolicy = (*Static)(nil)

// NewStatic creates a new fixed-split policy.
func NewStatic() *Static {
	return &Static{}
}

// Recompute returns an unchanged copy of variants.
func (s *Static) Recompute(variants []types.Variant) []types.Variant {
	out := make([]types.Variant, len(variants))
	copy(out, variants)

	return out
}
