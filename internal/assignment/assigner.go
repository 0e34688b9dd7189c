package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arloliu/vario/internal/logging"
	"github.com/arloliu/vario/types"
)

// Assigner resolves sticky mappings and samples fresh visitors.
type Assigner struct {
	sticky   types.StickyStore
	sampler  types.Sampler
	logger   types.Logger
	newToken func() string
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(a *Assigner) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTokenGenerator overrides how visitor tokens are minted.
func WithTokenGenerator(fn func() string) Option {
	return func(a *Assigner) {
		if fn != nil {
			a.newToken = fn
		}
	}
}

// NewAssigner creates an Assigner.
//
// Parameters:
//   - sticky: Caller-owned sticky store (read only; the caller persists fresh choices)
//   - sampler: Source of uniform draws (NewRandomSampler(0) when nil)
//   - opts: Optional configuration
//
// Returns:
//   - *Assigner: Ready to use, safe for concurrent calls
func NewAssigner(sticky types.StickyStore, sampler types.Sampler, opts ...Option) *Assigner {
	if sampler == nil {
		sampler = NewRandomSampler(0)
	}

	a := &Assigner{
		sticky:   sticky,
		sampler:  sampler,
		logger:   logging.NewNop(),
		newToken: uuid.NewString,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Choose returns the variant for token.
//
// An existing sticky mapping wins as long as the variant still exists. A
// mapping to a removed variant is ignored and the visitor is re-sampled.
// An empty token is replaced with a freshly minted one.
//
// Parameters:
//   - ctx: Context for the sticky lookup
//   - exp: Experiment snapshot (not modified)
//   - token: Visitor token, may be empty
//
// Returns:
//   - types.Choice: Chosen variant, the token to persist, Fresh=true when sampled
//   - error: types.ErrNoVariants, or a sticky store error
func (a *Assigner) Choose(ctx context.Context, exp *types.Experiment, token string) (types.Choice, error) {
	if len(exp.Variants) == 0 {
		return types.Choice{}, fmt.Errorf("experiment %q: %w", exp.ID, types.ErrNoVariants)
	}

	if token != "" {
		variantID, found, err := a.sticky.Get(ctx, exp.ID, token)
		if err != nil {
			return types.Choice{}, err
		}

		if found {
			if exp.VariantIndex(variantID) >= 0 {
				return types.Choice{ExperimentID: exp.ID, VariantID: variantID, Token: token}, nil
			}
			a.logger.Debug("sticky variant no longer exists, resampling",
				"experiment", exp.ID, "variant", variantID)
		}
	} else {
		token = a.newToken()
	}

	idx := SelectIndex(exp.Variants, a.sampler.Sample(exp.ID, token))

	return types.Choice{
		ExperimentID: exp.ID,
		VariantID:    exp.Variants[idx].ID,
		Token:        token,
		Fresh:        true,
	}, nil
}

// SelectIndex performs weighted selection for a draw u in [0, 1).
//
// Non-positive weights are skipped. When no weight is positive the variants
// are treated as uniform. Floating point residue falls back to the last
// positive-weight variant. variants must be non-empty.
func SelectIndex(variants []types.Variant, u float64) int {
	total := 0.0
	last := -1
	for i, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
			last = i
		}
	}

	if total <= 0 {
		idx := int(u * float64(len(variants)))
		return min(max(idx, 0), len(variants)-1)
	}

	r := u * total
	running := 0.0
	for i, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		running += v.Weight
		if running >= r {
			return i
		}
	}

	return last
}
