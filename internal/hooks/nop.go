// Package hooks provides default types.Hooks implementations.
package hooks

import (
	"context"

	"github.com/arloliu/vario/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, string, []types.Variant, []types.Variant) error = (*NopHooks)(nil).OnWeightsChanged
	_ func(context.Context, error) error                                   = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnWeightsChanged: h.OnWeightsChanged,
		OnError:          h.OnError,
	}
}

// Merge fills the nil callbacks of h with no-op implementations.
//
// Parameters:
//   - h: Caller supplied hooks, may be nil
//
// Returns:
//   - types.Hooks: Hooks where every callback is non-nil
func Merge(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnWeightsChanged != nil {
		out.OnWeightsChanged = h.OnWeightsChanged
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}

// OnWeightsChanged is a no-op implementation.
func (h *NopHooks) OnWeightsChanged(_ context.Context, _ string, _, _ []types.Variant) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
