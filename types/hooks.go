package types

import "context"

// Hooks defines callbacks for service events.
//
// All hooks are optional and called asynchronously in background goroutines
// so they never extend the latency of the triggering request.
//
// Hook execution behavior:
//   - Hooks receive a context detached from the request
//   - Hook errors are logged but don't fail the triggering operation
//   - Hooks may run concurrently with each other
//
// Example:
//
//	hooks := &vario.Hooks{
//	    OnWeightsChanged: func(ctx context.Context, experimentID string, before, after []vario.Variant) error {
//	        return audit.Record(ctx, experimentID, after)
//	    },
//	}
type Hooks struct {
	// OnWeightsChanged is called after a reallocation changed at least one weight.
	// before and after are independent copies.
	OnWeightsChanged func(ctx context.Context, experimentID string, before, after []Variant) error

	// OnError is called when an operation fails with a non-validation error.
	OnError func(ctx context.Context, err error) error
}
