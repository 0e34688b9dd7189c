package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/arloliu/vario/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnWeightsChanged)
	require.NotNil(t, hooks.OnError)

	ctx := context.Background()
	before := []types.Variant{{ID: "a", Weight: 0.5}, {ID: "b", Weight: 0.5}}
	after := []types.Variant{{ID: "a", Weight: 0.95}, {ID: "b", Weight: 0.05}}

	require.NoError(t, hooks.OnWeightsChanged(ctx, "hero", before, after))
	require.NoError(t, hooks.OnError(ctx, context.Canceled))
}

func TestMerge(t *testing.T) {
	t.Run("nil hooks become no-ops", func(t *testing.T) {
		merged := Merge(nil)
		require.NotNil(t, merged.OnWeightsChanged)
		require.NotNil(t, merged.OnError)
	})

	t.Run("keeps caller callbacks", func(t *testing.T) {
		errHook := errors.New("hook failed")
		merged := Merge(&types.Hooks{
			OnError: func(context.Context, error) error { return errHook },
		})

		require.ErrorIs(t, merged.OnError(context.Background(), nil), errHook)
		require.NoError(t, merged.OnWeightsChanged(context.Background(), "hero", nil, nil))
	})
}
