package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("wrapped errors maintain identity", func(t *testing.T) {
		wrapped := fmt.Errorf("%w: experiment %q", ErrNotFound, "exp-1")
		require.ErrorIs(t, wrapped, ErrNotFound)

		joined := errors.Join(ErrConcurrentUpdate, errors.New("additional context"))
		require.ErrorIs(t, joined, ErrConcurrentUpdate)
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			ErrNotFound,
			ErrNoVariants,
			ErrInvalidExperiment,
			ErrAlreadyExists,
			ErrStoreUnavailable,
			ErrConcurrentUpdate,
			ErrInvalidConfig,
			ErrRepositoryRequired,
			ErrStickyStoreRequired,
			ErrPolicyRequired,
		}

		for i, err1 := range allErrors {
			for j, err2 := range allErrors {
				if i == j {
					require.True(t, errors.Is(err1, err2), "error should equal itself: %v", err1)
				} else {
					require.False(t, errors.Is(err1, err2), "errors should be distinct: %v vs %v", err1, err2)
				}
			}
		}
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "store unavailable", err: ErrStoreUnavailable, want: true},
		{name: "wrapped store unavailable", err: fmt.Errorf("load: %w", ErrStoreUnavailable), want: true},
		{name: "exhausted conflicts", err: fmt.Errorf("%w: %w", ErrStoreUnavailable, ErrConcurrentUpdate), want: true},
		{name: "bare conflict", err: ErrConcurrentUpdate, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "no variants", err: ErrNoVariants, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
