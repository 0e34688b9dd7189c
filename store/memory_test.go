package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	variotest "github.com/arloliu/vario/testing"
	"github.com/arloliu/vario/types"
)

func TestMemory(t *testing.T) {
	runRepositoryTests(t, func(*testing.T) types.ExperimentRepository { return NewMemory() })

	t.Run("cancelled context is unavailable", func(t *testing.T) {
		repo := NewMemory()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := repo.Load(ctx, "hero")
		require.ErrorIs(t, err, types.ErrStoreUnavailable)
	})

	t.Run("delete", func(t *testing.T) {
		repo := NewMemory()
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("gone", 1)))
		require.NoError(t, repo.Delete(ctx, "gone"))

		_, err := repo.Load(ctx, "gone")
		require.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestMemorySticky(t *testing.T) {
	runStickyTests(t, func(*testing.T) types.StickyStore { return NewMemorySticky() })

	t.Run("len", func(t *testing.T) {
		s := NewMemorySticky()
		_, err := s.Set(context.Background(), "a", "t1", "", "v")
		require.NoError(t, err)
		_, err = s.Set(context.Background(), "a", "t2", "", "v")
		require.NoError(t, err)
		require.Equal(t, 2, s.Len())
	})
}
