package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	variotest "github.com/arloliu/vario/testing"
	"github.com/arloliu/vario/types"
)

func TestNATSKV(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) types.ExperimentRepository {
		_, nc := variotest.StartEmbeddedNATS(t)
		return NewNATSKV(variotest.CreateJetStreamKV(t, nc, "experiments"))
	})

	t.Run("open creates the bucket once", func(t *testing.T) {
		_, nc := variotest.StartEmbeddedNATS(t)
		js := variotest.NewJetStream(t, nc)
		ctx := context.Background()

		first, err := OpenNATSKV(ctx, js, "vario-experiments")
		require.NoError(t, err)
		require.NoError(t, first.Create(ctx, variotest.NewExperiment("hero", 1)))

		second, err := OpenNATSKV(ctx, js, "vario-experiments")
		require.NoError(t, err)

		_, err = second.Load(ctx, "hero")
		require.NoError(t, err)
	})

	t.Run("save after delete conflicts", func(t *testing.T) {
		_, nc := variotest.StartEmbeddedNATS(t)
		repo := NewNATSKV(variotest.CreateJetStreamKV(t, nc, "experiments"))
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("gone", 1)))
		exp, err := repo.Load(ctx, "gone")
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "gone"))

		require.ErrorIs(t, repo.Save(ctx, exp), types.ErrConcurrentUpdate)

		_, err = repo.Load(ctx, "gone")
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("closed connection is unavailable", func(t *testing.T) {
		_, nc := variotest.StartEmbeddedNATS(t)
		repo := NewNATSKV(variotest.CreateJetStreamKV(t, nc, "experiments"))
		nc.Close()

		_, err := repo.Load(context.Background(), "hero")
		require.ErrorIs(t, err, types.ErrStoreUnavailable)
		require.True(t, types.IsRetryable(err))
	})

	t.Run("two connections share state", func(t *testing.T) {
		ns, nc1 := variotest.StartEmbeddedNATS(t)
		nc2 := variotest.Connect(t, ns)
		ctx := context.Background()

		repo1, err := OpenNATSKV(ctx, variotest.NewJetStream(t, nc1), "shared")
		require.NoError(t, err)
		repo2, err := OpenNATSKV(ctx, variotest.NewJetStream(t, nc2), "shared")
		require.NoError(t, err)

		require.NoError(t, repo1.Create(ctx, variotest.NewExperiment("hero", 1)))
		stale, err := repo2.Load(ctx, "hero")
		require.NoError(t, err)

		fresh, err := repo1.Load(ctx, "hero")
		require.NoError(t, err)
		require.NoError(t, repo1.Save(ctx, fresh))

		require.ErrorIs(t, repo2.Save(ctx, stale), types.ErrConcurrentUpdate)
	})
}

func TestNATSKVSticky(t *testing.T) {
	runStickyTests(t, func(t *testing.T) types.StickyStore {
		_, nc := variotest.StartEmbeddedNATS(t)
		s, err := OpenNATSKVSticky(context.Background(), variotest.NewJetStream(t, nc), "sticky")
		require.NoError(t, err)

		return s
	})

	t.Run("keys are valid for any token", func(t *testing.T) {
		key := stickyKVKey("hero", "a.b c/*>")
		require.Regexp(t, `^sticky\.hero\.[A-Za-z0-9_-]+$`, key)
	})
}
