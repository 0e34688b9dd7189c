package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	variotest "github.com/arloliu/vario/testing"
	"github.com/arloliu/vario/types"
)

// runRepositoryTests exercises the ExperimentRepository contract.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) types.ExperimentRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("create then load round-trips", func(t *testing.T) {
		repo := newRepo(t)
		exp := variotest.NewExperiment("hero", 0.5, 0.5)
		exp.Variants[0].ContentRef = "<p>Hello</p>"

		require.NoError(t, repo.Create(ctx, exp))
		require.NotZero(t, exp.Revision)

		loaded, err := repo.Load(ctx, "hero")
		require.NoError(t, err)
		require.Equal(t, exp.Revision, loaded.Revision)
		require.Equal(t, exp.Variants, loaded.Variants)
		require.Equal(t, exp.Selector, loaded.Selector)
		require.Equal(t, exp.GoalSelector, loaded.GoalSelector)
	})

	t.Run("create rejects duplicates", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("dup", 1)))

		err := repo.Create(ctx, variotest.NewExperiment("dup", 1))
		require.ErrorIs(t, err, types.ErrAlreadyExists)
	})

	t.Run("load unknown id", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Load(ctx, "missing")
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("save advances the revision", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("rev", 1)))

		exp, err := repo.Load(ctx, "rev")
		require.NoError(t, err)
		before := exp.Revision

		exp.Variants[0].Impressions = 3
		require.NoError(t, repo.Save(ctx, exp))
		require.NotEqual(t, before, exp.Revision)

		loaded, err := repo.Load(ctx, "rev")
		require.NoError(t, err)
		require.Equal(t, uint64(3), loaded.Variants[0].Impressions)
		require.Equal(t, exp.Revision, loaded.Revision)
	})

	t.Run("save with stale revision conflicts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("cas", 1)))

		first, err := repo.Load(ctx, "cas")
		require.NoError(t, err)
		second, err := repo.Load(ctx, "cas")
		require.NoError(t, err)

		first.Variants[0].Impressions++
		require.NoError(t, repo.Save(ctx, first))

		second.Variants[0].Impressions++
		err = repo.Save(ctx, second)
		require.ErrorIs(t, err, types.ErrConcurrentUpdate)
		require.NotErrorIs(t, err, types.ErrStoreUnavailable)
	})

	t.Run("loaded experiments are independent copies", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("copy", 1)))

		a, err := repo.Load(ctx, "copy")
		require.NoError(t, err)
		a.Variants[0].Impressions = 99

		b, err := repo.Load(ctx, "copy")
		require.NoError(t, err)
		require.Zero(t, b.Variants[0].Impressions)
	})

	t.Run("exactly one concurrent save per revision wins", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, variotest.NewExperiment("race", 1)))

		const writers = 8
		snapshots := make([]*types.Experiment, writers)
		for i := range snapshots {
			exp, err := repo.Load(ctx, "race")
			require.NoError(t, err)
			snapshots[i] = exp
		}

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			conflicts atomic.Int32
		)
		for _, exp := range snapshots {
			wg.Go(func() {
				exp.Variants[0].Impressions++
				err := repo.Save(ctx, exp)
				switch {
				case err == nil:
					successes.Add(1)
				case isConflict(err):
					conflicts.Add(1)
				}
			})
		}
		wg.Wait()

		require.Equal(t, int32(1), successes.Load())
		require.Equal(t, int32(writers-1), conflicts.Load())
	})
}

func isConflict(err error) bool {
	return errors.Is(err, types.ErrConcurrentUpdate) && !types.IsRetryable(err)
}

// runStickyTests exercises the StickyStore contract.
func runStickyTests(t *testing.T, newSticky func(t *testing.T) types.StickyStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing mapping", func(t *testing.T) {
		s := newSticky(t)

		variantID, found, err := s.Get(ctx, "hero", "visitor-1")
		require.NoError(t, err)
		require.False(t, found)
		require.Empty(t, variantID)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newSticky(t)
		stored, err := s.Set(ctx, "hero", "visitor-1", "", "b")
		require.NoError(t, err)
		require.Equal(t, "b", stored)

		variantID, found, err := s.Get(ctx, "hero", "visitor-1")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "b", variantID)
	})

	t.Run("first mapping wins", func(t *testing.T) {
		s := newSticky(t)
		_, err := s.Set(ctx, "hero", "visitor-1", "", "a")
		require.NoError(t, err)

		stored, err := s.Set(ctx, "hero", "visitor-1", "", "b")
		require.NoError(t, err)
		require.Equal(t, "a", stored)

		variantID, _, err := s.Get(ctx, "hero", "visitor-1")
		require.NoError(t, err)
		require.Equal(t, "a", variantID)
	})

	t.Run("replaces matching previous", func(t *testing.T) {
		s := newSticky(t)
		_, err := s.Set(ctx, "hero", "visitor-1", "", "a")
		require.NoError(t, err)

		stored, err := s.Set(ctx, "hero", "visitor-1", "a", "b")
		require.NoError(t, err)
		require.Equal(t, "b", stored)

		// Stale previous loses
		stored, err = s.Set(ctx, "hero", "visitor-1", "a", "c")
		require.NoError(t, err)
		require.Equal(t, "b", stored)

		variantID, _, err := s.Get(ctx, "hero", "visitor-1")
		require.NoError(t, err)
		require.Equal(t, "b", variantID)
	})

	t.Run("concurrent writers agree", func(t *testing.T) {
		s := newSticky(t)

		const writers = 16
		results := make([]string, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				stored, err := s.Set(ctx, "hero", "visitor-1", "", fmt.Sprintf("v%d", i))
				assert.NoError(t, err)
				results[i] = stored
			}()
		}
		wg.Wait()

		variantID, found, err := s.Get(ctx, "hero", "visitor-1")
		require.NoError(t, err)
		require.True(t, found)
		for _, stored := range results {
			require.Equal(t, variantID, stored)
		}
	})

	t.Run("mappings are scoped per experiment", func(t *testing.T) {
		s := newSticky(t)
		_, err := s.Set(ctx, "hero", "visitor-1", "", "a")
		require.NoError(t, err)

		_, found, err := s.Get(ctx, "footer", "visitor-1")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("arbitrary tokens", func(t *testing.T) {
		s := newSticky(t)
		token := "user@example.com/ä b*>"
		_, err := s.Set(ctx, "hero", token, "", "a")
		require.NoError(t, err)

		variantID, found, err := s.Get(ctx, "hero", token)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "a", variantID)
	})
}
