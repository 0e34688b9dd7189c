package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/arloliu/vario/types"
)

func sumWeights(variants []types.Variant) float64 {
	total := 0.0
	for _, v := range variants {
		total += v.Weight
	}

	return total
}

func TestEpsilonGreedy_Recompute(t *testing.T) {
	t.Run("shifts traffic to the best variant", func(t *testing.T) {
		policy := NewEpsilonGreedy(WithEpsilon(0.1))
		variants := []types.Variant{
			{ID: "a", Impressions: 100, Conversions: 40, Weight: 0.5},
			{ID: "b", Impressions: 100, Conversions: 10, Weight: 0.5},
		}

		next := policy.Recompute(variants)

		require.InDelta(t, 0.95, next[0].Weight, 1e-12)
		require.InDelta(t, 0.05, next[1].Weight, 1e-12)
	})

	t.Run("ties favor the lowest index", func(t *testing.T) {
		policy := NewEpsilonGreedy()
		variants := []types.Variant{
			{ID: "a", Impressions: 50, Conversions: 5},
			{ID: "b", Impressions: 100, Conversions: 10},
			{ID: "c", Impressions: 10, Conversions: 1},
		}

		for range 10 {
			next := policy.Recompute(variants)
			require.InDelta(t, 1-0.1+0.1/3, next[0].Weight, 1e-12)
			require.InDelta(t, 0.1/3, next[1].Weight, 1e-12)
			require.InDelta(t, 0.1/3, next[2].Weight, 1e-12)
		}
	})

	t.Run("zero impressions are floored at one", func(t *testing.T) {
		policy := NewEpsilonGreedy()
		variants := []types.Variant{
			{ID: "a", Impressions: 10, Conversions: 5},
			{ID: "b", Impressions: 0, Conversions: 1},
		}

		next := policy.Recompute(variants)

		require.Equal(t, 1, BestIndex(variants))
		require.Greater(t, next[1].Weight, next[0].Weight)
	})

	t.Run("single variant takes everything", func(t *testing.T) {
		next := NewEpsilonGreedy().Recompute([]types.Variant{{ID: "only"}})
		require.InDelta(t, 1.0, next[0].Weight, 1e-12)
	})

	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, NewEpsilonGreedy().Recompute(nil))
		require.Equal(t, -1, BestIndex(nil))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		variants := []types.Variant{
			{ID: "a", Impressions: 1, Conversions: 1, Weight: 0.5},
			{ID: "b", Weight: 0.5},
		}

		next := NewEpsilonGreedy().Recompute(variants)

		require.InDelta(t, 0.5, variants[0].Weight, 0)
		require.InDelta(t, 0.5, variants[1].Weight, 0)
		require.Equal(t, "a", next[0].ID)
		require.Equal(t, uint64(1), next[0].Conversions)
	})

	t.Run("epsilon zero is pure greedy", func(t *testing.T) {
		next := NewEpsilonGreedy(WithEpsilon(0)).Recompute([]types.Variant{
			{ID: "a"},
			{ID: "b", Impressions: 1, Conversions: 1},
		})
		require.InDelta(t, 0.0, next[0].Weight, 0)
		require.InDelta(t, 1.0, next[1].Weight, 0)
	})

	t.Run("invalid epsilon falls back to default", func(t *testing.T) {
		require.InDelta(t, DefaultEpsilon, NewEpsilonGreedy(WithEpsilon(1.5)).Epsilon(), 0)
		require.InDelta(t, DefaultEpsilon, NewEpsilonGreedy(WithEpsilon(math.NaN())).Epsilon(), 0)
		require.InDelta(t, DefaultEpsilon, NewEpsilonGreedy(nil).Epsilon(), 0)
	})
}

func TestEpsilonGreedy_WeightConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		epsilon := rapid.Float64Range(0, 1).Draw(rt, "epsilon")
		n := rapid.IntRange(1, 50).Draw(rt, "n")

		variants := make([]types.Variant, n)
		for i := range variants {
			variants[i] = types.Variant{
				ID:          rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "id"),
				Impressions: rapid.Uint64Range(0, 1_000_000).Draw(rt, "impressions"),
				Conversions: rapid.Uint64Range(0, 1_000_000).Draw(rt, "conversions"),
				Weight:      rapid.Float64Range(0, 1).Draw(rt, "weight"),
			}
		}

		next := NewEpsilonGreedy(WithEpsilon(epsilon)).Recompute(variants)

		if len(next) != n {
			rt.Fatalf("expected %d variants, got %d", n, len(next))
		}
		if sum := sumWeights(next); math.Abs(sum-1) > types.WeightTolerance {
			rt.Fatalf("weights sum to %v", sum)
		}
		for i := range next {
			if next[i].Weight < 0 || next[i].Weight > 1 {
				rt.Fatalf("weight %d out of range: %v", i, next[i].Weight)
			}
			if next[i].Impressions != variants[i].Impressions || next[i].Conversions != variants[i].Conversions {
				rt.Fatalf("counters changed at %d", i)
			}
		}

		best := BestIndex(variants)
		for i := range next {
			if i != best && next[i].Weight > next[best].Weight {
				rt.Fatalf("variant %d outweighs best %d", i, best)
			}
		}
	})
}

func TestStatic_Recompute(t *testing.T) {
	variants := []types.Variant{
		{ID: "a", Impressions: 100, Conversions: 90, Weight: 0.3},
		{ID: "b", Impressions: 100, Conversions: 1, Weight: 0.7},
	}

	next := NewStatic().Recompute(variants)
	require.Equal(t, variants, next)

	next[0].Weight = 1
	require.InDelta(t, 0.3, variants[0].Weight, 0)
}

func TestNew(t *testing.T) {
	t.Run("defaults to epsilon-greedy", func(t *testing.T) {
		policy, err := New("", 0.2)
		require.NoError(t, err)

		eg, ok := policy.(*EpsilonGreedy)
		require.True(t, ok)
		require.InDelta(t, 0.2, eg.Epsilon(), 0)
	})

	t.Run("static", func(t *testing.T) {
		policy, err := New("Static", 0)
		require.NoError(t, err)
		require.IsType(t, &Static{}, policy)
	})

	t.Run("rejects invalid epsilon", func(t *testing.T) {
		_, err := New(PolicyEpsilonGreedy, -0.1)
		require.ErrorIs(t, err, ErrInvalidEpsilon)
	})

	t.Run("rejects unknown policy", func(t *testing.T) {
		_, err := New("thompson", 0.1)
		require.ErrorIs(t, err, ErrUnknownPolicy)
	})
}
