package types

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestExperiment() *Experiment {
	return &Experiment{
		ID:   "homepage-hero",
		Name: "Homepage hero",
		Variants: []Variant{
			{ID: "a", Name: "Control", Weight: 0.5},
			{ID: "b", Name: "Challenger", Weight: 0.5},
		},
	}
}

func TestVariant_Rate(t *testing.T) {
	t.Run("divides conversions by impressions", func(t *testing.T) {
		v := Variant{Impressions: 100, Conversions: 40}
		require.InDelta(t, 0.4, v.Rate(), 1e-12)
	})

	t.Run("floors impressions at one", func(t *testing.T) {
		v := Variant{Impressions: 0, Conversions: 3}
		require.InDelta(t, 3.0, v.Rate(), 1e-12)
	})

	t.Run("zero counters yield zero", func(t *testing.T) {
		require.Zero(t, Variant{}.Rate())
	})
}

func TestExperiment_Validate(t *testing.T) {
	t.Run("accepts a well-formed experiment", func(t *testing.T) {
		require.NoError(t, newTestExperiment().Validate())
	})

	t.Run("rejects empty variants with ErrNoVariants", func(t *testing.T) {
		exp := newTestExperiment()
		exp.Variants = nil

		err := exp.Validate()
		require.ErrorIs(t, err, ErrInvalidExperiment)
		require.ErrorIs(t, err, ErrNoVariants)
	})

	t.Run("rejects invalid experiment ids", func(t *testing.T) {
		for _, id := range []string{"", "has space", "slash/id", "dot.id", strings.Repeat("x", MaxIDLength+1)} {
			exp := newTestExperiment()
			exp.ID = id
			require.ErrorIs(t, exp.Validate(), ErrInvalidExperiment, "id %q", id)
		}
	})

	t.Run("rejects duplicate variant ids", func(t *testing.T) {
		exp := newTestExperiment()
		exp.Variants[1].ID = "a"
		require.ErrorIs(t, exp.Validate(), ErrInvalidExperiment)
	})

	t.Run("rejects bad weights", func(t *testing.T) {
		for _, w := range []float64{-0.1, math.NaN(), math.Inf(1)} {
			exp := newTestExperiment()
			exp.Variants[0].Weight = w
			require.ErrorIs(t, exp.Validate(), ErrInvalidExperiment, "weight %v", w)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		exp := newTestExperiment()
		exp.Status = "paused"
		require.ErrorIs(t, exp.Validate(), ErrInvalidExperiment)
	})
}

func TestExperiment_NormalizeWeights(t *testing.T) {
	t.Run("rescales to sum one", func(t *testing.T) {
		exp := newTestExperiment()
		exp.Variants[0].Weight = 3
		exp.Variants[1].Weight = 1

		exp.NormalizeWeights()

		require.InDelta(t, 0.75, exp.Variants[0].Weight, 1e-12)
		require.InDelta(t, 0.25, exp.Variants[1].Weight, 1e-12)
		require.InDelta(t, 1.0, exp.TotalWeight(), WeightTolerance)
	})

	t.Run("all-zero weights become uniform", func(t *testing.T) {
		exp := &Experiment{ID: "e", Variants: []Variant{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

		exp.NormalizeWeights()

		for _, v := range exp.Variants {
			require.InDelta(t, 1.0/3.0, v.Weight, 1e-12)
		}
		require.InDelta(t, 1.0, exp.TotalWeight(), WeightTolerance)
	})

	t.Run("empty experiment is a no-op", func(t *testing.T) {
		exp := &Experiment{ID: "e"}
		exp.NormalizeWeights()
		require.Empty(t, exp.Variants)
	})
}

func TestExperiment_Helpers(t *testing.T) {
	t.Run("variant index", func(t *testing.T) {
		exp := newTestExperiment()
		require.Equal(t, 1, exp.VariantIndex("b"))
		require.Equal(t, -1, exp.VariantIndex("missing"))
	})

	t.Run("status", func(t *testing.T) {
		exp := newTestExperiment()
		require.True(t, exp.IsActive())

		exp.Status = StatusActive
		require.True(t, exp.IsActive())

		exp.Status = StatusRetired
		require.False(t, exp.IsActive())
	})

	t.Run("clone is independent", func(t *testing.T) {
		exp := newTestExperiment()
		exp.Revision = 7

		c := exp.Clone()
		c.Variants[0].Impressions = 42

		require.Zero(t, exp.Variants[0].Impressions)
		require.Equal(t, uint64(7), c.Revision)
		require.Nil(t, (*Experiment)(nil).Clone())
	})
}
