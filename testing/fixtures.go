package testing

import (
	"fmt"

	"github.com/arloliu/vario/types"
)

// NewExperiment builds an active experiment with one variant per weight.
//
// Variants are named "v0", "v1", ... in order. Weights are used as given;
// call NormalizeWeights if the caller needs them to sum to one.
//
// Example:
//
//	exp := variotest.NewExperiment("hero", 0.7, 0.2, 0.1)
func NewExperiment(id string, weights ...float64) *types.Experiment {
	exp := &types.Experiment{
		ID:           id,
		Name:         id,
		Selector:     "#" + id,
		GoalSelector: "#" + id + "-goal",
		Status:       types.StatusActive,
		Variants:     make([]types.Variant, len(weights)),
	}

	for i, w := range weights {
		exp.Variants[i] = types.Variant{
			ID:     fmt.Sprintf("v%d", i),
			Name:   fmt.Sprintf("Variant %d", i),
			Weight: w,
		}
	}

	return exp
}
