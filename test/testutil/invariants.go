package testutil

import (
	"math"
	"testing"

	"github.com/arloliu/vario/types"
)

// AssertExperimentConsistent verifies the structural invariants every stored
// experiment must hold: unique variant ids, weights in [0, 1] and a weight
// sum of one within types.WeightTolerance.
//
// Parameters:
//   - t: testing handle
//   - exp: experiment snapshot
func AssertExperimentConsistent(t testing.TB, exp *types.Experiment) {
	t.Helper()

	if len(exp.Variants) == 0 {
		t.Fatalf("experiment %s has no variants", exp.ID)
	}

	seen := make(map[string]struct{}, len(exp.Variants))
	sum := 0.0
	for _, v := range exp.Variants {
		if _, ok := seen[v.ID]; ok {
			t.Fatalf("duplicate variant detected: %s", v.ID)
		}
		seen[v.ID] = struct{}{}

		if v.Weight < 0 || v.Weight > 1 || math.IsNaN(v.Weight) {
			t.Fatalf("variant %s weight %v outside [0, 1]", v.ID, v.Weight)
		}
		sum += v.Weight
	}

	if math.Abs(sum-1) > types.WeightTolerance {
		t.Fatalf("weights of %s sum to %v, expected 1", exp.ID, sum)
	}
}

// AssertCounters verifies that stored counters equal the expected per-variant
// totals. Variants missing from a map are expected to be zero.
func AssertCounters(t testing.TB, exp *types.Experiment, impressions, conversions map[string]uint64) {
	t.Helper()

	for _, v := range exp.Variants {
		if v.Impressions != impressions[v.ID] {
			t.Fatalf("variant %s impressions = %d, expected %d", v.ID, v.Impressions, impressions[v.ID])
		}
		if v.Conversions != conversions[v.ID] {
			t.Fatalf("variant %s conversions = %d, expected %d", v.ID, v.Conversions, conversions[v.ID])
		}
	}
}
