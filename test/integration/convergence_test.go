package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/vario/test/testutil"
	variotest "github.com/arloliu/vario/testing"
)

// TestConvergence_TrafficShiftsToBestVariant serves simulated visitors through
// two instances and checks that the best converting variant ends up with the
// exploitation share.
func TestConvergence_TrafficShiftsToBestVariant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 120*time.Second)
	defer cancel()

	cluster, _ := testutil.NewNATSCluster(t, 2)
	cluster.CreateExperiment(ctx, variotest.NewExperiment("hero", 1, 1, 1))

	result := testutil.GenerateTraffic(ctx, cluster.Services, testutil.TrafficConfig{
		ExperimentID:    "hero",
		Visitors:        10000,
		Concurrency:     8,
		ConversionRates: map[string]float64{"v0": 0.02, "v1": 0.12, "v2": 0.03},
		Seed:            7,
	})
	require.Zero(t, result.Errors)

	stats, err := cluster.Service(0).GetStats(ctx, "hero")
	require.NoError(t, err)

	testutil.AssertCounters(t, stats, result.Impressions, result.Conversions)
	testutil.AssertExperimentConsistent(t, stats)

	// epsilon 0.1, n 3: best gets 1 - 0.1*2/3
	require.InDelta(t, 1-0.1*2/3.0, stats.Variants[1].Weight, 1e-9)
	require.Greater(t, stats.Variants[1].Impressions, stats.Variants[0].Impressions+stats.Variants[2].Impressions)
}
