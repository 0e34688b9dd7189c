package integration_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/vario/test/testutil"
	variotest "github.com/arloliu/vario/testing"
)

// hammerImpressions sends total impressions for variant v0, spread over every
// instance of the cluster, all at once.
func hammerImpressions(t *testing.T, cluster *testutil.Cluster, experimentID string, total int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, total)
	for i := range total {
		svc := cluster.Service(i % len(cluster.Services))
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.RecordImpression(ctx, experimentID, "v0")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

// TestSharedNATS_ConcurrentImpressionsExact verifies that two services sharing
// one NATS KV bucket never lose an update.
func TestSharedNATS_ConcurrentImpressionsExact(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	cluster, _ := testutil.NewNATSCluster(t, 2)
	cluster.CreateExperiment(t.Context(), variotest.NewExperiment("shared", 1, 1))

	hammerImpressions(t, cluster, "shared", 1000)

	for _, svc := range cluster.Services {
		stats, err := svc.GetStats(t.Context(), "shared")
		require.NoError(t, err)
		testutil.AssertCounters(t, stats, map[string]uint64{"v0": 1000}, nil)
		testutil.AssertExperimentConsistent(t, stats)
	}
}

// TestSharedSQLite_ConcurrentImpressionsExact verifies the same guarantee for
// services with separate connection pools on one SQLite file.
func TestSharedSQLite_ConcurrentImpressionsExact(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	cluster := testutil.NewSQLiteCluster(t, 2)
	cluster.CreateExperiment(t.Context(), variotest.NewExperiment("shared", 1, 1))

	hammerImpressions(t, cluster, "shared", 1000)

	stats, err := cluster.Service(1).GetStats(t.Context(), "shared")
	require.NoError(t, err)
	testutil.AssertCounters(t, stats, map[string]uint64{"v0": 1000}, nil)
}

// TestSharedNATS_ConversionsAcrossInstances verifies that conversions from
// three instances are all counted and every stored record keeps consistent
// weights.
func TestSharedNATS_ConversionsAcrossInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	defer cancel()

	cluster, _ := testutil.NewNATSCluster(t, 3)
	cluster.CreateExperiment(ctx, variotest.NewExperiment("conv", 1, 1, 1))

	// v0 and v1 convert equally often, v2 never
	expected := map[string]uint64{}
	var wg sync.WaitGroup
	for i := range 200 {
		variantID := fmt.Sprintf("v%d", i%2)
		expected[variantID]++

		svc := cluster.Service(i % 3)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.RecordConversion(ctx, "conv", variantID))
		}()
	}
	wg.Wait()

	stats, err := cluster.Service(2).GetStats(ctx, "conv")
	require.NoError(t, err)
	testutil.AssertCounters(t, stats, nil, expected)
	testutil.AssertExperimentConsistent(t, stats)
	// Equal rates tie; the lowest index wins
	require.Greater(t, stats.Variants[0].Weight, stats.Variants[1].Weight)
}
