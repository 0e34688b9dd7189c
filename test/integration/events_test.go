package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/vario/events"
	"github.com/arloliu/vario/test/testutil"
	variotest "github.com/arloliu/vario/testing"
)

// TestEvents_PublishOnOneInstanceRecordOnAnother verifies the JetStream path:
// events published next to one instance are recorded exactly once by another
// instance's durable consumer, client retries included.
func TestEvents_PublishOnOneInstanceRecordOnAnother(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	cluster, ns := testutil.NewNATSCluster(t, 2)
	cluster.CreateExperiment(ctx, variotest.NewExperiment("cta", 1, 1))

	cfg := testutil.IntegrationTestConfig().Events
	js := variotest.NewJetStream(t, variotest.Connect(t, ns))

	_, err := events.EnsureStream(ctx, js, cfg)
	require.NoError(t, err)

	consumer, err := events.NewConsumer(js, cluster.Service(1), cfg, events.WithLogger(variotest.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, consumer.Start(ctx))
	t.Cleanup(func() { _ = consumer.Stop(context.Background()) })

	pub := events.NewPublisher(js, cfg)
	for i := range 100 {
		id := fmt.Sprintf("imp-%d", i)
		for range 2 {
			_, err := pub.PublishImpression(ctx, id, "cta", "v1")
			require.NoError(t, err)
		}
	}
	for i := range 20 {
		_, err := pub.PublishConversion(ctx, fmt.Sprintf("conv-%d", i), "cta", "v1")
		require.NoError(t, err)
	}

	reader := cluster.Service(0)
	require.Eventually(t, func() bool {
		stats, err := reader.GetStats(ctx, "cta")
		return err == nil && stats.Variants[1].Impressions == 100 && stats.Variants[1].Conversions == 20
	}, 10*time.Second, 25*time.Millisecond)

	// Nothing beyond the deduplicated totals shows up later
	time.Sleep(200 * time.Millisecond)
	stats, err := reader.GetStats(ctx, "cta")
	require.NoError(t, err)
	testutil.AssertCounters(t, stats, map[string]uint64{"v1": 100}, map[string]uint64{"v1": 20})
	require.InDelta(t, 0.95, stats.Variants[1].Weight, 1e-9)
}
