package integration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/test/testutil"
	variotest "github.com/arloliu/vario/testing"
)

// TestNATSFailure_StoreUnavailable verifies that a lost NATS server surfaces
// as a retryable ErrStoreUnavailable instead of hanging or miscounting.
func TestNATSFailure_StoreUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx := t.Context()
	cluster, ns := testutil.NewNATSCluster(t, 1)
	cluster.CreateExperiment(ctx, variotest.NewExperiment("down", 1, 1))

	svc := cluster.Service(0)
	require.NoError(t, svc.RecordImpression(ctx, "down", "v0"))

	t.Log("Shutting down NATS server...")
	ns.Shutdown()
	ns.WaitForShutdown()

	start := time.Now()
	err := svc.RecordImpression(ctx, "down", "v0")
	require.ErrorIs(t, err, vario.ErrStoreUnavailable)
	require.True(t, vario.IsRetryable(err))

	_, err = svc.ChooseVariant(ctx, "down", "visitor")
	require.ErrorIs(t, err, vario.ErrStoreUnavailable)

	_, err = svc.GetStats(ctx, "down")
	require.ErrorIs(t, err, vario.ErrStoreUnavailable)

	// Bounded by OperationTimeout per call
	require.Less(t, time.Since(start), 3*testutil.IntegrationTestConfig().OperationTimeout+time.Second)
}
