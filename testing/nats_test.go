package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.NotNil(t, nc)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(1*time.Second))

	js := NewJetStream(t, nc)
	_, err := js.AccountInfo(context.Background())
	require.NoError(t, err)
}

// TestStartEmbeddedNATS_ParallelTests verifies parallel test execution.
func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 5 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestConnect_SharesJetStreamState(t *testing.T) {
	ns, nc1 := StartEmbeddedNATS(t)
	nc2 := Connect(t, ns)

	kv1 := CreateJetStreamKV(t, nc1, "shared")
	_, err := kv1.Put(context.Background(), "k", []byte("v"))
	require.NoError(t, err)

	kv2, err := NewJetStream(t, nc2).KeyValue(context.Background(), "shared")
	require.NoError(t, err)

	entry, err := kv2.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), entry.Value())
}

func TestNewExperiment(t *testing.T) {
	exp := NewExperiment("hero", 0.7, 0.2, 0.1)

	require.NoError(t, exp.Validate())
	require.Len(t, exp.Variants, 3)
	require.Equal(t, "v2", exp.Variants[2].ID)
	require.InDelta(t, 1.0, exp.TotalWeight(), 1e-9)
}
