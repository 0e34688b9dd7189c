// Package testutil provides multi-instance fixtures and traffic generators for
// integration and stress tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/store"
	"github.com/arloliu/vario/strategy"
	variotest "github.com/arloliu/vario/testing"
)

// IntegrationTestConfig provides default configuration for integration tests.
//
// Conflict retries are generous because several instances hammer one record.
func IntegrationTestConfig() vario.Config {
	cfg := vario.TestConfig()
	cfg.OperationTimeout = 5 * time.Second
	cfg.Transaction.MaxAttempts = 200
	cfg.Transaction.InitialBackoff = 200 * time.Microsecond
	cfg.Transaction.MaxBackoff = 10 * time.Millisecond

	return cfg
}

// Cluster is a set of services sharing one repository and sticky store, each
// behaving like a separate process.
type Cluster struct {
	t        *testing.T
	Services []*vario.Service
}

// Service returns instance i.
func (c *Cluster) Service(i int) *vario.Service {
	return c.Services[i]
}

// CreateExperiment creates exp through the first instance.
func (c *Cluster) CreateExperiment(ctx context.Context, exp *vario.Experiment) *vario.Experiment {
	c.t.Helper()

	created, err := c.Services[0].CreateExperiment(ctx, exp)
	require.NoError(c.t, err)

	return created
}

// NewNATSCluster starts n services on separate connections to one embedded
// NATS server, sharing the experiment and sticky KV buckets.
func NewNATSCluster(t *testing.T, n int) (*Cluster, *server.Server) {
	t.Helper()

	ns, _ := variotest.StartEmbeddedNATS(t)
	cfg := IntegrationTestConfig()
	cluster := &Cluster{t: t}

	for range n {
		nc := variotest.Connect(t, ns)
		js := variotest.NewJetStream(t, nc)

		repo, err := store.OpenNATSKV(t.Context(), js, cfg.KVBuckets.ExperimentBucket)
		require.NoError(t, err)
		sticky, err := store.OpenNATSKVSticky(t.Context(), js, cfg.KVBuckets.StickyBucket)
		require.NoError(t, err)

		cluster.add(cfg, repo, sticky)
	}

	return cluster, ns
}

// NewSQLiteCluster starts n services, each with its own connection pool to one
// SQLite file.
func NewSQLiteCluster(t *testing.T, n int) *Cluster {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vario.db")
	cfg := IntegrationTestConfig()
	cluster := &Cluster{t: t}

	for range n {
		db, err := store.OpenSQLite(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		cluster.add(cfg, store.NewSQLite(db), store.NewSQLiteSticky(db))
	}

	return cluster
}

func (c *Cluster) add(cfg vario.Config, repo vario.ExperimentRepository, sticky vario.StickyStore) {
	c.t.Helper()

	svc, err := vario.NewService(&cfg, repo, sticky, strategy.NewEpsilonGreedy(),
		vario.WithLogger(variotest.NewTestLogger(c.t)))
	require.NoError(c.t, err)

	c.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})

	c.Services = append(c.Services, svc)
}
