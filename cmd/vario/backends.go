package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/store"
	"github.com/arloliu/vario/types"
)

// backends holds the opened stores and the connections behind them.
type backends struct {
	repo   vario.ExperimentRepository
	sticky vario.StickyStore

	nc    *nats.Conn
	js    jetstream.JetStream
	db    *sql.DB
	redis *redis.Client
}

// openBackends connects to every backend the configuration selects.
func openBackends(ctx context.Context, cfg appConfig, logger types.Logger) (*backends, error) {
	b := &backends{}

	if cfg.usesNATS() {
		nc, err := nats.Connect(cfg.Backend.NATSURL,
			nats.Name("vario"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connect nats %s: %w", cfg.Backend.NATSURL, err)
		}
		b.nc = nc

		js, err := jetstream.New(nc)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		b.js = js
	}

	if cfg.usesSQLite() {
		db, err := store.OpenSQLite(cfg.Backend.SQLitePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.db = db
	}

	var err error
	switch cfg.Backend.Repository {
	case backendNATS:
		b.repo, err = store.OpenNATSKV(ctx, b.js, cfg.Engine.KVBuckets.ExperimentBucket)
	case backendSQLite:
		b.repo = store.NewSQLite(b.db)
	default:
		b.repo = store.NewMemory()
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	switch cfg.Backend.Sticky {
	case backendNATS:
		b.sticky, err = store.OpenNATSKVSticky(ctx, b.js, cfg.Engine.KVBuckets.StickyBucket)
	case backendSQLite:
		b.sticky = store.NewSQLiteSticky(b.db)
	case backendRedis:
		b.redis = redis.NewClient(&redis.Options{Addr: cfg.Backend.RedisAddr})
		b.sticky = store.NewRedisSticky(b.redis, cfg.Backend.RedisPrefix)
	default:
		b.sticky = store.NewMemorySticky()
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	logger.Info("backends opened",
		"repository", cfg.Backend.Repository,
		"sticky", cfg.Backend.Sticky,
	)

	return b, nil
}

// Close releases every open connection.
func (b *backends) Close() error {
	var errs []error

	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	if b.nc != nil {
		errs = append(errs, b.nc.Drain())
	}

	return errors.Join(errs...)
}
