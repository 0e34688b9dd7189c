// Package store provides ExperimentRepository and StickyStore implementations.
//
// Repositories:
//   - Memory: process-local map, for tests and single-instance deployments
//   - NATSKV: NATS JetStream KV bucket, shared by any number of instances
//   - SQLite: SQLite table (modernc.org/sqlite, no cgo)
//
// Sticky stores:
//   - MemorySticky: concurrent map
//   - NATSKVSticky: NATS JetStream KV bucket
//   - SQLiteSticky: SQLite table
//   - RedisSticky: Redis string keys
//
// Every repository stores one JSON record per experiment holding the full
// variant array, and implements Save as a compare-and-swap on the record
// revision. Failures of the underlying store are reported as
// types.ErrStoreUnavailable; error messages carry experiment ids but never
// bucket names, keys or SQL.
package store
