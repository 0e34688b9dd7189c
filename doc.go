// Package vario provides an adaptive A/B experiment allocation engine.
//
// Vario assigns visitors to content variants, records impression and
// conversion events, and shifts traffic toward the best converting variant
// with an epsilon-greedy bandit policy. Counters stay exact under any number
// of concurrent writers, across one process or many.
//
// # Quick Start
//
//	import (
//	    "github.com/arloliu/vario"
//	    "github.com/arloliu/vario/store"
//	    "github.com/arloliu/vario/strategy"
//	)
//
//	cfg := vario.DefaultConfig()
//	svc, err := vario.NewService(&cfg, store.NewMemory(), store.NewMemorySticky(), strategy.NewEpsilonGreedy())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	choice, err := svc.ChooseVariant(ctx, "homepage-hero", visitorToken)
//	// render choice.VariantID, hand choice.Token back to the visitor
//
//	_ = svc.RecordImpression(ctx, "homepage-hero", choice.VariantID)
//	_ = svc.RecordConversion(ctx, "homepage-hero", choice.VariantID)
//
// # Key Features
//
//   - Sticky Assignment: a visitor keeps the same variant even after weights change
//   - Weighted Sampling: fresh visitors land on variant i with probability w_i / Σw
//   - Synchronous Reallocation: every conversion recomputes the weights in the same transaction
//   - Lost-Update Freedom: per-experiment locking plus repository compare-and-swap with bounded retry
//   - Pluggable Storage: memory, NATS JetStream KV and SQLite repositories; memory, NATS, SQLite and Redis sticky stores
//
// # Consistency Model
//
// RecordImpression and RecordConversion are read-modify-write transactions
// on the whole experiment record. Inside one process they are serialized per
// experiment; across processes the repository revision check rejects stale
// writes, and the service retries with exponential backoff up to
// Config.Transaction.MaxAttempts before failing with ErrStoreUnavailable.
//
// ChooseVariant never writes the experiment and takes no lock. A slightly
// stale weight snapshot is acceptable; counters are never stale.
//
// # Error Handling
//
//   - ErrNotFound: unknown or retired experiment, unknown variant. Drop the event.
//   - ErrNoVariants: misconfigured experiment. Show a fallback.
//   - ErrStoreUnavailable: I/O failure, timeout or exhausted retries. Retry with backoff.
//
// See the examples/ directory for complete working examples.
package vario
