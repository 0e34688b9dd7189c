// Package kvutil provides utilities for creating NATS JetStream KV buckets and streams.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const defaultMaxRetries = 3

// EnsureKVBucketWithRetry creates or opens a KV bucket with retry logic.
//
// This function handles race conditions when several service instances try to
// create the same bucket concurrently. It retries with exponential backoff if
// the creation fails due to transient errors.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of retry attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Any error that occurred after all retries
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
//	    Bucket:  "vario-experiments",
//	    History: 1,
//	}, 3)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	return ensureWithRetry(ctx, "KV bucket "+config.Bucket, maxRetries,
		func() (jetstream.KeyValue, error) { return js.CreateKeyValue(ctx, config) },
		func(err error) bool { return errors.Is(err, jetstream.ErrBucketExists) },
		func() (jetstream.KeyValue, error) { return js.KeyValue(ctx, config.Bucket) },
	)
}

// EnsureStreamWithRetry creates or opens a stream with retry logic.
//
// An existing stream is opened as-is; its configuration is not updated.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: Stream configuration
//   - maxRetries: Maximum number of retry attempts (default: 3)
//
// Returns:
//   - jetstream.Stream: The stream instance
//   - error: Any error that occurred after all retries
func EnsureStreamWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.StreamConfig,
	maxRetries int,
) (jetstream.Stream, error) {
	return ensureWithRetry(ctx, "stream "+config.Name, maxRetries,
		func() (jetstream.Stream, error) { return js.CreateStream(ctx, config) },
		func(err error) bool { return errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) },
		func() (jetstream.Stream, error) { return js.Stream(ctx, config.Name) },
	)
}

func ensureWithRetry[T any](
	ctx context.Context,
	what string,
	maxRetries int,
	create func() (T, error),
	exists func(error) bool,
	open func() (T, error),
) (T, error) {
	var zero T
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := create()
		if err == nil {
			return res, nil
		}

		if exists(err) {
			res, err := open()
			if err == nil {
				return res, nil
			}
			// Fall through to retry if open failed
			lastErr = fmt.Errorf("%s exists but failed to open: %w", what, err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return zero, fmt.Errorf("context cancelled during %s creation: %w", what, ctx.Err())
		}

		// Exponential backoff: 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return zero, fmt.Errorf("failed to create/open %s after %d attempts: %w", what, maxRetries, lastErr)
}
