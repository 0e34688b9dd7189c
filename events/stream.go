package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/internal/kvutil"
)

// DefaultMaxAge bounds how long unconsumed events are retained.
const DefaultMaxAge = 24 * time.Hour

// EnsureStream creates the events stream or opens the existing one.
//
// The stream captures "<SubjectPrefix>.>" and deduplicates on Nats-Msg-Id
// within DuplicateWindow.
//
// Parameters:
//   - ctx: Context for cancellation
//   - js: JetStream context
//   - cfg: Events configuration
//
// Returns:
//   - jetstream.Stream: The events stream
//   - error: Creation failure after retries
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg vario.EventsConfig) (jetstream.Stream, error) {
	stream, err := kvutil.EnsureStreamWithRetry(ctx, js, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     DefaultMaxAge,
		Duplicates: cfg.DuplicateWindow,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("ensure events stream %s: %w", cfg.Stream, err)
	}

	return stream, nil
}
