package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/internal/natsutil"
)

// Publisher publishes events to the events stream.
//
// Safe for concurrent use.
type Publisher struct {
	js     jetstream.JetStream
	prefix string
	clock  func() time.Time
}

// NewPublisher creates a publisher for the subjects under cfg.SubjectPrefix.
func NewPublisher(js jetstream.JetStream, cfg vario.EventsConfig) *Publisher {
	return &Publisher{js: js, prefix: cfg.SubjectPrefix, clock: time.Now}
}

// Publish publishes one event.
//
// An empty ev.ID is replaced with a random UUID, which disables deduplication
// for that event. Clients that retry must reuse their own id.
//
// Returns:
//   - bool: true when the stream dropped the event as a duplicate
//   - error: ErrInvalidEvent, vario.ErrStoreUnavailable on connectivity failures
func (p *Publisher) Publish(ctx context.Context, ev Event) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.clock().UTC()
	}

	if err := ev.validate(); err != nil {
		return false, err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	ack, err := p.js.Publish(ctx, Subject(p.prefix, ev.Kind), data, jetstream.WithMsgID(ev.ID))
	if err != nil {
		if natsutil.IsConnectivityError(err) {
			return false, fmt.Errorf("%w: publish %s event: %w", vario.ErrStoreUnavailable, ev.Kind, err)
		}

		return false, fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}

	return ack.Duplicate, nil
}

// PublishImpression publishes an impression event with the given client event id.
func (p *Publisher) PublishImpression(ctx context.Context, eventID, experimentID, variantID string) (bool, error) {
	return p.Publish(ctx, Event{ID: eventID, Kind: KindImpression, ExperimentID: experimentID, VariantID: variantID})
}

// PublishConversion publishes a conversion event with the given client event id.
func (p *Publisher) PublishConversion(ctx context.Context, eventID, experimentID, variantID string) (bool, error) {
	return p.Publish(ctx, Event{ID: eventID, Kind: KindConversion, ExperimentID: experimentID, VariantID: variantID})
}
