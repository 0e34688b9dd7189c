package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arloliu/vario/types"
)

// Kind identifies the event type.
type Kind string

const (
	// KindImpression is a variant shown to a visitor.
	KindImpression Kind = "impression"

	// KindConversion is a visitor completing the experiment goal.
	KindConversion Kind = "conversion"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImpression || k == KindConversion
}

// Event is the wire payload published to the events stream.
type Event struct {
	// ID is the client event id, used as Nats-Msg-Id for deduplication.
	ID string `json:"id"`

	Kind         Kind      `json:"kind"`
	ExperimentID string    `json:"experimentId"`
	VariantID    string    `json:"variantId"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Subject returns the subject an event of kind is published on.
func Subject(prefix string, kind Kind) string {
	return prefix + "." + string(kind)
}

func (e Event) validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidEvent, e.Kind)
	}
	if !types.ValidID(e.ExperimentID) || !types.ValidID(e.VariantID) {
		return fmt.Errorf("%w: bad ids experiment %q variant %q", ErrInvalidEvent, e.ExperimentID, e.VariantID)
	}

	return nil
}

func decodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if err := ev.validate(); err != nil {
		return Event{}, err
	}

	return ev, nil
}
