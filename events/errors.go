package events

import "errors"

var (
	// ErrInvalidEvent is returned for events that can never be recorded.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrRecorderRequired is returned when NewConsumer is called without a recorder.
	ErrRecorderRequired = errors.New("recorder is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("consumer already started")
)
