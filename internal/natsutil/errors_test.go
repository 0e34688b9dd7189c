package natsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout", err: nats.ErrTimeout, want: true},
		{name: "wrapped no servers", err: fmt.Errorf("load: %w", nats.ErrNoServers), want: true},
		{name: "closed", err: nats.ErrConnectionClosed, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "key not found", err: jetstream.ErrKeyNotFound, want: false},
		{name: "generic", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestIsRevisionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "key exists", err: jetstream.ErrKeyExists, want: true},
		{name: "wrong last sequence", err: &jetstream.APIError{Code: 400, ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence}, want: true},
		{name: "wrapped wrong last sequence", err: fmt.Errorf("update: %w", &jetstream.APIError{ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence}), want: true},
		{name: "other api error", err: &jetstream.APIError{ErrorCode: jetstream.JSErrCodeStreamNotFound}, want: false},
		{name: "timeout", err: nats.ErrTimeout, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRevisionConflict(tt.err))
		})
	}
}
