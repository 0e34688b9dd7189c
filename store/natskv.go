package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/vario/internal/kvutil"
	"github.com/arloliu/vario/internal/natsutil"
	"github.com/arloliu/vario/types"
)

const (
	experimentKeyPrefix = "exp."
	stickyKeyPrefix     = "sticky."

	// stickySetAttempts bounds the read-then-swap rounds of NATSKVSticky.Set.
	stickySetAttempts = 5
)

// NATSKV is an ExperimentRepository backed by a JetStream KV bucket.
//
// Each experiment is one key; the KV entry revision is the optimistic-lock
// stamp and kv.Update(key, value, revision) is the compare-and-swap.
type NATSKV struct {
	kv jetstream.KeyValue
}

var _ types.ExperimentRepository = (*NATSKV)(nil)

// NewNATSKV wraps an existing KV bucket.
func NewNATSKV(kv jetstream.KeyValue) *NATSKV {
	return &NATSKV{kv: kv}
}

// OpenNATSKV creates or opens the experiment bucket.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - bucket: Bucket name
//
// Returns:
//   - *NATSKV: Repository bound to the bucket
//   - error: Bucket could not be created or opened
func OpenNATSKV(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSKV, error) {
	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "vario experiments",
		History:     1,
	}, 5)
	if err != nil {
		return nil, fmt.Errorf("%w: open experiment bucket: %w", types.ErrStoreUnavailable, err)
	}

	return NewNATSKV(kv), nil
}

// Create stores a new experiment; fails with ErrAlreadyExists if the id is taken.
func (n *NATSKV) Create(ctx context.Context, exp *types.Experiment) error {
	data, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	rev, err := n.kv.Create(ctx, experimentKeyPrefix+exp.ID, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return alreadyExists(exp.ID)
		}

		return unavailable("create", exp.ID, err)
	}
	exp.Revision = rev

	return nil
}

// Load reads the experiment and its KV revision.
func (n *NATSKV) Load(ctx context.Context, id string) (*types.Experiment, error) {
	entry, err := n.kv.Get(ctx, experimentKeyPrefix+id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, notFound(id)
		}

		return nil, unavailable("load", id, err)
	}

	return decodeExperiment(id, entry.Value(), entry.Revision())
}

// Save updates the experiment if the KV revision still equals exp.Revision.
func (n *NATSKV) Save(ctx context.Context, exp *types.Experiment) error {
	data, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	rev, err := n.kv.Update(ctx, experimentKeyPrefix+exp.ID, data, exp.Revision)
	if err != nil {
		if natsutil.IsRevisionConflict(err) {
			return conflict(exp.ID, exp.Revision)
		}

		return unavailable("save", exp.ID, err)
	}
	exp.Revision = rev

	return nil
}

// Delete removes an experiment.
func (n *NATSKV) Delete(ctx context.Context, id string) error {
	if err := n.kv.Delete(ctx, experimentKeyPrefix+id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return unavailable("delete", id, err)
	}

	return nil
}

// NATSKVSticky is a StickyStore backed by a JetStream KV bucket.
//
// Tokens are arbitrary caller strings, so they are base64url encoded to form
// a valid KV key.
type NATSKVSticky struct {
	kv jetstream.KeyValue
}

var _ types.StickyStore = (*NATSKVSticky)(nil)

// NewNATSKVSticky wraps an existing KV bucket.
func NewNATSKVSticky(kv jetstream.KeyValue) *NATSKVSticky {
	return &NATSKVSticky{kv: kv}
}

// OpenNATSKVSticky creates or opens the sticky bucket.
func OpenNATSKVSticky(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSKVSticky, error) {
	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "vario sticky assignments",
		History:     1,
	}, 5)
	if err != nil {
		return nil, fmt.Errorf("%w: open sticky bucket: %w", types.ErrStoreUnavailable, err)
	}

	return NewNATSKVSticky(kv), nil
}

// Get returns the variant mapped to token.
func (s *NATSKVSticky) Get(ctx context.Context, experimentID, token string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, stickyKVKey(experimentID, token))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}

		return "", false, unavailable("sticky get", experimentID, err)
	}

	return string(entry.Value()), true, nil
}

// Set stores the mapping for token unless another value than previous is
// already mapped. Create and revision-checked Update make the swap atomic.
func (s *NATSKVSticky) Set(ctx context.Context, experimentID, token, previous, variantID string) (string, error) {
	key := stickyKVKey(experimentID, token)
	value := []byte(variantID)

	if previous == "" {
		_, err := s.kv.Create(ctx, key, value)
		if err == nil {
			return variantID, nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return "", unavailable("sticky set", experimentID, err)
		}
	}

	for range stickySetAttempts {
		entry, err := s.kv.Get(ctx, key)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			_, err = s.kv.Create(ctx, key, value)
		case err != nil:
			return "", unavailable("sticky set", experimentID, err)
		case string(entry.Value()) != previous:
			return string(entry.Value()), nil
		default:
			_, err = s.kv.Update(ctx, key, value, entry.Revision())
		}

		if err == nil {
			return variantID, nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return "", unavailable("sticky set", experimentID, err)
		}
	}

	return "", unavailable("sticky set", experimentID, types.ErrConcurrentUpdate)
}

func stickyKVKey(experimentID, token string) string {
	return stickyKeyPrefix + experimentID + "." + base64.RawURLEncoding.EncodeToString([]byte(token))
}
