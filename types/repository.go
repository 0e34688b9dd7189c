package types

import "context"

// ExperimentRepository loads and saves Experiment aggregates by id.
//
// It is the only component that touches durable storage, and it is used
// exclusively by the service. No caching guarantees are made here.
//
// Implementations:
//   - store.Memory: process-local map
//   - store.NATSKV: NATS JetStream KV bucket
//   - store.SQLite: SQLite table
//
// Concurrency contract:
//   - Load returns the experiment with Revision set to the stored revision
//   - Save is a compare-and-swap on Revision: it fails with ErrConcurrentUpdate
//     when the stored revision differs, and updates exp.Revision on success
//   - I/O failures and timeouts wrap ErrStoreUnavailable
type ExperimentRepository interface {
	// Create stores a new experiment.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - exp: Validated experiment; its Revision is set on success
	//
	// Returns:
	//   - error: ErrAlreadyExists if the id is taken, ErrStoreUnavailable on I/O failure
	Create(ctx context.Context, exp *Experiment) error

	// Load returns the current state of an experiment.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - id: Experiment id
	//
	// Returns:
	//   - *Experiment: Experiment owned by the caller, Revision populated
	//   - error: ErrNotFound if absent, ErrStoreUnavailable on I/O failure
	Load(ctx context.Context, id string) (*Experiment, error)

	// Save writes exp if the stored revision still equals exp.Revision.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - exp: Experiment previously returned by Load and then mutated
	//
	// Returns:
	//   - error: ErrConcurrentUpdate on revision mismatch, ErrNotFound if deleted,
	//     ErrStoreUnavailable on I/O failure
	Save(ctx context.Context, exp *Experiment) error
}
