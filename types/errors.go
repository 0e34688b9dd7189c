package types

import "errors"

// Sentinel errors for the vario library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap them with context using fmt.Errorf("%w: ...", ErrX).
//
// Wrapped messages carry experiment and variant ids but never storage keys,
// bucket names or SQL, so they can be logged or returned to callers.

// Validation errors - never retried.
var (
	// ErrNotFound is returned when an experiment or variant id does not exist,
	// or when an experiment is retired and no longer serves assignments.
	ErrNotFound = errors.New("not found")

	// ErrNoVariants is returned when an experiment has no variants.
	ErrNoVariants = errors.New("experiment has no variants")

	// ErrInvalidExperiment is returned when an experiment definition is malformed.
	ErrInvalidExperiment = errors.New("invalid experiment")

	// ErrAlreadyExists is returned when creating an experiment whose id is taken.
	ErrAlreadyExists = errors.New("experiment already exists")
)

// Transient errors - retryable by the caller.
var (
	// ErrStoreUnavailable indicates a repository or sticky store I/O failure or timeout.
	// Callers may retry with backoff; the engine itself never retries I/O outages.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentUpdate indicates an optimistic-lock failure on Save.
	// The service retries it internally and surfaces it wrapped in ErrStoreUnavailable
	// once the attempt budget is exhausted.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)

// Construction errors - returned by NewService.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRepositoryRequired is returned when the experiment repository is nil.
	ErrRepositoryRequired = errors.New("experiment repository is required")

	// ErrStickyStoreRequired is returned when the sticky store is nil.
	ErrStickyStoreRequired = errors.New("sticky store is required")

	// ErrPolicyRequired is returned when the reallocation policy is nil.
	ErrPolicyRequired = errors.New("reallocation policy is required")
)

// IsRetryable reports whether err is a transient failure the caller may retry.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true for ErrStoreUnavailable (including exhausted conflict retries)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
