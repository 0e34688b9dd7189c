package vario

import "github.com/arloliu/vario/types"

// Sentinel errors re-exported from the types package.
var (
	// ErrNotFound is returned for unknown experiments or variants, and for retired experiments in ChooseVariant.
	ErrNotFound = types.ErrNotFound

	// ErrNoVariants is returned when an experiment has no variants.
	ErrNoVariants = types.ErrNoVariants

	// ErrInvalidExperiment is returned by CreateExperiment for malformed definitions.
	ErrInvalidExperiment = types.ErrInvalidExperiment

	// ErrAlreadyExists is returned by CreateExperiment when the id is taken.
	ErrAlreadyExists = types.ErrAlreadyExists

	// ErrStoreUnavailable is returned for storage failures, timeouts and exhausted conflict retries.
	ErrStoreUnavailable = types.ErrStoreUnavailable

	// ErrConcurrentUpdate is wrapped in ErrStoreUnavailable once conflict retries are exhausted.
	ErrConcurrentUpdate = types.ErrConcurrentUpdate

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrRepositoryRequired is returned when the experiment repository is nil.
	ErrRepositoryRequired = types.ErrRepositoryRequired

	// ErrStickyStoreRequired is returned when the sticky store is nil.
	ErrStickyStoreRequired = types.ErrStickyStoreRequired

	// ErrPolicyRequired is returned when the reallocation policy is nil.
	ErrPolicyRequired = types.ErrPolicyRequired
)

// IsRetryable reports whether err is a transient failure the caller may retry.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
