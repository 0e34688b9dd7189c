package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from request goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	AssignmentMetrics
	EventMetrics
	StoreMetrics
}

// AssignmentMetrics defines metrics for variant assignment.
type AssignmentMetrics interface {
	// RecordAssignment records a ChooseVariant result.
	//
	// Parameters:
	//   - experimentID: Experiment id
	//   - variantID: Chosen variant id
	//   - fresh: true when sampled, false when served from the sticky store
	RecordAssignment(experimentID, variantID string, fresh bool)
}

// EventMetrics defines metrics for impression/conversion recording.
type EventMetrics interface {
	// RecordEvent records the outcome of an impression or conversion.
	//
	// Parameters:
	//   - kind: "impression" or "conversion"
	//   - experimentID: Experiment id
	//   - result: "ok", "not_found", "unavailable" or "error"
	RecordEvent(kind, experimentID, result string)

	// RecordReallocation records a weight recomputation.
	//
	// Parameters:
	//   - experimentID: Experiment id
	//   - bestVariantID: Variant receiving the largest weight afterwards
	RecordReallocation(experimentID, bestVariantID string)

	// RecordConflictRetry records an optimistic-lock retry inside a transaction.
	RecordConflictRetry(operation string)
}

// StoreMetrics defines metrics for repository and sticky store access.
type StoreMetrics interface {
	// RecordStoreOperationDuration records storage call latency.
	//
	// Parameters:
	//   - operation: "load", "save", "create", "sticky_get" or "sticky_set"
	//   - duration: Time taken in seconds
	RecordStoreOperationDuration(operation string, duration float64)
}
