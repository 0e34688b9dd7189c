package types

// ReallocationPolicy recomputes variant weights from the observed counters.
//
// The service invokes the policy after every conversion, inside the same
// read-modify-write transaction that applied the increment.
//
// Policy implementations must:
//   - Be pure: no side effects, never mutate the input slice
//   - Be deterministic: same counters produce the same weights
//   - Return weights summing to 1 (within WeightTolerance) for non-empty input
//   - Preserve variant order and all non-weight fields
type ReallocationPolicy interface {
	// Recompute returns a copy of variants with updated weights.
	//
	// Parameters:
	//   - variants: Snapshot of every variant in one experiment
	//
	// Returns:
	//   - []Variant: New slice with recomputed weights
	Recompute(variants []Variant) []Variant
}

// Sampler produces the uniform draw used for weighted variant sampling.
//
// Implementations must be safe for concurrent use.
type Sampler interface {
	// Sample returns a value in [0, 1) for a visitor without a sticky mapping.
	//
	// Parameters:
	//   - experimentID: Experiment being sampled
	//   - token: Visitor token the choice will be bound to
	Sample(experimentID, token string) float64
}

// ContentSanitizer cleans variant content before it is stored.
//
// Content comes from an external generator and is later injected into pages,
// so it is sanitized once at creation time. The engine never parses it.
type ContentSanitizer interface {
	// Sanitize returns the safe form of content.
	Sanitize(content string) string
}
