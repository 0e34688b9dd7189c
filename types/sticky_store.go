package types

import "context"

// StickyStore maps (experimentID, visitorToken) to a variant id.
//
// The store is owned by the caller: it may be backed by cookies, a session
// store, authenticated user ids or mobile client ids. The engine reads it while
// choosing a variant and writes fresh mappings, but never expires or evicts
// entries.
type StickyStore interface {
	// Get returns the variant previously assigned to token.
	//
	// Returns:
	//   - string: Variant id (empty when not found)
	//   - bool: true when a mapping exists
	//   - error: ErrStoreUnavailable on I/O failure
	Get(ctx context.Context, experimentID, token string) (string, bool, error)

	// Set stores variantID for token when token has no mapping yet or its
	// mapping still equals previous. Pass an empty previous to create a
	// mapping only if none exists.
	//
	// Concurrent writers for the same token race on one atomic step, so every
	// caller learns the single value that was kept.
	//
	// Returns:
	//   - string: The variant mapped to token after the call, variantID when
	//     the write won, otherwise the value another writer stored
	//   - error: ErrStoreUnavailable on I/O failure
	Set(ctx context.Context, experimentID, token, previous, variantID string) (string, error)
}
