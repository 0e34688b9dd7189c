// Package assignment chooses a variant for a visitor.
//
// The Assigner first consults the caller-owned sticky store: a visitor that
// already has a mapping keeps seeing that variant, even after reallocation
// has moved traffic elsewhere. Visitors without a (still valid) mapping are
// placed by weighted random sampling over the experiment's current weights.
//
// # Weighted Sampling
//
// Let S be the sum of the positive weights. A draw u in [0,1) from the
// Sampler is scaled to r = u*S and the variants are walked in order,
// accumulating positive weights; the first variant whose running sum
// reaches r wins. Variant i is therefore chosen with probability w_i/S.
// When S <= 0 every variant is treated as equally weighted.
//
// # Samplers
//
//   - RandomSampler: PCG generator guarded by a mutex, seedable for reproducible tests
//   - HashSampler: xxh3 of (experiment id, token), so the same token always lands
//     on the same variant for unchanged weights
//
// The Assigner never mutates experiment state. It reports Fresh=true on a
// newly sampled choice and leaves persisting the mapping to the caller.
package assignment
