// Package types provides core type definitions and interfaces for the vario library.
//
// This package contains shared types that are used across multiple packages in the
// vario library. By keeping these types in a separate package, we avoid import cycles
// between the main vario package and its internal implementations.
//
// Key types:
//   - Experiment: Experiment aggregate with its ordered variants
//   - Variant: Candidate content with counters and traffic weight
//   - Choice: Result of a variant assignment
//   - ExperimentRepository / StickyStore: Storage boundaries
//   - ReallocationPolicy / Sampler: Allocation algorithms
//   - Logger / MetricsCollector / Hooks: Ambient collaborators
package types
