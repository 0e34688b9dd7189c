// Package strategy provides built-in reallocation policy implementations.
//
// A reallocation policy recomputes variant weights from the observed
// impression and conversion counters. The package includes two policies:
//
//   - EpsilonGreedy: Shifts traffic to the best converting variant while reserving a fixed exploration share (default)
//   - Static: Keeps the weights the experiment was created with (fixed split A/B test)
//
// # Policy Selection Guide
//
// EpsilonGreedy:
//   - Use when traffic should follow the evidence as it accumulates
//   - Recomputed synchronously after every conversion
//   - Configuration: epsilon (exploration share, default 0.1)
//
// Static:
//   - Use for classic A/B tests with a predetermined split
//   - Counters still accumulate for reporting
//
// Custom policies can be implemented by satisfying the types.ReallocationPolicy interface.
package strategy
