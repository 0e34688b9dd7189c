// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/vario/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	svc, err := vario.NewService(cfg, repo, sticky, policy, vario.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordAssignment discards the assignment metric.
func (n *NopMetrics) RecordAssignment(_ /* experimentID */, _ /* variantID */ string, _ /* fresh */ bool) {
	// No-op
}

// RecordEvent discards the event metric.
func (n *NopMetrics) RecordEvent(_ /* kind */, _ /* experimentID */, _ /* result */ string) {
	// No-op
}

// RecordReallocation discards the reallocation metric.
func (n *NopMetrics) RecordReallocation(_ /* experimentID */, _ /* bestVariantID */ string) {
	// No-op
}

// RecordConflictRetry discards the conflict retry metric.
func (n *NopMetrics) RecordConflictRetry(_ /* operation */ string) {
	// No-op
}

// RecordStoreOperationDuration discards the store latency metric.
func (n *NopMetrics) RecordStoreOperationDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}
