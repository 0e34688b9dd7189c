package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_DoesNotPanic(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordAssignment("exp", "a", true)
		metrics.RecordAssignment("", "", false)
		metrics.RecordEvent("impression", "exp", "ok")
		metrics.RecordReallocation("exp", "b")
		metrics.RecordConflictRetry("conversion")
		metrics.RecordStoreOperationDuration("load", -1)
	})
}

func BenchmarkNopMetrics_RecordEvent(b *testing.B) {
	metrics := NewNop()
	for b.Loop() {
		metrics.RecordEvent("impression", "exp", "ok")
	}
}
