package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/vario/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignments   *prometheus.CounterVec
	events        *prometheus.CounterVec
	reallocations *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "vario" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "vario"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "choices_total",
			Help:      "Total variant choices by experiment, variant and whether the choice was freshly sampled.",
		}, []string{"experiment", "variant", "fresh"})

		p.events = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "recorded_total",
			Help:      "Total impression/conversion events by kind, experiment and result.",
		}, []string{"kind", "experiment", "result"})

		p.reallocations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "reallocations_total",
			Help:      "Total weight recomputations by experiment and winning variant.",
		}, []string{"experiment", "best_variant"})

		p.conflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "conflict_retries_total",
			Help:      "Total optimistic-lock retries by operation.",
		}, []string{"op"})

		p.storeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of repository and sticky store calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}, []string{"op"})

		p.reg.MustRegister(p.assignments)
		p.reg.MustRegister(p.events)
		p.reg.MustRegister(p.reallocations)
		p.reg.MustRegister(p.conflicts)
		p.reg.MustRegister(p.storeLatency)
	})
}

// RecordAssignment increments the choice counter.
func (p *PrometheusCollector) RecordAssignment(experimentID, variantID string, fresh bool) {
	p.ensureRegistered()
	p.assignments.WithLabelValues(experimentID, variantID, strconv.FormatBool(fresh)).Inc()
}

// RecordEvent increments the event counter.
func (p *PrometheusCollector) RecordEvent(kind, experimentID, result string) {
	p.ensureRegistered()
	p.events.WithLabelValues(kind, experimentID, result).Inc()
}

// RecordReallocation increments the reallocation counter.
func (p *PrometheusCollector) RecordReallocation(experimentID, bestVariantID string) {
	p.ensureRegistered()
	p.reallocations.WithLabelValues(experimentID, bestVariantID).Inc()
}

// RecordConflictRetry increments the optimistic-lock retry counter.
func (p *PrometheusCollector) RecordConflictRetry(operation string) {
	p.ensureRegistered()
	p.conflicts.WithLabelValues(operation).Inc()
}

// RecordStoreOperationDuration observes store call latency.
func (p *PrometheusCollector) RecordStoreOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.storeLatency.WithLabelValues(operation).Observe(duration)
}
