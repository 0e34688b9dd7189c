package vario

import "time"

// Option configures a Service with optional dependencies.
type Option func(*serviceOptions)

// serviceOptions holds optional Service configuration.
type serviceOptions struct {
	hooks     *Hooks
	metrics   MetricsCollector
	logger    Logger
	sampler   Sampler
	sanitizer ContentSanitizer
	clock     func() time.Time
}

// WithHooks sets event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewService
//
// Example:
//
//	hooks := &vario.Hooks{
//	    OnWeightsChanged: func(ctx context.Context, id string, before, after []vario.Variant) error {
//	        return audit(ctx, id, after)
//	    },
//	}
//	svc, err := vario.NewService(&cfg, repo, sticky, policy, vario.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *serviceOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewService
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "vario")
//	svc, err := vario.NewService(&cfg, repo, sticky, policy, vario.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *serviceOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewService
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithSampler overrides the sampler built from Config.Sampler.
func WithSampler(sampler Sampler) Option {
	return func(o *serviceOptions) {
		o.sampler = sampler
	}
}

// WithContentSanitizer overrides the default bluemonday UGC sanitizer applied
// to variant ContentRef values in CreateExperiment.
func WithContentSanitizer(sanitizer ContentSanitizer) Option {
	return func(o *serviceOptions) {
		o.sanitizer = sanitizer
	}
}

// WithClock overrides time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}
