package vario

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/vario/strategy"
)

// TransactionConfig bounds the optimistic-lock retry loop of RecordImpression
// and RecordConversion.
type TransactionConfig struct {
	// MaxAttempts is the total number of load/modify/save attempts per event.
	// Once exhausted the call fails with ErrStoreUnavailable.
	MaxAttempts int `yaml:"maxAttempts"`

	// InitialBackoff is the delay before the first retry. Doubled on each retry.
	InitialBackoff time.Duration `yaml:"initialBackoff"`

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration `yaml:"maxBackoff"`
}

// ReallocationConfig selects the weight recomputation policy.
type ReallocationConfig struct {
	// Policy is "epsilon-greedy" (default) or "static".
	Policy string `yaml:"policy"`

	// Epsilon is the exploration share of the epsilon-greedy policy, in [0, 1].
	// Zero is replaced with the default 0.1; build the policy with
	// strategy.NewEpsilonGreedy directly for a pure greedy split.
	Epsilon float64 `yaml:"epsilon"`
}

// SamplerConfig selects the source of the weighted-sampling draw.
type SamplerConfig struct {
	// Kind is "random" (default) or "hash".
	Kind string `yaml:"kind"`

	// Seed seeds the sampler; 0 picks a random seed for "random".
	Seed uint64 `yaml:"seed"`
}

// KVBucketConfig configures NATS JetStream KV bucket names.
type KVBucketConfig struct {
	// ExperimentBucket stores one record per experiment.
	ExperimentBucket string `yaml:"experimentBucket"`

	// StickyBucket stores visitor token to variant mappings.
	StickyBucket string `yaml:"stickyBucket"`
}

// EventsConfig configures JetStream event ingestion.
type EventsConfig struct {
	// Stream is the JetStream stream holding impression and conversion events.
	Stream string `yaml:"stream"`

	// SubjectPrefix prefixes event subjects: <prefix>.impression, <prefix>.conversion.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// DuplicateWindow is the stream's Nats-Msg-Id deduplication window.
	DuplicateWindow time.Duration `yaml:"duplicateWindow"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `yaml:"consumerName"`

	// MaxDeliver bounds redelivery of conversions that hit a store outage.
	MaxDeliver int `yaml:"maxDeliver"`

	// AckWait is how long the server waits for an ack before redelivering.
	AckWait time.Duration `yaml:"ackWait"`

	// NakDelay is the redelivery delay requested for retryable failures.
	NakDelay time.Duration `yaml:"nakDelay"`
}

// Config is the configuration for the Service.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// OperationTimeout bounds every repository and sticky store call.
	// A call exceeding it fails with ErrStoreUnavailable.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// Transaction controls optimistic-lock retries.
	Transaction TransactionConfig `yaml:"transaction"`

	// Reallocation selects the weight policy.
	Reallocation ReallocationConfig `yaml:"reallocation"`

	// Sampler selects how fresh visitors are sampled.
	Sampler SamplerConfig `yaml:"sampler"`

	// KVBuckets controls NATS JetStream KV bucket names.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`

	// Events controls JetStream event ingestion.
	Events EventsConfig `yaml:"events"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		OperationTimeout: 2 * time.Second,
		Transaction: TransactionConfig{
			MaxAttempts:    5,
			InitialBackoff: 5 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
		},
		Reallocation: ReallocationConfig{
			Policy:  strategy.PolicyEpsilonGreedy,
			Epsilon: strategy.DefaultEpsilon,
		},
		Sampler: SamplerConfig{
			Kind: "random",
		},
		KVBuckets: KVBucketConfig{
			ExperimentBucket: "vario-experiments",
			StickyBucket:     "vario-sticky",
		},
		Events: EventsConfig{
			Stream:          "VARIO_EVENTS",
			SubjectPrefix:   "vario.events",
			DuplicateWindow: 2 * time.Minute,
			ConsumerName:    "vario-recorder",
			MaxDeliver:      5,
			AckWait:         30 * time.Second,
			NakDelay:        time.Second,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.Transaction.MaxAttempts == 0 {
		cfg.Transaction.MaxAttempts = defaults.Transaction.MaxAttempts
	}
	if cfg.Transaction.InitialBackoff == 0 {
		cfg.Transaction.InitialBackoff = defaults.Transaction.InitialBackoff
	}
	if cfg.Transaction.MaxBackoff == 0 {
		cfg.Transaction.MaxBackoff = defaults.Transaction.MaxBackoff
	}
	if cfg.Reallocation.Policy == "" {
		cfg.Reallocation.Policy = defaults.Reallocation.Policy
	}
	if cfg.Reallocation.Epsilon == 0 {
		cfg.Reallocation.Epsilon = defaults.Reallocation.Epsilon
	}
	if cfg.Sampler.Kind == "" {
		cfg.Sampler.Kind = defaults.Sampler.Kind
	}
	if cfg.KVBuckets.ExperimentBucket == "" {
		cfg.KVBuckets.ExperimentBucket = defaults.KVBuckets.ExperimentBucket
	}
	if cfg.KVBuckets.StickyBucket == "" {
		cfg.KVBuckets.StickyBucket = defaults.KVBuckets.StickyBucket
	}
	if cfg.Events.Stream == "" {
		cfg.Events.Stream = defaults.Events.Stream
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = defaults.Events.SubjectPrefix
	}
	if cfg.Events.DuplicateWindow == 0 {
		cfg.Events.DuplicateWindow = defaults.Events.DuplicateWindow
	}
	if cfg.Events.ConsumerName == "" {
		cfg.Events.ConsumerName = defaults.Events.ConsumerName
	}
	if cfg.Events.MaxDeliver == 0 {
		cfg.Events.MaxDeliver = defaults.Events.MaxDeliver
	}
	if cfg.Events.AckWait == 0 {
		cfg.Events.AckWait = defaults.Events.AckWait
	}
	if cfg.Events.NakDelay == 0 {
		cfg.Events.NakDelay = defaults.Events.NakDelay
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - OperationTimeout > 0
//   - Transaction.MaxAttempts >= 1
//   - 0 < InitialBackoff <= MaxBackoff
//   - Reallocation.Epsilon within [0, 1] and Policy known
//   - Sampler.Kind is "random" or "hash"
//   - Events.MaxDeliver >= 1 or -1 (unlimited)
//
// Returns:
//   - error: Wraps ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}

	if cfg.Transaction.MaxAttempts < 1 {
		return fmt.Errorf("%w: Transaction.MaxAttempts must be >= 1, got %d", ErrInvalidConfig, cfg.Transaction.MaxAttempts)
	}

	if cfg.Transaction.InitialBackoff <= 0 || cfg.Transaction.InitialBackoff > cfg.Transaction.MaxBackoff {
		return fmt.Errorf(
			"%w: Transaction.InitialBackoff (%v) must be > 0 and <= MaxBackoff (%v)",
			ErrInvalidConfig, cfg.Transaction.InitialBackoff, cfg.Transaction.MaxBackoff,
		)
	}

	if math.IsNaN(cfg.Reallocation.Epsilon) || cfg.Reallocation.Epsilon < 0 || cfg.Reallocation.Epsilon > 1 {
		return fmt.Errorf("%w: Reallocation.Epsilon must be within [0, 1], got %v", ErrInvalidConfig, cfg.Reallocation.Epsilon)
	}

	if _, err := strategy.New(cfg.Reallocation.Policy, cfg.Reallocation.Epsilon); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch cfg.Sampler.Kind {
	case "random", "hash":
	default:
		return fmt.Errorf("%w: Sampler.Kind must be \"random\" or \"hash\", got %q", ErrInvalidConfig, cfg.Sampler.Kind)
	}

	if cfg.Events.MaxDeliver < 1 && cfg.Events.MaxDeliver != -1 {
		return fmt.Errorf("%w: Events.MaxDeliver must be >= 1 or -1, got %d", ErrInvalidConfig, cfg.Events.MaxDeliver)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewService() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Transaction.MaxAttempts > 10 {
		logger.Warn(
			"Transaction.MaxAttempts is high, conflicting writers may hold requests for long",
			"maxAttempts", cfg.Transaction.MaxAttempts,
			"recommended", 5,
		)
	}

	if cfg.OperationTimeout > 10*time.Second {
		logger.Warn(
			"OperationTimeout is long, requests may block on a degraded store",
			"operationTimeout", cfg.OperationTimeout,
			"recommended", "2s",
		)
	}

	if cfg.Reallocation.Epsilon > 0.5 {
		logger.Warn(
			"Reallocation.Epsilon above 0.5 sends most traffic to exploration",
			"epsilon", cfg.Reallocation.Epsilon,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Example:
//
//	cfg := vario.TestConfig()
//	svc, err := vario.NewService(&cfg, store.NewMemory(), store.NewMemorySticky(), strategy.NewEpsilonGreedy())
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.OperationTimeout = 1 * time.Second
	cfg.Transaction.MaxAttempts = 50
	cfg.Transaction.InitialBackoff = 100 * time.Microsecond
	cfg.Transaction.MaxBackoff = 5 * time.Millisecond
	cfg.Sampler.Seed = 42
	cfg.Events.DuplicateWindow = 10 * time.Second
	cfg.Events.AckWait = 2 * time.Second
	cfg.Events.NakDelay = 50 * time.Millisecond

	return cfg
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Parsed configuration with defaults applied (not validated)
//   - error: Read or parse failure
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration and applies defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	SetDefaults(&cfg)

	return cfg, nil
}
