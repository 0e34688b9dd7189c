package vario

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/vario/content"
	"github.com/arloliu/vario/internal/assignment"
	"github.com/arloliu/vario/internal/hooks"
	"github.com/arloliu/vario/internal/logging"
	"github.com/arloliu/vario/internal/metrics"
	"github.com/arloliu/vario/strategy"
	"github.com/arloliu/vario/types"
)

// Event kinds used in metrics labels and log fields.
const (
	EventImpression = "impression"
	EventConversion = "conversion"
)

// Metric results recorded per event.
const (
	resultOK          = "ok"
	resultNotFound    = "not_found"
	resultUnavailable = "unavailable"
	resultError       = "error"

	// unknownExperimentLabel replaces caller-supplied ids in metrics when the
	// experiment or variant does not exist.
	unknownExperimentLabel = "unknown"
)

// stickyClaimAttempts bounds the sticky writes of one ChooseVariant call.
const stickyClaimAttempts = 3

// Service is the experiment engine.
//
// It owns the per-experiment concurrency discipline: every counter update is
// a load/modify/save transaction serialized per experiment inside the
// process and guarded by the repository revision across processes.
//
// All methods are safe for concurrent use.
type Service struct {
	cfg       Config
	repo      ExperimentRepository
	sticky    StickyStore
	policy    ReallocationPolicy
	assigner  *assignment.Assigner
	sanitizer ContentSanitizer
	hooks     types.Hooks
	metrics   MetricsCollector
	logger    Logger
	clock     func() time.Time

	// locks serializes read-modify-write cycles per experiment id.
	locks *xsync.Map[string, *sync.Mutex]

	// ctx is handed to hooks and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// hookMu guards closed and hookWg.Add against Close.
	hookMu sync.Mutex
	closed bool
	hookWg sync.WaitGroup
}

// NewService creates a new experiment service.
//
// Returns a concrete *Service struct following the "accept interfaces, return structs" principle.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults in place
//   - repo: Experiment repository (store.NewMemory, store.NewNATSKV, store.NewSQLite)
//   - sticky: Caller-owned sticky store
//   - policy: Reallocation policy (recommended: strategy.NewEpsilonGreedy())
//   - opts: Optional configuration (hooks, metrics, logger, sampler, sanitizer, clock)
//
// Returns:
//   - *Service: Initialized service
//   - error: ErrInvalidConfig, ErrRepositoryRequired, ErrStickyStoreRequired or ErrPolicyRequired
//
// Example:
//
//	cfg := vario.DefaultConfig()
//	policy, _ := strategy.New(cfg.Reallocation.Policy, cfg.Reallocation.Epsilon)
//	svc, err := vario.NewService(&cfg, store.NewMemory(), store.NewMemorySticky(), policy)
func NewService(cfg *Config, repo ExperimentRepository, sticky StickyStore, policy ReallocationPolicy, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if sticky == nil {
		return nil, ErrStickyStoreRequired
	}
	if policy == nil {
		return nil, ErrPolicyRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	sampler := options.sampler
	if sampler == nil {
		sampler, _ = assignment.NewSampler(cfg.Sampler.Kind, cfg.Sampler.Seed)
	}

	sanitizer := options.sanitizer
	if sanitizer == nil {
		sanitizer = content.NewUGC()
	}

	clock := options.clock
	if clock == nil {
		clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		cfg:       *cfg,
		repo:      repo,
		sticky:    sticky,
		policy:    policy,
		assigner:  assignment.NewAssigner(sticky, sampler, assignment.WithLogger(loggerInstance)),
		sanitizer: sanitizer,
		hooks:     hooks.Merge(options.hooks),
		metrics:   metricsCollector,
		logger:    loggerInstance,
		clock:     clock,
		locks:     xsync.NewMap[string, *sync.Mutex](),
		ctx:       ctx,
		cancel:    cancel,
	}

	return s, nil
}

// Config returns a copy of the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// CreateExperiment validates, normalizes and stores a new experiment.
//
// The input is not modified. Variant ContentRef values are sanitized, weights
// are rescaled to sum to one (all-zero weights become a uniform split) and
// CreatedAt/UpdatedAt are stamped.
//
// Parameters:
//   - ctx: Context for cancellation
//   - exp: Experiment definition
//
// Returns:
//   - *Experiment: The stored experiment, Revision set
//   - error: ErrInvalidExperiment (wrapping ErrNoVariants for empty variant lists),
//     ErrAlreadyExists or ErrStoreUnavailable
func (s *Service) CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error) {
	if exp == nil {
		return nil, fmt.Errorf("%w: experiment is nil", ErrInvalidExperiment)
	}

	created := exp.Clone()
	if err := created.Validate(); err != nil {
		return nil, err
	}

	if created.Status == "" {
		created.Status = StatusActive
	}
	for i := range created.Variants {
		created.Variants[i].ContentRef = s.sanitizer.Sanitize(created.Variants[i].ContentRef)
	}
	created.NormalizeWeights()

	now := s.clock().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Revision = 0

	err := s.withTimeout(ctx, "create", func(ctx context.Context) error {
		return s.repo.Create(ctx, created)
	})
	if err != nil {
		return nil, s.storeError("create", created.ID, err)
	}

	s.logger.Info("experiment created",
		"experiment", created.ID,
		"variants", len(created.Variants),
	)

	return created, nil
}

// ChooseVariant returns the variant a visitor should see.
//
// A visitor with a sticky mapping keeps its variant regardless of the current
// weights. Otherwise a variant is sampled from the current weights and the new
// mapping is written to the sticky store. An empty token is replaced with a
// newly minted one that the caller must hand back on later visits.
//
// Concurrent first requests for one token all return the mapping that won the
// sticky write.
//
// ChooseVariant never writes the experiment and takes no lock.
//
// Parameters:
//   - ctx: Context for cancellation
//   - experimentID: Experiment id
//   - token: Visitor token, may be empty
//
// Returns:
//   - Choice: Variant id and token
//   - error: ErrNotFound (unknown or retired), ErrNoVariants or ErrStoreUnavailable
func (s *Service) ChooseVariant(ctx context.Context, experimentID, token string) (Choice, error) {
	if !types.ValidID(experimentID) {
		return Choice{}, fmt.Errorf("%w: experiment %q", ErrNotFound, experimentID)
	}

	exp, err := s.load(ctx, experimentID)
	if err != nil {
		return Choice{}, s.fail(err)
	}

	if !exp.IsActive() {
		return Choice{}, fmt.Errorf("%w: experiment %q is %s", ErrNotFound, experimentID, exp.Status)
	}

	var choice Choice
	err = s.withTimeout(ctx, "sticky_get", func(ctx context.Context) error {
		var err error
		choice, err = s.assigner.Choose(ctx, exp, token)

		return err
	})
	if err != nil {
		if errors.Is(err, ErrNoVariants) {
			return Choice{}, err
		}

		return Choice{}, s.fail(stickyError("get", experimentID, err))
	}

	if choice.Fresh {
		stored, err := s.claim(ctx, exp, choice)
		if err != nil {
			return Choice{}, s.fail(stickyError("set", experimentID, err))
		}

		// A concurrent request for the same token stored its draw first
		if stored != choice.VariantID {
			choice.VariantID = stored
			choice.Fresh = false
		}
	}

	s.metrics.RecordAssignment(experimentID, choice.VariantID, choice.Fresh)

	return choice, nil
}

// RecordImpression increments the impression counter of one variant by exactly one.
//
// Parameters:
//   - ctx: Context for cancellation
//   - experimentID: Experiment id
//   - variantID: Variant id
//
// Returns:
//   - error: ErrNotFound (unknown ids, drop the event) or ErrStoreUnavailable (retryable)
func (s *Service) RecordImpression(ctx context.Context, experimentID, variantID string) error {
	return s.record(ctx, EventImpression, experimentID, variantID)
}

// RecordConversion increments the conversion counter of one variant by exactly
// one and recomputes every variant weight from the post-increment counters, in
// the same transaction.
//
// Parameters:
//   - ctx: Context for cancellation
//   - experimentID: Experiment id
//   - variantID: Variant id
//
// Returns:
//   - error: ErrNotFound (unknown ids, drop the event) or ErrStoreUnavailable (retryable)
func (s *Service) RecordConversion(ctx context.Context, experimentID, variantID string) error {
	return s.record(ctx, EventConversion, experimentID, variantID)
}

// GetStats returns a read-only snapshot of an experiment.
//
// The snapshot is owned by the caller. Retired experiments are reported too.
//
// Returns:
//   - *Experiment: Snapshot with counters and weights
//   - error: ErrNotFound or ErrStoreUnavailable
func (s *Service) GetStats(ctx context.Context, experimentID string) (*Experiment, error) {
	if !types.ValidID(experimentID) {
		return nil, fmt.Errorf("%w: experiment %q", ErrNotFound, experimentID)
	}

	exp, err := s.load(ctx, experimentID)
	if err != nil {
		return nil, s.fail(err)
	}

	return exp, nil
}

// Close cancels the hook context and waits for running hooks.
//
// Parameters:
//   - ctx: Bounds the wait
//
// Returns:
//   - error: ctx.Err() if hooks did not finish in time
func (s *Service) Close(ctx context.Context) error {
	s.hookMu.Lock()
	s.closed = true
	s.cancel()
	s.hookMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.hookWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim persists a fresh choice and returns the variant the sticky store holds
// for the token afterwards. A stored mapping to a removed variant is replaced.
func (s *Service) claim(ctx context.Context, exp *Experiment, choice Choice) (string, error) {
	previous := ""
	for range stickyClaimAttempts {
		var stored string
		err := s.withTimeout(ctx, "sticky_set", func(ctx context.Context) error {
			var err error
			stored, err = s.sticky.Set(ctx, exp.ID, choice.Token, previous, choice.VariantID)

			return err
		})
		if err != nil {
			return "", err
		}

		if stored == choice.VariantID || exp.VariantIndex(stored) >= 0 {
			return stored, nil
		}
		previous = stored
	}

	return "", fmt.Errorf("token mapping kept changing: %w", ErrConcurrentUpdate)
}

// record runs one counter update as a retried read-modify-write transaction.
func (s *Service) record(ctx context.Context, kind, experimentID, variantID string) error {
	if !types.ValidID(experimentID) || !types.ValidID(variantID) {
		s.metrics.RecordEvent(kind, unknownExperimentLabel, resultNotFound)
		return fmt.Errorf("%w: experiment %q variant %q", ErrNotFound, experimentID, variantID)
	}

	mu := s.lockFor(experimentID)
	mu.Lock()
	defer mu.Unlock()

	err := s.transact(ctx, kind, experimentID, variantID)
	if errors.Is(err, ErrNotFound) {
		s.metrics.RecordEvent(kind, unknownExperimentLabel, resultNotFound)
	} else {
		s.metrics.RecordEvent(kind, experimentID, eventResult(err))
	}

	if err != nil {
		return s.fail(err)
	}

	return nil
}

func (s *Service) transact(ctx context.Context, kind, experimentID, variantID string) error {
	maxAttempts := s.cfg.Transaction.MaxAttempts

	for attempt := 1; ; attempt++ {
		exp, err := s.load(ctx, experimentID)
		if err != nil {
			return err
		}

		idx := exp.VariantIndex(variantID)
		if idx < 0 {
			return fmt.Errorf("%w: experiment %q variant %q", ErrNotFound, experimentID, variantID)
		}

		var before []Variant
		switch kind {
		case EventImpression:
			exp.Variants[idx].Impressions++
		case EventConversion:
			exp.Variants[idx].Conversions++
			before = exp.Clone().Variants
			exp.Variants = s.policy.Recompute(exp.Variants)
		}
		exp.UpdatedAt = s.clock().UTC()

		err = s.withTimeout(ctx, "save", func(ctx context.Context) error {
			return s.repo.Save(ctx, exp)
		})
		if err == nil {
			if kind == EventConversion {
				s.afterReallocation(experimentID, before, exp.Variants)
			}

			return nil
		}

		if !errors.Is(err, ErrConcurrentUpdate) {
			return s.storeError("save", experimentID, err)
		}

		s.metrics.RecordConflictRetry(kind)

		if attempt >= maxAttempts {
			s.logger.Warn("giving up after revision conflicts",
				"experiment", experimentID,
				"event", kind,
				"attempts", attempt,
			)

			return fmt.Errorf("%w: %s on experiment %q after %d attempts: %w",
				ErrStoreUnavailable, kind, experimentID, attempt, err)
		}

		s.logger.Debug("revision conflict, retrying",
			"experiment", experimentID,
			"event", kind,
			"attempt", attempt,
		)

		if err := s.backoff(ctx, attempt); err != nil {
			return fmt.Errorf("%w: %s on experiment %q: %w", ErrStoreUnavailable, kind, experimentID, err)
		}
	}
}

// afterReallocation records metrics and fires OnWeightsChanged when a weight moved.
func (s *Service) afterReallocation(experimentID string, before, after []Variant) {
	best := strategy.BestIndex(after)
	if best >= 0 {
		s.metrics.RecordReallocation(experimentID, after[best].ID)
	}

	if !weightsChanged(before, after) {
		return
	}

	s.logger.Debug("weights reallocated",
		"experiment", experimentID,
		"best", after[best].ID,
		"weight", after[best].Weight,
	)

	afterCopy := make([]Variant, len(after))
	copy(afterCopy, after)

	s.runHook("weights changed", func(ctx context.Context) error {
		return s.hooks.OnWeightsChanged(ctx, experimentID, before, afterCopy)
	})
}

// backoff sleeps for the jittered exponential delay of the given attempt.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	delay := s.cfg.Transaction.InitialBackoff << min(attempt-1, 30)
	if delay <= 0 || delay > s.cfg.Transaction.MaxBackoff {
		delay = s.cfg.Transaction.MaxBackoff
	}
	// Jitter within [delay/2, delay].
	delay = delay/2 + time.Duration(rand.Int64N(int64(delay/2)+1))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) load(ctx context.Context, experimentID string) (*Experiment, error) {
	var exp *Experiment
	err := s.withTimeout(ctx, "load", func(ctx context.Context) error {
		var err error
		exp, err = s.repo.Load(ctx, experimentID)

		return err
	})
	if err != nil {
		return nil, s.storeError("load", experimentID, err)
	}

	return exp, nil
}

// withTimeout runs fn under OperationTimeout and records its latency.
func (s *Service) withTimeout(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx)
	s.metrics.RecordStoreOperationDuration(op, time.Since(start).Seconds())

	return err
}

// storeError maps context errors that escaped a store to ErrStoreUnavailable.
func (s *Service) storeError(op, experimentID string, err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s experiment %q: %w", ErrStoreUnavailable, op, experimentID, err)
	}

	return err
}

// stickyError reports every sticky store failure as ErrStoreUnavailable.
func stickyError(op, experimentID string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	return fmt.Errorf("%w: sticky %s for experiment %q: %w", ErrStoreUnavailable, op, experimentID, err)
}

// fail fires OnError for operational failures and returns err unchanged.
func (s *Service) fail(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		s.runHook("error", func(ctx context.Context) error {
			return s.hooks.OnError(ctx, err)
		})
	}

	return err
}

func (s *Service) runHook(name string, fn func(ctx context.Context) error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	if s.closed {
		return
	}

	s.hookWg.Add(1)
	go func() {
		defer s.hookWg.Done()

		if err := fn(s.ctx); err != nil {
			s.logger.Error("hook failed", "hook", name, "error", err)
		}
	}()
}

func (s *Service) lockFor(experimentID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrCompute(experimentID, func() (*sync.Mutex, bool) {
		return &sync.Mutex{}, false
	})

	return mu
}

func weightsChanged(before, after []Variant) bool {
	if len(before) != len(after) {
		return true
	}

	for i := range before {
		if before[i].Weight != after[i].Weight {
			return true
		}
	}

	return false
}

func eventResult(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return resultUnavailable
	default:
		return resultError
	}
}
