package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/internal/logging"
	"github.com/arloliu/vario/types"
)

const (
	// DefaultBatchSize is the number of messages requested per pull.
	DefaultBatchSize = 64

	// DefaultFetchTimeout is the pull request expiry.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultRetryBackoff is the wait between consumer setup attempts and
	// after transient iterator errors.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultMaxRetries bounds consumer creation attempts.
	DefaultMaxRetries = 3
)

// Recorder receives decoded events. *vario.Service implements it.
type Recorder interface {
	RecordImpression(ctx context.Context, experimentID, variantID string) error
	RecordConversion(ctx context.Context, experimentID, variantID string) error
}

var _ Recorder = (*vario.Service)(nil)

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the consumer logger.
func WithLogger(logger types.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBatchSize sets how many messages are pulled per request.
func WithBatchSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// Consumer feeds events from a durable JetStream pull consumer into a Recorder.
type Consumer struct {
	js       jetstream.JetStream
	recorder Recorder
	cfg      vario.EventsConfig
	logger   types.Logger

	batchSize int

	mu       sync.Mutex
	consumer jetstream.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConsumer creates a consumer. Call Start to begin processing.
//
// Parameters:
//   - js: JetStream context
//   - recorder: Event sink, normally a *vario.Service
//   - cfg: Events configuration (stream, consumer name, delivery bounds)
//   - opts: Optional logger and batch size
//
// Returns:
//   - *Consumer: Consumer ready to start
//   - error: ErrRecorderRequired, or a configuration error
func NewConsumer(js jetstream.JetStream, recorder Recorder, cfg vario.EventsConfig, opts ...Option) (*Consumer, error) {
	if js == nil {
		return nil, errors.New("JetStream context is required")
	}
	if recorder == nil {
		return nil, ErrRecorderRequired
	}
	if cfg.Stream == "" || cfg.ConsumerName == "" || cfg.SubjectPrefix == "" {
		return nil, fmt.Errorf("%w: events stream, subject prefix and consumer name are required", vario.ErrInvalidConfig)
	}

	c := &Consumer{
		js:        js,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logging.NewNop(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start binds the durable consumer and starts the pull loop in the background.
//
// The stream must already exist, see EnsureStream.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	consumer, err := c.getOrCreateConsumer(ctx)
	if err != nil {
		return err
	}

	pullCtx, cancel := context.WithCancel(context.Background())
	c.consumer = consumer
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		if err := c.pullLoop(pullCtx, consumer); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("event pull loop exited with error", "consumer", c.cfg.ConsumerName, "error", err)
		}
	}()

	c.logger.Info("event consumer started",
		"stream", c.cfg.Stream,
		"consumer", c.cfg.ConsumerName,
	)

	return nil
}

// Stop stops the pull loop and waits for the in-flight message.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		c.logger.Info("event consumer stopped", "consumer", c.cfg.ConsumerName)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info returns the durable consumer state.
func (c *Consumer) Info(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	c.mu.Lock()
	consumer := c.consumer
	c.mu.Unlock()

	if consumer == nil {
		return nil, errors.New("consumer not started")
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer info: %w", err)
	}

	return info, nil
}

func (c *Consumer) getOrCreateConsumer(ctx context.Context) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, c.cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", c.cfg.Stream, err)
	}

	name := sanitizeConsumerName(c.cfg.ConsumerName)

	for attempt := 0; ; attempt++ {
		consumer, err := c.tryGetOrCreateConsumer(ctx, stream, name)
		if err == nil {
			return consumer, nil
		}

		if attempt >= DefaultMaxRetries {
			return nil, fmt.Errorf("failed to get/create consumer %s after %d attempts: %w", name, attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(DefaultRetryBackoff):
		}
	}
}

func (c *Consumer) tryGetOrCreateConsumer(ctx context.Context, stream jetstream.Stream, name string) (jetstream.Consumer, error) {
	consumer, err := stream.Consumer(ctx, name)
	if err == nil {
		c.logger.Debug("using existing consumer", "consumer", name)
		return consumer, nil
	}

	if !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return nil, fmt.Errorf("failed to access consumer: %w", err)
	}

	consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		FilterSubject: c.cfg.SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err == nil {
		c.logger.Info("consumer created", "consumer", name)
		return consumer, nil
	}

	if !errors.Is(err, jetstream.ErrConsumerNameAlreadyInUse) {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	// Another instance created it first.
	consumer, err = stream.Consumer(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer after race: %w", err)
	}

	return consumer, nil
}

func (c *Consumer) pullLoop(ctx context.Context, consumer jetstream.Consumer) error {
	iter, err := consumer.Messages(
		jetstream.PullMaxMessages(c.batchSize),
		jetstream.PullExpiry(DefaultFetchTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create message iterator: %w", err)
	}

	// Next does not observe ctx; stopping the iterator unblocks it.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			iter.Stop()
		case <-stopped:
			iter.Stop()
		}
	}()

	for {
		msg, err := iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				return ctx.Err()
			}

			c.logger.Warn("error fetching next event, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(DefaultRetryBackoff):
				continue
			}
		}

		c.handle(ctx, msg)
	}
}

// handle records one message and settles it according to the delivery policy.
func (c *Consumer) handle(ctx context.Context, msg jetstream.Msg) {
	ev, err := decodeEvent(msg.Data())
	if err != nil {
		c.logger.Warn("terminating malformed event", "subject", msg.Subject(), "error", err)
		_ = msg.Term()

		return
	}

	switch ev.Kind {
	case KindImpression:
		err = c.recorder.RecordImpression(ctx, ev.ExperimentID, ev.VariantID)
	case KindConversion:
		err = c.recorder.RecordConversion(ctx, ev.ExperimentID, ev.VariantID)
	}

	switch {
	case err == nil:
		_ = msg.Ack()

	case errors.Is(err, vario.ErrNotFound):
		c.logger.Debug("dropping event for unknown experiment or variant",
			"event", ev.ID, "experiment", ev.ExperimentID, "variant", ev.VariantID)
		_ = msg.Term()

	case ev.Kind == KindImpression:
		c.logger.Warn("dropping impression after store failure",
			"event", ev.ID, "experiment", ev.ExperimentID, "error", err)
		_ = msg.Ack()

	default:
		if c.lastDelivery(msg) {
			c.logger.Error("dropping conversion, delivery attempts exhausted",
				"event", ev.ID, "experiment", ev.ExperimentID, "variant", ev.VariantID, "error", err)
		} else {
			c.logger.Warn("conversion failed, requesting redelivery",
				"event", ev.ID, "experiment", ev.ExperimentID, "error", err)
		}
		_ = msg.NakWithDelay(c.cfg.NakDelay)
	}
}

func (c *Consumer) lastDelivery(msg jetstream.Msg) bool {
	if c.cfg.MaxDeliver < 1 {
		return false
	}

	md, err := msg.Metadata()
	if err != nil {
		return false
	}

	return md.NumDelivered >= uint64(c.cfg.MaxDeliver)
}

func sanitizeConsumerName(name string) string {
	var result strings.Builder
	result.Grow(len(name))

	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
			r == '.' || r == '*' || r == '>' ||
			r == '/' || r == '\\' ||
			r < 32 || r == 127 {
			result.WriteRune('_')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
