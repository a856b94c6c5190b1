package webhook

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/model"
	"github.com/coregx/pickup/retry"
)

// Observer receives the outcome of every webhook delivery.
type Observer interface {
	ObserveWebhook(topic string, attempts int, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveWebhook(string, int, error) {}

type event struct {
	topic   string
	payload interface{}
}

// Option configures an Emitter.
type Option func(*Emitter) error

// WithQueueSize sets the number of events that can wait for delivery.
// Default: 256.
func WithQueueSize(size int) Option {
	return func(e *Emitter) error {
		if size <= 0 {
			return fmt.Errorf("queue size must be > 0, got %d", size)
		}
		e.queueSize = size
		return nil
	}
}

// WithWorkers sets the number of delivery workers. Default: 2.
func WithWorkers(n int) Option {
	return func(e *Emitter) error {
		if n <= 0 {
			return fmt.Errorf("workers must be > 0, got %d", n)
		}
		e.workers = n
		return nil
	}
}

// WithRetryStrategy sets the redelivery strategy. Default: retry.DefaultStrategy().
func WithRetryStrategy(strategy retry.Strategy) Option {
	return func(e *Emitter) error {
		if err := strategy.Validate(); err != nil {
			return err
		}
		e.strategy = strategy
		return nil
	}
}

// WithLogger sets the logger instance for the emitter.
func WithLogger(logger pickup.Logger) Option {
	return func(e *Emitter) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithObserver sets the delivery observer.
func WithObserver(observer Observer) Option {
	return func(e *Emitter) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		e.observer = observer
		return nil
	}
}

// Emitter queues stored-message events and delivers them through a Sink.
//
// NotifyMessageStored never blocks: when the queue is full the event is
// dropped and a NOTIFICATION_FAILED error is returned. Events are only
// delivered while Run is active.
type Emitter struct {
	sink      Sink
	logger    pickup.Logger
	observer  Observer
	strategy  retry.Strategy
	queueSize int
	workers   int

	queue chan event

	mu     sync.RWMutex
	closed bool
}

var _ pickup.NotificationService = (*Emitter)(nil)

// NewEmitter creates an Emitter delivering to sink.
func NewEmitter(sink Sink, opts ...Option) (*Emitter, error) {
	if sink == nil {
		return nil, pickup.NewError(pickup.ErrCodeConfiguration, "webhook sink is required")
	}

	e := &Emitter{
		sink:      sink,
		logger:    &pickup.NoopLogger{},
		observer:  noopObserver{},
		strategy:  retry.DefaultStrategy(),
		queueSize: 256,
		workers:   2,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, pickup.NewErrorWithCause(pickup.ErrCodeConfiguration, "failed to apply webhook option", err)
		}
	}

	e.queue = make(chan event, e.queueSize)
	return e, nil
}

// NotifyMessageStored implements pickup.NotificationService.
func (e *Emitter) NotifyMessageStored(_ context.Context, ev model.StoredMessageEvent) error {
	return e.enqueue(event{topic: model.StoredMessageTopic, payload: ev})
}

func (e *Emitter) enqueue(ev event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return pickup.NewError(pickup.ErrCodeNotificationFailed, "webhook emitter is closed")
	}

	select {
	case e.queue <- ev:
		return nil
	default:
		return pickup.NewError(pickup.ErrCodeNotificationFailed,
			fmt.Sprintf("webhook queue full (%d events), dropping %s", e.queueSize, ev.topic))
	}
}

// Pending returns the number of queued events.
func (e *Emitter) Pending() int {
	return len(e.queue)
}

// Run delivers queued events until ctx is done. Events still queued when
// ctx is cancelled are dropped.
func (e *Emitter) Run(ctx context.Context) error {
	e.logger.Infof("🔔 Webhook emitter started: workers=%d, queue=%d", e.workers, e.queueSize)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			e.work(gctx)
			return nil
		})
	}
	err := g.Wait()

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	if dropped := len(e.queue); dropped > 0 {
		e.logger.Warnf("Webhook emitter stopped with %d undelivered events", dropped)
	}
	e.logger.Info("Webhook emitter stopped")
	return err
}

func (e *Emitter) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.queue:
			e.deliver(ctx, ev)
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, ev event) {
	attempts, err := e.strategy.Do(ctx, func(ctx context.Context) error {
		return e.sink.SendWebhook(ctx, ev.topic, ev.payload)
	})
	e.observer.ObserveWebhook(ev.topic, attempts, err)

	if err != nil {
		e.logger.Errorf("Webhook %s failed after %d attempts: %v", ev.topic, attempts, err)
		return
	}
	e.logger.Debugf("Webhook %s delivered (attempts=%d)", ev.topic, attempts)
}
