package eventpublisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
)

var (
	// ErrBufferFull is returned by Emit when the queue cannot take another event.
	ErrBufferFull = errors.New("event buffer full")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("event publisher closed")
)

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// EventPublisher queues events from the engine and delivers them to every
// publisher from a single worker, so each publisher sees events in emit order.
type EventPublisher struct {
	publishers []Publisher
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	events     chan domain.Event
	maxRetries uint64
	interval   time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Config for EventPublisher.
type Config struct {
	Publishers []Publisher
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	BufferSize int           // Events held before Emit starts rejecting
	MaxRetries uint64        // Retries per publisher before an event is dropped
	Interval   time.Duration // Initial retry interval
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Interval == 0 {
		cfg.Interval = 100 * time.Millisecond
	}

	return &EventPublisher{
		publishers: cfg.Publishers,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		events:     make(chan domain.Event, cfg.BufferSize),
		maxRetries: cfg.MaxRetries,
		interval:   cfg.Interval,
		done:       make(chan struct{}),
	}
}

// Emit queues the event without blocking.
func (ep *EventPublisher) Emit(ctx context.Context, event domain.Event) error {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.closed {
		return ErrClosed
	}

	select {
	case ep.events <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Start runs the delivery worker. It returns nil once Close has drained the
// queue, or the context error if ctx ends first.
func (ep *EventPublisher) Start(ctx context.Context) error {
	defer close(ep.done)

	ep.logger.Info().
		Int("publishers", len(ep.publishers)).
		Int("buffer", cap(ep.events)).
		Msg("event publisher started")

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Int("pending", len(ep.events)).Msg("event publisher shutting down")
			return ctx.Err()
		case event, ok := <-ep.events:
			if !ok {
				ep.logger.Info().Msg("event publisher drained")
				return nil
			}
			ep.deliver(ctx, event)
		}
	}
}

// Close stops accepting events and waits until the worker has delivered
// everything already queued, or ctx ends.
func (ep *EventPublisher) Close(ctx context.Context) error {
	ep.mu.Lock()
	if !ep.closed {
		ep.closed = true
		close(ep.events)
	}
	ep.mu.Unlock()

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ep *EventPublisher) deliver(ctx context.Context, event domain.Event) {
	for _, p := range ep.publishers {
		if err := ep.publishWithRetry(ctx, p, event); err != nil {
			if ep.metrics != nil {
				ep.metrics.EventPublishFails.WithLabelValues(string(event.Kind)).Inc()
			}
			ep.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("kind", string(event.Kind)).
				Str("publisher", fmt.Sprintf("%T", p)).
				Msg("failed to publish event")
		}
	}
}

func (ep *EventPublisher) publishWithRetry(ctx context.Context, p Publisher, event domain.Event) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ep.interval
	b.MaxInterval = 5 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := p.Publish(ctx, event)
		if err != nil && attempt <= int(ep.maxRetries) {
			ep.logger.Warn().
				Err(err).
				Str("event_id", event.ID).
				Int("attempt", attempt).
				Msg("publish failed, retrying")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, ep.maxRetries), ctx))
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event domain.Event) error {
	e := p.logger.Info().
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Strs("owners", event.Owners)
	if event.Currency != "" {
		e = e.Str("currency", event.Currency).Str("amount", event.Amount.String())
	}
	if event.ItemID != "" {
		e = e.Str("item_id", event.ItemID).Int64("quantity", event.Quantity)
	}
	if event.OrderID != "" {
		e = e.Str("order_id", event.OrderID)
	}
	e.Time("occurred_at", event.OccurredAt).Msg("event published")
	return nil
}
