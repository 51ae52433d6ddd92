package eventpublisher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
)

func TestDeliversInOrderAndDrainsOnClose(t *testing.T) {
	first := &stubPublisher{}
	second := &stubPublisher{}
	ep := newTestPublisher(nil, first, second)
	done := start(t, ep)

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := ep.Emit(context.Background(), domain.Event{ID: id, Kind: domain.EventTransfer}); err != nil {
			t.Fatalf("emit %s: %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ep.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("start returned %v", err)
	}

	for _, p := range []*stubPublisher{first, second} {
		if got := p.ids(); strings.Join(got, ",") != "evt-1,evt-2,evt-3" {
			t.Fatalf("unexpected delivery order %v", got)
		}
	}

	if err := ep.Emit(context.Background(), domain.Event{ID: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	pub := &stubPublisher{failures: map[string]int{"evt-1": 2}}
	ep := newTestPublisher(nil, pub)
	done := start(t, ep)

	if err := ep.Emit(context.Background(), domain.Event{ID: "evt-1", Kind: domain.EventTrade}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	closeAndWait(t, ep, done)

	if got := pub.ids(); len(got) != 1 || got[0] != "evt-1" {
		t.Fatalf("expected evt-1 after retries, got %v", got)
	}
	if pub.attempts["evt-1"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", pub.attempts["evt-1"])
	}
}

func TestDropsAfterMaxRetriesAndContinues(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pub := &stubPublisher{failures: map[string]int{"evt-1": 100}}
	ep := newTestPublisher(m, pub)
	done := start(t, ep)

	_ = ep.Emit(context.Background(), domain.Event{ID: "evt-1", Kind: domain.EventOrderFilled})
	_ = ep.Emit(context.Background(), domain.Event{ID: "evt-2", Kind: domain.EventOrderFilled})
	closeAndWait(t, ep, done)

	if got := pub.ids(); len(got) != 1 || got[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be published, got %v", got)
	}
	if pub.attempts["evt-1"] != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", pub.attempts["evt-1"])
	}
	if got := testutil.ToFloat64(m.EventPublishFails.WithLabelValues(string(domain.EventOrderFilled))); got != 1 {
		t.Fatalf("expected one failure recorded, got %v", got)
	}
}

func TestEmitRejectsWhenBufferFull(t *testing.T) {
	ep := NewEventPublisher(Config{Logger: zerolog.Nop(), BufferSize: 1})

	if err := ep.Emit(context.Background(), domain.Event{ID: "evt-1"}); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if err := ep.Emit(context.Background(), domain.Event{ID: "evt-2"}); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	ep := newTestPublisher(nil, &stubPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestLogPublisherWritesFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	err := p.Publish(context.Background(), domain.Event{
		ID:       "evt-9",
		Kind:     domain.EventTrade,
		Owners:   []string{"alice", "bob"},
		Currency: "COINS",
		ItemID:   "sword",
		Amount:   decimal.NewFromInt(60),
		Quantity: 2,
		OrderID:  "ord-1",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"event_id":"evt-9"`, `"kind":"trade.executed"`, `"amount":"60"`, `"quantity":2`, `"order_id":"ord-1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func newTestPublisher(m *metrics.Metrics, pubs ...Publisher) *EventPublisher {
	return NewEventPublisher(Config{
		Publishers: pubs,
		Logger:     zerolog.Nop(),
		Metrics:    m,
		BufferSize: 16,
		MaxRetries: 2,
		Interval:   time.Millisecond,
	})
}

func start(t *testing.T, ep *EventPublisher) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(context.Background())
	}()
	return done
}

func closeAndWait(t *testing.T, ep *EventPublisher, done <-chan error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ep.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("start returned %v", err)
	}
}

type stubPublisher struct {
	mu        sync.Mutex
	published []domain.Event
	failures  map[string]int
	attempts  map[string]int
}

func (s *stubPublisher) Publish(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[event.ID]++
	if s.failures[event.ID] >= s.attempts[event.ID] {
		return errors.New("broker unavailable")
	}
	s.published = append(s.published, event)
	return nil
}

func (s *stubPublisher) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.published))
	for i, e := range s.published {
		out[i] = e.ID
	}
	return out
}
