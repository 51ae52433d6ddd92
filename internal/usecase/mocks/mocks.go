package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iho/goeconomy/internal/domain"
)

// SequenceIDGenerator hands out predictable ids.
type SequenceIDGenerator struct {
	Prefix string

	mu      sync.Mutex
	counter int
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{Prefix: prefix}
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s%06d", g.Prefix, g.counter)
}

// RecordingSink is an EventSink that keeps every event.
type RecordingSink struct {
	mu     sync.Mutex
	events []domain.Event

	EmitFunc func(ctx context.Context, event domain.Event) error
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Emit(ctx context.Context, event domain.Event) error {
	if s.EmitFunc != nil {
		if err := s.EmitFunc(ctx, event); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (s *RecordingSink) Kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

// MemorySnapshotStore keeps the latest snapshot in memory.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	last  *domain.Snapshot
	saves int

	SaveFunc func(ctx context.Context, snapshot *domain.Snapshot) error
	LoadFunc func(ctx context.Context) (*domain.Snapshot, error)
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (m *MemorySnapshotStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = snapshot
	m.saves++
	return nil
}

func (m *MemorySnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return m.last, nil
}

// Saves is the number of successful saves.
func (m *MemorySnapshotStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MemoryIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MemoryIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}
