package usecase

import (
	"context"
	"time"

	"github.com/iho/goeconomy/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Clock supplies the current time. Tests inject a manual clock.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// EventSink receives domain events after the state change is visible.
// Implementations may block on I/O; no engine lock is held during Emit.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event) error
}

// SnapshotStore persists engine snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *domain.Snapshot) error
	// Load returns the latest snapshot or domain.ErrSnapshotNotFound.
	Load(ctx context.Context) (*domain.Snapshot, error)
}

// RateLimiter decides whether another action under key is allowed now.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ItemCatalog knows which item ids exist.
type ItemCatalog interface {
	Exists(itemID string) bool
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
