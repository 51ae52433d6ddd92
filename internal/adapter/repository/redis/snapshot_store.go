package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/goeconomy/internal/domain"
)

// SnapshotStore implements usecase.SnapshotStore with a single Redis key.
// The previous snapshot is kept under key+":previous".
type SnapshotStore struct {
	client *redis.Client
	key    string
}

// NewSnapshotStore creates a SnapshotStore writing to key.
func NewSnapshotStore(client *redis.Client, key string) *SnapshotStore {
	return &SnapshotStore{client: client, key: key}
}

// Save stores the snapshot, moving the current one aside first.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	payload, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	current, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read current snapshot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if current != nil {
			pipe.Set(ctx, s.key+":previous", current, 0)
		}
		pipe.Set(ctx, s.key, payload, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load returns the latest snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return domain.DecodeSnapshot(data)
}
