package pebble

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/iho/goeconomy/internal/domain"
)

var (
	keyPrefix = []byte("snapshot/")
	keyUpper  = []byte("snapshot0")
)

// SnapshotStore implements usecase.SnapshotStore on an embedded Pebble
// database. Snapshots are keyed by a big-endian sequence so the newest one
// sorts last.
type SnapshotStore struct {
	db   *pebble.DB
	keep int

	mu sync.Mutex // serialises Save
}

// Open opens or creates the database in dir. keep of zero keeps every snapshot.
func Open(dir string, keep int) (*SnapshotStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &SnapshotStore{db: db, keep: keep}, nil
}

// Close flushes and closes the database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save appends the snapshot and drops the oldest beyond keep.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keys()
	if err != nil {
		return err
	}

	var next uint64 = 1
	if len(keys) > 0 {
		next = seqOf(keys[len(keys)-1]) + 1
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(keyFor(next), payload, nil); err != nil {
		return err
	}
	if s.keep > 0 && len(keys)+1 > s.keep {
		for _, k := range keys[:len(keys)+1-s.keep] {
			if err := batch.Delete(k, nil); err != nil {
				return err
			}
		}
	}

	return batch.Commit(pebble.Sync)
}

// Load returns the newest snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, domain.ErrSnapshotNotFound
	}

	data := append([]byte(nil), iter.Value()...)
	return domain.DecodeSnapshot(data)
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count() (int, error) {
	keys, err := s.keys()
	return len(keys), err
}

func (s *SnapshotStore) keys() ([][]byte, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: keyUpper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	return keys, iter.Error()
}

func keyFor(seq uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], seq)
	return key
}

func seqOf(key []byte) uint64 {
	if len(key) != len(keyPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(keyPrefix):])
}
