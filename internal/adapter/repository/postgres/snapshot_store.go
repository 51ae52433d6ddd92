package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/postgres/generated"
)

type snapshotPool interface {
	pgxPool
	generated.DBTX
}

// SnapshotStore implements usecase.SnapshotStore on PostgreSQL. Each save
// inserts a row; older rows beyond keep are pruned in the same transaction.
type SnapshotStore struct {
	pool    snapshotPool
	txm     *TxManager
	retrier *Retrier
	keep    int
}

// NewSnapshotStore creates a SnapshotStore keeping the newest keep snapshots.
// keep of zero keeps every snapshot.
func NewSnapshotStore(pool *pgxpool.Pool, keep int, logger zerolog.Logger) *SnapshotStore {
	return newSnapshotStore(pool, keep, logger)
}

func newSnapshotStore(pool snapshotPool, keep int, logger zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		pool:    pool,
		txm:     newTxManagerWithPool(pool),
		retrier: NewRetrier(logger),
		keep:    keep,
	}
}

// Save stores the snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	payload, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	params := generated.InsertSnapshotParams{
		Version:  int32(snapshot.Version),
		TakenAt:  timeToPgTimestamptz(snapshot.TakenAt),
		Accounts: int32(len(snapshot.Accounts)),
		Orders:   int32(len(snapshot.Orders)),
		Payload:  payload,
	}

	return s.retrier.Retry(ctx, "save snapshot", func() error {
		return s.txm.WithTx(ctx, func(tx pgx.Tx) error {
			q := generated.New(tx)
			if _, err := q.InsertSnapshot(ctx, params); err != nil {
				return fmt.Errorf("insert snapshot: %w", err)
			}
			if s.keep > 0 {
				if err := q.PruneSnapshots(ctx, int32(s.keep)); err != nil {
					return fmt.Errorf("prune snapshots: %w", err)
				}
			}
			return nil
		})
	})
}

// Load returns the newest snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	var row generated.EconomySnapshot
	err := s.retrier.Retry(ctx, "load snapshot", func() error {
		var err error
		row, err = generated.New(s.pool).GetLatestSnapshot(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}

	return domain.DecodeSnapshot(row.Payload)
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	return generated.New(s.pool).CountSnapshots(ctx)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}
