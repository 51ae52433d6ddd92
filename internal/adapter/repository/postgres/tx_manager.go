package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// pgxPool is the part of *pgxpool.Pool the stores need to open transactions.
type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
}

// TxManager runs a unit of work in one transaction.
type TxManager struct {
	pool pgxPool
}

func newTxManagerWithPool(pool pgxPool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx runs fn in a transaction, committing on success. An error or panic
// in fn rolls back; a panic is re-raised after the rollback.
func (m *TxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}
