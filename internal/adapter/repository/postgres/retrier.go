package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLSTATE codes worth another attempt. Snapshot writes are single
// transactions, so replaying one after any of these is safe.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrConnectionFailure    = "08006"
	pgErrConnectionException  = "08000"
	pgErrTooManyConnections   = "53300"
	pgErrAdminShutdown        = "57P01"
	pgErrCannotConnectNow     = "57P03"
)

// RetryConfig bounds how long a Retrier keeps trying.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig suits the periodic snapshot task: a few quick retries,
// then give up and let the next tick try again.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier retries database operations with exponential backoff.
type Retrier struct {
	cfg    RetryConfig
	logger zerolog.Logger
}

// NewRetrier creates a Retrier with DefaultRetryConfig.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return NewRetrierWithConfig(DefaultRetryConfig(), logger)
}

// NewRetrierWithConfig creates a Retrier with explicit limits.
func NewRetrierWithConfig(cfg RetryConfig, logger zerolog.Logger) *Retrier {
	return &Retrier{
		cfg:    cfg,
		logger: logger.With().Str("component", "pg-retrier").Logger(),
	}
}

// Retry runs fn until it succeeds, fails permanently or the budget is spent.
// op names the operation in logs.
func (r *Retrier) Retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	attempt := 0
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}

		attempt++
		if attempt > r.cfg.MaxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Err(err).
			Str("op", op).
			Int("retry", attempt).
			Msg("retryable database error")
		return err
	}, backoff.WithContext(b, ctx))
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure, pgErrConnectionFailure,
			pgErrConnectionException, pgErrTooManyConnections,
			pgErrAdminShutdown, pgErrCannotConnectNow:
			return true
		}
		return false
	}

	// Network timeouts before the server answered.
	return pgconn.Timeout(err)
}
