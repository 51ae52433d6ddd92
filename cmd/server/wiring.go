package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/goeconomy/internal/adapter/http/handler"
	"github.com/iho/goeconomy/internal/adapter/messaging/kafka"
	"github.com/iho/goeconomy/internal/adapter/messaging/redispubsub"
	"github.com/iho/goeconomy/internal/adapter/repository/file"
	pebbleRepo "github.com/iho/goeconomy/internal/adapter/repository/pebble"
	postgresRepo "github.com/iho/goeconomy/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/goeconomy/internal/adapter/repository/redis"
	"github.com/iho/goeconomy/internal/adapter/repository/sqlite"
	"github.com/iho/goeconomy/internal/adapter/ws"
	"github.com/iho/goeconomy/internal/infrastructure/config"
	"github.com/iho/goeconomy/internal/infrastructure/eventpublisher"
	"github.com/iho/goeconomy/internal/infrastructure/postgres"
	"github.com/iho/goeconomy/internal/usecase"
)

// snapshotsKept bounds the history kept by the database backends.
const snapshotsKept = 20

type closer struct {
	name string
	fn   func() error
}

// closerStack releases resources in reverse order of acquisition.
type closerStack []closer

func (s *closerStack) push(name string, fn func() error) {
	*s = append(*s, closer{name: name, fn: fn})
}

func (s *closerStack) closeAll(lg zerolog.Logger) {
	for i := len(*s) - 1; i >= 0; i-- {
		c := (*s)[i]
		if err := c.fn(); err != nil {
			lg.Warn().Err(err).Str("resource", c.name).Msg("close failed")
		}
	}
	*s = nil
}

// openSnapshotStore returns the configured backend, or nil for "none".
// Backends that hold a connection register a readiness check.
func openSnapshotStore(
	ctx context.Context,
	cfg *config.Config,
	redisClient *goredis.Client,
	lg zerolog.Logger,
	closers *closerStack,
	checks map[string]handler.Pinger,
) (usecase.SnapshotStore, error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotBackendNone:
		lg.Warn().Msg("snapshots disabled, state will not survive a restart")
		return nil, nil

	case config.SnapshotBackendFile:
		store, err := file.NewSnapshotStore(cfg.SnapshotPath)
		if err != nil {
			return nil, err
		}
		lg.Info().Str("path", store.Path()).Msg("using file snapshots")
		return store, nil

	case config.SnapshotBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis snapshot backend requires a redis connection")
		}
		return redisRepo.NewSnapshotStore(redisClient, cfg.RedisSnapshotKey), nil

	case config.SnapshotBackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, lg); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers.push("postgres", func() error { pool.Close(); return nil })
		checks["postgres"] = pool
		lg.Info().Msg("connected to postgres")
		return postgresRepo.NewSnapshotStore(pool, snapshotsKept, lg), nil

	case config.SnapshotBackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, snapshotsKept)
		if err != nil {
			return nil, err
		}
		closers.push("sqlite", store.Close)
		return store, nil

	case config.SnapshotBackendPebble:
		store, err := pebbleRepo.Open(cfg.PebblePath, snapshotsKept)
		if err != nil {
			return nil, err
		}
		closers.push("pebble", store.Close)
		return store, nil
	}

	return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
}

// buildPublishers creates one publisher per enabled event sink.
func buildPublishers(
	cfg *config.Config,
	redisClient *goredis.Client,
	hub *ws.Hub,
	lg zerolog.Logger,
	closers *closerStack,
) []eventpublisher.Publisher {
	var publishers []eventpublisher.Publisher

	if cfg.HasSink(config.EventSinkLog) {
		publishers = append(publishers, eventpublisher.NewLogPublisher(lg))
	}
	if cfg.HasSink(config.EventSinkKafka) {
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers.push("kafka", p.Close)
		publishers = append(publishers, p)
	}
	if cfg.HasSink(config.EventSinkRedis) && redisClient != nil {
		publishers = append(publishers, redispubsub.NewPublisher(redisClient, cfg.RedisEventsChannel))
	}
	if hub != nil {
		publishers = append(publishers, hub)
	}

	return publishers
}
