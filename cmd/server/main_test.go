package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goeconomy/internal/adapter/http/handler"
	"github.com/iho/goeconomy/internal/adapter/ws"
	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/config"
	"github.com/iho/goeconomy/internal/infrastructure/eventpublisher"
)

func TestOpenSnapshotStore_None(t *testing.T) {
	var closers closerStack
	cfg := &config.Config{SnapshotBackend: config.SnapshotBackendNone}

	store, err := openSnapshotStore(context.Background(), cfg, nil, zerolog.Nop(), &closers, map[string]handler.Pinger{})

	require.NoError(t, err)
	assert.Nil(t, store)
	assert.Empty(t, closers)
}

func TestOpenSnapshotStore_LocalBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		closes  int
	}{
		{config.SnapshotBackendFile, 0},
		{config.SnapshotBackendSQLite, 1},
		{config.SnapshotBackendPebble, 1},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			var closers closerStack
			defer closers.closeAll(zerolog.Nop())

			cfg := &config.Config{
				SnapshotBackend: tt.backend,
				SnapshotPath:    filepath.Join(dir, tt.backend, "snapshot.json"),
				SQLitePath:      filepath.Join(dir, tt.backend, "economy.db"),
				PebblePath:      filepath.Join(dir, tt.backend, "pebble"),
			}

			store, err := openSnapshotStore(context.Background(), cfg, nil, zerolog.Nop(), &closers, map[string]handler.Pinger{})
			require.NoError(t, err)
			require.NotNil(t, store)
			assert.Len(t, closers, tt.closes)

			_, err = store.Load(context.Background())
			assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
		})
	}
}

func TestOpenSnapshotStore_RedisNeedsClient(t *testing.T) {
	var closers closerStack
	cfg := &config.Config{SnapshotBackend: config.SnapshotBackendRedis}

	_, err := openSnapshotStore(context.Background(), cfg, nil, zerolog.Nop(), &closers, map[string]handler.Pinger{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := openSnapshotStore(context.Background(), cfg, client, zerolog.Nop(), &closers, map[string]handler.Pinger{})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestBuildPublishers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := ws.NewHub(zerolog.Nop(), nil)
	defer hub.Close()

	var closers closerStack
	cfg := &config.Config{
		EventSinks:         []string{"log", "kafka", "redis", "websocket"},
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaTopic:         "economy-events",
		RedisEventsChannel: "goeconomy:events",
	}

	publishers := buildPublishers(cfg, client, hub, zerolog.Nop(), &closers)
	defer closers.closeAll(zerolog.Nop())

	require.Len(t, publishers, 4)
	assert.IsType(t, &eventpublisher.LogPublisher{}, publishers[0])
	assert.Same(t, hub, publishers[3])
	assert.Len(t, closers, 1)
}

func TestBuildPublishers_LogOnly(t *testing.T) {
	var closers closerStack
	cfg := &config.Config{EventSinks: []string{"log"}}

	publishers := buildPublishers(cfg, nil, nil, zerolog.Nop(), &closers)

	assert.Len(t, publishers, 1)
	assert.Empty(t, closers)
}

func TestCloserStack_ReverseOrder(t *testing.T) {
	var order []string
	var closers closerStack
	closers.push("first", func() error { order = append(order, "first"); return nil })
	closers.push("second", func() error { order = append(order, "second"); return errors.New("boom") })

	closers.closeAll(zerolog.Nop())

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Empty(t, closers)
}
