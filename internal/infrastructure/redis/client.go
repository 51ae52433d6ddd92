package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// dialTimeout caps how long start-up waits for an unreachable server.
const dialTimeout = 5 * time.Second

// NewClient connects to redisURL and verifies the server answers. The one
// client is shared by snapshots, idempotency keys, the transfer limiter and
// the event channel.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if opts.DialTimeout == 0 || opts.DialTimeout > dialTimeout {
		opts.DialTimeout = dialTimeout
	}

	client := redis.NewClient(opts)
	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Ping reports whether the server behind client is reachable.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
