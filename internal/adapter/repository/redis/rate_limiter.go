package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every server instance.
// It implements usecase.RateLimiter.
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit actions per key in each window.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: "goeconomy:ratelimit:",
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow counts one action under key and reports whether it fits the window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	fullKey := r.prefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.Expire(ctx, fullKey, r.window)
		return nil
	})
	if err != nil {
		return false, err
	}

	return incr.Val() <= r.limit, nil
}
