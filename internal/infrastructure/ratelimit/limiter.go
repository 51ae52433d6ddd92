package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter is an in-process token bucket per key. It implements
// usecase.RateLimiter for single-node deployments.
type KeyedLimiter struct {
	limiters map[string]*entry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPerWindow allows n actions per window per key with a burst of n.
func NewPerWindow(n int, window time.Duration) *KeyedLimiter {
	return New(rate.Limit(float64(n)/window.Seconds()), n)
}

// New creates a limiter with r events per second and burst b per key.
func New(r rate.Limit, b int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*entry),
		rate:     r,
		burst:    b,
		now:      time.Now,
	}
}

// Allow reports whether another action under key may happen now.
func (l *KeyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := l.now()

	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1), nil
}

// Cleanup drops limiters idle for longer than idle. Call it periodically.
func (l *KeyedLimiter) Cleanup(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
