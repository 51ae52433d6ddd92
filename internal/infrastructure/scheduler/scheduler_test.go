package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goeconomy/internal/infrastructure/scheduler"
)

func TestSchedulerRunsTasksPeriodically(t *testing.T) {
	s := scheduler.New(zerolog.Nop())

	var fast, failing atomic.Int32
	s.Every("fast", 5*time.Millisecond, func(ctx context.Context) error {
		fast.Add(1)
		return nil
	})
	s.Every("failing", 5*time.Millisecond, func(ctx context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return fast.Load() >= 3 && failing.Load() >= 3
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	after := fast.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, fast.Load(), "task ran after Stop")
}

func TestStopWaitsForRunningTask(t *testing.T) {
	s := scheduler.New(zerolog.Nop())

	started := make(chan struct{})
	var finished atomic.Bool
	s.Every("slow", time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	s.Start(context.Background())
	<-started
	s.Stop()

	assert.True(t, finished.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	s := scheduler.New(zerolog.Nop())
	s.Stop()
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
