package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TaskFunc is one run of a periodic task.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	run      TaskFunc
}

// Scheduler runs periodic background tasks, each on its own ticker.
// A slow run delays only its own task; ticks missed meanwhile are dropped.
type Scheduler struct {
	logger zerolog.Logger
	tasks  []task

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With().Str("component", "scheduler").Logger()}
}

// Every registers fn to run every interval. Register tasks before Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc) {
	s.tasks = append(s.tasks, task{name: name, interval: interval, run: fn})
}

// Start launches all registered tasks. It does not block.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
}

// Stop cancels every task and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t task) {
	start := time.Now()
	err := t.run(ctx)
	log := s.logger.With().Str("task", t.name).Dur("duration", time.Since(start)).Logger()
	if err != nil {
		log.Error().Err(err).Msg("scheduled task failed")
		return
	}
	log.Debug().Msg("scheduled task finished")
}
