package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/goeconomy/internal/adapter/http"
	"github.com/iho/goeconomy/internal/adapter/http/handler"
	"github.com/iho/goeconomy/internal/adapter/http/middleware"
	redisRepo "github.com/iho/goeconomy/internal/adapter/repository/redis"
	"github.com/iho/goeconomy/internal/adapter/ws"
	"github.com/iho/goeconomy/internal/infrastructure/auth"
	"github.com/iho/goeconomy/internal/infrastructure/clock"
	"github.com/iho/goeconomy/internal/infrastructure/config"
	"github.com/iho/goeconomy/internal/infrastructure/eventpublisher"
	"github.com/iho/goeconomy/internal/infrastructure/idgen"
	"github.com/iho/goeconomy/internal/infrastructure/logger"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
	"github.com/iho/goeconomy/internal/infrastructure/ratelimit"
	"github.com/iho/goeconomy/internal/infrastructure/redis"
	"github.com/iho/goeconomy/internal/infrastructure/scheduler"
	"github.com/iho/goeconomy/internal/usecase"
)

// limiterIdle is how long a per-key limiter may sit unused before cleanup.
const limiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	log.Logger = lg

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg zerolog.Logger) error {
	ecoCfg, err := config.LoadEconomy(cfg.EconomyFile, cfg.EconomyTimezone)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var closers closerStack
	defer closers.closeAll(lg)

	checks := map[string]handler.Pinger{}

	// Connect to Redis when configured
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		closers.push("redis", redisClient.Close)
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redis.Ping(ctx, redisClient)
		})
		lg.Info().Msg("connected to redis")
	}

	store, err := openSnapshotStore(ctx, cfg, redisClient, lg, &closers, checks)
	if err != nil {
		return err
	}

	// Events
	var hub *ws.Hub
	if cfg.HasSink(config.EventSinkWebsocket) {
		hub = ws.NewHub(lg, nil)
		closers.push("websocket hub", func() error { hub.Close(); return nil })
	}
	publishers := buildPublishers(cfg, redisClient, hub, lg, &closers)
	events := eventpublisher.NewEventPublisher(eventpublisher.Config{
		Publishers: publishers,
		Logger:     lg,
		Metrics:    m,
		BufferSize: cfg.EventBuffer,
	})
	// The worker outlives ctx so Close can drain it during shutdown.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		if err := events.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	// Transfer rate limiting
	var transferLimiter usecase.RateLimiter
	var localLimiter *ratelimit.KeyedLimiter
	if cfg.TransferRateLimit > 0 {
		if redisClient != nil {
			transferLimiter = redisRepo.NewRateLimiter(redisClient, cfg.TransferRateLimit, cfg.TransferRateWindow)
		} else {
			localLimiter = ratelimit.NewPerWindow(cfg.TransferRateLimit, cfg.TransferRateWindow)
			transferLimiter = localLimiter
		}
	}

	economy, err := usecase.NewEconomyUseCase(ecoCfg, usecase.Dependencies{
		Clock:       clock.System{},
		IDGen:       idgen.NewULIDGenerator(),
		Sink:        events,
		RateLimiter: transferLimiter,
		Metrics:     m,
		Logger:      lg,
	})
	if err != nil {
		return err
	}

	if store != nil {
		restored, err := economy.LoadSnapshot(ctx, store)
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		lg.Info().Bool("restored", restored).Str("backend", cfg.SnapshotBackend).Msg("economy state loaded")
	}

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	var idempotency usecase.IdempotencyStore
	if redisClient != nil {
		idempotency = redisRepo.NewIdempotencyStore(redisClient)
	}

	httpLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	routerCfg := httpAdapter.RouterConfig{
		Economy:            economy,
		Logger:             lg,
		Metrics:            m,
		Gatherer:           reg,
		HealthChecks:       checks,
		IdempotencyStore:   idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        httpLimiter,
		JWTManager:         jwtManager,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SnapshotStore:      store,
		SnapshotBackend:    cfg.SnapshotBackend,
	}
	if hub != nil {
		routerCfg.Events = hub
	}

	// Background tasks
	sched := scheduler.New(lg)
	sched.Every("sweep-expired", cfg.SweepInterval, func(ctx context.Context) error {
		expired, err := economy.SweepExpired(ctx)
		if err == nil && len(expired) > 0 {
			lg.Info().Int("expired", len(expired)).Msg("expired orders swept")
		}
		return err
	})
	if store != nil {
		sched.Every("snapshot", cfg.SnapshotInterval, func(ctx context.Context) error {
			return economy.SaveSnapshot(ctx, store)
		})
	}
	sched.Every("limiter-cleanup", limiterIdle, func(ctx context.Context) error {
		n := httpLimiter.CleanupLimiters(limiterIdle)
		if localLimiter != nil {
			// a bucket dropped before its window passes would refill early
			n += localLimiter.Cleanup(max(limiterIdle, cfg.TransferRateWindow))
		}
		lg.Debug().Int("removed", n).Msg("idle limiters removed")
		return nil
	})
	sched.Start(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		lg.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			sched.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	lg.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("server forced to shutdown")
	}
	sched.Stop()

	if store != nil {
		if err := economy.SaveSnapshot(shutdownCtx, store); err != nil {
			lg.Error().Err(err).Msg("final snapshot failed")
		} else {
			lg.Info().Msg("final snapshot saved")
		}
	}

	if err := events.Close(shutdownCtx); err != nil {
		lg.Warn().Err(err).Msg("event publisher did not drain")
	}

	lg.Info().Msg("server stopped")
	return nil
}
