package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/goeconomy/internal/adapter/http/handler"
	"github.com/iho/goeconomy/internal/adapter/http/middleware"
	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/auth"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
	"github.com/iho/goeconomy/internal/usecase"
)

// Economy is everything the API needs from the engine.
type Economy interface {
	handler.AccountService
	handler.TransferService
	handler.MarketService
	handler.EconomyService
	handler.AdminService
}

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Economy Economy
	Logger  zerolog.Logger

	// Metrics and Gatherer enable request metrics and /metrics.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	HealthChecks     map[string]handler.Pinger
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter

	// JWTManager enables bearer authentication. Nil leaves the API open.
	JWTManager *auth.JWTManager

	CORSAllowedOrigins []string

	SnapshotStore   usecase.SnapshotStore
	SnapshotBackend string

	// Events serves the websocket event stream when set.
	Events http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	accounts := handler.NewAccountHandler(cfg.Economy)
	transfers := handler.NewTransferHandler(cfg.Economy)
	market := handler.NewMarketHandler(cfg.Economy, cfg.Logger)
	economy := handler.NewEconomyHandler(cfg.Economy)
	admin := handler.NewAdminHandler(cfg.Economy, cfg.SnapshotStore, cfg.SnapshotBackend)
	health := handler.NewHealthHandler(cfg.HealthChecks)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader},
			ExposedHeaders:   []string{"X-Idempotency-Replay"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", health.Liveness)
	r.Get("/ready", health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	allow := func(role domain.Role) func(http.Handler) http.Handler {
		if cfg.JWTManager == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequireRole(role)
	}

	if cfg.Events != nil {
		r.Group(func(r chi.Router) {
			if cfg.JWTManager != nil {
				r.Use(middleware.AuthMiddleware(cfg.JWTManager))
			}
			r.Use(allow(domain.RoleViewer))
			r.Handle("/ws/events", cfg.Events)
		})
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		}
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		// Reads
		r.Group(func(r chi.Router) {
			r.Use(allow(domain.RoleViewer))

			r.Get("/accounts/{owner}", accounts.Get)
			r.Get("/accounts/{owner}/history", accounts.History)
			r.Get("/accounts/{owner}/inventory", accounts.Inventory)
			r.Get("/accounts/{owner}/orders", accounts.Orders)
			r.Get("/orders/{id}", market.Get)
			r.Get("/markets/stats", market.Stats)
			r.Get("/markets/{item}/{currency}", market.Book)
			r.Get("/economy/indicators", economy.Indicators)
			r.Get("/economy/leaderboard/{currency}", economy.Leaderboard)
			r.Get("/economy/reconcile", economy.Reconcile)
		})

		// Acting on behalf of users
		r.Group(func(r chi.Router) {
			r.Use(allow(domain.RoleOperator))

			r.Post("/transfers", transfers.Create)
			r.Post("/orders", market.Place)
			r.Delete("/orders/{id}", market.Cancel)
			r.Post("/accounts/{owner}/items/consume", accounts.ConsumeItems)
		})

		// Supply and persistence
		r.Group(func(r chi.Router) {
			r.Use(allow(domain.RoleAdmin))

			r.Post("/accounts/{owner}/credit", accounts.Credit)
			r.Post("/accounts/{owner}/debit", accounts.Debit)
			r.Post("/accounts/{owner}/items", accounts.GrantItems)
			r.Post("/admin/snapshot", admin.Snapshot)
			r.Post("/admin/sweep", admin.Sweep)
		})
	})

	return r
}
