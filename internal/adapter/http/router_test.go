package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apimiddleware "github.com/iho/goeconomy/internal/adapter/http/middleware"
	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/auth"
	"github.com/iho/goeconomy/internal/infrastructure/clock"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
	"github.com/iho/goeconomy/internal/usecase"
	"github.com/iho/goeconomy/internal/usecase/mocks"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1, nil)
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"from":"alice","to":"bob","currency":"COINS","amount":"10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.Gatherer = prometheus.NewRegistry()
		cfg.Events = http.NotFoundHandler()
	}))

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"GET /ws/events",
		"GET /api/v1/accounts/{owner}",
		"GET /api/v1/accounts/{owner}/history",
		"GET /api/v1/accounts/{owner}/inventory",
		"GET /api/v1/accounts/{owner}/orders",
		"POST /api/v1/accounts/{owner}/credit",
		"POST /api/v1/accounts/{owner}/debit",
		"POST /api/v1/accounts/{owner}/items",
		"POST /api/v1/transfers",
		"POST /api/v1/orders",
		"GET /api/v1/orders/{id}",
		"DELETE /api/v1/orders/{id}",
		"GET /api/v1/markets/{item}/{currency}",
		"GET /api/v1/markets/stats",
		"GET /api/v1/economy/indicators",
		"GET /api/v1/economy/leaderboard/{currency}",
		"GET /api/v1/economy/reconcile",
		"POST /api/v1/admin/snapshot",
		"POST /api/v1/admin/sweep",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func TestNewRouter_EnforcesRoles(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.JWTManager = jwt
	}))

	token := func(role domain.Role) string {
		tok, err := jwt.Generate("svc-"+string(role), role)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"anonymous read", http.MethodGet, "/api/v1/accounts/alice", "", "", http.StatusUnauthorized},
		{"viewer read", http.MethodGet, "/api/v1/accounts/alice", "", token(domain.RoleViewer), http.StatusOK},
		{"viewer transfer", http.MethodPost, "/api/v1/transfers", `{}`, token(domain.RoleViewer), http.StatusForbidden},
		{"operator credit", http.MethodPost, "/api/v1/accounts/alice/credit", `{"currency":"COINS","amount":"5"}`, token(domain.RoleOperator), http.StatusForbidden},
		{"admin credit", http.MethodPost, "/api/v1/accounts/alice/credit", `{"currency":"COINS","amount":"5"}`, token(domain.RoleAdmin), http.StatusCreated},
		{"health stays open", http.MethodGet, "/health", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestNewRouter_EndToEndTrade(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.Metrics = m
		cfg.Gatherer = reg
	}))

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/accounts/alice/credit", `{"currency":"COINS","amount":"100"}`).Code)
	require.Equal(t, http.StatusOK, send(http.MethodPost, "/api/v1/accounts/bob/items", `{"item_id":"shield","quantity":2}`).Code)
	require.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/orders",
		`{"owner":"bob","side":"SELL","item_id":"shield","currency":"COINS","quantity":2,"price_per_unit":"15"}`).Code)

	rec := send(http.MethodPost, "/api/v1/orders",
		`{"owner":"alice","side":"BUY","item_id":"shield","currency":"COINS","quantity":2,"price_per_unit":"15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var placed struct {
		Trades []json.RawMessage `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	assert.Len(t, placed.Trades, 1)

	rec = send(http.MethodGet, "/api/v1/economy/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consistent":true`)

	rec = send(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `goeconomy_http_requests_total{method="POST",path="/api/v1/orders",status="201"} 2`)
}

func newRouterConfig(t *testing.T, opts ...func(*RouterConfig)) RouterConfig {
	t.Helper()
	eco, err := usecase.NewEconomyUseCase(usecase.DefaultEconomyConfig(), usecase.Dependencies{
		Clock:  clock.NewManual(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		IDGen:  mocks.NewSequenceIDGenerator("ord-"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	cfg := RouterConfig{
		Economy:         eco,
		Logger:          zerolog.Nop(),
		SnapshotStore:   mocks.NewMemorySnapshotStore(),
		SnapshotBackend: "memory",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubIdempotencyStore struct {
	checkCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return nil
}
