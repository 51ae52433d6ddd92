package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iho/goeconomy/internal/infrastructure/metrics"
	"github.com/iho/goeconomy/internal/infrastructure/ratelimit"
)

// RateLimiter implements per-IP rate limiting
type RateLimiter struct {
	limiter *ratelimit.KeyedLimiter
	metrics *metrics.Metrics
}

// NewRateLimiter creates a new rate limiter
// rate: requests per second
// burst: max burst size
func NewRateLimiter(r float64, b int, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		limiter: ratelimit.New(rate.Limit(r), b),
		metrics: m,
	}
}

// Limit is a middleware that enforces rate limiting per IP
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := rl.limiter.Allow(r.Context(), getIP(r))
		if err != nil {
			return
		}
		if !allowed {
			if rl.metrics != nil {
				rl.metrics.RateLimitHits.WithLabelValues("ip").Inc()
			}
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CleanupLimiters removes limiters idle for longer than idle. The server
// schedules it.
func (rl *RateLimiter) CleanupLimiters(idle time.Duration) int {
	return rl.limiter.Cleanup(idle)
}

// getIP extracts the client IP from the request
func getIP(r *http.Request) string {
	// first hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
