package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/iho/goeconomy/internal/infrastructure/metrics"
)

func TestGetIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain uses first hop", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "10.0.0.2:5000", "9.9.9.9"},
		{"real ip header", map[string]string{"X-Real-IP": "8.8.8.8"}, "10.0.0.2:5000", "8.8.8.8"},
		{"remote addr without port", nil, "1.2.3.4:1234", "1.2.3.4"},
		{"remote addr unparsable", nil, "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getIP(req))
		})
	}
}

func TestRateLimiter_BlocksPerIP(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rl := NewRateLimiter(1, 1, m)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("1.2.3.4:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4:2000"))
	assert.Equal(t, http.StatusOK, send("5.6.7.8:1000"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitHits.WithLabelValues("ip")))
	assert.Equal(t, 0, rl.CleanupLimiters(time.Hour))
}
