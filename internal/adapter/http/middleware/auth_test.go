package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/auth"
)

func protected(jwt *auth.JWTManager, role domain.Role, seen *domain.Principal) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok && seen != nil {
			*seen = p
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return AuthMiddleware(jwt)(RequireRole(role)(inner))
}

func TestAuthMiddleware(t *testing.T) {
	jwt := auth.NewJWTManager("secret", time.Hour)
	admin, err := jwt.Generate("ops-console", domain.RoleAdmin)
	require.NoError(t, err)
	viewer, err := jwt.Generate("dashboard", domain.RoleViewer)
	require.NoError(t, err)
	expired, err := auth.NewJWTManager("secret", -time.Minute).Generate("bot", domain.RoleOperator)
	require.NoError(t, err)
	foreign, err := auth.NewJWTManager("other", time.Hour).Generate("bot", domain.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		role     domain.Role
		wantCode int
		wantBody string
	}{
		{"missing header", "", domain.RoleViewer, http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic abc", domain.RoleViewer, http.StatusUnauthorized, "invalid authorization header format"},
		{"expired token", "Bearer " + expired, domain.RoleViewer, http.StatusUnauthorized, "token has expired"},
		{"foreign signature", "Bearer " + foreign, domain.RoleViewer, http.StatusUnauthorized, "invalid token"},
		{"viewer on admin route", "Bearer " + viewer, domain.RoleAdmin, http.StatusForbidden, "insufficient role"},
		{"viewer on read route", "Bearer " + viewer, domain.RoleViewer, http.StatusNoContent, ""},
		{"admin on operator route", "Bearer " + admin, domain.RoleOperator, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/alice", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			protected(jwt, tt.role, nil).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthMiddleware_StoresPrincipal(t *testing.T) {
	jwt := auth.NewJWTManager("secret", time.Hour)
	token, err := jwt.Generate("discord-bot", domain.RoleOperator)
	require.NoError(t, err)

	var seen domain.Principal
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	protected(jwt, domain.RoleOperator, &seen).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, domain.Principal{Subject: "discord-bot", Role: domain.RoleOperator}, seen)
}

func TestRequireRole_WithoutPrincipal(t *testing.T) {
	rr := httptest.NewRecorder()

	RequireRole(domain.RoleViewer)(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
