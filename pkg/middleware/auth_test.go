package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/pkg/middleware"
)

func authedProbe(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var gotUser string
	tokenSvc := services.NewTokenService("test-secret", "sahtalk", time.Hour)
	handler := middleware.AuthMiddleware(tokenSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.UserID(r.Context())
		require.True(t, ok)
		gotUser = id
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &gotUser
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	handler, gotUser := authedProbe(t)
	token, err := services.NewTokenService("test-secret", "sahtalk", time.Hour).GenerateToken("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/connections/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", *gotUser)
}

func TestAuthMiddleware_QueryTokenForUpgrades(t *testing.T) {
	handler, gotUser := authedProbe(t)
	token, err := services.NewTokenService("test-secret", "sahtalk", time.Hour).GenerateToken("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", *gotUser)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	handler, _ := authedProbe(t)

	for name, build := range map[string]func() *http.Request{
		"missing token": func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/api/connections/pending", nil)
		},
		"malformed header": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/api/connections/pending", nil)
			req.Header.Set("Authorization", "Token abc")
			return req
		},
		"garbage token": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/api/connections/pending", nil)
			req.Header.Set("Authorization", "Bearer not.a.jwt")
			return req
		},
		"wrong secret": func() *http.Request {
			forged, err := services.NewTokenService("other-secret", "sahtalk", time.Hour).GenerateToken("u1")
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodGet, "/api/connections/pending", nil)
			req.Header.Set("Authorization", "Bearer "+forged)
			return req
		},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, build())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
