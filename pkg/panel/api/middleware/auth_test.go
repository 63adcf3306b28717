package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/panel/api/auth"
	"github.com/wardenhq/warden/pkg/panel/models"
)

func newJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	service, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret-that-is-at-least-32-characters-long",
	})
	require.NoError(t, err)
	return service
}

func accessTokenFor(t *testing.T, service *auth.JWTService, role string) string {
	t.Helper()
	pair, err := service.GenerateTokenPair(&models.User{
		ID:       "user-123",
		Username: "alice",
		Role:     role,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

// claimsCapture records the claims JWTAuth injected, if any.
func claimsCapture(captured **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuthMissingHeader(t *testing.T) {
	service := newJWTService(t)

	var captured *auth.Claims
	handler := JWTAuth(service)(claimsCapture(&captured))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Nil(t, captured)
}

func TestJWTAuthMalformedHeader(t *testing.T) {
	service := newJWTService(t)
	handler := JWTAuth(service)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, header := range []string{
		"Bearer",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
		"just-a-token",
	} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestJWTAuthValidToken(t *testing.T) {
	service := newJWTService(t)

	var captured *auth.Claims
	handler := JWTAuth(service)(claimsCapture(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, service, "user"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-123", captured.UserID)
	assert.Equal(t, "alice", captured.Username)
}

func TestJWTAuthSchemeCaseInsensitive(t *testing.T) {
	service := newJWTService(t)

	var captured *auth.Claims
	handler := JWTAuth(service)(claimsCapture(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+accessTokenFor(t, service, "user"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, captured)
}

func TestJWTAuthRejectsRefreshToken(t *testing.T) {
	service := newJWTService(t)
	handler := JWTAuth(service)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	pair, err := service.GenerateTokenPair(&models.User{ID: "u", Username: "alice"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	service := newJWTService(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTAuth(service)(RequireAdmin()(next))

	tests := []struct {
		name   string
		role   string
		status int
	}{
		{"admin allowed", "admin", http.StatusOK},
		{"regular user forbidden", "user", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/nodes", nil)
			req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, service, tt.role))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireAdminWithoutAuthContext(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
