// Package middleware provides HTTP middleware for the Warden API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wardenhq/warden/internal/logger"
	"github.com/wardenhq/warden/pkg/panel/api/auth"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{ name string }

var claimsContextKey = &contextKey{"claims"}

// GetClaimsFromContext retrieves the authenticated claims from the
// request context, or nil if the request is unauthenticated.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// extractBearerToken extracts the token from an Authorization header.
// The scheme comparison is case-insensitive per RFC 7235.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWTAuth returns middleware that validates the Authorization bearer
// token and injects the claims into the request context. Requests
// without a valid access token are rejected with 401.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header")
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)

			// Enrich the log context so every log line under this
			// request carries the acting user.
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithUser(claims.UserID, claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that rejects non-admin users with 403.
// Must be mounted after JWTAuth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			if !claims.IsAdmin() {
				writeProblem(w, http.StatusForbidden, "Forbidden", "Administrator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeProblem writes a minimal RFC 7807 problem response. Duplicated
// from the handlers package to avoid an import cycle.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
