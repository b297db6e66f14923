package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/studycompanion/internal/api"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"

	// userIDHeader lets outer middleware see the authenticated user after the handler returns.
	userIDHeader = "X-User-ID"
)

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// APIKeyAuth resolves the bearer token to a user ID and stores it in the request context.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(userIDHeader)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			userID, err := validator.ValidateAPIKey(r.Context(), strings.TrimSpace(token))
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set(userIDHeader, userID)
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user ID, or "" outside an authenticated route.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns a context carrying the user ID, as APIKeyAuth would set it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// authenticatedUserID reads the user ID set by APIKeyAuth from either the context or the request headers.
func authenticatedUserID(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return userID
	}
	return r.Header.Get(userIDHeader)
}
