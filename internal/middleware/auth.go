package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lunchly-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "sid"
)

// Authenticator resolves a bearer token to its live session
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Claims, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				if !errors.Is(err, services.ErrUnauthorized) {
					log.Error().Err(err).Msg("Session lookup failed")
					respondError(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores the caller identity in ctx
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.UserID)
	return context.WithValue(ctx, sessionIDKey, claims.SessionID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetSessionID extracts the session ID from context
func GetSessionID(ctx context.Context) string {
	sid, ok := ctx.Value(sessionIDKey).(string)
	if !ok {
		return ""
	}
	return sid
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
