package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userEmailKey contextKey = "user_email"

// TokenValidator resolves a bearer token to the user's email
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
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

			email, err := validator.ValidateJWT(parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserEmail(r.Context(), email)))
		})
	}
}

// WithUserEmail stores the authenticated email in ctx
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

// GetUserEmail extracts the authenticated email from context
func GetUserEmail(ctx context.Context) string {
	email, ok := ctx.Value(userEmailKey).(string)
	if !ok {
		return ""
	}
	return email
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
