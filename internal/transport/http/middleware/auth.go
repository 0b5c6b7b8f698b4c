package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/catalog-reviews/internal/domain"
)

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token to the current user record.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Auth returns middleware that requires a valid Bearer token and injects the
// freshly loaded user into the context.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return authenticate(a, true)
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
// Handlers behind it see a nil user for anonymous callers.
func OptionalAuth(a Authenticator) func(http.Handler) http.Handler {
	return authenticate(a, false)
}

func authenticate(a Authenticator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			u, err := a.Authenticate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				slog.ErrorContext(r.Context(), "authenticate", "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user, or nil and false for
// anonymous requests.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok && u != nil
}
