package middleware

import (
	"context"
	"net/http"
	"strings"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/transport/http/api"
)

// UserChecker reports whether a token's user may still act. Deactivated accounts lose access
// before their tokens expire.
type UserChecker interface {
	UserActive(ctx context.Context, userID string) (bool, error)
}

type UserCheckerFunc func(ctx context.Context, userID string) (bool, error)

func (f UserCheckerFunc) UserActive(ctx context.Context, userID string) (bool, error) {
	return f(ctx, userID)
}

// Auth attaches the principal from a valid bearer token. Requests without one pass through
// unauthenticated; RequireAuth and RequirePermission reject them.
func Auth(secret string, users UserChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if users != nil {
				active, err := users.UserActive(r.Context(), claims.UserID)
				if err != nil {
					api.FailError(w, r, err, GetRequestID(r.Context()))
					return
				}
				if !active {
					next.ServeHTTP(w, r)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) (auth.Principal, bool) {
	return auth.PrincipalFrom(ctx)
}
