package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role auth.Role, permission string) (bool, error)
}

// RequirePermission lets the request through only when the caller's role grants permission.
// Unauthenticated callers get 401, authenticated ones without the grant get 403.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			p, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}
			allowed, err := store.HasPermission(r.Context(), p.Role, permission)
			if err != nil {
				api.FailError(w, r, fmt.Errorf("%w: permission lookup: %v", leave.ErrRetryable, err), requestID)
				return
			}
			if !allowed {
				zerolog.Ctx(r.Context()).Info().
					Str("userId", p.UserID).
					Str("role", string(p.Role)).
					Str("permission", permission).
					Msg("permission denied")
				api.FailError(w, r, fmt.Errorf("%w: %s requires %s", leave.ErrForbidden, p.Role, permission), requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
