package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"opsdesk/internal/transport/http/api"
)

// PermissionStore answers whether a role (ADMIN, STAFF, KIOSK) holds a
// permission.
type PermissionStore interface {
	HasPermission(ctx context.Context, roleName, permission string) (bool, error)
}

// Can reports whether the caller holds permission. Unauthenticated callers and
// lookup failures are denied. Handlers use it for options inside a route,
// such as a manual check-in or a forced check-out.
func Can(r *http.Request, store PermissionStore, permission string) bool {
	user, ok := GetUser(r.Context())
	if !ok || store == nil {
		return false
	}
	allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
	if err != nil {
		slog.Warn("permission lookup failed", "role", user.RoleName, "permission", permission, "err", err)
		return false
	}
	return allowed
}

// RequirePermission guards a route: 401 without a token, 403 when the role
// lacks permission.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}
			allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
			switch {
			case err != nil:
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
			case !allowed:
				api.FailWithDetails(w, http.StatusForbidden, "forbidden", "insufficient permissions",
					map[string]any{"role": user.RoleName, "permission": permission}, reqID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
