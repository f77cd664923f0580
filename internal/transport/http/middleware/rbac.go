package middleware

import (
	"context"
	"net/http"

	"leavehub/internal/transport/http/api"
)

// PermissionStore answers whether a role carries a named permission.
type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

// RequirePermission gates a route on the caller's role holding the
// permission. Anonymous requests get 401, known users without the grant 403.
func RequirePermission(permission string, perms PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}

			granted, err := perms.HasPermission(r.Context(), user.RoleID, permission)
			switch {
			case err != nil:
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
			case !granted:
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
			default:
				next.ServeHTTP(w, r)
			}
		}
		return http.HandlerFunc(fn)
	}
}
