package middleware

import (
	"context"
	"net/http"
)

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireAdmin lets super admins through, and plain admins holding role.
// An empty role admits any admin.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			status, code := authorize(r.Context(), adminStore, userID, role)
			if status != http.StatusOK {
				writeError(w, status, code)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authorize(ctx context.Context, adminStore AdminStore, userID, role string) (int, string) {
	isAdmin, isSuper, err := adminStore.IsAdmin(ctx, userID)
	switch {
	case err != nil:
		return http.StatusInternalServerError, "admin_check_failed"
	case !isAdmin:
		return http.StatusForbidden, "admin_required"
	case isSuper || role == "":
		return http.StatusOK, ""
	}
	hasRole, err := adminStore.HasRole(ctx, userID, role)
	if err != nil {
		return http.StatusInternalServerError, "admin_check_failed"
	}
	if !hasRole {
		return http.StatusForbidden, "role_required"
	}
	return http.StatusOK, ""
}
