package middleware

import (
	"context"
	"net/http"

	"battlefield/internal/store"
)

// RoleStore resolves the role assigned to a user.
type RoleStore interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// RequireRole rejects callers whose role ranks below minimum. The response
// body never reveals which role would have been sufficient.
func RequireRole(roles RoleStore, minimum string) func(http.Handler) http.Handler {
	required := store.RoleLevel(minimum)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			role, err := roles.RoleOf(r.Context(), userID)
			if err != nil {
				http.Error(w, "please try again", http.StatusServiceUnavailable)
				return
			}
			if store.RoleLevel(role) < required {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
