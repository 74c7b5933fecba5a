package middleware

import (
	"net/http"

	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

// RequireRole allows the listed roles. Admins are always allowed.
func RequireRole(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())
			if userRole == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range allowedRoles {
				if userRole != "" && userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond.JSONError(w, respond.ErrForbidden)
		})
	}
}

// RequireAdmin is shorthand for RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}
