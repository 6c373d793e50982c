package middleware

import (
	"context"
	"net/http"

	"licensegate/logger"
	"licensegate/models"
)

// RoleLookup returns an admin's current role from the datastore.
type RoleLookup interface {
	RoleOf(ctx context.Context, adminID string) (string, error)
}

// RequireRoles allows the request only when the admin's stored role is one of
// allowedRoles. The role claim in the token is not trusted, it may be stale.
// It must run after AuthMiddleware.
func RequireRoles(roles RoleLookup, allowedRoles ...string) func(http.HandlerFunc) http.HandlerFunc {
	set := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		set[r] = struct{}{}
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			adminID, _, _ := AdminFromContext(r.Context())
			if adminID == "" {
				writeResult(w, http.StatusUnauthorized, models.Failure(models.ReasonUnauthorized, nil))
				return
			}

			fields := map[string]interface{}{
				"request_id": RequestIDFromContext(r.Context()),
				"admin_id":   adminID,
			}
			role, err := roles.RoleOf(r.Context(), adminID)
			if err != nil {
				fields["error"] = err.Error()
				logger.WithFields(fields).Warn("Forbidden: role lookup failed")
				writeResult(w, http.StatusForbidden, models.Failure(models.ReasonUnauthorized, nil))
				return
			}
			if _, ok := set[role]; !ok {
				fields["role"] = role
				logger.WithFields(fields).Warn("Forbidden: insufficient role")
				writeResult(w, http.StatusForbidden, models.Failure(models.ReasonUnauthorized, nil))
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}
