package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"licensegate/logger"
	"licensegate/models"
	"licensegate/utils"
)

// AdminFromContext returns the authenticated admin's id, username and role.
func AdminFromContext(ctx context.Context) (id, username, role string) {
	id, _ = ctx.Value(adminIDKey).(string)
	username, _ = ctx.Value(usernameKey).(string)
	role, _ = ctx.Value(roleKey).(string)
	return id, username, role
}

// AuthMiddleware requires a valid admin bearer token. A nil issuer means the
// admin API is not configured and every request is refused.
func AuthMiddleware(tokens *utils.TokenIssuer) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requestID := RequestIDFromContext(r.Context())

			if tokens == nil {
				logger.WithFields(map[string]interface{}{
					"request_id": requestID,
				}).Error("Admin API called but JWT secret is not configured")
				writeResult(w, http.StatusInternalServerError, models.Failure(models.ReasonServerMisconfigured, nil))
				return
			}

			authHeader := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				logger.WithFields(map[string]interface{}{
					"request_id": requestID,
					"ip":         ClientIP(r),
				}).Warn("Missing or malformed authorization header")
				writeResult(w, http.StatusUnauthorized, models.Failure(models.ReasonUnauthorized, nil))
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WithFields(map[string]interface{}{
					"request_id": requestID,
					"ip":         ClientIP(r),
					"error":      err.Error(),
				}).Warn("Invalid or expired token")
				writeResult(w, http.StatusUnauthorized, models.Failure(models.ReasonUnauthorized, nil))
				return
			}

			logger.WithFields(map[string]interface{}{
				"request_id": requestID,
				"admin_id":   claims.AdminID,
				"username":   claims.Username,
			}).Debug("Admin authenticated")

			ctx := context.WithValue(r.Context(), adminIDKey, claims.AdminID)
			ctx = context.WithValue(ctx, usernameKey, claims.Username)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

func writeResult(w http.ResponseWriter, status int, result models.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}
