package middleware

import (
	"net/http"

	"cafe-pos/internal/auth"
	"cafe-pos/internal/logger"
	"cafe-pos/internal/utils"

	"go.uber.org/zap"
)

// AuthMiddleware attaches the operator identity carried by a staff token.
// Requests without a token pass through anonymously; a token that fails
// verification is rejected.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseStaffToken(secret, tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Warn("rejected access token", zap.Error(err))
				utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			logger.FromCtx(r.Context()).Debug("staff authenticated",
				zap.String("staff_id", claims.StaffID),
				zap.String("role", claims.Role),
			)
			ctx := utils.SetStaffContext(r.Context(), claims.StaffID, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff guards routes that move tickets through the kitchen.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staffID, ok := utils.GetStaffIDFromContext(r.Context())
		if !ok {
			utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}

		claims := auth.StaffClaims{StaffID: staffID, Role: utils.GetStaffRoleFromContext(r.Context())}
		if !claims.CanOperateQueue() {
			utils.WriteJSONError(w, "staff role required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
