package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const (
	flatmateIDKey contextKey = "flatmateID"
	roleKey       contextKey = "role"
)

// JWTAuthMiddleware validates Bearer tokens and injects the caller's
// flatmate ID and role into context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), flatmateIDKey, claims.Sub)
			ctx = context.WithValue(ctx, roleKey, domain.Role(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FlatmateIDFromContext extracts the authenticated flatmate ID from context.
func FlatmateIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(flatmateIDKey).(string)
	return v
}

// RoleFromContext extracts the authenticated flatmate's role from context.
func RoleFromContext(ctx context.Context) domain.Role {
	v, _ := ctx.Value(roleKey).(domain.Role)
	return v
}
