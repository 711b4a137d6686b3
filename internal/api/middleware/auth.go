package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "landr/internal/api/context"
	"landr/internal/pkg/errors"
	"landr/internal/platform/auth"
)

type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	enabled  bool
}

// NewAuthMiddleware returns a middleware that requires a bearer token when
// enabled is set and lets every request through otherwise.
func NewAuthMiddleware(tokenSvc *auth.TokenService, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, enabled: enabled}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	if !m.enabled {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
