package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
)

// Middleware handles authentication for HTTP requests
type Middleware struct {
	jwtValidator *JWTValidator
	apiKey       string
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(&cfg.JWT),
		apiKey:       cfg.ApiKey.Value,
		logger:       logger,
	}
}

// systemUser is the identity of API key callers
func systemUser() *UserContext {
	return &UserContext{
		DisplayName: "System",
		Email:       "system@bulkmat.local",
		Role:        domain.RoleAdmin,
		System:      true,
	}
}

// Authenticate is the main authentication middleware
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			userCtx := systemUser()
			m.logger.Debug("request authenticated",
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.Duration("auth_duration", time.Since(start)),
			)
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Unauthorized: invalid authorization header format", http.StatusUnauthorized)
			return
		}

		userCtx, err := m.jwtValidator.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.Uint("user_id", userCtx.UserID),
			zap.String("role", string(userCtx.Role)),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireRole middleware ensures user has one of the given roles
func (m *Middleware) RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "Forbidden: no user context", http.StatusForbidden)
				return
			}
			if !userCtx.HasRole(roles...) {
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin middleware ensures user is an admin or uses a valid API key
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(domain.RoleAdmin)(next)
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}
