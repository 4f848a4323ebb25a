package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
)

const defaultPaymentsPerMinute = 5

// RateLimiter applies per-IP limits before authentication, per-caller limits
// after it, and a separate tight bucket for card charges
type RateLimiter struct {
	cfg            *config.RateLimitConfig
	logger         *zap.Logger
	ipLimiter      func(http.Handler) http.Handler
	callerLimiter  func(http.Handler) http.Handler
	paymentLimiter func(http.Handler) http.Handler
	whitelistIPs   map[string]bool
	exactPaths     map[string]bool
	pathPrefixes   []string
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:          cfg,
		logger:       logger,
		whitelistIPs: make(map[string]bool, len(cfg.WhitelistIPs)),
		exactPaths:   make(map[string]bool, len(cfg.WhitelistPaths)),
	}
	for _, ip := range cfg.WhitelistIPs {
		rl.whitelistIPs[ip] = true
	}
	// Entries ending in /* whitelist a whole subtree
	for _, p := range cfg.WhitelistPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			rl.pathPrefixes = append(rl.pathPrefixes, prefix)
			continue
		}
		rl.exactPaths[p] = true
	}

	payments := cfg.PaymentsPerMinute
	if payments <= 0 {
		payments = defaultPaymentsPerMinute
	}

	rl.ipLimiter = httprate.Limit(
		cfg.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(rl.keyByIP),
		httprate.WithLimitHandler(rl.limitExceeded("general")),
	)
	rl.callerLimiter = httprate.Limit(
		cfg.RequestsPerMinuteAuth,
		time.Minute,
		httprate.WithKeyFuncs(rl.keyByCaller),
		httprate.WithLimitHandler(rl.limitExceeded("general")),
	)
	rl.paymentLimiter = httprate.Limit(
		payments,
		time.Minute,
		httprate.WithKeyFuncs(rl.keyByCaller),
		httprate.WithLimitHandler(rl.limitExceeded("payments")),
	)

	logger.Info("Rate limiter initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
		zap.Int("requests_per_minute_auth", cfg.RequestsPerMinuteAuth),
		zap.Int("payments_per_minute", payments),
		zap.Strings("whitelist_ips", cfg.WhitelistIPs),
		zap.Strings("whitelist_paths", cfg.WhitelistPaths),
	)
	return rl
}

// LimitByIP limits every request per client IP. It runs before authentication.
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return rl.wrap(next, func(*http.Request) func(http.Handler) http.Handler {
		return rl.ipLimiter
	})
}

// Limit limits authenticated requests per caller and falls back to the IP
// bucket when no caller is in the context
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return rl.wrap(next, func(r *http.Request) func(http.Handler) http.Handler {
		if user, ok := auth.FromContext(r.Context()); ok && user != nil {
			return rl.callerLimiter
		}
		return rl.ipLimiter
	})
}

// LimitPayments caps card charge attempts per caller. API key callers are
// not exempt.
func (rl *RateLimiter) LimitPayments(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	return rl.paymentLimiter(next)
}

func (rl *RateLimiter) wrap(next http.Handler, pick func(*http.Request) func(http.Handler) http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.bypass(r) {
			next.ServeHTTP(w, r)
			return
		}
		pick(r)(next).ServeHTTP(w, r)
	})
}

// bypass reports whether the request's path or client IP is whitelisted
func (rl *RateLimiter) bypass(r *http.Request) bool {
	if rl.exactPaths[r.URL.Path] {
		return true
	}
	for _, prefix := range rl.pathPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return rl.whitelistIPs[clientIP(r)]
}

func (rl *RateLimiter) keyByIP(r *http.Request) (string, error) {
	return "ip:" + clientIP(r), nil
}

// keyByCaller buckets users per role and id, API key callers together and
// anonymous requests per IP
func (rl *RateLimiter) keyByCaller(r *http.Request) (string, error) {
	user, ok := auth.FromContext(r.Context())
	switch {
	case !ok || user == nil:
		return "ip:" + clientIP(r), nil
	case user.System:
		return "system", nil
	default:
		return "user:" + string(user.Role) + ":" + strconv.FormatUint(uint64(user.UserID), 10), nil
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiter) limitExceeded(bucket string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := []zap.Field{
			zap.String("bucket", bucket),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.String("client_ip", clientIP(r)),
		}
		if user, ok := auth.FromContext(r.Context()); ok && user != nil {
			fields = append(fields, zap.Uint("user_id", user.UserID), zap.String("role", string(user.Role)))
		}
		rl.logger.Warn("rate limit exceeded", fields...)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(domain.APIError{
			Type:   domain.ErrorTypeRateLimited,
			Title:  http.StatusText(http.StatusTooManyRequests),
			Status: http.StatusTooManyRequests,
			Detail: "Too many requests. Please try again later.",
		})
	}
}
