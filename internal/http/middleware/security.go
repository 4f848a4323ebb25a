package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bulkmat/order-api/internal/config"
)

// SecurityHeaders adds the configured security headers. API responses carry
// prices and are never cached; the swagger UI is exempt from the CSP.
func SecurityHeaders(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	static := make(map[string]string)
	if cfg.ContentTypeNosniff {
		static["X-Content-Type-Options"] = "nosniff"
	}
	if cfg.FrameOptions != "" {
		static["X-Frame-Options"] = cfg.FrameOptions
	}
	if cfg.XSSProtection != "" {
		static["X-XSS-Protection"] = cfg.XSSProtection
	}
	if cfg.ReferrerPolicy != "" {
		static["Referrer-Policy"] = cfg.ReferrerPolicy
	}
	if cfg.PermissionsPolicy != "" {
		static["Permissions-Policy"] = cfg.PermissionsPolicy
	}
	if cfg.EnableHSTS {
		hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		if cfg.HSTSPreload {
			hsts += "; preload"
		}
		static["Strict-Transport-Security"] = hsts
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range static {
				h.Set(k, v)
			}
			if cfg.ContentSecurityPolicy != "" && !strings.HasPrefix(r.URL.Path, "/swagger") {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}
			h.Del("X-Powered-By")
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}
