package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
)

// alwaysExposed are response headers the order clients read
var alwaysExposed = []string{"X-Request-ID", "Location", "Content-Disposition", "Retry-After", "X-Total-Count"}

// CORS returns a CORS middleware configured from the application config
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	exposed := append([]string{}, cfg.ExposedHeaders...)
	exposed = append(exposed, alwaysExposed...)

	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   exposed,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	options.AllowedOrigins, options.AllowOriginFunc = originPolicy(cfg.AllowedOrigins, environment, logger)
	return cors.Handler(options)
}

// originPolicy resolves the configured origins. A wildcard or an empty list in
// development allows any origin; an empty list elsewhere denies all of them.
// An empty AllowedOrigins means "*" to go-chi/cors, so denial needs a func.
func originPolicy(origins []string, environment string, logger *zap.Logger) ([]string, func(*http.Request, string) bool) {
	allowAny := func(_ *http.Request, origin string) bool { return origin != "" }
	dev := environment == "development" || environment == "local" || environment == ""

	for _, origin := range origins {
		if origin == "*" {
			if !dev {
				logger.Warn("CORS configured with wildcard origin in non-development environment",
					zap.String("environment", environment))
			}
			return nil, allowAny
		}
	}
	if len(origins) > 0 {
		logger.Info("CORS configured with explicit origins", zap.Strings("origins", origins))
		return origins, nil
	}
	if dev {
		logger.Info("CORS configured to allow all origins in development mode")
		return nil, allowAny
	}
	logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
		zap.String("environment", environment))
	return nil, func(*http.Request, string) bool { return false }
}
