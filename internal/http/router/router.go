package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/database"
	"github.com/bulkmat/order-api/internal/erp"
	"github.com/bulkmat/order-api/internal/http/handler"
	"github.com/bulkmat/order-api/internal/http/middleware"

	_ "github.com/bulkmat/order-api/docs" // Import generated swagger docs
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	erpClient      *erp.Client
	lockBackend    Pinger
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	orderHandler   *handler.OrderHandler
	projectHandler *handler.ProjectHandler
	catalogHandler *handler.CatalogHandler
	paymentHandler *handler.PaymentHandler
}

// NewRouter wires the handlers. erpClient and lockBackend may be nil when
// the ERP integration or Redis are not configured.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	erpClient *erp.Client,
	lockBackend Pinger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	orderHandler *handler.OrderHandler,
	projectHandler *handler.ProjectHandler,
	catalogHandler *handler.CatalogHandler,
	paymentHandler *handler.PaymentHandler,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		erpClient:      erpClient,
		lockBackend:    lockBackend,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		orderHandler:   orderHandler,
		projectHandler: projectHandler,
		catalogHandler: catalogHandler,
		paymentHandler: paymentHandler,
	}
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Database health check with pool stats
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats, err := database.HealthCheckWithStats(ctx, rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}
		writeHealth(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
			},
		})
	})

	// Readiness: database and Redis are required, the ERP only reported
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(ctx, rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{"status": "healthy"}
		}

		if rt.lockBackend != nil {
			if err := rt.lockBackend.Ping(ctx); err != nil {
				rt.logger.Error("Redis health check failed", zap.Error(err))
				checks["redis"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
				allHealthy = false
			} else {
				checks["redis"] = map[string]interface{}{"status": "healthy"}
			}
		}

		checks["erp"] = rt.erpClient.HealthCheck(ctx)

		status, code := "healthy", http.StatusOK
		if !allHealthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		writeHealth(w, code, map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.rateLimiter.Limit)

			// Projects
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", rt.projectHandler.List)
				r.Post("/", rt.projectHandler.Create)
				r.Get("/{id}", rt.projectHandler.GetByID)
				r.Put("/{id}", rt.projectHandler.Update)
			})

			// Catalog
			r.Route("/products", func(r chi.Router) {
				r.Get("/", rt.catalogHandler.ListProducts)
				r.Post("/", rt.catalogHandler.CreateProduct)
				r.Get("/{id}/offers", rt.catalogHandler.ListOffers)
			})
			r.Route("/suppliers", func(r chi.Router) {
				r.Get("/", rt.catalogHandler.ListSuppliers)
				r.Post("/", rt.catalogHandler.CreateSupplier)
				r.Get("/{id}", rt.catalogHandler.GetSupplier)
			})
			r.With(rt.authMiddleware.RequireAdmin).Post("/price-sync", rt.catalogHandler.SyncPrices)

			// Orders
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", rt.orderHandler.List)
				r.Post("/", rt.orderHandler.Create)
				r.Get("/export", rt.orderHandler.Export)
				r.Get("/{id}", rt.orderHandler.GetByID)
				r.Delete("/{id}", rt.orderHandler.Archive)
				r.Get("/{id}/pricing", rt.orderHandler.Pricing)
				r.Get("/{id}/activities", rt.orderHandler.Activities)
				r.Put("/{id}/charges", rt.orderHandler.UpdateCharges)
				r.Get("/{id}/payments", rt.paymentHandler.ListPayments)
				r.Post("/{id}/invoice", rt.paymentHandler.UploadInvoice)
				r.Get("/{id}/invoice", rt.paymentHandler.DownloadInvoice)
			})
			r.Put("/order-items/{id}/pricing", rt.orderHandler.UpdateItemPricing)
			r.Post("/deliveries/{id}/confirm", rt.orderHandler.ConfirmDelivery)

			// Order commands
			r.Post("/order-edit/{orderId}", rt.orderHandler.Edit)
			r.Post("/set-order-status/{orderId}", rt.orderHandler.SetStatus)
			r.Post("/repeat-order/{orderId}", rt.orderHandler.Repeat)
			r.Post("/mark-repeat-order/{orderId}", rt.orderHandler.MarkRepeat)

			// Payments
			r.With(rt.rateLimiter.LimitPayments).Post("/process-payment", rt.paymentHandler.ProcessPayment)
		})
	})

	return r
}
