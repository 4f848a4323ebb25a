package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/docs"
	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/database"
	"github.com/bulkmat/order-api/internal/erp"
	"github.com/bulkmat/order-api/internal/http/handler"
	"github.com/bulkmat/order-api/internal/http/middleware"
	"github.com/bulkmat/order-api/internal/http/router"
	"github.com/bulkmat/order-api/internal/jobs"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/logger"
	"github.com/bulkmat/order-api/internal/payment"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
	"github.com/bulkmat/order-api/internal/storage"
)

// @title Bulk Materials Order API
// @version 1.0
// @description Ordering, delivery scheduling and pricing for bulk construction materials

// @contact.name API Support
// @contact.email support@bulkmat.example

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("PUBLIC_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Full configuration with secrets. Development reads the environment,
	// staging and production read Azure Key Vault.
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if cfg.JWT.Secret == "" && cfg.ApiKey.Value == "" {
		return fmt.Errorf("neither JWT_SECRET nor ADMIN_API_KEY is configured")
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	gateway, err := payment.NewGateway(&cfg.Payment, log)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	// Per-order edit lock. Redis makes it hold across replicas.
	var locker lock.Locker
	var redisLocker *lock.RedisLocker
	if cfg.Redis.Addr != "" {
		redisLocker, err = lock.NewRedisLocker(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = redisLocker
		log.Info("Redis order locks enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		locker = lock.NewMemoryLocker()
		log.Info("Redis not configured, using in-process order locks")
	}

	// ERP warehouse connection (optional, read-only). The app continues without it.
	var erpClient *erp.Client
	if cfg.ERP.Enabled {
		erpClient, err = erp.NewClient(&cfg.ERP, log)
		if err != nil {
			log.Warn("ERP connection failed, continuing without price sync", zap.Error(err))
			erpClient = nil
		} else {
			log.Info("ERP connected",
				zap.Int("max_open_conns", cfg.ERP.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.ERP.QueryTimeout),
			)
		}
	} else {
		log.Info("ERP not configured, skipping")
	}

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	offerRepo := repository.NewSupplierOfferRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	// Services
	orderService, err := service.NewOrderService(
		orderRepo, projectRepo, productRepo, supplierRepo, offerRepo, activityRepo,
		&cfg.Engine, locker, cfg.Redis.LockTTLDuration(), log,
	)
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	activityService := service.NewActivityService(activityRepo, orderRepo, log)
	exportService := service.NewExportService(orderRepo, log)
	projectService := service.NewProjectService(projectRepo, log)
	productService := service.NewProductService(productRepo, log)
	supplierService := service.NewSupplierService(supplierRepo, offerRepo, log)
	paymentService := service.NewPaymentService(
		orderRepo, paymentRepo, invoiceRepo, activityRepo,
		gateway, fileStorage, cfg.Payment.Currency, log,
	)
	// A typed nil client must not reach the interface
	var priceSource service.PriceSource
	if erpClient != nil {
		priceSource = erpClient
	}
	priceSyncService := service.NewPriceSyncService(priceSource, supplierRepo, offerRepo, productRepo, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	orderHandler := handler.NewOrderHandler(orderService, activityService, exportService, log)
	projectHandler := handler.NewProjectHandler(projectService, log)
	catalogHandler := handler.NewCatalogHandler(productService, supplierService, priceSyncService, log)
	paymentHandler := handler.NewPaymentHandler(paymentService, cfg.Storage.MaxUploadSizeMB, log)

	var lockBackend router.Pinger
	if redisLocker != nil {
		lockBackend = redisLocker
	}
	rt := router.NewRouter(
		cfg,
		log,
		db,
		erpClient,
		lockBackend,
		authMiddleware,
		rateLimiter,
		orderHandler,
		projectHandler,
		catalogHandler,
		paymentHandler,
	)

	// Background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterPricingAuditJob(scheduler, orderService, log, cfg.Jobs.PricingAudit, cfg.Jobs.TimeoutDuration()); err != nil {
			log.Error("Failed to register pricing audit job", zap.Error(err))
		}
		if err := jobs.RegisterPriceSyncJob(scheduler, priceSyncService, log, cfg.Jobs.PriceSyncSchedule, cfg.Jobs.TimeoutDuration(), true); err != nil {
			log.Error("Failed to register price sync job", zap.Error(err))
		}
		scheduler.Start()
		log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if erpClient != nil {
			if err := erpClient.Close(); err != nil {
				log.Warn("Error closing ERP connection", zap.Error(err))
			}
		}
		if redisLocker != nil {
			if err := redisLocker.Close(); err != nil {
				log.Warn("Error closing redis connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
