package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
)

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.ConnectionString()), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Models lists every persisted type in dependency order
func Models() []interface{} {
	return []interface{}{
		&domain.Product{},
		&domain.Supplier{},
		&domain.SupplierOffer{},
		&domain.Project{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.DeliverySlot{},
		&domain.OrderActivity{},
		&domain.Payment{},
		&domain.InvoiceDocument{},
	}
}

// AutoMigrate runs automatic migrations (for development and tests only)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// HealthCheck pings the underlying connection
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// HealthCheckWithStats pings the connection and returns pool statistics
func HealthCheckWithStats(ctx context.Context, db *gorm.DB) (*sql.DBStats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	stats := sqlDB.Stats()
	return &stats, nil
}
