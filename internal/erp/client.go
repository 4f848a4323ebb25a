// Package erp provides read-only access to the supplier ERP warehouse on
// MS SQL Server. It is the source of supplier unit costs.
package erp

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
)

// PriceListTable is the ERP view holding current supplier price lists
const PriceListTable = "dbo.supplier_price_list_current"

// PriceListEntry is one supplier's unit cost for one catalog product
type PriceListEntry struct {
	SupplierRef  string
	SupplierName string
	ProductID    uint
	UnitCost     decimal.Decimal
	UpdatedAt    time.Time
}

// Client provides read-only access to the ERP warehouse
type Client struct {
	db           *sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the ERP connection
type HealthStatus struct {
	Status  string        `json:"status"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
	Open    int           `json:"open_connections"`
	InUse   int           `json:"in_use"`
	Idle    int           `json:"idle"`
}

// NewClient creates an ERP client. It returns nil without error when the ERP
// is disabled or its credentials are missing.
func NewClient(cfg *config.ERPConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("ERP connection disabled")
		return nil, nil
	}
	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("ERP enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	connStr, err := BuildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	var db *sql.DB
	backoff := defaultInitialBackoff
	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		db, err = sql.Open("sqlserver", connStr)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

			ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
			err = db.PingContext(ctx)
			cancel()
			if err == nil {
				logger.Info("ERP connection established", zap.Int("attempts_taken", attempt))
				return &Client{db: db, logger: logger, queryTimeout: cfg.QueryTimeoutDuration()}, nil
			}
			_ = db.Close()
		}

		logger.Warn("ERP connection attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", defaultMaxRetries),
		)
		if attempt < defaultMaxRetries {
			time.Sleep(backoff)
			backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to ERP after %d attempts: %w", defaultMaxRetries, err)
}

// BuildConnectionString turns host:port/database into a sqlserver URL
func BuildConnectionString(cfg *config.ERPConfig) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("erp url is empty")
	}
	urlParts := strings.SplitN(cfg.URL, "/", 2)
	hostPort := urlParts[0]
	database := ""
	if len(urlParts) > 1 {
		database = urlParts[1]
	}

	hostParts := strings.SplitN(hostPort, ":", 2)
	host := hostParts[0]
	port := "1433"
	if len(hostParts) > 1 && hostParts[1] != "" {
		port = hostParts[1]
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("ApplicationIntent", "ReadOnly")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// Close closes the ERP connection
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close ERP connection: %w", err)
	}
	c.logger.Info("ERP connection closed")
	return nil
}

// IsEnabled returns true if the client is initialized and ready for queries
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// HealthCheck pings the ERP and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.IsEnabled() {
		return &HealthStatus{Status: "disabled"}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()
	status := &HealthStatus{
		Status:  "healthy",
		Latency: time.Since(start),
		Open:    stats.OpenConnections,
		InUse:   stats.InUse,
		Idle:    stats.Idle,
	}
	if err != nil {
		c.logger.Warn("ERP health check failed", zap.Error(err))
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// SupplierPriceList reads every current supplier unit cost
func (c *Client) SupplierPriceList(ctx context.Context) ([]PriceListEntry, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("erp client not initialized")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	query := fmt.Sprintf(`SELECT supplier_ref, supplier_name, product_id, unit_cost, updated_at
FROM %s
WHERE unit_cost IS NOT NULL`, PriceListTable)

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.Error("ERP price list query failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("price list query failed: %w", err)
	}
	defer rows.Close()

	var entries []PriceListEntry
	for rows.Next() {
		var (
			e         PriceListEntry
			productID int64
			unitCost  string
		)
		if err := rows.Scan(&e.SupplierRef, &e.SupplierName, &productID, &unitCost, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price list row: %w", err)
		}
		if productID <= 0 {
			continue
		}
		e.ProductID = uint(productID)
		e.UnitCost, err = decimal.NewFromString(unitCost)
		if err != nil {
			return nil, fmt.Errorf("invalid unit cost %q for %s/%d: %w", unitCost, e.SupplierRef, productID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price list: %w", err)
	}

	c.logger.Debug("ERP price list read",
		zap.Int("rows_returned", len(entries)),
		zap.Duration("duration", time.Since(start)),
	)
	return entries, nil
}
