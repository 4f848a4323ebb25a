package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/secrets"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	ERP       ERPConfig
	Redis     RedisConfig
	Engine    EngineConfig
	JWT       JWTConfig
	ApiKey    ApiKeyConfig
	Payment   PaymentConfig
	Storage   StorageConfig
	Secrets   SecretsConfig
	Jobs      JobsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// ERPConfig holds configuration for the supplier ERP warehouse (MS SQL Server).
// The connection is optional and read-only; it feeds supplier unit costs.
type ERPConfig struct {
	// Enabled controls whether the ERP connection is attempted
	Enabled bool
	// URL is the connection URL in format host:port/database (from ERP-URL secret)
	URL string
	// User is the database username (from ERP-USERNAME secret)
	User string
	// Password is the database password (from ERP-PASSWORD secret)
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// QueryTimeout is the default timeout for queries (seconds)
	QueryTimeout int
}

// RedisConfig configures the shared lock store. Without an address edits are
// guarded by an in-process lock only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// LockTTL bounds how long an order edit may hold its lock (seconds)
	LockTTL int
}

// EngineConfig holds the tunables of the allocation and pricing rules
type EngineConfig struct {
	// AllocationEpsilon is the tolerance for slot quantities summing to the item quantity
	AllocationEpsilon string
	// GSTRate is the tax rate applied to item and delivery cost less discount
	GSTRate string
	// MoneyPlaces is the rounding applied to money amounts
	MoneyPlaces int32
	// MaxLoads bounds how many trips one load-size expansion may create
	MaxLoads int
}

type JWTConfig struct {
	// Secret signs HS256 bearer tokens
	Secret string
	Issuer string
	// TTL is the lifetime of issued tokens (minutes)
	TTL int
}

type ApiKeyConfig struct {
	SecretName string
	Value      string // Loaded from secrets or environment
}

// PaymentConfig selects the card payment gateway
type PaymentConfig struct {
	// Provider is "sandbox" or "http"
	Provider string
	BaseURL  string
	APIKey   string
	Currency string
	// Timeout for gateway calls (seconds)
	Timeout int
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

// JobsConfig holds the schedules of background jobs (cron expressions)
type JobsConfig struct {
	Enabled           bool
	PriceSyncSchedule string
	PricingAudit      string
	// Timeout bounds one job run (seconds)
	Timeout int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins for CORS requests
	// Use "*" to allow all origins (not recommended for production)
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	// FrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN, or empty to disable)
	FrameOptions       string
	ContentTypeNosniff bool
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the default rate limit for unauthenticated requests (per IP)
	RequestsPerMinute int
	// RequestsPerMinuteAuth is the rate limit for authenticated requests (per user)
	RequestsPerMinuteAuth int
	// PaymentsPerMinute caps card charges per caller, independent of the general limit
	PaymentsPerMinute int
	BurstSize         int
	WhitelistIPs      []string
	// WhitelistPaths is a list of paths that bypass rate limiting (e.g., /health)
	WhitelistPaths []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (e *ERPConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(e.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (e *ERPConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(e.QueryTimeout) * time.Second
}

// LockTTLDuration returns the edit lock TTL as duration
func (r *RedisConfig) LockTTLDuration() time.Duration {
	return time.Duration(r.LockTTL) * time.Second
}

// TTLDuration returns the token lifetime as duration
func (j *JWTConfig) TTLDuration() time.Duration {
	return time.Duration(j.TTL) * time.Minute
}

// TimeoutDuration bounds one run of a background job
func (j *JobsConfig) TimeoutDuration() time.Duration {
	return time.Duration(j.Timeout) * time.Second
}

func (p *PaymentConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// Epsilon parses the allocation tolerance
func (e *EngineConfig) Epsilon() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(e.AllocationEpsilon)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid engine.allocationEpsilon %q: %w", e.AllocationEpsilon, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("engine.allocationEpsilon must be positive, got %s", d)
	}
	return d, nil
}

// Rate parses the GST rate
func (e *EngineConfig) Rate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(e.GSTRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid engine.gstRate %q: %w", e.GSTRate, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("engine.gstRate must be in [0, 1), got %s", d)
	}
	return d, nil
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ApiKey.Value == "" {
		cfg.ApiKey.Value = v.GetString("ADMIN_API_KEY")
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = v.GetString("JWT_SECRET")
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	}
	if cfg.Payment.APIKey == "" {
		cfg.Payment.APIKey = v.GetString("PAYMENT_API_KEY")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("ERP_ENABLED") {
		cfg.ERP.Enabled = true
	}

	// NOTE: ERP credentials are ONLY loaded from Azure Key Vault, see LoadWithSecrets

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
//
// Key Vault is used for the main secrets when USE_AZURE_KEY_VAULT=true and the
// environment is staging or production. ERP credentials are always read from
// Key Vault when ERP_ENABLED=true and AZURE_KEY_VAULT_NAME is set.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if cfg.ERP.Enabled && cfg.Secrets.KeyVaultName != "" {
		if err := loadERPSecrets(ctx, cfg, logger); err != nil {
			logger.Warn("Failed to load ERP secrets from Key Vault",
				zap.Error(err),
				zap.String("environment", cfg.App.Environment),
			)
			// Don't fail startup - supplier price sync is optional
		}
	}

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for main secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables for main secrets",
			zap.String("environment", cfg.App.Environment),
			zap.Bool("use_key_vault", useKeyVault),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	logger.Info("Azure Key Vault enabled for secrets",
		zap.String("environment", cfg.App.Environment),
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider (USE_AZURE_KEY_VAULT=true requires valid vault): %w", err)
	}
	if !provider.IsVaultEnabled() {
		return nil, fmt.Errorf("vault provider not enabled despite USE_AZURE_KEY_VAULT=true")
	}

	logger.Info("Loading secrets from Azure Key Vault")

	if host, err := provider.GetSecretOrEnv(ctx, "POSTGRES-MAIN-HOST", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	// Database name varies per environment and is not kept in vault
	if defaultDB := os.Getenv("DEFAULT_DATABASE"); defaultDB != "" {
		cfg.Database.Name = defaultDB
		logger.Info("Using DEFAULT_DATABASE environment variable for database name",
			zap.String("database", defaultDB),
		)
	}
	if user, err := provider.GetSecretOrEnv(ctx, "POSTGRES-MAIN-USER", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	if password, err := provider.GetSecretOrEnv(ctx, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD"); err == nil && password != "" {
		cfg.Database.Password = password
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if jwtSecret, err := provider.GetSecretOrEnv(ctx, "jwt-signing-secret", "JWT_SECRET"); err == nil && jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}
	if apiKey, err := provider.GetSecretOrEnv(ctx, "admin-api-key", "ADMIN_API_KEY"); err == nil && apiKey != "" {
		cfg.ApiKey.Value = apiKey
	}
	if redisPassword, err := provider.GetSecretOrEnv(ctx, "redis-password", "REDIS_PASSWORD"); err == nil && redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}
	if paymentKey, err := provider.GetSecretOrEnv(ctx, "payment-api-key", "PAYMENT_API_KEY"); err == nil && paymentKey != "" {
		cfg.Payment.APIKey = paymentKey
	}
	if connStr, err := provider.GetSecretOrEnv(ctx, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING"); err == nil && connStr != "" {
		cfg.Storage.CloudConnectionString = connStr
	}

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

// loadERPSecrets loads ERP credentials from Azure Key Vault only (no env var fallback)
func loadERPSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	logger.Info("Loading ERP secrets from Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
		zap.String("environment", cfg.App.Environment),
	)

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client for ERP: %w", err)
	}

	url, err := provider.GetSecret(ctx, "ERP-URL")
	if err != nil {
		return fmt.Errorf("failed to get ERP-URL from Key Vault: %w", err)
	}
	cfg.ERP.URL = url

	user, err := provider.GetSecret(ctx, "ERP-USERNAME")
	if err != nil {
		return fmt.Errorf("failed to get ERP-USERNAME from Key Vault: %w", err)
	}
	cfg.ERP.User = user

	password, err := provider.GetSecret(ctx, "ERP-PASSWORD")
	if err != nil {
		return fmt.Errorf("failed to get ERP-PASSWORD from Key Vault: %w", err)
	}
	cfg.ERP.Password = password

	logger.Info("ERP credentials loaded from Key Vault successfully")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Bulk Materials Order API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "orders")
	v.SetDefault("database.user", "orders_user")
	v.SetDefault("database.password", "orders_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	// ERP warehouse (MS SQL Server - optional, read-only)
	v.SetDefault("erp.enabled", false)
	v.SetDefault("erp.maxOpenConns", 10)
	v.SetDefault("erp.maxIdleConns", 2)
	v.SetDefault("erp.connMaxLifetime", 300)
	v.SetDefault("erp.queryTimeout", 30)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", 30)

	v.SetDefault("engine.allocationEpsilon", "0.01")
	v.SetDefault("engine.gstRate", "0.10")
	v.SetDefault("engine.moneyPlaces", 2)
	v.SetDefault("engine.maxLoads", 200)

	v.SetDefault("jwt.issuer", "bulkmat-order-api")
	v.SetDefault("jwt.ttl", 60)

	v.SetDefault("payment.provider", "sandbox")
	v.SetDefault("payment.currency", "AUD")
	v.SetDefault("payment.timeout", 15)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "invoices")
	v.SetDefault("storage.maxUploadSizeMB", 20)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.priceSyncSchedule", "0 0 2 * * *")
	v.SetDefault("jobs.pricingAudit", "0 30 3 * * *")
	v.SetDefault("jobs.timeout", 600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false) // enable in production with HTTPS
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.xssProtection", "1; mode=block")
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.paymentsPerMinute", 5)
	v.SetDefault("rateLimit.burstSize", 10)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})
}
