package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// Getter fetches a named secret from a remote store
type Getter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// VaultClient reads secrets from Azure Key Vault with an optional TTL cache
type VaultClient struct {
	client    *azsecrets.Client
	vaultName string
	logger    *zap.Logger
	cache     *ttlCache
}

// VaultConfig holds configuration for the vault client
type VaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewVaultClient creates a Key Vault client authenticated with
// DefaultAzureCredential (environment, managed identity or Azure CLI).
func NewVaultClient(cfg *VaultConfig, logger *zap.Logger) (*VaultClient, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		logger.Error("Failed to create Azure credential", zap.Error(err))
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		logger.Error("Failed to create Key Vault client", zap.Error(err))
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	vc := &VaultClient{
		client:    client,
		vaultName: cfg.VaultName,
		logger:    logger,
	}
	if cfg.CacheEnabled {
		vc.cache = newTTLCache(cfg.CacheTTL)
	}

	logger.Info("Azure Key Vault client initialized",
		zap.String("vault_url", vaultURL),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
	)
	return vc, nil
}

// GetSecret retrieves a secret, serving it from cache when fresh
func (v *VaultClient) GetSecret(ctx context.Context, secretName string) (string, error) {
	if value, ok := v.cache.get(secretName); ok {
		return value, nil
	}

	resp, err := v.client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		v.logger.Error("Failed to get secret from Key Vault",
			zap.String("secret_name", secretName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret '%s': %w", secretName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", secretName)
	}

	v.cache.put(secretName, *resp.Value)
	return *resp.Value, nil
}

// ttlCache is safe for concurrent use. A nil cache never hits.
type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedSecret
	now     func() time.Time
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ttlCache{ttl: ttl, entries: make(map[string]cachedSecret), now: time.Now}
}

func (c *ttlCache) get(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, name)
		return "", false
	}
	return e.value, true
}

func (c *ttlCache) put(name, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cachedSecret{value: value, expiresAt: c.now().Add(c.ttl)}
}
