package erp_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/erp"
)

func TestNewClient_Disabled(t *testing.T) {
	logger := zap.NewNop()

	client, err := erp.NewClient(nil, logger)
	assert.NoError(t, err)
	assert.Nil(t, client)

	client, err = erp.NewClient(&config.ERPConfig{Enabled: false}, logger)
	assert.NoError(t, err)
	assert.Nil(t, client)
	assert.False(t, client.IsEnabled())
}

func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.ERPConfig
	}{
		{"missing URL", &config.ERPConfig{Enabled: true, User: "user", Password: "pass"}},
		{"missing user", &config.ERPConfig{Enabled: true, URL: "host:1433/db", Password: "pass"}},
		{"missing password", &config.ERPConfig{Enabled: true, URL: "host:1433/db", User: "user"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := erp.NewClient(tt.cfg, zap.NewNop())
			assert.NoError(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		host     string
		database string
	}{
		{"host port database", "erp.example.net:1444/prices", "erp.example.net:1444", "prices"},
		{"default port", "erp.example.net/prices", "erp.example.net:1433", "prices"},
		{"no database", "erp.example.net:1433", "erp.example.net:1433", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := erp.BuildConnectionString(&config.ERPConfig{URL: tt.url, User: "reader", Password: "p@ss word"})
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "sqlserver", u.Scheme)
			assert.Equal(t, tt.host, u.Host)
			assert.Equal(t, "reader", u.User.Username())
			pw, _ := u.User.Password()
			assert.Equal(t, "p@ss word", pw)
			assert.Equal(t, tt.database, u.Query().Get("database"))
			assert.Equal(t, "ReadOnly", u.Query().Get("ApplicationIntent"))
		})
	}

	_, err := erp.BuildConnectionString(&config.ERPConfig{})
	assert.Error(t, err)
}

func TestNilClient(t *testing.T) {
	var c *erp.Client
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)
	assert.NoError(t, c.Close())
	_, err := c.SupplierPriceList(context.Background())
	assert.Error(t, err)
}
