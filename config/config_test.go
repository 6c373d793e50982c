package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "LIC", cfg.KeyPrefix)
	assert.Equal(t, 2, cfg.DefaultMaxDevices)
	assert.Equal(t, []string{"processing", "completed"}, cfg.PaidStatuses)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.WriteBackEnabled())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LICENSEGATE_APP_ENV", "production")
	t.Setenv("LICENSEGATE_DB_DRIVER", "postgres")
	t.Setenv("LICENSEGATE_DB_URL", "postgres://licenses@db:5432/licenses")
	t.Setenv("LICENSEGATE_WEBHOOK_SECRET", "whsec")
	t.Setenv("LICENSEGATE_PLAN_DEVICES", "pro-sku:5,team-sku:10")
	t.Setenv("LICENSEGATE_STORE_URL", "https://shop.example.com")
	t.Setenv("LICENSEGATE_STORE_CONSUMER_KEY", "ck")
	t.Setenv("LICENSEGATE_STORE_CONSUMER_SECRET", "cs")
	t.Setenv("LICENSEGATE_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "whsec", cfg.WebhookSecret)
	assert.Equal(t, map[string]int{"pro-sku": 5, "team-sku": 10}, cfg.PlanDevices)
	assert.True(t, cfg.WriteBackEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseConfig:  DatabaseConfig{DBDriver: "sqlite", DBURL: "x.db"},
			LicensingConfig: LicensingConfig{DefaultMaxDevices: 1},
			RateLimitConfig: RateLimitConfig{RPS: 1, Burst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "oracle" }, wantErr: "unsupported DB_DRIVER"},
		{name: "empty url", mutate: func(c *Config) { c.DBURL = " " }, wantErr: "DB_URL is required"},
		{name: "zero devices", mutate: func(c *Config) { c.DefaultMaxDevices = 0 }, wantErr: "DEFAULT_MAX_DEVICES"},
		{name: "bad plan", mutate: func(c *Config) { c.PlanDevices = map[string]int{"x": -1} }, wantErr: "PLAN_DEVICES"},
		{name: "bad rate", mutate: func(c *Config) { c.Burst = 0 }, wantErr: "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
