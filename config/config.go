package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable, e.g. LICENSEGATE_DB_URL.
const EnvPrefix = "LICENSEGATE"

// Config is the process configuration, loaded from the environment.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	// Embedded so every variable sits directly under EnvPrefix.
	ServerConfig
	DatabaseConfig
	WebhookConfig
	StoreConfig
	LicensingConfig
	AdminConfig
	RateLimitConfig
	LoggingConfig

	MetricsInterval time.Duration `envconfig:"METRICS_INTERVAL" default:"1m"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects the driver and the DSN. Password, when set, is
// merged into the DSN so the URL can be kept out of secret storage.
type DatabaseConfig struct {
	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBURL      string `envconfig:"DB_URL" default:"./license.db"`
	DBPassword string `envconfig:"DB_PASSWORD"`
}

// WebhookConfig holds the shared secret used to sign order events.
type WebhookConfig struct {
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

// StoreConfig points at the upstream shop REST API used for write-back.
type StoreConfig struct {
	StoreURL            string        `envconfig:"STORE_URL"`
	StoreConsumerKey    string        `envconfig:"STORE_CONSUMER_KEY"`
	StoreConsumerSecret string        `envconfig:"STORE_CONSUMER_SECRET"`
	StoreTimeout        time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
}

// WriteBackEnabled reports whether write-back has everything it needs.
func (s StoreConfig) WriteBackEnabled() bool {
	return s.StoreURL != "" && s.StoreConsumerKey != "" && s.StoreConsumerSecret != ""
}

// LicensingConfig controls key format and plan resolution for order events.
type LicensingConfig struct {
	KeyPrefix         string         `envconfig:"KEY_PREFIX" default:"LIC"`
	DefaultPlan       string         `envconfig:"DEFAULT_PLAN" default:"standard"`
	DefaultMaxDevices int            `envconfig:"DEFAULT_MAX_DEVICES" default:"2"`
	PlanDevices       map[string]int `envconfig:"PLAN_DEVICES"`
	PaidStatuses      []string       `envconfig:"PAID_STATUSES" default:"processing,completed"`
}

// AdminConfig configures the admin API. An empty JWTSecret disables it.
type AdminConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	AdminUsername string        `envconfig:"ADMIN_USERNAME"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD"`
}

// RateLimitConfig limits client endpoints per remote address. Forwarding
// headers are only honoured for peers listed in TrustedProxies (IPs or CIDRs).
type RateLimitConfig struct {
	RPS            float64  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst          int      `envconfig:"RATE_LIMIT_BURST" default:"40"`
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// LoggingConfig feeds logger.Initialize.
type LoggingConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"LOG_DIR" default:"./logs"`
	LogColor bool   `envconfig:"LOG_COLOR" default:"true"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot work at all. Missing secrets are
// not errors here; the affected endpoints fail closed at request time.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (sqlite, mysql, postgres)", c.DBDriver)
	}
	if strings.TrimSpace(c.DBURL) == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.DefaultMaxDevices <= 0 {
		return fmt.Errorf("DEFAULT_MAX_DEVICES must be positive, got %d", c.DefaultMaxDevices)
	}
	for sku, devices := range c.PlanDevices {
		if devices <= 0 {
			return fmt.Errorf("PLAN_DEVICES entry %q must be positive, got %d", sku, devices)
		}
	}
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// IsProduction reports whether error details must be withheld from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
