package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string `default:"127.0.0.1:8080" usage:"Facade listen address"`
	Commerce CommerceConfig
	Storage  StorageConfig
	Sync     SyncConfig
	CORS     CORSConfig
	Graceful GracefulConfig
}

// CommerceConfig points at the remote commerce API.
type CommerceConfig struct {
	BaseURL string        `usage:"Base URL of the remote commerce API" flag:"commerce-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout"`
	Breaker BreakerConfig
}

// BreakerConfig controls the circuit breaker in front of the commerce API.
type BreakerConfig struct {
	Failures         uint32        `default:"5" usage:"Consecutive failures that open the breaker"`
	OpenTimeout      time.Duration `default:"30s" usage:"Time the breaker stays open before probing"`
	HalfOpenRequests uint32        `default:"1" usage:"Probe requests allowed while half-open"`
}

// StorageConfig selects where the cart, token and preferences live.
type StorageConfig struct {
	Driver      string `default:"file" usage:"Storage driver: memory, file, redis or postgres"`
	Dir         string `default:"./data" usage:"Directory of the file driver"`
	Compress    bool   `default:"false" usage:"Gzip values of the file driver"`
	RedisAddr   string `default:"127.0.0.1:6379" usage:"Redis address" flag:"redis-addr"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Namespace   string `default:"default" usage:"Key namespace of the redis and postgres drivers"`
}

// SyncConfig controls background cart reconciliation.
type SyncConfig struct {
	Interval time.Duration `default:"1m" usage:"Cart sync interval, 0 disables the loop"`
}

// CORSConfig lists app shell origins allowed to call the facade.
type CORSConfig struct {
	Origins []string `usage:"Allowed CORS origins, empty disables CORS"`
	MaxAge  int      `default:"600" usage:"Preflight cache duration in seconds"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Commerce.BaseURL == "" {
		return errors.New("commerce base URL is required: set KART_COMMERCE_BASE_URL")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverFile:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the file driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres driver: set KART_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Sync.Interval < 0 {
		return errors.New("sync interval must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps the standard DATABASE_URL and PORT variables to
// the KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:8080" {
		c.Addr = "127.0.0.1:" + port
	}
}
