package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	EnvAppEnv           = "STOREFRONT_APP_ENV"
	EnvPort             = "STOREFRONT_APP_PORT"
	EnvCartStore        = "STOREFRONT_CART_STORE"
	EnvDBDSN            = "STOREFRONT_DB_DSN"
	EnvDBDriver         = "STOREFRONT_DB_DRIVER"
	EnvRedisURL         = "STOREFRONT_REDIS_URL"
	EnvCatalogURL       = "STOREFRONT_CATALOG_BASE_URL"
	EnvShippingURL      = "STOREFRONT_SHIPPING_BASE_URL"
	EnvShippingDebounce = "STOREFRONT_SHIPPING_DEBOUNCE"
	EnvOrdersURL        = "STOREFRONT_ORDERS_BASE_URL"
	EnvPaymentMethods   = "STOREFRONT_PAYMENT_METHODS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	CartStoreMemory   = "memory"
	CartStoreRedis    = "redis"
	CartStorePostgres = "postgres"
	CartStoreSQLite   = "sqlite"
)

type Config struct {
	App          AppConfig
	CartStore    CartStoreConfig
	DB           DBConfig
	Redis        RedisConfig
	Catalog      CatalogConfig
	Shipping     ShippingConfig
	Orders       OrdersConfig
	Payments     PaymentsConfig
	Breaker      BreakerConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB reads only the app, database and feature-flag sections. Tools such as
// the migration CLI use it so they run without upstream service URLs.
func LoadDB() (*Config, error) {
	var cfg Config
	for _, section := range []any{&cfg.App, &cfg.DB, &cfg.FeatureFlags} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	switch backend := strings.ToLower(strings.TrimSpace(os.Getenv(EnvCartStore))); backend {
	case CartStorePostgres, CartStoreSQLite:
		cfg.DB.Driver = backend
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CartStoreConfig selects where per-identity carts are persisted.
type CartStoreConfig struct {
	Backend string        `envconfig:"STOREFRONT_CART_STORE" default:"memory"`
	TTL     time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"720h"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"STOREFRONT_REDIS_KEY_PREFIX" default:"sf"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type CatalogConfig struct {
	BaseURL         string        `envconfig:"STOREFRONT_CATALOG_BASE_URL" required:"true"`
	Timeout         time.Duration `envconfig:"STOREFRONT_CATALOG_TIMEOUT" default:"5s"`
	RefreshInterval time.Duration `envconfig:"STOREFRONT_CATALOG_REFRESH_INTERVAL" default:"5m"`
}

type ShippingConfig struct {
	BaseURL  string        `envconfig:"STOREFRONT_SHIPPING_BASE_URL" required:"true"`
	Timeout  time.Duration `envconfig:"STOREFRONT_SHIPPING_TIMEOUT" default:"5s"`
	Debounce time.Duration `envconfig:"STOREFRONT_SHIPPING_DEBOUNCE" default:"500ms"`
}

type OrdersConfig struct {
	BaseURL  string        `envconfig:"STOREFRONT_ORDERS_BASE_URL" required:"true"`
	Timeout  time.Duration `envconfig:"STOREFRONT_ORDERS_TIMEOUT" default:"10s"`
	PageSize int           `envconfig:"STOREFRONT_ORDERS_PAGE_SIZE" default:"20"`
}

// PaymentsConfig lists the globally active payment methods as
// comma separated `id:name[:cod]` entries.
type PaymentsConfig struct {
	Methods string `envconfig:"STOREFRONT_PAYMENT_METHODS" default:"cod:Cash on delivery:cod,bank_transfer:Bank transfer"`
}

type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"STOREFRONT_BREAKER_MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"STOREFRONT_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type PubSubConfig struct {
	ProjectID      string        `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	OrdersTopic    string        `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC"`
	OrderByBuyer   bool          `envconfig:"STOREFRONT_PUBSUB_ORDER_BY_BUYER" default:"true"`
	PublishTimeout time.Duration `envconfig:"STOREFRONT_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
}

// Enabled reports whether order events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.OrdersTopic) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (c *Config) validate() error {
	backend := strings.ToLower(strings.TrimSpace(c.CartStore.Backend))
	c.CartStore.Backend = backend
	switch backend {
	case CartStoreMemory:
	case CartStoreRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("%s=redis requires %s or STOREFRONT_REDIS_ADDR", EnvCartStore, EnvRedisURL)
		}
	case CartStorePostgres, CartStoreSQLite:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s=%s requires %s", EnvCartStore, backend, EnvDBDSN)
		}
		c.DB.Driver = backend
	default:
		return fmt.Errorf("unsupported %s %q", EnvCartStore, c.CartStore.Backend)
	}
	if c.Shipping.Debounce < 0 {
		return fmt.Errorf("%s must not be negative", EnvShippingDebounce)
	}
	return nil
}
