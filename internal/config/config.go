package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mahmudulhsn/shopping-cart/internal/cart"
	"github.com/mahmudulhsn/shopping-cart/pkg/database"
	pkgconfig "github.com/mahmudulhsn/shopping-cart/pkg/config"
	"github.com/mahmudulhsn/shopping-cart/pkg/tracing"
)

// Storage backends selectable with STORAGE_TYPE.
const (
	StorageSession  = "session"
	StorageDatabase = "database"
	StorageMemory   = "memory"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"cart-service"`

	// HTTP server
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	// Cart behavior
	AppName         string   `env:"APP_NAME" envDefault:"shopping-cart"`
	StorageType     string   `env:"STORAGE_TYPE" envDefault:"session"`
	TaxRate         float64  `env:"CART_TAX_RATE" envDefault:"0"`
	DestroyOnLogout bool     `env:"CART_DESTROY_ON_LOGOUT" envDefault:"false"`
	IdentityFields  []string `env:"CART_IDENTITY_FIELDS" envDefault:"id,name" envSeparator:","`

	// Cart TTL in hours (default: 7 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"cart"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:""`
	PostgresDB       string `env:"CART_DB_NAME" envDefault:"cart"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"cart-service"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// HTTP surface
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	switch c.StorageType {
	case StorageSession, StorageDatabase, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be one of session, database, memory, got %q", c.StorageType))
	}
	if c.AppName == "" {
		errs = append(errs, errors.New("APP_NAME is required"))
	}
	if c.TaxRate < 0 || c.TaxRate > 100 {
		errs = append(errs, fmt.Errorf("CART_TAX_RATE must be between 0 and 100, got %v", c.TaxRate))
	}
	if c.CartTTL < 0 {
		errs = append(errs, fmt.Errorf("CART_TTL_HOURS must not be negative, got %d", c.CartTTL))
	}
	if _, err := cart.ParseIdentityFields(c.IdentityFields); err != nil {
		errs = append(errs, fmt.Errorf("CART_IDENTITY_FIELDS: %w", err))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate))
	}
	if c.DestroyOnLogout && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when CART_DESTROY_ON_LOGOUT is set"))
	}

	return errors.Join(errs...)
}

// CartTTLDuration is CART_TTL_HOURS as a duration.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// CartIdentityFields returns the parsed identity field list.
func (c *Config) CartIdentityFields() []cart.IdentityField {
	fields, err := cart.ParseIdentityFields(c.IdentityFields)
	if err != nil {
		return cart.DefaultIdentityFields
	}
	return fields
}

// Postgres returns the pool settings for the database backend.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	if c.PostgresMaxConns > 0 {
		pg.MaxConns = c.PostgresMaxConns
	}
	return pg
}

// Redis returns the client settings for the session backend.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.Environment = c.Environment
	tc.Enabled = c.OTELEnabled
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	return tc
}
