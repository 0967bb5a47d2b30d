// Package config loads Magpie configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/openretail-labs/magpie/internal/domain"
)

type envConfig struct {
	Host         string `env:"MAGPIE_HOST" envDefault:"0.0.0.0"`
	Port         int    `env:"MAGPIE_PORT" envDefault:"8080"`
	ReadTimeout  int    `env:"MAGPIE_READ_TIMEOUT" envDefault:"30"`
	WriteTimeout int    `env:"MAGPIE_WRITE_TIMEOUT" envDefault:"30"`

	DBDriver         string `env:"MAGPIE_DB_DRIVER" envDefault:"sqlite"`
	SQLitePath       string `env:"MAGPIE_SQLITE_PATH" envDefault:"./magpie.db"`
	PostgresHost     string `env:"MAGPIE_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"MAGPIE_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"MAGPIE_POSTGRES_USER" envDefault:"magpie"`
	PostgresPassword string `env:"MAGPIE_POSTGRES_PASSWORD"`
	PostgresDB       string `env:"MAGPIE_POSTGRES_DB" envDefault:"magpie"`
	PostgresSSLMode  string `env:"MAGPIE_POSTGRES_SSLMODE" envDefault:"disable"`

	CacheType     string        `env:"MAGPIE_CACHE" envDefault:"memory"`
	CacheMaxSize  int           `env:"MAGPIE_CACHE_MAX_SIZE" envDefault:"10000"`
	CacheTTL      time.Duration `env:"MAGPIE_CACHE_TTL" envDefault:"1h"`
	RedisAddr     string        `env:"MAGPIE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"MAGPIE_REDIS_PASSWORD"`
	RedisDB       int           `env:"MAGPIE_REDIS_DB" envDefault:"0"`
	CacheTwoPhase bool          `env:"MAGPIE_CACHE_TWO_PHASE" envDefault:"false"`

	BusType           string `env:"MAGPIE_BUS" envDefault:"channel"`
	BusBufferSize     int    `env:"MAGPIE_BUS_BUFFER" envDefault:"1000"`
	NATSUrl           string `env:"MAGPIE_NATS_URL"`
	NATSToken         string `env:"MAGPIE_NATS_TOKEN"`
	NATSMaxReconnects int    `env:"MAGPIE_NATS_MAX_RECONNECTS" envDefault:"10"`
	NATSReconnectWait int    `env:"MAGPIE_NATS_RECONNECT_WAIT" envDefault:"5"`

	DedupWindow   time.Duration `env:"MAGPIE_DEDUP_WINDOW" envDefault:"5m"`
	SessionTTL    time.Duration `env:"MAGPIE_SESSION_TTL" envDefault:"8h"`
	BasketTTL     time.Duration `env:"MAGPIE_BASKET_TTL" envDefault:"2h"`
	SweepInterval time.Duration `env:"MAGPIE_SWEEP_INTERVAL" envDefault:"5m"`

	LookupEndpoint string        `env:"MAGPIE_CUSTOMER_API_URL" envDefault:"http://localhost:8000/api/mock-customer-lookup"`
	LookupTimeout  time.Duration `env:"MAGPIE_CUSTOMER_API_TIMEOUT" envDefault:"5s"`
	LookupRetries  int           `env:"MAGPIE_CUSTOMER_API_RETRIES" envDefault:"2"`
	LookupCacheTTL time.Duration `env:"MAGPIE_CUSTOMER_CACHE_TTL" envDefault:"1h"`

	LogLevel  string `env:"MAGPIE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MAGPIE_LOG_FORMAT" envDefault:"json"`

	TracingEnabled bool   `env:"MAGPIE_TRACING" envDefault:"false"`
	ServiceName    string `env:"MAGPIE_SERVICE_NAME" envDefault:"magpie"`
}

// Load builds the configuration from defaults overridden by environment
// variables.
func Load() (*domain.Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &domain.Config{
		Server: domain.ServerConfig{
			Host:         e.Host,
			Port:         e.Port,
			ReadTimeout:  e.ReadTimeout,
			WriteTimeout: e.WriteTimeout,
		},
		Repository: domain.RepositoryConfig{
			Driver:           e.DBDriver,
			SQLitePath:       e.SQLitePath,
			PostgresHost:     e.PostgresHost,
			PostgresPort:     e.PostgresPort,
			PostgresUser:     e.PostgresUser,
			PostgresPassword: e.PostgresPassword,
			PostgresDB:       e.PostgresDB,
			PostgresSSLMode:  e.PostgresSSLMode,
		},
		Cache: domain.CacheConfig{
			Type:           e.CacheType,
			LocalMaxSize:   e.CacheMaxSize,
			LocalTTL:       e.CacheTTL,
			RedisAddr:      e.RedisAddr,
			RedisPassword:  e.RedisPassword,
			RedisDB:        e.RedisDB,
			EnableTwoPhase: e.CacheTwoPhase,
		},
		EventBus: domain.EventBusConfig{
			Type:              e.BusType,
			ChannelBufferSize: e.BusBufferSize,
			NATSUrl:           e.NATSUrl,
			NATSToken:         e.NATSToken,
			NATSMaxReconnects: e.NATSMaxReconnects,
			NATSReconnectWait: e.NATSReconnectWait,
		},
		Dispatch: domain.DispatchConfig{
			DedupWindow:   e.DedupWindow,
			SessionTTL:    e.SessionTTL,
			BasketTTL:     e.BasketTTL,
			SweepInterval: e.SweepInterval,
		},
		Lookup: domain.LookupConfig{
			APIEndpoint:   e.LookupEndpoint,
			Timeout:       e.LookupTimeout,
			RetryAttempts: e.LookupRetries,
			CacheTTL:      e.LookupCacheTTL,
		},
		Logging: domain.LoggingConfig{
			Level:  e.LogLevel,
			Format: e.LogFormat,
		},
		Tracing: domain.TracingConfig{
			Enabled:     e.TracingEnabled,
			ServiceName: e.ServiceName,
		},
	}, nil
}
