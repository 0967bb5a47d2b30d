package domain

import "time"

// Config holds the complete Magpie configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Dispatch settings
	Dispatch DispatchConfig `json:"dispatch"`

	// External customer lookup
	Lookup LookupConfig `json:"lookup"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// DispatchConfig tunes the dedup window and state-store TTLs.
type DispatchConfig struct {
	// DedupWindow is the wholesale-clear interval for seen fingerprints.
	DedupWindow time.Duration `json:"dedupWindow"`

	// SessionTTL bounds employee session and terminal state lifetime.
	SessionTTL time.Duration `json:"sessionTTL"`

	// BasketTTL bounds per-basket derived state lifetime.
	BasketTTL time.Duration `json:"basketTTL"`

	// SweepInterval is how often TTL eviction runs, piggybacked on
	// dispatch; the stores are soft caches, not authoritative records.
	SweepInterval time.Duration `json:"sweepInterval"`
}

// LookupConfig configures the external customer system client.
type LookupConfig struct {
	APIEndpoint   string        `json:"apiEndpoint"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retryAttempts"`
	CacheTTL      time.Duration `json:"cacheTTL"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the single-process default configuration:
// SQLite + in-memory cache + channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./magpie.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Dispatch: DispatchConfig{
			DedupWindow:   5 * time.Minute,
			SessionTTL:    8 * time.Hour,
			BasketTTL:     2 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Lookup: LookupConfig{
			APIEndpoint:   "http://localhost:8000/api/mock-customer-lookup",
			Timeout:       5 * time.Second,
			RetryAttempts: 2,
			CacheTTL:      time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "magpie",
		},
	}
}
