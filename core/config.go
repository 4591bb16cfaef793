package core

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-wide configuration for the gateway.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// The environment layer (loadFromEnv) reads only GATEWAY_PORT, GATEWAY_HOST,
// GATEWAY_DATABASE_URL, GATEWAY_REDIS_URL, GATEWAY_CACHE_ENABLED,
// GATEWAY_STORAGE_BUCKET, GATEWAY_LOG_LEVEL, GATEWAY_DEV_MODE and the
// <PROVIDER>_API_KEY/_BASE_URL/_REGION credentials. The `env` tags on the
// other fields are not read; those fields keep their DefaultConfig values
// unless an Option sets them.
//
// Unlike per-tenant run properties (model, provider, temperature, ...), Config
// is never tenant-scoped: it is built once at process start and passed
// explicitly to the components that need it, never read from a singleton.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithCORS([]string{"https://example.com"}, true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// HTTP server configuration
	Port int    `json:"port" env:"GATEWAY_PORT" default:"8080"`
	Host string `json:"host" env:"GATEWAY_HOST"`
	HTTP HTTPConfig `json:"http"`

	// DatabaseURL is the Postgres DSN backing run persistence (C8). Required
	// in production; local development may point it at a throwaway instance.
	DatabaseURL string `json:"-" env:"GATEWAY_DATABASE_URL"`

	// Providers holds per-provider credentials and endpoint overrides, keyed
	// by provider name ("openai", "anthropic", "bedrock", ...). A tenant's
	// ProviderCredentials (see Tenant) may shadow any of these at request time.
	Providers map[string]ProviderConfig `json:"providers"`

	// Run engine configuration
	Run RunConfig `json:"run"`

	// Cache configuration
	Cache CacheConfig `json:"cache"`

	// Storage configuration (object storage for file offloading)
	Storage StorageConfig `json:"storage"`

	// Resilience configuration (retry/circuit-breaker defaults)
	Resilience ResilienceConfig `json:"resilience"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Development configuration
	Development DevelopmentConfig `json:"development"`

	// Logger instance, excluded from JSON marshaling.
	logger Logger `json:"-"`
}

// HTTPConfig contains HTTP server tunables.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"read_timeout" env:"GATEWAY_HTTP_READ_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"GATEWAY_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"GATEWAY_HTTP_WRITE_TIMEOUT" default:"0"` // 0: streaming responses must not be capped
	IdleTimeout       time.Duration `json:"idle_timeout" env:"GATEWAY_HTTP_IDLE_TIMEOUT" default:"120s"`
	MaxHeaderBytes    int           `json:"max_header_bytes" env:"GATEWAY_HTTP_MAX_HEADER_BYTES" default:"1048576"`

	// CORS
	CORSEnabled        bool     `json:"cors_enabled" env:"GATEWAY_CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
}

// ProviderConfig holds connection details for a single backend LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`
	Region  string `json:"region,omitempty"` // Bedrock
}

// RunConfig tunes the runner/fallback orchestrator (C4) and the overall run
// lifecycle (§5 timeouts).
type RunConfig struct {
	// DefaultProviderTimeout bounds a single provider HTTP attempt.
	DefaultProviderTimeout time.Duration `json:"default_provider_timeout" env:"GATEWAY_PROVIDER_TIMEOUT" default:"60s"`
	// DefaultToolTimeout bounds a single internal tool execution.
	DefaultToolTimeout time.Duration `json:"default_tool_timeout" env:"GATEWAY_TOOL_TIMEOUT" default:"30s"`
	// RunCeiling bounds the overall run, across all fallback attempts and tool loops.
	RunCeiling time.Duration `json:"run_ceiling" env:"GATEWAY_RUN_CEILING" default:"180s"`
	// MaxToolLoopIterations bounds the tool-call loop (§8 property 6).
	MaxToolLoopIterations int `json:"max_tool_loop_iterations" env:"GATEWAY_MAX_TOOL_ITERATIONS" default:"10"`
	// MaxRetriesPerAttempt bounds retries within a single (provider, model) attempt.
	MaxRetriesPerAttempt int `json:"max_retries_per_attempt" env:"GATEWAY_MAX_RETRIES" default:"3"`
	// StreamRawAccumulatorLimit bounds the streaming aggregator's raw byte buffer (§4.5).
	StreamRawAccumulatorLimit int `json:"stream_raw_accumulator_limit" env:"GATEWAY_STREAM_BUFFER_LIMIT" default:"1048576"`
}

// CacheConfig tunes the run cache (C7).
type CacheConfig struct {
	Enabled bool          `json:"enabled" env:"GATEWAY_CACHE_ENABLED" default:"true"`
	TTL     time.Duration `json:"ttl" env:"GATEWAY_CACHE_TTL" default:"720h"`
	RedisURL string       `json:"redis_url" env:"GATEWAY_REDIS_URL"`
}

// StorageConfig tunes object storage used for file offloading (C8).
type StorageConfig struct {
	Bucket    string `json:"bucket" env:"GATEWAY_STORAGE_BUCKET"`
	URLPrefix string `json:"url_prefix" env:"GATEWAY_STORAGE_URL_PREFIX"`
}

// ResilienceConfig configures default retry/circuit-breaker parameters shared
// across provider adapters. Individual adapters may override.
type ResilienceConfig struct {
	Enabled            bool          `json:"enabled" env:"GATEWAY_RESILIENCE_ENABLED" default:"true"`
	CircuitThreshold   int           `json:"circuit_threshold" env:"GATEWAY_CIRCUIT_THRESHOLD" default:"5"`
	CircuitTimeout     time.Duration `json:"circuit_timeout" env:"GATEWAY_CIRCUIT_TIMEOUT" default:"30s"`
	CircuitHalfOpenMax int           `json:"circuit_half_open_max" env:"GATEWAY_CIRCUIT_HALF_OPEN_MAX" default:"3"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level  string `json:"level" env:"GATEWAY_LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"GATEWAY_LOG_FORMAT" default:"json"`
}

// DevelopmentConfig holds settings only meaningful outside production.
type DevelopmentConfig struct {
	Mode       bool `json:"mode" env:"GATEWAY_DEV_MODE" default:"false"`
	MockClock  bool `json:"mock_clock" env:"GATEWAY_MOCK_CLOCK" default:"false"`
}

// CircuitBreakerConfig configures a single CircuitBreaker implementation.
// ResilienceConfig holds the process-wide defaults; a CircuitBreakerConfig is
// the per-breaker instantiation of those defaults (one breaker per provider).
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	Threshold        int           `json:"threshold"`
	Timeout          time.Duration `json:"timeout"`
	HalfOpenRequests int           `json:"half_open_requests"`
}

// Option configures a Config.
type Option func(*Config) error

// NewConfig builds a Config from defaults, environment variables, then
// functional options, in that priority order (options win).
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.loadFromEnv()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("config option failed: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port: 8080,
		HTTP: HTTPConfig{
			ReadTimeout:        30 * time.Second,
			ReadHeaderTimeout:  10 * time.Second,
			IdleTimeout:        120 * time.Second,
			MaxHeaderBytes:     1 << 20,
			CORSEnabled:        true,
			CORSAllowedOrigins: []string{"*"},
		},
		Providers: make(map[string]ProviderConfig),
		Run: RunConfig{
			DefaultProviderTimeout:    60 * time.Second,
			DefaultToolTimeout:        30 * time.Second,
			RunCeiling:                180 * time.Second,
			MaxToolLoopIterations:     10,
			MaxRetriesPerAttempt:      3,
			StreamRawAccumulatorLimit: 1 << 20,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * 24 * time.Hour,
		},
		Resilience: ResilienceConfig{
			Enabled:            true,
			CircuitThreshold:   5,
			CircuitTimeout:     30 * time.Second,
			CircuitHalfOpenMax: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		logger: &NoOpLogger{},
	}
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("GATEWAY_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("GATEWAY_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("GATEWAY_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("GATEWAY_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("GATEWAY_STORAGE_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GATEWAY_DEV_MODE"); v != "" {
		c.Development.Mode = parseBool(v)
	}

	// Provider credentials follow the convention <PROVIDER>_API_KEY,
	// <PROVIDER>_BASE_URL (e.g. OPENAI_API_KEY, ANTHROPIC_API_KEY).
	for _, name := range []string{"openai", "anthropic", "bedrock", "mistral", "gemini", "xai", "cerebras"} {
		envPrefix := strings.ToUpper(name)
		pc := c.Providers[name]
		if v := os.Getenv(envPrefix + "_API_KEY"); v != "" {
			pc.APIKey = v
		}
		if v := os.Getenv(envPrefix + "_BASE_URL"); v != "" {
			pc.BaseURL = v
		}
		if v := os.Getenv(envPrefix + "_REGION"); v != "" {
			pc.Region = v
		}
		if pc != (ProviderConfig{}) {
			c.Providers[name] = pc
		}
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrPortOutOfRange, c.Port)
	}
	if c.Run.MaxToolLoopIterations < 1 {
		return fmt.Errorf("%w: max_tool_loop_iterations must be >= 1", ErrInvalidConfiguration)
	}
	if c.Run.RunCeiling <= 0 {
		return fmt.Errorf("%w: run_ceiling must be positive", ErrInvalidConfiguration)
	}
	return nil
}

// SetLogger attaches a logger to the configuration for use during loading.
func (c *Config) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// ErrPortOutOfRange indicates a configured HTTP port outside the valid range.
var ErrPortOutOfRange = errors.New("port out of range")

// WithPort sets the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) error {
		c.Port = port
		return nil
	}
}

// WithHost sets the HTTP bind address.
func WithHost(host string) Option {
	return func(c *Config) error {
		c.Host = host
		return nil
	}
}

// WithCORS configures allowed CORS origins.
func WithCORS(origins []string, enabled bool) Option {
	return func(c *Config) error {
		c.HTTP.CORSEnabled = enabled
		c.HTTP.CORSAllowedOrigins = origins
		return nil
	}
}

// WithProviderCredentials registers API credentials for a named provider.
func WithProviderCredentials(provider, apiKey, baseURL string) Option {
	return func(c *Config) error {
		if provider == "" {
			return fmt.Errorf("%w: provider name required", ErrInvalidConfiguration)
		}
		pc := c.Providers[provider]
		pc.APIKey = apiKey
		if baseURL != "" {
			pc.BaseURL = baseURL
		}
		c.Providers[provider] = pc
		return nil
	}
}

// WithDatabaseURL points run persistence (C8) at a Postgres instance.
func WithDatabaseURL(dsn string) Option {
	return func(c *Config) error {
		c.DatabaseURL = dsn
		return nil
	}
}

// WithRedisCache points the run cache (C7) at a Redis instance.
func WithRedisCache(redisURL string) Option {
	return func(c *Config) error {
		c.Cache.Enabled = true
		c.Cache.RedisURL = redisURL
		return nil
	}
}

// WithStorageBucket configures the object storage bucket used for file offloading (C8).
func WithStorageBucket(bucket, urlPrefix string) Option {
	return func(c *Config) error {
		c.Storage.Bucket = bucket
		c.Storage.URLPrefix = urlPrefix
		return nil
	}
}

// WithDevMode toggles development-only behaviors: every HTTP request is logged,
// GATEWAY_FEEDBACK_SECRET becomes optional for `serve`, and the mock provider
// is wired when no real provider is configured.
func WithDevMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Mode = enabled
		return nil
	}
}

// WithRunCeiling overrides the overall per-run timeout ceiling (§5).
func WithRunCeiling(d time.Duration) Option {
	return func(c *Config) error {
		c.Run.RunCeiling = d
		return nil
	}
}

// WithMaxToolLoopIterations overrides the tool-call loop depth limit (§8 property 6).
func WithMaxToolLoopIterations(n int) Option {
	return func(c *Config) error {
		c.Run.MaxToolLoopIterations = n
		return nil
	}
}
