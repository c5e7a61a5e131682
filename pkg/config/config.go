package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Fragments     FragmentsConfig     `json:"fragments"`
	Redis         RedisConfig         `json:"redis"`
	Upstreams     UpstreamsConfig     `json:"upstreams"`
	Resilience    ResilienceConfig    `json:"resilience"`
	Cache         CacheConfig         `json:"cache"`
	Async         AsyncConfig         `json:"async"`
	Notifications NotificationsConfig `json:"notifications"`
	RateLimit     RateLimitConfig     `json:"rate_limit"`
	Logging       LoggingConfig       `json:"logging"`
	Metrics       MetricsConfig       `json:"metrics"`
	Tracing       TracingConfig       `json:"tracing"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// FragmentsConfig holds the listen ports of the standalone hello and world services
type FragmentsConfig struct {
	HelloPort int `json:"hello_port"`
	WorldPort int `json:"world_port"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// UpstreamsConfig selects how the aggregator reaches the fragment producers
type UpstreamsConfig struct {
	// Mode is "http" (remote hello/world services) or "local" (in-process generators).
	Mode  string         `json:"mode"`
	Hello UpstreamConfig `json:"hello"`
	World UpstreamConfig `json:"world"`
}

// UpstreamConfig describes one remote fragment producer
type UpstreamConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// ResilienceConfig contains retry and circuit breaker settings applied to each upstream
type ResilienceConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Jitter            bool          `json:"jitter"`
	FailureThreshold  uint32        `json:"failure_threshold"`
	Cooldown          time.Duration `json:"cooldown"`
}

// CacheConfig contains result cache configuration
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend   string        `json:"backend"`
	TTL       time.Duration `json:"ttl"`
	KeyPrefix string        `json:"key_prefix"`
}

// AsyncConfig contains async task registry configuration
type AsyncConfig struct {
	MaxInFlight   int64         `json:"max_in_flight"`
	Retention     time.Duration `json:"retention"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// NotificationsConfig selects the sink for composition events
type NotificationsConfig struct {
	// Backend is "log", "nats" or "redis".
	Backend string `json:"backend"`
	NATSURL string `json:"nats_url"`
	Subject string `json:"subject"`
	// WebhookURL, when set, additionally posts every event to an HTTP endpoint.
	WebhookURL string `json:"webhook_url"`
}

// RateLimitConfig contains per-client request rate limiting
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig contains Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	ServiceName string  `json:"service_name"`
	SampleRate  float64 `json:"sample_rate"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Fragments: FragmentsConfig{
			HelloPort: getEnvInt("HELLO_SERVICE_PORT", 8081),
			WorldPort: getEnvInt("WORLD_SERVICE_PORT", 8082),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Upstreams: UpstreamsConfig{
			Mode: getEnvString("UPSTREAM_MODE", "http"),
			Hello: UpstreamConfig{
				BaseURL: getEnvString("HELLO_SERVICE_URL", "http://localhost:8081"),
				Timeout: getEnvDuration("HELLO_SERVICE_TIMEOUT", 2*time.Second),
			},
			World: UpstreamConfig{
				BaseURL: getEnvString("WORLD_SERVICE_URL", "http://localhost:8082"),
				Timeout: getEnvDuration("WORLD_SERVICE_TIMEOUT", 2*time.Second),
			},
		},
		Resilience: ResilienceConfig{
			MaxAttempts:       getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay:      getEnvDuration("RETRY_INITIAL_DELAY", 100*time.Millisecond),
			MaxDelay:          getEnvDuration("RETRY_MAX_DELAY", 2*time.Second),
			BackoffMultiplier: getEnvFloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
			Jitter:            getEnvBool("RETRY_JITTER", true),
			FailureThreshold:  uint32(getEnvInt("BREAKER_FAILURE_THRESHOLD", 5)),
			Cooldown:          getEnvDuration("BREAKER_COOLDOWN", 30*time.Second),
		},
		Cache: CacheConfig{
			Backend:   getEnvString("CACHE_BACKEND", "memory"),
			TTL:       getEnvDuration("CACHE_TTL", time.Hour),
			KeyPrefix: getEnvString("CACHE_KEY_PREFIX", "helloWorld"),
		},
		Async: AsyncConfig{
			MaxInFlight:   getEnvInt64("ASYNC_MAX_IN_FLIGHT", 256),
			Retention:     getEnvDuration("ASYNC_RETENTION", 10*time.Minute),
			SweepInterval: getEnvDuration("ASYNC_SWEEP_INTERVAL", time.Minute),
		},
		Notifications: NotificationsConfig{
			Backend:    getEnvString("NOTIFY_BACKEND", "log"),
			NATSURL:    getEnvString("NATS_URL", "nats://localhost:4222"),
			Subject:    getEnvString("NOTIFY_SUBJECT", "hello-world-events"),
			WebhookURL: getEnvString("NOTIFY_WEBHOOK_URL", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Namespace: getEnvString("METRICS_NAMESPACE", "hello_world"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnvString("TRACING_SERVICE_NAME", "hello-world-aggregator"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Upstreams.Mode {
	case "http":
		if c.Upstreams.Hello.BaseURL == "" || c.Upstreams.World.BaseURL == "" {
			return fmt.Errorf("hello and world service URLs are required in http mode")
		}
	case "local":
	default:
		return fmt.Errorf("unsupported upstream mode: %s", c.Upstreams.Mode)
	}

	if c.Resilience.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}

	if c.Resilience.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff multiplier must be at least 1")
	}

	if c.Resilience.FailureThreshold == 0 {
		return fmt.Errorf("breaker failure threshold must be positive")
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}

	switch c.Notifications.Backend {
	case "log", "nats", "redis":
	default:
		return fmt.Errorf("unsupported notification backend: %s", c.Notifications.Backend)
	}

	if c.Async.MaxInFlight <= 0 {
		return fmt.Errorf("async max in flight must be positive")
	}

	return nil
}

// NeedsRedis reports whether any configured backend talks to Redis
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend == "redis" || c.Notifications.Backend == "redis"
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
