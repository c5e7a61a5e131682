package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http", cfg.Upstreams.Mode)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, uint32(5), cfg.Resilience.FailureThreshold)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "log", cfg.Notifications.Backend)
	assert.Equal(t, "hello-world-events", cfg.Notifications.Subject)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPSTREAM_MODE", "local")
	t.Setenv("BREAKER_COOLDOWN", "5s")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("RETRY_JITTER", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Upstreams.Mode)
	assert.Equal(t, 5*time.Second, cfg.Resilience.Cooldown)
	assert.False(t, cfg.Resilience.Jitter)
	assert.True(t, cfg.NeedsRedis())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad mode", func(c *Config) { c.Upstreams.Mode = "grpc" }},
		{"missing url", func(c *Config) { c.Upstreams.Hello.BaseURL = "" }},
		{"zero attempts", func(c *Config) { c.Resilience.MaxAttempts = 0 }},
		{"shrinking backoff", func(c *Config) { c.Resilience.BackoffMultiplier = 0.5 }},
		{"zero threshold", func(c *Config) { c.Resilience.FailureThreshold = 0 }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"bad notify backend", func(c *Config) { c.Notifications.Backend = "kafka" }},
		{"zero in flight", func(c *Config) { c.Async.MaxInFlight = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
