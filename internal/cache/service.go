package cache

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Service provides typed get/set on top of a Backend
type Service struct {
	backend Backend
	config  *Config
}

// Config holds cache configuration
type Config struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	ResultTTL  time.Duration `json:"result_ttl"`
	KeyPrefix  string        `json:"key_prefix"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: 1 * time.Hour,
		ResultTTL:  1 * time.Hour,
		KeyPrefix:  "helloWorld",
	}
}

// NewService creates a new cache service
func NewService(backend Backend, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	return &Service{
		backend: backend,
		config:  config,
	}
}

// CacheKey generates cache keys with consistent prefixes
type CacheKey struct {
	Prefix string
	ID     string
}

// String returns the formatted cache key
func (ck CacheKey) String() string {
	return fmt.Sprintf("%s:%s", ck.Prefix, ck.ID)
}

// Set stores a value in cache with the specified TTL
func (s *Service) Set(ctx context.Context, key CacheKey, value interface{}, ttl time.Duration) error {
	data, err := s.serialize(value)
	if err != nil {
		return errors.NewInternalError("failed to serialize cache value").WithCause(err)
	}

	if ttl == 0 {
		ttl = s.config.DefaultTTL
	}

	if err := s.backend.Set(ctx, key.String(), data, ttl); err != nil {
		return errors.NewInternalError("failed to set cache value").WithCause(err)
	}

	return nil
}

// Get retrieves a value from cache
func (s *Service) Get(ctx context.Context, key CacheKey, dest interface{}) error {
	data, err := s.backend.Get(ctx, key.String())
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.NewNotFoundError("cache key")
		}
		return errors.NewInternalError("failed to get cache value").WithCause(err)
	}

	if err := s.deserialize(data, dest); err != nil {
		return errors.NewInternalError("failed to deserialize cache value").WithCause(err)
	}

	return nil
}

// Delete removes a value from cache
func (s *Service) Delete(ctx context.Context, key CacheKey) error {
	if err := s.backend.Delete(ctx, key.String()); err != nil {
		return errors.NewInternalError("failed to delete cache key").WithCause(err)
	}
	return nil
}

// serialize converts a value to JSON
func (s *Service) serialize(value interface{}) (string, error) {
	if str, ok := value.(string); ok {
		return str, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// deserialize converts JSON to a value
func (s *Service) deserialize(data string, dest interface{}) error {
	if str, ok := dest.(*string); ok {
		*str = data
		return nil
	}

	return json.Unmarshal([]byte(data), dest)
}
