package cache

import (
	"context"
	"sync"
	"time"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
)

// Backend stores serialized cache values. Get returns a not_found AppError
// for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisBackend stores values in Redis
type RedisBackend struct {
	redis *RedisClient
}

// NewRedisBackend creates a Redis-backed store
func NewRedisBackend(redis *RedisClient) *RedisBackend {
	return &RedisBackend{redis: redis}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	return b.redis.Get(ctx, key)
}

func (b *RedisBackend) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return b.redis.Set(ctx, key, value, ttl)
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	_, err := b.redis.Del(ctx, key)
	return err
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryBackend is an in-process store. A write is visible to every
// subsequent read in the same process.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-process store
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok {
		return "", errors.NewNotFoundError("key")
	}
	if !entry.expires.IsZero() && !b.now().Before(entry.expires) {
		b.mu.Lock()
		if current, still := b.entries[key]; still && current.expires.Equal(entry.expires) {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return "", errors.NewNotFoundError("key")
	}
	return entry.value, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = b.now().Add(ttl)
	}

	b.mu.Lock()
	b.entries[key] = entry
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
