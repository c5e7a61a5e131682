package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

type countingStats struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingStats() *countingStats {
	return &countingStats{hits: map[string]int{}, misses: map[string]int{}}
}

func (s *countingStats) RecordCacheHit(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[kind]++
}

func (s *countingStats) RecordCacheMiss(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses[kind]++
}

// failingBackend fails every operation
type failingBackend struct{}

func (failingBackend) Get(ctx context.Context, key string) (string, error) {
	return "", errors.NewInternalError("backend down")
}

func (failingBackend) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return errors.NewInternalError("backend down")
}

func (failingBackend) Delete(ctx context.Context, key string) error {
	return errors.NewInternalError("backend down")
}

func sampleResult() *types.CompositeResult {
	return &types.CompositeResult{
		ID:            "result-1",
		Message:       "Hello World",
		HelloText:     "Hello",
		WorldText:     "World",
		Language:      "en",
		HelloStrategy: "STANDARD",
		WorldStrategy: "STANDARD",
		Source:        types.SourceLive,
		GeneratedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCompositeKey_DistinguishesEveryField(t *testing.T) {
	base := types.DefaultRequest().Normalize()

	variants := []func(*types.NormalizedRequest){
		func(r *types.NormalizedRequest) { r.Language = "fr" },
		func(r *types.NormalizedRequest) { r.FormalityLevel = 5 },
		func(r *types.NormalizedRequest) { r.PlanetType = types.PlanetMars },
		func(r *types.NormalizedRequest) { r.Scope = types.ScopeLocal },
		func(r *types.NormalizedRequest) { r.Delimiter = "-" },
		func(r *types.NormalizedRequest) { r.Uppercase = true },
		func(r *types.NormalizedRequest) { r.Reversed = true },
	}

	seen := map[string]bool{KeyFor(base).String(): true}
	for _, mutate := range variants {
		req := base
		mutate(&req)
		key := KeyFor(req).String()
		assert.False(t, seen[key], "collision for %s", key)
		seen[key] = true
	}
}

func TestCompositeKey_DelimiterCannotForgeFields(t *testing.T) {
	a := CompositeKey{Language: "en", Delimiter: `|"x"`, PlanetType: "EARTH"}
	b := CompositeKey{Language: `en"|"x`, Delimiter: "", PlanetType: "EARTH"}
	assert.NotEqual(t, a.String(), b.String())

	c := CompositeKey{Delimiter: " "}
	d := CompositeKey{Delimiter: ""}
	assert.NotEqual(t, c.String(), d.String())
}

func TestCompositeKey_Deterministic(t *testing.T) {
	req := (&types.Request{Language: "de", FormalityLevel: 2, Uppercase: true}).Normalize()
	assert.Equal(t, KeyFor(req).String(), KeyFor(req).String())
	assert.Equal(t, KeyFor(req), KeyFor(req))
}

func TestResultCache_ReadYourWrite(t *testing.T) {
	stats := newCountingStats()
	rc := NewResultCache(NewService(NewMemoryBackend(), DefaultConfig()), stats)
	ctx := context.Background()
	key := KeyFor(types.DefaultRequest().Normalize())

	_, ok := rc.Get(ctx, key)
	assert.False(t, ok)

	rc.Put(ctx, key, sampleResult())

	got, ok := rc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	assert.Equal(t, 1, stats.hits["composite"])
	assert.Equal(t, 1, stats.misses["composite"])
}

func TestResultCache_ByID(t *testing.T) {
	rc := NewResultCache(NewService(NewMemoryBackend(), DefaultConfig()), nil)
	ctx := context.Background()

	rc.PutByID(ctx, sampleResult())

	got, ok := rc.GetByID(ctx, "result-1")
	require.True(t, ok)
	assert.Equal(t, "Hello World", got.Message)

	_, ok = rc.GetByID(ctx, "unknown")
	assert.False(t, ok)
}

func TestResultCache_ReturnsIndependentCopies(t *testing.T) {
	rc := NewResultCache(NewService(NewMemoryBackend(), DefaultConfig()), nil)
	ctx := context.Background()
	key := KeyFor(types.DefaultRequest().Normalize())
	rc.Put(ctx, key, sampleResult())

	first, _ := rc.Get(ctx, key)
	first.Message = "mutated"

	second, _ := rc.Get(ctx, key)
	assert.Equal(t, "Hello World", second.Message)
}

func TestResultCache_BackendFailureIsMiss(t *testing.T) {
	stats := newCountingStats()
	rc := NewResultCache(NewService(failingBackend{}, DefaultConfig()), stats)
	ctx := context.Background()
	key := KeyFor(types.DefaultRequest().Normalize())

	assert.NotPanics(t, func() { rc.Put(ctx, key, sampleResult()) })
	_, ok := rc.Get(ctx, key)
	assert.False(t, ok)
	assert.Equal(t, 1, stats.misses["composite"])
}
