package cache

import (
	"context"
	"strconv"
	"strings"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// Cache key prefixes
const (
	PrefixComposite = "composite"
	PrefixResult    = "id"
)

// CompositeKey identifies a composition by every normalized request field
// that can change its output
type CompositeKey struct {
	Language       string
	FormalityLevel int
	PlanetType     types.PlanetType
	Scope          types.GeographicalScope
	Delimiter      string
	Uppercase      bool
	Reversed       bool
}

// KeyFor derives the cache key of a normalized request
func KeyFor(req types.NormalizedRequest) CompositeKey {
	return CompositeKey{
		Language:       req.Language,
		FormalityLevel: req.FormalityLevel,
		PlanetType:     req.PlanetType,
		Scope:          req.Scope,
		Delimiter:      req.Delimiter,
		Uppercase:      req.Uppercase,
		Reversed:       req.Reversed,
	}
}

// String encodes the key. String fields are quoted, so no two distinct keys
// share an encoding whatever characters the delimiter or language contain.
func (k CompositeKey) String() string {
	parts := []string{
		strconv.Quote(k.Language),
		strconv.Itoa(k.FormalityLevel),
		strconv.Quote(string(k.PlanetType)),
		strconv.Quote(string(k.Scope)),
		strconv.Quote(k.Delimiter),
		strconv.FormatBool(k.Uppercase),
		strconv.FormatBool(k.Reversed),
	}
	return strings.Join(parts, "|")
}

// Stats reports cache effectiveness
type Stats interface {
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
}

// ResultCache stores composite results by request key and by result id.
// Backend failures degrade to misses and are logged, never returned.
type ResultCache struct {
	service *Service
	stats   Stats
	logger  *logging.Logger
}

// NewResultCache creates a result cache over service. stats may be nil.
func NewResultCache(service *Service, stats Stats) *ResultCache {
	return &ResultCache{
		service: service,
		stats:   stats,
		logger:  logging.GetLogger(),
	}
}

func (rc *ResultCache) compositeKey(key CompositeKey) CacheKey {
	return CacheKey{Prefix: rc.service.config.KeyPrefix + ":" + PrefixComposite, ID: key.String()}
}

func (rc *ResultCache) idKey(id string) CacheKey {
	return CacheKey{Prefix: rc.service.config.KeyPrefix + ":" + PrefixResult, ID: id}
}

// Get returns the result cached for key
func (rc *ResultCache) Get(ctx context.Context, key CompositeKey) (*types.CompositeResult, bool) {
	return rc.lookup(ctx, rc.compositeKey(key), "composite")
}

// Put stores result under key
func (rc *ResultCache) Put(ctx context.Context, key CompositeKey, result *types.CompositeResult) {
	rc.store(ctx, rc.compositeKey(key), result)
}

// GetByID returns the result with the given id
func (rc *ResultCache) GetByID(ctx context.Context, id string) (*types.CompositeResult, bool) {
	return rc.lookup(ctx, rc.idKey(id), "id")
}

// PutByID stores result under its id
func (rc *ResultCache) PutByID(ctx context.Context, result *types.CompositeResult) {
	rc.store(ctx, rc.idKey(result.ID), result)
}

func (rc *ResultCache) lookup(ctx context.Context, key CacheKey, kind string) (*types.CompositeResult, bool) {
	var result types.CompositeResult
	if err := rc.service.Get(ctx, key, &result); err != nil {
		if !errors.IsNotFound(err) {
			rc.logger.LogError(ctx, err, "Result cache read failed", nil)
		}
		if rc.stats != nil {
			rc.stats.RecordCacheMiss(kind)
		}
		return nil, false
	}

	if rc.stats != nil {
		rc.stats.RecordCacheHit(kind)
	}
	return &result, true
}

func (rc *ResultCache) store(ctx context.Context, key CacheKey, result *types.CompositeResult) {
	if err := rc.service.Set(ctx, key, result, rc.service.config.ResultTTL); err != nil {
		rc.logger.LogError(ctx, err, "Result cache write failed", nil)
	}
}
