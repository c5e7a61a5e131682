package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequest_Normalize(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		n := (&Request{Language: " EN "}).Normalize()

		assert.Equal(t, "en", n.Language)
		assert.Equal(t, DefaultFormality, n.FormalityLevel)
		assert.Equal(t, PlanetEarth, n.PlanetType)
		assert.Empty(t, n.Scope)
		assert.Equal(t, " ", n.Delimiter)
		assert.False(t, n.Uppercase)
		assert.False(t, n.Reversed)
	})

	t.Run("explicit empty delimiter kept", func(t *testing.T) {
		empty := ""
		n := (&Request{Language: "fr", Delimiter: &empty}).Normalize()
		assert.Equal(t, "", n.Delimiter)
	})

	t.Run("enum case folded", func(t *testing.T) {
		n := (&Request{Language: "de", PlanetType: "mars", Scope: "local"}).Normalize()
		assert.Equal(t, PlanetMars, n.PlanetType)
		assert.Equal(t, ScopeLocal, n.Scope)
	})
}

func TestDefaultRequest(t *testing.T) {
	n := DefaultRequest().Normalize()
	assert.Equal(t, NormalizedRequest{
		Language:       "en",
		FormalityLevel: 3,
		PlanetType:     PlanetEarth,
		Scope:          ScopeGlobal,
		Delimiter:      " ",
	}, n)
}

func TestEnumValid(t *testing.T) {
	assert.True(t, PlanetPluto.Valid())
	assert.False(t, PlanetType("CERES").Valid())
	assert.True(t, ScopeNational.Valid())
	assert.False(t, GeographicalScope("GALACTIC").Valid())
}

func TestCompositeResult_WithSource(t *testing.T) {
	original := CompositeResult{ID: "abc", Message: "Hello World", Source: SourceLive}

	cached := original.WithSource(SourceCached)

	assert.Equal(t, SourceCached, cached.Source)
	assert.True(t, cached.IsFromCache)
	assert.Equal(t, SourceLive, original.Source)
	assert.False(t, original.IsFromCache)
}

func TestFallbackResult(t *testing.T) {
	now := time.Now()
	r := FallbackResult("id-1", (&Request{Language: "es", Uppercase: true}).Normalize(), now)

	assert.Equal(t, "Hello World (fallback)", r.Message)
	assert.Equal(t, "Hello (fallback)", r.HelloText)
	assert.Equal(t, "World (fallback)", r.WorldText)
	assert.Equal(t, "FALLBACK", r.HelloStrategy)
	assert.Equal(t, "FALLBACK", r.WorldStrategy)
	assert.Equal(t, SourceFallback, r.Source)
	assert.Equal(t, int64(0), r.GenerationTimeMillis)
	assert.Equal(t, "es", r.Language)
}
