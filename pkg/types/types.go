package types

import (
	"strings"
	"time"
)

// PlanetType identifies the world a greeting is addressed to
type PlanetType string

const (
	PlanetEarth   PlanetType = "EARTH"
	PlanetMars    PlanetType = "MARS"
	PlanetVenus   PlanetType = "VENUS"
	PlanetJupiter PlanetType = "JUPITER"
	PlanetSaturn  PlanetType = "SATURN"
	PlanetNeptune PlanetType = "NEPTUNE"
	PlanetUranus  PlanetType = "URANUS"
	PlanetMercury PlanetType = "MERCURY"
	PlanetPluto   PlanetType = "PLUTO"
)

// Planets lists every PlanetType in declaration order
var Planets = []PlanetType{
	PlanetEarth, PlanetMars, PlanetVenus, PlanetJupiter, PlanetSaturn,
	PlanetNeptune, PlanetUranus, PlanetMercury, PlanetPluto,
}

// Valid reports whether p is a known planet
func (p PlanetType) Valid() bool {
	for _, known := range Planets {
		if p == known {
			return true
		}
	}
	return false
}

// GeographicalScope narrows the audience of the world fragment
type GeographicalScope string

const (
	ScopeGlobal      GeographicalScope = "GLOBAL"
	ScopeContinental GeographicalScope = "CONTINENTAL"
	ScopeRegional    GeographicalScope = "REGIONAL"
	ScopeNational    GeographicalScope = "NATIONAL"
	ScopeLocal       GeographicalScope = "LOCAL"
)

// Scopes lists every GeographicalScope in declaration order
var Scopes = []GeographicalScope{ScopeGlobal, ScopeContinental, ScopeRegional, ScopeNational, ScopeLocal}

// Valid reports whether s is a known scope
func (s GeographicalScope) Valid() bool {
	for _, known := range Scopes {
		if s == known {
			return true
		}
	}
	return false
}

// Source tags how a CompositeResult was produced
type Source string

const (
	SourceLive     Source = "LIVE"
	SourceCached   Source = "CACHED"
	SourceFallback Source = "FALLBACK"
)

// Fallback texts and strategy name used when a producer cannot answer
const (
	HelloFallbackText    = "Hello (fallback)"
	WorldFallbackText    = "World (fallback)"
	FallbackMessage      = "Hello World (fallback)"
	FallbackStrategyName = "FALLBACK"
	DefaultDelimiter     = " "
	DefaultLanguage      = "en"
	DefaultFormality     = 3
)

// Request is a caller's customization of one composition
type Request struct {
	Language       string            `json:"language" binding:"required,alpha,min=2,max=8"`
	FormalityLevel int               `json:"formalityLevel,omitempty" binding:"omitempty,min=1,max=5"`
	PlanetType     PlanetType        `json:"planetType,omitempty" binding:"omitempty,oneof=EARTH MARS VENUS JUPITER SATURN NEPTUNE URANUS MERCURY PLUTO"`
	Scope          GeographicalScope `json:"scope,omitempty" binding:"omitempty,oneof=GLOBAL CONTINENTAL REGIONAL NATIONAL LOCAL"`
	// Delimiter is a pointer so an explicit empty delimiter differs from an absent one.
	Delimiter *string `json:"delimiter,omitempty"`
	Uppercase bool    `json:"uppercase,omitempty"`
	Reversed  bool    `json:"reversed,omitempty"`
	// Encrypted is accepted for client compatibility and has no effect.
	Encrypted bool `json:"encrypted,omitempty"`
}

// DefaultRequest returns the request served by the parameterless endpoint
func DefaultRequest() *Request {
	delimiter := DefaultDelimiter
	return &Request{
		Language:       DefaultLanguage,
		FormalityLevel: DefaultFormality,
		PlanetType:     PlanetEarth,
		Scope:          ScopeGlobal,
		Delimiter:      &delimiter,
	}
}

// NormalizedRequest is a Request with every default applied
type NormalizedRequest struct {
	Language       string            `json:"language"`
	FormalityLevel int               `json:"formalityLevel"`
	PlanetType     PlanetType        `json:"planetType"`
	Scope          GeographicalScope `json:"scope"`
	Delimiter      string            `json:"delimiter"`
	Uppercase      bool              `json:"uppercase"`
	Reversed       bool              `json:"reversed"`
}

// Normalize applies defaults. It does not validate. A missing scope stays
// empty so no scope-gated strategy applies.
func (r *Request) Normalize() NormalizedRequest {
	n := NormalizedRequest{
		Language:       strings.ToLower(strings.TrimSpace(r.Language)),
		FormalityLevel: r.FormalityLevel,
		PlanetType:     PlanetType(strings.ToUpper(string(r.PlanetType))),
		Scope:          GeographicalScope(strings.ToUpper(string(r.Scope))),
		Delimiter:      DefaultDelimiter,
		Uppercase:      r.Uppercase,
		Reversed:       r.Reversed,
	}
	if n.FormalityLevel == 0 {
		n.FormalityLevel = DefaultFormality
	}
	if n.PlanetType == "" {
		n.PlanetType = PlanetEarth
	}
	if r.Delimiter != nil {
		n.Delimiter = *r.Delimiter
	}
	return n
}

// CompositeResult is one finished composition. Values are never mutated
// after construction; callers receive copies.
type CompositeResult struct {
	ID                   string            `json:"id"`
	Message              string            `json:"message"`
	HelloText            string            `json:"helloText"`
	WorldText            string            `json:"worldText"`
	Language             string            `json:"language"`
	FormalityLevel       int               `json:"formalityLevel"`
	PlanetType           PlanetType        `json:"planetType"`
	Scope                GeographicalScope `json:"scope"`
	Delimiter            string            `json:"delimiter"`
	Uppercase            bool              `json:"uppercase"`
	Reversed             bool              `json:"reversed"`
	GeneratedAt          time.Time         `json:"generatedAt"`
	GenerationTimeMillis int64             `json:"generationTimeMillis"`
	RequestID            string            `json:"requestId,omitempty"`
	HelloStrategy        string            `json:"helloStrategy"`
	WorldStrategy        string            `json:"worldStrategy"`
	Source               Source            `json:"source"`
	IsFromCache          bool              `json:"isFromCache"`
}

// WithSource returns a copy of r tagged with source
func (r CompositeResult) WithSource(source Source) *CompositeResult {
	r.Source = source
	r.IsFromCache = source == SourceCached
	return &r
}

// FallbackResult builds the fixed degraded result returned when composition
// as a whole cannot proceed
func FallbackResult(id string, req NormalizedRequest, generatedAt time.Time) *CompositeResult {
	return &CompositeResult{
		ID:             id,
		Message:        FallbackMessage,
		HelloText:      HelloFallbackText,
		WorldText:      WorldFallbackText,
		Language:       req.Language,
		FormalityLevel: req.FormalityLevel,
		PlanetType:     req.PlanetType,
		Scope:          req.Scope,
		Delimiter:      DefaultDelimiter,
		Uppercase:      req.Uppercase,
		Reversed:       req.Reversed,
		GeneratedAt:    generatedAt,
		HelloStrategy:  FallbackStrategyName,
		WorldStrategy:  FallbackStrategyName,
		Source:         SourceFallback,
	}
}

// TaskStatus is the externally visible state of an async task
type TaskStatus string

const (
	TaskPending  TaskStatus = "PENDING"
	TaskDone     TaskStatus = "DONE"
	TaskNotFound TaskStatus = "NOT_FOUND"
)

// AsyncAccepted is returned when an async composition is submitted
type AsyncAccepted struct {
	RequestID      string `json:"requestId"`
	Status         string `json:"status"`
	StatusCheckURL string `json:"statusCheckUrl"`
}

// FragmentEvent describes one fragment produced by a hello or world service
type FragmentEvent struct {
	Family      string    `json:"family"`
	Text        string    `json:"text"`
	Strategy    string    `json:"strategy"`
	Language    string    `json:"language"`
	Formality   int       `json:"formalityLevel,omitempty"`
	PlanetType  string    `json:"planetType,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// FragmentResponse is the payload served by the hello and world services
type FragmentResponse struct {
	Text           string `json:"text"`
	Strategy       string `json:"strategy"`
	Language       string `json:"language"`
	FormalityLevel int    `json:"formalityLevel,omitempty"`
	PlanetType     string `json:"planetType,omitempty"`
	Scope          string `json:"scope,omitempty"`
}
