package fragment

import (
	"context"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// Family names
const (
	FamilyHello = "hello"
	FamilyWorld = "world"
)

// Strategy names
const (
	StrategyStandard   = "STANDARD"
	StrategyReversed   = "REVERSED"
	StrategyEncoded    = "ENCODED"
	StrategyEmphasized = "EMPHASIZED"
)

// Strategy produces one fragment for a generation context of type C
type Strategy[C any] interface {
	// Name returns the stable strategy identifier
	Name() string

	// IsApplicable reports whether the strategy can serve c
	IsApplicable(c C) bool

	// Produce returns the fragment text for c
	Produce(c C) string
}

// HelloContext is the input of the hello family
type HelloContext struct {
	Language       string
	FormalityLevel int
}

// WorldContext is the input of the world family
type WorldContext struct {
	Language   string
	PlanetType types.PlanetType
	Scope      types.GeographicalScope
}

// Fragment is a produced text and the strategy that produced it
type Fragment struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy"`
}

// EventSink receives an event for every generated fragment
type EventSink interface {
	FragmentGenerated(ctx context.Context, event types.FragmentEvent)
}
