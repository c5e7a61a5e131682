package fragment

import (
	"context"
	"time"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// sinkTimeout bounds the delivery of one fragment event
const sinkTimeout = 5 * time.Second

// Generator selects a strategy, produces a fragment and reports it to the sink
type Generator[C any] struct {
	selector *Selector[C]
	sink     EventSink
	describe func(C) types.FragmentEvent
	logger   *logging.Logger
}

// NewHelloGenerator returns the generator backing the hello service
func NewHelloGenerator(sink EventSink) *Generator[HelloContext] {
	return &Generator[HelloContext]{
		selector: NewHelloSelector(),
		sink:     sink,
		describe: func(c HelloContext) types.FragmentEvent {
			return types.FragmentEvent{
				Family:    FamilyHello,
				Language:  c.Language,
				Formality: c.FormalityLevel,
			}
		},
		logger: logging.GetLogger(),
	}
}

// NewWorldGenerator returns the generator backing the world service
func NewWorldGenerator(sink EventSink) *Generator[WorldContext] {
	return &Generator[WorldContext]{
		selector: NewWorldSelector(),
		sink:     sink,
		describe: func(c WorldContext) types.FragmentEvent {
			return types.FragmentEvent{
				Family:     FamilyWorld,
				Language:   c.Language,
				PlanetType: string(c.PlanetType),
				Scope:      string(c.Scope),
			}
		},
		logger: logging.GetLogger(),
	}
}

// Generate produces the fragment for c
func (g *Generator[C]) Generate(ctx context.Context, c C) Fragment {
	strategy := g.selector.Select(c)
	frag := Fragment{
		Text:     strategy.Produce(c),
		Strategy: strategy.Name(),
	}

	g.logger.Debug("Fragment generated",
		"family", g.selector.Family(),
		"strategy", frag.Strategy,
	)

	if g.sink != nil {
		event := g.describe(c)
		event.Text = frag.Text
		event.Strategy = frag.Strategy
		event.GeneratedAt = time.Now().UTC()
		g.emit(ctx, event)
	}

	return frag
}

// emit hands the event to the sink off the request path
func (g *Generator[C]) emit(ctx context.Context, event types.FragmentEvent) {
	sinkCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.logger.LogPanic(sinkCtx, r, "Fragment event sink panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(sinkCtx, sinkTimeout)
		defer cancel()

		g.sink.FragmentGenerated(ctx, event)
	}()
}
