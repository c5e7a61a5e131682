package fragment

import (
	"fmt"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
)

// Selector picks one strategy of a family for a context. Selection is a pure
// function of the context, the strategy order and the priority table.
type Selector[C any] struct {
	family     string
	strategies []Strategy[C]
	priority   []string
	fallback   Strategy[C]
	logger     *logging.Logger
}

// NewSelector creates a selector. strategies must be in enumeration order and
// defaultName must name one of them.
func NewSelector[C any](family string, strategies []Strategy[C], priority []string, defaultName string) (*Selector[C], error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("family %s has no strategies", family)
	}

	seen := make(map[string]bool, len(strategies))
	var fallback Strategy[C]
	for _, s := range strategies {
		if seen[s.Name()] {
			return nil, fmt.Errorf("family %s has duplicate strategy %s", family, s.Name())
		}
		seen[s.Name()] = true
		if s.Name() == defaultName {
			fallback = s
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("family %s has no default strategy %s", family, defaultName)
	}

	return &Selector[C]{
		family:     family,
		strategies: strategies,
		priority:   priority,
		fallback:   fallback,
		logger:     logging.GetLogger(),
	}, nil
}

// MustSelector is like NewSelector but panics on an invalid family definition
func MustSelector[C any](family string, strategies []Strategy[C], priority []string, defaultName string) *Selector[C] {
	s, err := NewSelector(family, strategies, priority, defaultName)
	if err != nil {
		panic(err)
	}
	return s
}

// Select returns the strategy to use for c. It never fails: with no
// applicable strategy it returns the family default.
func (s *Selector[C]) Select(c C) Strategy[C] {
	var applicable []Strategy[C]
	for _, strategy := range s.strategies {
		if strategy.IsApplicable(c) {
			applicable = append(applicable, strategy)
		}
	}

	switch len(applicable) {
	case 0:
		s.logger.Warn("No applicable strategy, using default",
			"family", s.family,
			"strategy", s.fallback.Name(),
		)
		return s.fallback
	case 1:
		return applicable[0]
	}

	for _, name := range s.priority {
		for _, strategy := range applicable {
			if strategy.Name() == name {
				return strategy
			}
		}
	}

	return applicable[0]
}

// Family returns the family name
func (s *Selector[C]) Family() string {
	return s.family
}
