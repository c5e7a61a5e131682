// Package upstream provides the fragment producers the aggregator composes:
// HTTP clients for the hello and world services, and in-process producers
// for single-binary deployments.
package upstream

import (
	"context"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
)

// Upstream names
const (
	NameHello = "hello"
	NameWorld = "world"
)

// Producer yields one fragment for a generation context. Errors are
// AppErrors of type upstream (retryable) or validation (not retryable).
type Producer[C any] interface {
	Produce(ctx context.Context, c C) (fragment.Fragment, error)
}

// HelloProducer produces the greeting fragment
type HelloProducer = Producer[fragment.HelloContext]

// WorldProducer produces the world fragment
type WorldProducer = Producer[fragment.WorldContext]

// LocalProducer serves fragments from an in-process generator
type LocalProducer[C any] struct {
	generator *fragment.Generator[C]
}

// NewLocalHelloProducer creates an in-process hello producer
func NewLocalHelloProducer(sink fragment.EventSink) *LocalProducer[fragment.HelloContext] {
	return &LocalProducer[fragment.HelloContext]{generator: fragment.NewHelloGenerator(sink)}
}

// NewLocalWorldProducer creates an in-process world producer
func NewLocalWorldProducer(sink fragment.EventSink) *LocalProducer[fragment.WorldContext] {
	return &LocalProducer[fragment.WorldContext]{generator: fragment.NewWorldGenerator(sink)}
}

// Produce generates the fragment unless ctx is already done
func (p *LocalProducer[C]) Produce(ctx context.Context, c C) (fragment.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return fragment.Fragment{}, err
	}
	return p.generator.Generate(ctx, c), nil
}

// ProducerFunc adapts a function to a Producer
type ProducerFunc[C any] func(ctx context.Context, c C) (fragment.Fragment, error)

// Produce calls f
func (f ProducerFunc[C]) Produce(ctx context.Context, c C) (fragment.Fragment, error) {
	return f(ctx, c)
}
