package resilience

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	appErrors "github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProducer simulates a fragment producer that can be switched off
type flakyProducer struct {
	name         string
	mutex        sync.Mutex
	requestCount int
	down         bool
}

func (p *flakyProducer) Produce(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.requestCount++
	if p.down {
		return "", appErrors.NewUpstreamError(p.name, fmt.Sprintf("simulated failure for request %d", p.requestCount))
	}
	return p.name, nil
}

func (p *flakyProducer) SetDown(down bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.down = down
}

func (p *flakyProducer) Requests() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.requestCount
}

func TestIntegration_DegradationFollowsInvoker(t *testing.T) {
	clock := newFakeClock()
	dm := NewDegradationManager()
	dm.RegisterService("hello", LevelPartial)
	dm.RegisterService("world", LevelPartial)

	newInv := func(name string) *Invoker[string] {
		return NewInvoker[string](InvokerConfig{
			Name:     name,
			Breaker:  CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Second, Clock: clock.Now},
			Retry:    RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
			Observer: dm.ObserveInvocation,
		})
	}

	hello := &flakyProducer{name: "hello"}
	world := &flakyProducer{name: "world"}
	helloInv := newInv("hello")
	worldInv := newInv("world")
	fallback := func(name string) func(error) string {
		return func(error) string { return name + " (fallback)" }
	}

	world.SetDown(true)
	for i := 0; i < 2; i++ {
		assert.Equal(t, "hello", helloInv.Invoke(context.Background(), hello.Produce, fallback("hello")).Value)
		assert.Equal(t, "world (fallback)", worldInv.Invoke(context.Background(), world.Produce, fallback("world")).Value)
	}

	require.Equal(t, StateOpen, worldInv.State())
	assert.Equal(t, LevelPartial, dm.GetCurrentDegradationLevel())
	worldHealth, ok := dm.GetServiceHealth("world")
	require.True(t, ok)
	assert.False(t, worldHealth.Healthy)

	// Open circuit stops traffic to the producer
	before := world.Requests()
	out := worldInv.Invoke(context.Background(), world.Produce, fallback("world"))
	assert.True(t, out.CircuitOpen)
	assert.Equal(t, before, world.Requests())

	// Recovery
	world.SetDown(false)
	clock.Advance(time.Second)
	out = worldInv.Invoke(context.Background(), world.Produce, fallback("world"))
	assert.False(t, out.Degraded)
	assert.Equal(t, StateClosed, worldInv.State())
	assert.Equal(t, LevelNormal, dm.GetCurrentDegradationLevel())
}

func TestIntegration_ConcurrentInvocations(t *testing.T) {
	producer := &flakyProducer{name: "hello"}
	inv := NewInvoker[string](InvokerConfig{
		Name:    "hello",
		Breaker: CircuitBreakerConfig{FailureThreshold: 1000, Cooldown: time.Second},
		Retry:   RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond},
	})

	const workers = 50
	var wg sync.WaitGroup
	results := make([]Outcome[string], workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = inv.Invoke(context.Background(), producer.Produce, func(error) string { return "fallback" })
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "hello", r.Value)
	}
	counts := inv.Counts()
	assert.Equal(t, uint32(workers), counts.Requests)
	assert.Equal(t, uint32(workers), counts.TotalSuccesses)
	assert.Equal(t, workers, producer.Requests())
}
