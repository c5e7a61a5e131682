// Package resilience provides the circuit breaker, retry and fallback
// machinery used to call the hello and world fragment producers.
//
// # Circuit Breaker Pattern
//
// The circuit breaker opens after a run of consecutive failures, rejects
// calls while open, and admits a single trial call once the cooldown elapses.
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//		Name:             "hello",
//		FailureThreshold: 5,
//		Cooldown:         30 * time.Second,
//	})
//
//	result, err := cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
//		return client.Generate(ctx, req)
//	})
//
// # Retry with Exponential Backoff
//
// The retrier retries failed operations with capped exponential backoff and
// optional jitter.
//
//	retrier := resilience.NewRetrier(resilience.DefaultRetryConfig())
//	err := retrier.Execute(ctx, func(ctx context.Context) error {
//		return riskyOperation(ctx)
//	})
//
// # Invoker
//
// Invoker combines both: the breaker guards the whole retry run and a
// fallback value replaces the result whenever the call cannot complete.
//
//	inv := resilience.NewInvoker[string](resilience.InvokerConfig{
//		Name:    "hello",
//		Breaker: resilience.DefaultCircuitBreakerConfig("hello"),
//		Retry:   resilience.DefaultRetryConfig(),
//	})
//	out := inv.Invoke(ctx, produce, func(error) string { return "Hello (fallback)" })
//
// # Graceful Degradation
//
// DegradationManager aggregates invoker reports into per-upstream health and
// an overall degradation level for health endpoints.
//
//	dm := resilience.NewDegradationManager()
//	dm.RegisterService("hello", resilience.LevelPartial)
//	level := dm.GetCurrentDegradationLevel()
package resilience
