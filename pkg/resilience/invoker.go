package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
)

// Outcome is the result of one Invoke call.
type Outcome[T any] struct {
	Value T
	// Degraded is true when Value came from the fallback.
	Degraded bool
	// CircuitOpen is true when the breaker rejected the call without attempting it.
	CircuitOpen bool
	// Abandoned is true when the caller's context ended the call.
	Abandoned bool
	// Err is the failure that caused the fallback, nil when Degraded is false.
	Err      error
	Attempts int
	Duration time.Duration
}

// InvocationReport is handed to the observer after every Invoke.
type InvocationReport struct {
	Name        string
	Success     bool
	CircuitOpen bool
	Abandoned   bool
	Attempts    int
	Duration    time.Duration
	State       CircuitState
	Err         error
}

// InvokerConfig configures an Invoker
type InvokerConfig struct {
	Name    string
	Breaker CircuitBreakerConfig
	Retry   RetryConfig
	// Observer, when set, receives a report after every invocation.
	Observer func(InvocationReport)
}

// Invoker calls an operation under retry and a circuit breaker, substituting
// a fallback value when the call cannot produce a live one.
//
// The breaker wraps the whole retry run: one Invoke records exactly one
// success or failure on the breaker regardless of how many attempts it made.
// Calls cut short by the caller's context record neither.
type Invoker[T any] struct {
	name     string
	breaker  *CircuitBreaker
	retrier  *Retrier
	observer func(InvocationReport)
	logger   *logging.Logger
}

// NewInvoker creates an invoker with its own circuit breaker
func NewInvoker[T any](config InvokerConfig) *Invoker[T] {
	if config.Breaker.Name == "" {
		config.Breaker.Name = config.Name
	}

	return &Invoker[T]{
		name:     config.Name,
		breaker:  NewCircuitBreaker(config.Breaker),
		retrier:  NewRetrier(config.Retry),
		observer: config.Observer,
		logger:   logging.GetLogger(),
	}
}

// Invoke runs op and returns its value, or fallback(cause) when the circuit is
// open or every attempt failed. Invoke never returns an error; the cause is
// reported in the Outcome.
func (inv *Invoker[T]) Invoke(ctx context.Context, op func(context.Context) (T, error), fallback func(error) T) Outcome[T] {
	start := time.Now()

	done, err := inv.breaker.Allow()
	if err != nil {
		cause := errors.NewCircuitOpenError(inv.name).WithCause(err)
		outcome := Outcome[T]{
			Value:       fallback(cause),
			Degraded:    true,
			CircuitOpen: true,
			Err:         cause,
			Duration:    time.Since(start),
		}
		inv.report(outcome)
		return outcome
	}

	var value T
	attempts, err := inv.runAttempts(ctx, op, &value)
	result := inv.result(ctx, err)
	done(result)

	outcome := Outcome[T]{
		Value:     value,
		Abandoned: result == ResultAbandoned,
		Attempts:  attempts,
		Duration:  time.Since(start),
	}
	if err != nil {
		outcome.Value = fallback(err)
		outcome.Degraded = true
		outcome.Err = err
		inv.logger.Warn("Invocation degraded to fallback",
			"name", inv.name,
			"attempts", attempts,
			"error", err.Error(),
		)
	}

	inv.report(outcome)
	return outcome
}

// runAttempts executes the retry loop, converting a panic in op into a failure
// so the breaker accounting stays balanced.
func (inv *Invoker[T]) runAttempts(ctx context.Context, op func(context.Context) (T, error), value *T) (attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			inv.logger.Error("Invocation panicked", "name", inv.name, "panic", r)
			err = errors.NewInternalError("operation panicked").WithDetail("invoker", inv.name)
		}
	}()

	return inv.retrier.execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		*value = v
		return nil
	})
}

// result classifies err for the breaker. A call ended by the caller's own
// context says nothing about the upstream and is not counted.
func (inv *Invoker[T]) result(ctx context.Context, err error) Result {
	if err != nil && ctx.Err() != nil &&
		(stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
		return ResultAbandoned
	}
	return ResultOf(err)
}

func (inv *Invoker[T]) report(outcome Outcome[T]) {
	if inv.observer == nil {
		return
	}
	inv.observer(InvocationReport{
		Name:        inv.name,
		Success:     !outcome.Degraded,
		CircuitOpen: outcome.CircuitOpen,
		Abandoned:   outcome.Abandoned,
		Attempts:    outcome.Attempts,
		Duration:    outcome.Duration,
		State:       inv.breaker.State(),
		Err:         outcome.Err,
	})
}

// Name returns the invoker name
func (inv *Invoker[T]) Name() string {
	return inv.name
}

// State returns the current state of the circuit breaker
func (inv *Invoker[T]) State() CircuitState {
	return inv.breaker.State()
}

// Counts returns the current counts of the circuit breaker
func (inv *Invoker[T]) Counts() Counts {
	return inv.breaker.Counts()
}
