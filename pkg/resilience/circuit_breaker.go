package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, requests are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit is half-open, a trial request is allowed
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name of the circuit breaker for logging/metrics
	Name string
	// FailureThreshold is the number of consecutive failures that opens the circuit
	// when ReadyToTrip is not set
	FailureThreshold uint32
	// MaxRequests is the number of trial requests allowed while half-open
	MaxRequests uint32
	// Interval is the cyclic period of the closed state
	// for the circuit breaker to clear the internal counts. Zero never clears.
	Interval time.Duration
	// Cooldown is the period of the open state,
	// after which the state becomes half-open
	Cooldown time.Duration
	// ReadyToTrip is called with a copy of Counts whenever a request fails
	// in the closed state. If ReadyToTrip returns true, the circuit breaker will be placed into the open state
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is called whenever the state of the circuit breaker changes.
	// It runs after the breaker lock is released, so it may call back into the breaker.
	OnStateChange func(name string, from CircuitState, to CircuitState)
	// Clock overrides time.Now, used by tests
	Clock func() time.Time
}

// DefaultCircuitBreakerConfig returns a breaker that opens after five consecutive
// failures and retries the upstream after thirty seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		MaxRequests:      1,
		Cooldown:         30 * time.Second,
	}
}

// Result is what an admitted request reports back to the breaker
type Result int

const (
	// ResultSuccess counts the request as a success
	ResultSuccess Result = iota
	// ResultFailure counts the request as a failure
	ResultFailure
	// ResultAbandoned returns the admission without counting the request,
	// for requests the caller gave up before the operation could answer
	ResultAbandoned
)

// ResultOf maps an operation error to a Result
func ResultOf(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	return ResultFailure
}

type stateChange struct {
	from CircuitState
	to   CircuitState
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker is a state machine to prevent sending requests that are likely to fail
type CircuitBreaker struct {
	name          string
	maxRequests   uint32
	interval      time.Duration
	cooldown      time.Duration
	readyToTrip   func(counts Counts) bool
	onStateChange func(name string, from CircuitState, to CircuitState)
	now           func() time.Time

	mutex      sync.Mutex
	state      CircuitState
	generation uint64
	counts     Counts
	expiry     time.Time
	changes    []stateChange

	logger *logging.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          config.Name,
		maxRequests:   config.MaxRequests,
		interval:      config.Interval,
		cooldown:      config.Cooldown,
		onStateChange: config.OnStateChange,
		now:           config.Clock,
		logger:        logging.GetLogger(),
	}

	if cb.maxRequests == 0 {
		cb.maxRequests = 1
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	if cb.now == nil {
		cb.now = time.Now
	}

	if config.ReadyToTrip != nil {
		cb.readyToTrip = config.ReadyToTrip
	} else {
		threshold := config.FailureThreshold
		if threshold == 0 {
			threshold = 5
		}
		cb.readyToTrip = consecutiveFailures(threshold)
	}

	cb.toNewGeneration(cb.now())
	return cb
}

func consecutiveFailures(threshold uint32) func(Counts) bool {
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
}

// Execute runs the given request if the circuit breaker accepts it.
// A rejected request returns a *CircuitBreakerError without calling req.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func(context.Context) (interface{}, error)) (interface{}, error) {
	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterRequest(generation, ResultFailure)
			panic(r)
		}
	}()

	result, err := req(ctx)
	cb.afterRequest(generation, ResultOf(err))
	return result, err
}

// Allow admits a request and returns the callback that records its outcome.
// The callback must be invoked exactly once.
func (cb *CircuitBreaker) Allow() (func(Result), error) {
	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}
	return func(result Result) {
		cb.afterRequest(generation, result)
	}, nil
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.unlock()

	state, _ := cb.currentState(cb.now())
	return state
}

// Counts returns a copy of the current counts
func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.counts
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mutex.Lock()
	defer cb.unlock()

	state, generation := cb.currentState(cb.now())

	if state == StateOpen {
		return generation, &CircuitBreakerError{Name: cb.name, State: state}
	} else if state == StateHalfOpen && cb.counts.Requests >= cb.maxRequests {
		return generation, &CircuitBreakerError{Name: cb.name, State: state}
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, result Result) {
	cb.mutex.Lock()
	defer cb.unlock()

	now := cb.now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	switch result {
	case ResultSuccess:
		cb.onSuccess(state, now)
	case ResultFailure:
		cb.onFailure(state, now)
	default:
		// Frees the half-open trial slot for the next caller
		if cb.counts.Requests > 0 {
			cb.counts.Requests--
		}
	}
}

// unlock releases the mutex and then delivers the state changes recorded
// while it was held
func (cb *CircuitBreaker) unlock() {
	changes := cb.changes
	cb.changes = nil
	cb.mutex.Unlock()

	if cb.onStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.onStateChange(cb.name, c.from, c.to)
	}
}

func (cb *CircuitBreaker) onSuccess(state CircuitState, now time.Time) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.maxRequests {
		cb.setState(StateClosed, now)
	}
}

func (cb *CircuitBreaker) onFailure(state CircuitState, now time.Time) {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if state == StateClosed {
		if cb.readyToTrip(cb.counts) {
			cb.setState(StateOpen, now)
		}
	} else if state == StateHalfOpen {
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (CircuitState, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if !now.Before(cb.expiry) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state CircuitState, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	counts := cb.counts
	cb.state = state

	cb.toNewGeneration(now)

	if cb.onStateChange != nil {
		cb.changes = append(cb.changes, stateChange{from: prev, to: state})
	}

	cb.logger.Info("Circuit breaker state changed",
		"name", cb.name,
		"from", prev.String(),
		"to", state.String(),
		"consecutive_failures", counts.ConsecutiveFailures,
	)
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}

	var zero time.Time
	switch cb.state {
	case StateClosed:
		if cb.interval == 0 {
			cb.expiry = zero
		} else {
			cb.expiry = now.Add(cb.interval)
		}
	case StateOpen:
		cb.expiry = now.Add(cb.cooldown)
	default: // StateHalfOpen
		cb.expiry = zero
	}
}

// CircuitBreakerError represents an error when the circuit breaker rejects a request
type CircuitBreakerError struct {
	Name  string
	State CircuitState
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State.String())
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
