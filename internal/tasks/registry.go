// Package tasks runs compositions in the background and hands each result
// out exactly once.
package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/aggregator"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// Composer produces a composite result
type Composer interface {
	Compose(ctx context.Context, req *types.Request) (*types.CompositeResult, error)
}

// Stats receives task lifecycle counts
type Stats interface {
	RecordTask(state string)
	TaskStarted()
	TaskFinished()
}

// Config contains registry configuration
type Config struct {
	MaxInFlight   int64         `json:"max_in_flight"`
	Retention     time.Duration `json:"retention"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// DefaultConfig returns default registry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxInFlight:   256,
		Retention:     10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// PollResult is the outcome of one Poll
type PollResult struct {
	Status types.TaskStatus
	Result *types.CompositeResult
}

const (
	statePending int32 = iota
	stateDone
)

type task struct {
	id       string
	state    atomic.Int32
	consumed atomic.Bool
	doneAt   atomic.Int64
	result   *types.CompositeResult
}

// Registry tracks async compositions. A task moves PENDING to DONE once and
// its result is handed out to exactly one Poll.
type Registry struct {
	composer Composer
	config   *Config
	stats    Stats
	sem      *semaphore.Weighted
	now      func() time.Time
	logger   *logging.Logger

	mu    sync.RWMutex
	tasks map[string]*task

	inFlight sync.WaitGroup

	running  bool
	stopCh   chan struct{}
	loopDone chan struct{}
	runMu    sync.Mutex
}

// NewRegistry creates a registry. stats may be nil.
func NewRegistry(composer Composer, config *Config, stats Stats) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = defaults.MaxInFlight
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}

	return &Registry{
		composer: composer,
		config:   config,
		stats:    stats,
		sem:      semaphore.NewWeighted(config.MaxInFlight),
		now:      time.Now,
		logger:   logging.GetLogger(),
		tasks:    make(map[string]*task),
	}
}

// Submit validates req, registers a PENDING task and starts the composition.
// The composition outlives ctx's cancellation but keeps its values.
func (r *Registry) Submit(ctx context.Context, req *types.Request) (string, error) {
	if err := aggregator.ValidateRequest(req); err != nil {
		return "", err
	}

	t := &task{id: uuid.NewString()}

	r.mu.Lock()
	r.tasks[t.id] = t
	r.mu.Unlock()

	r.record("submitted")
	r.logger.LogTaskEvent(ctx, "submitted", t.id, nil)

	reqCopy := *req
	r.inFlight.Add(1)
	go r.run(context.WithoutCancel(ctx), t, &reqCopy)

	return t.id, nil
}

func (r *Registry) run(ctx context.Context, t *task, req *types.Request) {
	defer r.inFlight.Done()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.complete(ctx, t, r.fallback(req))
		return
	}
	defer r.sem.Release(1)

	if r.stats != nil {
		r.stats.TaskStarted()
		defer r.stats.TaskFinished()
	}

	r.complete(ctx, t, r.compose(ctx, t, req))
}

// compose never fails: errors and panics yield the fixed fallback result
func (r *Registry) compose(ctx context.Context, t *task, req *types.Request) (result *types.CompositeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.LogPanic(ctx, rec, "Async composition panicked")
			result = r.fallback(req)
		}
	}()

	result, err := r.composer.Compose(ctx, req)
	if err != nil || result == nil {
		r.logger.LogError(ctx, err, "Async composition failed", logrus.Fields{"task_id": t.id})
		return r.fallback(req)
	}
	return result
}

func (r *Registry) fallback(req *types.Request) *types.CompositeResult {
	return types.FallbackResult(uuid.NewString(), req.Normalize(), r.now().UTC())
}

func (r *Registry) complete(ctx context.Context, t *task, result *types.CompositeResult) {
	r.record("completed")
	r.logger.LogTaskEvent(ctx, "completed", t.id, logrus.Fields{
		"result_id": result.ID,
		"source":    result.Source,
	})

	t.result = result
	t.doneAt.Store(r.now().UnixNano())
	t.state.Store(stateDone)
}

// Poll reports the state of a task. A DONE result is consumed by the first
// Poll that observes it; later polls report NOT_FOUND.
func (r *Registry) Poll(id string) PollResult {
	r.mu.RLock()
	t, ok := r.tasks[id]
	r.mu.RUnlock()

	if !ok {
		return PollResult{Status: types.TaskNotFound}
	}
	if t.state.Load() != stateDone {
		return PollResult{Status: types.TaskPending}
	}
	if !t.consumed.CompareAndSwap(false, true) {
		return PollResult{Status: types.TaskNotFound}
	}

	r.remove(id)
	r.record("consumed")

	return PollResult{Status: types.TaskDone, Result: t.result}
}

// Get is Poll expressed as an error for callers that branch on not found
func (r *Registry) Get(id string) (PollResult, error) {
	res := r.Poll(id)
	if res.Status == types.TaskNotFound {
		return res, errors.NewTaskNotFoundError(id)
	}
	return res, nil
}

// Len returns the number of tracked tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Sweep removes finished tasks nobody claimed within the retention window,
// measured from completion. Pending tasks are never swept. It returns the
// number of tasks removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.config.Retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, t := range r.tasks {
		if t.state.Load() != stateDone {
			continue
		}
		if time.Unix(0, t.doneAt.Load()).Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Info("Swept expired async tasks", "removed", removed)
		for i := 0; i < removed; i++ {
			r.record("expired")
		}
	}
	return removed
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

func (r *Registry) record(state string) {
	if r.stats != nil {
		r.stats.RecordTask(state)
	}
}

// Start starts the sweep loop
func (r *Registry) Start(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		return errors.NewValidationError("task registry is already running")
	}

	r.stopCh = make(chan struct{})
	r.loopDone = make(chan struct{})
	go r.sweepLoop(ctx, r.stopCh, r.loopDone)

	r.running = true
	return nil
}

// Stop stops the sweep loop and waits for in-flight compositions until ctx
// expires
func (r *Registry) Stop(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		close(r.stopCh)
		<-r.loopDone
		r.running = false
	}

	done := make(chan struct{})
	go func() {
		r.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.NewTimeoutError("waiting for async compositions")
	}
}

func (r *Registry) sweepLoop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
