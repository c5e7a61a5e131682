// Package aggregator composes greeting and world fragments into a single
// result, serving repeated requests from the result cache and degrading to
// fallback text whenever an upstream cannot answer.
package aggregator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/cache"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/upstream"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/health"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/metrics"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/resilience"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/tracing"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

const notifyTimeout = 5 * time.Second

// Options wires the collaborators of a Service. Hello and World are
// required; everything else has a working default.
type Options struct {
	Hello upstream.HelloProducer
	World upstream.WorldProducer

	// HelloInvoker and WorldInvoker configure retry and circuit breaking
	// per upstream. Zero values get the package defaults.
	HelloInvoker resilience.InvokerConfig
	WorldInvoker resilience.InvokerConfig

	Cache       *cache.ResultCache
	Publisher   notifications.Publisher
	Metrics     *metrics.Metrics
	Tracing     *tracing.TracingService
	Degradation *resilience.DegradationManager

	// Now and NewID are overridable for tests
	Now   func() time.Time
	NewID func() string
}

// Service is the aggregation orchestrator
type Service struct {
	hello        upstream.HelloProducer
	world        upstream.WorldProducer
	helloInvoker *resilience.Invoker[fragment.Fragment]
	worldInvoker *resilience.Invoker[fragment.Fragment]
	cache        *cache.ResultCache
	publisher    notifications.Publisher
	metrics      *metrics.Metrics
	tracing      *tracing.TracingService
	degradation  *resilience.DegradationManager
	now          func() time.Time
	newID        func() string
	logger       *logging.Logger
}

// NewService creates an aggregation orchestrator
func NewService(opts Options) (*Service, error) {
	if opts.Hello == nil || opts.World == nil {
		return nil, errors.NewValidationError("hello and world producers are required")
	}

	s := &Service{
		hello:       opts.Hello,
		world:       opts.World,
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		tracing:     opts.Tracing,
		degradation: opts.Degradation,
		now:         opts.Now,
		newID:       opts.NewID,
		logger:      logging.GetLogger(),
	}

	if s.metrics == nil {
		s.metrics = metrics.NewMetrics(&metrics.Config{Enabled: false})
	}
	if s.cache == nil {
		s.cache = cache.NewResultCache(cache.NewService(cache.NewMemoryBackend(), nil), s.metrics)
	}
	if s.tracing == nil {
		s.tracing = tracing.Noop()
	}
	if s.degradation == nil {
		s.degradation = resilience.NewDegradationManager()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	s.helloInvoker = resilience.NewInvoker[fragment.Fragment](s.invokerConfig(upstream.NameHello, opts.HelloInvoker))
	s.worldInvoker = resilience.NewInvoker[fragment.Fragment](s.invokerConfig(upstream.NameWorld, opts.WorldInvoker))

	s.degradation.RegisterService(upstream.NameHello, resilience.LevelPartial)
	s.degradation.RegisterService(upstream.NameWorld, resilience.LevelPartial)

	return s, nil
}

// invokerConfig fills defaults and chains the service's own observer in
// front of any caller-supplied one
func (s *Service) invokerConfig(name string, cfg resilience.InvokerConfig) resilience.InvokerConfig {
	cfg.Name = name
	cfg.Breaker.Name = name
	if cfg.Breaker.FailureThreshold == 0 && cfg.Breaker.ReadyToTrip == nil {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig(name)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}

	next := cfg.Observer
	cfg.Observer = func(report resilience.InvocationReport) {
		s.observe(report)
		if next != nil {
			next(report)
		}
	}
	return cfg
}

func (s *Service) observe(report resilience.InvocationReport) {
	outcome := "success"
	switch {
	case report.CircuitOpen:
		outcome = "circuit_open"
	case report.Abandoned:
		outcome = "abandoned"
	case !report.Success:
		outcome = "fallback"
	}

	s.metrics.RecordUpstreamCall(report.Name, outcome, report.Attempts, report.Duration)
	s.metrics.SetCircuitState(report.Name, int(report.State))
	s.degradation.ObserveInvocation(report)

	fields := logrus.Fields{
		"attempts":      report.Attempts,
		"duration_ms":   report.Duration.Milliseconds(),
		"circuit_state": report.State.String(),
	}
	if report.Err != nil {
		fields["error"] = report.Err.Error()
	}
	s.logger.LogUpstreamEvent(context.Background(), outcome, report.Name, report.Success, fields)
}

// Compose produces the composite result for req. The only error it returns
// is a validation error; upstream failures degrade the result instead.
func (s *Service) Compose(ctx context.Context, req *types.Request) (*types.CompositeResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	norm := req.Normalize()

	ctx, span := s.tracing.StartCompositionSpan(ctx, norm.Language, norm.FormalityLevel)
	defer span.End()

	start := s.now()
	key := cache.KeyFor(norm)

	if cached, ok := s.cache.Get(ctx, key); ok {
		result := cached.WithSource(types.SourceCached)
		s.metrics.RecordComposition(string(types.SourceCached), time.Since(start))
		s.logger.LogCompositionEvent(ctx, "cache_hit", result.ID, string(result.Source), nil)
		return result, nil
	}

	result := s.composeSafely(ctx, norm, start)

	if result.Source == types.SourceLive {
		s.cache.Put(ctx, key, result)
	}
	s.cache.PutByID(ctx, result)
	s.notify(ctx, result)

	s.metrics.RecordComposition(string(result.Source), time.Duration(result.GenerationTimeMillis)*time.Millisecond)
	s.logger.LogCompositionEvent(ctx, "composed", result.ID, string(result.Source), logrus.Fields{
		"hello_strategy":     result.HelloStrategy,
		"world_strategy":     result.WorldStrategy,
		"generation_time_ms": result.GenerationTimeMillis,
	})

	return result, nil
}

// ComposeDefault composes the parameterless default request
func (s *Service) ComposeDefault(ctx context.Context) (*types.CompositeResult, error) {
	return s.Compose(ctx, types.DefaultRequest())
}

// GetByID returns a previously produced result
func (s *Service) GetByID(ctx context.Context, id string) (*types.CompositeResult, error) {
	result, ok := s.cache.GetByID(ctx, id)
	if !ok {
		return nil, errors.NewResultNotFoundError(id)
	}
	return result, nil
}

// composeSafely runs compose and substitutes the fixed fallback result when
// it panics
func (s *Service) composeSafely(ctx context.Context, norm types.NormalizedRequest, start time.Time) (result *types.CompositeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.LogPanic(ctx, r, "Composition panicked")
			s.metrics.RecordPanic("aggregator")
			result = types.FallbackResult(s.newID(), norm, start.UTC())
			result.RequestID = logging.GetRequestID(ctx)
		}
	}()

	return s.compose(ctx, norm, start)
}

func (s *Service) compose(ctx context.Context, norm types.NormalizedRequest, start time.Time) *types.CompositeResult {
	var helloOut, worldOut resilience.Outcome[fragment.Fragment]

	var g errgroup.Group
	g.Go(func() error {
		helloOut = s.helloInvoker.Invoke(ctx,
			func(ctx context.Context) (fragment.Fragment, error) {
				return s.hello.Produce(ctx, fragment.HelloContext{
					Language:       norm.Language,
					FormalityLevel: norm.FormalityLevel,
				})
			},
			func(error) fragment.Fragment {
				return fragment.Fragment{Text: types.HelloFallbackText, Strategy: types.FallbackStrategyName}
			},
		)
		return nil
	})
	g.Go(func() error {
		worldOut = s.worldInvoker.Invoke(ctx,
			func(ctx context.Context) (fragment.Fragment, error) {
				return s.world.Produce(ctx, fragment.WorldContext{
					Language:   norm.Language,
					PlanetType: norm.PlanetType,
					Scope:      norm.Scope,
				})
			},
			func(error) fragment.Fragment {
				return fragment.Fragment{Text: types.WorldFallbackText, Strategy: types.FallbackStrategyName}
			},
		)
		return nil
	})
	_ = g.Wait()

	id := s.newID()

	if helloOut.Degraded && worldOut.Degraded {
		s.logger.Warn("Both upstreams degraded",
			"hello_error", errString(helloOut.Err),
			"world_error", errString(worldOut.Err),
		)
		result := types.FallbackResult(id, norm, start.UTC())
		result.RequestID = logging.GetRequestID(ctx)
		return result
	}

	helloText := transform(helloOut.Value.Text, norm)
	worldText := transform(worldOut.Value.Text, norm)

	source := types.SourceLive
	if helloOut.Degraded || worldOut.Degraded {
		source = types.SourceFallback
	}

	return &types.CompositeResult{
		ID:                   id,
		Message:              helloText + norm.Delimiter + worldText,
		HelloText:            helloText,
		WorldText:            worldText,
		Language:             norm.Language,
		FormalityLevel:       norm.FormalityLevel,
		PlanetType:           norm.PlanetType,
		Scope:                norm.Scope,
		Delimiter:            norm.Delimiter,
		Uppercase:            norm.Uppercase,
		Reversed:             norm.Reversed,
		GeneratedAt:          start.UTC(),
		GenerationTimeMillis: s.now().Sub(start).Milliseconds(),
		RequestID:            logging.GetRequestID(ctx),
		HelloStrategy:        helloOut.Value.Strategy,
		WorldStrategy:        worldOut.Value.Strategy,
		Source:               source,
	}
}

// transform upper-cases then reverses a fragment as the request asks
func transform(text string, norm types.NormalizedRequest) string {
	if norm.Uppercase {
		text = strings.ToUpper(text)
	}
	if norm.Reversed {
		text = fragment.Reverse(text)
	}
	return text
}

// notify publishes the result without blocking the caller. Publish failures
// and panics are logged only.
func (s *Service) notify(ctx context.Context, result *types.CompositeResult) {
	if s.publisher == nil {
		return
	}

	snapshot := *result
	notifyCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.LogPanic(notifyCtx, r, "Notification publish panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(notifyCtx, notifyTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, snapshot); err != nil {
			s.logger.LogError(ctx, err, "Failed to publish composition event", logrus.Fields{
				"result_id": snapshot.ID,
			})
		}
	}()
}

// BreakerState returns the circuit state of the named upstream
func (s *Service) BreakerState(name string) resilience.CircuitState {
	if name == upstream.NameWorld {
		return s.worldInvoker.State()
	}
	return s.helloInvoker.State()
}

// DegradationLevel returns the overall upstream degradation level
func (s *Service) DegradationLevel() resilience.DegradationLevel {
	return s.degradation.GetCurrentDegradationLevel()
}

// DegradationChecker reports the degradation level as a health check. Any
// level above normal is degraded: fallbacks keep the service answering.
func (s *Service) DegradationChecker() health.Checker {
	return health.NewCustomChecker("degradation", func(ctx context.Context) (health.Status, string, error) {
		level := s.DegradationLevel()

		var failing []string
		for _, name := range []string{upstream.NameHello, upstream.NameWorld} {
			if h, ok := s.degradation.GetServiceHealth(name); ok && !h.Healthy {
				failing = append(failing, name+": "+h.Message)
			}
		}

		message := level.String()
		if len(failing) > 0 {
			message += " (" + strings.Join(failing, "; ") + ")"
		}
		if level == resilience.LevelNormal {
			return health.StatusHealthy, message, nil
		}
		return health.StatusDegraded, message, nil
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
