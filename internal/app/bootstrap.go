// Package app holds the process wiring shared by the service binaries.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/cache"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications/channels"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/config"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/metrics"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/resilience"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/tracing"
)

// Version is overridden at build time
var Version = "dev"

// shutdownTimeout bounds graceful shutdown of servers and background work
const shutdownTimeout = 30 * time.Second

// Observability bundles the loggers, metrics and tracer of one process
type Observability struct {
	Logger  *logging.Logger
	Zap     *zap.Logger
	Metrics *metrics.Metrics
	Tracing *tracing.TracingService
}

// NewObservability builds the logging, metrics and tracing stack of a
// service and installs the logger globally
func NewObservability(cfg *config.Config, service string) (*Observability, error) {
	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: service,
		Version:     Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetGlobalLogger(logger)

	zl, err := NewZapLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zl = zl.With(zap.String("service", service))

	m := metrics.NewMetrics(&metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Enabled:   cfg.Metrics.Enabled,
	})

	tr, err := tracing.NewTracingService(&tracing.Config{
		ServiceName:    service,
		ServiceVersion: Version,
		SamplingRate:   cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return &Observability{
		Logger:  logger,
		Zap:     zl,
		Metrics: m,
		Tracing: tr,
	}, nil
}

// Shutdown flushes spans and buffered log entries
func (o *Observability) Shutdown(ctx context.Context) error {
	err := o.Tracing.Shutdown(ctx)
	// Sync fails on terminals and pipes; the error carries no information.
	_ = o.Zap.Sync()
	return err
}

// NewZapLogger builds the zap logger used by the event channels. It shares
// the level and format settings of the main logger.
func NewZapLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.Format, "text") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc.Level = level

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		zc.OutputPaths = []string{"stdout"}
	case "stderr":
		zc.OutputPaths = []string{"stderr"}
	default:
		zc.OutputPaths = []string{cfg.Output}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return logger, nil
}

// NewRedis connects to Redis when the configuration needs it and returns
// nil otherwise
func NewRedis(cfg *config.Config) (*cache.RedisClient, error) {
	if !cfg.NeedsRedis() {
		return nil, nil
	}
	return cache.NewRedisClient(&cfg.Redis)
}

// NewResultCache builds the result cache on the configured backend
func NewResultCache(cfg config.CacheConfig, redis *cache.RedisClient, stats cache.Stats) (*cache.ResultCache, error) {
	var backend cache.Backend
	switch cfg.Backend {
	case "redis":
		if redis == nil {
			return nil, stderrors.New("redis cache backend requires a redis client")
		}
		backend = cache.NewRedisBackend(redis)
	case "", "memory":
		backend = cache.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}

	svc := cache.NewService(backend, &cache.Config{
		DefaultTTL: cfg.TTL,
		ResultTTL:  cfg.TTL,
		KeyPrefix:  cfg.KeyPrefix,
	})
	return cache.NewResultCache(svc, stats), nil
}

// NewNotifications builds the event service with the configured channel and
// an optional webhook
func NewNotifications(cfg config.NotificationsConfig, logger *zap.Logger, redis *cache.RedisClient, recorder notifications.FailureRecorder) (*notifications.Service, error) {
	svc := notifications.NewService(logger, cfg.Subject, recorder)

	switch cfg.Backend {
	case "", "log":
		svc.RegisterChannel(channels.NewLogHandler(logger))
	case "nats":
		h, err := channels.NewNATSHandler(logger, channels.NATSConfig{
			URL:            cfg.NATSURL,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		svc.RegisterChannel(h)
	case "redis":
		if redis == nil {
			return nil, stderrors.New("redis notification backend requires a redis client")
		}
		svc.RegisterChannel(channels.NewRedisHandler(logger, redis))
	default:
		return nil, fmt.Errorf("unsupported notification backend: %s", cfg.Backend)
	}

	if cfg.WebhookURL != "" {
		svc.RegisterChannel(channels.NewWebhookHandler(logger, cfg.WebhookURL, nil))
	}

	return svc, nil
}

// InvokerConfig maps the resilience settings onto an upstream invoker
func InvokerConfig(name string, cfg config.ResilienceConfig) resilience.InvokerConfig {
	breaker := resilience.DefaultCircuitBreakerConfig(name)
	breaker.FailureThreshold = cfg.FailureThreshold
	breaker.Cooldown = cfg.Cooldown

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.InitialDelay = cfg.InitialDelay
	retry.MaxDelay = cfg.MaxDelay
	retry.BackoffMultiplier = cfg.BackoffMultiplier
	retry.Jitter = cfg.Jitter

	return resilience.InvokerConfig{
		Name:    name,
		Breaker: breaker,
		Retry:   retry,
	}
}

// Serve runs handler on host:port until ctx is cancelled, then shuts the
// server down gracefully
func Serve(ctx context.Context, logger *logging.Logger, cfg config.ServerConfig, port int, handler http.Handler) error {
	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return ServeListener(ctx, logger, cfg, lis, handler)
}

// ServeListener is Serve on an existing listener
func ServeListener(ctx context.Context, logger *logging.Logger, cfg config.ServerConfig, lis net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", lis.Addr().String())
		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// ShutdownContext returns a context bounded by the shutdown timeout
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
