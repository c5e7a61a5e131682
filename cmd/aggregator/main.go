package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/aggregator"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/api"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/app"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/tasks"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/upstream"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/config"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/health"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/resilience"
)

const serviceName = "hello-world-aggregator"

func main() {
	// A missing .env file is fine; the environment still applies
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	obs, err := app.NewObservability(cfg, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	logger := obs.Logger

	// Initialize Redis connection when a backend needs it
	redis, err := app.NewRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redis != nil {
		defer redis.Close()
		logger.Info("Redis connection established")
	}

	resultCache, err := app.NewResultCache(cfg.Cache, redis, obs.Metrics)
	if err != nil {
		log.Fatalf("Failed to initialize result cache: %v", err)
	}

	events, err := app.NewNotifications(cfg.Notifications, obs.Zap, redis, obs.Metrics)
	if err != nil {
		log.Fatalf("Failed to initialize notifications: %v", err)
	}
	defer events.Close()

	healthService := health.NewService(logger, &health.Config{
		Timeout:  5 * time.Second,
		Metadata: map[string]string{"upstream_mode": cfg.Upstreams.Mode},
	})
	if redis != nil {
		healthService.RegisterChecker("redis", health.NewRedisChecker(redis, "redis"))
	}

	// Wire the fragment producers
	opts := aggregator.Options{
		HelloInvoker: app.InvokerConfig(upstream.NameHello, cfg.Resilience),
		WorldInvoker: app.InvokerConfig(upstream.NameWorld, cfg.Resilience),
		Cache:        resultCache,
		Publisher:    events,
		Metrics:      obs.Metrics,
		Tracing:      obs.Tracing,
	}

	switch cfg.Upstreams.Mode {
	case "local":
		opts.Hello = upstream.NewLocalHelloProducer(events)
		opts.World = upstream.NewLocalWorldProducer(events)
	default:
		hello := upstream.NewHelloClient(upstream.ClientConfig{
			BaseURL: cfg.Upstreams.Hello.BaseURL,
			Timeout: cfg.Upstreams.Hello.Timeout,
			Tracing: obs.Tracing,
		})
		world := upstream.NewWorldClient(upstream.ClientConfig{
			BaseURL: cfg.Upstreams.World.BaseURL,
			Timeout: cfg.Upstreams.World.Timeout,
			Tracing: obs.Tracing,
		})
		opts.Hello = hello
		opts.World = world

		healthService.RegisterChecker(upstream.NameHello+"_service",
			health.NewHTTPChecker(hello.HealthURL(), upstream.NameHello+"_service", 2*time.Second))
		healthService.RegisterChecker(upstream.NameWorld+"_service",
			health.NewHTTPChecker(world.HealthURL(), upstream.NameWorld+"_service", 2*time.Second))
	}

	service, err := aggregator.NewService(opts)
	if err != nil {
		log.Fatalf("Failed to create aggregation service: %v", err)
	}

	for _, name := range []string{upstream.NameHello, upstream.NameWorld} {
		healthService.RegisterChecker(name+"_circuit", health.NewCircuitBreakerChecker(name, func() resilience.CircuitState {
			return service.BreakerState(name)
		}))
	}
	healthService.RegisterChecker("degradation", service.DegradationChecker())

	// Start the async task registry
	registry := tasks.NewRegistry(service, &tasks.Config{
		MaxInFlight:   cfg.Async.MaxInFlight,
		Retention:     cfg.Async.Retention,
		SweepInterval: cfg.Async.SweepInterval,
	}, obs.Metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.Start(ctx); err != nil {
		log.Fatalf("Failed to start task registry: %v", err)
	}

	router := api.NewAggregatorRouter(api.Dependencies{
		Name:      serviceName,
		Version:   app.Version,
		RateLimit: cfg.RateLimit,
		Debug:     cfg.Logging.Level == "debug",
		Logger:    logger,
		Metrics:   obs.Metrics,
		Tracing:   obs.Tracing,
		Health:    healthService,
	}, service, registry)

	logger.Info("Aggregator configured",
		"upstream_mode", cfg.Upstreams.Mode,
		"cache_backend", cfg.Cache.Backend,
		"notify_backend", cfg.Notifications.Backend,
		"notify_channels", events.SupportedChannels())

	if err := app.Serve(ctx, logger, cfg.Server, cfg.Server.Port, router); err != nil {
		logger.Error("Server stopped with error", "error", err)
	}

	shutdownCtx, cancel := app.ShutdownContext()
	defer cancel()

	if err := registry.Stop(shutdownCtx); err != nil {
		logger.Error("Task registry did not drain", "error", err)
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to flush telemetry", "error", err)
	}
}
