package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/api"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/app"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/config"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/health"
)

const serviceName = "hello-service"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	obs, err := app.NewObservability(cfg, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}

	redis, err := app.NewRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redis != nil {
		defer redis.Close()
	}

	events, err := app.NewNotifications(cfg.Notifications, obs.Zap, redis, obs.Metrics)
	if err != nil {
		log.Fatalf("Failed to initialize notifications: %v", err)
	}
	defer events.Close()

	router := api.NewHelloRouter(api.Dependencies{
		Name:      serviceName,
		Version:   app.Version,
		RateLimit: cfg.RateLimit,
		Debug:     cfg.Logging.Level == "debug",
		Logger:    obs.Logger,
		Metrics:   obs.Metrics,
		Tracing:   obs.Tracing,
		Health:    health.NewService(obs.Logger, nil),
	}, fragment.NewHelloGenerator(events))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, obs.Logger, cfg.Server, cfg.Fragments.HelloPort, router); err != nil {
		obs.Logger.Error("Server stopped with error", "error", err)
	}

	shutdownCtx, cancel := app.ShutdownContext()
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		obs.Logger.Error("Failed to flush telemetry", "error", err)
	}
}
