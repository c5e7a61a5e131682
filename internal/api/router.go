package api

import (
	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/middleware"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/config"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/health"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/metrics"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/tracing"
)

// AggregatorBasePath is the route group of the composition endpoints
const AggregatorBasePath = "/api/v1/hello-world"

// Dependencies are the collaborators shared by every service router
type Dependencies struct {
	Name      string
	Version   string
	RateLimit config.RateLimitConfig
	Debug     bool
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Tracing   *tracing.TracingService
	Health    *health.Service
}

func (d *Dependencies) withDefaults() {
	if d.Logger == nil {
		d.Logger = logging.GetLogger()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewMetrics(&metrics.Config{Enabled: false})
	}
	if d.Tracing == nil {
		d.Tracing = tracing.Noop()
	}
	if d.Health == nil {
		d.Health = health.NewService(d.Logger, nil)
	}
}

// newEngine builds an engine with the common middleware chain and the
// health, metrics and version routes
func newEngine(deps Dependencies) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		if deps.Debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.ErrorLoggingMiddleware(deps.Logger))
	router.Use(CORSMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(deps.Tracing.TracingMiddleware())
	router.Use(deps.Metrics.PrometheusMiddleware())

	router.GET("/health", deps.Health.Handler())
	router.GET("/health/live", deps.Health.LivenessHandler())
	router.GET("/health/ready", deps.Health.ReadinessHandler())
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	router.GET("/api/v1", func(c *gin.Context) {
		SuccessResponse(c, map[string]interface{}{
			"name":    deps.Name,
			"version": deps.Version,
			"status":  "ok",
		})
	})

	return router
}

// NewAggregatorRouter creates the router of the aggregation service
func NewAggregatorRouter(deps Dependencies, composer Composer, tasks TaskRegistry) *gin.Engine {
	deps.withDefaults()
	router := newEngine(deps)

	handler := NewAggregatorHandler(composer, tasks, AggregatorBasePath)

	v1 := router.Group(AggregatorBasePath)
	v1.Use(RateLimitMiddleware(deps.RateLimit))
	{
		v1.GET("", handler.GetDefault)
		v1.POST("", handler.Compose)
		v1.GET("/:id", handler.GetByID)
		v1.POST("/async", handler.SubmitAsync)
		v1.GET("/async/:requestId", handler.PollAsync)
	}

	return router
}

// NewHelloRouter creates the router of the greeting service
func NewHelloRouter(deps Dependencies, gen *fragment.Generator[fragment.HelloContext]) *gin.Engine {
	deps.withDefaults()
	router := newEngine(deps)

	handler := NewHelloHandler(gen, deps.Metrics)

	v1 := router.Group("/api/v1/greetings")
	v1.Use(RateLimitMiddleware(deps.RateLimit))
	v1.GET("/generate", handler.GenerateHello)

	return router
}

// NewWorldRouter creates the router of the world service
func NewWorldRouter(deps Dependencies, gen *fragment.Generator[fragment.WorldContext]) *gin.Engine {
	deps.withDefaults()
	router := newEngine(deps)

	handler := NewWorldHandler(gen, deps.Metrics)

	v1 := router.Group("/api/v1/worlds")
	v1.Use(RateLimitMiddleware(deps.RateLimit))
	v1.GET("/generate", handler.GenerateWorld)

	return router
}
