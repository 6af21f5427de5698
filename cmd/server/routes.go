package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/handlers"
	"github.com/chemistry/api/internal/middleware"
)

// routeDeps carries everything the HTTP surface needs
type routeDeps struct {
	chemistry      *handlers.ChemistryHandler
	ingest         *handlers.IngestHandler
	health         *handlers.HealthHandler
	defaultLimiter *middleware.RateLimiter
	strictLimiter  *middleware.RateLimiter
	breaker        *middleware.CircuitBreaker
	gatherer       prometheus.Gatherer
	jwtSecret      string
	logger         *zap.Logger
}

func newEngine(d routeDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(d.logger))
	router.Use(middleware.CORS())

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))

	router.GET("/", handlers.Root)
	router.GET("/health", d.health.Health)
	router.GET("/health/deep", d.health.DeepHealth)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(d.defaultLimiter)) // 100 req/min
	{
		v1.POST("/ask", middleware.CircuitBreakerMiddleware(d.breaker), d.chemistry.Ask)

		// Generation routes - stricter rate limit + circuit breaker
		generation := v1.Group("")
		generation.Use(middleware.RateLimitMiddleware(d.strictLimiter)) // 20 req/min
		generation.Use(middleware.CircuitBreakerMiddleware(d.breaker))
		{
			generation.POST("/generate", d.chemistry.Generate)
			generation.POST("/combine", d.chemistry.Combine)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.Auth(d.jwtSecret), middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.POST("/ingest", d.ingest.Ingest)
		}
	}

	return router
}
