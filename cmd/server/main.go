package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/chemistry/api/docs" // Swagger docs
	"github.com/chemistry/api/internal/config"
	"github.com/chemistry/api/internal/database"
	"github.com/chemistry/api/internal/eventbus"
	"github.com/chemistry/api/internal/generation"
	"github.com/chemistry/api/internal/handlers"
	"github.com/chemistry/api/internal/ingest"
	"github.com/chemistry/api/internal/metrics"
	"github.com/chemistry/api/internal/middleware"
	"github.com/chemistry/api/internal/prompt"
	"github.com/chemistry/api/internal/querylog"
	"github.com/chemistry/api/internal/retrieval"
	"github.com/chemistry/api/internal/router"
	"github.com/chemistry/api/internal/telemetry"
)

// @title ChemisTry API
// @version 0.1.0
// @description Question answering, compound recommendation and reaction prediction backed by retrieval and Gemini.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	ctx := context.Background()

	// Initialize logger with stdout sync
	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("ChemisTry API starting...",
		zap.String("version", "0.1.0"),
		zap.String("environment", cfg.Environment),
	)

	shutdownTelemetry, err := telemetry.InitTracer(ctx, "chemistry-api", cfg.OTLPEndpoint)
	if err != nil {
		// Collector may be down; tracing is optional
		logger.Error("failed to initialize telemetry", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTelemetry(ctx); err != nil {
				logger.Error("failed to shutdown telemetry", zap.Error(err))
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(registry)

	if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	healthDeps := handlers.HealthDeps{Database: db}

	var redisClient *redis.Client
	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory rate limits and no embedding cache", zap.Error(err))
	} else {
		defer rdb.Close()
		redisClient = rdb.Client()
		healthDeps.Redis = rdb
	}

	var publisher *eventbus.Publisher
	if p, err := eventbus.Connect(cfg.NATSURL, logger); err != nil {
		logger.Warn("failed to connect to NATS, events disabled", zap.Error(err))
	} else {
		defer p.Close()
		if err := p.EnsureStream(); err != nil {
			logger.Warn("JetStream stream unavailable, publishing on core NATS", zap.Error(err))
		}
		publisher = p
		healthDeps.Events = p
		logger.Info("connected to NATS")
	}

	provider, err := generation.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.FastModel, cfg.PreciseModel)
	if err != nil {
		logger.Fatal("failed to initialize generation provider", zap.Error(err))
	}
	if !provider.Configured() {
		logger.Warn("GEMINI_API_KEY is not set, generation requests will fail")
	}
	healthDeps.ProviderConfigured = provider.Configured()

	client := generation.NewClient(provider, generation.Options{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Unit:        cfg.BackoffUnit,
	}, logger, rec)

	var embedder retrieval.Embedder
	if e, err := retrieval.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel); err != nil {
		logger.Warn("embedder unavailable, answering without retrieval", zap.Error(err))
	} else {
		embedder = e
		if redisClient != nil {
			embedder = retrieval.NewCachedEmbedder(e, redisClient, cfg.EmbeddingModel, cfg.EmbeddingCacheTTL, logger)
		}
	}

	store := retrieval.NewPGVectorStore(db.Pool(), cfg.VectorTable, cfg.EmbeddingDimension)
	healthDeps.Index = store
	retriever := retrieval.NewVectorRetriever(embedder, store, logger, rec)

	queryRouter := router.New(router.Config{
		LongQueryThreshold:    cfg.LongQueryThreshold,
		ComplexRequestMarkers: cfg.ComplexRequestMarkers,
		NoAnswerSentinel:      cfg.NoAnswerSentinel,
		TopK:                  cfg.RetrievalTopK,
		Temperature:           cfg.Temperature,
	}, retriever, prompt.NewAssembler(), client, logger, rec)

	var auditPublisher querylog.Publisher
	var ingestPublisher handlers.EventPublisher
	if publisher != nil {
		auditPublisher = publisher
		ingestPublisher = publisher
	}
	auditor := querylog.NewAuditor(querylog.NewRepository(db.Pool()), auditPublisher, logger)

	var ingester handlers.Ingester
	if embedder != nil {
		ingester = ingest.NewPipeline(embedder, store, logger)
	}

	defaultLimiter, err := middleware.NewRateLimiter("default", cfg.RateLimitPerMinute, time.Minute, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to create rate limiter", zap.Error(err))
	}
	strictLimiter, err := middleware.NewRateLimiter("strict", cfg.StrictRateLimitPerMinute, time.Minute, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to create rate limiter", zap.Error(err))
	}

	breaker := middleware.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.OnStateChange = func(from, to middleware.CircuitState) {
		logger.Warn("generation circuit breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := newEngine(routeDeps{
		chemistry:      handlers.NewChemistryHandler(queryRouter, auditor, client.RetryAfter(), logger),
		ingest:         handlers.NewIngestHandler(ingester, cfg.DataFile, ingestPublisher, logger),
		health:         handlers.NewHealthHandler(healthDeps),
		defaultLimiter: defaultLimiter,
		strictLimiter:  strictLimiter,
		breaker:        breaker,
		gatherer:       registry,
		jwtSecret:      cfg.JWTSecret,
		logger:         logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}
