package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "chemistry-api"
	serviceVersion = "0.1.0"
)

// Pinger is satisfied by *database.Postgres and *database.Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexCounter is satisfied by *retrieval.PGVectorStore.
type IndexCounter interface {
	Count(ctx context.Context) (int64, error)
}

// ConnectionStatus is satisfied by *eventbus.Publisher.
type ConnectionStatus interface {
	Connected() bool
}

// HealthDeps lists what the deep health check inspects. Nil fields are
// reported as not configured.
type HealthDeps struct {
	Database           Pinger
	Redis              Pinger
	Events             ConnectionStatus
	Index              IndexCounter
	ProviderConfigured bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	deps HealthDeps
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string            `json:"status"`
	Service        string            `json:"service"`
	Version        string            `json:"version"`
	RAGInitialized bool              `json:"rag_initialized"`
	Dependencies   map[string]string `json:"dependencies,omitempty"`
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// DeepHealth returns health status with dependency checks
func (h *HealthHandler) DeepHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]string)
	allHealthy := true

	check := func(name string, p Pinger) {
		if p == nil {
			deps[name] = "not configured"
			return
		}
		if err := p.Ping(ctx); err != nil {
			deps[name] = "unhealthy: " + err.Error()
			allHealthy = false
			return
		}
		deps[name] = "healthy"
	}
	check("database", h.deps.Database)
	check("redis", h.deps.Redis)

	switch {
	case h.deps.Events == nil:
		deps["nats"] = "not configured"
	case h.deps.Events.Connected():
		deps["nats"] = "healthy"
	default:
		// events are best effort and do not degrade the service
		deps["nats"] = "disconnected"
	}

	if h.deps.ProviderConfigured {
		deps["ai_provider"] = "configured"
	} else {
		deps["ai_provider"] = "missing credentials"
		allHealthy = false
	}

	ragInitialized := false
	if h.deps.Index != nil {
		n, err := h.deps.Index.Count(ctx)
		switch {
		case err != nil:
			deps["vector_index"] = "unhealthy: " + err.Error()
			allHealthy = false
		case n == 0:
			deps["vector_index"] = "empty"
		default:
			deps["vector_index"] = "healthy"
			ragInitialized = true
		}
	} else {
		deps["vector_index"] = "not configured"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:         status,
		Service:        serviceName,
		Version:        serviceVersion,
		RAGInitialized: ragInitialized,
		Dependencies:   deps,
	})
}
