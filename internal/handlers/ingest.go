package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/eventbus"
	"github.com/chemistry/api/internal/ingest"
	"github.com/chemistry/api/internal/middleware"
	"github.com/chemistry/api/internal/models"
)

// Ingester is satisfied by *ingest.Pipeline.
type Ingester interface {
	RunFile(ctx context.Context, path string) (ingest.Result, error)
}

// EventPublisher is satisfied by *eventbus.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// IngestHandler rebuilds the vector index on demand
type IngestHandler struct {
	ingester  Ingester
	dataFile  string
	publisher EventPublisher
	logger    *zap.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingester Ingester, dataFile string, publisher EventPublisher, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{ingester: ingester, dataFile: dataFile, publisher: publisher, logger: logger}
}

// Ingest replaces the index with the contents of the configured data file
func (h *IngestHandler) Ingest(c *gin.Context) {
	if h.ingester == nil {
		middleware.RespondError(c, http.StatusServiceUnavailable, middleware.ErrCodeIngestFailed,
			"ingestion is not configured")
		return
	}

	subject := middleware.GetSubject(c)
	h.logger.Info("index rebuild requested", zap.String("subject", subject), zap.String("file", h.dataFile))

	res, err := h.ingester.RunFile(c.Request.Context(), h.dataFile)
	if err != nil {
		h.logger.Error("index rebuild failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrNoDocuments) {
			status = http.StatusUnprocessableEntity
		}
		middleware.RespondErrorWithDetails(c, status, middleware.ErrCodeIngestFailed,
			"Ingestion gagal", err.Error())
		return
	}

	if h.publisher != nil {
		event := models.IndexRebuiltEvent{
			Documents:  res.Documents,
			Chunks:     res.Chunks,
			DurationMS: res.Duration.Milliseconds(),
			Subject:    subject,
			Timestamp:  time.Now().UTC(),
		}
		if err := h.publisher.Publish(c.Request.Context(), eventbus.SubjectIndexRebuilt, event); err != nil {
			h.logger.Warn("index rebuild event not published", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, models.IngestResponse{
		Status:    "success",
		Message:   res.Message(),
		Documents: res.Documents,
		Chunks:    res.Chunks,
	})
}
