package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/middleware"
	"github.com/chemistry/api/internal/models"
	"github.com/chemistry/api/internal/querylog"
	"github.com/chemistry/api/internal/router"
	"github.com/chemistry/api/internal/structured"
)

var tracer = otel.Tracer("github.com/chemistry/api/internal/handlers")

// QueryRouter is satisfied by *router.Router.
type QueryRouter interface {
	Route(ctx context.Context, q router.Query) (*router.Answer, error)
}

// Auditor is satisfied by *querylog.Auditor.
type Auditor interface {
	Record(ctx context.Context, e querylog.Entry)
}

// ChemistryHandler serves the question, recommendation and reaction endpoints
type ChemistryHandler struct {
	router     QueryRouter
	auditor    Auditor
	retryAfter time.Duration
	logger     *zap.Logger
}

// NewChemistryHandler creates a new chemistry handler. retryAfter is the
// hint sent to clients when the provider keeps rate limiting.
func NewChemistryHandler(r QueryRouter, auditor Auditor, retryAfter time.Duration, logger *zap.Logger) *ChemistryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChemistryHandler{router: r, auditor: auditor, retryAfter: retryAfter, logger: logger}
}

// Ask answers a free-text question about chemical compounds
func (h *ChemistryHandler) Ask(c *gin.Context) {
	var req models.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	answer, err := h.route(c, "/ask", router.Query{Text: req.Query, Feedback: req.Feedback})
	if err != nil {
		h.respondRouteError(c, "/ask", err)
		return
	}

	c.JSON(http.StatusOK, models.AskResponse{
		Answer: answer.Content,
		Path:   answer.Path.String(),
	})
}

// route runs q through the router inside a span and audits the outcome
// without holding up the response.
func (h *ChemistryHandler) route(c *gin.Context, endpoint string, q router.Query) (*router.Answer, error) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.route")
	defer span.End()
	span.SetAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("structured", q.StructuredOutputRequired),
	)

	start := time.Now()
	answer, err := h.router.Route(ctx, q)

	entry := querylog.Entry{
		RequestID:  middleware.GetRequestID(c),
		Endpoint:   endpoint,
		Structured: q.StructuredOutputRequired,
		Outcome:    outcomeOf(err),
		Latency:    time.Since(start),
		Query:      q.Text,
	}
	var routeErr *router.Error
	switch {
	case answer != nil:
		entry.Path = answer.Path.String()
	case errors.As(err, &routeErr):
		entry.Path = routeErr.Path.String()
	case q.StructuredOutputRequired:
		// structured queries are always served directly
		entry.Path = router.PathDirect.String()
	}
	span.SetAttributes(attribute.String("outcome", entry.Outcome))

	if h.auditor != nil {
		go h.auditor.Record(context.WithoutCancel(ctx), entry)
	}
	return answer, err
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var routeErr *router.Error
	if errors.As(err, &routeErr) {
		return routeErr.Kind.String()
	}
	var malformed *structured.MalformedOutputError
	if errors.As(err, &malformed) {
		return "malformed_output"
	}
	return "error"
}
