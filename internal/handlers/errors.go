package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/middleware"
	"github.com/chemistry/api/internal/router"
	"github.com/chemistry/api/internal/structured"
)

// emptyResponse stands in for a blank model output in error details.
const emptyResponse = "[Empty Response]"

// respondRouteError maps a routing failure onto the API error envelope.
func (h *ChemistryHandler) respondRouteError(c *gin.Context, endpoint string, err error) {
	var routeErr *router.Error
	var malformed *structured.MalformedOutputError

	switch {
	case errors.As(err, &routeErr):
		fields := []zap.Field{
			zap.String("endpoint", endpoint),
			zap.String("kind", routeErr.Kind.String()),
			zap.String("path", routeErr.Path.String()),
			zap.String("detail", routeErr.Detail),
		}
		switch routeErr.Kind {
		case router.KindRateLimited:
			h.logger.Warn("provider rate limit persisted", fields...)
			middleware.RespondErrorWithRetry(c, http.StatusTooManyRequests, middleware.ErrCodeRateLimited,
				"AI service is rate limited, please try again later", int(h.retryAfter.Milliseconds()))
		case router.KindProviderError:
			h.logger.Error("provider failed", fields...)
			middleware.RespondErrorWithDetails(c, http.StatusBadGateway, middleware.ErrCodeAIServiceUnavailable,
				"AI service unavailable", routeErr.Detail)
		default:
			h.logger.Error("generation client failed", fields...)
			middleware.RespondErrorWithDetails(c, http.StatusInternalServerError, middleware.ErrCodeAIClientError,
				"AI request could not be sent", routeErr.Detail)
		}

	case errors.As(err, &malformed):
		h.logger.Warn("model returned malformed JSON",
			zap.String("endpoint", endpoint),
			zap.String("reason", malformed.Reason),
			zap.String("raw_prefix", malformed.RawPrefix),
		)
		raw := malformed.RawPrefix
		if raw == "" {
			raw = emptyResponse
		}
		middleware.RespondErrorWithDetails(c, http.StatusBadGateway, middleware.ErrCodeMalformedOutput,
			fmt.Sprintf("AI Response Invalid JSON (Endpoint %s): %s. Output Mentah dimulai dengan: '%s...'",
				endpoint, malformed.Reason, raw),
			malformed.CandidatePrefix)

	default:
		h.logger.Error("unexpected routing error", zap.String("endpoint", endpoint), zap.Error(err))
		middleware.InternalError(c, err.Error())
	}
}
