package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/middleware"
	"github.com/chemistry/api/internal/models"
	"github.com/chemistry/api/internal/prompt"
	"github.com/chemistry/api/internal/router"
)

// Generate recommends the single compound that best fits the requested product
func (h *ChemistryHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	text, err := prompt.Recommendation(req)
	if err != nil {
		h.logger.Error("failed to build recommendation prompt", zap.Error(err))
		middleware.InternalError(c, "failed to build prompt")
		return
	}

	answer, err := h.route(c, "/generate", router.Query{Text: text, StructuredOutputRequired: true})
	if err != nil {
		h.respondRouteError(c, "/generate", err)
		return
	}

	c.JSON(http.StatusOK, models.GenerateResponse{Success: true, Answer: answer.Object})
}

// Combine predicts how two compounds interact
func (h *ChemistryHandler) Combine(c *gin.Context) {
	var req models.CombineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	text, err := prompt.Reaction(req)
	if err != nil {
		h.logger.Error("failed to build reaction prompt", zap.Error(err))
		middleware.InternalError(c, "failed to build prompt")
		return
	}

	answer, err := h.route(c, "/combine", router.Query{Text: text, StructuredOutputRequired: true})
	if err != nil {
		h.respondRouteError(c, "/combine", err)
		return
	}

	c.JSON(http.StatusOK, models.CombineResponse{Success: true, Result: answer.Object})
}
