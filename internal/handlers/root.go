package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Root describes the service and its public endpoints
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "ChemisTry API is running",
		"endpoints": gin.H{
			"/api/v1/ask":          "POST - Ask questions about compounds (RAG)",
			"/api/v1/generate":     "POST - Generate new compound recommendations (Agent)",
			"/api/v1/combine":      "POST - Predict reaction/properties of combined compounds (Agent)",
			"/api/v1/admin/ingest": "POST - Rebuild the vector index (admin)",
			"/health":              "GET - Liveness",
			"/health/deep":         "GET - Dependency checks and index status",
		},
	})
}
