// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
// Handlers are grouped by file, one struct per concern.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	providers []string
}

// NewHealthHandler creates a new HealthHandler reporting the enabled providers.
func NewHealthHandler(providers []string) *HealthHandler {
	return &HealthHandler{providers: providers}
}

// Healthz responds with service status.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "design-feed",
		"providers": h.providers,
	})
}
