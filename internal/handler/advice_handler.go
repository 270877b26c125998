package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/llm"
	"github.com/fleveque/design-feed/internal/service"
)

const maxDescriptionLen = 1000

// AdviceHandler serves LLM design advice.
type AdviceHandler struct {
	advice *service.AdviceService
	logger *zap.Logger
}

// NewAdviceHandler creates a new AdviceHandler.
func NewAdviceHandler(advice *service.AdviceService, logger *zap.Logger) *AdviceHandler {
	return &AdviceHandler{advice: advice, logger: logger}
}

// Advise returns structured advice for the described room.
// Route: POST /api/v1/design/advice
func (h *AdviceHandler) Advise(c *gin.Context) {
	var req llm.AdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.RoomType) == "" && strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_type or description is required"})
		return
	}
	if len(req.Description) > maxDescriptionLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is too long"})
		return
	}

	if !h.advice.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "design advice is not configured"})
		return
	}

	advice, err := h.advice.Advise(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, advice)
	case errors.Is(err, service.ErrAdviceRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many advice requests, try again shortly"})
	default:
		h.logger.Warn("advice failed", zap.String("subject", req.Subject()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "design advice is temporarily unavailable"})
	}
}
