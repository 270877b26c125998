package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/service"
)

// ThumbnailHandler serves resized feed images.
type ThumbnailHandler struct {
	thumbs *service.ThumbnailService
	logger *zap.Logger
}

// NewThumbnailHandler creates a new ThumbnailHandler.
func NewThumbnailHandler(thumbs *service.ThumbnailService, logger *zap.Logger) *ThumbnailHandler {
	return &ThumbnailHandler{thumbs: thumbs, logger: logger}
}

// Get serves a JPEG thumbnail of a remote image.
// Route: GET /api/v1/thumbnails?url=...&size=m
func (h *ThumbnailHandler) Get(c *gin.Context) {
	src := c.Query("url")
	if src == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	size := model.ThumbSize(c.DefaultQuery("size", string(model.ThumbM)))

	data, err := h.thumbs.Get(c.Request.Context(), src, size)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidThumbSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size: must be xs, s, m, l, or xl"})
		return
	case errors.Is(err, service.ErrHostNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "image host not allowed"})
		return
	default:
		h.logger.Warn("thumbnail failed", zap.String("url", src), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "source image unavailable"})
		return
	}

	// Thumbnails of a URL never change.
	c.Header("Cache-Control", "public, max-age=604800, immutable")
	c.Data(http.StatusOK, "image/jpeg", data)
}
