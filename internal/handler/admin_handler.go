package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/storage"
)

// CacheAdmin is the part of cachestore.Store the admin endpoints use.
type CacheAdmin interface {
	Count(ctx context.Context) (int64, error)
	Sweep(ctx context.Context, maxAge time.Duration) int64
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	cache       CacheAdmin
	llmCallRepo storage.LLMCallRepository
	providers   []string
	llmNames    []string
	retention   time.Duration
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. llmNames are the configured
// LLM providers whose call counts Stats reports.
func NewAdminHandler(
	cache CacheAdmin,
	llmCallRepo storage.LLMCallRepository,
	providers, llmNames []string,
	retention time.Duration,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		cache:       cache,
		llmCallRepo: llmCallRepo,
		providers:   providers,
		llmNames:    llmNames,
		retention:   retention,
		logger:      logger,
	}
}

// Stats returns cache size, provider order and LLM call counts.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := h.cache.Count(ctx)
	if err != nil {
		h.logger.Error("counting cache entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	calls := make(map[string]int64, len(h.llmNames))
	for _, name := range h.llmNames {
		n, err := h.llmCallRepo.CountByProvider(ctx, name)
		if err != nil {
			h.logger.Error("counting llm calls", zap.String("provider", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		calls[name] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"cache_entries": entries,
		"providers":     h.providers,
		"llm_calls":     calls,
	})
}

// Sweep deletes cache entries older than the retention window, or than
// the max_age query param (a Go duration such as "72h").
// Route: POST /api/v1/admin/cache/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	maxAge := h.retention
	if raw := c.Query("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_age must be a positive duration"})
			return
		}
		maxAge = d
	}

	deleted := h.cache.Sweep(c.Request.Context(), maxAge)
	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
		"max_age": maxAge.String(),
	})
}
