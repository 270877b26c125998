// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/config"
	"github.com/fleveque/design-feed/internal/handler"
	"github.com/fleveque/design-feed/internal/middleware"
	"github.com/fleveque/design-feed/internal/service"
	"github.com/fleveque/design-feed/internal/storage"
)

// Deps are the components the routes serve from.
type Deps struct {
	Feed        handler.FeedSearcher
	Prefetcher  handler.PagePrefetcher
	Advice      *service.AdviceService
	Thumbnails  *service.ThumbnailService
	Cache       handler.CacheAdmin
	LLMCallRepo storage.LLMCallRepository
	LLMNames    []string
	Providers   []string
	Gatherer    prometheus.Gatherer
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.Providers)
	feedHandler := handler.NewFeedHandler(deps.Feed, deps.Prefetcher, cfg.Aggregation.PrefetchPages, logger)
	adviceHandler := handler.NewAdviceHandler(deps.Advice, logger)
	thumbHandler := handler.NewThumbnailHandler(deps.Thumbnails, logger)
	adminHandler := handler.NewAdminHandler(deps.Cache, deps.LLMCallRepo, deps.Providers, deps.LLMNames, cfg.Cache.Retention, logger)

	// Operational endpoints, never rate limited.
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	limited := r.Group("")
	limited.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		limited.GET("/feed", feedHandler.Feed)
		limited.GET("/design-feed", feedHandler.DesignFeed)
	}

	api := r.Group("/api/v1")
	{
		api.GET("/categories", feedHandler.Categories)
		api.GET("/thumbnails", middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), thumbHandler.Get)
	}

	// Auth runs before the limiter so keyed clients get their own bucket.
	design := api.Group("/design")
	design.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	design.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		design.POST("/advice", adviceHandler.Advise)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.POST("/cache/sweep", adminHandler.Sweep)
	}
}
