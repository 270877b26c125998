package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/filter"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/service"
)

const (
	feedPerPage       = 60
	designFeedPerPage = 100
	maxPerPage        = 100
)

// FeedSearcher is the part of service.Aggregator the feed routes use.
type FeedSearcher interface {
	Search(ctx context.Context, query string, page, perPage int) ([]model.Photo, error)
	SearchAggregated(ctx context.Context, query string, page, perPage int) ([]model.Photo, error)
}

// PagePrefetcher starts background warming of upcoming pages.
type PagePrefetcher interface {
	Prefetch(query string, currentPage, perPage, pagesAhead int) bool
}

// FeedHandler serves the infinite-scroll image feed.
type FeedHandler struct {
	searcher      FeedSearcher
	prefetcher    PagePrefetcher
	prefetchPages int
	logger        *zap.Logger
}

// NewFeedHandler creates a FeedHandler. prefetcher may be nil, which
// disables prefetching.
func NewFeedHandler(searcher FeedSearcher, prefetcher PagePrefetcher, prefetchPages int, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		searcher:      searcher,
		prefetcher:    prefetcher,
		prefetchPages: prefetchPages,
		logger:        logger,
	}
}

// Feed serves GET /feed.
func (h *FeedHandler) Feed(c *gin.Context) { h.serve(c, feedPerPage) }

// DesignFeed serves GET /design-feed. Same contract as Feed with a larger
// default page.
func (h *FeedHandler) DesignFeed(c *gin.Context) { h.serve(c, designFeedPerPage) }

func (h *FeedHandler) serve(c *gin.Context, defaultPerPage int) {
	page, ok := intQuery(c, "page", 1)
	if !ok || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer >= 1"})
		return
	}
	perPage, ok := intQuery(c, "per_page", defaultPerPage)
	if !ok || perPage < 1 || perPage > maxPerPage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "per_page must be an integer between 1 and 100"})
		return
	}
	useAggregated := true
	if raw := c.Query("use_aggregated"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "use_aggregated must be a boolean"})
			return
		}
		useAggregated = b
	}

	params := service.FeedParams{
		Query:       c.Query("query"),
		Style:       c.Query("style"),
		RoomType:    c.Query("room_type"),
		LayoutType:  c.Query("layout_type"),
		Lighting:    c.Query("lighting"),
		PaletteMode: c.Query("palette_mode"),
		Colors:      service.SplitCSV(c.Query("colors")),
		Materials:   service.SplitCSV(c.Query("materials")),
	}
	query := params.CombinedQuery()

	ctx := c.Request.Context()
	var (
		photos []model.Photo
		err    error
	)
	if useAggregated {
		photos, err = h.searcher.SearchAggregated(ctx, query, page, perPage)
	} else {
		photos, err = h.searcher.Search(ctx, query, page, perPage)
	}
	if err != nil {
		if errors.Is(err, service.ErrAllProvidersExhausted) {
			h.logger.Error("feed unavailable", zap.String("query", query), zap.Int("page", page), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "image providers are temporarily unavailable"})
			return
		}
		h.logger.Warn("feed request failed", zap.String("query", query), zap.Int("page", page), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if h.prefetcher != nil && h.prefetchPages > 0 {
		h.prefetcher.Prefetch(query, page, perPage, h.prefetchPages)
	}

	// has_more is always true: the feed never signals its end.
	c.JSON(http.StatusOK, model.FeedResponse{
		Results: photos,
		Page:    page,
		PerPage: perPage,
		HasMore: true,
		Query:   query,
	})
}

// Categories returns the design category table for UI grouping.
// Route: GET /api/v1/categories
func (h *FeedHandler) Categories(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, gin.H{"groups": filter.Groups()})
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
