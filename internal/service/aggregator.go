// Package service contains the feed's business logic.
//
// Aggregator answers feed requests by combining providers:
//
//	Search:           cache, then one rotated provider, then the fallback order
//	SearchAggregated: guaranteed provider first, then deadline-bounded races
//	                  over scrapers and enrichment providers, paged out of one
//	                  accumulated pool per query
//
// Prefetcher warms the cache for the pages a scrolling client will ask for
// next. AdviceService and ThumbnailService back the supplementary endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fleveque/design-feed/internal/metrics"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/provider"
)

// ErrAllProvidersExhausted is the only search failure that reaches the HTTP
// layer. Callers check with errors.Is.
var ErrAllProvidersExhausted = errors.New("all image providers are temporarily unavailable")

// AggregatorConfig bounds the enrichment work of SearchAggregated.
type AggregatorConfig struct {
	FastDeadline        time.Duration // race over direct scrapers
	EnrichmentDeadline  time.Duration // race over the remaining providers
	EnrichmentProviders int           // how many providers the second race uses
	MaxPages            int           // pages served from the per-query pool
}

// DefaultAggregatorConfig returns the production defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		FastDeadline:        1500 * time.Millisecond,
		EnrichmentDeadline:  2 * time.Second,
		EnrichmentProviders: 3,
		MaxPages:            5,
	}
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	registry *provider.Registry
	selector *provider.Selector
	cache    PageCache
	cfg      AggregatorConfig
	pipeline pipeline
	logger   *zap.Logger
	metrics  *metrics.FeedMetrics

	rounds  singleflight.Group
	shuffle func(n int, swap func(i, j int))
}

// NewAggregator wires the engine. Zero fields in cfg take the defaults; m
// may be nil.
func NewAggregator(
	registry *provider.Registry,
	selector *provider.Selector,
	cache PageCache,
	cfg AggregatorConfig,
	logger *zap.Logger,
	m *metrics.FeedMetrics,
) *Aggregator {
	def := DefaultAggregatorConfig()
	if cfg.FastDeadline <= 0 {
		cfg.FastDeadline = def.FastDeadline
	}
	if cfg.EnrichmentDeadline <= 0 {
		cfg.EnrichmentDeadline = def.EnrichmentDeadline
	}
	if cfg.EnrichmentProviders <= 0 {
		cfg.EnrichmentProviders = def.EnrichmentProviders
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	return &Aggregator{
		registry: registry,
		selector: selector,
		cache:    cache,
		cfg:      cfg,
		pipeline: pipeline{logger: logger, metrics: m},
		logger:   logger,
		metrics:  m,
		shuffle:  rand.Shuffle,
	}
}

// Search serves one page from a single provider:
//  1. a fresh cached page from any provider
//  2. the provider the selector rotates to
//  3. SearchFallback when that provider fails or nothing survives the filter
//
// A successful page is cached under the provider that produced it.
func (a *Aggregator) Search(ctx context.Context, query string, page, perPage int) ([]model.Photo, error) {
	if cached, ok := a.cache.GetCrossProvider(ctx, query, page, a.cache.MaxAge(query)); ok && len(cached) > 0 {
		return truncate(cached, perPage), nil
	}

	name, p := a.selector.Next(query)
	photos, err := a.pipeline.run(ctx, p, query, page, perPage)
	if err != nil || len(photos) == 0 {
		return a.SearchFallback(ctx, query, page, perPage, name)
	}

	photos = truncate(photos, perPage)
	a.cache.Put(ctx, name, query, page, photos)
	return photos, nil
}

// SearchFallback tries every provider except failed: the guaranteed one
// first, the rest in random order, the placeholder last. The first provider
// with at least one surviving photo wins.
func (a *Aggregator) SearchFallback(ctx context.Context, query string, page, perPage int, failed string) ([]model.Photo, error) {
	a.metrics.Fallback()

	for _, p := range a.fallbackOrder(failed) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fallback for %q page %d: %w", query, page, err)
		}
		photos, err := a.pipeline.run(ctx, p, query, page, perPage)
		if err != nil || len(photos) == 0 {
			continue
		}

		photos = truncate(photos, perPage)
		a.cache.Put(ctx, p.Name(), query, page, photos)
		a.logger.Info("fallback provider served page",
			zap.String("failed", failed),
			zap.String("provider", p.Name()),
			zap.String("query", query),
			zap.Int("page", page),
		)
		return photos, nil
	}

	a.metrics.AllExhausted()
	a.logger.Error("all providers exhausted",
		zap.String("query", query),
		zap.Int("page", page),
	)
	return nil, fmt.Errorf("searching %q page %d: %w", query, page, ErrAllProvidersExhausted)
}

func (a *Aggregator) fallbackOrder(failed string) []provider.Provider {
	var order []provider.Provider
	if g := a.registry.Guaranteed(); g.Name() != failed {
		order = append(order, g)
	}

	var rest []provider.Provider
	for _, p := range a.registry.Others() {
		if p.Name() != failed {
			rest = append(rest, p)
		}
	}
	a.shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	order = append(order, rest...)

	if ph, ok := a.registry.Placeholder(); ok && ph.Name() != failed {
		order = append(order, ph)
	}
	return order
}

// SearchAggregated serves infinite scroll. Pages up to MaxPages are cut
// from one pool per query, cached under the aggregated provider key at
// page 0; a round of provider calls runs only when the pool does not yet
// cover the requested window. Later pages skip the pool.
//
// Concurrent requests for the same (query, page, perPage) share one round.
// A caller that goes away gets its context error while the round carries
// on and still fills the pool.
func (a *Aggregator) SearchAggregated(ctx context.Context, query string, page, perPage int) ([]model.Photo, error) {
	var photos []model.Photo
	if page > a.cfg.MaxPages {
		pool := newPhotoPool(nil)
		a.round(ctx, pool, query, page, perPage)
		photos = truncate(pool.photos, perPage)
	} else {
		key := fmt.Sprintf("%s|%d|%d", model.NormalizeQuery(query), page, perPage)
		// The round is shared, so it must outlive whichever caller started it.
		ch := a.rounds.DoChan(key, func() (any, error) {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.roundTimeout())
			defer cancel()
			return a.fromPool(rctx, query, page, perPage), nil
		})
		select {
		case res := <-ch:
			photos = truncate(res.Val.([]model.Photo), perPage)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(photos) > 0 {
		return photos, nil
	}
	return a.lastResort(ctx, query, page, perPage)
}

// roundTimeout bounds a shared round: both races plus slack for the
// guaranteed provider and the cache.
func (a *Aggregator) roundTimeout() time.Duration {
	return a.cfg.FastDeadline + a.cfg.EnrichmentDeadline + 5*time.Second
}

func (a *Aggregator) fromPool(ctx context.Context, query string, page, perPage int) []model.Photo {
	start, end := (page-1)*perPage, page*perPage

	cached, _ := a.cache.Get(ctx, model.AggregatedProvider, query, 0, a.cache.MaxAge(query))
	if len(cached) >= end {
		return window(cached, start, end)
	}

	pool := newPhotoPool(cached)
	before := pool.len()

	// A client that skipped ahead gets the skipped provider pages from the
	// guaranteed provider alone; only the requested page pays for races.
	for r := len(cached)/perPage + 1; r < page && pool.len() < start; r++ {
		a.collectGuaranteed(ctx, pool, query, r, perPage)
	}
	a.round(ctx, pool, query, page, perPage)

	pool.truncate(a.cfg.MaxPages * perPage)
	if pool.len() > before {
		a.cache.Put(ctx, model.AggregatedProvider, query, 0, pool.photos)
	}
	return window(pool.photos, start, end)
}

// round adds one provider page worth of results to pool:
//  1. the guaranteed provider, up to perPage new photos
//  2. a prefetched cross-provider page, when cached
//  3. a race over the direct scrapers under FastDeadline
//  4. when the round is still short of perPage, a race over up to
//     EnrichmentProviders of the remaining providers under EnrichmentDeadline
func (a *Aggregator) round(ctx context.Context, pool *photoPool, query string, page, perPage int) {
	added := a.collectGuaranteed(ctx, pool, query, page, perPage)

	if prefetched, ok := a.cache.GetCrossProvider(ctx, query, page, a.cache.MaxAge(query)); ok {
		added += pool.add(prefetched, 0)
	}

	fast := a.registry.FastScrapers()
	for _, photos := range a.race(ctx, fast, query, page, perPage, a.cfg.FastDeadline) {
		added += pool.add(photos, 0)
	}

	if added < perPage {
		enrich := a.enrichmentProviders(page)
		for _, photos := range a.race(ctx, enrich, query, page, perPage, a.cfg.EnrichmentDeadline) {
			added += pool.add(photos, 0)
		}
	}

	a.logger.Debug("aggregation round",
		zap.String("query", query),
		zap.Int("page", page),
		zap.Int("added", added),
		zap.Int("pool", pool.len()),
	)
}

func (a *Aggregator) collectGuaranteed(ctx context.Context, pool *photoPool, query string, page, perPage int) int {
	photos, err := a.pipeline.run(ctx, a.registry.Guaranteed(), query, page, perPage)
	if err != nil {
		return 0
	}
	return pool.add(photos, perPage)
}

// enrichmentProviders picks up to EnrichmentProviders providers that are
// neither guaranteed, placeholder nor direct scrapers, rotating the window
// by page so consecutive rounds spread the load.
func (a *Aggregator) enrichmentProviders(page int) []provider.Provider {
	var candidates []provider.Provider
	for _, p := range a.registry.Others() {
		if tier, _ := a.registry.TierOf(p.Name()); tier != provider.TierDirectScraper {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	n := min(a.cfg.EnrichmentProviders, len(candidates))
	offset := ((page - 1) * n) % len(candidates)
	out := make([]provider.Provider, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidates[(offset+i)%len(candidates)])
	}
	return out
}

// race calls every provider concurrently and returns the non-empty results
// that arrive before the deadline, in arrival order. Calls still running at
// the deadline are cancelled through their context and their results are
// dropped.
func (a *Aggregator) race(ctx context.Context, providers []provider.Provider, query string, page, perPage int, deadline time.Duration) [][]model.Photo {
	if len(providers) == 0 {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered so cancelled stragglers never block on send.
	arrivals := make(chan []model.Photo, len(providers))
	g, gctx := errgroup.WithContext(rctx)
	for _, p := range providers {
		g.Go(func() error {
			photos, err := a.pipeline.run(gctx, p, query, page, perPage)
			if err == nil && len(photos) > 0 {
				arrivals <- photos
			}
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	var out [][]model.Photo
	for {
		select {
		case photos := <-arrivals:
			out = append(out, photos)
		case <-finished:
			return drain(arrivals, out)
		case <-rctx.Done():
			return drain(arrivals, out)
		}
	}
}

func drain(ch <-chan []model.Photo, out [][]model.Photo) [][]model.Photo {
	for {
		select {
		case photos := <-ch:
			out = append(out, photos)
		default:
			return out
		}
	}
}

// lastResort asks the guaranteed provider directly for the requested page.
func (a *Aggregator) lastResort(ctx context.Context, query string, page, perPage int) ([]model.Photo, error) {
	g := a.registry.Guaranteed()
	photos, err := a.pipeline.run(ctx, g, query, page, perPage)
	if err == nil && len(photos) > 0 {
		a.logger.Warn("aggregated page empty, served guaranteed provider directly",
			zap.String("query", query),
			zap.Int("page", page),
		)
		return truncate(photos, perPage), nil
	}

	a.metrics.AllExhausted()
	return nil, fmt.Errorf("aggregating %q page %d: %w", query, page, ErrAllProvidersExhausted)
}
