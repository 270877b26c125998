package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/metrics"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/provider"
)

// Prefetch page results, used as metric labels.
const (
	prefetchStored  = "stored"
	prefetchSkipped = "skipped"
	prefetchEmpty   = "empty"
	prefetchFailed  = "failed"
)

// Prefetcher warms the cache for upcoming pages in the background. Work is
// detached from the request that triggered it: a client disconnect does not
// stop it, Close does.
type Prefetcher struct {
	registry *provider.Registry
	cache    PageCache
	pipeline pipeline
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.FeedMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{} // query|page being warmed
}

// NewPrefetcher creates a prefetcher whose runs are each bounded by timeout.
func NewPrefetcher(registry *provider.Registry, cache PageCache, timeout time.Duration, logger *zap.Logger, m *metrics.FeedMetrics) *Prefetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		registry: registry,
		cache:    cache,
		pipeline: pipeline{logger: logger, metrics: m},
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
}

// Prefetch starts warming pages currentPage+1 .. currentPage+pagesAhead and
// returns immediately. Pages another prefetch of the same query is already
// warming are left to it; Prefetch reports false when that leaves nothing
// to start.
func (p *Prefetcher) Prefetch(query string, currentPage, perPage, pagesAhead int) bool {
	if pagesAhead <= 0 {
		return false
	}
	q := model.NormalizeQuery(query)

	p.mu.Lock()
	var pages []int
	for page := currentPage + 1; page <= currentPage+pagesAhead; page++ {
		key := inflightKey(q, page)
		if _, busy := p.inflight[key]; busy {
			continue
		}
		p.inflight[key] = struct{}{}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			for _, page := range pages {
				delete(p.inflight, inflightKey(q, page))
			}
			p.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("prefetch panicked", zap.String("query", query), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		defer cancel()
		p.warm(ctx, query, pages, perPage)
	}()
	return true
}

func inflightKey(query string, page int) string {
	return fmt.Sprintf("%s|%d", query, page)
}

// Run warms pages start..end synchronously and returns how many pages it
// stored. Pages already cached are skipped. A failing page is logged and
// does not stop the others; everything collected is written in one batch.
func (p *Prefetcher) Run(ctx context.Context, query string, start, end, perPage int) int {
	if end < start {
		return 0
	}
	pages := make([]int, 0, end-start+1)
	for page := start; page <= end; page++ {
		pages = append(pages, page)
	}
	return p.warm(ctx, query, pages, perPage)
}

// warm is Run over an ascending list of pages.
func (p *Prefetcher) warm(ctx context.Context, query string, pages []int, perPage int) int {
	start, end := pages[0], pages[len(pages)-1]
	cached := p.cache.GetRange(ctx, query, start, end, p.cache.MaxAge(query))

	var entries []model.CacheEntry
	for _, page := range pages {
		if len(cached[page]) > 0 {
			p.metrics.PrefetchPage(prefetchSkipped)
			continue
		}

		name, photos, err := p.fetchPage(ctx, query, page, perPage)
		switch {
		case err != nil:
			p.metrics.PrefetchPage(prefetchFailed)
			p.logger.Warn("prefetch page failed",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Error(err),
			)
		case len(photos) == 0:
			p.metrics.PrefetchPage(prefetchEmpty)
		default:
			p.metrics.PrefetchPage(prefetchStored)
			entries = append(entries, model.CacheEntry{
				Provider: name,
				Query:    query,
				Page:     page,
				Photos:   truncate(photos, perPage),
			})
		}
	}

	if len(entries) > 0 {
		// The write gets its own short deadline so a run that used up its
		// budget fetching still keeps what it fetched.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		p.cache.PutBatch(wctx, entries)
		p.logger.Info("prefetched pages",
			zap.String("query", query),
			zap.Int("start", start),
			zap.Int("end", end),
			zap.Int("stored", len(entries)),
		)
	}
	return len(entries)
}

// fetchPage tries the design scrapers, then the placeholder provider, and
// only when both yield nothing the rate-limited APIs.
func (p *Prefetcher) fetchPage(ctx context.Context, query string, page, perPage int) (name string, photos []model.Photo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic prefetching page %d: %v", page, r)
		}
	}()

	fast := p.registry.DesignScrapers()
	if ph, ok := p.registry.Placeholder(); ok {
		fast = append(fast, ph)
	}

	for _, group := range [][]provider.Provider{fast, p.registry.RateLimitedAPIs()} {
		for _, prov := range group {
			if err := ctx.Err(); err != nil {
				return "", nil, err
			}
			photos, err := p.pipeline.run(ctx, prov, query, page, perPage)
			if err == nil && len(photos) > 0 {
				return prov.Name(), photos, nil
			}
		}
	}
	return "", nil, nil
}

// Wait blocks until every running prefetch has finished.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}

// Close cancels running prefetches and waits for them to return.
func (p *Prefetcher) Close() {
	p.cancel()
	p.wg.Wait()
}
