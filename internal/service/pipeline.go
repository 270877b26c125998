package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/filter"
	"github.com/fleveque/design-feed/internal/metrics"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/provider"
)

// PageCache is the part of cachestore.Store the engine and the prefetcher
// use. Implementations never return errors: failures are misses.
type PageCache interface {
	MaxAge(query string) time.Duration
	Get(ctx context.Context, provider, query string, page int, maxAge time.Duration) ([]model.Photo, bool)
	GetCrossProvider(ctx context.Context, query string, page int, maxAge time.Duration) ([]model.Photo, bool)
	GetRange(ctx context.Context, query string, start, end int, maxAge time.Duration) map[int][]model.Photo
	Put(ctx context.Context, provider, query string, page int, photos []model.Photo)
	PutBatch(ctx context.Context, entries []model.CacheEntry)
}

// pipeline runs one provider call through fetch, the content filter and
// metadata enhancement, recording the outcome.
type pipeline struct {
	logger  *zap.Logger
	metrics *metrics.FeedMetrics
}

// run returns the filtered photos. Filtering stops once 2*perPage
// survivors are collected. A provider failure is logged and returned; an
// empty result is not an error.
func (pl pipeline) run(ctx context.Context, p provider.Provider, query string, page, perPage int) ([]model.Photo, error) {
	start := time.Now()
	photos, err := provider.Fetch(ctx, p, query, page, perPage)
	elapsed := time.Since(start)
	if err != nil {
		kind := provider.KindOf(err)
		pl.metrics.ObserveProviderCall(p.Name(), kind.String(), elapsed)
		pl.logger.Warn("provider call failed",
			zap.String("provider", p.Name()),
			zap.String("query", query),
			zap.Int("page", page),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		return nil, err
	}

	kept, rejected := filterAndEnhance(photos, 2*perPage)
	pl.metrics.Filtered(rejected)

	outcome := metrics.OutcomeOK
	if len(kept) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	pl.metrics.ObserveProviderCall(p.Name(), outcome, elapsed)
	pl.logger.Debug("provider call",
		zap.String("provider", p.Name()),
		zap.String("query", query),
		zap.Int("page", page),
		zap.Int("fetched", len(photos)),
		zap.Int("kept", len(kept)),
		zap.Duration("elapsed", elapsed),
	)
	return kept, nil
}

// filterAndEnhance keeps design photos, annotated with metadata, until
// limit survivors are collected. limit <= 0 means no limit.
func filterAndEnhance(photos []model.Photo, limit int) (kept []model.Photo, rejected int) {
	kept = make([]model.Photo, 0, len(photos))
	for _, ph := range photos {
		if limit > 0 && len(kept) >= limit {
			break
		}
		if !filter.IsValidDesignImage(ph) {
			rejected++
			continue
		}
		kept = append(kept, filter.Enhance(ph))
	}
	return kept, rejected
}

// photoPool accumulates photos in arrival order, dropping any whose dedup
// key was already seen.
type photoPool struct {
	photos []model.Photo
	seen   map[string]struct{}
}

func newPhotoPool(initial []model.Photo) *photoPool {
	p := &photoPool{seen: make(map[string]struct{}, len(initial))}
	p.add(initial, 0)
	return p
}

// add appends unseen photos, at most limit of them (limit <= 0: all), and
// returns how many were added.
func (p *photoPool) add(photos []model.Photo, limit int) int {
	added := 0
	for _, ph := range photos {
		if limit > 0 && added >= limit {
			break
		}
		key := ph.DedupKey()
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = struct{}{}
		p.photos = append(p.photos, ph)
		added++
	}
	return added
}

func (p *photoPool) len() int { return len(p.photos) }

func (p *photoPool) truncate(n int) {
	if n > 0 && len(p.photos) > n {
		p.photos = p.photos[:n]
	}
}

// window returns a copy of photos[start:end], clamped to the slice bounds.
func window(photos []model.Photo, start, end int) []model.Photo {
	if start >= len(photos) || end <= start {
		return []model.Photo{}
	}
	end = min(end, len(photos))
	out := make([]model.Photo, end-start)
	copy(out, photos[start:end])
	return out
}

func truncate(photos []model.Photo, n int) []model.Photo {
	return window(photos, 0, n)
}
