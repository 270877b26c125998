// Package cachestore is the cache the request path talks to. It layers an
// in-process go-cache map over the SQLite repository and turns every
// storage failure into a miss (reads) or a logged no-op (writes): the cache
// is an optimization, never a reason for a request to fail.
package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/metrics"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/storage"
)

// Options tunes freshness and the memory layer.
type Options struct {
	TTL         time.Duration // max age for normal queries
	TrendingTTL time.Duration // max age for the empty (trending) query
	MemoryTTL   time.Duration // how long pages live in the memory layer
}

// Store is safe for concurrent use.
type Store struct {
	repo    storage.PhotoCacheRepository
	mem     *gocache.Cache
	opts    Options
	logger  *zap.Logger
	metrics *metrics.FeedMetrics
	now     func() time.Time
}

// New creates a Store. m may be nil.
func New(repo storage.PhotoCacheRepository, opts Options, logger *zap.Logger, m *metrics.FeedMetrics) *Store {
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = 10 * time.Minute
	}
	return &Store{
		repo:    repo,
		mem:     gocache.New(opts.MemoryTTL, 2*opts.MemoryTTL),
		opts:    opts,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// MaxAge returns the freshness window for a query: short for trending,
// since the trending listing is expected to move.
func (s *Store) MaxAge(query string) time.Duration {
	if model.IsTrending(query) {
		return s.opts.TrendingTTL
	}
	return s.opts.TTL
}

// Get returns a fresh page for the exact (provider, query, page) key.
func (s *Store) Get(ctx context.Context, provider, query string, page int, maxAge time.Duration) ([]model.Photo, bool) {
	key := providerKey(provider, query, page)
	if photos, ok := s.memGet(key, maxAge); ok {
		return photos, true
	}

	entry, err := s.repo.Get(ctx, provider, query, page, maxAge)
	if !s.lookupOK(err, zap.String("provider", provider), zap.String("query", query), zap.Int("page", page)) {
		return nil, false
	}
	s.mem.Set(key, *entry, gocache.DefaultExpiration)
	return clonePhotos(entry.Photos), true
}

// GetCrossProvider returns a fresh page for (query, page) from any provider.
func (s *Store) GetCrossProvider(ctx context.Context, query string, page int, maxAge time.Duration) ([]model.Photo, bool) {
	key := crossKey(query, page)
	if photos, ok := s.memGet(key, maxAge); ok {
		return photos, true
	}

	entry, err := s.repo.GetCrossProvider(ctx, query, page, maxAge)
	if !s.lookupOK(err, zap.String("query", query), zap.Int("page", page)) {
		return nil, false
	}
	s.mem.Set(key, *entry, gocache.DefaultExpiration)
	return clonePhotos(entry.Photos), true
}

// GetRange returns one slice per page in [start, end]; uncached pages, and
// every page when storage fails, map to an empty slice.
func (s *Store) GetRange(ctx context.Context, query string, start, end int, maxAge time.Duration) map[int][]model.Photo {
	pages, err := s.repo.GetRange(ctx, query, start, end, maxAge)
	if err != nil {
		s.metrics.CacheLookup("sqlite", "error")
		s.logger.Warn("cache range read failed, treating as miss",
			zap.String("query", query), zap.Int("start", start), zap.Int("end", end), zap.Error(err))
		pages = make(map[int][]model.Photo)
		for p := start; p <= end; p++ {
			pages[p] = []model.Photo{}
		}
	}
	return pages
}

// Put upserts one page. Failures are logged and dropped.
func (s *Store) Put(ctx context.Context, provider, query string, page int, photos []model.Photo) {
	entry := model.CacheEntry{
		Provider:  provider,
		Query:     model.NormalizeQuery(query),
		Page:      page,
		Photos:    clonePhotos(photos),
		CreatedAt: s.now(),
	}
	if err := s.repo.Put(ctx, entry); err != nil {
		s.metrics.CacheWriteFailed()
		s.logger.Error("cache write failed",
			zap.String("provider", provider), zap.String("query", query), zap.Int("page", page), zap.Error(err))
	}
	// The memory layer is updated even when SQLite failed, so this process
	// still benefits from the work.
	s.remember(entry)
}

// PutBatch writes several pages in one transaction. Failures are logged and dropped.
func (s *Store) PutBatch(ctx context.Context, entries []model.CacheEntry) {
	if len(entries) == 0 {
		return
	}
	now := s.now()
	batch := make([]model.CacheEntry, len(entries))
	for i, e := range entries {
		e.Query = model.NormalizeQuery(e.Query)
		e.Photos = clonePhotos(e.Photos)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		batch[i] = e
	}

	if err := s.repo.PutBatch(ctx, batch); err != nil {
		s.metrics.CacheWriteFailed()
		s.logger.Error("cache batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
	}
	for _, e := range batch {
		s.remember(e)
	}
}

// Sweep deletes persisted entries older than maxAge and returns how many
// were removed. Storage errors are logged and reported as zero.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) int64 {
	n, err := s.repo.Sweep(ctx, maxAge)
	if err != nil {
		s.logger.Error("cache sweep failed", zap.Duration("max_age", maxAge), zap.Error(err))
		return 0
	}
	s.metrics.Swept(n)
	if n > 0 {
		s.logger.Info("cache sweep complete", zap.Int64("deleted", n), zap.Duration("max_age", maxAge))
	}
	return n
}

// StartSweeper runs Sweep every interval until ctx is cancelled. The
// returned channel is closed once the loop has exited.
func (s *Store) StartSweeper(ctx context.Context, interval, retention time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx, retention)
			}
		}
	}()
	return done
}

// Count reports how many entries are persisted.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

func (s *Store) memGet(key string, maxAge time.Duration) ([]model.Photo, bool) {
	v, ok := s.mem.Get(key)
	if !ok {
		s.metrics.CacheLookup("memory", "miss")
		return nil, false
	}
	entry := v.(model.CacheEntry)
	if !entry.Fresh(s.now(), maxAge) {
		s.metrics.CacheLookup("memory", "miss")
		return nil, false
	}
	s.metrics.CacheLookup("memory", "hit")
	return clonePhotos(entry.Photos), true
}

// lookupOK classifies a repository read: true on hit, false on miss or
// error. Errors are logged, never returned.
func (s *Store) lookupOK(err error, fields ...zap.Field) bool {
	switch {
	case err == nil:
		s.metrics.CacheLookup("sqlite", "hit")
		return true
	case errors.Is(err, storage.ErrCacheMiss):
		s.metrics.CacheLookup("sqlite", "miss")
		return false
	default:
		s.metrics.CacheLookup("sqlite", "error")
		s.logger.Warn("cache read failed, treating as miss", append(fields, zap.Error(err))...)
		return false
	}
}

// remember stores an entry under both its provider key and the
// cross-provider key, so a plain feed request sees it.
func (s *Store) remember(e model.CacheEntry) {
	s.mem.Set(providerKey(e.Provider, e.Query, e.Page), e, gocache.DefaultExpiration)
	if e.Provider != model.AggregatedProvider {
		s.mem.Set(crossKey(e.Query, e.Page), e, gocache.DefaultExpiration)
	}
}

func providerKey(provider, query string, page int) string {
	return fmt.Sprintf("p|%s|%s|%d", provider, model.NormalizeQuery(query), page)
}

func crossKey(query string, page int) string {
	return fmt.Sprintf("x|%s|%d", model.NormalizeQuery(query), page)
}

// clonePhotos copies the slice header's backing array so callers can append
// to or reorder what they get back without touching cached state.
func clonePhotos(in []model.Photo) []model.Photo {
	out := make([]model.Photo, len(in))
	copy(out, in)
	return out
}
