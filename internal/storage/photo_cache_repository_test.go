// Repository tests run against a real SQLite file in t.TempDir(), so the
// upsert and freshness SQL is exercised exactly as in production.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleveque/design-feed/internal/model"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testDeps struct {
	cacheRepo   PhotoCacheRepository
	llmCallRepo LLMCallRepository
	clock       *fakeClock
}

// setupTestDB creates a temporary SQLite database for testing.
func setupTestDB(t *testing.T) *testDeps {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return &testDeps{
		cacheRepo:   &sqlitePhotoCacheRepository{db: db, now: clock.Now},
		llmCallRepo: NewLLMCallRepository(db),
		clock:       clock,
	}
}

func samplePhotos(ids ...string) []model.Photo {
	out := make([]model.Photo, len(ids))
	for i, id := range ids {
		out[i] = model.Photo{ID: id, ImageURL: "https://img.example.com/" + id + ".jpg", ProviderName: "test"}
	}
	return out
}

func TestPhotoCache_PutAndGet(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	entry := model.CacheEntry{Provider: "pexels", Query: "Living Room", Page: 1, Photos: samplePhotos("a", "b")}
	if err := deps.cacheRepo.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Lookup is normalized: case and extra whitespace don't matter.
	got, err := deps.cacheRepo.Get(ctx, "pexels", "  living   room ", 1, time.Hour)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Photos) != 2 || got.Photos[0].ID != "a" || got.Photos[1].ID != "b" {
		t.Errorf("unexpected photos: %+v", got.Photos)
	}
	if got.Query != "living room" || got.Provider != "pexels" || got.Page != 1 {
		t.Errorf("unexpected key: %s/%q/%d", got.Provider, got.Query, got.Page)
	}
	if !got.CreatedAt.Equal(deps.clock.Now()) {
		t.Errorf("expected created_at %v, got %v", deps.clock.Now(), got.CreatedAt)
	}

	if _, err := deps.cacheRepo.Get(ctx, "unsplash", "living room", 1, time.Hour); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss for another provider, got %v", err)
	}
}

func TestPhotoCache_Freshness(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "p", Query: "q", Page: 1, Photos: samplePhotos("a")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	deps.clock.Advance(30 * time.Minute)
	if _, err := deps.cacheRepo.Get(ctx, "p", "q", 1, time.Hour); err != nil {
		t.Errorf("expected hit at 30m with 1h max age, got %v", err)
	}

	deps.clock.Advance(31 * time.Minute)
	if _, err := deps.cacheRepo.Get(ctx, "p", "q", 1, time.Hour); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss at 61m with 1h max age, got %v", err)
	}

	// A zero max age never returns anything.
	if _, err := deps.cacheRepo.Get(ctx, "p", "q", 1, 0); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss with zero max age, got %v", err)
	}
}

func TestPhotoCache_PutReplaces(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	for _, ids := range [][]string{{"old"}, {"new1", "new2"}} {
		if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "p", Query: "q", Page: 1, Photos: samplePhotos(ids...)}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, err := deps.cacheRepo.Get(ctx, "p", "q", 1, time.Hour)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Photos) != 2 || got.Photos[0].ID != "new1" {
		t.Errorf("expected replaced entry, got %+v", got.Photos)
	}

	count, err := deps.cacheRepo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after upsert, got %d", count)
	}
}

func TestPhotoCache_GetCrossProvider_NewestWins(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "pexels", Query: "q", Page: 2, Photos: samplePhotos("older")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	deps.clock.Advance(time.Minute)
	if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "unsplash", Query: "q", Page: 2, Photos: samplePhotos("newer")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := deps.cacheRepo.GetCrossProvider(ctx, "q", 2, time.Hour)
	if err != nil {
		t.Fatalf("get cross provider: %v", err)
	}
	if len(got.Photos) != 1 || got.Photos[0].ID != "newer" || got.Provider != "unsplash" {
		t.Errorf("expected newest entry, got %+v", got)
	}

	if _, err := deps.cacheRepo.GetCrossProvider(ctx, "q", 3, time.Hour); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss for uncached page, got %v", err)
	}
}

func TestPhotoCache_GetRange_FillsGaps(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	err := deps.cacheRepo.PutBatch(ctx, []model.CacheEntry{
		{Provider: "p", Query: "q", Page: 2, Photos: samplePhotos("a")},
		{Provider: "p", Query: "q", Page: 4, Photos: samplePhotos("b", "c")},
		{Provider: "p", Query: "other", Page: 3, Photos: samplePhotos("x")},
	})
	if err != nil {
		t.Fatalf("put batch: %v", err)
	}

	got, err := deps.cacheRepo.GetRange(ctx, "q", 2, 5, time.Hour)
	if err != nil {
		t.Fatalf("get range: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 pages in range, got %d", len(got))
	}
	if len(got[2]) != 1 || len(got[4]) != 2 {
		t.Errorf("unexpected cached pages: %+v", got)
	}
	for _, page := range []int{3, 5} {
		pg, ok := got[page]
		if !ok {
			t.Errorf("page %d missing from range result", page)
		}
		if pg == nil || len(pg) != 0 {
			t.Errorf("page %d: expected empty non-nil slice, got %#v", page, pg)
		}
	}
}

func TestPhotoCache_Sweep(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "p", Query: "old", Page: 1, Photos: samplePhotos("a")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	deps.clock.Advance(200 * time.Hour)
	if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "p", Query: "new", Page: 1, Photos: samplePhotos("b")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	deleted, err := deps.cacheRepo.Sweep(ctx, 168*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}

	count, _ := deps.cacheRepo.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 remaining row, got %d", count)
	}
	if _, err := deps.cacheRepo.Get(ctx, "p", "new", 1, time.Hour); err != nil {
		t.Errorf("fresh entry should survive sweep: %v", err)
	}
}

func TestPhotoCache_EmptyPageRoundTrips(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	if err := deps.cacheRepo.Put(ctx, model.CacheEntry{Provider: "p", Query: "q", Page: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := deps.cacheRepo.Get(ctx, "p", "q", 1, time.Hour)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Photos == nil || len(got.Photos) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got.Photos)
	}
}

func TestLLMCallRepository_Create(t *testing.T) {
	deps := setupTestDB(t)
	ctx := context.Background()

	duration := int64(850)
	call := &model.LLMCall{
		Subject:    "japandi bedroom",
		Provider:   "groq",
		Model:      "llama-3.3-70b-versatile",
		Success:    true,
		DurationMs: &duration,
	}
	if err := deps.llmCallRepo.Create(ctx, call); err != nil {
		t.Fatalf("creating llm call: %v", err)
	}
	if call.ID == 0 {
		t.Error("expected call ID to be set after create")
	}

	count, err := deps.llmCallRepo.CountByProvider(ctx, "groq")
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 call, got %d", count)
	}
}
