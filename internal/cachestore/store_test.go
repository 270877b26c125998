package cachestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache's janitor lives until the cache is garbage collected.
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

var testOpts = Options{TTL: 24 * time.Hour, TrendingTTL: time.Hour, MemoryTTL: time.Minute}

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(storage.NewPhotoCacheRepository(db), testOpts, zap.NewNop(), nil)
}

// brokenRepo fails every call, standing in for a locked or corrupt database.
type brokenRepo struct{ calls int }

var errDisk = errors.New("disk I/O error")

func (b *brokenRepo) Get(context.Context, string, string, int, time.Duration) (*model.CacheEntry, error) {
	b.calls++
	return nil, errDisk
}
func (b *brokenRepo) GetCrossProvider(context.Context, string, int, time.Duration) (*model.CacheEntry, error) {
	b.calls++
	return nil, errDisk
}
func (b *brokenRepo) GetRange(context.Context, string, int, int, time.Duration) (map[int][]model.Photo, error) {
	b.calls++
	return nil, errDisk
}
func (b *brokenRepo) Put(context.Context, model.CacheEntry) error {
	b.calls++
	return errDisk
}
func (b *brokenRepo) PutBatch(context.Context, []model.CacheEntry) error {
	b.calls++
	return errDisk
}
func (b *brokenRepo) Sweep(context.Context, time.Duration) (int64, error) {
	b.calls++
	return 0, errDisk
}
func (b *brokenRepo) Count(context.Context) (int64, error) {
	b.calls++
	return 0, errDisk
}

func page(ids ...string) []model.Photo {
	out := make([]model.Photo, len(ids))
	for i, id := range ids {
		out[i] = model.Photo{ID: id, ImageURL: "https://img.example.com/" + id}
	}
	return out
}

func TestStore_PutThenGetBothKeys(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	s.Put(ctx, "pexels", "Loft", 1, page("a", "b"))

	got, ok := s.Get(ctx, "pexels", "loft", 1, time.Hour)
	require.True(t, ok)
	assert.Len(t, got, 2)

	got, ok = s.GetCrossProvider(ctx, " LOFT ", 1, time.Hour)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].ID)

	_, ok = s.GetCrossProvider(ctx, "loft", 2, time.Hour)
	assert.False(t, ok)
}

func TestStore_SQLiteBacksMemory(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	s.Put(ctx, "pexels", "loft", 1, page("a"))
	s.mem.Flush()

	got, ok := s.GetCrossProvider(ctx, "loft", 1, time.Hour)
	require.True(t, ok, "entry must survive a memory flush")
	assert.Equal(t, "a", got[0].ID)
}

func TestStore_ZeroMaxAgeNeverHits(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	s.Put(ctx, "pexels", "loft", 1, page("a"))

	_, ok := s.Get(ctx, "pexels", "loft", 1, 0)
	assert.False(t, ok)
	_, ok = s.GetCrossProvider(ctx, "loft", 1, 0)
	assert.False(t, ok)
}

func TestStore_MemoryRespectsMaxAge(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Put(ctx, "pexels", "loft", 1, page("a"))

	now = now.Add(2 * time.Hour)
	_, ok := s.memGet(providerKey("pexels", "loft", 1), time.Hour)
	assert.False(t, ok, "a stale memory entry is a miss even before go-cache expires it")
}

func TestStore_ReturnedSlicesAreCopies(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	s.Put(ctx, "pexels", "loft", 1, page("a", "b"))

	got, ok := s.GetCrossProvider(ctx, "loft", 1, time.Hour)
	require.True(t, ok)
	got[0].ID = "mutated"

	again, ok := s.GetCrossProvider(ctx, "loft", 1, time.Hour)
	require.True(t, ok)
	assert.Equal(t, "a", again[0].ID)
}

func TestStore_FailuresAreSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := &brokenRepo{}
	s := New(repo, testOpts, zap.New(core), nil)
	ctx := context.Background()

	_, ok := s.Get(ctx, "pexels", "loft", 1, time.Hour)
	assert.False(t, ok)
	_, ok = s.GetCrossProvider(ctx, "loft", 1, time.Hour)
	assert.False(t, ok)

	pages := s.GetRange(ctx, "loft", 2, 4, time.Hour)
	assert.Len(t, pages, 3)
	for p := 2; p <= 4; p++ {
		assert.NotNil(t, pages[p])
		assert.Empty(t, pages[p])
	}

	assert.NotPanics(t, func() {
		s.Put(ctx, "pexels", "loft", 1, page("a"))
		s.PutBatch(ctx, []model.CacheEntry{{Provider: "pexels", Query: "loft", Page: 2, Photos: page("b")}})
	})
	assert.Zero(t, s.Sweep(ctx, time.Hour))

	assert.Equal(t, 3, logs.FilterMessage("cache read failed, treating as miss").Len()+
		logs.FilterMessage("cache range read failed, treating as miss").Len())
	assert.Equal(t, 1, logs.FilterMessage("cache write failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("cache batch write failed").Len())

	// The memory layer still serves what this process wrote.
	got, ok := s.GetCrossProvider(ctx, "loft", 2, time.Hour)
	require.True(t, ok)
	assert.Equal(t, "b", got[0].ID)
}

func TestStore_AggregatedPoolIsNotCrossProvider(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	s.Put(ctx, model.AggregatedProvider, "loft", 0, page("pool"))

	_, ok := s.GetCrossProvider(ctx, "loft", 0, time.Hour)
	assert.False(t, ok, "the pool is only reachable under its own key")
	got, ok := s.Get(ctx, model.AggregatedProvider, "loft", 0, time.Hour)
	require.True(t, ok)
	assert.Equal(t, "pool", got[0].ID)
}

func TestStore_MaxAge(t *testing.T) {
	s := New(&brokenRepo{}, testOpts, zap.NewNop(), nil)
	assert.Equal(t, time.Hour, s.MaxAge("  "))
	assert.Equal(t, 24*time.Hour, s.MaxAge("loft"))
}

func TestStore_SweeperStopsWithContext(t *testing.T) {
	s := newSQLiteStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := s.StartSweeper(ctx, 5*time.Millisecond, time.Hour)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
