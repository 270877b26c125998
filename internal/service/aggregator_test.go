package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/cachestore"
	"github.com/fleveque/design-feed/internal/filter"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/provider"
	"github.com/fleveque/design-feed/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// stubProvider serves generated photos through real jason records, so the
// full Fetch/Format path runs.
type stubProvider struct {
	name      string
	gen       func(query string, page, perPage int) []model.Photo
	err       error
	failFirst int32         // fail this many calls with an upstream error first
	delay     time.Duration // honours ctx
	calls     atomic.Int32
	cancelled atomic.Bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, query string, page, perPage int) (provider.RawResponse, error) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			s.cancelled.Store(true)
			return nil, ctx.Err()
		}
	}
	if n <= s.failFirst {
		return nil, provider.NewError(s.name, provider.KindUpstream, 503, errors.New("flaky"))
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.gen == nil {
		return provider.ListShape{}, nil
	}
	return provider.ListShape{Records: toRecords(s.gen(query, page, perPage))}, nil
}

func (s *stubProvider) Format(raw provider.RawResponse) []model.Photo {
	var out []model.Photo
	for _, rec := range provider.Records(raw) {
		id, _ := rec.GetString("id")
		imageURL, _ := rec.GetString("image_url")
		title, _ := rec.GetString("title")
		tags, _ := rec.GetStringArray("tags")
		out = append(out, model.Photo{ID: id, ImageURL: imageURL, Title: title, Tags: tags})
	}
	return out
}

func toRecords(photos []model.Photo) []*jason.Object {
	out := make([]*jason.Object, 0, len(photos))
	for _, ph := range photos {
		b, err := json.Marshal(ph)
		if err != nil {
			panic(err)
		}
		obj, err := jason.NewObjectFromBytes(b)
		if err != nil {
			panic(err)
		}
		out = append(out, obj)
	}
	return out
}

// designPhotos generates perPage design photos whose ids are unique per
// (prefix, page, index).
func designPhotos(prefix string) func(string, int, int) []model.Photo {
	return fixedDesignPhotos(prefix, 0)
}

// fixedDesignPhotos is designPhotos with a fixed count; n <= 0 means perPage.
func fixedDesignPhotos(prefix string, n int) func(string, int, int) []model.Photo {
	return func(_ string, page, perPage int) []model.Photo {
		count := n
		if count <= 0 {
			count = perPage
		}
		out := make([]model.Photo, count)
		for i := range out {
			id := fmt.Sprintf("%s-%d-%d", prefix, page, i)
			out[i] = model.Photo{
				ID:       id,
				ImageURL: "https://img.example.com/" + id + ".jpg",
				Title:    "Modern Living Room Design",
				Tags:     []string{"interior", "design"},
			}
		}
		return out
	}
}

func noisePhotos(_ string, page, perPage int) []model.Photo {
	out := make([]model.Photo, perPage)
	for i := range out {
		id := fmt.Sprintf("noise-%d-%d", page, i)
		out[i] = model.Photo{
			ID:       id,
			ImageURL: "https://img.example.com/" + id + ".jpg",
			Title:    "Family Portrait at Beach",
			Tags:     []string{"family", "beach"},
		}
	}
	return out
}

func newTestStore(t *testing.T) *cachestore.Store {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return cachestore.New(storage.NewPhotoCacheRepository(db), cachestore.Options{
		TTL:         24 * time.Hour,
		TrendingTTL: time.Hour,
	}, zap.NewNop(), nil)
}

func newTestAggregator(t *testing.T, cfg AggregatorConfig, entries ...provider.Entry) (*Aggregator, *cachestore.Store) {
	t.Helper()
	reg, err := provider.NewRegistry(entries...)
	require.NoError(t, err)
	store := newTestStore(t)
	a := NewAggregator(reg, provider.NewSelector(reg, nil), store, cfg, zap.NewNop(), nil)
	a.shuffle = func(int, func(i, j int)) {}
	return a, store
}

var fastCfg = AggregatorConfig{
	FastDeadline:       100 * time.Millisecond,
	EnrichmentDeadline: 150 * time.Millisecond,
	MaxPages:           5,
}

func assertFeedInvariants(t *testing.T, photos []model.Photo) {
	t.Helper()
	seen := make(map[string]bool)
	for _, ph := range photos {
		assert.False(t, seen[ph.DedupKey()], "duplicate %s", ph.DedupKey())
		seen[ph.DedupKey()] = true
		assert.True(t, filter.IsValidDesignImage(ph), "%s should pass the filter", ph.ID)
		assert.NotNil(t, ph.Metadata, "%s should carry metadata", ph.ID)
	}
}

func TestSearch_SecondCallServedFromCache(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	pexels := &stubProvider{name: provider.PexelsName, gen: designPhotos("pexels")}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: pexels, Tier: provider.TierKeyedAPI},
	)
	ctx := context.Background()

	first, err := a.Search(ctx, "sofa", 1, 10)
	require.NoError(t, err)
	require.Len(t, first, 10)
	assert.Equal(t, provider.PexelsName, first[0].ProviderName)

	second, err := a.Search(ctx, "sofa", 1, 10)
	require.NoError(t, err)

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
	assert.EqualValues(t, 1, pexels.calls.Load())
	assert.Zero(t, guaranteed.calls.Load())
}

func TestSearch_FallsBackOnEveryErrorKind(t *testing.T) {
	kinds := []provider.Kind{
		provider.KindRateLimited,
		provider.KindUnauthorized,
		provider.KindUpstream,
		provider.KindTimeout,
		provider.KindMalformed,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
			pexels := &stubProvider{name: provider.PexelsName, err: provider.NewError(provider.PexelsName, kind, 0, errors.New("boom"))}
			a, _ := newTestAggregator(t, fastCfg,
				provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
				provider.Entry{Provider: pexels, Tier: provider.TierKeyedAPI},
			)

			photos, err := a.Search(context.Background(), "sofa", 1, 10)
			require.NoError(t, err)
			require.Len(t, photos, 10)
			assert.Equal(t, provider.CuratedName, photos[0].ProviderName)
			assert.EqualValues(t, 1, pexels.calls.Load())
			assert.EqualValues(t, 1, guaranteed.calls.Load())
		})
	}
}

func TestSearch_FallsBackWhenNothingSurvivesFilter(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	pexels := &stubProvider{name: provider.PexelsName, gen: noisePhotos}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: pexels, Tier: provider.TierKeyedAPI},
	)

	photos, err := a.Search(context.Background(), "sofa", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, provider.CuratedName, photos[0].ProviderName)
	assertFeedInvariants(t, photos)
}

func TestSearchFallback_Order(t *testing.T) {
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: &stubProvider{name: provider.PicsumName}, Tier: provider.TierPlaceholder},
		provider.Entry{Provider: &stubProvider{name: provider.PexelsName}, Tier: provider.TierKeyedAPI},
		provider.Entry{Provider: &stubProvider{name: provider.WikimediaName}, Tier: provider.TierFreeAPI},
		provider.Entry{Provider: &stubProvider{name: provider.CuratedName}, Tier: provider.TierGuaranteed},
	)

	names := func(ps []provider.Provider) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name())
		}
		return out
	}

	assert.Equal(t,
		[]string{provider.CuratedName, provider.WikimediaName, provider.PicsumName},
		names(a.fallbackOrder(provider.PexelsName)))
	assert.Equal(t,
		[]string{provider.WikimediaName, provider.PexelsName, provider.PicsumName},
		names(a.fallbackOrder(provider.CuratedName)))
	assert.Equal(t,
		[]string{provider.CuratedName, provider.WikimediaName, provider.PexelsName},
		names(a.fallbackOrder(provider.PicsumName)))
}

func TestSearchFallback_ExhaustedIsTheOnlyError(t *testing.T) {
	boom := errors.New("down")
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: &stubProvider{name: provider.CuratedName, err: boom}, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: &stubProvider{name: provider.PexelsName, err: boom}, Tier: provider.TierKeyedAPI},
		provider.Entry{Provider: &stubProvider{name: provider.PicsumName, gen: noisePhotos}, Tier: provider.TierPlaceholder},
	)

	_, err := a.Search(context.Background(), "sofa", 1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
}

func TestSearchAggregated_SlowProvidersDoNotStall(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	scraper := &stubProvider{name: "burst", gen: designPhotos("burst"), delay: 10 * time.Second}
	wiki := &stubProvider{name: provider.WikimediaName, gen: designPhotos("wiki"), delay: 10 * time.Second}
	a, _ := newTestAggregator(t, DefaultAggregatorConfig(),
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: scraper, Tier: provider.TierDirectScraper},
		provider.Entry{Provider: wiki, Tier: provider.TierFreeAPI},
	)

	start := time.Now()
	photos, err := a.SearchAggregated(context.Background(), "modern living room", 1, 20)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, photos, 20)
	assert.Less(t, elapsed, 2500*time.Millisecond)
	assertFeedInvariants(t, photos)

	assert.Eventually(t, scraper.cancelled.Load, time.Second, 10*time.Millisecond,
		"the straggler must be cancelled, not just ignored")
}

func TestSearchAggregated_PagesDoNotOverlap(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
	)
	ctx := context.Background()

	page1, err := a.SearchAggregated(ctx, "loft", 1, 15)
	require.NoError(t, err)
	page2, err := a.SearchAggregated(ctx, "loft", 2, 15)
	require.NoError(t, err)
	require.Len(t, page1, 15)
	require.Len(t, page2, 15)

	assertFeedInvariants(t, append(append([]model.Photo{}, page1...), page2...))
	assert.EqualValues(t, 2, guaranteed.calls.Load())

	again, err := a.SearchAggregated(ctx, "loft", 1, 15)
	require.NoError(t, err)
	assert.Equal(t, page1, again)
	assert.EqualValues(t, 2, guaranteed.calls.Load(), "page 1 comes from the pool")
}

func TestSearchAggregated_MergesScrapersAndDedups(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("shared")}
	// Same ids as the guaranteed provider plus a few of its own.
	scraper := &stubProvider{name: "burst", gen: func(q string, page, perPage int) []model.Photo {
		return append(designPhotos("shared")(q, page, perPage), fixedDesignPhotos("burst", 4)(q, page, perPage)...)
	}}
	a, store := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: scraper, Tier: provider.TierDirectScraper},
	)
	ctx := context.Background()

	photos, err := a.SearchAggregated(ctx, "loft", 1, 10)
	require.NoError(t, err)
	assert.Len(t, photos, 10)
	assert.Equal(t, provider.CuratedName, photos[0].ProviderName, "guaranteed results come first")

	pool, ok := store.Get(ctx, model.AggregatedProvider, "loft", 0, time.Hour)
	require.True(t, ok)
	assert.Len(t, pool, 14)
	assertFeedInvariants(t, pool)

	// A page warmed in the background joins the next round after the
	// guaranteed results, never ahead of them.
	warmed := fixedDesignPhotos("picsum", 3)("loft", 2, 10)
	for i := range warmed {
		warmed[i] = filter.Enhance(warmed[i])
	}
	store.Put(ctx, provider.PicsumName, "loft", 2, warmed)

	_, err = a.SearchAggregated(ctx, "loft", 2, 10)
	require.NoError(t, err)

	pool, ok = store.Get(ctx, model.AggregatedProvider, "loft", 0, time.Hour)
	require.True(t, ok)
	require.Len(t, pool, 31)
	assert.Equal(t, "shared-2-0", pool[14].ID, "round two opens with the guaranteed provider")
	assert.Equal(t, "picsum-2-0", pool[24].ID)
	assert.Equal(t, "burst-2-0", pool[27].ID)
	assertFeedInvariants(t, pool)
}

func TestSearchAggregated_RoundOutlivesDepartedCaller(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	scraper := &stubProvider{name: "burst", gen: fixedDesignPhotos("burst", 4), delay: 200 * time.Millisecond}
	cfg := fastCfg
	cfg.FastDeadline = time.Second
	a, store := newTestAggregator(t, cfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: scraper, Tier: provider.TierDirectScraper},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	stayed := make(chan []model.Photo, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		photos, _ := a.SearchAggregated(context.Background(), "loft", 1, 10)
		stayed <- photos
	}()

	_, err := a.SearchAggregated(ctx, "loft", 1, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case photos := <-stayed:
		assert.Len(t, photos, 10, "a caller sharing the round still gets its page")
	case <-time.After(3 * time.Second):
		t.Fatal("shared round never finished")
	}

	pool, ok := store.Get(context.Background(), model.AggregatedProvider, "loft", 0, time.Hour)
	require.True(t, ok)
	assert.Len(t, pool, 14, "scraper results made it into the pool")
	assert.False(t, scraper.cancelled.Load())
	assert.EqualValues(t, 1, guaranteed.calls.Load())
}

func TestSearchAggregated_EnrichesWhenShort(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: fixedDesignPhotos("curated", 4)}
	wiki := &stubProvider{name: provider.WikimediaName, gen: designPhotos("wiki")}
	noisy := &stubProvider{name: provider.PexelsName, gen: noisePhotos}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: wiki, Tier: provider.TierFreeAPI},
		provider.Entry{Provider: noisy, Tier: provider.TierKeyedAPI},
	)

	photos, err := a.SearchAggregated(context.Background(), "loft", 1, 10)
	require.NoError(t, err)
	assert.Len(t, photos, 10)
	assertFeedInvariants(t, photos)
	assert.EqualValues(t, 1, wiki.calls.Load())
	assert.EqualValues(t, 1, noisy.calls.Load())
}

func TestSearchAggregated_BeyondMaxPagesBypassesPool(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	cfg := fastCfg
	cfg.MaxPages = 2
	a, store := newTestAggregator(t, cfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
	)
	ctx := context.Background()

	photos, err := a.SearchAggregated(ctx, "loft", 4, 10)
	require.NoError(t, err)
	require.Len(t, photos, 10)
	assert.Equal(t, "curated-4-0", photos[0].ID)

	_, ok := store.Get(ctx, model.AggregatedProvider, "loft", 0, time.Hour)
	assert.False(t, ok)
}

func TestSearchAggregated_SkippedPagesAreFilled(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated")}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
	)

	photos, err := a.SearchAggregated(context.Background(), "loft", 3, 10)
	require.NoError(t, err)
	require.Len(t, photos, 10)
	assert.Equal(t, "curated-3-0", photos[0].ID)
	assert.EqualValues(t, 3, guaranteed.calls.Load())
}

func TestSearchAggregated_LastResort(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, gen: designPhotos("curated"), failFirst: 1}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
	)

	photos, err := a.SearchAggregated(context.Background(), "loft", 1, 10)
	require.NoError(t, err)
	assert.Len(t, photos, 10)
	assert.EqualValues(t, 2, guaranteed.calls.Load())
}

func TestSearchAggregated_ExhaustedWhenGuaranteedIsDown(t *testing.T) {
	guaranteed := &stubProvider{name: provider.CuratedName, err: errors.New("down")}
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: guaranteed, Tier: provider.TierGuaranteed},
	)

	_, err := a.SearchAggregated(context.Background(), "loft", 1, 10)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
}

func TestSearchAggregated_RealCuratedNeverEmpty(t *testing.T) {
	a, _ := newTestAggregator(t, fastCfg,
		provider.Entry{Provider: provider.NewCuratedProvider(), Tier: provider.TierGuaranteed},
	)

	for _, q := range []string{"", "modern living room", "zzz qqq", "Scandinavian bedroom"} {
		for _, n := range []int{1, 20, 100} {
			photos, err := a.SearchAggregated(context.Background(), q, 1, n)
			require.NoError(t, err, "query %q", q)
			assert.Len(t, photos, n, "query %q per_page %d", q, n)
			assertFeedInvariants(t, photos)
		}
	}
}

func TestEnrichmentProviders_RotateByPage(t *testing.T) {
	cfg := fastCfg
	cfg.EnrichmentProviders = 2
	a, _ := newTestAggregator(t, cfg,
		provider.Entry{Provider: &stubProvider{name: provider.CuratedName}, Tier: provider.TierGuaranteed},
		provider.Entry{Provider: &stubProvider{name: "burst"}, Tier: provider.TierDirectScraper},
		provider.Entry{Provider: &stubProvider{name: "houzz"}, Tier: provider.TierDesignScraper},
		provider.Entry{Provider: &stubProvider{name: provider.WikimediaName}, Tier: provider.TierFreeAPI},
		provider.Entry{Provider: &stubProvider{name: provider.PexelsName}, Tier: provider.TierKeyedAPI},
		provider.Entry{Provider: &stubProvider{name: provider.PicsumName}, Tier: provider.TierPlaceholder},
	)

	names := func(page int) []string {
		var out []string
		for _, p := range a.enrichmentProviders(page) {
			out = append(out, p.Name())
		}
		return out
	}
	assert.Equal(t, []string{"houzz", provider.WikimediaName}, names(1))
	assert.Equal(t, []string{provider.PexelsName, "houzz"}, names(2))
}
