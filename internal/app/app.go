// Package app builds the object graph shared by the server and the CLI:
// storage, providers, cache, engine and the supplementary services.
package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/cachestore"
	"github.com/fleveque/design-feed/internal/config"
	"github.com/fleveque/design-feed/internal/llm"
	"github.com/fleveque/design-feed/internal/metrics"
	"github.com/fleveque/design-feed/internal/provider"
	"github.com/fleveque/design-feed/internal/service"
	"github.com/fleveque/design-feed/internal/storage"
)

// App holds every long-lived component. Close releases them.
type App struct {
	DB          *sqlx.DB
	Registry    *provider.Registry
	Cache       *cachestore.Store
	Aggregator  *service.Aggregator
	Prefetcher  *service.Prefetcher
	Advice      *service.AdviceService
	Thumbnails  *service.ThumbnailService
	LLMCallRepo storage.LLMCallRepository
	LLMNames    []string
	Metrics     *metrics.FeedMetrics
	Gatherer    prometheus.Gatherer
}

// Build opens storage and wires the components described by cfg.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a, err := build(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewFeedMetrics(reg)
	if err != nil {
		return nil, err
	}

	registry, err := NewRegistry(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("building provider registry: %w", err)
	}

	cache := cachestore.New(storage.NewPhotoCacheRepository(db), cachestore.Options{
		TTL:         cfg.Cache.TTL,
		TrendingTTL: cfg.Cache.TrendingTTL,
		MemoryTTL:   cfg.Cache.MemoryTTL,
	}, logger, m)

	aggregator := service.NewAggregator(registry, provider.NewSelector(registry, nil), cache, service.AggregatorConfig{
		FastDeadline:        cfg.Aggregation.FastDeadline,
		EnrichmentDeadline:  cfg.Aggregation.EnrichmentDeadline,
		EnrichmentProviders: cfg.Aggregation.EnrichmentProviders,
		MaxPages:            cfg.Aggregation.MaxPages,
	}, logger, m)

	prefetcher := service.NewPrefetcher(registry, cache, cfg.Aggregation.PrefetchTimeout, logger, m)

	llmCalls := storage.NewLLMCallRepository(db)
	clients := NewLLMClients(cfg.LLM, &http.Client{Timeout: 60 * time.Second})
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.ProviderName())
	}
	if len(clients) == 0 {
		logger.Info("no LLM provider configured, design advice disabled")
	}

	fs, err := storage.NewFileSystem(cfg.Thumbnails.Dir)
	if err != nil {
		return nil, fmt.Errorf("creating thumbnail directory: %w", err)
	}
	thumbs := service.NewThumbnailService(
		fs,
		service.NewImageProcessor(cfg.Thumbnails.Quality),
		&http.Client{Timeout: 15 * time.Second},
		cfg.Thumbnails.AllowedHosts,
		cfg.Providers.UserAgent,
		logger,
	)

	logger.Info("providers registered", zap.Strings("order", registry.Names()))

	return &App{
		DB:          db,
		Registry:    registry,
		Cache:       cache,
		Aggregator:  aggregator,
		Prefetcher:  prefetcher,
		Advice:      service.NewAdviceService(clients, cfg.LLM.RatePerMinute, llmCalls, logger),
		Thumbnails:  thumbs,
		LLMCallRepo: llmCalls,
		LLMNames:    names,
		Metrics:     m,
		Gatherer:    reg,
	}, nil
}

// Close stops background prefetches and closes the database.
func (a *App) Close() error {
	a.Prefetcher.Close()
	return a.DB.Close()
}

// NewRegistry builds the provider list from config: the curated catalog,
// configured scrapers, enabled free APIs, keyed APIs that have a key, and
// the placeholder service last.
func NewRegistry(cfg config.ProvidersConfig) (*provider.Registry, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	opts := func(ratePerMinute int) provider.HTTPOptions {
		return provider.HTTPOptions{Client: client, UserAgent: cfg.UserAgent, RatePerMinute: ratePerMinute}
	}

	entries := []provider.Entry{{Provider: provider.NewCuratedProvider(), Tier: provider.TierGuaranteed}}

	for _, s := range cfg.Scrapers {
		tier := provider.TierDesignScraper
		if s.Tier == config.ScraperTierDirect {
			tier = provider.TierDirectScraper
		}
		entries = append(entries, provider.Entry{
			Provider: provider.NewScraperProvider(provider.Site{Name: s.Name, SearchURL: s.SearchURL}, opts(0)),
			Tier:     tier,
		})
	}

	if cfg.Wikimedia.Enabled {
		entries = append(entries, provider.Entry{Provider: provider.NewWikimediaProvider(opts(0)), Tier: provider.TierFreeAPI})
	}
	if cfg.AmbientCG.Enabled {
		entries = append(entries, provider.Entry{Provider: provider.NewAmbientCGProvider(opts(0)), Tier: provider.TierFreeAPI})
	}

	if k := cfg.Pexels; k.APIKey != "" {
		entries = append(entries, provider.Entry{Provider: provider.NewPexelsProvider(k.APIKey, opts(k.RatePerMinute)), Tier: provider.TierKeyedAPI})
	}
	if k := cfg.Unsplash; k.APIKey != "" {
		entries = append(entries, provider.Entry{Provider: provider.NewUnsplashProvider(k.APIKey, opts(k.RatePerMinute)), Tier: provider.TierKeyedAPI})
	}
	if k := cfg.Pixabay; k.APIKey != "" {
		entries = append(entries, provider.Entry{Provider: provider.NewPixabayProvider(k.APIKey, opts(k.RatePerMinute)), Tier: provider.TierKeyedAPI})
	}

	if cfg.Picsum.Enabled {
		entries = append(entries, provider.Entry{Provider: provider.NewPicsumProvider(opts(0)), Tier: provider.TierPlaceholder})
	}

	return provider.NewRegistry(entries...)
}

// NewLLMClients returns the advice clients in provider_order, skipping
// providers without an API key.
func NewLLMClients(cfg config.LLMConfig, httpClient *http.Client) []llm.Client {
	var clients []llm.Client
	for _, name := range cfg.ProviderOrder {
		m, ok := cfg.Model(name)
		if !ok || m.APIKey == "" {
			continue
		}
		switch name {
		case config.LLMGroq:
			clients = append(clients, llm.NewOpenAIClient(name, m.APIKey, llm.GroqBaseURL, m.Model, httpClient))
		case config.LLMGemini:
			clients = append(clients, llm.NewOpenAIClient(name, m.APIKey, llm.GeminiBaseURL, m.Model, httpClient))
		case config.LLMAnthropic:
			clients = append(clients, llm.NewAnthropicClient(m.APIKey, m.Model, "", httpClient))
		}
	}
	return clients
}
