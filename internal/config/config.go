// Package config handles application configuration using Viper.
// Defaults, an optional YAML file and environment variables are merged in
// that order of increasing priority, then loaded into typed structs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override:
// DESIGNFEED_SERVER_PORT=9090 → server.port=9090.
const EnvPrefix = "DESIGNFEED"

// ConfigPathEnv names the variable holding an explicit config file path.
const ConfigPathEnv = "DESIGNFEED_CONFIG_PATH"

// Scraper tiers accepted in providers.scrapers[].tier.
const (
	ScraperTierDirect = "direct"
	ScraperTierDesign = "design"
)

// Known LLM provider names for llm.provider_order.
const (
	LLMGroq      = "groq"
	LLMGemini    = "gemini"
	LLMAnthropic = "anthropic"
)

// Config is the root configuration struct.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Thumbnails  ThumbnailsConfig  `mapstructure:"thumbnails"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// CacheConfig controls result freshness and retention.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	TrendingTTL   time.Duration `mapstructure:"trending_ttl"`
	MemoryTTL     time.Duration `mapstructure:"memory_ttl"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// AggregationConfig tunes the aggregated feed and prefetching.
type AggregationConfig struct {
	FastDeadline        time.Duration `mapstructure:"fast_deadline"`
	EnrichmentDeadline  time.Duration `mapstructure:"enrichment_deadline"`
	EnrichmentProviders int           `mapstructure:"enrichment_providers"`
	MaxPages            int           `mapstructure:"max_pages"`
	PrefetchPages       int           `mapstructure:"prefetch_pages"`
	PrefetchTimeout     time.Duration `mapstructure:"prefetch_timeout"`
}

type ProvidersConfig struct {
	HTTPTimeout time.Duration   `mapstructure:"http_timeout"`
	UserAgent   string          `mapstructure:"user_agent"`
	Pexels      KeyedAPIConfig  `mapstructure:"pexels"`
	Unsplash    KeyedAPIConfig  `mapstructure:"unsplash"`
	Pixabay     KeyedAPIConfig  `mapstructure:"pixabay"`
	Wikimedia   FreeAPIConfig   `mapstructure:"wikimedia"`
	AmbientCG   FreeAPIConfig   `mapstructure:"ambientcg"`
	Picsum      FreeAPIConfig   `mapstructure:"picsum"`
	Scrapers    []ScraperConfig `mapstructure:"scrapers"`
}

// KeyedAPIConfig is a provider that is only enabled with an API key.
type KeyedAPIConfig struct {
	APIKey        string `mapstructure:"api_key"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

type FreeAPIConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ScraperConfig is one scrapable site. SearchURL holds {query} and
// optionally {page} placeholders.
type ScraperConfig struct {
	Name      string `mapstructure:"name"`
	SearchURL string `mapstructure:"search_url"`
	Tier      string `mapstructure:"tier"`
}

type LLMConfig struct {
	// ProviderOrder lists the advice providers to try, first to last.
	// Providers without an API key are skipped.
	ProviderOrder []string       `mapstructure:"provider_order"`
	RatePerMinute int            `mapstructure:"rate_per_minute"`
	Groq          LLMModelConfig `mapstructure:"groq"`
	Gemini        LLMModelConfig `mapstructure:"gemini"`
	Anthropic     LLMModelConfig `mapstructure:"anthropic"`
}

type LLMModelConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type ThumbnailsConfig struct {
	Dir          string   `mapstructure:"dir"`
	AllowedHosts []string `mapstructure:"allowed_hosts"`
	Quality      int      `mapstructure:"quality"`
}

type AuthConfig struct {
	// APIKeys guards the advice endpoint; empty leaves it open.
	APIKeys []string `mapstructure:"api_keys"`
	// AdminKeys guards the admin endpoints; empty disables them.
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/design-feed.db")

	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.trending_ttl", time.Hour)
	v.SetDefault("cache.memory_ttl", 10*time.Minute)
	v.SetDefault("cache.retention", 7*24*time.Hour)
	v.SetDefault("cache.sweep_interval", time.Hour)

	v.SetDefault("aggregation.fast_deadline", 1500*time.Millisecond)
	v.SetDefault("aggregation.enrichment_deadline", 2*time.Second)
	v.SetDefault("aggregation.enrichment_providers", 3)
	v.SetDefault("aggregation.max_pages", 5)
	v.SetDefault("aggregation.prefetch_pages", 3)
	v.SetDefault("aggregation.prefetch_timeout", 30*time.Second)

	v.SetDefault("providers.http_timeout", 8*time.Second)
	v.SetDefault("providers.user_agent", "")
	// API keys need a default, even an empty one, or env overrides are
	// invisible to Unmarshal.
	for _, name := range []string{"pexels", "unsplash", "pixabay"} {
		v.SetDefault("providers."+name+".api_key", "")
	}
	v.SetDefault("providers.pexels.rate_per_minute", 150)
	v.SetDefault("providers.unsplash.rate_per_minute", 40)
	v.SetDefault("providers.pixabay.rate_per_minute", 90)
	v.SetDefault("providers.wikimedia.enabled", true)
	v.SetDefault("providers.ambientcg.enabled", true)
	v.SetDefault("providers.picsum.enabled", true)
	v.SetDefault("providers.scrapers", []map[string]any{
		{"name": "dezeen", "search_url": "https://www.dezeen.com/page/{page}/?s={query}", "tier": ScraperTierDirect},
		{"name": "archdaily", "search_url": "https://www.archdaily.com/search/projects?q={query}&page={page}", "tier": ScraperTierDirect},
		{"name": "apartmenttherapy", "search_url": "https://www.apartmenttherapy.com/search?q={query}&page={page}", "tier": ScraperTierDesign},
		{"name": "houzz", "search_url": "https://www.houzz.com/photos/query/{query}/p/{page}", "tier": ScraperTierDesign},
	})

	v.SetDefault("llm.provider_order", []string{LLMGroq, LLMGemini, LLMAnthropic})
	v.SetDefault("llm.rate_per_minute", 10)
	v.SetDefault("llm.groq.api_key", "")
	v.SetDefault("llm.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")

	v.SetDefault("thumbnails.dir", "./storage/thumbnails")
	v.SetDefault("thumbnails.allowed_hosts", []string{
		"images.unsplash.com",
		"images.pexels.com",
		"pixabay.com",
		"upload.wikimedia.org",
		"ambientcg.com",
		"picsum.photos",
	})
	v.SetDefault("thumbnails.quality", 82)

	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")
}

// Load reads configuration from a YAML file and environment variables.
// With an empty configPath, config.yaml is looked up in . and ./config and
// may be absent.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	positive("cache.ttl", c.Cache.TTL)
	positive("cache.trending_ttl", c.Cache.TrendingTTL)
	positive("cache.memory_ttl", c.Cache.MemoryTTL)
	positive("cache.retention", c.Cache.Retention)
	positive("cache.sweep_interval", c.Cache.SweepInterval)
	positive("aggregation.fast_deadline", c.Aggregation.FastDeadline)
	positive("aggregation.enrichment_deadline", c.Aggregation.EnrichmentDeadline)
	positive("aggregation.prefetch_timeout", c.Aggregation.PrefetchTimeout)
	positive("providers.http_timeout", c.Providers.HTTPTimeout)
	if c.Aggregation.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("aggregation.max_pages must be positive, got %d", c.Aggregation.MaxPages))
	}
	if c.Aggregation.EnrichmentProviders <= 0 {
		errs = append(errs, fmt.Errorf("aggregation.enrichment_providers must be positive, got %d", c.Aggregation.EnrichmentProviders))
	}
	if c.Aggregation.PrefetchPages < 0 {
		errs = append(errs, fmt.Errorf("aggregation.prefetch_pages must not be negative, got %d", c.Aggregation.PrefetchPages))
	}

	seen := make(map[string]bool)
	for i, s := range c.Providers.Scrapers {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("providers.scrapers[%d]: name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("providers.scrapers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if !strings.Contains(s.SearchURL, "{query}") {
			errs = append(errs, fmt.Errorf("providers.scrapers[%d]: search_url must contain {query}", i))
		}
		if s.Tier != ScraperTierDirect && s.Tier != ScraperTierDesign {
			errs = append(errs, fmt.Errorf("providers.scrapers[%d]: tier must be %q or %q, got %q", i, ScraperTierDirect, ScraperTierDesign, s.Tier))
		}
	}

	for _, name := range c.LLM.ProviderOrder {
		if _, ok := c.LLM.Model(name); !ok {
			errs = append(errs, fmt.Errorf("llm.provider_order: unknown provider %q", name))
		}
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_second and rate_limit.burst must be positive"))
	}
	return errors.Join(errs...)
}

// Model returns the settings of a named LLM provider.
func (l LLMConfig) Model(name string) (LLMModelConfig, bool) {
	switch name {
	case LLMGroq:
		return l.Groq, true
	case LLMGemini:
		return l.Gemini, true
	case LLMAnthropic:
		return l.Anthropic, true
	}
	return LLMModelConfig{}, false
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
