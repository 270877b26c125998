// Package metrics holds the Prometheus collectors for the feed pipeline.
// Every method is safe to call on a nil *FeedMetrics, so components built
// without metrics (CLI runs, most tests) skip instrumentation for free.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for provider calls.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
)

// FeedMetrics contains all Prometheus metrics for provider calls, the cache
// and the background prefetcher.
type FeedMetrics struct {
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	CacheWriteErrors prometheus.Counter
	CacheSwept       prometheus.Counter
	Fallbacks        prometheus.Counter
	Exhausted        prometheus.Counter
	FilteredOut      prometheus.Counter
	PrefetchPages    *prometheus.CounterVec
}

// NewFeedMetrics creates the collectors and registers them on registry.
func NewFeedMetrics(registry prometheus.Registerer) (*FeedMetrics, error) {
	m := &FeedMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("registering feed metrics: %w", err)
	}
	return m, nil
}

func (m *FeedMetrics) initMetrics() {
	m.ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "design_feed_provider_requests_total",
		Help: "Provider calls by provider and outcome (ok, empty, or a failure kind).",
	}, []string{"provider", "outcome"})

	m.ProviderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "design_feed_provider_request_duration_seconds",
		Help:    "Duration of provider search calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
	}, []string{"provider"})

	m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "design_feed_cache_lookups_total",
		Help: "Cache lookups by layer (memory, sqlite) and result (hit, miss, error).",
	}, []string{"layer", "result"})

	m.CacheWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "design_feed_cache_write_errors_total",
		Help: "Cache writes that failed and were dropped.",
	})

	m.CacheSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "design_feed_cache_swept_entries_total",
		Help: "Cache entries deleted by the sweeper.",
	})

	m.Fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "design_feed_fallbacks_total",
		Help: "Searches that entered the fallback procedure.",
	})

	m.Exhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "design_feed_providers_exhausted_total",
		Help: "Searches where every provider failed.",
	})

	m.FilteredOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "design_feed_filtered_out_total",
		Help: "Photos rejected by the design content filter.",
	})

	m.PrefetchPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "design_feed_prefetch_pages_total",
		Help: "Prefetched pages by result (stored, skipped, empty, failed).",
	}, []string{"result"})
}

// ObserveProviderCall records one provider call and its latency.
func (m *FeedMetrics) ObserveProviderCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *FeedMetrics) CacheLookup(layer, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(layer, result).Inc()
}

func (m *FeedMetrics) CacheWriteFailed() {
	if m == nil {
		return
	}
	m.CacheWriteErrors.Inc()
}

func (m *FeedMetrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheSwept.Add(float64(n))
}

func (m *FeedMetrics) Fallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

func (m *FeedMetrics) AllExhausted() {
	if m == nil {
		return
	}
	m.Exhausted.Inc()
}

func (m *FeedMetrics) Filtered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FilteredOut.Add(float64(n))
}

func (m *FeedMetrics) PrefetchPage(result string) {
	if m == nil {
		return
	}
	m.PrefetchPages.WithLabelValues(result).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *FeedMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ProviderRequests.Collect(ch)
	m.ProviderDuration.Collect(ch)
	m.CacheLookups.Collect(ch)
	ch <- m.CacheWriteErrors
	ch <- m.CacheSwept
	ch <- m.Fallbacks
	ch <- m.Exhausted
	ch <- m.FilteredOut
	m.PrefetchPages.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *FeedMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ProviderRequests.Describe(ch)
	m.ProviderDuration.Describe(ch)
	m.CacheLookups.Describe(ch)
	ch <- m.CacheWriteErrors.Desc()
	ch <- m.CacheSwept.Desc()
	ch <- m.Fallbacks.Desc()
	ch <- m.Exhausted.Desc()
	ch <- m.FilteredOut.Desc()
	m.PrefetchPages.Describe(ch)
}
