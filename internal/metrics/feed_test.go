package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedMetrics_Records(t *testing.T) {
	m, err := NewFeedMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveProviderCall("pexels", OutcomeOK, 120*time.Millisecond)
	m.ObserveProviderCall("pexels", "rate_limited", 10*time.Millisecond)
	m.CacheLookup("memory", "hit")
	m.Swept(3)
	m.Filtered(0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("pexels", OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("pexels", "rate_limited")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("memory", "hit")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.CacheSwept), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.FilteredOut), 0)
}

func TestFeedMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewFeedMetrics(reg)
	require.NoError(t, err)

	_, err = NewFeedMetrics(reg)
	assert.Error(t, err)
}

func TestFeedMetrics_NilIsNoop(t *testing.T) {
	var m *FeedMetrics
	assert.NotPanics(t, func() {
		m.ObserveProviderCall("x", OutcomeOK, time.Second)
		m.CacheLookup("sqlite", "miss")
		m.CacheWriteFailed()
		m.Swept(1)
		m.Fallback()
		m.AllExhausted()
		m.Filtered(2)
		m.PrefetchPage("stored")
	})
}
