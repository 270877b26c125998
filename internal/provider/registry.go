package provider

import (
	"errors"
	"fmt"
	"sort"
)

// searchCapableOrder is the fixed allow-list of providers with a real
// search endpoint, in preference order. Scrapers are appended after it in
// tier order.
var searchCapableOrder = []string{PexelsName, UnsplashName, PixabayName, WikimediaName, AmbientCGName}

// Entry pairs a provider with its tier.
type Entry struct {
	Provider Provider
	Tier     Tier
}

// Registry is the ordered, immutable provider list built at startup.
type Registry struct {
	entries []Entry
	byName  map[string]Entry
}

// NewRegistry sorts entries by tier (stable, so registration order breaks
// ties) and rejects duplicate names. Exactly one guaranteed provider is
// required: it is the correctness backstop for the aggregation engine.
func NewRegistry(entries ...Entry) (*Registry, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tier < sorted[j].Tier })

	r := &Registry{entries: sorted, byName: make(map[string]Entry, len(sorted))}
	guaranteed := 0
	for _, e := range sorted {
		if e.Provider == nil {
			return nil, errors.New("registry: nil provider")
		}
		name := e.Provider.Name()
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("registry: duplicate provider %q", name)
		}
		r.byName[name] = e
		if e.Tier == TierGuaranteed {
			guaranteed++
		}
	}
	if guaranteed != 1 {
		return nil, fmt.Errorf("registry: need exactly one guaranteed provider, got %d", guaranteed)
	}
	return r, nil
}

// Entries returns the full ordered list.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns provider names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Provider.Name()
	}
	return names
}

func (r *Registry) Get(name string) (Provider, bool) {
	e, ok := r.byName[name]
	return e.Provider, ok
}

// TierOf returns the tier a provider was registered with.
func (r *Registry) TierOf(name string) (Tier, bool) {
	e, ok := r.byName[name]
	return e.Tier, ok
}

// Guaranteed returns the guaranteed-success provider.
func (r *Registry) Guaranteed() Provider {
	return r.entries[0].Provider
}

// Placeholder returns the last-resort provider, if one is registered.
func (r *Registry) Placeholder() (Provider, bool) {
	last := r.entries[len(r.entries)-1]
	if last.Tier != TierPlaceholder {
		return nil, false
	}
	return last.Provider, true
}

// SearchCapable returns the enabled providers from the allow-list, in
// allow-list order, followed by the scrapers.
func (r *Registry) SearchCapable() []Provider {
	var out []Provider
	for _, name := range searchCapableOrder {
		if e, ok := r.byName[name]; ok {
			out = append(out, e.Provider)
		}
	}
	out = append(out, r.tier(TierDirectScraper)...)
	out = append(out, r.tier(TierDesignScraper)...)
	return out
}

func (r *Registry) FastScrapers() []Provider    { return r.tier(TierDirectScraper) }
func (r *Registry) DesignScrapers() []Provider  { return r.tier(TierDesignScraper) }
func (r *Registry) RateLimitedAPIs() []Provider { return r.tier(TierKeyedAPI) }

// Others returns every provider except the guaranteed and placeholder ones,
// in registry order.
func (r *Registry) Others() []Provider {
	var out []Provider
	for _, e := range r.entries {
		if e.Tier == TierGuaranteed || e.Tier == TierPlaceholder {
			continue
		}
		out = append(out, e.Provider)
	}
	return out
}

func (r *Registry) tier(t Tier) []Provider {
	var out []Provider
	for _, e := range r.entries {
		if e.Tier == t {
			out = append(out, e.Provider)
		}
	}
	return out
}
