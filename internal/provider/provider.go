// Package provider defines the contract for image sources and the adapters
// that implement it. Each provider wraps one external source (photo API,
// texture API, scraped site) behind the same two calls: Search does the
// network work, Format turns the provider's payload into model.Photo records.
package provider

import (
	"context"

	"github.com/fleveque/design-feed/internal/model"
)

// Provider is the interface every image source implements.
type Provider interface {
	// Name returns the stable provider identifier used for cache keys and logs.
	Name() string

	// Search performs the provider-specific call. Empty results are not an
	// error; failures that should trigger fallback are returned as *Error.
	Search(ctx context.Context, query string, page, perPage int) (RawResponse, error)

	// Format converts the raw payload into normalized photos. It is pure and
	// never fails: malformed records are dropped.
	Format(raw RawResponse) []model.Photo
}

// Trending is implemented by providers with a meaningful no-query listing.
type Trending interface {
	Trending(ctx context.Context, page, perPage int) (RawResponse, error)
}

// Tier orders providers by reliability and cost. The registry keeps
// providers sorted by tier; lower tiers are tried first.
type Tier int

const (
	TierGuaranteed    Tier = iota // synthetic, never fails
	TierDirectScraper             // no-key direct scrapers
	TierDesignScraper             // design-focused scrapers
	TierFreeAPI                   // free APIs without keys
	TierKeyedAPI                  // API-key gated, rate limited
	TierPlaceholder               // last-resort placeholder images
)

func (t Tier) String() string {
	switch t {
	case TierGuaranteed:
		return "guaranteed"
	case TierDirectScraper:
		return "direct_scraper"
	case TierDesignScraper:
		return "design_scraper"
	case TierFreeAPI:
		return "free_api"
	case TierKeyedAPI:
		return "keyed_api"
	case TierPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Fetch runs Search (or Trending for an empty query when supported) and
// Format, and stamps ProviderName on every record. Photos without an image
// URL are dropped here so callers never see unusable records.
func Fetch(ctx context.Context, p Provider, query string, page, perPage int) ([]model.Photo, error) {
	var (
		raw RawResponse
		err error
	)
	if t, ok := p.(Trending); ok && model.IsTrending(query) {
		raw, err = t.Trending(ctx, page, perPage)
	} else {
		raw, err = p.Search(ctx, query, page, perPage)
	}
	if err != nil {
		return nil, Classify(p.Name(), err)
	}

	formatted := p.Format(raw)
	photos := make([]model.Photo, 0, len(formatted))
	for _, ph := range formatted {
		if !ph.Usable() {
			continue
		}
		ph.ProviderName = p.Name()
		photos = append(photos, ph)
	}
	return photos, nil
}
