// Package model defines the core data types for the design feed.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."`
// annotations) tell serialization libraries how to map fields.
package model

import (
	"strings"
	"time"
)

// Photo is the normalized record every provider adapter produces.
// Photos are passed by value once they leave an adapter; the filter and the
// aggregation engine read them and only ever attach Metadata.
type Photo struct {
	ID           string            `json:"id"`
	ImageURL     string            `json:"image_url"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`
	LargeURL     string            `json:"large_url,omitempty"`
	Title        string            `json:"title"`
	AltText      string            `json:"alt_text"`
	Description  string            `json:"description,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	ProviderName string            `json:"provider_name"`
	Extra        map[string]string `json:"extra,omitempty"`
	Metadata     *DesignMetadata   `json:"metadata,omitempty"`
}

// DesignMetadata is the "enhanced metadata" annotation added by the content filter.
type DesignMetadata struct {
	Category string   `json:"category,omitempty"`
	Group    string   `json:"group,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// DedupKey returns the identity used to deduplicate photos across providers:
// the id when present, otherwise the image URL.
func (p Photo) DedupKey() string {
	if p.ID != "" {
		return p.ID
	}
	return p.ImageURL
}

// Usable reports whether the record can be shown at all.
func (p Photo) Usable() bool {
	return strings.TrimSpace(p.ImageURL) != ""
}

// CacheEntry is one cached page of photos.
type CacheEntry struct {
	Provider  string    `db:"provider" json:"provider"`
	Query     string    `db:"query" json:"query"`
	Page      int       `db:"page" json:"page"`
	Photos    []Photo   `db:"-" json:"photos"`
	CreatedAt time.Time `db:"-" json:"created_at"`
}

// Fresh reports whether the entry is younger than maxAge at time now.
func (e CacheEntry) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CreatedAt) < maxAge
}

// AggregatedProvider is the distinguished provider key under which the
// aggregation engine caches its accumulated pool.
const AggregatedProvider = "aggregated"

// NormalizeQuery canonicalizes a query for cache keying.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// IsTrending reports whether a query is empty, which means a trending lookup.
func IsTrending(q string) bool {
	return strings.TrimSpace(q) == ""
}

// FeedResponse is the JSON body returned by the feed endpoints.
type FeedResponse struct {
	Results []Photo `json:"results"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
	HasMore bool    `json:"has_more"`
	Query   string  `json:"query"`
}
