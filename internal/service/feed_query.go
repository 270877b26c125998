package service

import (
	"strings"

	"github.com/fleveque/design-feed/internal/model"
)

// genericDesignTerms are appended to queries too vague to search on alone.
var genericDesignTerms = []string{"interior", "design"}

// FeedParams are the user-facing filters of the feed endpoints.
type FeedParams struct {
	Query       string
	Style       string
	RoomType    string
	LayoutType  string
	Lighting    string
	PaletteMode string
	Colors      []string
	Materials   []string
}

// CombinedQuery joins every filter into one search string, in a fixed
// order, without repeating words. An empty or single-word result gets the
// generic design terms appended.
func (p FeedParams) CombinedQuery() string {
	parts := []string{p.Query, p.Style, p.RoomType, p.LayoutType, p.Lighting, p.PaletteMode}
	parts = append(parts, p.Colors...)
	parts = append(parts, p.Materials...)

	var words []string
	seen := make(map[string]bool)
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	for _, part := range parts {
		for _, w := range strings.Fields(model.NormalizeQuery(part)) {
			add(w)
		}
	}

	if len(words) < 2 {
		for _, w := range genericDesignTerms {
			add(w)
		}
	}
	return strings.Join(words, " ")
}

// SplitCSV splits a comma-separated parameter, dropping blanks.
func SplitCSV(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
