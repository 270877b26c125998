// Package filter classifies normalized photos as design content or noise.
//
// Both views (IsValidDesignImage and Categorize) read the same keyword table
// in keywords.go. Matching works on normalized text: lower-case, every
// non-alphanumeric rune turned into a space, so "Mid-Century_Living-Room.jpg"
// matches the phrases "mid century" and "living room".
package filter

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/fleveque/design-feed/internal/model"
)

var placeholderTitle = regexp.MustCompile(`^(photo|image|picture)\s*#?\s*\d+$`)

// maxMetadataKeywords bounds the keyword list attached by Enhance.
const maxMetadataKeywords = 5

// IsValidDesignImage reports whether a photo is design content.
// The checks short-circuit in priority order:
//  1. a design keyword in the URL accepts
//  2. a generic placeholder title with no tags or description rejects
//  3. a non-design term in the text rejects (wins over step 5)
//  4. a non-design term in the URL rejects
//  5. a design keyword in the text accepts
//  6. a numbered placeholder from a placeholder host rejects
//  7. everything else rejects
func IsValidDesignImage(p model.Photo) bool {
	urlText := normalizeURL(p.ImageURL)
	if containsAny(urlText, allDesignKeywords) {
		return true
	}

	title := strings.ToLower(strings.TrimSpace(p.Title))
	if _, generic := genericTitles[title]; generic && len(p.Tags) == 0 && strings.TrimSpace(p.Description) == "" {
		return false
	}

	text := combinedText(p)
	if containsAny(text, nonDesignTerms) {
		return false
	}
	if containsAny(urlText, nonDesignURLTerms) {
		return false
	}
	if containsAny(text, allDesignKeywords) {
		return true
	}

	if isPlaceholderHost(p.ImageURL) && (placeholderTitle.MatchString(title) ||
		placeholderTitle.MatchString(strings.ToLower(strings.TrimSpace(p.AltText)))) {
		return false
	}
	return false
}

// Categorize assigns the first matching leaf category in table order.
// It returns false when the photo is not design content or nothing matches.
// A photo matching several categories gets whichever comes first; there is
// no scoring.
func Categorize(p model.Photo) (string, bool) {
	if !IsValidDesignImage(p) {
		return "", false
	}
	_, category, _ := firstMatch(p)
	return category, category != ""
}

// Enhance returns a copy of p annotated with its category and matched
// keywords. ID and ImageURL are never touched.
func Enhance(p model.Photo) model.Photo {
	group, category, keywords := firstMatch(p)
	if len(keywords) > maxMetadataKeywords {
		keywords = keywords[:maxMetadataKeywords]
	}
	p.Metadata = &model.DesignMetadata{
		Category: category,
		Group:    group,
		Keywords: keywords,
	}
	return p
}

// Groups returns the keyword table for display. The slice is shared; callers
// must not modify it.
func Groups() []Group {
	return designGroups
}

// firstMatch walks the table in order and returns the first matching
// group/category plus every design keyword found in the photo's text and URL.
func firstMatch(p model.Photo) (group, category string, keywords []string) {
	text := combinedText(p) + normalizeURL(p.ImageURL)
	for _, g := range designGroups {
		for _, c := range g.Categories {
			for _, kw := range c.Keywords {
				if !containsPhrase(text, kw) {
					continue
				}
				if category == "" {
					group, category = g.Name, c.Name
				}
				keywords = append(keywords, kw)
			}
		}
	}
	return group, category, keywords
}

// allDesignKeywords is the flattened table, built once at init.
var allDesignKeywords = func() []string {
	var out []string
	for _, g := range designGroups {
		for _, c := range g.Categories {
			out = append(out, c.Keywords...)
		}
	}
	return out
}()

func combinedText(p model.Photo) string {
	parts := make([]string, 0, 3+len(p.Tags))
	parts = append(parts, p.Title, p.AltText, p.Description)
	parts = append(parts, p.Tags...)
	return normalize(strings.Join(parts, " "))
}

// normalizeURL tokenizes the host-less part of a URL so path segments like
// "/living-room/" become words. Unparseable URLs are tokenized whole.
func normalizeURL(raw string) string {
	if raw == "" {
		return " "
	}
	u, err := url.Parse(raw)
	if err != nil {
		return normalize(raw)
	}
	return normalize(u.Path + " " + u.RawQuery)
}

// normalize lower-cases s, replaces non-alphanumerics with single spaces and
// pads both ends so phrases can be matched on word boundaries.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}

// containsPhrase matches a keyword on word boundaries, tolerating a plural "s".
func containsPhrase(text, phrase string) bool {
	n := strings.TrimSpace(normalize(phrase))
	if n == "" {
		return false
	}
	return strings.Contains(text, " "+n+" ") || strings.Contains(text, " "+n+"s ")
}

func isPlaceholderHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range placeholderHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
