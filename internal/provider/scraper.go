package provider

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/fleveque/design-feed/internal/model"
)

// minScrapedSize drops icons and tracking pixels when the page declares
// dimensions on the <img> tag.
const minScrapedSize = 200

// scraperTrendingQuery is searched when the feed has no query.
const scraperTrendingQuery = "interior design"

// Site describes one scrapable search page. SearchURL contains the
// placeholders {query} and {page}.
type Site struct {
	Name      string
	SearchURL string
}

// ScraperProvider extracts images from a site's HTML search results. It
// needs no API key, which makes it the first tier after the curated catalog.
type ScraperProvider struct {
	site Site
	src  source
}

func NewScraperProvider(site Site, opts HTTPOptions) *ScraperProvider {
	return &ScraperProvider{site: site, src: newSource(site.Name, opts)}
}

func (s *ScraperProvider) Name() string { return s.site.Name }

func (s *ScraperProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	pageURL := strings.NewReplacer(
		"{query}", url.QueryEscape(model.NormalizeQuery(query)),
		"{page}", strconv.Itoa(page),
	).Replace(s.site.SearchURL)

	body, err := s.src.get(ctx, pageURL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, NewError(s.site.Name, KindUpstream, 0, err)
	}

	images := extractImages(bytes.NewReader(body), base)
	if len(images) > perPage {
		images = images[:perPage]
	}

	records := make([]map[string]any, 0, len(images))
	for _, img := range images {
		records = append(records, map[string]any{
			"id":       s.site.Name + "-" + shortHash(img.src),
			"src":      img.src,
			"alt":      img.alt,
			"width":    img.width,
			"height":   img.height,
			"page_url": pageURL,
		})
	}
	encoded, err := json.Marshal(map[string]any{"results": records})
	if err != nil {
		return nil, NewError(s.site.Name, KindMalformed, 0, err)
	}
	parsed, err := parseKeyed(s.site.Name, encoded, "results")
	if err != nil {
		return nil, err
	}
	return ResultsShape{Records: parsed}, nil
}

func (s *ScraperProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	return s.Search(ctx, scraperTrendingQuery, page, perPage)
}

func (s *ScraperProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		src := str(o, "src")
		if src == "" {
			continue
		}
		alt := str(o, "alt")
		photos = append(photos, model.Photo{
			ID:       str(o, "id"),
			ImageURL: src,
			Title:    alt,
			AltText:  alt,
			Width:    num(o, "width"),
			Height:   num(o, "height"),
			Extra:    map[string]string{"source_page": str(o, "page_url")},
		})
	}
	return photos
}

type scrapedImage struct {
	src    string
	alt    string
	width  int
	height int
}

// extractImages walks the document with the streaming tokenizer and
// collects og:image plus every plausible <img>, resolved against base and
// deduplicated by URL in document order.
func extractImages(r io.Reader, base *url.URL) []scrapedImage {
	z := html.NewTokenizer(r)
	seen := make(map[string]bool)
	var (
		out   []scrapedImage
		ogAlt string
	)

	add := func(img scrapedImage) {
		abs := resolveImageURL(base, img.src)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		img.src = abs
		out = append(out, img)
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			return out

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				continue
			}
			switch string(name) {
			case "meta":
				attrs := readAttrs(z)
				switch attrs["property"] {
				case "og:image:alt":
					ogAlt = attrs["content"]
				case "og:image":
					add(scrapedImage{src: attrs["content"], alt: ogAlt})
				}

			case "img":
				attrs := readAttrs(z)
				img := scrapedImage{
					src:    pickSource(attrs),
					alt:    strings.TrimSpace(attrs["alt"]),
					width:  atoiOrZero(attrs["width"]),
					height: atoiOrZero(attrs["height"]),
				}
				if (img.width > 0 && img.width < minScrapedSize) || (img.height > 0 && img.height < minScrapedSize) {
					continue
				}
				add(img)
			}
		}
	}
}

// pickSource prefers lazy-load attributes and the largest srcset candidate
// over a src that is often a low-res placeholder.
func pickSource(attrs map[string]string) string {
	for _, k := range []string{"data-src", "data-lazy-src", "data-original"} {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	if set := strings.TrimSpace(attrs["srcset"]); set != "" {
		candidates := strings.Split(set, ",")
		last := strings.Fields(strings.TrimSpace(candidates[len(candidates)-1]))
		if len(last) > 0 {
			return last[0]
		}
	}
	return strings.TrimSpace(attrs["src"])
}

var skippedImageMarkers = []string{"logo", "icon", "avatar", "sprite", "pixel", "badge", "spinner"}

func resolveImageURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	lower := strings.ToLower(abs.Path)
	if strings.HasSuffix(lower, ".svg") || strings.HasSuffix(lower, ".gif") {
		return ""
	}
	for _, m := range skippedImageMarkers {
		if strings.Contains(lower, m) {
			return ""
		}
	}
	return abs.String()
}

// readAttrs collects all attributes from the current tag token.
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		if k := string(key); k != "" {
			attrs[k] = string(val)
		}
		if !more {
			return attrs
		}
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil {
		return 0
	}
	return n
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:8])
}
