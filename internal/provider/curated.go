package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fleveque/design-feed/internal/model"
)

// CuratedName is the registry name of the guaranteed-success provider.
const CuratedName = "curated"

// curatedEntry is one hand-picked interior photograph hosted on the
// Unsplash CDN. Every title and tag set is chosen to pass the design filter.
type curatedEntry struct {
	slug         string
	title        string
	tags         []string
	width        int
	height       int
	photographer string
}

var curatedCatalog = []curatedEntry{
	{"photo-1586023492125-27b2c045efd7", "Bright living room with linen sofa", []string{"living room", "sofa", "neutral palette"}, 4000, 2667, "Spacejoy"},
	{"photo-1618221195710-dd6b41faaea6", "Minimalist living room with arched mirror", []string{"minimalist", "living room", "mirror"}, 4000, 5000, "Spacejoy"},
	{"photo-1600210492486-724fe5c67fb0", "Open plan kitchen with marble island", []string{"kitchen", "marble", "open plan"}, 5760, 3840, "Collov Home Design"},
	{"photo-1600585154340-be6161a56a0c", "Modern house exterior with timber cladding", []string{"modern", "architecture", "exterior design"}, 4000, 2667, "Ralph Ravi Kayden"},
	{"photo-1556909114-f6e7ad7d3136", "White kitchen with open shelving", []string{"kitchen", "cabinets", "scandinavian"}, 5472, 3648, "Jason Briscoe"},
	{"photo-1616594039964-ae9021a400a0", "Japandi bedroom with low platform bed", []string{"japandi", "bedroom", "wood"}, 4000, 6000, "Spacejoy"},
	{"photo-1522708323590-d24dbb6b0267", "Loft apartment living area with exposed brick", []string{"industrial", "loft", "brick"}, 5472, 3648, "Nathan Fertig"},
	{"photo-1505693416388-ac5ce068fe85", "Cozy bedroom with layered bedding", []string{"bedroom", "cozy", "textiles"}, 5184, 3456, "Roberto Nickson"},
	{"photo-1560448204-e02f11c3d0e2", "Scandinavian dining room with oak table", []string{"dining room", "scandinavian", "oak"}, 5000, 3333, "Kara Eads"},
	{"photo-1552321554-5fefe8c9ef14", "Spa bathroom with freestanding tub", []string{"bathroom", "bathtub", "stone"}, 4032, 3024, "Christian Mackie"},
	{"photo-1493809842364-78817add7ffb", "Mid-century living room with walnut credenza", []string{"mid century", "living room", "walnut"}, 5184, 3456, "Naomi Hébert"},
	{"photo-1484154218962-a197022b5858", "Galley kitchen with brass fixtures", []string{"kitchen", "brass", "cabinets"}, 5472, 3648, "Jason Briscoe"},
	{"photo-1502005229762-cf1b2da7c5d6", "Boho living room with rattan chair", []string{"boho", "rattan", "plants"}, 4608, 3072, "Sidekix Media"},
	{"photo-1519710164239-da123dc03ef4", "Warm bedroom with wood panelling", []string{"bedroom", "wood", "warm neutrals"}, 6000, 4000, "Bench Accounting"},
	{"photo-1524758631624-e2822e304c36", "Home office with oak desk and shelving", []string{"home office", "desk", "bookshelf"}, 5184, 3456, "Nastuh Abootalebi"},
	{"photo-1540518614846-7eded433c457", "Coastal bedroom with rattan headboard", []string{"coastal", "bedroom", "rattan"}, 6000, 4000, "Kam Idris"},
	{"photo-1567016432779-094069958ea5", "Velvet sofa in a dark mood living room", []string{"dark mood", "sofa", "velvet"}, 4000, 3000, "Phillip Goldsberry"},
	{"photo-1595526114035-0d45ed16cfbf", "Earthy bedroom with terracotta accents", []string{"bedroom", "terracotta", "earth tones"}, 4000, 5000, "Spacejoy"},
	{"photo-1600607687939-ce8a6c25118c", "Contemporary living room with stone fireplace", []string{"fireplace", "stone", "living room"}, 5760, 3840, "Collov Home Design"},
	{"photo-1615529182904-14819c35db37", "Maximalist dining room with gallery wall", []string{"maximalist", "gallery wall", "dining room"}, 4000, 5000, "Spacejoy"},
	{"photo-1617806118233-18e1de247200", "Dining room with pendant lighting over walnut table", []string{"dining room", "pendant", "lighting"}, 4000, 6000, "Spacejoy"},
	{"photo-1598928506311-c55ded91a20c", "Entryway with console table and round mirror", []string{"entryway", "console table", "mirror"}, 4000, 6000, "Spacejoy"},
	{"photo-1600566753190-17f0baa2a6c3", "Marble bathroom vanity with brass taps", []string{"bathroom", "vanity", "marble"}, 5760, 3840, "Collov Home Design"},
	{"photo-1631679706909-1844bbd07221", "Nursery with soft pastel walls", []string{"nursery", "pastel", "playroom"}, 4000, 6000, "Spacejoy"},
	{"photo-1600494603989-9650cf6ddd3d", "Renovated kitchen with green cabinets", []string{"renovation", "kitchen", "cabinets"}, 5760, 3840, "Collov Home Design"},
	{"photo-1583847268964-b28dc8f51f92", "Monochrome living room with concrete floor", []string{"monochrome", "concrete", "living room"}, 4000, 5000, "Spacejoy"},
	{"photo-1598300042247-d088f8ab3a91", "Outdoor patio with teak lounge chairs", []string{"patio", "outdoor living", "teak"}, 4000, 6000, "Spacejoy"},
	{"photo-1613490493576-7fde63acd811", "Luxury villa living room with floor to ceiling windows", []string{"luxury", "architecture", "living room"}, 3000, 2000, "Vita Vilcina"},
}

// curatedTrendingQueries feed the no-query listing, one per page.
var curatedTrendingQueries = []string{
	"living room", "bedroom", "kitchen", "scandinavian", "japandi", "bathroom", "dining room", "home office",
}

// CuratedProvider serves photos from a built-in catalog. It does no I/O,
// never fails, and always returns exactly perPage records.
type CuratedProvider struct {
	catalog []curatedEntry
}

func NewCuratedProvider() *CuratedProvider {
	return &CuratedProvider{catalog: curatedCatalog}
}

func (c *CuratedProvider) Name() string { return CuratedName }

// Search cycles through the catalog, ranking entries that mention query
// words first. Ids are unique per (query, position), so later pages never
// collide with earlier ones under dedup.
func (c *CuratedProvider) Search(_ context.Context, query string, page, perPage int) (RawResponse, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return ListShape{}, nil
	}

	query = model.NormalizeQuery(query)
	order := c.rank(query)
	key := querySlug(query)

	records := make([]map[string]any, 0, perPage)
	for i := 0; i < perPage; i++ {
		pos := (page-1)*perPage + i
		e := c.catalog[order[pos%len(order)]]
		cycle := pos / len(order)
		base := "https://images.unsplash.com/" + e.slug
		records = append(records, map[string]any{
			"id":           fmt.Sprintf("curated-%s-%d", key, pos),
			"title":        e.title,
			"alt":          e.title,
			"tags":         e.tags,
			"width":        e.width,
			"height":       e.height,
			"photographer": e.photographer,
			"urls": map[string]string{
				"full":    fmt.Sprintf("%s?w=2400&q=85&sig=%d", base, cycle),
				"regular": fmt.Sprintf("%s?w=1080&q=80&sig=%d", base, cycle),
				"small":   fmt.Sprintf("%s?w=400&q=80&sig=%d", base, cycle),
			},
		})
	}

	body, err := json.Marshal(records)
	if err != nil {
		return nil, NewError(CuratedName, KindMalformed, 0, err)
	}
	return parseList(CuratedName, body)
}

func (c *CuratedProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	if page < 1 {
		page = 1
	}
	q := curatedTrendingQueries[(page-1)%len(curatedTrendingQueries)]
	return c.Search(ctx, q, page, perPage)
}

func (c *CuratedProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		url := str(o, "urls", "regular")
		if url == "" {
			continue
		}
		tags, _ := o.GetStringArray("tags")
		p := model.Photo{
			ID:           str(o, "id"),
			ImageURL:     url,
			ThumbnailURL: str(o, "urls", "small"),
			LargeURL:     str(o, "urls", "full"),
			Title:        str(o, "title"),
			AltText:      str(o, "alt"),
			Tags:         tags,
			Width:        num(o, "width"),
			Height:       num(o, "height"),
		}
		if by := str(o, "photographer"); by != "" {
			p.Extra = map[string]string{"photographer": by}
		}
		photos = append(photos, p)
	}
	return photos
}

// rank returns catalog indexes ordered by how many query words each entry
// mentions. Ties keep catalog order.
func (c *CuratedProvider) rank(query string) []int {
	order := make([]int, len(c.catalog))
	for i := range order {
		order[i] = i
	}
	words := strings.Fields(query)
	if len(words) == 0 {
		return order
	}

	score := make([]int, len(c.catalog))
	for i, e := range c.catalog {
		text := strings.ToLower(e.title + " " + strings.Join(e.tags, " "))
		for _, w := range words {
			if strings.Contains(text, w) {
				score[i]++
			}
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return score[order[a]] > score[order[b]]
	})
	return order
}

// querySlug makes a query safe to embed in an id.
func querySlug(query string) string {
	if query == "" {
		return "trending"
	}
	return strings.Join(strings.Fields(query), "-")
}
