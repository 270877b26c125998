package provider

import (
	"context"
	"net/url"
	"strconv"

	"github.com/fleveque/design-feed/internal/model"
)

const (
	PexelsName = "pexels"
	pexelsAPI  = "https://api.pexels.com/v1"
	pexelsMax  = 80
)

// PexelsProvider calls the Pexels photo API. Requires an API key.
type PexelsProvider struct {
	apiKey string
	src    source
}

func NewPexelsProvider(apiKey string, opts HTTPOptions) *PexelsProvider {
	return &PexelsProvider{apiKey: apiKey, src: newSource(PexelsName, opts)}
}

func (p *PexelsProvider) Name() string { return PexelsName }

func (p *PexelsProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	params := url.Values{}
	params.Set("query", model.NormalizeQuery(query))
	return p.fetch(ctx, "/search", params, page, perPage)
}

// Trending uses the Pexels hand-curated listing.
func (p *PexelsProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	return p.fetch(ctx, "/curated", url.Values{}, page, perPage)
}

func (p *PexelsProvider) fetch(ctx context.Context, endpoint string, params url.Values, page, perPage int) (RawResponse, error) {
	if perPage > pexelsMax {
		perPage = pexelsMax
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	body, err := p.src.get(ctx, pexelsAPI+endpoint+"?"+params.Encode(), map[string]string{
		"Authorization": p.apiKey,
	})
	if err != nil {
		return nil, err
	}
	records, err := parseKeyed(PexelsName, body, "photos")
	if err != nil {
		return nil, err
	}
	return ResultsShape{Records: records}, nil
}

func (p *PexelsProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		image := str(o, "src", "large")
		id := idString(o, "id")
		if image == "" || id == "" {
			continue
		}
		alt := str(o, "alt")
		photos = append(photos, model.Photo{
			ID:           "pexels-" + id,
			ImageURL:     image,
			ThumbnailURL: str(o, "src", "medium"),
			LargeURL:     str(o, "src", "original"),
			Title:        alt,
			AltText:      alt,
			Width:        num(o, "width"),
			Height:       num(o, "height"),
			Extra: map[string]string{
				"photographer": str(o, "photographer"),
				"page_url":     str(o, "url"),
				"avg_color":    str(o, "avg_color"),
			},
		})
	}
	return photos
}
