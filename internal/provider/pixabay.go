package provider

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/fleveque/design-feed/internal/model"
)

const (
	PixabayName = "pixabay"
	pixabayAPI  = "https://pixabay.com/api/"
	pixabayMin  = 3
	pixabayMax  = 200
)

// PixabayProvider calls the Pixabay API. The key travels as a query
// parameter rather than a header.
type PixabayProvider struct {
	apiKey string
	src    source
}

func NewPixabayProvider(apiKey string, opts HTTPOptions) *PixabayProvider {
	return &PixabayProvider{apiKey: apiKey, src: newSource(PixabayName, opts)}
}

func (p *PixabayProvider) Name() string { return PixabayName }

func (p *PixabayProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	return p.fetch(ctx, model.NormalizeQuery(query), "", page, perPage)
}

func (p *PixabayProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	return p.fetch(ctx, "interior design", "popular", page, perPage)
}

func (p *PixabayProvider) fetch(ctx context.Context, query, order string, page, perPage int) (RawResponse, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("q", query)
	params.Set("image_type", "photo")
	params.Set("safesearch", "true")
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(max(pixabayMin, min(perPage, pixabayMax))))
	if order != "" {
		params.Set("order", order)
	}

	body, err := p.src.get(ctx, pixabayAPI+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	records, err := parseKeyed(PixabayName, body, "hits")
	if err != nil {
		return nil, err
	}
	return ResultsShape{Records: records}, nil
}

func (p *PixabayProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		id := idString(o, "id")
		image := str(o, "webformatURL")
		if id == "" || image == "" {
			continue
		}

		var tags []string
		for _, t := range strings.Split(str(o, "tags"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		title := strings.Join(tags, ", ")

		photos = append(photos, model.Photo{
			ID:           "pixabay-" + id,
			ImageURL:     image,
			ThumbnailURL: str(o, "previewURL"),
			LargeURL:     str(o, "largeImageURL"),
			Title:        title,
			AltText:      title,
			Tags:         tags,
			Width:        num(o, "imageWidth"),
			Height:       num(o, "imageHeight"),
			Extra: map[string]string{
				"photographer": str(o, "user"),
				"page_url":     str(o, "pageURL"),
			},
		})
	}
	return photos
}
