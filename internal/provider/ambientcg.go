package provider

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/fleveque/design-feed/internal/model"
)

const (
	AmbientCGName = "ambientcg"
	ambientCGAPI  = "https://ambientcg.com/api/v2/full_json"
)

// AmbientCGProvider searches the AmbientCG material library. Results are
// material swatches (wood, stone, tiles), which the feed shows alongside
// photos for the materials categories.
type AmbientCGProvider struct {
	src source
}

func NewAmbientCGProvider(opts HTTPOptions) *AmbientCGProvider {
	return &AmbientCGProvider{src: newSource(AmbientCGName, opts)}
}

func (a *AmbientCGProvider) Name() string { return AmbientCGName }

func (a *AmbientCGProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	params := url.Values{}
	params.Set("type", "Material")
	params.Set("include", "displayData,tagData,imageData")
	params.Set("limit", strconv.Itoa(perPage))
	params.Set("offset", strconv.Itoa((page-1)*perPage))
	params.Set("sort", "Popular")
	if q := model.NormalizeQuery(query); q != "" {
		params.Set("q", q)
	}

	body, err := a.src.get(ctx, ambientCGAPI+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	records, err := parseKeyed(AmbientCGName, body, "foundAssets")
	if err != nil {
		return nil, err
	}
	return AssetsShape{Records: records}, nil
}

// Trending lists the most popular materials.
func (a *AmbientCGProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	return a.Search(ctx, "", page, perPage)
}

func (a *AmbientCGProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		id := str(o, "assetId")
		preview := str(o, "previewImage", "1024-PNG")
		if id == "" || preview == "" {
			continue
		}
		tags, _ := o.GetStringArray("tags")
		category := str(o, "displayCategory")

		p := model.Photo{
			ID:           "ambientcg-" + id,
			ImageURL:     preview,
			ThumbnailURL: str(o, "previewImage", "256-PNG"),
			LargeURL:     str(o, "previewImage", "2048-PNG"),
			Title:        str(o, "displayName"),
			Tags:         tags,
			Width:        1024,
			Height:       1024,
			Extra:        map[string]string{"asset_id": id},
		}
		if category != "" {
			p.Description = strings.ToLower(category) + " material"
		}
		p.AltText = p.Title
		photos = append(photos, p)
	}
	return photos
}
