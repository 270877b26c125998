package provider

import (
	"context"
	"net/url"
	"strconv"

	"github.com/fleveque/design-feed/internal/model"
)

const (
	UnsplashName = "unsplash"
	unsplashAPI  = "https://api.unsplash.com"
	unsplashMax  = 30
)

// UnsplashProvider calls the Unsplash API with a Client-ID access key.
// Search returns {"results": [...]}; the popular listing is a bare array,
// so this adapter produces both ResultsShape and ListShape.
type UnsplashProvider struct {
	accessKey string
	src       source
}

func NewUnsplashProvider(accessKey string, opts HTTPOptions) *UnsplashProvider {
	return &UnsplashProvider{accessKey: accessKey, src: newSource(UnsplashName, opts)}
}

func (u *UnsplashProvider) Name() string { return UnsplashName }

func (u *UnsplashProvider) headers() map[string]string {
	return map[string]string{
		"Authorization":  "Client-ID " + u.accessKey,
		"Accept-Version": "v1",
	}
}

func (u *UnsplashProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	params := url.Values{}
	params.Set("query", model.NormalizeQuery(query))
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(min(perPage, unsplashMax)))
	params.Set("content_filter", "high")

	body, err := u.src.get(ctx, unsplashAPI+"/search/photos?"+params.Encode(), u.headers())
	if err != nil {
		return nil, err
	}
	records, err := parseKeyed(UnsplashName, body, "results")
	if err != nil {
		return nil, err
	}
	return ResultsShape{Records: records}, nil
}

func (u *UnsplashProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(min(perPage, unsplashMax)))
	params.Set("order_by", "popular")

	body, err := u.src.get(ctx, unsplashAPI+"/photos?"+params.Encode(), u.headers())
	if err != nil {
		return nil, err
	}
	return parseList(UnsplashName, body)
}

func (u *UnsplashProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		id := str(o, "id")
		image := str(o, "urls", "regular")
		if id == "" || image == "" {
			continue
		}

		var tags []string
		if tagObjs, err := o.GetObjectArray("tags"); err == nil {
			for _, t := range tagObjs {
				if title := str(t, "title"); title != "" {
					tags = append(tags, title)
				}
			}
		}

		alt := str(o, "alt_description")
		title := str(o, "description")
		if title == "" {
			title = alt
		}
		photos = append(photos, model.Photo{
			ID:           "unsplash-" + id,
			ImageURL:     image,
			ThumbnailURL: str(o, "urls", "small"),
			LargeURL:     str(o, "urls", "full"),
			Title:        title,
			AltText:      alt,
			Description:  str(o, "description"),
			Tags:         tags,
			Width:        num(o, "width"),
			Height:       num(o, "height"),
			Extra: map[string]string{
				"photographer": str(o, "user", "name"),
				"color":        str(o, "color"),
			},
		})
	}
	return photos
}
