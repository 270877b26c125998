package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fleveque/design-feed/internal/model"
)

const (
	PicsumName = "picsum"
	picsumAPI  = "https://picsum.photos"
	picsumMax  = 100
)

// PicsumProvider is the last-resort placeholder source. Lorem Picsum has no
// search, so results are labelled with the query that asked for them.
type PicsumProvider struct {
	src source
}

func NewPicsumProvider(opts HTTPOptions) *PicsumProvider {
	return &PicsumProvider{src: newSource(PicsumName, opts)}
}

func (p *PicsumProvider) Name() string { return PicsumName }

func (p *PicsumProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(min(perPage, picsumMax)))

	body, err := p.src.get(ctx, picsumAPI+"/v2/list?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	// Stamp each record with the query before handing it to the tolerant
	// parser, since Format has no other way to see it.
	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, NewError(PicsumName, KindMalformed, 0, fmt.Errorf("decoding list: %w", err))
	}
	label := model.NormalizeQuery(query)
	if label == "" {
		label = "interior design"
	}
	for _, item := range items {
		if item != nil {
			item["query"] = label
		}
	}
	stamped, err := json.Marshal(items)
	if err != nil {
		return nil, NewError(PicsumName, KindMalformed, 0, err)
	}
	return parseList(PicsumName, stamped)
}

func (p *PicsumProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		id := idString(o, "id")
		if id == "" {
			continue
		}
		photos = append(photos, model.Photo{
			ID:           "picsum-" + id,
			ImageURL:     fmt.Sprintf("%s/id/%s/1080/720", picsumAPI, id),
			ThumbnailURL: fmt.Sprintf("%s/id/%s/400/300", picsumAPI, id),
			LargeURL:     str(o, "download_url"),
			Title:        "Photo #" + id,
			AltText:      str(o, "query") + " placeholder",
			Width:        1080,
			Height:       720,
			Extra: map[string]string{
				"author":   str(o, "author"),
				"page_url": str(o, "url"),
			},
		})
	}
	return photos
}
