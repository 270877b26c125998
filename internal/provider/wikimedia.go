package provider

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/fleveque/design-feed/internal/model"
)

const (
	WikimediaName = "wikimedia"
	wikimediaAPI  = "https://commons.wikimedia.org/w/api.php"
	wikimediaMax  = 50
)

// WikimediaProvider searches Wikimedia Commons files. Free, no key, but
// slow and noisy, so it sits in the free-API tier behind the scrapers.
type WikimediaProvider struct {
	src source
}

func NewWikimediaProvider(opts HTTPOptions) *WikimediaProvider {
	return &WikimediaProvider{src: newSource(WikimediaName, opts)}
}

func (w *WikimediaProvider) Name() string { return WikimediaName }

func (w *WikimediaProvider) Search(ctx context.Context, query string, page, perPage int) (RawResponse, error) {
	if perPage > wikimediaMax {
		perPage = wikimediaMax
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("generator", "search")
	params.Set("gsrnamespace", "6") // File: namespace
	params.Set("gsrsearch", "filetype:bitmap "+model.NormalizeQuery(query))
	params.Set("gsrlimit", strconv.Itoa(perPage))
	params.Set("gsroffset", strconv.Itoa((page-1)*perPage))
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url|size|extmetadata")
	params.Set("iiurlwidth", "1080")
	params.Set("iiextmetadatafilter", "ImageDescription|Artist|Categories")

	body, err := w.src.get(ctx, wikimediaAPI+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	records, err := parseKeyed(WikimediaName, body, "query", "pages")
	if err != nil {
		return nil, err
	}
	return ResultsShape{Records: records}, nil
}

func (w *WikimediaProvider) Trending(ctx context.Context, page, perPage int) (RawResponse, error) {
	return w.Search(ctx, "interior design", page, perPage)
}

func (w *WikimediaProvider) Format(raw RawResponse) []model.Photo {
	var photos []model.Photo
	for _, o := range Records(raw) {
		infos, err := o.GetObjectArray("imageinfo")
		if err != nil || len(infos) == 0 {
			continue
		}
		info := infos[0]
		original := str(info, "url")
		if original == "" {
			continue
		}
		display := str(info, "thumburl")
		if display == "" {
			display = original
		}

		p := model.Photo{
			ID:           fmt.Sprintf("wikimedia-%d", num(o, "pageid")),
			ImageURL:     display,
			ThumbnailURL: display,
			LargeURL:     original,
			Title:        fileTitle(str(o, "title")),
			Description:  stripHTML(str(info, "extmetadata", "ImageDescription", "value")),
			Width:        num(info, "width"),
			Height:       num(info, "height"),
			Extra:        map[string]string{"page_url": str(info, "descriptionurl")},
		}
		p.AltText = p.Title
		if cats := str(info, "extmetadata", "Categories", "value"); cats != "" {
			p.Tags = strings.Split(cats, "|")
		}
		if artist := stripHTML(str(info, "extmetadata", "Artist", "value")); artist != "" {
			p.Extra["artist"] = artist
		}
		photos = append(photos, p)
	}
	return photos
}

// fileTitle turns "File:Modern_living_room.jpg" into "Modern living room".
func fileTitle(t string) string {
	t = strings.TrimPrefix(t, "File:")
	t = strings.TrimSuffix(t, path.Ext(t))
	return strings.TrimSpace(strings.ReplaceAll(t, "_", " "))
}

// stripHTML keeps only the text content of an extmetadata HTML fragment.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
