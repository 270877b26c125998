package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/storage"
)

// Thumbnail errors. The handler maps them to status codes.
var (
	ErrInvalidThumbSize  = errors.New("invalid thumbnail size")
	ErrHostNotAllowed    = errors.New("image host not allowed")
	ErrSourceUnavailable = errors.New("source image unavailable")
)

// maxSourceBytes caps downloaded source images.
const maxSourceBytes = 10 << 20

// ThumbnailService proxies feed images as resized JPEGs. It follows a
// "try cache first, then acquire" pattern: the disk cache is checked first,
// and only a miss downloads and resizes the source.
type ThumbnailService struct {
	fs           *storage.FileSystem
	processor    *ImageProcessor
	client       *http.Client
	allowedHosts []string
	userAgent    string
	logger       *zap.Logger
	inflight     singleflight.Group
}

// NewThumbnailService creates the proxy. Only images on allowedHosts (or
// their subdomains) are fetched. client may be nil.
func NewThumbnailService(
	fs *storage.FileSystem,
	processor *ImageProcessor,
	client *http.Client,
	allowedHosts []string,
	userAgent string,
	logger *zap.Logger,
) *ThumbnailService {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &ThumbnailService{
		fs:           fs,
		processor:    processor,
		client:       client,
		allowedHosts: hosts,
		userAgent:    userAgent,
		logger:       logger,
	}
}

// Get returns the JPEG bytes for sourceURL at the requested size.
func (s *ThumbnailService) Get(ctx context.Context, sourceURL string, size model.ThumbSize) ([]byte, error) {
	if !model.ValidThumbSize(string(size)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidThumbSize, size)
	}
	if err := s.checkSource(sourceURL); err != nil {
		return nil, err
	}

	// Fast path: already on disk.
	if data, err := s.fs.Read(sourceURL, size); err == nil {
		return data, nil
	}

	v, err, _ := s.inflight.Do(storage.SourceKey(sourceURL)+"/"+string(size), func() (any, error) {
		return s.acquire(ctx, sourceURL, size)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *ThumbnailService) acquire(ctx context.Context, sourceURL string, size model.ThumbSize) ([]byte, error) {
	s.logger.Info("thumbnail cache miss, downloading source",
		zap.String("url", sourceURL),
		zap.String("size", string(size)),
	)

	original, err := s.download(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	resized, err := s.processor.ResizeToWidth(original, model.ThumbPixels[size])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if err := s.fs.Write(sourceURL, size, resized); err != nil {
		// Serving still works; the next request just resizes again.
		s.logger.Error("writing thumbnail",
			zap.String("url", sourceURL),
			zap.String("size", string(size)),
			zap.Error(err),
		)
	}
	return resized, nil
}

// checkSource accepts only absolute http(s) URLs on an allowed host.
func (s *ThumbnailService) checkSource(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrHostNotAllowed, raw)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

func (s *ThumbnailService) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, sourceURL)
	}

	// Read one byte past the cap to tell "exactly at the limit" from "too big".
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("source larger than %d bytes", maxSourceBytes)
	}
	return data, nil
}
