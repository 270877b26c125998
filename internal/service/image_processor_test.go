package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"github.com/h2non/bimg"
	"github.com/jarcoal/httpmock"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/storage"
)

// createTestPNG generates a small solid-color PNG image in memory.
func createTestPNG(width, height int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err) // only in tests
	}
	return buf.Bytes()
}

func TestResizeToWidth(t *testing.T) {
	processor := NewImageProcessor(0)
	testImage := createTestPNG(800, 400, color.RGBA{R: 200, G: 180, B: 150, A: 255})

	tests := []struct {
		name       string
		width      int
		wantWidth  int
		wantHeight int
	}{
		{"downscale keeps aspect ratio", 320, 320, 160},
		{"never upscales", 1600, 800, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := processor.ResizeToWidth(testImage, tt.width)
			if err != nil {
				t.Fatalf("ResizeToWidth failed: %v", err)
			}
			img := bimg.NewImage(out)
			if img.Type() != "jpeg" {
				t.Errorf("expected jpeg, got %s", img.Type())
			}
			size, err := img.Size()
			if err != nil {
				t.Fatalf("getting size: %v", err)
			}
			if size.Width != tt.wantWidth || size.Height != tt.wantHeight {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, size.Width, size.Height)
			}
		})
	}
}

func TestResizeToWidth_TransparentSource(t *testing.T) {
	processor := NewImageProcessor(90)
	testImage := createTestPNG(64, 64, color.NRGBA{R: 255, G: 0, B: 0, A: 128})

	out, err := processor.ResizeToWidth(testImage, 32)
	if err != nil {
		t.Fatalf("ResizeToWidth failed: %v", err)
	}
	if len(out) == 0 {
		t.Error("expected non-empty result")
	}
}

func TestResizeToWidth_NotAnImage(t *testing.T) {
	if _, err := NewImageProcessor(0).ResizeToWidth([]byte("<html>"), 160); err == nil {
		t.Error("expected an error for non-image bytes")
	}
}

func newThumbnailService(t *testing.T) (*ThumbnailService, *httpmock.MockTransport, *storage.FileSystem) {
	t.Helper()
	fs, err := storage.NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}
	mt := httpmock.NewMockTransport()
	svc := NewThumbnailService(fs, NewImageProcessor(0), &http.Client{Transport: mt},
		[]string{"images.unsplash.com", "wikimedia.org"}, "design-feed-test", zap.NewNop())
	return svc, mt, fs
}

func TestThumbnailService_DownloadsOnceThenServesFromDisk(t *testing.T) {
	svc, mt, fs := newThumbnailService(t)
	src := "https://images.unsplash.com/photo-1?w=1080"
	mt.RegisterResponder(http.MethodGet, src,
		httpmock.NewBytesResponder(http.StatusOK, createTestPNG(1200, 800, color.RGBA{R: 10, G: 20, B: 30, A: 255})))

	ctx := context.Background()
	first, err := svc.Get(ctx, src, model.ThumbS)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !fs.Exists(src, model.ThumbS) {
		t.Error("expected thumbnail on disk")
	}

	second, err := svc.Get(ctx, src, model.ThumbS)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected the cached thumbnail")
	}
	if n := mt.GetTotalCallCount(); n != 1 {
		t.Errorf("expected 1 download, got %d", n)
	}
}

func TestThumbnailService_SubdomainAllowed(t *testing.T) {
	svc, mt, _ := newThumbnailService(t)
	src := "https://upload.wikimedia.org/a/b/Loft.png"
	mt.RegisterResponder(http.MethodGet, src,
		httpmock.NewBytesResponder(http.StatusOK, createTestPNG(400, 300, color.White)))

	if _, err := svc.Get(context.Background(), src, model.ThumbXS); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestThumbnailService_Rejections(t *testing.T) {
	svc, mt, _ := newThumbnailService(t)
	mt.RegisterResponder(http.MethodGet, "https://images.unsplash.com/missing",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	tests := []struct {
		name string
		url  string
		size model.ThumbSize
		want error
	}{
		{"unknown size", "https://images.unsplash.com/photo-1", "huge", ErrInvalidThumbSize},
		{"foreign host", "https://evil.example.com/x.jpg", model.ThumbS, ErrHostNotAllowed},
		{"look-alike host", "https://notunsplash.com.evil/x.jpg", model.ThumbS, ErrHostNotAllowed},
		{"relative url", "/local/file.jpg", model.ThumbS, ErrHostNotAllowed},
		{"file scheme", "file:///etc/passwd", model.ThumbS, ErrHostNotAllowed},
		{"upstream 404", "https://images.unsplash.com/missing", model.ThumbS, ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Get(context.Background(), tt.url, tt.size)
			if !errors.Is(err, tt.want) {
				t.Errorf("Get(%q, %q) error = %v, want %v", tt.url, tt.size, err, tt.want)
			}
		})
	}
}
