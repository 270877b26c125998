package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleveque/design-feed/internal/model"
)

// FileSystem stores resized thumbnails on disk at
// {baseDir}/{sha256(sourceURL)}/{size}.jpg. Hashing the URL gives a fixed
// length, path-safe directory name for arbitrary remote images.
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating thumbnail directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// SourceKey returns the directory name for a source image URL.
func SourceKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// ThumbPath returns the filesystem path for a thumbnail at a given size.
func (fs *FileSystem) ThumbPath(sourceURL string, size model.ThumbSize) string {
	return filepath.Join(fs.baseDir, SourceKey(sourceURL), string(size)+".jpg")
}

// SourceDir returns the directory holding every size of one source image.
func (fs *FileSystem) SourceDir(sourceURL string) string {
	return filepath.Join(fs.baseDir, SourceKey(sourceURL))
}

// Read reads a thumbnail from disk. Returns the raw JPEG bytes.
func (fs *FileSystem) Read(sourceURL string, size model.ThumbSize) ([]byte, error) {
	data, err := os.ReadFile(fs.ThumbPath(sourceURL, size))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("thumbnail not found: %s/%s", SourceKey(sourceURL), size)
		}
		return nil, fmt.Errorf("reading thumbnail: %w", err)
	}
	return data, nil
}

// Write saves a thumbnail to disk, creating the source directory if needed.
func (fs *FileSystem) Write(sourceURL string, size model.ThumbSize, data []byte) error {
	if err := os.MkdirAll(fs.SourceDir(sourceURL), 0755); err != nil {
		return fmt.Errorf("creating thumbnail directory: %w", err)
	}
	if err := os.WriteFile(fs.ThumbPath(sourceURL, size), data, 0644); err != nil {
		return fmt.Errorf("writing thumbnail: %w", err)
	}
	return nil
}

// Exists checks if a thumbnail exists on disk.
func (fs *FileSystem) Exists(sourceURL string, size model.ThumbSize) bool {
	_, err := os.Stat(fs.ThumbPath(sourceURL, size))
	return err == nil
}

// DeleteSource removes every size stored for a source image.
func (fs *FileSystem) DeleteSource(sourceURL string) error {
	return os.RemoveAll(fs.SourceDir(sourceURL))
}
