// Package pending provides durable storage for pending action records:
// user-initiated writes that could not be applied remotely yet, together
// with locally cached copies of the images they need to upload.
package pending

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bookyo/client/internal/uuid"
)

// ImageCache owns the local copies of images referenced by pending records.
// Copies are made at record-creation time so the original picker or camera
// source does not need to stay valid while the record waits.
type ImageCache struct {
	dir string
}

// NewImageCache creates the cache directory under cacheDir.
func NewImageCache(cacheDir string) (*ImageCache, error) {
	dir := filepath.Join(cacheDir, "pending_images")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image cache directory: %w", err)
	}
	return &ImageCache{dir: dir}, nil
}

// Add copies the file at src into the cache and returns the cached path.
func (c *ImageCache) Add(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open source image: %w", err)
	}
	defer in.Close()

	dst := filepath.Join(c.dir, "img_"+uuid.New()+".jpg")
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create cached image: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to copy image into cache: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to finalize cached image: %w", err)
	}

	return dst, nil
}

// Remove deletes a cached copy. Removing a missing file is not an error.
func (c *ImageCache) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cached image: %w", err)
	}
	return nil
}

// Dir returns the cache directory.
func (c *ImageCache) Dir() string {
	return c.dir
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
