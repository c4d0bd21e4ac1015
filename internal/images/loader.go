// Package images loads remote images with an in-memory cache and
// downscaled thumbnail variants for list views.
package images

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/logging"
)

// ThumbnailWidth is the pixel width thumbnails are resized to; height
// follows the aspect ratio.
const ThumbnailWidth = 256

const (
	// maxFullImages bounds the full-size cache; full decodes are large.
	maxFullImages = 32
	// maxThumbnails bounds the thumbnail cache.
	maxThumbnails = 256
)

// Downloader fetches an object by key.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Loader fetches and caches decoded images. Keys are object-store keys
// under the images/ namespace. Both caches are size-bounded, dropping
// the oldest entry when full.
type Loader struct {
	store Downloader

	mu     sync.Mutex
	images *boundedCache
	thumbs *boundedCache
}

func NewLoader(store Downloader) *Loader {
	return &Loader{
		store:  store,
		images: newBoundedCache(maxFullImages),
		thumbs: newBoundedCache(maxThumbnails),
	}
}

// Load returns the full-size image for a key, fetching it on a cache miss.
func (l *Loader) Load(ctx context.Context, key string) (image.Image, error) {
	l.mu.Lock()
	if img, ok := l.images.get(key); ok {
		l.mu.Unlock()
		return img, nil
	}
	l.mu.Unlock()

	img, err := l.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.images.put(key, img)
	l.mu.Unlock()
	return img, nil
}

// Thumbnail returns a downscaled variant, derived once and cached.
func (l *Loader) Thumbnail(ctx context.Context, key string) (image.Image, error) {
	l.mu.Lock()
	if img, ok := l.thumbs.get(key); ok {
		l.mu.Unlock()
		return img, nil
	}
	l.mu.Unlock()

	full, err := l.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Resize(full, ThumbnailWidth, 0, imaging.Lanczos)

	l.mu.Lock()
	l.thumbs.put(key, thumb)
	l.mu.Unlock()
	return thumb, nil
}

// Evict drops the cached entries for a key.
func (l *Loader) Evict(key string) {
	l.mu.Lock()
	l.images.evict(key)
	l.thumbs.evict(key)
	l.mu.Unlock()
}

// boundedCache holds at most limit entries, evicting in insertion order.
// Callers hold the Loader mutex.
type boundedCache struct {
	limit int
	order []string
	items map[string]image.Image
}

func newBoundedCache(limit int) *boundedCache {
	return &boundedCache{limit: limit, items: make(map[string]image.Image)}
}

func (c *boundedCache) get(key string) (image.Image, bool) {
	img, ok := c.items[key]
	return img, ok
}

func (c *boundedCache) put(key string, img image.Image) {
	if _, ok := c.items[key]; !ok {
		if len(c.items) >= c.limit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
		c.order = append(c.order, key)
	}
	c.items[key] = img
}

func (c *boundedCache) evict(key string) {
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (l *Loader) fetch(ctx context.Context, key string) (image.Image, error) {
	data, err := l.store.Download(ctx, "images/"+key)
	if err != nil {
		logging.Debug("Image download failed",
			map[string]interface{}{"key": key, "error": err.Error()})
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrImageCacheFailed, "decode image "+key, err)
	}
	return img, nil
}
