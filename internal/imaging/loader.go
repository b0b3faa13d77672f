package imaging

import (
	"container/list"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF format decoder
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// ErrDecode is wrapped by every Load failure caused by unreadable image data.
var ErrDecode = errors.New("cannot decode image")

// SupportedExtensions lists the scan formats picked up from input folders.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"}

// IsSupported reports whether path has a supported extension, ignoring case.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListImages returns the supported image files directly inside dir, sorted
// by file name. Subdirectories are not visited.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	return paths, nil
}

// Load decodes the image at path, applying any EXIF orientation so phone
// photographs of forms come out upright.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDecode, filepath.Base(path), err)
	}
	return img, nil
}

// DefaultCacheSize is how many decoded images NewImageCache keeps.
const DefaultCacheSize = 8

// ImageCache keeps recently decoded images keyed by path so repeated editor
// requests against the same scan do not decode it again. Once full, the
// least recently used image is dropped.
//
// ImageCache is safe for concurrent use.
type ImageCache struct {
	mu    sync.Mutex
	size  int
	order *list.List // front is most recently used
	items map[string]*list.Element
}

type cacheEntry struct {
	path string
	img  image.Image
}

// NewImageCache creates an empty cache holding up to DefaultCacheSize images.
func NewImageCache() *ImageCache {
	return NewImageCacheSize(DefaultCacheSize)
}

// NewImageCacheSize creates an empty cache holding up to size images. A
// size below one is treated as one.
func NewImageCacheSize(size int) *ImageCache {
	return &ImageCache{
		size:  max(size, 1),
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Load returns the cached image for path, decoding it on first use.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.get(path); ok {
		return img, nil
	}

	img, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have decoded the same path meanwhile.
	if el, ok := c.items[path]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).img, nil
	}
	c.items[path] = c.order.PushFront(&cacheEntry{path: path, img: img})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).path)
	}
	return img, nil
}

func (c *ImageCache) get(path string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[path]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).img, true
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Contains reports whether path is cached without touching its recency.
func (c *ImageCache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[path]
	return ok
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.mu.Unlock()
}

// Evict removes one image. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	if el, ok := c.items[path]; ok {
		c.order.Remove(el)
		delete(c.items, path)
	}
	c.mu.Unlock()
}

// ImageInfo describes a scan before it is standardized.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`

	// ScaleX and ScaleY map original pixels onto the canonical canvas.
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`

	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads path through cache and reports its size, format and
// the factors that Standardize will scale it by.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	bounds := img.Bounds()
	info := &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}
	if info.Width > 0 && info.Height > 0 {
		info.ScaleX = float64(CanonicalWidth) / float64(info.Width)
		info.ScaleY = float64(CanonicalHeight) / float64(info.Height)
	}
	return info, nil
}
