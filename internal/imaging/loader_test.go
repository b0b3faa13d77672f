package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
)

// writeTestImage encodes a solid image into dir/name using the format
// implied by the extension.
func writeTestImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := createInMemoryImage(image.Rect(0, 0, width, height), color.RGBA{128, 128, 128, 255})
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to save %s: %v", name, err)
	}
	return path
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"scan.png", true},
		{"scan.JPG", true},
		{"scan.jpeg", true},
		{"scan.TIFF", true},
		{"scan.tif", true},
		{"scan.bmp", true},
		{"scan.gif", false},
		{"scan.pdf", false},
		{"README", false},
	}
	for _, tt := range tests {
		if got := IsSupported(tt.path); got != tt.want {
			t.Errorf("IsSupported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "c.tif", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	want := []string{"a.JPG", "b.png", "c.tif"}
	if len(got) != len(want) {
		t.Fatalf("ListImages = %v", got)
	}
	for i, name := range want {
		if filepath.Base(got[i]) != name {
			t.Errorf("ListImages[%d] = %s, want %s", i, filepath.Base(got[i]), name)
		}
	}

	if _, err := ListImages(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoad_Formats(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "a.jpg", "a.tif", "a.bmp"} {
		t.Run(name, func(t *testing.T) {
			path := writeTestImage(t, dir, name, 40, 30)
			img, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
				t.Errorf("size = %v", img.Bounds())
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(garbage); !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestImageCache(t *testing.T) {
	dir := t.TempDir()
	path := writeTestImage(t, dir, "a.png", 20, 20)
	cache := NewImageCache()

	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := cache.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second Load should return the cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}

	cache.Evict(path)
	if cache.Len() != 0 {
		t.Errorf("Len after Evict = %d", cache.Len())
	}

	if _, err := cache.Load(path); err != nil {
		t.Fatal(err)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear = %d", cache.Len())
	}
}

func TestImageCache_DropsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	a := writeTestImage(t, dir, "a.png", 10, 10)
	b := writeTestImage(t, dir, "b.png", 10, 10)
	c := writeTestImage(t, dir, "c.png", 10, 10)
	cache := NewImageCacheSize(2)

	for _, p := range []string{a, b, a, c} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s) failed: %v", filepath.Base(p), err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2", cache.Len())
	}
	if cache.Contains(b) {
		t.Error("b.png was least recently used and should be gone")
	}
	if !cache.Contains(a) || !cache.Contains(c) {
		t.Error("a.png and c.png should still be cached")
	}
}

func TestImageCache_DefaultSize(t *testing.T) {
	dir := t.TempDir()
	cache := NewImageCache()
	for i := 0; i < DefaultCacheSize+3; i++ {
		path := writeTestImage(t, dir, fmt.Sprintf("scan_%02d.png", i), 10, 10)
		if _, err := cache.Load(path); err != nil {
			t.Fatal(err)
		}
	}
	if cache.Len() != DefaultCacheSize {
		t.Errorf("Len = %d, want %d", cache.Len(), DefaultCacheSize)
	}
	if NewImageCacheSize(0).size != 1 {
		t.Error("size below one should be raised to one")
	}
}

func TestImageCache_Concurrent(t *testing.T) {
	dir := t.TempDir()
	path := writeTestImage(t, dir, "a.png", 20, 20)
	cache := NewImageCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestLoadImageInfo(t *testing.T) {
	dir := t.TempDir()
	path := writeTestImage(t, dir, "form.jpg", 827, 1169)

	info, err := LoadImageInfo(NewImageCache(), path)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Width != 827 || info.Height != 1169 {
		t.Errorf("size = %dx%d", info.Width, info.Height)
	}
	if info.Format != "jpeg" {
		t.Errorf("Format = %q, want jpeg", info.Format)
	}
	if info.ScaleX != 2 {
		t.Errorf("ScaleX = %v, want 2", info.ScaleX)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}
}
