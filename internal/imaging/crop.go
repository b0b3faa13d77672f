package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// ErrGeometry reports a region that has no area once clamped to the image.
var ErrGeometry = errors.New("invalid region geometry")

// PlaceholderSize is the side of the black square returned for bad regions.
const PlaceholderSize = 10

// Placeholder returns a PlaceholderSize square of solid black.
func Placeholder() *image.NRGBA {
	return imaging.New(PlaceholderSize, PlaceholderSize, color.NRGBA{0, 0, 0, 255})
}

// Clamp limits r to a width x height canvas anchored at the origin.
func Clamp(r image.Rectangle, width, height int) image.Rectangle {
	return image.Rect(
		clamp(r.Min.X, 0, width), clamp(r.Min.Y, 0, height),
		clamp(r.Max.X, 0, width), clamp(r.Max.Y, 0, height),
	)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CropClamped crops r out of img after clamping it to the image. r is in
// coordinates relative to the image's top-left corner. The result always
// starts at (0,0).
func CropClamped(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrGeometry)
	}
	if r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y {
		return nil, fmt.Errorf("%w: (%d,%d)-(%d,%d) is empty",
			ErrGeometry, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	}

	bounds := img.Bounds()
	c := Clamp(r, bounds.Dx(), bounds.Dy())
	if c.Empty() {
		return nil, fmt.Errorf("%w: (%d,%d)-(%d,%d) lies outside %dx%d image",
			ErrGeometry, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Dx(), bounds.Dy())
	}
	return imaging.Crop(img, c.Add(bounds.Min)), nil
}

// ExtractRegion is CropClamped for the batch path: it never fails, logging
// the problem and returning Placeholder instead.
func ExtractRegion(img image.Image, r image.Rectangle, log logrus.FieldLogger) image.Image {
	crop, err := CropClamped(img, r)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("region extraction failed, using placeholder")
		}
		return Placeholder()
	}
	return crop
}

// CropResult is an encoded region image returned to editor clients.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// NewCropResult encodes img as a base64 PNG.
func NewCropResult(img image.Image) (*CropResult, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &CropResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}
