package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Canonical canvas, an A4 page at 200 DPI. Template coordinates live here.
const (
	CanonicalWidth  = 1654
	CanonicalHeight = 2339
)

var errEmptyImage = errors.New("image is empty")

// Standardize converts img to grayscale, resizes it to width x height with
// cubic interpolation and expands it back to three equal colour channels.
//
// It never fails: on any problem the error is logged and img is returned
// unchanged, so a batch keeps going with the original pixels.
func Standardize(img image.Image, width, height int, log logrus.FieldLogger) image.Image {
	out, err := standardize(img, width, height)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("standardization failed, using original image")
		}
		return img
	}
	return out
}

func standardize(img image.Image, width, height int) (out *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("standardize: %v", r)
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	gray := imaging.Grayscale(img)
	resized := imaging.Resize(gray, width, height, imaging.CatmullRom)

	// Composite onto white so transparent areas read as paper.
	rgb := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgb, rgb.Bounds(), image.Opaque, image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), resized, resized.Bounds().Min, draw.Over)
	return rgb, nil
}
