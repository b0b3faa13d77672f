package ocr

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/docroi/internal/field"
)

// Params tunes region preprocessing and recognition.
type Params struct {
	// UpscaleFactor multiplies both crop dimensions before recognition.
	UpscaleFactor int `yaml:"upscale_factor" json:"upscale_factor"`

	// ContrastGain is the linear gain applied to numeric fields and to the
	// third recognition variant. Values saturate at white.
	ContrastGain float64 `yaml:"contrast_gain" json:"contrast_gain"`

	// SmoothingRadius is the median filter radius. Zero disables smoothing.
	SmoothingRadius float64 `yaml:"smoothing_radius" json:"smoothing_radius"`

	Language string `yaml:"language" json:"language"`
}

// DefaultParams returns the tuning used for 200 DPI scans.
func DefaultParams() Params {
	return Params{
		UpscaleFactor:   8,
		ContrastGain:    1.5,
		SmoothingRadius: 2,
		Language:        DefaultLanguage,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.UpscaleFactor <= 0 {
		p.UpscaleFactor = d.UpscaleFactor
	}
	if p.ContrastGain <= 0 {
		p.ContrastGain = d.ContrastGain
	}
	if p.SmoothingRadius < 0 {
		p.SmoothingRadius = 0
	}
	if p.Language == "" {
		p.Language = d.Language
	}
	return p
}

// Preprocess prepares a region crop for recognition: grayscale, upscale,
// edge-preserving smoothing and, for numeric fields, a contrast boost.
func Preprocess(img image.Image, t field.Type, p Params) image.Image {
	p = p.withDefaults()

	var out image.Image = imaging.Grayscale(img)
	b := out.Bounds()
	if p.UpscaleFactor > 1 {
		out = imaging.Resize(out, b.Dx()*p.UpscaleFactor, b.Dy()*p.UpscaleFactor, imaging.CatmullRom)
	}
	if p.SmoothingRadius > 0 {
		out = effect.Median(out, p.SmoothingRadius)
	}
	if t.Numeric() {
		out = Boost(out, p.ContrastGain)
	}
	return out
}

// Variants returns the recognition attempts for a preprocessed region, in
// order: as is, inverted, contrast boosted.
func Variants(img image.Image, p Params) []image.Image {
	p = p.withDefaults()
	return []image.Image{
		img,
		imaging.Invert(img),
		Boost(img, p.ContrastGain),
	}
}

// Boost multiplies every colour channel by gain, saturating at 255.
func Boost(img image.Image, gain float64) *image.RGBA {
	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		return color.RGBA{
			R: scaleChannel(c.R, gain),
			G: scaleChannel(c.G, gain),
			B: scaleChannel(c.B, gain),
			A: c.A,
		}
	})
}

func scaleChannel(v uint8, gain float64) uint8 {
	x := math.Round(float64(v) * gain)
	if x > 255 {
		return 255
	}
	if x < 0 {
		return 0
	}
	return uint8(x)
}
