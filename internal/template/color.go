package template

import (
	"encoding/json"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is the display colour of a region. It has no meaning for extraction
// and only helps an editor tell regions apart. Every value, black included,
// is a real colour; a region without one holds a nil *Color.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// Hex returns the colour as "#rrggbb".
func (c Color) Hex() string {
	return c.colorful().Hex()
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// ParseHexColor parses "#rrggbb".
func ParseHexColor(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b}, nil
}

// RandomColor returns a saturated, readable colour for a new region.
func RandomColor() Color {
	r, g, b := colorful.FastHappyColor().RGB255()
	return Color{R: r, G: g, B: b}
}

// MarshalJSON encodes the colour as an [r, g, b] array.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

// UnmarshalJSON accepts either an [r, g, b] array or a "#rrggbb" string.
func (c *Color) UnmarshalJSON(b []byte) error {
	var hex string
	if err := json.Unmarshal(b, &hex); err == nil {
		parsed, err := ParseHexColor(hex)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var rgb [3]int
	if err := json.Unmarshal(b, &rgb); err != nil {
		return fmt.Errorf("color must be [r,g,b] or \"#rrggbb\": %w", err)
	}
	for _, v := range rgb {
		if v < 0 || v > 255 {
			return fmt.Errorf("color component %d out of range 0-255", v)
		}
	}
	*c = Color{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2])}
	return nil
}
