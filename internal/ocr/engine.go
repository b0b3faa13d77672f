package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/docroi/internal/field"
)

// Page segmentation modes used by the field configurations.
const (
	PSMSingleBlock = 6
	PSMSingleLine  = 7
)

// OEMDefault lets the engine pick its recognizer (LSTM when available).
const OEMDefault = 3

// DefaultLanguage is the recognizer language hint for Brazilian forms.
const DefaultLanguage = "por"

// Config is the recognizer configuration for one attempt.
type Config struct {
	PSM       int
	OEM       int
	Whitelist string
	Language  string
}

// String renders c the way it would be passed on a tesseract command line.
// The language is not part of it.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--psm %d --oem %d", c.PSM, c.OEM)
	if c.Whitelist != "" {
		fmt.Fprintf(&b, " -c tessedit_char_whitelist=%s", c.Whitelist)
	}
	return b.String()
}

var whitelists = map[field.Type]string{
	field.CPF:      "0123456789.-/",
	field.Number:   "0123456789.",
	field.Currency: "0123456789,.",
	field.Date:     "0123456789/",
}

// ConfigFor returns the fixed configuration for a field type. Text reads a
// block; every numeric type reads a single line restricted to its characters.
func ConfigFor(t field.Type, language string) Config {
	if language == "" {
		language = DefaultLanguage
	}
	if !t.Numeric() {
		return Config{PSM: PSMSingleBlock, OEM: OEMDefault, Language: language}
	}
	return Config{
		PSM:       PSMSingleLine,
		OEM:       OEMDefault,
		Whitelist: whitelists[t],
		Language:  language,
	}
}

// Engine recognizes the text in an image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, cfg Config) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img image.Image, cfg Config) (string, error)

// Recognize calls f.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image, cfg Config) (string, error) {
	return f(ctx, img, cfg)
}
