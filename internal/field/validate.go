package field

import (
	"regexp"
	"strings"
)

// reDateShape accepts both year widths; unlike reDate it is only used to
// answer yes or no.
var reDateShape = regexp.MustCompile(`\d{2}/\d{2}/(\d{4}|\d{2})`)

// Validate reports whether text has the structure expected for t. It is used
// for scoring how well a template fits an image, never to reject a value.
func Validate(text string, t Type) bool {
	if text == "" {
		return false
	}
	switch t {
	case CPF:
		n := CountDigits(text)
		return n == 11 || n == 14
	case Date:
		return reDateShape.MatchString(text)
	case Currency:
		return reCurrency.MatchString(text)
	case Number:
		return CountDigits(text) > 0
	default:
		return strings.TrimSpace(text) != ""
	}
}

// Confidence is the share of fields that validated. An empty template has
// zero confidence.
func Confidence(valid, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(valid) / float64(total)
}
