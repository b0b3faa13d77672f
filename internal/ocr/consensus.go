package ocr

import (
	"context"
	"image"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/field"
	"github.com/ironsheep/docroi/internal/logging"
)

// Variant names, in attempt order.
const (
	VariantOriginal = "original"
	VariantInverted = "inverted"
	VariantContrast = "contrast"
)

var variantNames = []string{VariantOriginal, VariantInverted, VariantContrast}

var reDateLike = regexp.MustCompile(`\d{2}/\d{2}/\d{2,4}`)

// Attempt is one recognition pass over a region variant.
type Attempt struct {
	Variant string `json:"variant"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a consensus run.
type Result struct {
	Text     string    `json:"text"`
	Config   string    `json:"config"`
	Attempts []Attempt `json:"attempts"`
}

// Consensus runs several recognition attempts over a region and keeps the
// one that best fits the expected field type.
type Consensus struct {
	engine Engine
	params Params
	log    logrus.FieldLogger
}

// NewConsensus returns a Consensus over engine. Zero Params fields take
// their defaults; a nil logger discards.
func NewConsensus(engine Engine, params Params, log logrus.FieldLogger) *Consensus {
	return &Consensus{
		engine: engine,
		params: params.withDefaults(),
		log:    logging.OrDiscard(log),
	}
}

// Params returns the effective tuning.
func (c *Consensus) Params() Params { return c.params }

// Recognize returns the arbitrated raw text for region. It never fails:
// engine errors count as empty attempts and the result may be "".
func (c *Consensus) Recognize(ctx context.Context, region image.Image, t field.Type) string {
	return c.RecognizeDetailed(ctx, region, t).Text
}

// RecognizeDetailed is Recognize that also reports every attempt.
// Cancellation is checked between attempts; attempts made so far are kept.
func (c *Consensus) RecognizeDetailed(ctx context.Context, region image.Image, t field.Type) Result {
	cfg := ConfigFor(t, c.params.Language)
	res := Result{Config: cfg.String(), Attempts: make([]Attempt, 0, len(variantNames))}

	prepared := Preprocess(region, t, c.params)
	texts := make([]string, 0, len(variantNames))
	for i, img := range Variants(prepared, c.params) {
		if ctx.Err() != nil {
			break
		}
		a := Attempt{Variant: variantNames[i]}
		text, err := c.engine.Recognize(ctx, img, cfg)
		if err != nil {
			a.Error = err.Error()
			c.log.WithError(err).WithFields(logrus.Fields{
				"variant": a.Variant,
				"type":    t,
			}).Debug("recognition attempt failed")
			text = ""
		}
		a.Text = strings.TrimSpace(text)
		res.Attempts = append(res.Attempts, a)
		texts = append(texts, a.Text)
	}

	res.Text = Arbitrate(texts, t)
	return res
}

// Arbitrate picks the best attempt for a field type. Blank attempts are
// ignored and "" is returned when nothing is left.
//
//   - cpf, number, currency: the attempt with the most digits
//   - date: the first attempt containing DD/MM/YY or DD/MM/YYYY
//   - text: the longest attempt that is not just a number
//
// Ties go to the earliest attempt. When no attempt qualifies for date or
// text, the first non-blank one is returned.
func Arbitrate(attempts []string, t field.Type) string {
	valid := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if s := strings.TrimSpace(a); s != "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return ""
	}

	switch t {
	case field.CPF, field.Number, field.Currency:
		return maxBy(valid, field.CountDigits)
	case field.Date:
		for _, v := range valid {
			if reDateLike.MatchString(v) {
				return v
			}
		}
		return valid[0]
	}

	words := make([]string, 0, len(valid))
	for _, v := range valid {
		if !isNumeric(v) {
			words = append(words, v)
		}
	}
	if len(words) == 0 {
		return valid[0]
	}
	return maxBy(words, utf8.RuneCountInString)
}

// maxBy returns the first element with the highest score.
func maxBy(items []string, score func(string) int) string {
	best, bestScore := items[0], score(items[0])
	for _, s := range items[1:] {
		if n := score(s); n > bestScore {
			best, bestScore = s, n
		}
	}
	return best
}

// isNumeric reports whether s is only digits once dots and commas are removed.
func isNumeric(s string) bool {
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
