package extract

import (
	"context"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/field"
	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/logging"
	"github.com/ironsheep/docroi/internal/ocr"
	"github.com/ironsheep/docroi/internal/template"
)

// Recognizer is the part of ocr.Consensus the pipeline needs.
type Recognizer interface {
	RecognizeDetailed(ctx context.Context, region image.Image, t field.Type) ocr.Result
}

// Pipeline runs standardize, extract, recognize and normalize for a
// template. It holds no per-image state and may be shared.
type Pipeline struct {
	recognizer Recognizer
	width      int
	height     int
	log        logrus.FieldLogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCanvas overrides the canonical canvas size.
func WithCanvas(width, height int) Option {
	return func(p *Pipeline) { p.width, p.height = width, height }
}

// WithLogger sets the pipeline logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = logging.OrDiscard(l) }
}

// New returns a Pipeline using r for recognition.
func New(r Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer: r,
		width:      imaging.CanonicalWidth,
		height:     imaging.CanonicalHeight,
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Standardize maps img onto the pipeline canvas.
func (p *Pipeline) Standardize(img image.Image) image.Image {
	return imaging.Standardize(img, p.width, p.height, p.log)
}

// ExtractFile loads path and extracts every region of tpl from it. Only a
// load failure is returned; everything after decoding is absorbed.
func (p *Pipeline) ExtractFile(ctx context.Context, path string, tpl *template.Template) (*Record, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	return p.ExtractImage(ctx, filepath.Base(path), img, tpl), nil
}

// ExtractImage standardizes img and extracts every region of tpl, in
// template order.
func (p *Pipeline) ExtractImage(ctx context.Context, name string, img image.Image, tpl *template.Template) *Record {
	log := p.log.WithFields(logrus.Fields{"image": name, "template": tpl.Name})
	canonical := p.Standardize(img)

	rec := &Record{Image: name, Fields: make([]Value, 0, len(tpl.Regions))}
	for _, region := range tpl.Regions {
		res := p.region(ctx, canonical, region, log)
		rec.Fields = append(rec.Fields, Value{Name: region.Name, Value: res.Value})
	}
	return rec
}

// RegionResult is the outcome of extracting a single region.
type RegionResult struct {
	Name     string        `json:"name"`
	Type     field.Type    `json:"expected_type"`
	Raw      string        `json:"raw"`
	Value    string        `json:"value"`
	Valid    bool          `json:"valid"`
	Config   string        `json:"config"`
	Attempts []ocr.Attempt `json:"attempts"`

	Crop image.Image `json:"-"`
}

// TestExtract standardizes img and extracts one region, reporting every
// intermediate step. It lets an editor check a region before saving it.
func (p *Pipeline) TestExtract(ctx context.Context, img image.Image, region template.Region) RegionResult {
	return p.region(ctx, p.Standardize(img), region, p.log)
}

func (p *Pipeline) region(ctx context.Context, canonical image.Image, region template.Region, log logrus.FieldLogger) RegionResult {
	log = log.WithField("region", region.Name)
	crop := imaging.ExtractRegion(canonical, region.Coords.Image(), log)
	res := p.recognizer.RecognizeDetailed(ctx, crop, region.ExpectedType)
	value := field.Normalize(res.Text, region.ExpectedType)

	log.WithFields(logrus.Fields{"raw": res.Text, "value": value}).Debug("region recognized")
	return RegionResult{
		Name:     region.Name,
		Type:     region.ExpectedType,
		Raw:      res.Text,
		Value:    value,
		Valid:    field.Validate(value, region.ExpectedType),
		Config:   res.Config,
		Attempts: res.Attempts,
		Crop:     crop,
	}
}

// Evaluation reports how well a template fits an image.
type Evaluation struct {
	Confidence float64        `json:"confidence"`
	Threshold  float64        `json:"threshold"`
	Fits       bool           `json:"fits"`
	Valid      int            `json:"valid"`
	Total      int            `json:"total"`
	Fields     []RegionResult `json:"fields"`
}

// Evaluate extracts every region of tpl from img and scores the share of
// fields whose normalized value validates for its type.
func (p *Pipeline) Evaluate(ctx context.Context, img image.Image, tpl *template.Template) Evaluation {
	log := p.log.WithField("template", tpl.Name)
	canonical := p.Standardize(img)

	ev := Evaluation{
		Threshold: tpl.ConfidenceThreshold,
		Total:     len(tpl.Regions),
		Fields:    make([]RegionResult, 0, len(tpl.Regions)),
	}
	for _, region := range tpl.Regions {
		res := p.region(ctx, canonical, region, log)
		if res.Valid {
			ev.Valid++
		}
		res.Crop = nil
		ev.Fields = append(ev.Fields, res)
	}
	ev.Confidence = field.Confidence(ev.Valid, ev.Total)
	ev.Fits = tpl.Fits(ev.Confidence)

	log.WithFields(logrus.Fields{
		"confidence": ev.Confidence,
		"fits":       ev.Fits,
	}).Info("template evaluated")
	return ev
}
