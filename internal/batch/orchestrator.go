package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/extract"
	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/logging"
	"github.com/ironsheep/docroi/internal/template"
)

// DefaultConsolidatedName is the consolidated file created in the output
// directory.
const DefaultConsolidatedName = "consolidated_results.csv"

// DefaultDelimiter separates consolidated columns. Semicolons keep decimal
// commas intact for spreadsheet users.
const DefaultDelimiter = ';'

var (
	// ErrNoImages is returned when the input directory holds no supported image.
	ErrNoImages = errors.New("no images found")

	// ErrStopped is returned when Options.Stop ended a run early.
	ErrStopped = errors.New("batch stopped")
)

// Extractor turns one image file into a record.
type Extractor interface {
	ExtractFile(ctx context.Context, path string, tpl *template.Template) (*extract.Record, error)
}

// Progress is reported after every image.
type Progress struct {
	RunID     string
	Processed int
	Failed    int
	Total     int
	Current   string
}

// Options describe one directory run.
type Options struct {
	InputDir  string
	OutputDir string
	Template  *template.Template

	// Consolidate appends one row per image to a single CSV file instead of
	// writing one JSON file per image.
	Consolidate bool

	// FieldOrder selects and orders the CSV columns. Empty means the
	// template's region order.
	FieldOrder []string

	Progress func(Progress)

	// Stop is polled between images; returning true ends the run with
	// ErrStopped. The image in progress is always finished.
	Stop func() bool
}

// Orchestrator runs a template over every image of a directory.
type Orchestrator struct {
	extractor        Extractor
	log              logrus.FieldLogger
	consolidatedName string
	delimiter        rune
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = logging.OrDiscard(l) }
}

// WithConsolidatedName overrides DefaultConsolidatedName.
func WithConsolidatedName(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.consolidatedName = name
		}
	}
}

// WithDelimiter overrides DefaultDelimiter.
func WithDelimiter(r rune) Option {
	return func(o *Orchestrator) {
		if r != 0 {
			o.delimiter = r
		}
	}
}

// NewOrchestrator returns an Orchestrator that extracts with ex.
func NewOrchestrator(ex Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:        ex,
		log:              logging.Discard(),
		consolidatedName: DefaultConsolidatedName,
		delimiter:        DefaultDelimiter,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessDirectory extracts every supported image in opts.InputDir, in file
// name order, and returns the consolidated CSV path or, without
// consolidation, the output directory.
//
// A failing image is logged and skipped. Cancellation and opts.Stop are
// checked between images; an interrupted run returns the output path
// together with ctx.Err() or ErrStopped.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, opts Options) (string, error) {
	if opts.Template == nil {
		return "", errors.New("no template given")
	}
	if opts.OutputDir == "" {
		return "", errors.New("no output directory given")
	}

	images, err := imaging.ListImages(opts.InputDir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoImages, opts.InputDir)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()
	log := o.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"doc_type": opts.Template.DocType,
		"template": opts.Template.Name,
	})

	output := opts.OutputDir
	var csvOut *csvWriter
	if opts.Consolidate {
		order := opts.FieldOrder
		if len(order) == 0 {
			order = opts.Template.Regions.Names()
		}
		output = filepath.Join(opts.OutputDir, o.consolidatedName)
		csvOut, err = openCSV(output, o.delimiter, order)
		if err != nil {
			return "", err
		}
		defer csvOut.Close()
	}

	log.WithFields(logrus.Fields{"images": len(images), "input": opts.InputDir}).Info("batch started")

	p := Progress{RunID: runID, Total: len(images)}
	for _, path := range images {
		if err := interrupted(ctx, opts.Stop); err != nil {
			log.WithError(err).WithField("processed", p.Processed).Warn("batch interrupted")
			return output, err
		}

		name := filepath.Base(path)
		p.Current = name
		if err := o.processOne(ctx, path, opts, csvOut); err != nil {
			p.Failed++
			log.WithError(err).WithField("image", name).Error("image failed")
		}
		p.Processed++
		if opts.Progress != nil {
			opts.Progress(p)
		}
	}

	if csvOut != nil {
		if err := csvOut.Close(); err != nil {
			return output, fmt.Errorf("failed to close consolidated file: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"processed": p.Processed,
		"failed":    p.Failed,
		"output":    output,
	}).Info("batch finished")
	return output, nil
}

func interrupted(ctx context.Context, stop func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stop != nil && stop() {
		return ErrStopped
	}
	return nil
}

// processOne extracts and writes one image. The image always runs to the
// end: a record cut short by cancellation would carry blank fields that
// look like genuine misreads. Cancellation is honoured between images.
func (o *Orchestrator) processOne(ctx context.Context, path string, opts Options, csvOut *csvWriter) error {
	rec, err := o.extractor.ExtractFile(context.WithoutCancel(ctx), path, opts.Template)
	if err != nil {
		return err
	}
	if csvOut != nil {
		return csvOut.Write(rec)
	}
	_, err = writeJSON(opts.OutputDir, rec)
	return err
}
