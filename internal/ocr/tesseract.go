package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/docroi/internal/imaging"
)

// Tesseract is the Engine backed by the Tesseract library. A new client is
// created for every call, so a Tesseract value is safe for concurrent use.
type Tesseract struct {
	clientFactory  func() *gosseract.Client
	tessdataPrefix string
}

// TesseractOption configures a Tesseract engine.
type TesseractOption func(*Tesseract)

// WithTessdataPrefix points the engine at a directory of traineddata files
// instead of the system default.
func WithTessdataPrefix(dir string) TesseractOption {
	return func(e *Tesseract) { e.tessdataPrefix = dir }
}

// NewTesseract returns a Tesseract engine.
func NewTesseract(opts ...TesseractOption) *Tesseract {
	e := &Tesseract{clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine in logs and tool output.
func (e *Tesseract) Name() string { return "tesseract" }

// Recognize runs one recognition pass over img.
func (e *Tesseract) Recognize(ctx context.Context, img image.Image, cfg Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", err
	}

	client := e.clientFactory()
	defer client.Close()

	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if cfg.Language != "" {
		if err := client.SetLanguage(cfg.Language); err != nil {
			return "", fmt.Errorf("failed to set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// Info describes the installed recognizer.
type Info struct {
	Engine    string   `json:"engine"`
	Version   string   `json:"version"`
	Languages []string `json:"languages"`
	Available bool     `json:"available"`
	Error     string   `json:"error,omitempty"`
}

// Info reports the library version and installed languages.
func (e *Tesseract) Info() Info {
	info := Info{Engine: e.Name(), Languages: []string{}}

	client := e.clientFactory()
	defer client.Close()
	info.Version = client.Version()

	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	sort.Strings(langs)
	info.Languages = langs
	info.Available = true
	return info
}

// HasLanguage reports whether lang is installed.
func (i Info) HasLanguage(lang string) bool {
	for _, l := range i.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
