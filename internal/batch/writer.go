package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/docroi/internal/extract"
)

// csvWriter appends one row per record to the consolidated file.
type csvWriter struct {
	f     *os.File
	w     *csv.Writer
	order []string
}

// openCSV opens path for appending and writes the header when the file is
// new or empty.
func openCSV(path string, delimiter rune, order []string) (*csvWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open consolidated file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat consolidated file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = delimiter
	w.UseCRLF = true
	cw := &csvWriter{f: f, w: w, order: order}

	if stat.Size() == 0 {
		if err := cw.writeRow(order); err != nil {
			f.Close()
			return nil, err
		}
	}
	return cw, nil
}

func (cw *csvWriter) Write(rec *extract.Record) error {
	return cw.writeRow(rec.Project(cw.order))
}

func (cw *csvWriter) writeRow(row []string) error {
	if err := cw.w.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return fmt.Errorf("failed to flush row: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Calling it again is a no-op.
func (cw *csvWriter) Close() error {
	if cw.f == nil {
		return nil
	}
	f := cw.f
	cw.f = nil

	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ResultFileName returns the per-image output name for an image file.
func ResultFileName(image string) string {
	base := filepath.Base(image)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_results.json"
}

// writeJSON writes rec to dir/<stem>_results.json, replacing any previous
// result for the same image.
func writeJSON(dir string, rec *extract.Record) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	path := filepath.Join(dir, ResultFileName(rec.Image))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	return path, nil
}
