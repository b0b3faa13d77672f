package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/ironsheep/docroi/internal/field"
)

// scriptedEngine returns one scripted output per call, in order.
type scriptedEngine struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	configs []Config
	sizes   []image.Point
	onCall  func(n int)
}

func (e *scriptedEngine) Recognize(ctx context.Context, img image.Image, cfg Config) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.configs)
	e.configs = append(e.configs, cfg)
	e.sizes = append(e.sizes, img.Bounds().Size())
	if e.onCall != nil {
		e.onCall(n)
	}
	var err error
	if n < len(e.errs) {
		err = e.errs[n]
	}
	if n < len(e.outputs) {
		return e.outputs[n], err
	}
	return "", err
}

func smallRegion() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 12, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestArbitrate(t *testing.T) {
	tests := []struct {
		name     string
		attempts []string
		typ      field.Type
		want     string
	}{
		{"cpf most digits", []string{"123.456", "123.456.789-01", "12"}, field.CPF, "123.456.789-01"},
		{"cpf tie earliest", []string{"12a", "1b2", ""}, field.CPF, "12a"},
		{"number most digits", []string{"1", "", "1.234"}, field.Number, "1.234"},
		{"currency most digits", []string{"1,00", "150,00", "15,0"}, field.Currency, "150,00"},
		{"date first match", []string{"0507/2023", "05/07/23", "05/07/2023"}, field.Date, "05/07/23"},
		{"date no match", []string{"", "5/7", "x"}, field.Date, "5/7"},
		{"text longest non numeric", []string{"Joao", "Joao Silva", "1234567890123"}, field.Text, "Joao Silva"},
		{"text tie earliest", []string{"abc", "xyz"}, field.Text, "abc"},
		{"text all numeric", []string{"1.234", "12,5"}, field.Text, "1.234"},
		{"text counts runes", []string{"ação", "acao1"}, field.Text, "acao1"},
		{"all empty", []string{"", "  ", "\n"}, field.CPF, ""},
		{"no attempts", nil, field.Text, ""},
		{"trims", []string{"  Maria \n"}, field.Text, "Maria"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Arbitrate(tt.attempts, tt.typ); got != tt.want {
				t.Errorf("Arbitrate(%q, %s) = %q, want %q", tt.attempts, tt.typ, got, tt.want)
			}
		})
	}
}

func TestArbitrate_DigitDominance(t *testing.T) {
	// Whatever the order, the attempt with strictly more digits wins.
	attempts := []string{"123.456.789", "123.456.789-01", "1234"}
	for i := 0; i < len(attempts); i++ {
		rotated := append(append([]string{}, attempts[i:]...), attempts[:i]...)
		if got := Arbitrate(rotated, field.CPF); got != "123.456.789-01" {
			t.Errorf("Arbitrate(%q) = %q", rotated, got)
		}
	}
}

func TestConsensus_Recognize(t *testing.T) {
	engine := &scriptedEngine{outputs: []string{"123.456", " 123.456.789-01\n", "12"}}
	c := NewConsensus(engine, Params{}, nil)

	got := c.Recognize(context.Background(), smallRegion(), field.CPF)
	if got != "123.456.789-01" {
		t.Errorf("Recognize = %q", got)
	}

	if len(engine.configs) != 3 {
		t.Fatalf("engine called %d times, want 3", len(engine.configs))
	}
	for _, cfg := range engine.configs {
		if cfg.String() != "--psm 7 --oem 3 -c tessedit_char_whitelist=0123456789.-/" {
			t.Errorf("config = %q", cfg.String())
		}
		if cfg.Language != "por" {
			t.Errorf("language = %q, want por", cfg.Language)
		}
	}
	want := image.Pt(12*8, 6*8)
	for _, size := range engine.sizes {
		if size != want {
			t.Errorf("attempt size = %v, want %v", size, want)
		}
	}
}

func TestConsensus_EngineErrorsAreEmptyAttempts(t *testing.T) {
	boom := errors.New("engine crashed")
	engine := &scriptedEngine{
		outputs: []string{"garbage", "", "Maria"},
		errs:    []error{boom, boom, nil},
	}
	c := NewConsensus(engine, Params{}, nil)

	res := c.RecognizeDetailed(context.Background(), smallRegion(), field.Text)
	if res.Text != "Maria" {
		t.Errorf("Text = %q, want Maria", res.Text)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d", len(res.Attempts))
	}
	if res.Attempts[0].Text != "" || res.Attempts[0].Error == "" {
		t.Errorf("failed attempt should be empty with error, got %+v", res.Attempts[0])
	}
	if res.Attempts[1].Variant != VariantInverted {
		t.Errorf("variant order = %s", res.Attempts[1].Variant)
	}
	if res.Config != "--psm 6 --oem 3" {
		t.Errorf("Config = %q", res.Config)
	}
}

func TestConsensus_AllFail(t *testing.T) {
	boom := errors.New("no engine")
	engine := &scriptedEngine{errs: []error{boom, boom, boom}}
	c := NewConsensus(engine, Params{}, nil)
	if got := c.Recognize(context.Background(), smallRegion(), field.Date); got != "" {
		t.Errorf("Recognize = %q, want empty", got)
	}
}

func TestConsensus_StopsBetweenAttemptsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := &scriptedEngine{
		outputs: []string{"12", "123456", "123456789"},
		onCall: func(n int) {
			if n == 0 {
				cancel()
			}
		},
	}
	c := NewConsensus(engine, Params{}, nil)

	res := c.RecognizeDetailed(ctx, smallRegion(), field.Number)
	if len(res.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(res.Attempts))
	}
	if res.Text != "12" {
		t.Errorf("Text = %q, want the gathered attempt", res.Text)
	}
}

func TestConsensus_CustomLanguage(t *testing.T) {
	engine := &scriptedEngine{}
	c := NewConsensus(engine, Params{Language: "eng", UpscaleFactor: 2}, nil)
	c.Recognize(context.Background(), smallRegion(), field.Text)

	if engine.configs[0].Language != "eng" {
		t.Errorf("language = %q", engine.configs[0].Language)
	}
	if engine.sizes[0] != image.Pt(24, 12) {
		t.Errorf("size = %v, want 24x12", engine.sizes[0])
	}
	if c.Params().ContrastGain != 1.5 {
		t.Errorf("ContrastGain default = %v", c.Params().ContrastGain)
	}
}
