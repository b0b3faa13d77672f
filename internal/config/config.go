// Package config resolves runtime settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// variables from an optional .env file, then DOCROI_* environment variables.
// Command-line flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/docroi/internal/batch"
	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/ocr"
	"github.com/ironsheep/docroi/internal/template"
)

// Environment variables read by Load.
const (
	EnvConfig           = "DOCROI_CONFIG"
	EnvStore            = "DOCROI_STORE"
	EnvBackupDir        = "DOCROI_BACKUP_DIR"
	EnvLogLevel         = "DOCROI_LOG_LEVEL"
	EnvTessdataPrefix   = "DOCROI_TESSDATA_PREFIX"
	EnvLanguage         = "DOCROI_LANGUAGE"
	EnvDelimiter        = "DOCROI_DELIMITER"
	EnvConsolidatedName = "DOCROI_CONSOLIDATED_NAME"
)

// DefaultEnvFile is loaded when present in the working directory.
const DefaultEnvFile = ".env"

// Config is the resolved configuration.
type Config struct {
	StorePath      string     `yaml:"store_path"`
	BackupDir      string     `yaml:"backup_dir"`
	LogLevel       string     `yaml:"log_level"`
	TessdataPrefix string     `yaml:"tessdata_prefix"`
	OCR            ocr.Params `yaml:"ocr"`
	Batch          Batch      `yaml:"batch"`
	Canvas         Canvas     `yaml:"canvas"`
}

// Batch holds batch output settings.
type Batch struct {
	ConsolidatedName string `yaml:"consolidated_name"`
	Delimiter        string `yaml:"delimiter"`
}

// Canvas is the canonical page size templates are drawn on.
type Canvas struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StorePath: template.DefaultFileName,
		LogLevel:  "info",
		OCR:       ocr.DefaultParams(),
		Batch: Batch{
			ConsolidatedName: batch.DefaultConsolidatedName,
			Delimiter:        string(batch.DefaultDelimiter),
		},
		Canvas: Canvas{Width: imaging.CanonicalWidth, Height: imaging.CanonicalHeight},
	}
}

// Load resolves the configuration. path names a YAML file; when empty,
// DOCROI_CONFIG is consulted and a missing file is not an error. envFiles
// are loaded with godotenv without overriding variables already set; when
// none are given, DefaultEnvFile is tried.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()

	required := path != ""
	if path == "" {
		path = os.Getenv(EnvConfig)
		required = path != ""
	}
	if path != "" {
		if err := cfg.readFile(path, required); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	explicit := len(files) > 0
	if !explicit {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.StorePath, EnvStore)
	set(&c.BackupDir, EnvBackupDir)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.TessdataPrefix, EnvTessdataPrefix)
	set(&c.OCR.Language, EnvLanguage)
	set(&c.Batch.ConsolidatedName, EnvConsolidatedName)
	// Spaces are not trimmed from a delimiter.
	if v := os.Getenv(EnvDelimiter); v != "" {
		c.Batch.Delimiter = v
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StorePath) == "" {
		errs = append(errs, errors.New("store_path is empty"))
	}
	if utf8.RuneCountInString(c.Batch.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("batch delimiter %q must be a single character", c.Batch.Delimiter))
	}
	if c.Batch.ConsolidatedName == "" {
		errs = append(errs, errors.New("batch consolidated_name is empty"))
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas %dx%d is not positive", c.Canvas.Width, c.Canvas.Height))
	}
	if c.OCR.UpscaleFactor < 0 || c.OCR.ContrastGain < 0 {
		errs = append(errs, errors.New("ocr upscale_factor and contrast_gain must not be negative"))
	}
	return errors.Join(errs...)
}

// Delimiter returns the consolidated file's field separator.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.Batch.Delimiter)
	return r
}
