package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvStore, EnvBackupDir, EnvLogLevel, EnvTessdataPrefix, EnvLanguage, EnvDelimiter, EnvConsolidatedName} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	if _, err := Load("", filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("an explicit env file that does not exist should fail")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorePath != "document_templates.json" {
		t.Errorf("StorePath = %q", cfg.StorePath)
	}
	if cfg.Delimiter() != ';' || cfg.Batch.ConsolidatedName != "consolidated_results.csv" {
		t.Errorf("batch = %+v", cfg.Batch)
	}
	if cfg.Canvas.Width != 1654 || cfg.Canvas.Height != 2339 {
		t.Errorf("canvas = %+v", cfg.Canvas)
	}
	if cfg.OCR.UpscaleFactor != 8 || cfg.OCR.Language != "por" {
		t.Errorf("ocr = %+v", cfg.OCR)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "docroi.yaml", `
store_path: /data/templates.json
log_level: debug
ocr:
  upscale_factor: 4
  language: eng
batch:
  delimiter: ","
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorePath != "/data/templates.json" || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.OCR.UpscaleFactor != 4 || cfg.OCR.Language != "eng" {
		t.Errorf("ocr = %+v", cfg.OCR)
	}
	if cfg.OCR.ContrastGain != 1.5 {
		t.Errorf("unset keys should keep defaults, contrast = %v", cfg.OCR.ContrastGain)
	}
	if cfg.Delimiter() != ',' {
		t.Errorf("delimiter = %q", cfg.Delimiter())
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("an explicit config file that does not exist should fail")
	}
	bad := writeFile(t, dir, "bad.yaml", "ocr: [unterminated")
	if _, err := Load(bad); err == nil {
		t.Error("malformed YAML should fail")
	}
	invalid := writeFile(t, dir, "invalid.yaml", "batch:\n  delimiter: \";;\"\n")
	if _, err := Load(invalid); err == nil {
		t.Error("a two character delimiter should fail validation")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "docroi.yaml", "store_path: from-file.json\nlog_level: warn\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvStore, "from-env.json")
	t.Setenv(EnvBackupDir, "/var/backups/docroi")
	t.Setenv(EnvDelimiter, "\t")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorePath != "from-env.json" {
		t.Errorf("StorePath = %q", cfg.StorePath)
	}
	if cfg.BackupDir != "/var/backups/docroi" {
		t.Errorf("BackupDir = %q", cfg.BackupDir)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Delimiter() != '\t' {
		t.Errorf("delimiter = %q", cfg.Delimiter())
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, t.TempDir(), "test.env", "DOCROI_LANGUAGE=eng\nDOCROI_TESSDATA_PREFIX=/opt/tessdata\n")
	t.Cleanup(func() {
		os.Unsetenv(EnvLanguage)
		os.Unsetenv(EnvTessdataPrefix)
	})

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OCR.Language != "eng" || cfg.TessdataPrefix != "/opt/tessdata" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty store", func(c *Config) { c.StorePath = " " }},
		{"empty delimiter", func(c *Config) { c.Batch.Delimiter = "" }},
		{"empty consolidated name", func(c *Config) { c.Batch.ConsolidatedName = "" }},
		{"zero canvas", func(c *Config) { c.Canvas.Width = 0 }},
		{"negative gain", func(c *Config) { c.OCR.ContrastGain = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}
