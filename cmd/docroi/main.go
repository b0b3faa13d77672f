package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/batch"
	"github.com/ironsheep/docroi/internal/config"
	"github.com/ironsheep/docroi/internal/extract"
	"github.com/ironsheep/docroi/internal/logging"
	"github.com/ironsheep/docroi/internal/ocr"
	"github.com/ironsheep/docroi/internal/server"
	"github.com/ironsheep/docroi/internal/template"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `docroi - template-driven region OCR for scanned forms

Usage:
  docroi serve [-config file]
  docroi process -doc-type T -template N -input DIR -output DIR [-consolidate] [-fields A,B,C] [-config file]
  docroi templates [-doc-type T] [-config file]
  docroi version

Without a command, docroi serves MCP over stdin/stdout.

Environment variables:
  DOCROI_CONFIG             YAML configuration file
  DOCROI_STORE              Template file (default document_templates.json)
  DOCROI_BACKUP_DIR         Directory for template file backups (default: beside it)
  DOCROI_LOG_LEVEL          debug, info, warn or error
  DOCROI_TESSDATA_PREFIX    Directory holding traineddata files
  DOCROI_LANGUAGE           Recognition language (default por)
  DOCROI_DELIMITER          Consolidated CSV delimiter (default ;)
  DOCROI_CONSOLIDATED_NAME  Consolidated CSV file name

Variables are also read from a .env file in the working directory.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "docroi: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "docroi %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return nil
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return nil
	case "serve":
		return runServe(ctx, args, stdin, stdout, stderr)
	case "process":
		return runProcess(ctx, args, stdout, stderr)
	case "templates":
		return runTemplates(args, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q (see docroi help)", cmd)
	}
}

// app holds the components every command builds from the configuration.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *template.Store
	engine   *ocr.Tesseract
	pipeline *extract.Pipeline
}

func newApp(configPath, logLevel string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		return nil, err
	}

	store, err := template.Open(cfg.StorePath,
		template.WithLogger(log),
		template.WithBackupDir(cfg.BackupDir),
		template.WithCanvas(cfg.Canvas.Width, cfg.Canvas.Height),
	)
	if err != nil {
		return nil, err
	}

	engine := ocr.NewTesseract(ocr.WithTessdataPrefix(cfg.TessdataPrefix))
	pipeline := extract.New(
		ocr.NewConsensus(engine, cfg.OCR, log),
		extract.WithCanvas(cfg.Canvas.Width, cfg.Canvas.Height),
		extract.WithLogger(log),
	)

	return &app{cfg: cfg, log: log, store: store, engine: engine, pipeline: pipeline}, nil
}

func (a *app) orchestrator() *batch.Orchestrator {
	return batch.NewOrchestrator(a.pipeline,
		batch.WithLogger(a.log),
		batch.WithConsolidatedName(a.cfg.Batch.ConsolidatedName),
		batch.WithDelimiter(a.cfg.Delimiter()),
	)
}

func runServe(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath, *logLevel, stderr)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
		"store":   a.store.Path(),
	}).Debug("starting MCP server")

	server.Version = Version
	srv := server.New(a.store, a.pipeline,
		server.WithLogger(a.log),
		server.WithIO(stdin, stdout),
		server.WithOrchestrator(a.orchestrator()),
		server.WithOCRInfo(a.engine.Info),
		server.WithCanvas(a.cfg.Canvas.Width, a.cfg.Canvas.Height),
	)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runProcess(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	docType := fs.String("doc-type", "", "Document type of the template (required)")
	name := fs.String("template", "", "Template name (required)")
	input := fs.String("input", "", "Directory of scans (required)")
	output := fs.String("output", "", "Directory for results (required)")
	consolidate := fs.Bool("consolidate", false, "Append one CSV row per image instead of one JSON file per image")
	fields := fs.String("fields", "", "Comma-separated CSV column order (default: template region order)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for flagName, v := range map[string]string{"doc-type": *docType, "template": *name, "input": *input, "output": *output} {
		if v == "" {
			return fmt.Errorf("-%s is required", flagName)
		}
	}

	a, err := newApp(*configPath, *logLevel, stderr)
	if err != nil {
		return err
	}
	tpl, err := a.store.Get(*docType, *name)
	if err != nil {
		return err
	}

	var processed, failed int
	out, err := a.orchestrator().ProcessDirectory(ctx, batch.Options{
		InputDir:    *input,
		OutputDir:   *output,
		Template:    tpl,
		Consolidate: *consolidate,
		FieldOrder:  parseFields(*fields),
		Progress: func(p batch.Progress) {
			processed, failed = p.Processed, p.Failed
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Fprintf(stdout, "processed %d images (%d failed), results in %s\n", processed, failed, out)
	if err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return nil
}

func runTemplates(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("templates", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	docType := fs.String("doc-type", "", "Only list this document type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath, "", stderr)
	if err != nil {
		return err
	}
	refs := a.store.List(*docType)
	if len(refs) == 0 {
		fmt.Fprintln(stdout, "no templates")
		return nil
	}
	for _, ref := range refs {
		tpl, err := a.store.Get(ref.DocType, ref.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s/%s\t%d regions\t%s\n", ref.DocType, ref.Name, len(tpl.Regions), strings.Join(tpl.Regions.Names(), ","))
	}
	return nil
}

// parseFields splits a comma-separated column list, dropping blanks.
func parseFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
