// Command outline-extractor scans a directory of PDFs and writes one
// outline JSON per document. Defaults follow the container contract:
// /app/input in, /app/output out, no flags required.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wudi/pdfoutline/batch"
	"github.com/wudi/pdfoutline/config"
	"github.com/wudi/pdfoutline/observability"

	// Registers the tesseract engine as the OCR default.
	_ "github.com/wudi/pdfoutline/ocr/tesseract"
)

func main() { os.Exit(run(os.Args[1:])) }

func run(args []string) int {
	fs := flag.NewFlagSet("outline-extractor", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "path to YAML config file")
		inputDir   = fs.String("input", "", "input directory (overrides config)")
		outputDir  = fs.String("output", "", "output directory (overrides config)")
		workers    = fs.Int("workers", 0, "concurrent workers, 0 for GOMAXPROCS")
		cachePath  = fs.String("cache", "", "result cache database path")
		watch      = fs.Bool("watch", false, "keep running and process files as they appear")
		enableOCR  = fs.Bool("ocr", false, "recognize scanned pages")
		language   = fs.String("lang", "", "document language code, detected when empty")
		debug      = fs.Bool("debug", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = *inputDir
		case "output":
			cfg.OutputDir = *outputDir
		case "workers":
			cfg.Workers = *workers
		case "cache":
			cfg.CachePath = *cachePath
		case "watch":
			cfg.Watch = *watch
		case "ocr":
			cfg.OCR.Enabled = *enableOCR
		case "lang":
			cfg.Language = *language
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := observability.NewProduction(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	runner, err := batch.NewRunner(cfg, batch.WithLogger(logger))
	if err != nil {
		logger.Error("setup failed", observability.Error("err", err))
		return 1
	}
	defer runner.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		if err := runner.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watch failed", observability.Error("err", err))
			return 1
		}
		return 0
	}

	if _, err := runner.Run(ctx); err != nil {
		logger.Error("batch failed", observability.Error("err", err))
		return 1
	}
	return 0
}
