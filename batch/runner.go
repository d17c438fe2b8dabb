// Package batch drives outline extraction over a directory of PDFs:
// worker fan-out, atomic JSON output, a content-hash result cache,
// and an optional watch mode for files arriving while running.
package batch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfoutline/config"
	"github.com/wudi/pdfoutline/extractor"
	"github.com/wudi/pdfoutline/ir"
	"github.com/wudi/pdfoutline/observability"
	"github.com/wudi/pdfoutline/ocr"
	"github.com/wudi/pdfoutline/outline"
)

// Summary reports what one run did.
type Summary struct {
	RunID     string
	Processed int
	Failed    int
	// Skipped counts cache hits; their outputs are still written.
	Skipped int
}

type Runner struct {
	cfg       config.Config
	logger    observability.Logger
	builder   *outline.Builder
	ocrEngine ocr.Engine
	cache     *Cache

	mu      sync.Mutex
	summary Summary
}

type RunnerOption func(*Runner)

func WithLogger(logger observability.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithOCREngine overrides the engine chosen from the configuration.
func WithOCREngine(engine ocr.Engine) RunnerOption {
	return func(r *Runner) { r.ocrEngine = engine }
}

// NewRunner validates the configuration and opens the cache. Close
// must be called when done.
func NewRunner(cfg config.Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.builder == nil {
		var builderOpts []outline.Option
		builderOpts = append(builderOpts, outline.WithLogger(r.logger))
		if cfg.Language != "" {
			builderOpts = append(builderOpts, outline.WithLanguage(cfg.Language))
		}
		if len(cfg.OCR.Languages) > 0 {
			builderOpts = append(builderOpts, outline.WithOCRLanguages(cfg.OCR.Languages))
		}
		engine := r.ocrEngine
		if engine == nil && cfg.OCR.Enabled {
			engine = ocr.DefaultEngine()
		}
		if engine != nil {
			builderOpts = append(builderOpts, outline.WithOCREngine(engine))
		}
		r.builder = outline.New(builderOpts...)
	}
	if cfg.CachePath != "" {
		cache, err := OpenCache(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

func (r *Runner) Close() error {
	if r.cache != nil {
		return r.cache.Close()
	}
	return nil
}

// Run processes every PDF currently in the input directory. Per-file
// failures are absorbed into the summary; the returned error covers
// setup problems only.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With(observability.String("run_id", runID))
	r.mu.Lock()
	r.summary = Summary{RunID: runID}
	r.mu.Unlock()

	files, err := listPDFs(r.cfg.InputDir)
	if err != nil {
		return Summary{RunID: runID}, fmt.Errorf("scan input directory: %w", err)
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return Summary{RunID: runID}, fmt.Errorf("prepare output directory: %w", err)
	}
	logger.Info("batch started",
		observability.Int(observability.MetricBatchFiles, len(files)),
		observability.String("input", r.cfg.InputDir))

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			r.processFile(gctx, logger, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r.snapshot(), err
	}

	summary := r.snapshot()
	logger.Info("batch finished",
		observability.Int("processed", summary.Processed),
		observability.Int("failed", summary.Failed),
		observability.Int("skipped", summary.Skipped))
	return summary, ctx.Err()
}

func (r *Runner) snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// processFile extracts one document and writes its JSON. Every
// failure path still leaves an output file behind.
func (r *Runner) processFile(ctx context.Context, logger observability.Logger, path string) {
	start := time.Now()
	logger = logger.With(observability.String("file", filepath.Base(path)))
	outPath := r.outputPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read failed", observability.Error("err", err))
		r.writeStub(logger, path, outPath)
		return
	}

	sum := sha256.Sum256(data)
	if r.cache != nil {
		if doc := r.cache.Get(sum[:]); doc != nil {
			if err := writeAtomic(outPath, doc); err != nil {
				logger.Error("cached write failed", observability.Error("err", err))
				r.count(func(s *Summary) { s.Failed++ })
				return
			}
			logger.Info("cache hit")
			r.count(func(s *Summary) { s.Skipped++ })
			return
		}
	}

	encoded, err := r.extract(ctx, data, path)
	if err != nil {
		logger.Error("extraction failed", observability.Error("err", err))
		r.writeStub(logger, path, outPath)
		return
	}
	if err := writeAtomic(outPath, encoded); err != nil {
		logger.Error("write failed", observability.Error("err", err))
		r.count(func(s *Summary) { s.Failed++ })
		return
	}
	if r.cache != nil {
		if err := r.cache.Put(sum[:], encoded); err != nil {
			logger.Warn("cache store failed", observability.Error("err", err))
		}
	}
	logger.Info("processed",
		observability.Int64(observability.MetricParseTime, time.Since(start).Milliseconds()))
	r.count(func(s *Summary) { s.Processed++ })
}

func (r *Runner) extract(ctx context.Context, data []byte, path string) ([]byte, error) {
	dec, err := ir.NewPipeline(ir.WithLogger(r.logger)).Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	ex, err := extractor.New(dec)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	doc, err := r.builder.Build(ctx, ex, path)
	if err != nil {
		return nil, fmt.Errorf("build outline: %w", err)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// writeStub writes the minimal valid document so downstream consumers
// always find an output per input.
func (r *Runner) writeStub(logger observability.Logger, inPath, outPath string) {
	stub := outline.Document{Title: stem(inPath), Outline: []outline.Entry{}}
	encoded, err := json.MarshalIndent(stub, "", "  ")
	if err == nil {
		err = writeAtomic(outPath, encoded)
	}
	if err != nil {
		logger.Error("stub write failed", observability.Error("err", err))
	}
	r.count(func(s *Summary) { s.Failed++ })
}

func (r *Runner) count(f func(*Summary)) {
	r.mu.Lock()
	f(&r.summary)
	r.mu.Unlock()
}

func (r *Runner) outputPath(inPath string) string {
	return filepath.Join(r.cfg.OutputDir, stem(inPath)+".json")
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// listPDFs scans one directory level for PDF files. Windows
// Zone.Identifier artifacts that some transfers leave behind are not
// documents.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isPDFName(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// writeAtomic stages the payload in a temp file and renames it over
// the target so readers never observe a partial document.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".outline-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
