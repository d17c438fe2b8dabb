// Package ir assembles the parsing stages: raw object sweep, security
// handler, and stream decoding.
package ir

import (
	"context"
	"fmt"
	"io"

	"github.com/wudi/pdfoutline/filters"
	"github.com/wudi/pdfoutline/ir/decoded"
	"github.com/wudi/pdfoutline/ir/raw"
	"github.com/wudi/pdfoutline/observability"
	"github.com/wudi/pdfoutline/recovery"
	"github.com/wudi/pdfoutline/security"
)

type Pipeline struct {
	password string
	strategy recovery.Strategy
	logger   observability.Logger
	limits   filters.Limits
}

type Option func(*Pipeline)

// WithPassword sets the password tried when the document is encrypted.
// The empty string is always tried first, which opens the common
// "owner-locked" files.
func WithPassword(pw string) Option {
	return func(p *Pipeline) { p.password = pw }
}

func WithRecovery(s recovery.Strategy) Option {
	return func(p *Pipeline) { p.strategy = s }
}

func WithLogger(l observability.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithLimits(l filters.Limits) Option {
	return func(p *Pipeline) { p.limits = l }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		strategy: recovery.NewLenientStrategy(),
		logger:   observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse runs the full raw -> decrypted -> decoded sequence.
func (p *Pipeline) Parse(ctx context.Context, r io.ReaderAt) (*decoded.Document, error) {
	parser := raw.NewParser(raw.ParserConfig{Recovery: p.strategy})
	rawDoc, err := parser.Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("raw parse: %w", err)
	}
	p.logger.Debug("raw parse complete",
		observability.Int(observability.MetricObjectCount, len(rawDoc.Objects)),
		observability.String("version", rawDoc.Version))

	handler, err := p.buildSecurity(rawDoc)
	if err != nil {
		return nil, err
	}

	dec := decoded.NewDecoder(filters.NewPipeline(p.limits), handler, p.strategy, p.logger)
	doc, err := dec.Decode(ctx, rawDoc)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

func (p *Pipeline) buildSecurity(rawDoc *raw.Document) (security.Handler, error) {
	if !rawDoc.Encrypted || rawDoc.Trailer == nil {
		return security.NoopHandler(), nil
	}
	encObj, ok := rawDoc.Trailer.Get(raw.NameLiteral("Encrypt"))
	if !ok {
		return security.NoopHandler(), nil
	}
	if ref, isRef := encObj.(raw.Reference); isRef {
		encObj = rawDoc.Objects[ref.Ref()]
	}
	encDict, ok := encObj.(raw.Dictionary)
	if !ok {
		return nil, fmt.Errorf("Encrypt entry is not a dictionary")
	}
	handler, err := security.NewHandler(encDict, rawDoc.Trailer)
	if err != nil {
		return nil, fmt.Errorf("security handler: %w", err)
	}
	if err := handler.Authenticate(""); err != nil {
		if p.password == "" {
			return nil, fmt.Errorf("encrypted document: %w", err)
		}
		if err := handler.Authenticate(p.password); err != nil {
			return nil, fmt.Errorf("encrypted document: %w", err)
		}
	}
	return handler, nil
}
