package outline

import (
	"context"
	"sort"
	"strings"

	"github.com/wudi/pdfoutline/extractor"
	"github.com/wudi/pdfoutline/observability"
	"github.com/wudi/pdfoutline/ocr"
)

// Builder turns extracted document content into an outline. The zero
// value is not usable; construct with New.
type Builder struct {
	logger   observability.Logger
	engine   ocr.Engine
	lang     string
	ocrLangs []string
}

type Option func(*Builder)

func WithLogger(logger observability.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithOCREngine enables recognition of scanned pages. Without an
// engine such pages contribute no headings.
func WithOCREngine(engine ocr.Engine) Option {
	return func(b *Builder) { b.engine = engine }
}

// WithLanguage pins the document language instead of detecting it.
func WithLanguage(lang string) Option {
	return func(b *Builder) { b.lang = lang }
}

// WithOCRLanguages pins the tessdata models handed to the engine,
// overriding the mapping derived from the document language.
func WithOCRLanguages(langs []string) Option {
	return func(b *Builder) { b.ocrLangs = langs }
}

func New(opts ...Option) *Builder {
	b := &Builder{logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the outline for one document. The embedded bookmark
// tree wins when present; otherwise headings are classified from the
// text layer, with OCR covering scanned pages. fileName seeds the
// title fallback and may be empty.
//
// Build never returns an empty document: a failed analysis still
// yields the title as a single H1 entry.
func (b *Builder) Build(ctx context.Context, ex *extractor.Extractor, fileName string) (Document, error) {
	title := documentTitle(ex, fileName)

	if toc := b.fromBookmarks(ex); len(toc) > 0 {
		b.logger.Info("outline from embedded bookmarks",
			observability.Int(observability.MetricHeadingCount, len(toc)))
		return Document{Title: title, Outline: toc}, nil
	}

	lang := b.lang
	if lang == "" {
		lang = DetectLanguage(pageText(ex, 0))
		b.logger.Debug("detected document language", observability.String("lang", lang))
	}

	entries, err := b.fromHeuristics(ctx, ex, lang)
	if err != nil {
		return Document{}, err
	}

	// A sparse result on a document with many pages usually means the
	// layout defeated the normal pass; rescan with looser criteria.
	if len(entries) < ex.PageCount() {
		if forced := b.forcePass(ctx, ex, lang); len(forced) > len(entries) {
			b.logger.Info("forced rescan replaced sparse outline",
				observability.Int("outline.sparse", len(entries)),
				observability.Int("outline.forced", len(forced)))
			entries = forced
		}
	}

	entries = dedupeEntries(entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })

	if len(entries) == 0 {
		entries = append(entries, Entry{Level: LevelH1, Text: title, Page: 1})
	}

	b.logger.Info("outline built",
		observability.Int(observability.MetricHeadingCount, len(entries)),
		observability.Int("pages", ex.PageCount()))
	return Document{Title: title, Outline: entries}, nil
}

// fromBookmarks converts the embedded outline tree, capping depth at
// three levels and dropping deeper entries.
func (b *Builder) fromBookmarks(ex *extractor.Extractor) []Entry {
	var entries []Entry
	for _, item := range ex.ExtractTableOfContents() {
		if item.Depth > 2 {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		page := item.Page + 1
		if item.Page < 0 {
			page = 1
		}
		entries = append(entries, Entry{
			Level: [...]string{LevelH1, LevelH2, LevelH3}[item.Depth],
			Text:  title,
			Page:  page,
		})
	}
	return entries
}

func (b *Builder) fromHeuristics(ctx context.Context, ex *extractor.Extractor, lang string) ([]Entry, error) {
	var entries []Entry
	for pageIdx := 0; pageIdx < ex.PageCount(); pageIdx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands := b.pageCandidates(ctx, ex, pageIdx, lang)
		entries = append(entries, classifyPage(cands, lang)...)
	}
	return entries, nil
}

// classifyPage runs the per-page classification: z-scores against the
// page's own font distribution when it has any spread, absolute point
// sizes when it does not, and text patterns as the last resort.
func classifyPage(cands []candidate, lang string) []Entry {
	sizes := make([]float64, 0, len(cands))
	for _, c := range cands {
		if c.size > 0 {
			sizes = append(sizes, c.size)
		}
	}
	stats := computeFontStats(sizes)

	var entries []Entry
	prev := ""
	for _, c := range cands {
		if len(c.text) == 0 || len(c.text) > maxHeadingLen {
			continue
		}
		var level string
		if stats.std > 0 {
			level = classifyLevel(c, stats, prev)
		} else {
			level = absoluteLevel(c.size, c.bold)
		}
		if level == "" && MatchesHeadingPattern(c.text, lang) {
			level = patternLevel(c.x)
		}
		if level == "" {
			continue
		}
		entries = append(entries, Entry{Level: level, Text: c.text, Page: c.page + 1})
		prev = level
	}
	return entries
}

// pageCandidates returns the classifiable lines of a page. Pages with
// an empty text layer but a page-sized image are treated as scans and
// recognized when an engine is configured.
func (b *Builder) pageCandidates(ctx context.Context, ex *extractor.Extractor, pageIdx int, lang string) []candidate {
	lines := ex.PageLines(pageIdx)
	if len(lines) > 0 {
		cands := make([]candidate, 0, len(lines))
		for _, line := range lines {
			cands = append(cands, candidate{
				text: strings.TrimSpace(line.Text),
				size: line.Size,
				bold: line.Bold,
				x:    line.X,
				page: pageIdx,
			})
		}
		return cands
	}
	return b.ocrCandidates(ctx, ex, pageIdx, lang)
}

func (b *Builder) ocrCandidates(ctx context.Context, ex *extractor.Extractor, pageIdx int, lang string) []candidate {
	if b.engine == nil {
		return nil
	}
	pageW, pageH := ex.MediaBox(pageIdx)
	var scan *extractor.ImageAsset
	for _, asset := range ex.PageImages(pageIdx) {
		if asset.CoversPage(pageW, pageH) {
			scan = &asset
			break
		}
	}
	if scan == nil {
		return nil
	}

	hints := b.ocrLangs
	if len(hints) == 0 {
		hints = tessLanguages(lang)
	}
	in, err := ocr.InputFromImageAsset(*scan, ocr.WithLanguages(hints...))
	if err != nil {
		b.logger.Warn("scanned page could not be encoded",
			observability.Int("page", pageIdx+1), observability.Error("err", err))
		return nil
	}
	res, err := b.engine.Recognize(ctx, in)
	if err != nil {
		b.logger.Warn("recognition failed",
			observability.Int("page", pageIdx+1), observability.Error("err", err))
		return nil
	}

	cands := make([]candidate, 0, len(res.Lines))
	for _, line := range res.Lines {
		cands = append(cands, candidate{
			text: strings.TrimSpace(line.Text),
			size: line.Bounds.Height,
			x:    line.Bounds.X,
			page: pageIdx,
		})
	}
	return cands
}

// forcePass rescans every page with the loosened heading test.
func (b *Builder) forcePass(ctx context.Context, ex *extractor.Extractor, lang string) []Entry {
	var entries []Entry
	for pageIdx := 0; pageIdx < ex.PageCount(); pageIdx++ {
		if ctx.Err() != nil {
			return entries
		}
		for i, c := range b.pageCandidates(ctx, ex, pageIdx, lang) {
			if !forceHeading(c, i == 0) {
				continue
			}
			entries = append(entries, Entry{Level: forceLevel(c), Text: c.text, Page: c.page + 1})
		}
	}
	return entries
}

func pageText(ex *extractor.Extractor, pageIdx int) string {
	lines := ex.PageLines(pageIdx)
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, "\n")
}

// tessLanguages maps a detected two-letter code to tessdata model
// names, always including English as a secondary model.
func tessLanguages(lang string) []string {
	codes := map[string]string{
		"en": "eng", "de": "deu", "fr": "fra", "es": "spa", "it": "ita",
		"pt": "por", "nl": "nld", "ru": "rus", "ja": "jpn", "zh": "chi_sim",
		"ko": "kor", "ar": "ara", "hi": "hin", "th": "tha", "tr": "tur",
		"pl": "pol", "sv": "swe", "da": "dan", "no": "nor", "fi": "fin",
		"vi": "vie",
	}
	code, ok := codes[lang]
	if !ok || code == "eng" {
		return []string{"eng"}
	}
	return []string{code, "eng"}
}
