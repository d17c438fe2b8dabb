package outline

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wudi/pdfoutline/extractor"
)

const fallbackTitle = "Unknown Title"

// documentTitle runs the title heuristic chain: document information
// dictionary, then the most title-like line on the first page, then
// the first usable line, then the source file name.
func documentTitle(ex *extractor.Extractor, fileName string) string {
	if meta := strings.TrimSpace(ex.Metadata().Info.Title); len(meta) > 3 {
		return meta
	}

	lines := ex.PageLines(0)
	if title := titleFromLayout(ex, lines); title != "" {
		return title
	}
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if len(text) > 3 && len(text) < maxHeadingLen {
			return text
		}
	}
	if len(lines) > 0 {
		if text := strings.TrimSpace(lines[0].Text); text != "" {
			if len(text) > maxHeadingLen {
				return text[:maxHeadingLen]
			}
			return text
		}
	}

	if fileName != "" {
		base := filepath.Base(fileName)
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); len(stem) > 3 {
			return stem
		}
	}
	return fallbackTitle
}

// titleFromLayout prefers centered text, then larger fonts, then
// lines nearer the top of the first page.
func titleFromLayout(ex *extractor.Extractor, lines []extractor.Line) string {
	if len(lines) == 0 {
		return ""
	}
	pageWidth, _ := ex.MediaBox(0)
	pageCenter := pageWidth / 2

	type scored struct {
		line     extractor.Line
		centered bool
	}
	candidates := make([]scored, 0, len(lines))
	for _, line := range lines {
		center := line.X + line.Width/2
		candidates = append(candidates, scored{
			line:     line,
			centered: math.Abs(center-pageCenter) < pageWidth*0.1,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].centered != candidates[j].centered {
			return candidates[i].centered
		}
		if candidates[i].line.Size != candidates[j].line.Size {
			return candidates[i].line.Size > candidates[j].line.Size
		}
		// Larger Y is closer to the top of the page.
		return candidates[i].line.Y > candidates[j].line.Y
	})

	for _, c := range candidates {
		text := strings.TrimSpace(c.line.Text)
		if len(text) > 3 && len(text) < maxHeadingLen {
			return text
		}
	}
	return ""
}
