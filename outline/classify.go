package outline

import (
	"math"
	"regexp"
	"strconv"
)

// candidate is one line of text under heading consideration, from
// either the text layer or an OCR pass. Size is the effective font
// size in points for text-layer lines and the box height in pixels
// for OCR lines; the z-score normalization makes both comparable.
type candidate struct {
	text string
	size float64
	bold bool
	x    float64
	page int
}

type fontStats struct {
	mean float64
	std  float64
}

func computeFontStats(sizes []float64) fontStats {
	if len(sizes) == 0 {
		return fontStats{}
	}
	var sum float64
	for _, s := range sizes {
		sum += s
	}
	mean := sum / float64(len(sizes))
	var sq float64
	for _, s := range sizes {
		d := s - mean
		sq += d * d
	}
	return fontStats{mean: mean, std: math.Sqrt(sq / float64(len(sizes)))}
}

func (s fontStats) zScore(size float64) float64 {
	if s.std <= 0 {
		return 0
	}
	return (size - s.mean) / s.std
}

// classifyLevel maps a candidate to a heading level using the
// font-size z-score, with bold text easing the thresholds and the
// previous heading level pulling borderline lines into the hierarchy.
// Empty string means not a heading.
func classifyLevel(c candidate, stats fontStats, prev string) string {
	z := stats.zScore(c.size)
	allCaps := isAllUpper(c.text)
	numbered := numberedRe.MatchString(c.text)

	if z > 1.5 || (allCaps && z > 0.5) {
		return LevelH1
	}
	if z > 0.75 || (c.bold && z > 0.25) || numbered {
		return LevelH2
	}
	if z > 0.25 || (c.bold && z > 0) {
		return LevelH3
	}
	if prev == LevelH1 && (z > 0 || c.bold) {
		return LevelH2
	}
	if prev == LevelH2 && (z > -0.5 || c.bold) {
		return LevelH3
	}
	return ""
}

// absoluteLevel classifies on raw point sizes, for documents whose
// font distribution is too uniform for z-scores to separate anything.
func absoluteLevel(size float64, bold bool) string {
	switch {
	case size > 14 || (bold && size > 12):
		return LevelH1
	case size > 12 || (bold && size > 10):
		return LevelH2
	case size > 10 || bold:
		return LevelH3
	}
	return ""
}

// patternLevel assigns a level from indentation when only a text
// pattern identified the heading.
func patternLevel(x float64) string {
	switch {
	case x < 100:
		return LevelH1
	case x < 150:
		return LevelH2
	}
	return LevelH3
}

var (
	forceNumberRe = regexp.MustCompile(`^\d+\.`)
	forceCapsRe   = regexp.MustCompile(`^[A-Z][A-Za-z\s]+$`)
)

// forceHeading is the aggressive test used when a document yields
// almost no headings through the normal pass.
func forceHeading(c candidate, firstOnPage bool) bool {
	n := len(c.text)
	if n < 3 || n > maxHeadingLen {
		return false
	}
	if c.size > 11 || c.bold {
		return true
	}
	if firstOnPage && n < 50 {
		return true
	}
	if forceNumberRe.MatchString(c.text) {
		return true
	}
	if forceCapsRe.MatchString(c.text) && n < 40 {
		return true
	}
	if isAllUpper(c.text) && n < 30 {
		return true
	}
	return false
}

func forceLevel(c candidate) string {
	switch {
	case c.size > 14 || (c.bold && c.size > 12):
		return LevelH1
	case c.size > 12 || c.bold:
		return LevelH2
	}
	return LevelH3
}

// dedupeEntries drops repeated (level, text, page) triples, keeping
// first occurrences in order.
func dedupeEntries(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		key := e.Level + ":" + e.Text + ":" + strconv.Itoa(e.Page)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
