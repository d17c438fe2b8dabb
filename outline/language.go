package outline

import (
	"regexp"
	"strings"

	"github.com/RadhiFadlillah/whatlanggo"
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// DetectLanguage returns a two-letter language code for the text,
// defaulting to English when the text is too short to judge. Trigram
// detection runs on samples from the start, middle, and end of the
// document; a script-range scan backs it up when detection is
// unreliable.
func DetectLanguage(text string) string {
	if len(strings.TrimSpace(text)) < 5 {
		return "en"
	}

	clean := digitsRe.ReplaceAllString(text, " ")
	clean = nonWordRe.ReplaceAllString(clean, " ")
	clean = strings.TrimSpace(whitespaceRe.ReplaceAllString(clean, " "))

	if lang := detectBySamples(clean); lang != "" {
		return lang
	}
	if lang := scriptLanguage(text); lang != "" {
		return lang
	}
	return "en"
}

// detectBySamples votes across up to three slices of the cleaned text
// so a multilingual abstract or reference list cannot dominate.
func detectBySamples(clean string) string {
	runes := []rune(clean)
	var samples []string
	if len(runes) > 50 {
		mid := len(runes) / 2
		samples = []string{
			string(runes[:min(100, len(runes))]),
			string(runes[mid:min(mid+100, len(runes))]),
			string(runes[max(0, len(runes)-100):]),
		}
	} else {
		samples = []string{clean}
	}

	votes := make(map[string]int)
	for _, sample := range samples {
		if len(strings.TrimSpace(sample)) <= 10 {
			continue
		}
		info := whatlanggo.Detect(sample)
		if !info.IsReliable() {
			continue
		}
		if code := info.Lang.Iso6391(); code != "" {
			votes[code]++
		}
	}

	best, bestCount := "", 0
	for code, count := range votes {
		if count > bestCount {
			best, bestCount = code, count
		}
	}
	return best
}

// scriptRanges pairs a Unicode block with the language its presence
// implies. Order matters: Japanese kana are checked before the Han
// range they share text with.
var scriptRanges = []struct {
	lo, hi rune
	lang   string
}{
	{0x3040, 0x30FF, "ja"}, // Hiragana and Katakana
	{0x4E00, 0x9FFF, "zh"},
	{0xAC00, 0xD7AF, "ko"},
	{0x0600, 0x06FF, "ar"},
	{0x0E00, 0x0E7F, "th"},
	{0x0900, 0x097F, "hi"},
	{0x0400, 0x04FF, "ru"},
	{0x0B80, 0x0BFF, "ta"},
	{0x0C80, 0x0CFF, "kn"},
	{0x0D00, 0x0D7F, "ml"},
	{0x0D80, 0x0DFF, "si"},
	{0x0E80, 0x0EFF, "lo"},
	{0x0F00, 0x0FFF, "bo"},
	{0x1000, 0x109F, "my"},
	{0x1100, 0x11FF, "ko"},
	{0x1200, 0x137F, "am"},
}

func scriptLanguage(text string) string {
	for _, sr := range scriptRanges {
		for _, r := range text {
			if r >= sr.lo && r <= sr.hi {
				return sr.lang
			}
		}
	}
	return ""
}
