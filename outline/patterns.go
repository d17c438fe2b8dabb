package outline

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	numberedRe      = regexp.MustCompile(`^\d+\.(\d+\.)*\s`)
	parenNumberRe   = regexp.MustCompile(`^\(\d+(\.\d+)*\)`)
	romanDotRe      = regexp.MustCompile(`^[IVXLCDM]+\.\s`)
	romanSpaceRe    = regexp.MustCompile(`^[IVXLCDM]+\s`)
	sectionSepRe    = regexp.MustCompile(`^\d+[.\-_]\d+`)
	alphaHeadingRe  = regexp.MustCompile(`^[A-Za-z]\.(\s|\d)`)
	jaSectionRe     = regexp.MustCompile(`第\d+章|節|はじめに|まとめ|概要|要約`)
	zhSectionRe     = regexp.MustCompile(`第[一二三四五六七八九十百千万\d]+[章节篇部分]|引言|简介|摘要|总结|附录|概述`)
	arSectionRe     = regexp.MustCompile(`الفصل|القسم|الجزء|المقدمة|الخاتمة|الملخص|الملحق|تمهيد|مقدمة|خلاصة`)
	koSectionRe     = regexp.MustCompile(`제\s*\d+\s*장|서론|결론|요약|부록|개요|소개`)
	thSectionRe     = regexp.MustCompile(`บทที่|ส่วนที่|บทนำ|สรุป|ภาคผนวก|บทคัดย่อ`)
	bulletPrefixSet = "•※⚫⚪◦○●◉◎■□▪▫★☆♦♣♠♥➤➢➡⇒→-"
)

// headingWords maps a primary language tag to the lowercased words a
// heading commonly starts with in that language.
var headingWords = map[string][]string{
	"en": {"chapter", "section", "introduction", "conclusion", "appendix", "part",
		"summary", "abstract", "overview", "preface", "foreword", "glossary"},
	"es": {"capítulo", "sección", "parte", "introducción", "conclusión",
		"resumen", "apéndice", "prólogo", "prefacio", "glosario"},
	"fr": {"chapitre", "section", "partie", "introduction", "conclusion",
		"résumé", "annexe", "préface", "avant-propos", "glossaire"},
	"de": {"kapitel", "abschnitt", "teil", "einleitung", "zusammenfassung",
		"anhang", "vorwort", "glossar", "überblick", "einführung"},
	"ru": {"глава", "раздел", "часть", "введение", "заключение",
		"аннотация", "приложение", "предисловие", "резюме", "обзор"},
	"hi": {"अध्याय", "खंड", "भाग", "परिचय", "निष्कर्ष", "सारांश", "परिशिष्ट"},
	"pt": {"capítulo", "seção", "parte", "introdução", "conclusão",
		"resumo", "apêndice", "prefácio", "glossário"},
	"it": {"capitolo", "sezione", "parte", "introduzione", "conclusione",
		"riassunto", "appendice", "prefazione", "glossario"},
	"tr": {"bölüm", "kısım", "giriş", "sonuç", "özet", "ek", "önsöz"},
	"vi": {"chương", "phần", "mục", "giới thiệu", "kết luận", "tóm tắt", "phụ lục"},
}

var sentenceEndings = []string{".", "。", "؟", "!", "?", "።", "۔", "។", "၊"}

// MatchesHeadingPattern reports whether text looks like a heading for
// the given language. The numeric, roman-numeral, and bullet forms
// apply to every language; the word lists and script-specific markers
// apply per language.
func MatchesHeadingPattern(text, language string) bool {
	if len(strings.TrimSpace(text)) < 2 {
		return false
	}

	if numberedRe.MatchString(text) || parenNumberRe.MatchString(text) {
		return true
	}
	if romanDotRe.MatchString(text) || romanSpaceRe.MatchString(text) {
		return true
	}
	if startsWithBullet(text) {
		return true
	}

	lang := language
	if i := strings.IndexByte(lang, '-'); i >= 0 {
		lang = lang[:i]
	}

	switch lang {
	case "en":
		if alphaHeadingRe.MatchString(text) {
			return true
		}
		if startsWithAny(text, headingWords["en"]) {
			return true
		}
	case "ja":
		if jaSectionRe.MatchString(text) {
			return true
		}
	case "zh":
		if zhSectionRe.MatchString(text) {
			return true
		}
	case "ar":
		if arSectionRe.MatchString(text) {
			return true
		}
	case "ko":
		if koSectionRe.MatchString(text) {
			return true
		}
	case "th":
		if thSectionRe.MatchString(text) {
			return true
		}
	default:
		if words, ok := headingWords[lang]; ok && startsWithAny(text, words) {
			return true
		}
	}

	if sectionSepRe.MatchString(text) {
		return true
	}

	if len(text) < 50 && !endsWithSentencePunctuation(text) {
		if isAllUpper(text) || isTitleCase(text) {
			return true
		}
		if len(text) < 30 && startsUpper(text) {
			return true
		}
		if strings.HasPrefix(text, " ") && len(strings.TrimSpace(text)) < 40 {
			return true
		}
		if strings.Count(text, " ") < 2 && len(text) < 25 {
			return true
		}
	}

	// A trailing colon usually introduces a section.
	if strings.HasSuffix(strings.TrimRight(text, " "), ":") && len(text) < 60 {
		return true
	}

	return false
}

func startsWithBullet(text string) bool {
	runes := []rune(text)
	if len(runes) < 2 || runes[1] != ' ' {
		return false
	}
	return strings.ContainsRune(bulletPrefixSet, runes[0])
}

func startsWithAny(text string, words []string) bool {
	lowered := strings.ToLower(text)
	for _, w := range words {
		if strings.HasPrefix(lowered, w) {
			return true
		}
	}
	return false
}

func endsWithSentencePunctuation(text string) bool {
	trimmed := strings.TrimRight(text, " ")
	for _, ending := range sentenceEndings {
		if strings.HasSuffix(trimmed, ending) {
			return true
		}
	}
	return false
}

// isAllUpper reports whether text contains at least one letter and no
// lowercase letters.
func isAllUpper(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// isTitleCase reports whether every word starts with an uppercase
// letter and continues in lowercase.
func isTitleCase(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		runes := []rune(w)
		first := true
		for _, r := range runes {
			if !unicode.IsLetter(r) {
				first = true
				continue
			}
			if first {
				if unicode.IsLower(r) {
					return false
				}
				first = false
			} else if unicode.IsUpper(r) && unicode.ToLower(r) != r {
				return false
			}
		}
	}
	return true
}

func startsUpper(text string) bool {
	for _, r := range text {
		return unicode.IsUpper(r)
	}
	return false
}
