// Package outline derives a heading outline from a PDF: the embedded
// table of contents when one exists, a font-statistics classification
// of the text layer otherwise, and OCR line boxes for scanned pages.
package outline

// Entry is one heading in the document outline. Page is 1-indexed.
type Entry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// Document is the serialized extraction result.
type Document struct {
	Title   string  `json:"title"`
	Outline []Entry `json:"outline"`
}

const (
	LevelH1 = "H1"
	LevelH2 = "H2"
	LevelH3 = "H3"
)

// maxHeadingLen caps heading candidates; longer runs of text are body
// copy, not headings.
const maxHeadingLen = 100
