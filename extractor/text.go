package extractor

import "strings"

// PageText is the plain text of one page.
type PageText struct {
	Page    int
	Label   string
	Content string
}

// ExtractText returns the text of every page that has any, assembled
// from the positioned line pass.
func (e *Extractor) ExtractText() []PageText {
	var out []PageText
	for idx := range e.pages {
		lines := e.PageLines(idx)
		if len(lines) == 0 {
			continue
		}
		var b strings.Builder
		for i, line := range lines {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(line.Text)
		}
		txt := strings.TrimSpace(b.String())
		if txt == "" {
			continue
		}
		out = append(out, PageText{Page: idx, Label: e.pageLabels[idx], Content: txt})
	}
	return out
}
