package extractor

import (
	"math"
	"sort"
	"strings"

	"github.com/wudi/pdfoutline/ir/raw"
	"github.com/wudi/pdfoutline/scanner"
)

// Line is a horizontal run of text with its dominant font attributes
// and position in PDF user space (origin bottom-left, y up).
type Line struct {
	Text  string
	Font  string
	Size  float64
	Bold  bool
	X     float64
	Y     float64
	Width float64
	Page  int
}

// span is one show-operator worth of text before line merging.
type span struct {
	text string
	font string
	size float64
	bold bool
	x, y float64
}

// matrix is the 2x3 affine transform PDF uses: [a b c d e f].
type matrix struct{ a, b, c, d, e, f float64 }

var identity = matrix{a: 1, d: 1}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		a: m.a*n.a + m.b*n.c,
		b: m.a*n.b + m.b*n.d,
		c: m.c*n.a + m.d*n.c,
		d: m.c*n.b + m.d*n.d,
		e: m.e*n.a + m.f*n.c + n.e,
		f: m.e*n.b + m.f*n.d + n.f,
	}
}

func translation(tx, ty float64) matrix { return matrix{a: 1, d: 1, e: tx, f: ty} }

// verticalScale is the factor the matrix applies to font height.
func (m matrix) verticalScale() float64 {
	s := math.Hypot(m.c, m.d)
	if s == 0 {
		return 1
	}
	return s
}

// PageLines interprets a page's content streams and returns merged
// text lines ordered top to bottom.
func (e *Extractor) PageLines(pageIdx int) []Line {
	if pageIdx < 0 || pageIdx >= len(e.pages) {
		return nil
	}
	page := e.pages[pageIdx]
	fonts := e.fontsForPage(page)
	var spans []span
	for _, blob := range e.contentStreams(page) {
		spans = append(spans, interpretContent(blob, fonts)...)
	}
	return mergeSpans(spans, pageIdx)
}

// Lines runs PageLines over the whole document.
func (e *Extractor) Lines() []Line {
	var out []Line
	for i := range e.pages {
		out = append(out, e.PageLines(i)...)
	}
	return out
}

type textState struct {
	tm      matrix // text matrix
	tlm     matrix // text line matrix
	ctm     matrix
	leading float64
	font    string
	size    float64
}

func interpretContent(data []byte, fonts map[string]*fontMetrics) []span {
	tr := newTokenReader(data)
	st := textState{tm: identity, tlm: identity, ctm: identity}
	var ctmStack []matrix
	var operands []raw.Object
	var spans []span

	flushOperands := func() { operands = operands[:0] }

	for {
		tok, err := tr.next()
		if err != nil {
			break
		}
		if tok.Type != scanner.TokenKeyword {
			tr.unread(tok)
			obj, err := parseObject(tr)
			if err != nil {
				break
			}
			operands = append(operands, obj)
			continue
		}

		switch tok.Str {
		case "BT":
			st.tm, st.tlm = identity, identity
		case "ET":
		case "q":
			ctmStack = append(ctmStack, st.ctm)
		case "Q":
			if n := len(ctmStack); n > 0 {
				st.ctm = ctmStack[n-1]
				ctmStack = ctmStack[:n-1]
			}
		case "cm":
			if m, ok := matrixFromOperands(operands); ok {
				st.ctm = m.mul(st.ctm)
			}
		case "Tf":
			if len(operands) >= 2 {
				if n, ok := operands[len(operands)-2].(raw.Name); ok {
					st.font = n.Value()
				}
				st.size, _ = floatFromObject(operands[len(operands)-1])
			}
		case "TL":
			if len(operands) >= 1 {
				st.leading, _ = floatFromObject(operands[len(operands)-1])
			}
		case "Tm":
			if m, ok := matrixFromOperands(operands); ok {
				st.tm, st.tlm = m, m
			}
		case "Td":
			st.moveLine(operandFloat(operands, 2), operandFloat(operands, 1))
		case "TD":
			ty := operandFloat(operands, 1)
			st.leading = -ty
			st.moveLine(operandFloat(operands, 2), ty)
		case "T*":
			st.moveLine(0, -st.leading)
		case "Tj":
			spans = appendShow(spans, &st, fonts, lastString(operands))
		case "'":
			st.moveLine(0, -st.leading)
			spans = appendShow(spans, &st, fonts, lastString(operands))
		case "\"":
			st.moveLine(0, -st.leading)
			spans = appendShow(spans, &st, fonts, lastString(operands))
		case "TJ":
			if len(operands) > 0 {
				if arr, ok := operands[len(operands)-1].(*raw.ArrayObj); ok {
					spans = appendShowArray(spans, &st, fonts, arr)
				}
			}
		}
		flushOperands()
	}
	return spans
}

func (st *textState) moveLine(tx, ty float64) {
	st.tlm = translation(tx, ty).mul(st.tlm)
	st.tm = st.tlm
}

// operandFloat reads the nth operand from the end (1-based).
func operandFloat(operands []raw.Object, fromEnd int) float64 {
	if len(operands) < fromEnd {
		return 0
	}
	v, _ := floatFromObject(operands[len(operands)-fromEnd])
	return v
}

func matrixFromOperands(operands []raw.Object) (matrix, bool) {
	if len(operands) < 6 {
		return matrix{}, false
	}
	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		vals[i], _ = floatFromObject(operands[len(operands)-6+i])
	}
	return matrix{a: vals[0], b: vals[1], c: vals[2], d: vals[3], e: vals[4], f: vals[5]}, true
}

func lastString(operands []raw.Object) []byte {
	if len(operands) == 0 {
		return nil
	}
	if s, ok := operands[len(operands)-1].(raw.String); ok {
		return s.Value()
	}
	return nil
}

func appendShow(spans []span, st *textState, fonts map[string]*fontMetrics, data []byte) []span {
	if len(data) == 0 {
		return spans
	}
	fm := fonts[st.font]
	text := decodeShownText(data, fm)
	if strings.TrimSpace(text) == "" {
		return spans
	}
	device := st.tm.mul(st.ctm)
	sp := span{
		text: text,
		size: st.size * device.verticalScale(),
		x:    device.e,
		y:    device.f,
	}
	if fm != nil {
		sp.font = fm.baseFont
		sp.bold = fm.bold
	}
	if sp.font == "" {
		sp.font = st.font
	}
	return append(spans, sp)
}

func appendShowArray(spans []span, st *textState, fonts map[string]*fontMetrics, arr *raw.ArrayObj) []span {
	fm := fonts[st.font]
	var buf strings.Builder
	for _, item := range arr.Items {
		switch v := item.(type) {
		case raw.String:
			buf.WriteString(decodeShownText(v.Value(), fm))
		case raw.Number:
			// Large negative kerns are word gaps.
			if v.Float() < -150 {
				buf.WriteByte(' ')
			}
		}
	}
	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return spans
	}
	device := st.tm.mul(st.ctm)
	sp := span{
		text: text,
		size: st.size * device.verticalScale(),
		x:    device.e,
		y:    device.f,
	}
	if fm != nil {
		sp.font = fm.baseFont
		sp.bold = fm.bold
	}
	if sp.font == "" {
		sp.font = st.font
	}
	return append(spans, sp)
}

func decodeShownText(data []byte, fm *fontMetrics) string {
	if fm != nil && fm.cmap != nil {
		return fm.cmap.decode(data)
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	return string(data)
}

// mergeSpans groups spans sharing a baseline into Lines. The dominant
// (largest) span provides the line's font attributes.
func mergeSpans(spans []span, pageIdx int) []Line {
	if len(spans) == 0 {
		return nil
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if math.Abs(spans[i].y-spans[j].y) > 2 {
			return spans[i].y > spans[j].y
		}
		return spans[i].x < spans[j].x
	})

	var lines []Line
	cur := Line{Page: pageIdx}
	var curY float64
	flush := func() {
		cur.Text = strings.TrimSpace(cur.Text)
		if cur.Text != "" {
			cur.Width = approxWidth(cur.Text, cur.Size)
			lines = append(lines, cur)
		}
	}
	for i, sp := range spans {
		if i == 0 || math.Abs(sp.y-curY) > 2 {
			if i != 0 {
				flush()
			}
			cur = Line{Page: pageIdx, Font: sp.font, Size: sp.size, Bold: sp.bold, X: sp.x, Y: sp.y, Text: sp.text}
			curY = sp.y
			continue
		}
		if cur.Text != "" && !strings.HasSuffix(cur.Text, " ") && !strings.HasPrefix(sp.text, " ") {
			cur.Text += " "
		}
		cur.Text += sp.text
		if sp.size > cur.Size {
			cur.Size = sp.size
			cur.Font = sp.font
			cur.Bold = sp.bold
		}
	}
	flush()
	return lines
}

// approxWidth estimates rendered width without glyph metrics. A factor
// of half the em size tracks Latin text closely enough for the
// centering check.
func approxWidth(text string, size float64) float64 {
	n := 0
	for range text {
		n++
	}
	return float64(n) * size * 0.5
}
