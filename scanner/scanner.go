package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/wudi/pdfoutline/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // payload following the 'stream' keyword
	TokenInlineImage                  // payload between ID and EI (content streams only)
	TokenKeyword                      // other keywords (obj, endobj, >>, ], operators)
)

// Token carries one lexical unit. The populated fields depend on Type:
// Str for names and keywords, Bytes for strings/streams/inline images,
// Int/Float/IsInt for numbers, Num/Gen for references.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Num   int
	Gen   int
	Pos   int64
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	// SetNextStreamLength primes the scanner with the /Length of the stream
	// about to be consumed so it does not have to search for endstream.
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	MaxInlineImage  int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

// pdfScanner buffers data from a ReaderAt in fixed-size windows so large
// documents are not read past the point the caller needs.
type pdfScanner struct {
	reader        io.ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	arrayDepth    int
	dictDepth     int
	loc           recovery.Location
	lastAction    recovery.Action
}

func New(r io.ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

// SetLocation provides object context for recovery reporting.
func (s *pdfScanner) SetLocation(loc recovery.Location) { s.loc = loc }

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	if err := s.ensure(s.pos); err != nil {
		return Token{}, err
	}
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case '{', '}':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		if s.pos >= int64(len(s.data)) {
			return io.EOF
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if s.pos >= int64(len(s.data)) {
					return io.EOF
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

// peekAhead returns the byte n positions past the cursor without
// advancing, loading more of the window if needed. Returns 0 at EOF.
func (s *pdfScanner) peekAhead(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	off := int64(len(s.data))
	n, err := s.reader.ReadAt(buf, off)
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		s.eof = true
	}
	return nil
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' {
			s.pos++
			a := s.hexNibble()
			b := s.hexNibble()
			out.WriteByte((a << 4) | b)
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
}

func (s *pdfScanner) hexNibble() byte {
	if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
		return 0
	}
	c := s.data[s.pos]
	s.pos++
	return fromHex(c)
}

// scanLiteralString handles PDF 7.3.4.2: escapes, octal codes, balanced
// nesting, and line continuations.
func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '\\' {
			s.pos++
			if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			if esc == '\r' {
				s.pos++
				if s.ensure(s.pos) == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
				continue
			}
			if esc == '\n' {
				s.pos++
				continue
			}
			if esc >= '0' && esc <= '7' {
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2; k++ {
					if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
						break
					}
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = (val << 3) + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
				continue
			}
			buf.WriteByte(translateEscape(esc))
			s.pos++
			continue
		}
		if c == '(' {
			depth++
			buf.WriteByte(c)
			s.pos++
			continue
		}
		if c == ')' {
			depth--
			if depth == 0 {
				s.pos++
				break
			}
			buf.WriteByte(c)
			s.pos++
			continue
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, s.recover(errors.New("literal string too long"), "literal")
		}
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil && s.lastAction != recovery.ActionFix {
			return Token{}, err
		}
	}
	return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var hexbuf []byte
	closed := false
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			closed = true
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		hexbuf = append(hexbuf, c)
		s.pos++
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil && s.lastAction != recovery.ActionFix {
			return Token{}, err
		}
	}
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0') // odd nibble count pads with zero
	}
	if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
		return Token{}, s.recover(errors.New("hex string too long"), "hex")
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, (fromHex(hexbuf[i])<<4)|fromHex(hexbuf[i+1]))
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Pos: start})
}

// scanStream consumes the payload following a 'stream' keyword. When the
// caller primed a /Length it is trusted first; otherwise the scanner searches
// for a plausible endstream marker.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
		return Token{}, err
	}
	if s.pos >= int64(len(s.data)) {
		return Token{}, s.recover(errors.New("stream missing EOL before data"), "stream")
	}
	switch s.data[s.pos] {
	case '\r':
		s.pos++
		if s.ensure(s.pos) == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	default:
		if err := s.recover(errors.New("stream missing EOL before data"), "stream"); err != nil && s.lastAction != recovery.ActionFix {
			return Token{}, err
		}
	}
	dataStart := s.pos

	if s.nextStreamLen >= 0 {
		l := s.nextStreamLen
		s.nextStreamLen = -1
		if s.cfg.MaxStreamLength > 0 && l > s.cfg.MaxStreamLength {
			return Token{}, errors.New("stream too long")
		}
		if err := s.ensure(dataStart + l - 1); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if dataStart+l > int64(len(s.data)) {
			if err := s.recover(errors.New("stream ended before declared length"), "stream"); err != nil && s.lastAction != recovery.ActionFix {
				return Token{}, err
			}
			l = int64(len(s.data)) - dataStart
		}
		payload := append([]byte(nil), s.data[dataStart:dataStart+l]...)
		s.pos = dataStart + l
		s.skipPastEndstream()
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}

	needle := []byte("endstream")
	idx := int64(-1)
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle)) - 1); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if i+int64(len(needle)) > int64(len(s.data)) {
			break
		}
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil && s.lastAction != recovery.ActionFix {
				return Token{}, err
			}
			break
		}
		if s.data[i] != 'e' || !bytes.HasPrefix(s.data[i:], needle) {
			continue
		}
		prevOK := i == dataStart || isWhitespace(s.data[i-1])
		followOK := i+int64(len(needle)) >= int64(len(s.data)) || isDelimiter(s.data[i+int64(len(needle))])
		if prevOK && followOK {
			idx = i
			break
		}
	}
	if idx == -1 {
		payload := append([]byte(nil), s.data[dataStart:]...)
		s.pos = int64(len(s.data))
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}
	end := idx
	// EOL before the marker belongs to the syntax, not the payload.
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
		return Token{}, s.recover(errors.New("stream too long"), "stream")
	}
	s.pos = idx + int64(len(needle))
	return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
}

func (s *pdfScanner) skipPastEndstream() {
	for k := 0; k < 2; k++ {
		if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
			return
		}
		if isEOL(s.data[s.pos]) {
			s.pos++
			continue
		}
		break
	}
	needle := []byte("endstream")
	if s.ensure(s.pos+int64(len(needle))-1) == nil && bytes.HasPrefix(s.data[s.pos:], needle) {
		s.pos += int64(len(needle))
		return
	}
	if rest := s.data[s.pos:]; len(rest) > 0 {
		if i := bytes.Index(rest, needle); i >= 0 {
			s.pos += int64(i + len(needle))
		}
	}
}

// scanInlineImage consumes bytes after ID until an EI delimiter preceded by a
// line break. Content-stream only; the scanner does not interpret the params.
func (s *pdfScanner) scanInlineImage(start int64) (Token, error) {
	if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) || !isWhitespace(s.data[s.pos]) {
		return Token{}, s.recover(errors.New("inline image missing whitespace after ID"), "inline_image")
	}
	s.pos++
	dataStart := s.pos
	for {
		if err := s.ensure(s.pos + 2); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos+1 >= int64(len(s.data)) {
			return Token{}, s.recover(errors.New("unterminated inline image"), "inline_image")
		}
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' {
			prevOK := s.pos > dataStart && isWhitespace(s.data[s.pos-1])
			nextOK := s.pos+2 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+2])
			if prevOK && nextOK {
				end := s.pos
				// the single whitespace separating data from EI is syntax
				if end > dataStart && isWhitespace(s.data[end-1]) {
					end--
				}
				payload := append([]byte(nil), s.data[dataStart:end]...)
				s.pos += 2
				return s.emit(Token{Type: TokenInlineImage, Bytes: payload, Pos: start})
			}
		}
		s.pos++
		if s.cfg.MaxInlineImage > 0 && s.pos-dataStart > s.cfg.MaxInlineImage {
			return Token{}, s.recover(errors.New("inline image too long"), "inline_image")
		}
	}
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		buf.WriteByte(c)
		s.pos++
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID":
		return s.scanInlineImage(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		s.pos++
		return Token{}, errors.New("invalid number")
	}
	// Look ahead for 'G R' to form an indirect reference.
	afterFirst := s.pos
	s.skipWSAndComments()
	num2 := s.scanNumberString()
	if num2 != "" {
		s.skipWSAndComments()
		if s.ensure(s.pos) == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' {
			after := s.peekAhead(1)
			if after == 0 || isDelimiter(after) {
				s.pos++
				n1, _ := strconv.Atoi(num1)
				n2, _ := strconv.Atoi(num2)
				return Token{Type: TokenRef, Num: n1, Gen: n2, Pos: start}, nil
			}
		}
	}
	s.pos = afterFirst
	if i, err := strconv.ParseInt(num1, 10, 64); err == nil {
		return s.emit(Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start})
	}
	f, err := strconv.ParseFloat(num1, 64)
	if err != nil {
		return Token{}, s.recover(errors.New("malformed number "+num1), "number")
	}
	return s.emit(Token{Type: TokenNumber, Float: f, Pos: start})
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	var buf bytes.Buffer
	seenDigit := false
	for {
		if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			buf.WriteByte(c)
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return buf.String()
}

func (s *pdfScanner) recover(err error, component string) error {
	s.lastAction = recovery.ActionFail
	if s.cfg.Recovery == nil {
		return err
	}
	loc := s.loc
	loc.ByteOffset = s.pos
	if loc.Component != "" {
		loc.Component += "->"
	}
	loc.Component += "scanner:" + component
	s.lastAction = s.cfg.Recovery.OnError(err, loc)
	switch s.lastAction {
	case recovery.ActionSkip, recovery.ActionFix:
		return nil
	default:
		return err
	}
}

func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			return Token{}, s.recover(errors.New("array depth exceeded"), "array")
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			return Token{}, s.recover(errors.New("dict depth exceeded"), "dict")
		}
	case TokenKeyword:
		if tok.Str == "]" && s.arrayDepth > 0 {
			s.arrayDepth--
		}
		if tok.Str == ">>" && s.dictDepth > 0 {
			s.dictDepth--
		}
	}
	return tok, nil
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isRegular(c byte) bool { return !isDelimiter(c) }

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
