package scanner

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/wudi/pdfoutline/recovery"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return New(bytes.NewReader([]byte(data)), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected object number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Value name, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for want := int64(1); want <= 3; want++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || tok.Int != want {
			t.Fatalf("expected %d, got %+v", want, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "]" {
		t.Fatalf("expected array close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Flag" {
		t.Fatalf("expected Flag key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Null" {
		t.Fatalf("expected Null key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != ">>" {
		t.Fatalf("expected dict close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_IndirectReference(t *testing.T) {
	s := newScanner(t, "/Parent 3 0 R /Count 2", Config{})
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "Parent" {
		t.Fatalf("expected Parent, got %+v", tok)
	}
	tok := nextToken(t, s)
	if tok.Type != TokenRef || tok.Num != 3 || tok.Gen != 0 {
		t.Fatalf("expected ref 3 0 R, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Count" {
		t.Fatalf("expected Count, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNumber || tok.Int != 2 {
		t.Fatalf("expected 2, got %+v", tok)
	}
}

func TestScanner_LookaheadAtBufferEdges(t *testing.T) {
	// A one-byte window forces every lookahead to pull more data in.
	s := newScanner(t, "<< /K 5 0 R >>", Config{WindowSize: 1})
	if tok := nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "K" {
		t.Fatalf("expected K, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenRef || tok.Num != 5 {
		t.Fatalf("expected ref 5 0 R, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenKeyword || tok.Str != ">>" {
		t.Fatalf("expected dict end, got %+v", tok)
	}
}

func TestScanner_ReferenceAtEOF(t *testing.T) {
	// Nothing follows the R; the lookahead must treat EOF as a
	// terminator rather than erroring.
	s := newScanner(t, "7 0 R", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenRef || tok.Num != 7 || tok.Gen != 0 {
		t.Fatalf("expected ref 7 0 R, got %+v", tok)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_TwoNumbersNotARef(t *testing.T) {
	s := newScanner(t, "[10 20]", Config{})
	nextToken(t, s) // '['
	if tok := nextToken(t, s); tok.Type != TokenNumber || tok.Int != 10 {
		t.Fatalf("expected 10, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenNumber || tok.Int != 20 {
		t.Fatalf("expected 20, got %+v", tok)
	}
}

func TestScanner_Strings(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(Hello)", "Hello"},
		{"(a\\(b\\)c)", "a(b)c"},
		{"(nested (inner) done)", "nested (inner) done"},
		{"(line\\nbreak)", "line\nbreak"},
		{"(octal \\101)", "octal A"},
		{"<48656C6C6F>", "Hello"},
		{"<48 65 6C 6C 6F>", "Hello"},
		{"<486>", "H`"}, // odd nibble pads with zero
	}
	for _, tc := range cases {
		s := newScanner(t, tc.in, Config{})
		tok := nextToken(t, s)
		if tok.Type != TokenString || string(tok.Bytes) != tc.want {
			t.Fatalf("%q: expected %q, got %+v", tc.in, tc.want, tok)
		}
	}
}

func TestScanner_NameHexEscape(t *testing.T) {
	s := newScanner(t, "/A#20B", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenName || tok.Str != "A B" {
		t.Fatalf("expected 'A B', got %+v", tok)
	}
}

func TestScanner_RealNumbers(t *testing.T) {
	s := newScanner(t, "3.14 -0.5 +2. .25", Config{})
	wants := []float64{3.14, -0.5, 2, 0.25}
	for _, want := range wants {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber || tok.IsInt {
			t.Fatalf("expected real, got %+v", tok)
		}
		if tok.Float != want {
			t.Fatalf("expected %v, got %v", want, tok.Float)
		}
	}
}

func TestScanner_StreamWithLength(t *testing.T) {
	data := "<< /Length 5 >>\nstream\nHello\nendstream\nendobj"
	s := newScanner(t, data, Config{})
	// consume dict
	for {
		tok := nextToken(t, s)
		if tok.Type == TokenKeyword && tok.Str == ">>" {
			break
		}
	}
	s.SetNextStreamLength(5)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "Hello" {
		t.Fatalf("expected stream payload Hello, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "endobj" {
		t.Fatalf("expected endobj after stream, got %+v", tok)
	}
}

func TestScanner_StreamWithoutLength(t *testing.T) {
	data := "stream\nbinary payload\nendstream"
	s := newScanner(t, data, Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "binary payload" {
		t.Fatalf("expected searched payload, got %q", tok.Bytes)
	}
}

func TestScanner_UnterminatedStringRecovery(t *testing.T) {
	strict := newScanner(t, "(never closed", Config{Recovery: recovery.NewStrictStrategy()})
	if _, err := strict.Next(); err == nil {
		t.Fatal("strict strategy should fail on unterminated string")
	}

	lenient := recovery.NewLenientStrategy()
	s := newScanner(t, "(never closed", Config{Recovery: lenient})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("lenient strategy should fix: %v", err)
	}
	if tok.Type != TokenString || string(tok.Bytes) != "never closed" {
		t.Fatalf("expected repaired string, got %+v", tok)
	}
	if len(lenient.Errors()) == 0 {
		t.Fatal("lenient strategy should record the repair")
	}
}

func TestScanner_DepthLimits(t *testing.T) {
	s := newScanner(t, "[[[[", Config{MaxArrayDepth: 3})
	var err error
	for i := 0; i < 4; i++ {
		if _, err = s.Next(); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("expected array depth error")
	}
}

func TestScanner_InlineImage(t *testing.T) {
	s := newScanner(t, "BI /W 1 /H 1 ID \x00\x01\x02 EI Q", Config{})
	var tok Token
	for {
		tok = nextToken(t, s)
		if tok.Type == TokenInlineImage {
			break
		}
	}
	if string(tok.Bytes) != "\x00\x01\x02" {
		t.Fatalf("unexpected inline payload: %q", tok.Bytes)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "Q" {
		t.Fatalf("expected Q after EI, got %+v", tok)
	}
}

func TestScanner_SeekAndPosition(t *testing.T) {
	s := newScanner(t, "1 2 3", Config{})
	nextToken(t, s)
	if err := s.Seek(0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	tok := nextToken(t, s)
	if tok.Int != 1 {
		t.Fatalf("expected 1 after rewind, got %+v", tok)
	}
}
