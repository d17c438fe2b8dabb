package raw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/wudi/pdfoutline/recovery"
	"github.com/wudi/pdfoutline/scanner"
)

// ParserConfig bounds the sweep and selects the recovery behavior shared
// with the scanner underneath.
type ParserConfig struct {
	MaxObjects int
	Scanner    scanner.Config
	Recovery   recovery.Strategy
}

type parser struct {
	cfg ParserConfig
}

// NewParser returns a linear-sweep parser. It walks the whole file and
// collects every `N G obj` body it can find instead of trusting the
// cross-reference table, which is the part of a damaged PDF most likely
// to be wrong.
func NewParser(cfg ParserConfig) Parser {
	if cfg.MaxObjects <= 0 {
		cfg.MaxObjects = 1 << 20
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	if cfg.Scanner.Recovery == nil {
		cfg.Scanner.Recovery = cfg.Recovery
	}
	return &parser{cfg: cfg}
}

type parseState struct {
	sc      scanner.Scanner
	pending []scanner.Token
	cfg     ParserConfig
}

func (p *parser) Parse(ctx context.Context, r io.ReaderAt) (*Document, error) {
	doc := &Document{
		Objects: make(map[ObjectRef]Object),
		Version: sniffVersion(r),
	}

	st := &parseState{sc: scanner.New(r, p.cfg.Scanner), cfg: p.cfg}

	// Sliding window of the last two integer tokens so `N G obj` headers
	// can be recognized without lookahead.
	var nums [2]scanner.Token
	var numCount int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := st.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if p.cfg.Recovery.OnError(err, recovery.Location{
				ByteOffset: st.sc.Position(),
				Component:  "raw-parser",
			}) == recovery.ActionFail {
				return nil, err
			}
			break
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			nums[0], nums[1] = nums[1], tok
			if numCount < 2 {
				numCount++
			}
			continue
		case tok.Type == scanner.TokenKeyword && tok.Str == "obj" && numCount == 2:
			ref := ObjectRef{Num: int(nums[0].Int), Gen: int(nums[1].Int)}
			obj, err := st.parseObjectBody(ref)
			if err != nil {
				loc := recovery.Location{
					ByteOffset: st.sc.Position(),
					ObjectNum:  ref.Num,
					ObjectGen:  ref.Gen,
					Component:  "raw-parser",
				}
				if p.cfg.Recovery.OnError(err, loc) == recovery.ActionFail {
					return nil, fmt.Errorf("object %s: %w", ref, err)
				}
				st.resync()
			} else if obj != nil {
				doc.Objects[ref] = obj
				if len(doc.Objects) > p.cfg.MaxObjects {
					return nil, fmt.Errorf("object count exceeds limit %d", p.cfg.MaxObjects)
				}
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			dict, err := st.parseTrailerDict()
			if err != nil {
				if p.cfg.Recovery.OnError(err, recovery.Location{
					ByteOffset: st.sc.Position(),
					Component:  "raw-parser",
				}) == recovery.ActionFail {
					return nil, fmt.Errorf("trailer: %w", err)
				}
			} else {
				doc.Trailer = mergeTrailers(doc.Trailer, dict)
			}
		}
		numCount = 0
	}

	finishDocument(doc)
	return doc, nil
}

// finishDocument fills in the trailer-derived fields, falling back to the
// object table when the file has no `trailer` keyword (cross-reference
// stream PDFs keep /Root inside the /Type /XRef stream dictionary).
func finishDocument(doc *Document) {
	if doc.Trailer == nil || !hasKey(doc.Trailer, "Root") {
		if synth := synthesizeTrailer(doc); synth != nil {
			doc.Trailer = mergeTrailers(synth, doc.Trailer)
		}
	}
	if doc.Trailer == nil {
		return
	}
	if _, ok := doc.Trailer.Get(NameLiteral("Encrypt")); ok {
		doc.Encrypted = true
	}
	doc.RefreshMetadata()
}

// RefreshMetadata re-reads the Info dictionary into Metadata. Callers
// that rewrite string objects after parsing (decryption) use it to
// replace the ciphertext fields captured during the sweep.
func (doc *Document) RefreshMetadata() {
	if doc.Trailer == nil {
		return
	}
	if info, ok := doc.Trailer.Get(NameLiteral("Info")); ok {
		doc.Metadata = readMetadata(doc, info)
	}
}

func synthesizeTrailer(doc *Document) Dictionary {
	trailer := Dict()
	for ref, obj := range doc.Objects {
		switch o := obj.(type) {
		case *StreamObj:
			if dictName(o.Dict, "Type") == "XRef" {
				copyTrailerKeys(trailer, o.Dict)
			}
		case *DictObj:
			if dictName(o, "Type") == "Catalog" {
				if _, ok := trailer.Get(NameLiteral("Root")); !ok {
					trailer.Set(NameLiteral("Root"), Ref(ref.Num, ref.Gen))
				}
			}
		}
	}
	if trailer.Len() == 0 {
		return nil
	}
	return trailer
}

func copyTrailerKeys(dst *DictObj, src *DictObj) {
	for _, key := range []string{"Root", "Info", "Encrypt", "ID", "Size"} {
		if v, ok := src.Get(NameLiteral(key)); ok {
			dst.Set(NameLiteral(key), v)
		}
	}
}

// mergeTrailers keeps every key, letting the later (more recent
// incremental update) trailer win conflicts.
func mergeTrailers(older, newer Dictionary) Dictionary {
	if older == nil {
		return newer
	}
	if newer == nil {
		return older
	}
	merged := Dict()
	for _, k := range older.Keys() {
		if v, ok := older.Get(k); ok {
			merged.Set(k, v)
		}
	}
	for _, k := range newer.Keys() {
		if v, ok := newer.Get(k); ok {
			merged.Set(k, v)
		}
	}
	return merged
}

func readMetadata(doc *Document, info Object) DocumentMetadata {
	var md DocumentMetadata
	if ref, ok := info.(Reference); ok {
		info = doc.Objects[ref.Ref()]
	}
	dict, ok := info.(Dictionary)
	if !ok {
		return md
	}
	md.Title = dictText(dict, "Title")
	md.Author = dictText(dict, "Author")
	md.Subject = dictText(dict, "Subject")
	md.Producer = dictText(dict, "Producer")
	md.Creator = dictText(dict, "Creator")
	if kw := dictText(dict, "Keywords"); kw != "" {
		for _, part := range strings.Split(kw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				md.Keywords = append(md.Keywords, part)
			}
		}
	}
	return md
}

func dictText(d Dictionary, key string) string {
	v, ok := d.Get(NameLiteral(key))
	if !ok {
		return ""
	}
	s, ok := v.(String)
	if !ok {
		return ""
	}
	return DecodeTextString(s.Value())
}

func dictName(d Dictionary, key string) string {
	v, ok := d.Get(NameLiteral(key))
	if !ok {
		return ""
	}
	n, ok := v.(Name)
	if !ok {
		return ""
	}
	return n.Value()
}

func hasKey(d Dictionary, key string) bool {
	_, ok := d.Get(NameLiteral(key))
	return ok
}

// DecodeTextString converts a PDF text string to UTF-8. UTF-16BE strings
// carry a BOM; everything else is treated as Latin-1, which covers
// PDFDocEncoding for the characters that matter here.
func DecodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func sniffVersion(r io.ReaderAt) string {
	buf := make([]byte, 1024)
	n, _ := r.ReadAt(buf, 0)
	buf = buf[:n]
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		return ""
	}
	rest := buf[idx+5:]
	end := 0
	for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	return string(rest[:end])
}

func (st *parseState) next() (scanner.Token, error) {
	if n := len(st.pending); n > 0 {
		tok := st.pending[n-1]
		st.pending = st.pending[:n-1]
		return tok, nil
	}
	return st.sc.Next()
}

func (st *parseState) push(tok scanner.Token) { st.pending = append(st.pending, tok) }

// parseObjectBody parses everything between `obj` and `endobj`.
func (st *parseState) parseObjectBody(ref ObjectRef) (Object, error) {
	tok, err := st.next()
	if err != nil {
		return nil, err
	}
	obj, err := st.parseValue(tok)
	if err != nil {
		return nil, err
	}

	// A dictionary may be followed by a stream body.
	if dict, ok := obj.(*DictObj); ok {
		if length, ok := dictInt(dict, "Length"); ok {
			st.sc.SetNextStreamLength(length)
		}
		tok, err = st.next()
		if errors.Is(err, io.EOF) {
			return dict, nil
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenStream {
			obj = NewStream(dict, tok.Bytes)
		} else {
			st.push(tok)
			st.sc.SetNextStreamLength(-1)
		}
	}

	tok, err = st.next()
	if errors.Is(err, io.EOF) {
		return obj, nil
	}
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "endobj" {
		// Tolerate a missing endobj so the sweep can keep going.
		st.push(tok)
	}
	return obj, nil
}

func (st *parseState) parseTrailerDict() (Dictionary, error) {
	tok, err := st.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenDict {
		return nil, fmt.Errorf("expected dictionary after trailer keyword, got token type %d", tok.Type)
	}
	obj, err := st.parseValue(tok)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(Dictionary)
	if !ok {
		return nil, errors.New("trailer value is not a dictionary")
	}
	return dict, nil
}

// parseValue builds one object from tok, consuming further tokens for
// containers.
func (st *parseState) parseValue(tok scanner.Token) (Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		return st.parseDict()
	case scanner.TokenArray:
		return st.parseArray()
	case scanner.TokenName:
		return NameLiteral(tok.Str), nil
	case scanner.TokenString:
		return Str(tok.Bytes), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return Bool(tok.Bool), nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenRef:
		return Ref(tok.Num, tok.Gen), nil
	case scanner.TokenStream:
		return NewStream(Dict(), tok.Bytes), nil
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
	}
}

func (st *parseState) parseDict() (*DictObj, error) {
	dict := Dict()
	for {
		tok, err := st.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key must be a name, got %q at offset %d", tok.Str, tok.Pos)
		}
		key := tok.Str
		tok, err = st.next()
		if err != nil {
			return nil, err
		}
		val, err := st.parseValue(tok)
		if err != nil {
			return nil, err
		}
		dict.Set(NameLiteral(key), val)
	}
}

func (st *parseState) parseArray() (*ArrayObj, error) {
	arr := NewArray()
	for {
		tok, err := st.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		val, err := st.parseValue(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(val)
	}
}

// resync skips ahead to the next endobj so one bad object does not take
// the rest of the sweep down with it.
func (st *parseState) resync() {
	for {
		tok, err := st.next()
		if err != nil {
			return
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
			return
		}
	}
}

func dictInt(d Dictionary, key string) (int64, bool) {
	v, ok := d.Get(NameLiteral(key))
	if !ok {
		return 0, false
	}
	n, ok := v.(Number)
	if !ok || !n.IsInteger() {
		return 0, false
	}
	return n.Int(), true
}
