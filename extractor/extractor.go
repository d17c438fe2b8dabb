// Package extractor pulls structured content out of a decoded PDF:
// page tree, metadata, bookmarks, positioned text lines, and images.
package extractor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"

	"github.com/wudi/pdfoutline/ir/decoded"
	"github.com/wudi/pdfoutline/ir/raw"
	"github.com/wudi/pdfoutline/scanner"
)

type Extractor struct {
	dec        *decoded.Document
	raw        *raw.Document
	catalog    *raw.DictObj
	pages      []*raw.DictObj
	pageLabels map[int]string
	fontCache  map[raw.ObjectRef]*fontMetrics
}

// New builds an extractor over a decoded document. Object streams are
// inflated up front so compressed catalogs and outlines resolve like
// ordinary objects.
func New(dec *decoded.Document) (*Extractor, error) {
	if dec == nil || dec.Raw == nil {
		return nil, errors.New("decoded document is required")
	}
	e := &Extractor{dec: dec, raw: dec.Raw}
	e.inflateObjectStreams()
	e.catalog = rootCatalog(dec.Raw)
	if e.catalog == nil {
		return nil, errors.New("document catalog not found")
	}
	e.pages = collectPages(dec.Raw)
	e.pageLabels = collectPageLabels(dec.Raw, e.catalog, len(e.pages))
	return e, nil
}

func (e *Extractor) PageCount() int { return len(e.pages) }

// Metadata summarizes document-level information.
type Metadata struct {
	Version   string
	Info      raw.DocumentMetadata
	Lang      string
	Encrypted bool
	PageCount int
}

func (e *Extractor) Metadata() Metadata {
	meta := Metadata{
		Version:   e.raw.Version,
		Info:      e.raw.Metadata,
		Encrypted: e.dec.Encrypted,
		PageCount: len(e.pages),
	}
	if lang, ok := stringFromDict(e.catalog, "Lang"); ok {
		meta.Lang = lang
	}
	return meta
}

// PageLabels returns the computed label for every page index.
func (e *Extractor) PageLabels() map[int]string {
	out := make(map[int]string, len(e.pageLabels))
	for k, v := range e.pageLabels {
		out[k] = v
	}
	return out
}

// MediaBox returns the page size in points, defaulting to US Letter
// when the entry is missing or inherited values cannot be resolved.
func (e *Extractor) MediaBox(pageIdx int) (width, height float64) {
	width, height = 612, 792
	if pageIdx < 0 || pageIdx >= len(e.pages) {
		return
	}
	dict := e.pages[pageIdx]
	for depth := 0; dict != nil && depth < 32; depth++ {
		if box := derefArray(e.raw, valueFromDict(dict, "MediaBox")); box != nil && box.Len() == 4 {
			vals := make([]float64, 4)
			for i := 0; i < 4; i++ {
				item, _ := box.Get(i)
				vals[i], _ = floatFromObject(deref(e.raw, item))
			}
			if w := vals[2] - vals[0]; w > 0 {
				width = w
			}
			if h := vals[3] - vals[1]; h > 0 {
				height = h
			}
			return
		}
		dict = derefDict(e.raw, valueFromDict(dict, "Parent"))
	}
	return
}

// inflateObjectStreams expands /Type /ObjStm streams into the object
// table. Existing entries win: the linear sweep already saw the
// uncompressed versions.
func (e *Extractor) inflateObjectStreams() {
	added := make(map[raw.ObjectRef]raw.Object)
	for ref, obj := range e.raw.Objects {
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		if typ, _ := nameFromDict(stream.Dictionary(), "Type"); typ != "ObjStm" {
			continue
		}
		objects, err := e.decodeObjectStream(ref)
		if err != nil {
			continue
		}
		for num, embedded := range objects {
			key := raw.ObjectRef{Num: num, Gen: 0}
			if _, exists := e.raw.Objects[key]; !exists {
				added[key] = embedded
			}
		}
	}
	for ref, obj := range added {
		e.raw.Objects[ref] = obj
	}
}

func (e *Extractor) decodeObjectStream(ref raw.ObjectRef) (map[int]raw.Object, error) {
	stream, ok := e.dec.Streams[ref]
	if !ok {
		return nil, fmt.Errorf("object stream %s not decoded", ref)
	}
	data := stream.Data()
	dict := stream.Dictionary()
	count, ok := intFromObject(valueFromDict(dict, "N"))
	if !ok || count <= 0 {
		return nil, errors.New("invalid object stream count")
	}
	first, ok := intFromObject(valueFromDict(dict, "First"))
	if !ok || first < 0 || first > len(data) {
		return nil, errors.New("invalid object stream First offset")
	}

	header := bufio.NewReader(bytes.NewReader(data[:first]))
	type entry struct{ num, off int }
	entries := make([]entry, 0, count)
	for i := 0; i < count; i++ {
		var num, off int
		if _, err := fmt.Fscan(header, &num, &off); err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		entries = append(entries, entry{num, off})
	}

	body := data[first:]
	objects := make(map[int]raw.Object, len(entries))
	for i, ent := range entries {
		if ent.off < 0 || ent.off > len(body) {
			continue
		}
		end := len(body)
		if i+1 < len(entries) && entries[i+1].off >= ent.off && entries[i+1].off <= len(body) {
			end = entries[i+1].off
		}
		segment := bytes.TrimSpace(body[ent.off:end])
		if len(segment) == 0 {
			continue
		}
		obj, err := parseObjectBytes(segment)
		if err != nil {
			continue
		}
		objects[ent.num] = obj
	}
	return objects, nil
}

// tokenReader layers one-token pushback over the scanner for the small
// recursive parsers below.
type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func newTokenReader(data []byte) *tokenReader {
	return &tokenReader{s: scanner.New(bytes.NewReader(data), scanner.Config{})}
}

func (r *tokenReader) next() (scanner.Token, error) {
	if n := len(r.buf); n > 0 {
		tok := r.buf[n-1]
		r.buf = r.buf[:n-1]
		return tok, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func parseObjectBytes(data []byte) (raw.Object, error) {
	return parseObject(newTokenReader(data))
}

func parseObject(tr *tokenReader) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenRef:
		return raw.Ref(tok.Num, tok.Gen), nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			t, err := tr.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == "]" {
				return arr, nil
			}
			tr.unread(t)
			item, err := parseObject(tr)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		d := raw.Dict()
		for {
			t, err := tr.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == ">>" {
				return d, nil
			}
			if t.Type != scanner.TokenName {
				return nil, fmt.Errorf("expected name key, got token type %d", t.Type)
			}
			val, err := parseObject(tr)
			if err != nil {
				return nil, err
			}
			d.Set(raw.NameLiteral(t.Str), val)
		}
	}
	return nil, fmt.Errorf("unexpected token type %d", tok.Type)
}

func rootCatalog(doc *raw.Document) *raw.DictObj {
	if doc.Trailer == nil {
		return nil
	}
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil
	}
	return derefDict(doc, rootObj)
}

func collectPages(doc *raw.Document) []*raw.DictObj {
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil
	}
	var pages []*raw.DictObj
	seen := make(map[*raw.DictObj]bool)
	walkPages(doc, rootObj, seen, func(p *raw.DictObj) { pages = append(pages, p) })
	return pages
}

// walkPages tolerates page dictionaries missing their /Type and guards
// against reference cycles in damaged files.
func walkPages(doc *raw.Document, obj raw.Object, seen map[*raw.DictObj]bool, visit func(*raw.DictObj)) {
	dict := derefDict(doc, obj)
	if dict == nil || seen[dict] {
		return
	}
	seen[dict] = true
	typ, _ := nameFromDict(dict, "Type")
	switch typ {
	case "Catalog":
		walkPages(doc, valueFromDict(dict, "Pages"), seen, visit)
	case "Pages":
		if kids := derefArray(doc, valueFromDict(dict, "Kids")); kids != nil {
			for _, kid := range kids.Items {
				walkPages(doc, kid, seen, visit)
			}
		}
	case "Page":
		visit(dict)
	default:
		if _, ok := dict.Get(raw.NameLiteral("Contents")); ok {
			visit(dict)
		} else if _, ok := dict.Get(raw.NameLiteral("Kids")); ok {
			if kids := derefArray(doc, valueFromDict(dict, "Kids")); kids != nil {
				for _, kid := range kids.Items {
					walkPages(doc, kid, seen, visit)
				}
			}
		}
	}
}

func collectPageLabels(doc *raw.Document, catalog *raw.DictObj, pageCount int) map[int]string {
	labels := make(map[int]string)
	pageLabels := derefDict(doc, valueFromDict(catalog, "PageLabels"))
	if pageLabels == nil {
		return labels
	}
	nums := derefArray(doc, valueFromDict(pageLabels, "Nums"))
	if nums == nil {
		return labels
	}
	for i := 0; i+1 < len(nums.Items); i += 2 {
		idx, ok := intFromObject(nums.Items[i])
		if !ok {
			continue
		}
		entry := derefDict(doc, nums.Items[i+1])
		if entry == nil {
			continue
		}
		prefix, _ := stringFromDict(entry, "P")
		style, _ := nameFromDict(entry, "S")
		start := 1
		if st, ok := intFromObject(valueFromDict(entry, "St")); ok {
			start = st
		}
		for p := idx; p < pageCount; p++ {
			if _, exists := labels[p]; exists {
				continue
			}
			labels[p] = prefix + formatLabel(style, start+(p-idx))
		}
	}
	return labels
}

func formatLabel(style string, n int) string {
	switch style {
	case "D":
		return fmt.Sprintf("%d", n)
	case "R":
		return toRoman(n)
	case "r":
		return lower(toRoman(n))
	case "A":
		return toAlpha(n)
	case "a":
		return lower(toAlpha(n))
	case "":
		return "" // prefix-only label
	}
	return fmt.Sprintf("%d", n)
}

func toRoman(n int) string {
	if n <= 0 || n >= 4000 {
		return fmt.Sprintf("%d", n)
	}
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	var out bytes.Buffer
	for i, v := range vals {
		for n >= v {
			out.WriteString(syms[i])
			n -= v
		}
	}
	return out.String()
}

func toAlpha(n int) string {
	if n <= 0 {
		return ""
	}
	// 1..26 -> A..Z, 27 -> AA, per the page label convention
	letter := byte('A' + (n-1)%26)
	return string(bytes.Repeat([]byte{letter}, (n-1)/26+1))
}

func lower(s string) string { return string(bytes.ToLower([]byte(s))) }

// Dictionary access helpers shared across the package.

func valueFromDict(dict raw.Dictionary, key string) raw.Object {
	if dict == nil {
		return nil
	}
	val, _ := dict.Get(raw.NameLiteral(key))
	return val
}

func nameFromDict(dict raw.Dictionary, key string) (string, bool) {
	if n, ok := valueFromDict(dict, key).(raw.Name); ok {
		return n.Value(), true
	}
	return "", false
}

func stringFromDict(dict raw.Dictionary, key string) (string, bool) {
	if s, ok := valueFromDict(dict, key).(raw.String); ok {
		return raw.DecodeTextString(s.Value()), true
	}
	return "", false
}

func intFromObject(obj raw.Object) (int, bool) {
	if n, ok := obj.(raw.Number); ok {
		return int(n.Int()), true
	}
	return 0, false
}

func floatFromObject(obj raw.Object) (float64, bool) {
	if n, ok := obj.(raw.Number); ok {
		return n.Float(), true
	}
	return 0, false
}

func deref(doc *raw.Document, obj raw.Object) raw.Object {
	if ref, ok := obj.(raw.RefObj); ok {
		if resolved, ok := doc.Objects[ref.Ref()]; ok {
			return resolved
		}
	}
	return obj
}

func derefDict(doc *raw.Document, obj raw.Object) *raw.DictObj {
	if obj == nil {
		return nil
	}
	switch v := deref(doc, obj).(type) {
	case *raw.DictObj:
		return v
	case raw.Stream:
		if d, ok := v.Dictionary().(*raw.DictObj); ok {
			return d
		}
	}
	return nil
}

func derefArray(doc *raw.Document, obj raw.Object) *raw.ArrayObj {
	if obj == nil {
		return nil
	}
	if arr, ok := deref(doc, obj).(*raw.ArrayObj); ok {
		return arr
	}
	return nil
}

// contentStreams gathers the decoded content stream blobs for a page.
func (e *Extractor) contentStreams(page *raw.DictObj) [][]byte {
	return e.collectStreams(valueFromDict(page, "Contents"))
}

func (e *Extractor) collectStreams(obj raw.Object) [][]byte {
	switch v := obj.(type) {
	case raw.RefObj:
		if s, ok := e.dec.Streams[v.Ref()]; ok {
			return [][]byte{s.Data()}
		}
	case *raw.ArrayObj:
		var out [][]byte
		for _, item := range v.Items {
			out = append(out, e.collectStreams(item)...)
		}
		return out
	case raw.Stream:
		return [][]byte{v.RawData()}
	}
	return nil
}
