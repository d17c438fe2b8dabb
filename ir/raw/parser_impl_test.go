package raw

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wudi/pdfoutline/recovery"
)

const miniPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R /Outlines 4 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>
endobj
4 0 obj
<< /Type /Outlines /Count 0 >>
endobj
5 0 obj
<< /Title (Sample Document) /Author (Jane) /Keywords (alpha, beta) >>
endobj
trailer
<< /Root 1 0 R /Info 5 0 R /Size 6 >>
startxref
0
%%EOF`

func parseString(t *testing.T, data string) *Document {
	t.Helper()
	p := NewParser(ParserConfig{})
	doc, err := p.Parse(context.Background(), bytes.NewReader([]byte(data)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParser_MiniDocument(t *testing.T) {
	doc := parseString(t, miniPDF)

	if doc.Version != "1.4" {
		t.Fatalf("version: got %q", doc.Version)
	}
	if len(doc.Objects) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(doc.Objects))
	}

	root, ok := doc.Trailer.Get(NameLiteral("Root"))
	if !ok {
		t.Fatal("trailer has no Root")
	}
	ref, ok := root.(Reference)
	if !ok || ref.Ref() != (ObjectRef{Num: 1, Gen: 0}) {
		t.Fatalf("Root should be 1 0 R, got %v", root)
	}

	catalog, ok := doc.Objects[ObjectRef{Num: 1, Gen: 0}].(Dictionary)
	if !ok {
		t.Fatal("catalog missing")
	}
	if dictName(catalog, "Type") != "Catalog" {
		t.Fatalf("catalog type wrong")
	}

	pages := doc.Objects[ObjectRef{Num: 2, Gen: 0}].(Dictionary)
	kids, _ := pages.Get(NameLiteral("Kids"))
	arr, ok := kids.(Array)
	if !ok || arr.Len() != 1 {
		t.Fatalf("Kids should be a 1-element array, got %v", kids)
	}
}

func TestParser_Metadata(t *testing.T) {
	doc := parseString(t, miniPDF)
	if doc.Metadata.Title != "Sample Document" {
		t.Fatalf("title: got %q", doc.Metadata.Title)
	}
	if doc.Metadata.Author != "Jane" {
		t.Fatalf("author: got %q", doc.Metadata.Author)
	}
	if len(doc.Metadata.Keywords) != 2 || doc.Metadata.Keywords[1] != "beta" {
		t.Fatalf("keywords: got %v", doc.Metadata.Keywords)
	}
}

func TestParser_StreamObject(t *testing.T) {
	data := `1 0 obj
<< /Length 11 >>
stream
hello world
endstream
endobj`
	doc := parseString(t, data)
	obj, ok := doc.Objects[ObjectRef{Num: 1, Gen: 0}].(Stream)
	if !ok {
		t.Fatalf("expected a stream, got %T", doc.Objects[ObjectRef{Num: 1, Gen: 0}])
	}
	if string(obj.RawData()) != "hello world" {
		t.Fatalf("stream data: got %q", obj.RawData())
	}
	if n, _ := dictInt(obj.Dictionary(), "Length"); n != 11 {
		t.Fatalf("Length: got %d", n)
	}
}

func TestParser_EncryptedFlag(t *testing.T) {
	data := `1 0 obj
<< /Type /Catalog >>
endobj
trailer
<< /Root 1 0 R /Encrypt 9 0 R >>`
	doc := parseString(t, data)
	if !doc.Encrypted {
		t.Fatal("Encrypt in trailer should mark document encrypted")
	}
}

func TestParser_SynthesizedTrailerFromCatalog(t *testing.T) {
	// No trailer keyword at all: the sweep falls back to the catalog.
	data := `7 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj`
	doc := parseString(t, data)
	root, ok := doc.Trailer.Get(NameLiteral("Root"))
	if !ok {
		t.Fatal("expected synthesized Root")
	}
	if root.(Reference).Ref() != (ObjectRef{Num: 7, Gen: 0}) {
		t.Fatalf("Root should point at object 7, got %v", root)
	}
}

func TestParser_XRefStreamTrailer(t *testing.T) {
	data := `1 0 obj
<< /Type /Catalog >>
endobj
2 0 obj
<< /Type /XRef /Root 1 0 R /Size 3 /Length 1 >>
stream
x
endstream
endobj`
	doc := parseString(t, data)
	root, ok := doc.Trailer.Get(NameLiteral("Root"))
	if !ok {
		t.Fatal("XRef stream dictionary should supply Root")
	}
	if root.(Reference).Ref() != (ObjectRef{Num: 1, Gen: 0}) {
		t.Fatalf("Root: got %v", root)
	}
}

func TestParser_IncrementalTrailerMerge(t *testing.T) {
	data := `1 0 obj
<< /Type /Catalog >>
endobj
trailer
<< /Root 1 0 R /Size 2 >>
5 0 obj
<< /Title (Updated) >>
endobj
trailer
<< /Size 6 /Info 5 0 R /Prev 100 >>`
	doc := parseString(t, data)
	if n, _ := dictInt(doc.Trailer, "Size"); n != 6 {
		t.Fatalf("newer trailer should win Size, got %d", n)
	}
	if !hasKey(doc.Trailer, "Root") {
		t.Fatal("Root from the first trailer should survive the merge")
	}
	if doc.Metadata.Title != "Updated" {
		t.Fatalf("Info metadata: got %q", doc.Metadata.Title)
	}
}

func TestParser_LenientSkipsBrokenObject(t *testing.T) {
	data := `1 0 obj
<< /Broken [1 2 >>
endobj
2 0 obj
<< /Type /Catalog >>
endobj`
	strategy := recovery.NewLenientStrategy()
	p := NewParser(ParserConfig{Recovery: strategy})
	doc, err := p.Parse(context.Background(), bytes.NewReader([]byte(data)))
	if err != nil {
		t.Fatalf("lenient parse should survive: %v", err)
	}
	if _, ok := doc.Objects[ObjectRef{Num: 2, Gen: 0}]; !ok {
		t.Fatal("object after the broken one should still parse")
	}
	if len(strategy.Errors()) == 0 {
		t.Fatal("strategy should record the broken object")
	}
}

func TestParser_StrictFailsOnBrokenObject(t *testing.T) {
	data := `1 0 obj
<< /Broken [1 2 >>
endobj`
	p := NewParser(ParserConfig{Recovery: recovery.NewStrictStrategy()})
	if _, err := p.Parse(context.Background(), bytes.NewReader([]byte(data))); err == nil {
		t.Fatal("strict parse should fail")
	}
}

func TestDecodeTextString(t *testing.T) {
	utf16be := []byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i', 0x30, 0x42}
	if got := DecodeTextString(utf16be); got != "Hiあ" {
		t.Fatalf("utf16: got %q", got)
	}
	if got := DecodeTextString([]byte("plain")); got != "plain" {
		t.Fatalf("latin1: got %q", got)
	}
	if got := DecodeTextString([]byte{0xE9}); got != "é" {
		t.Fatalf("latin1 high byte: got %q", got)
	}
}

func TestParser_IgnoresXrefTableNoise(t *testing.T) {
	data := `1 0 obj
<< /Type /Catalog >>
endobj
xref
0 2
0000000000 65535 f
0000000009 00000 n
trailer
<< /Root 1 0 R /Size 2 >>`
	doc := parseString(t, data)
	if len(doc.Objects) != 1 {
		t.Fatalf("xref entries must not become objects, got %d", len(doc.Objects))
	}
	if !hasKey(doc.Trailer, "Root") {
		t.Fatal("trailer after xref table should parse")
	}
}

func TestParser_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewParser(ParserConfig{})
	if _, err := p.Parse(ctx, strings.NewReader(miniPDF)); err == nil {
		t.Fatal("cancelled context should abort the parse")
	}
}
