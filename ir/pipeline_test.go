package ir

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"testing"

	"github.com/wudi/pdfoutline/ir/raw"
)

func buildPDF(t *testing.T, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	compressed := buf.Bytes()

	var pdf bytes.Buffer
	pdf.WriteString("%PDF-1.5\n")
	pdf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	pdf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	pdf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>\nendobj\n")
	fmt.Fprintf(&pdf, "4 0 obj\n<< /Filter /FlateDecode /Length %d >>\nstream\n", len(compressed))
	pdf.Write(compressed)
	pdf.WriteString("\nendstream\nendobj\n")
	pdf.WriteString("trailer\n<< /Root 1 0 R /Size 5 >>\n%%EOF")
	return pdf.Bytes()
}

func TestPipeline_EndToEnd(t *testing.T) {
	body := []byte("BT /F1 12 Tf (Hello) Tj ET")
	data := buildPDF(t, body)

	doc, err := NewPipeline().Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Raw.Version != "1.5" {
		t.Fatalf("version: %q", doc.Raw.Version)
	}
	if doc.Encrypted {
		t.Fatal("document should not be encrypted")
	}
	s, ok := doc.Streams[raw.ObjectRef{Num: 4, Gen: 0}]
	if !ok {
		t.Fatal("content stream missing")
	}
	if !bytes.Equal(s.Data(), body) {
		t.Fatalf("content: got %q", s.Data())
	}
	if !doc.Permissions.Copy {
		t.Fatal("unencrypted documents allow extraction")
	}
}

func TestPipeline_GarbageInput(t *testing.T) {
	_, err := NewPipeline().Parse(context.Background(), bytes.NewReader([]byte("this is not a pdf at all")))
	// The lenient default produces an empty document rather than failing.
	if err != nil {
		t.Fatalf("lenient parse of garbage should not error: %v", err)
	}
}
