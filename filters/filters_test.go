package filters

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/wudi/pdfoutline/ir/raw"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPipeline_Flate(t *testing.T) {
	p := NewPipeline(Limits{})
	want := []byte("some content stream data BT /F1 12 Tf ET")
	got, err := p.Decode(deflate(t, want), []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestPipeline_FlateSizeLimit(t *testing.T) {
	p := NewPipeline(Limits{MaxDecompressedSize: 8})
	if _, err := p.Decode(deflate(t, bytes.Repeat([]byte("A"), 1024)), []string{"FlateDecode"}, nil); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestPipeline_ASCIIHex(t *testing.T) {
	p := NewPipeline(Limits{})
	got, err := p.Decode([]byte("48 65 6C 6C 6F>"), []string{"ASCIIHexDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "Hello" {
		t.Fatalf("got %q", got)
	}
}

func TestPipeline_ASCII85(t *testing.T) {
	p := NewPipeline(Limits{})
	got, err := p.Decode([]byte("87cURD]j7BEbo7~>"), []string{"ASCII85Decode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "Hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestPipeline_RunLength(t *testing.T) {
	p := NewPipeline(Limits{})
	// literal "ab", then 'c' replicated 4 times, then EOD
	in := []byte{1, 'a', 'b', 253, 'c', 128}
	got, err := p.Decode(in, []string{"RunLengthDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "abcccc" {
		t.Fatalf("got %q", got)
	}
}

func TestPipeline_Chained(t *testing.T) {
	p := NewPipeline(Limits{})
	want := []byte("chained payload")
	compressed := deflate(t, want)
	hexed := make([]byte, 0, len(compressed)*2)
	const digits = "0123456789ABCDEF"
	for _, b := range compressed {
		hexed = append(hexed, digits[b>>4], digits[b&0xF])
	}
	hexed = append(hexed, '>')
	got, err := p.Decode(hexed, []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestPipeline_AbbreviatedNames(t *testing.T) {
	p := NewPipeline(Limits{})
	got, err := p.Decode([]byte("4869>"), []string{"AHx"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "Hi" {
		t.Fatalf("got %q", got)
	}
}

func TestPipeline_UnknownFilter(t *testing.T) {
	p := NewPipeline(Limits{})
	if _, err := p.Decode([]byte("x"), []string{"NoSuchDecode"}, nil); err == nil {
		t.Fatal("expected unknown filter error")
	}
}

func TestPipeline_DCTPassthrough(t *testing.T) {
	p := NewPipeline(Limits{})
	in := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	got, err := p.Decode(in, []string{"DCTDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, in) {
		t.Fatal("DCT data must pass through untouched")
	}
}

func TestPredictor_PNGUp(t *testing.T) {
	// two rows of 3 bytes, Up filter on the second
	data := []byte{
		0, 10, 20, 30,
		2, 1, 1, 1,
	}
	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(12))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(3))
	got, err := applyPredictor(data, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	want := []byte{10, 20, 30, 11, 21, 31}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPredictor_PNGSub(t *testing.T) {
	data := []byte{1, 5, 3, 2}
	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(11))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(3))
	got, err := applyPredictor(data, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	want := []byte{5, 8, 10}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPredictor_TIFF(t *testing.T) {
	data := []byte{5, 3, 2}
	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(2))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(3))
	got, err := applyPredictor(data, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	want := []byte{5, 8, 10}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractFilters(t *testing.T) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	names, params := ExtractFilters(dict)
	if len(names) != 1 || names[0] != "FlateDecode" || len(params) != 0 {
		t.Fatalf("single name: got %v %v", names, params)
	}

	dict = raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NewArray(raw.NameLiteral("ASCII85Decode"), raw.NameLiteral("FlateDecode")))
	parms := raw.Dict()
	parms.Set(raw.NameLiteral("Predictor"), raw.NumberInt(12))
	dict.Set(raw.NameLiteral("DecodeParms"), raw.NewArray(raw.NullObj{}, parms))
	names, params = ExtractFilters(dict)
	if len(names) != 2 || names[1] != "FlateDecode" {
		t.Fatalf("array names: got %v", names)
	}
	if len(params) != 2 || params[0] != nil || params[1] == nil {
		t.Fatalf("aligned params: got %v", params)
	}

	// /F on a stream dictionary is the external file spec, never a
	// filter abbreviation.
	dict = raw.Dict()
	dict.Set(raw.NameLiteral("F"), raw.NameLiteral("FlateDecode"))
	names, params = ExtractFilters(dict)
	if len(names) != 0 || len(params) != 0 {
		t.Fatalf("external file key misread as filter: %v %v", names, params)
	}
}

func TestDecodeStream(t *testing.T) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	want := []byte("stream body")
	s := raw.NewStream(dict, deflate(t, want))
	p := NewPipeline(Limits{})
	got, err := p.DecodeStream(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q", got)
	}
}
