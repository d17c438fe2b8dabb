package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/wudi/pdfoutline/extractor"
)

func grayAsset(w, h int) extractor.ImageAsset {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = byte(i)
	}
	return extractor.ImageAsset{Page: 3, ResourceName: "Im1", Width: w, Height: h,
		BitsPerComponent: 8, ColorSpace: "DeviceGray", Data: data}
}

func TestInputFromImageAsset(t *testing.T) {
	in, err := InputFromImageAsset(grayAsset(1600, 2000), WithLanguages("eng", "deu"), WithDPI(300))
	if err != nil {
		t.Fatalf("build input: %v", err)
	}
	if in.ID != "page-3-Im1" {
		t.Fatalf("id: got %q", in.ID)
	}
	if in.Format != ImageFormatPNG || !bytes.HasPrefix(in.Image, []byte("\x89PNG")) {
		t.Fatal("input should be PNG encoded")
	}
	if in.PageIndex != 3 || in.DPI != 300 {
		t.Fatalf("metadata: %+v", in)
	}
	if len(in.Languages) != 2 || in.Languages[0] != "eng" {
		t.Fatalf("languages: %v", in.Languages)
	}
}

func TestInputFromImageAsset_UpscalesSmallImages(t *testing.T) {
	in, err := InputFromImageAsset(grayAsset(300, 400))
	if err != nil {
		t.Fatalf("build input: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != minRecognitionWidth {
		t.Fatalf("width after upscale: got %d", img.Bounds().Dx())
	}
	// Aspect ratio preserved.
	if got := img.Bounds().Dy(); got != 400*minRecognitionWidth/300 {
		t.Fatalf("height after upscale: got %d", got)
	}
}

func TestUpscalePNG_LeavesLargeImagesAlone(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2000, 100))); err != nil {
		t.Fatal(err)
	}
	out, err := upscalePNG(buf.Bytes(), minRecognitionWidth)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, buf.Bytes()) {
		t.Fatal("images at or above the target width must pass through")
	}
}

type fakeEngine struct {
	calls []Input
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Recognize(_ context.Context, in Input) (Result, error) {
	f.calls = append(f.calls, in)
	return Result{InputID: in.ID, PlainText: "recognized"}, nil
}

func TestRecognizeAssets(t *testing.T) {
	engine := &fakeEngine{}
	assets := []extractor.ImageAsset{grayAsset(1600, 2000), grayAsset(1600, 2000)}
	results, err := RecognizeAssets(context.Background(), engine, assets)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(results) != 2 || results[0].PlainText != "recognized" {
		t.Fatalf("results: %+v", results)
	}
	if len(engine.calls) != 2 {
		t.Fatalf("engine calls: got %d", len(engine.calls))
	}
}

func TestDefaultEngineIsNoop(t *testing.T) {
	res, err := DefaultEngine().Recognize(context.Background(), Input{ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if res.InputID != "x" || res.PlainText != "" {
		t.Fatalf("noop result: %+v", res)
	}
}
