package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/wudi/pdfoutline/extractor"
)

// InputOption mutates an OCR input built from a PDF image asset.
type InputOption func(*Input)

func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// minRecognitionWidth is the pixel width below which low-resolution
// scans get upscaled before recognition.
const minRecognitionWidth = 1200

// InputFromImageAsset converts an image asset into an OCR input. The
// ID is stable per page and resource name so results correlate back.
func InputFromImageAsset(asset extractor.ImageAsset, opts ...InputOption) (Input, error) {
	data, err := asset.ToPNG()
	if err != nil {
		return Input{}, fmt.Errorf("encode image asset: %w", err)
	}
	if asset.Width > 0 && asset.Width < minRecognitionWidth {
		if scaled, err := upscalePNG(data, minRecognitionWidth); err == nil {
			data = scaled
		}
	}
	in := Input{
		ID:        fmt.Sprintf("page-%d-%s", asset.Page, asset.ResourceName),
		Image:     data,
		Format:    ImageFormatPNG,
		PageIndex: asset.Page,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

// upscalePNG resizes to the target width with Catmull-Rom resampling,
// preserving aspect ratio.
func upscalePNG(data []byte, targetWidth int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dx() >= targetWidth {
		return data, nil
	}
	targetHeight := b.Dy() * targetWidth / b.Dx()
	dst := image.NewGray(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
