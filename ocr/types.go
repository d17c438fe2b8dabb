// Package ocr defines the OCR provider contract used for scanned
// pages, plus helpers for feeding PDF image assets to an engine.
package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region is a rectangle in pixel coordinates, origin top-left.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a single image submitted for recognition.
type Input struct {
	// ID is echoed back in the Result for correlation.
	ID string
	// Image holds the encoded payload in Format.
	Image  []byte
	Format ImageFormat
	// PageIndex is the zero-based PDF page the image came from.
	PageIndex int
	// DPI is the effective resolution; zero means unknown.
	DPI int
	// Languages holds tessdata-style hints such as "eng" or "jpn".
	Languages []string
	// Metadata passes engine-specific variables through untouched.
	Metadata map[string]string
}

// TextWord is one recognized token.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words sharing a baseline. Bounds.Height doubles as a
// font-size proxy for layout analysis of scanned pages.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// Result is the recognition output for one input.
type Result struct {
	InputID    string
	PlainText  string
	Lines      []TextLine
	Language   string
	Confidence float64
}

// Engine is the minimal OCR provider contract.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine amortizes per-client setup across many inputs.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
