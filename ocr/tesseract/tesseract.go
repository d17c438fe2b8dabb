// Package tesseract provides the gosseract-backed OCR engine.
// Importing it registers the engine as the package default.
package tesseract

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdfoutline/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine())
}

// Engine implements ocr.Engine and ocr.BatchEngine on top of the
// gosseract client.
type Engine struct {
	clientFactory func() *gosseract.Client
}

func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	c := e.clientFactory()
	defer c.Close()
	return e.recognize(ctx, c, in)
}

// RecognizeBatch reuses one client per input but keeps a single call
// site for configuration.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := e.clientFactory()
		res, err := e.recognize(ctx, c, in)
		c.Close()
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recognize(_ context.Context, c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)
	lines, conf := extractLines(c)

	return ocr.Result{
		InputID:    in.ID,
		PlainText:  plain,
		Lines:      lines,
		Language:   firstLanguage(in.Languages),
		Confidence: conf,
	}, nil
}

// extractLines pulls line-level boxes so scanned pages keep positional
// information for heading analysis.
func extractLines(c *gosseract.Client) ([]ocr.TextLine, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	lines := make([]ocr.TextLine, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		sum += conf
		lines = append(lines, ocr.TextLine{
			Text: text,
			Bounds: ocr.Region{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Confidence: conf,
		})
	}
	if len(lines) == 0 {
		return nil, 0
	}
	return lines, math.Round(sum/float64(len(lines))*100) / 100
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
