package ocr

import (
	"context"
	"fmt"

	"github.com/wudi/pdfoutline/extractor"
)

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the registered default engine. Importing the
// tesseract subpackage replaces the initial no-op.
func DefaultEngine() Engine { return defaultEngine }

func SetDefaultEngine(engine Engine) { defaultEngine = engine }

// RecognizeAssets converts assets to inputs and runs the engine,
// batching when supported.
func RecognizeAssets(ctx context.Context, engine Engine, assets []extractor.ImageAsset, opts ...InputOption) ([]Result, error) {
	inputs := make([]Input, 0, len(assets))
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in, err := InputFromImageAsset(asset, opts...)
		if err != nil {
			return nil, fmt.Errorf("build input for %s: %w", asset.ResourceName, err)
		}
		inputs = append(inputs, in)
	}
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }
func (noopEngine) Recognize(_ context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
