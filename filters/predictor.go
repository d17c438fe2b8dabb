package filters

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfoutline/ir/raw"
)

// applyPredictor undoes the row predictor declared in DecodeParms.
// Predictor 2 is TIFF horizontal differencing; 10-15 are the PNG row
// filters (the per-row tag selects the actual filter, the declared
// value only says "PNG").
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	pred, ok := paramInt(params, "Predictor")
	if !ok || pred <= 1 {
		return data, nil
	}
	colors := int64(1)
	if v, ok := paramInt(params, "Colors"); ok {
		colors = v
	}
	bpc := int64(8)
	if v, ok := paramInt(params, "BitsPerComponent"); ok {
		bpc = v
	}
	columns := int64(1)
	if v, ok := paramInt(params, "Columns"); ok {
		columns = v
	}
	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((colors*bpc*columns + 7) / 8)
	if bpp <= 0 || rowLen <= 0 {
		return nil, fmt.Errorf("bad predictor geometry: colors=%d bpc=%d columns=%d", colors, bpc, columns)
	}

	if pred == 2 {
		return tiffPredictor(data, bpp, rowLen)
	}
	if pred >= 10 && pred <= 15 {
		return pngPredictor(data, bpp, rowLen)
	}
	return nil, fmt.Errorf("unsupported predictor %d", pred)
}

func tiffPredictor(data []byte, bpp, rowLen int) ([]byte, error) {
	if len(data)%rowLen != 0 {
		return nil, errors.New("data is not a whole number of rows")
	}
	out := append([]byte(nil), data...)
	for row := 0; row < len(out); row += rowLen {
		for i := bpp; i < rowLen; i++ {
			out[row+i] += out[row+i-bpp]
		}
	}
	return out, nil
}

func pngPredictor(data []byte, bpp, rowLen int) ([]byte, error) {
	stride := rowLen + 1 // each row is prefixed with its filter tag
	if len(data)%stride != 0 {
		return nil, errors.New("data is not a whole number of tagged rows")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		tag := data[r*stride]
		copy(cur, data[r*stride+1:(r+1)*stride])
		switch tag {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG filter tag %d", tag)
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
