package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdfoutline/ir/raw"
)

// Decoder turns one encoded stream payload into its decoded form.
type Decoder interface {
	Name() string
	Decode(input []byte, params raw.Dictionary) ([]byte, error)
}

// Limits bound how much a hostile stream may expand.
type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// Pipeline applies a filter chain in order. PDF allows stacking, e.g.
// [/ASCII85Decode /FlateDecode].
type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

func NewPipeline(limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder), limits: limits}
	for _, d := range []Decoder{
		flateDecoder{limits: limits},
		lzwDecoder{limits: limits},
		asciiHexDecoder{},
		ascii85Decoder{},
		runLengthDecoder{},
		passthroughDecoder{name: "DCTDecode"},
		passthroughDecoder{name: "JPXDecode"},
		passthroughDecoder{name: "CCITTFaxDecode"},
		passthroughDecoder{name: "JBIG2Decode"},
	} {
		p.Register(d)
	}
	return p
}

func (p *Pipeline) Register(d Decoder) { p.decoders[d.Name()] = d }

func (p *Pipeline) Decode(input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error) {
	data := input
	for i, name := range filterNames {
		dec, ok := p.decoders[normalizeFilterName(name)]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
		var param raw.Dictionary
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dec.Name(), err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, fmt.Errorf("%s: decompressed size %d exceeds limit", dec.Name(), len(out))
		}
		data = out
	}
	return data, nil
}

// DecodeStream is the common case: read Filter/DecodeParms off the stream
// dictionary and run the chain.
func (p *Pipeline) DecodeStream(s raw.Stream) ([]byte, error) {
	names, params := ExtractFilters(s.Dictionary())
	return p.Decode(s.RawData(), names, params)
}

// Writers still emit the PDF 1.1 abbreviated names inside inline images.
func normalizeFilterName(name string) string {
	switch name {
	case "Fl":
		return "FlateDecode"
	case "LZW":
		return "LZWDecode"
	case "AHx":
		return "ASCIIHexDecode"
	case "A85":
		return "ASCII85Decode"
	case "RL":
		return "RunLengthDecode"
	case "DCT":
		return "DCTDecode"
	case "CCF":
		return "CCITTFaxDecode"
	}
	return name
}

type flateDecoder struct{ limits Limits }

func (flateDecoder) Name() string { return "FlateDecode" }

func (d flateDecoder) Decode(in []byte, params raw.Dictionary) ([]byte, error) {
	out, err := inflate(in, d.limits.MaxDecompressedSize)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

// inflate tries zlib first, then raw deflate. Some producers omit the
// zlib header even though FlateDecode requires it.
func inflate(in []byte, limit int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		fr := flate.NewReader(bytes.NewReader(in))
		defer fr.Close()
		return readCapped(fr, limit)
	}
	defer r.Close()
	out, err := readCapped(r, limit)
	if err != nil && len(out) > 0 {
		// Truncated streams still carry usable leading data.
		return out, nil
	}
	return out, err
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	var out bytes.Buffer
	if limit > 0 {
		n, err := io.Copy(&out, io.LimitReader(r, limit+1))
		if err != nil {
			return out.Bytes(), err
		}
		if n > limit {
			return nil, errors.New("decompressed size exceeds limit")
		}
		return out.Bytes(), nil
	}
	if _, err := io.Copy(&out, r); err != nil {
		return out.Bytes(), err
	}
	return out.Bytes(), nil
}

type lzwDecoder struct{ limits Limits }

func (lzwDecoder) Name() string { return "LZWDecode" }

func (d lzwDecoder) Decode(in []byte, params raw.Dictionary) ([]byte, error) {
	// EarlyChange 1 (the default) matches the TIFF variant the standard
	// library implements.
	if ec, ok := paramInt(params, "EarlyChange"); ok && ec == 0 {
		return nil, errors.New("EarlyChange 0 is not supported")
	}
	r := lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	defer r.Close()
	out, err := readCapped(r, d.limits.MaxDecompressedSize)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(in []byte, _ raw.Dictionary) ([]byte, error) {
	compact := make([]byte, 0, len(in))
	for _, c := range in {
		if c == '>' {
			break
		}
		if isHexWhitespace(c) {
			continue
		}
		compact = append(compact, c)
	}
	if len(compact)%2 == 1 {
		compact = append(compact, '0')
	}
	out := make([]byte, hex.DecodedLen(len(compact)))
	n, err := hex.Decode(out, compact)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func isHexWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(in []byte, _ raw.Dictionary) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	trimmed = bytes.TrimSuffix(trimmed, []byte("~>"))
	out := make([]byte, len(trimmed)*4/5+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(in []byte, _ raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(in); {
		length := in[i]
		i++
		switch {
		case length == 128:
			return out.Bytes(), nil
		case length < 128:
			n := int(length) + 1
			if i+n > len(in) {
				return nil, errors.New("literal run past end of data")
			}
			out.Write(in[i : i+n])
			i += n
		default:
			if i >= len(in) {
				return nil, errors.New("replicated run past end of data")
			}
			n := 257 - int(length)
			for j := 0; j < n; j++ {
				out.WriteByte(in[i])
			}
			i++
		}
	}
	return out.Bytes(), nil
}

// passthroughDecoder hands image codecs through untouched. The image
// consumers only need the compressed bytes and the dictionary geometry.
type passthroughDecoder struct{ name string }

func (p passthroughDecoder) Name() string { return p.name }
func (p passthroughDecoder) Decode(in []byte, _ raw.Dictionary) ([]byte, error) {
	return in, nil
}

func paramInt(params raw.Dictionary, key string) (int64, bool) {
	if params == nil {
		return 0, false
	}
	v, ok := params.Get(raw.NameLiteral(key))
	if !ok {
		return 0, false
	}
	n, ok := v.(raw.Number)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}
