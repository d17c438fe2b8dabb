package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/wudi/pdfoutline/ir/raw"
)

// ImageAsset is an image XObject found on a page.
type ImageAsset struct {
	Page             int
	ResourceName     string
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	Filters          []string
	Data             []byte
}

// ExtractImages walks every page's XObject resources.
func (e *Extractor) ExtractImages() []ImageAsset {
	var assets []ImageAsset
	for idx := range e.pages {
		assets = append(assets, e.PageImages(idx)...)
	}
	return assets
}

// PageImages returns the image XObjects referenced by one page.
func (e *Extractor) PageImages(pageIdx int) []ImageAsset {
	if pageIdx < 0 || pageIdx >= len(e.pages) {
		return nil
	}
	resources := derefDict(e.raw, valueFromDict(e.pages[pageIdx], "Resources"))
	if resources == nil {
		return nil
	}
	xobjects := derefDict(e.raw, valueFromDict(resources, "XObject"))
	if xobjects == nil {
		return nil
	}
	var assets []ImageAsset
	for name, obj := range xobjects.KV {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			continue
		}
		stream, ok := e.dec.Streams[ref.Ref()]
		if !ok {
			continue
		}
		dict := stream.Dictionary()
		if subtype, _ := nameFromDict(dict, "Subtype"); subtype != "Image" {
			continue
		}
		width, _ := intFromObject(valueFromDict(dict, "Width"))
		height, _ := intFromObject(valueFromDict(dict, "Height"))
		bpc, _ := intFromObject(valueFromDict(dict, "BitsPerComponent"))
		cs := colorSpaceName(e.raw, valueFromDict(dict, "ColorSpace"))
		assets = append(assets, ImageAsset{
			Page:             pageIdx,
			ResourceName:     name,
			Width:            width,
			Height:           height,
			BitsPerComponent: bpc,
			ColorSpace:       cs,
			Filters:          stream.Filters(),
			Data:             stream.Data(),
		})
	}
	return assets
}

func colorSpaceName(doc *raw.Document, obj raw.Object) string {
	switch v := deref(doc, obj).(type) {
	case raw.Name:
		return v.Value()
	case *raw.ArrayObj:
		if v.Len() > 0 {
			item, _ := v.Get(0)
			if n, ok := item.(raw.Name); ok {
				return n.Value()
			}
		}
	}
	return ""
}

// CoversPage reports whether the image plausibly spans the whole page,
// which is how scanned documents embed their page captures.
func (i ImageAsset) CoversPage(pageWidth, pageHeight float64) bool {
	if i.Width <= 0 || i.Height <= 0 || pageWidth <= 0 || pageHeight <= 0 {
		return false
	}
	imgAspect := float64(i.Width) / float64(i.Height)
	pageAspect := pageWidth / pageHeight
	ratio := imgAspect / pageAspect
	if ratio < 0.8 || ratio > 1.25 {
		return false
	}
	// Scans come in at or above typical render resolution.
	return float64(i.Width) >= pageWidth && float64(i.Height) >= pageHeight
}

// ToImage converts the decoded samples into an image.Image. DCT data
// passes through the filters untouched, so it is decoded here.
func (i ImageAsset) ToImage() (image.Image, error) {
	if len(i.Data) == 0 {
		return nil, errors.New("image data is empty")
	}
	for _, f := range i.Filters {
		switch f {
		case "DCTDecode", "DCT":
			return jpeg.Decode(bytes.NewReader(i.Data))
		case "JPXDecode":
			return nil, errors.New("JPEG 2000 images are not supported")
		}
	}

	pixels := i.Width * i.Height
	if pixels <= 0 {
		return nil, errors.New("invalid image dimensions")
	}
	rect := image.Rect(0, 0, i.Width, i.Height)
	switch {
	case i.BitsPerComponent == 1 && len(i.Data) >= (i.Width+7)/8*i.Height:
		return &bilevelImage{Pix: i.Data, Stride: (i.Width + 7) / 8, Rect: rect}, nil
	case len(i.Data) >= pixels*3 && i.ColorSpace != "DeviceCMYK":
		return &rgbImage{Pix: i.Data, Stride: i.Width * 3, Rect: rect}, nil
	case len(i.Data) >= pixels*4 && i.ColorSpace == "DeviceCMYK":
		return &image.CMYK{Pix: i.Data[:pixels*4], Stride: i.Width * 4, Rect: rect}, nil
	case len(i.Data) >= pixels:
		return &image.Gray{Pix: i.Data[:pixels], Stride: i.Width, Rect: rect}, nil
	}
	return nil, fmt.Errorf("unsupported sample layout: %d bytes for %dx%d at %d bpc",
		len(i.Data), i.Width, i.Height, i.BitsPerComponent)
}

// ToPNG renders the asset as a PNG, the interchange format the OCR
// engine consumes.
func (i ImageAsset) ToPNG() ([]byte, error) {
	img, err := i.ToImage()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type rgbImage struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func (p *rgbImage) ColorModel() color.Model { return color.RGBAModel }
func (p *rgbImage) Bounds() image.Rectangle { return p.Rect }
func (p *rgbImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 255}
}

// bilevelImage reads 1-bit samples, 0 = black per DeviceGray.
type bilevelImage struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func (p *bilevelImage) ColorModel() color.Model { return color.GrayModel }
func (p *bilevelImage) Bounds() image.Rectangle { return p.Rect }
func (p *bilevelImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.Gray{}
	}
	byteIdx := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)/8
	bit := byte(0x80) >> uint((x-p.Rect.Min.X)%8)
	if p.Pix[byteIdx]&bit != 0 {
		return color.Gray{Y: 255}
	}
	return color.Gray{Y: 0}
}
