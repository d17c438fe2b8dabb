package extractor

import (
	"strings"

	"github.com/wudi/pdfoutline/ir/raw"
)

// fontMetrics carries what heading classification needs from a font
// dictionary: a ToUnicode decoder and whether the face is bold.
type fontMetrics struct {
	baseFont string
	bold     bool
	cmap     *toUnicodeMap
}

const forceBoldFlag = 1 << 18 // FontDescriptor /Flags bit 19

func (e *Extractor) fontsForPage(page *raw.DictObj) map[string]*fontMetrics {
	resources := derefDict(e.raw, valueFromDict(page, "Resources"))
	if resources == nil {
		return nil
	}
	fontDict := derefDict(e.raw, valueFromDict(resources, "Font"))
	if fontDict == nil {
		return nil
	}
	out := make(map[string]*fontMetrics, fontDict.Len())
	for name, obj := range fontDict.KV {
		if fm := e.fontMetricsFor(obj); fm != nil {
			out[name] = fm
		}
	}
	return out
}

func (e *Extractor) fontMetricsFor(obj raw.Object) *fontMetrics {
	if ref, ok := obj.(raw.RefObj); ok {
		if e.fontCache == nil {
			e.fontCache = make(map[raw.ObjectRef]*fontMetrics)
		}
		if cached, ok := e.fontCache[ref.Ref()]; ok {
			return cached
		}
		fm := e.buildFontMetrics(obj)
		e.fontCache[ref.Ref()] = fm
		return fm
	}
	return e.buildFontMetrics(obj)
}

func (e *Extractor) buildFontMetrics(obj raw.Object) *fontMetrics {
	dict := derefDict(e.raw, obj)
	if dict == nil {
		return nil
	}
	fm := &fontMetrics{}
	fm.baseFont, _ = nameFromDict(dict, "BaseFont")
	fm.bold = boldFromName(fm.baseFont)

	descriptor := derefDict(e.raw, valueFromDict(dict, "FontDescriptor"))
	if descriptor == nil {
		// Type0 fonts keep the descriptor on the descendant.
		if desc := derefArray(e.raw, valueFromDict(dict, "DescendantFonts")); desc != nil && desc.Len() > 0 {
			item, _ := desc.Get(0)
			if child := derefDict(e.raw, item); child != nil {
				descriptor = derefDict(e.raw, valueFromDict(child, "FontDescriptor"))
				if fm.baseFont == "" {
					fm.baseFont, _ = nameFromDict(child, "BaseFont")
					fm.bold = boldFromName(fm.baseFont)
				}
			}
		}
	}
	if descriptor != nil {
		if flags, ok := intFromObject(valueFromDict(descriptor, "Flags")); ok && flags&forceBoldFlag != 0 {
			fm.bold = true
		}
		if stemV, ok := floatFromObject(valueFromDict(descriptor, "StemV")); ok && stemV > 120 {
			fm.bold = true
		}
	}

	if cmapObj := valueFromDict(dict, "ToUnicode"); cmapObj != nil {
		if ref, ok := cmapObj.(raw.RefObj); ok {
			if s, found := e.dec.Streams[ref.Ref()]; found {
				fm.cmap = parseToUnicodeCMap(s.Data())
			}
		}
	}
	return fm
}

func boldFromName(baseFont string) bool {
	l := strings.ToLower(baseFont)
	return strings.Contains(l, "bold") ||
		strings.Contains(l, "black") ||
		strings.Contains(l, "heavy")
}
