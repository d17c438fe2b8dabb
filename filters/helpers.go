package filters

import "github.com/wudi/pdfoutline/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary. Both may be a single value or an array; DecodeParms
// positions align with the filter array. The abbreviated /F and /DP
// keys are an inline-image convention and are not read here: on an
// ordinary stream dictionary /F is the external file specification.
func ExtractFilters(dict raw.Dictionary) ([]string, []raw.Dictionary) {
	var names []string
	var params []raw.Dictionary
	if dict == nil {
		return names, params
	}

	filterObj, ok := dict.Get(raw.NameLiteral("Filter"))
	if !ok {
		return names, params
	}

	switch f := filterObj.(type) {
	case raw.Name:
		names = append(names, f.Value())
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return names, params
	}

	if parmsObj, ok := dict.Get(raw.NameLiteral("DecodeParms")); ok {
		switch p := parmsObj.(type) {
		case raw.Dictionary:
			params = append(params, p)
		case *raw.ArrayObj:
			for _, item := range p.Items {
				if d, ok := item.(raw.Dictionary); ok {
					params = append(params, d)
				} else {
					params = append(params, nil)
				}
			}
		}
	}
	return names, params
}
