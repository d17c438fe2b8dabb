package extractor

import "github.com/wudi/pdfoutline/ir/raw"

// Bookmark is one entry of the document outline tree. Page is a
// zero-based index, -1 when the destination does not resolve.
type Bookmark struct {
	Title    string
	Page     int
	Children []Bookmark
}

// TOCEntry is a flattened bookmark with its nesting depth.
type TOCEntry struct {
	Title string
	Page  int
	Label string
	Depth int
}

// ExtractBookmarks walks the outline tree from the catalog.
func (e *Extractor) ExtractBookmarks() []Bookmark {
	outlines := derefDict(e.raw, valueFromDict(e.catalog, "Outlines"))
	if outlines == nil {
		return nil
	}
	seen := make(map[*raw.DictObj]bool)
	return e.outlineBranch(valueFromDict(outlines, "First"), seen)
}

// ExtractTableOfContents flattens the bookmark tree depth-first.
func (e *Extractor) ExtractTableOfContents() []TOCEntry {
	var entries []TOCEntry
	var walk func(items []Bookmark, depth int)
	walk = func(items []Bookmark, depth int) {
		for _, item := range items {
			label := ""
			if item.Page >= 0 {
				label = e.pageLabels[item.Page]
			}
			entries = append(entries, TOCEntry{Title: item.Title, Page: item.Page, Label: label, Depth: depth})
			walk(item.Children, depth+1)
		}
	}
	walk(e.ExtractBookmarks(), 0)
	return entries
}

func (e *Extractor) outlineBranch(obj raw.Object, seen map[*raw.DictObj]bool) []Bookmark {
	var list []Bookmark
	for obj != nil {
		dict := derefDict(e.raw, obj)
		if dict == nil || seen[dict] {
			break
		}
		seen[dict] = true
		title := ""
		if s, ok := valueFromDict(dict, "Title").(raw.String); ok {
			title = raw.DecodeTextString(s.Value())
		}
		page := e.resolveDestPage(valueFromDict(dict, "Dest"))
		if page < 0 {
			page = e.resolveActionDest(valueFromDict(dict, "A"))
		}
		if page < 0 {
			page = e.resolveNamedDest(valueFromDict(dict, "Dest"))
		}
		bm := Bookmark{Title: title, Page: page}
		bm.Children = e.outlineBranch(valueFromDict(dict, "First"), seen)
		list = append(list, bm)
		obj = valueFromDict(dict, "Next")
	}
	return list
}

func (e *Extractor) resolveDestPage(obj raw.Object) int {
	if obj == nil {
		return -1
	}
	switch v := obj.(type) {
	case raw.RefObj:
		return e.indexOfPage(derefDict(e.raw, v))
	case *raw.ArrayObj:
		if v.Len() == 0 {
			return -1
		}
		first, _ := v.Get(0)
		// Explicit destination: [page /XYZ left top zoom]
		if n, ok := first.(raw.Number); ok {
			// Remote destinations index pages directly.
			idx := int(n.Int())
			if idx >= 0 && idx < len(e.pages) {
				return idx
			}
			return -1
		}
		return e.resolveDestPage(first)
	}
	return e.indexOfPage(derefDict(e.raw, obj))
}

func (e *Extractor) resolveActionDest(obj raw.Object) int {
	action := derefDict(e.raw, obj)
	if action == nil {
		return -1
	}
	if typ, ok := nameFromDict(action, "S"); !ok || typ != "GoTo" {
		return -1
	}
	d := valueFromDict(action, "D")
	if page := e.resolveDestPage(d); page >= 0 {
		return page
	}
	return e.resolveNamedDest(d)
}

// resolveNamedDest looks up string/name destinations in the catalog's
// Dests dictionary and the /Names name tree.
func (e *Extractor) resolveNamedDest(obj raw.Object) int {
	var key string
	switch v := deref(e.raw, obj).(type) {
	case raw.Name:
		key = v.Value()
	case raw.String:
		key = string(v.Value())
	default:
		return -1
	}

	if dests := derefDict(e.raw, valueFromDict(e.catalog, "Dests")); dests != nil {
		if target, ok := dests.Get(raw.NameLiteral(key)); ok {
			return e.destTarget(target)
		}
	}
	if names := derefDict(e.raw, valueFromDict(e.catalog, "Names")); names != nil {
		if found := e.searchNameTree(valueFromDict(names, "Dests"), key, 0); found != nil {
			return e.destTarget(found)
		}
	}
	return -1
}

func (e *Extractor) destTarget(obj raw.Object) int {
	if d := derefDict(e.raw, obj); d != nil {
		if inner := valueFromDict(d, "D"); inner != nil {
			return e.resolveDestPage(inner)
		}
	}
	return e.resolveDestPage(obj)
}

func (e *Extractor) searchNameTree(obj raw.Object, key string, depth int) raw.Object {
	if depth > 32 {
		return nil
	}
	node := derefDict(e.raw, obj)
	if node == nil {
		return nil
	}
	if names := derefArray(e.raw, valueFromDict(node, "Names")); names != nil {
		for i := 0; i+1 < len(names.Items); i += 2 {
			if s, ok := deref(e.raw, names.Items[i]).(raw.String); ok && string(s.Value()) == key {
				return names.Items[i+1]
			}
		}
	}
	if kids := derefArray(e.raw, valueFromDict(node, "Kids")); kids != nil {
		for _, kid := range kids.Items {
			if found := e.searchNameTree(kid, key, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

func (e *Extractor) indexOfPage(target *raw.DictObj) int {
	if target == nil {
		return -1
	}
	for idx, page := range e.pages {
		if page == target {
			return idx
		}
	}
	return -1
}
