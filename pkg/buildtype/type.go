// Package buildtype converts raw attribute literals into validated, typed
// values. Raw input is the closed set of shapes the Starlark lowering step
// produces: string, bool, int64, []interface{}, map[string]interface{},
// the selector constructs *SelectorValue and *SelectorExpr, plus
// already-typed values passed through unchanged. Every converted value is
// immutable once constructed and conversion never mutates its input.
package buildtype

import (
	"strings"

	"github.com/starforge/starforge/pkg/label"
)

// Type is the capability every concrete attribute type implements. New
// attribute types are new implementations of this interface.
type Type interface {
	// Name returns the canonical type name used in error messages,
	// e.g. "label" or "list(label)".
	Name() string

	// Convert validates x against the type and returns the typed value.
	// what attributes the conversion site for error messages; current is
	// the label of the rule being converted, against whose package any
	// embedded references resolve. Selector constructs are always
	// rejected here; they enter only through SelectableConvert.
	Convert(x interface{}, what string, current label.Label) (interface{}, error)

	// Flatten extracts every label reachable from a converted value, in
	// encounter order without duplicates. Scalar-only types return nil.
	Flatten(v interface{}) []label.Label
}

// The concrete attribute types. Each is stateless, so a single shared
// instance serves all conversions on all goroutines.
var (
	String               Type = stringType{}
	Int                  Type = intType{}
	Bool                 Type = boolType{}
	Label                Type = labelType{}
	StringList           Type = stringListType{}
	LabelList            Type = labelListType{}
	FilesetEntryType     Type = filesetEntryType{}
	FilesetEntryListType Type = filesetEntryListType{}
)

var typesByName = map[string]Type{
	"string":             String,
	"int":                Int,
	"bool":               Bool,
	"label":              Label,
	"list(string)":       StringList,
	"list(label)":        LabelList,
	"FilesetEntry":       FilesetEntryType,
	"list(FilesetEntry)": FilesetEntryListType,
}

// Lookup returns the attribute type with the given canonical name.
func Lookup(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// isSelector reports whether x is a raw selector construct. Every plain
// converter rejects these; only SelectableConvert accepts them.
func isSelector(x interface{}) bool {
	switch x.(type) {
	case *SelectorValue, *SelectorExpr:
		return true
	}
	return false
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (t stringType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	if s, ok := x.(string); ok {
		return s, nil
	}
	return nil, newConversionError(t, x, what)
}

func (stringType) Flatten(v interface{}) []label.Label { return nil }

type intType struct{}

func (intType) Name() string { return "int" }

func (t intType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	switch n := x.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return nil, newConversionError(t, x, what)
}

func (intType) Flatten(v interface{}) []label.Label { return nil }

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (t boolType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	switch b := x.(type) {
	case bool:
		return b, nil
	case int:
		if b == 0 || b == 1 {
			return b == 1, nil
		}
	case int64:
		if b == 0 || b == 1 {
			return b == 1, nil
		}
	}
	return nil, newConversionError(t, x, what)
}

func (boolType) Flatten(v interface{}) []label.Label { return nil }

type labelType struct{}

// labelInterner caches absolute label spellings, which repeat heavily
// across rules (visibility labels, select conditions, shared deps).
var labelInterner label.Interner

// LabelCacheStats returns the cumulative hit and miss counts of the
// shared label intern cache.
func LabelCacheStats() (hits, misses uint64) {
	return labelInterner.Stats()
}

func (labelType) Name() string { return "label" }

func (t labelType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	switch v := x.(type) {
	case label.Label:
		return v, nil
	case string:
		var l label.Label
		var err error
		if strings.HasPrefix(v, "//") || strings.HasPrefix(v, "@") {
			l, err = labelInterner.Parse(v)
		} else {
			l, err = current.Resolve(v)
		}
		if err != nil {
			return nil, newLabelError(t, v, what, err)
		}
		return l, nil
	}
	return nil, newConversionError(t, x, what)
}

func (labelType) Flatten(v interface{}) []label.Label {
	if l, ok := v.(label.Label); ok {
		return []label.Label{l}
	}
	return nil
}

type stringListType struct{}

func (stringListType) Name() string { return "list(string)" }

func (t stringListType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	switch v := x.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, newConversionError(String, elem, elementWhat(what))
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, newConversionError(t, x, what)
}

func (stringListType) Flatten(v interface{}) []label.Label { return nil }

type labelListType struct{}

func (labelListType) Name() string { return "list(label)" }

func (t labelListType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	elems, ok := asRawList(x)
	if !ok {
		return nil, newConversionError(t, x, what)
	}
	out := make([]label.Label, 0, len(elems))
	for _, elem := range elems {
		converted, err := Label.Convert(elem, elementWhat(what), current)
		if err != nil {
			return nil, err
		}
		out = append(out, converted.(label.Label))
	}
	return out, nil
}

func (labelListType) Flatten(v interface{}) []label.Label {
	ls, ok := v.([]label.Label)
	if !ok {
		return nil
	}
	return dedupLabels(ls)
}

// asRawList normalizes the list-shaped raw forms into a single slice. A
// selector is never list-shaped even though it may wrap lists.
func asRawList(x interface{}) ([]interface{}, bool) {
	switch v := x.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []label.Label:
		out := make([]interface{}, len(v))
		for i, l := range v {
			out[i] = l
		}
		return out, true
	}
	return nil, false
}

func elementWhat(what string) string {
	if what == "" {
		return ""
	}
	return "element of " + what
}

func dedupLabels(ls []label.Label) []label.Label {
	seen := make(map[label.Label]bool, len(ls))
	out := make([]label.Label, 0, len(ls))
	for _, l := range ls {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
