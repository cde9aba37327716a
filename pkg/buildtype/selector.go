package buildtype

import (
	"fmt"
	"sort"

	"github.com/starforge/starforge/pkg/label"
)

// DefaultConditionKey is the reserved select branch that matches when no
// real condition does. It is label-shaped but never names a real target.
const DefaultConditionKey = "//conditions:default"

var defaultConditionLabel = label.New("conditions", "default")

// IsReservedLabel reports whether l is the reserved default condition.
// The comparison is by value, never by identity.
func IsReservedLabel(l label.Label) bool {
	return l == defaultConditionLabel
}

// SelectorBranch is one raw key/value pair of a select() call, with the
// key still in textual form.
type SelectorBranch struct {
	Key   string
	Value interface{}
}

// SelectorValue is the raw result of a single select() call: the branch
// mapping exactly as written, before any type checking. Branch order is
// the source order and is preserved for diagnostics.
type SelectorValue struct {
	branches []SelectorBranch
}

// NewSelectorValue wraps ordered raw branches.
func NewSelectorValue(branches []SelectorBranch) *SelectorValue {
	return &SelectorValue{branches: append([]SelectorBranch(nil), branches...)}
}

// NewSelectorValueFromMap wraps an unordered branch mapping, ordering
// branches by key text for determinism.
func NewSelectorValueFromMap(m map[string]interface{}) *SelectorValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	branches := make([]SelectorBranch, 0, len(m))
	for _, k := range keys {
		branches = append(branches, SelectorBranch{Key: k, Value: m[k]})
	}
	return &SelectorValue{branches: branches}
}

// Branches returns the raw branches in source order.
func (s *SelectorValue) Branches() []SelectorBranch {
	return append([]SelectorBranch(nil), s.branches...)
}

func (s *SelectorValue) String() string { return Repr(s) }

// SelectorExpr is the raw form of one or more select() calls and direct
// values joined by +. Elements are *SelectorValue or plain raw values, in
// source order.
type SelectorExpr struct {
	elements []interface{}
}

// NewSelectorExpr builds a raw selector expression from its elements.
func NewSelectorExpr(elements ...interface{}) *SelectorExpr {
	return &SelectorExpr{elements: append([]interface{}(nil), elements...)}
}

// Concat returns a new expression with more elements appended; the
// receiver is not modified.
func (e *SelectorExpr) Concat(elements ...interface{}) *SelectorExpr {
	combined := make([]interface{}, 0, len(e.elements)+len(elements))
	combined = append(combined, e.elements...)
	combined = append(combined, elements...)
	return &SelectorExpr{elements: combined}
}

// Elements returns the raw elements in source order.
func (e *SelectorExpr) Elements() []interface{} {
	return append([]interface{}(nil), e.elements...)
}

func (e *SelectorExpr) String() string { return Repr(e) }

// SelectorEntry is one type-checked branch of a Selector.
type SelectorEntry struct {
	Key   label.Label
	Value interface{}
}

// Selector is a type-checked select(): an ordered mapping from condition
// labels to values that all converted under one declared attribute type.
// Immutable once constructed.
type Selector struct {
	entries      []SelectorEntry
	hasDefault   bool
	defaultValue interface{}
	originalType Type
}

// NewSelector type-checks a raw selector mapping. x must be a
// *SelectorValue or a map[string]interface{}; every key must resolve as a
// label against current's package (the reserved default key included),
// and every value must convert under originalType. Any malformed key or
// value fails the whole construction.
func NewSelector(x interface{}, what string, current label.Label, originalType Type) (*Selector, error) {
	var raw *SelectorValue
	switch v := x.(type) {
	case *SelectorValue:
		raw = v
	case map[string]interface{}:
		raw = NewSelectorValueFromMap(v)
	default:
		return nil, newConversionError(originalType, x, what)
	}

	s := &Selector{originalType: originalType}
	seen := make(map[label.Label]bool, len(raw.branches))
	for _, branch := range raw.branches {
		key, err := current.Resolve(branch.Key)
		if err != nil {
			return nil, newLabelError(originalType, branch.Key, what, err)
		}
		if seen[key] {
			return nil, conversionErrorf(originalType, what, "duplicate label '%s' in select", key)
		}
		seen[key] = true

		value, err := originalType.Convert(branch.Value, what, current)
		if err != nil {
			return nil, err
		}
		if IsReservedLabel(key) {
			s.hasDefault = true
			s.defaultValue = value
		}
		s.entries = append(s.entries, SelectorEntry{Key: key, Value: value})
	}
	return s, nil
}

// OriginalType returns the declared type every branch value carries.
func (s *Selector) OriginalType() Type { return s.originalType }

// Entries returns the branch mapping keyed by resolved condition label.
func (s *Selector) Entries() map[label.Label]interface{} {
	m := make(map[label.Label]interface{}, len(s.entries))
	for _, e := range s.entries {
		m[e.Key] = e.Value
	}
	return m
}

// OrderedEntries returns the branches in source order.
func (s *Selector) OrderedEntries() []SelectorEntry {
	return append([]SelectorEntry(nil), s.entries...)
}

// HasDefault reports whether a default condition branch was supplied.
func (s *Selector) HasDefault() bool { return s.hasDefault }

// Default returns the value of the reserved default branch. There is no
// fallback: a selector without a default branch has no default value and
// asking for one is an error.
func (s *Selector) Default() (interface{}, error) {
	if !s.hasDefault {
		return nil, fmt.Errorf("select has no default condition ('%s') entry", DefaultConditionKey)
	}
	return s.defaultValue, nil
}

// SelectorList is an ordered sequence of type-checked selectors over one
// shared declared type. For list-typed attributes its meaning is the
// concatenation of each selector's active branch, in order; that is why
// more than one element requires a list type.
type SelectorList struct {
	originalType Type
	selectors    []*Selector
}

// NewSelectorList type-checks a sequence of raw elements. Each element is
// either a *SelectorValue (checked via NewSelector) or a direct raw
// value, which converts under originalType and becomes a single-branch
// default-only selector. The first element whose values do not convert
// under originalType fails the whole construction.
func NewSelectorList(elements []interface{}, what string, current label.Label, originalType Type) (*SelectorList, error) {
	if len(elements) > 1 && !isListType(originalType) {
		return nil, conversionErrorf(originalType, what,
			"type '%s' doesn't support select concatenation", originalType.Name())
	}

	sl := &SelectorList{originalType: originalType}
	for _, elem := range elements {
		switch v := elem.(type) {
		case *SelectorValue:
			s, err := NewSelector(v, what, current, originalType)
			if err != nil {
				return nil, err
			}
			sl.selectors = append(sl.selectors, s)
		case *SelectorExpr:
			return nil, conversionErrorf(originalType, what, "select expressions may not nest")
		default:
			value, err := originalType.Convert(elem, what, current)
			if err != nil {
				return nil, err
			}
			sl.selectors = append(sl.selectors, &Selector{
				entries:      []SelectorEntry{{Key: defaultConditionLabel, Value: value}},
				hasDefault:   true,
				defaultValue: value,
				originalType: originalType,
			})
		}
	}
	return sl, nil
}

// OriginalType returns the declared type shared by every selector.
func (l *SelectorList) OriginalType() Type { return l.originalType }

// Selectors returns the component selectors in declaration order.
// Evaluation order matters: sequence semantics is ordered concatenation.
func (l *SelectorList) Selectors() []*Selector {
	return append([]*Selector(nil), l.selectors...)
}

// KeyLabels returns the set of condition labels used across all component
// selectors.
func (l *SelectorList) KeyLabels() map[label.Label]bool {
	keys := make(map[label.Label]bool)
	for _, s := range l.selectors {
		for _, e := range s.entries {
			keys[e.Key] = true
		}
	}
	return keys
}

// isListType reports whether t produces sequence-shaped values, i.e.
// whether select concatenation is meaningful for it.
func isListType(t Type) bool {
	switch t {
	case StringList, LabelList, FilesetEntryListType:
		return true
	}
	return false
}

// FlattenSelectable extracts every label reachable from a converted
// value whether it is plain or configurable, so dependency discovery
// never needs to know whether an attribute was written with select().
// For a SelectorList every branch of every selector contributes, in
// declaration order without duplicates.
func FlattenSelectable(t Type, v interface{}) []label.Label {
	sl, ok := v.(*SelectorList)
	if !ok {
		return t.Flatten(v)
	}
	var out []label.Label
	for _, s := range sl.selectors {
		for _, e := range s.entries {
			out = append(out, t.Flatten(e.Value)...)
		}
	}
	return dedupLabels(out)
}

// SelectableConvert is the one entry point that accepts configurable
// input. A plain literal delegates to t.Convert; anything carrying
// select() constructs becomes a *SelectorList (a single select is the
// degenerate one-element sequence). Rule-attribute processing calls this,
// never t.Convert directly, whenever an attribute may be configurable.
func SelectableConvert(t Type, x interface{}, what string, current label.Label) (interface{}, error) {
	switch v := x.(type) {
	case *SelectorExpr:
		return NewSelectorList(v.Elements(), what, current, t)
	case *SelectorValue:
		return NewSelectorList([]interface{}{v}, what, current, t)
	default:
		return t.Convert(x, what, current)
	}
}
