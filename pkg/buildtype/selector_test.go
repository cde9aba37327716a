package buildtype

import (
	"strings"
	"testing"

	"github.com/starforge/starforge/pkg/label"
)

func TestSelector(t *testing.T) {
	cur := currentRule(t)
	input := map[string]interface{}{
		"//conditions:a":    "//a:a",
		"//conditions:b":    "//b:b",
		DefaultConditionKey: "//d:d",
	}

	s, err := NewSelector(input, "", cur, Label)
	if err != nil {
		t.Fatal(err)
	}
	if s.OriginalType() != Label {
		t.Errorf("OriginalType = %v, want label", s.OriginalType().Name())
	}

	want := map[label.Label]interface{}{
		mustLabel(t, "//conditions:a"):    label.New("a", "a"),
		mustLabel(t, "//conditions:b"):    label.New("b", "b"),
		mustLabel(t, DefaultConditionKey): label.New("d", "d"),
	}
	got := s.Entries()
	if len(got) != len(want) {
		t.Fatalf("Entries = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("entry %v = %v, want %v", k, got[k], v)
		}
	}
}

func TestSelectorDefault(t *testing.T) {
	cur := currentRule(t)
	s, err := NewSelector(map[string]interface{}{
		"//conditions:a":    "//a:a",
		"//conditions:b":    "//b:b",
		DefaultConditionKey: "//d:d",
	}, "", cur, Label)
	if err != nil {
		t.Fatal(err)
	}
	if !s.HasDefault() {
		t.Fatal("HasDefault = false")
	}
	d, err := s.Default()
	if err != nil {
		t.Fatal(err)
	}
	if d != label.New("d", "d") {
		t.Errorf("Default = %v, want //d:d", d)
	}
}

// Absent default is an error on access, never a silent zero value.
func TestSelectorNoDefault(t *testing.T) {
	cur := currentRule(t)
	s, err := NewSelector(map[string]interface{}{
		"//conditions:a": "//a:a",
	}, "", cur, Label)
	if err != nil {
		t.Fatal(err)
	}
	if s.HasDefault() {
		t.Error("HasDefault = true")
	}
	if _, err := s.Default(); err == nil {
		t.Error("Default() succeeded without a default entry")
	}
}

func TestSelectorWrongValueType(t *testing.T) {
	cur := currentRule(t)
	_, err := NewSelector(map[string]interface{}{
		"//conditions:a":    "not a label",
		"//conditions:b":    "also not a label",
		DefaultConditionKey: "whatever",
	}, "", cur, Label)
	if err == nil {
		t.Fatal("expected selector construction to fail on non-label values")
	}
	if !strings.Contains(err.Error(), "invalid label 'not a label'") {
		t.Errorf("error %q does not embed the offending literal", err)
	}
}

func TestSelectorKeyIsNotALabel(t *testing.T) {
	cur := currentRule(t)
	_, err := NewSelector(map[string]interface{}{
		"not a label":       "//a:a",
		DefaultConditionKey: "whatever",
	}, "", cur, Label)
	if err == nil {
		t.Fatal("expected selector construction to fail on a non-label key")
	}
	if !strings.Contains(err.Error(), "invalid label 'not a label'") {
		t.Errorf("error %q does not embed the offending key", err)
	}
}

func TestSelectorDuplicateKey(t *testing.T) {
	cur := currentRule(t)
	// //conditions:a and its explicit-name spelling are the same label.
	_, err := NewSelector(NewSelectorValue([]SelectorBranch{
		{Key: "//conditions:a", Value: "//a:a"},
		{Key: "//conditions:a", Value: "//b:b"},
	}), "", cur, Label)
	if err == nil {
		t.Fatal("expected duplicate key to fail")
	}
	if !strings.Contains(err.Error(), "duplicate label '//conditions:a'") {
		t.Errorf("error %q does not report the duplicate", err)
	}
}

func TestSelectorDuplicateDefault(t *testing.T) {
	cur := currentRule(t)
	_, err := NewSelector(NewSelectorValue([]SelectorBranch{
		{Key: DefaultConditionKey, Value: "//a:a"},
		{Key: DefaultConditionKey, Value: "//b:b"},
	}), "", cur, Label)
	if err == nil {
		t.Fatal("expected duplicate default entries to fail")
	}
}

func TestReservedKeyLabels(t *testing.T) {
	if IsReservedLabel(mustLabel(t, "//condition:a")) {
		t.Error("//condition:a reported reserved")
	}
	if IsReservedLabel(mustLabel(t, "//conditions:a")) {
		t.Error("//conditions:a reported reserved")
	}
	if !IsReservedLabel(mustLabel(t, DefaultConditionKey)) {
		t.Errorf("%s not reported reserved", DefaultConditionKey)
	}
}

func TestSelectorList(t *testing.T) {
	cur := currentRule(t)
	selector1 := NewSelectorValueFromMap(map[string]interface{}{
		"//conditions:a": []interface{}{"//a:a"},
		"//conditions:b": []interface{}{"//b:b"},
	})
	selector2 := NewSelectorValueFromMap(map[string]interface{}{
		"//conditions:c": []interface{}{"//c:c"},
		"//conditions:d": []interface{}{"//d:d"},
	})

	sl, err := NewSelectorList([]interface{}{selector1, selector2}, "", cur, LabelList)
	if err != nil {
		t.Fatal(err)
	}
	if sl.OriginalType() != LabelList {
		t.Errorf("OriginalType = %v", sl.OriginalType().Name())
	}

	wantKeys := []string{"//conditions:a", "//conditions:b", "//conditions:c", "//conditions:d"}
	keys := sl.KeyLabels()
	if len(keys) != len(wantKeys) {
		t.Fatalf("KeyLabels = %v, want %d keys", keys, len(wantKeys))
	}
	for _, k := range wantKeys {
		if !keys[mustLabel(t, k)] {
			t.Errorf("KeyLabels missing %s", k)
		}
	}

	selectors := sl.Selectors()
	if len(selectors) != 2 {
		t.Fatalf("Selectors = %d elements, want 2", len(selectors))
	}
	first := selectors[0].Entries()
	got := first[mustLabel(t, "//conditions:a")].([]label.Label)
	if len(got) != 1 || got[0] != label.New("a", "a") {
		t.Errorf("first selector branch a = %v", got)
	}
	second := selectors[1].Entries()
	got = second[mustLabel(t, "//conditions:d")].([]label.Label)
	if len(got) != 1 || got[0] != label.New("d", "d") {
		t.Errorf("second selector branch d = %v", got)
	}
}

// Mixing an element-type selector with a sequence-type selector is a
// conversion failure naming the declared type.
func TestSelectorListMixedTypes(t *testing.T) {
	cur := currentRule(t)
	selector1 := NewSelectorValueFromMap(map[string]interface{}{
		"//conditions:a": []interface{}{"//a:a"},
	})
	selector2 := NewSelectorValueFromMap(map[string]interface{}{
		"//conditions:b": "//b:b",
	})
	_, err := NewSelectorList([]interface{}{selector1, selector2}, "", cur, LabelList)
	if err == nil {
		t.Fatal("expected mixed element types to fail")
	}
	if !strings.Contains(err.Error(), "expected value of type 'list(label)'") {
		t.Errorf("error %q does not name the declared type", err)
	}
}

// More than one concatenated element only makes sense for list types.
func TestSelectorListScalarConcatenation(t *testing.T) {
	cur := currentRule(t)
	selector1 := NewSelectorValueFromMap(map[string]interface{}{"//conditions:a": "//a:a"})
	selector2 := NewSelectorValueFromMap(map[string]interface{}{"//conditions:b": "//b:b"})
	_, err := NewSelectorList([]interface{}{selector1, selector2}, "", cur, Label)
	if err == nil {
		t.Fatal("expected scalar concatenation to fail")
	}
	if !strings.Contains(err.Error(), "doesn't support select concatenation") {
		t.Errorf("error %q", err)
	}
}

func TestSelectableConvert(t *testing.T) {
	cur := currentRule(t)
	nativeInput := []interface{}{"//a:a1", "//a:a2"}
	selectableInput := NewSelectorExpr(NewSelectorValueFromMap(map[string]interface{}{
		"//conditions:a":    nativeInput,
		DefaultConditionKey: nativeInput,
	}))
	expected := []label.Label{label.New("a", "a1"), label.New("a", "a2")}

	// Conversion to the direct type.
	converted, err := SelectableConvert(LabelList, nativeInput, "", cur)
	if err != nil {
		t.Fatal(err)
	}
	direct, ok := converted.([]label.Label)
	if !ok {
		t.Fatalf("converted = %T, want []label.Label", converted)
	}
	for i := range expected {
		if direct[i] != expected[i] {
			t.Errorf("element %d = %v, want %v", i, direct[i], expected[i])
		}
	}

	// Conversion to the selectable type.
	converted, err = SelectableConvert(LabelList, selectableInput, "", cur)
	if err != nil {
		t.Fatal(err)
	}
	sl, ok := converted.(*SelectorList)
	if !ok {
		t.Fatalf("converted = %T, want *SelectorList", converted)
	}
	entries := sl.Selectors()[0].Entries()
	for _, key := range []string{"//conditions:a", DefaultConditionKey} {
		branch, ok := entries[mustLabel(t, key)].([]label.Label)
		if !ok {
			t.Fatalf("branch %s = %T", key, entries[mustLabel(t, key)])
		}
		for i := range expected {
			if branch[i] != expected[i] {
				t.Errorf("branch %s element %d = %v, want %v", key, i, branch[i], expected[i])
			}
		}
	}
}

// A single bare select() is the degenerate one-element sequence.
func TestSelectableConvertSingleSelector(t *testing.T) {
	cur := currentRule(t)
	converted, err := SelectableConvert(Label, NewSelectorValueFromMap(map[string]interface{}{
		"//conditions:a":    "//a:a",
		DefaultConditionKey: "//d:d",
	}), "", cur)
	if err != nil {
		t.Fatal(err)
	}
	sl, ok := converted.(*SelectorList)
	if !ok {
		t.Fatalf("converted = %T, want *SelectorList", converted)
	}
	if len(sl.Selectors()) != 1 {
		t.Errorf("got %d selectors, want 1", len(sl.Selectors()))
	}
}

// Direct values inside a selector expression become default-only selectors.
func TestSelectorListNakedValue(t *testing.T) {
	cur := currentRule(t)
	expr := NewSelectorExpr(
		[]interface{}{"//a:a"},
		NewSelectorValueFromMap(map[string]interface{}{"//conditions:b": []interface{}{"//b:b"}}),
	)
	converted, err := SelectableConvert(LabelList, expr, "", cur)
	if err != nil {
		t.Fatal(err)
	}
	sl := converted.(*SelectorList)
	selectors := sl.Selectors()
	if len(selectors) != 2 {
		t.Fatalf("got %d selectors, want 2", len(selectors))
	}
	d, err := selectors[0].Default()
	if err != nil {
		t.Fatal(err)
	}
	ls := d.([]label.Label)
	if len(ls) != 1 || ls[0] != label.New("a", "a") {
		t.Errorf("naked element default = %v", ls)
	}
	if !IsReservedLabel(selectors[0].OrderedEntries()[0].Key) {
		t.Error("naked element key is not the reserved default")
	}
}
