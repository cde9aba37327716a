package buildtype

import (
	"fmt"
	"strings"
	"testing"

	"github.com/starforge/starforge/pkg/label"
)

func makeFilesetEntry(t *testing.T) *FilesetEntry {
	t.Helper()
	return NewFilesetEntry(mustLabel(t, "//foo:bar"), nil, []string{"xyz"}, "", SymlinkCopy, ".")
}

func makeTestFilesetEntry(t *testing.T, symlinks SymlinkBehavior) *FilesetEntry {
	t.Helper()
	l := mustLabel(t, "//x")
	return NewFilesetEntry(l, []label.Label{l}, nil, "", symlinks, ".")
}

func expectedFilesetEntryString(symlinks SymlinkBehavior, quote byte) string {
	q := string(quote)
	return fmt.Sprintf(
		"FilesetEntry(srcdir = %[1]s//x:x%[1]s,"+
			" files = [%[1]s//x:x%[1]s],"+
			" excludes = [],"+
			" destdir = %[1]s%[1]s,"+
			" strip_prefix = %[1]s.%[1]s,"+
			" symlinks = %[1]s%[2]s%[1]s)",
		q, symlinks)
}

func TestPrintFilesetEntry(t *testing.T) {
	want := `FilesetEntry(srcdir = "//foo:bar", files = [], ` +
		`excludes = ["xyz"], destdir = "", ` +
		`strip_prefix = ".", symlinks = "copy")`
	if got := Repr(makeFilesetEntry(t)); got != want {
		t.Errorf("Repr = %s, want %s", got, want)
	}
}

func TestFilesetEntryDoubleQuotes(t *testing.T) {
	got := Repr(makeTestFilesetEntry(t, SymlinkCopy))
	if want := expectedFilesetEntryString(SymlinkCopy, '"'); got != want {
		t.Errorf("Repr = %s, want %s", got, want)
	}
}

func TestFilesetEntrySingleQuotes(t *testing.T) {
	got := ReprQuote(makeTestFilesetEntry(t, SymlinkCopy), '\'')
	if want := expectedFilesetEntryString(SymlinkCopy, '\''); got != want {
		t.Errorf("ReprQuote = %s, want %s", got, want)
	}
}

// The two quote styles differ only in the quote character itself.
func TestQuoteStylesAgree(t *testing.T) {
	e := makeFilesetEntry(t)
	double := Repr(e)
	single := ReprQuote(e, '\'')
	if strings.ReplaceAll(double, `"`, `'`) != single {
		t.Errorf("quote styles diverge:\n%s\n%s", double, single)
	}
}

func TestFilesetEntrySymlinkAttr(t *testing.T) {
	got := Repr(makeTestFilesetEntry(t, SymlinkDereference))
	if want := expectedFilesetEntryString(SymlinkDereference, '"'); got != want {
		t.Errorf("Repr = %s, want %s", got, want)
	}
}

func TestFilesetEntryStripPrefixAttr(t *testing.T) {
	l := mustLabel(t, "//x")
	without := NewFilesetEntry(l, []label.Label{l}, nil, "", SymlinkDereference, ".")
	with := NewFilesetEntry(l, []label.Label{l}, nil, "", SymlinkDereference, "orange")

	if got := Repr(without); !strings.Contains(got, `strip_prefix = "."`) {
		t.Errorf("Repr = %s", got)
	}
	if got := Repr(with); !strings.Contains(got, `strip_prefix = "orange"`) {
		t.Errorf("Repr = %s", got)
	}
}

func TestReprScalars(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{in: nil, want: "None"},
		{in: true, want: "True"},
		{in: false, want: "False"},
		{in: int64(42), want: "42"},
		{in: "a\"b", want: `"a\"b"`},
		{in: label.New("a", "a"), want: `"//a:a"`},
		{in: []interface{}{"a", int64(1)}, want: `["a", 1]`},
		{in: []string{}, want: "[]"},
		{in: map[string]interface{}{"b": int64(2), "a": int64(1)}, want: `{"a": 1, "b": 2}`},
	}
	for _, tt := range tests {
		if got := Repr(tt.in); got != tt.want {
			t.Errorf("Repr(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestReprSelector(t *testing.T) {
	sv := NewSelectorValue([]SelectorBranch{
		{Key: "//conditions:a", Value: []interface{}{"//a:a"}},
		{Key: DefaultConditionKey, Value: []interface{}{"//d:d"}},
	})
	want := `select({"//conditions:a": ["//a:a"], "//conditions:default": ["//d:d"]})`
	if got := Repr(sv); got != want {
		t.Errorf("Repr = %s, want %s", got, want)
	}

	expr := NewSelectorExpr([]interface{}{"//a:a"}, sv)
	if got := Repr(expr); got != `["//a:a"] + `+want {
		t.Errorf("Repr = %s", got)
	}
}

// Printing a value whose runtime shape matches no attribute type must
// still produce something deterministic instead of failing. A list of
// labels where a FilesetEntry was expected is the historical crasher.
func TestReprUnexpectedShape(t *testing.T) {
	type opaque struct{ n int }
	inputs := []interface{}{
		opaque{n: 1},
		&opaque{n: 2},
		[]interface{}{[]label.Label{label.New("a", "a")}},
		struct{}{},
	}
	for _, in := range inputs {
		got := Repr(in)
		if got == "" {
			t.Errorf("Repr(%#v) = empty", in)
		}
		if got != Repr(in) {
			t.Errorf("Repr(%#v) is not deterministic", in)
		}
	}
}
