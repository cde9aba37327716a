package buildtype

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/starforge/starforge/pkg/label"
)

// Repr renders any typed or raw attribute value back to a deterministic,
// re-parseable textual form with double-quoted strings. It is total: a
// value whose runtime shape does not match any known attribute type still
// prints deterministically instead of failing.
func Repr(v interface{}) string {
	return ReprQuote(v, '"')
}

// ReprQuote is Repr with a caller-chosen quote character for all string
// literals (diagnostics sometimes prefer single quotes).
func ReprQuote(v interface{}, quote byte) string {
	var b strings.Builder
	writeRepr(&b, v, quote)
	return b.String()
}

func writeRepr(b *strings.Builder, v interface{}, quote byte) {
	switch val := v.(type) {
	case nil:
		b.WriteString("None")
	case string:
		writeQuoted(b, val, quote)
	case bool:
		if val {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case label.Label:
		writeQuoted(b, val.String(), quote)
	case []string:
		writeList(b, len(val), func(i int) { writeQuoted(b, val[i], quote) })
	case []label.Label:
		writeList(b, len(val), func(i int) { writeQuoted(b, val[i].String(), quote) })
	case []interface{}:
		writeList(b, len(val), func(i int) { writeRepr(b, val[i], quote) })
	case []*FilesetEntry:
		writeList(b, len(val), func(i int) { writeRepr(b, val[i], quote) })
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeQuoted(b, k, quote)
			b.WriteString(": ")
			writeRepr(b, val[k], quote)
		}
		b.WriteByte('}')
	case *FilesetEntry:
		writeFilesetEntry(b, val, quote)
	case *SelectorValue:
		b.WriteString("select({")
		for i, branch := range val.branches {
			if i > 0 {
				b.WriteString(", ")
			}
			writeQuoted(b, branch.Key, quote)
			b.WriteString(": ")
			writeRepr(b, branch.Value, quote)
		}
		b.WriteString("})")
	case *SelectorExpr:
		for i, elem := range val.elements {
			if i > 0 {
				b.WriteString(" + ")
			}
			writeRepr(b, elem, quote)
		}
	case *Selector:
		b.WriteString("select({")
		for i, entry := range val.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			writeQuoted(b, entry.Key.String(), quote)
			b.WriteString(": ")
			writeRepr(b, entry.Value, quote)
		}
		b.WriteString("})")
	case *SelectorList:
		for i, s := range val.selectors {
			if i > 0 {
				b.WriteString(" + ")
			}
			writeRepr(b, s, quote)
		}
	default:
		// Unknown runtime shape. Print something deterministic rather
		// than recurse into a value we do not understand.
		fmt.Fprintf(b, "%v", v)
	}
}

// writeFilesetEntry renders the fixed structured-value grammar. Field
// order is part of the output contract and never varies.
func writeFilesetEntry(b *strings.Builder, e *FilesetEntry, quote byte) {
	b.WriteString("FilesetEntry(srcdir = ")
	writeQuoted(b, e.SrcDir.String(), quote)
	b.WriteString(", files = ")
	writeList(b, len(e.Files), func(i int) { writeQuoted(b, e.Files[i].String(), quote) })
	b.WriteString(", excludes = ")
	writeList(b, len(e.Excludes), func(i int) { writeQuoted(b, e.Excludes[i], quote) })
	b.WriteString(", destdir = ")
	writeQuoted(b, e.DestDir, quote)
	b.WriteString(", strip_prefix = ")
	writeQuoted(b, e.StripPrefix, quote)
	b.WriteString(", symlinks = ")
	writeQuoted(b, e.Symlinks.String(), quote)
	b.WriteByte(')')
}

func writeList(b *strings.Builder, n int, elem func(i int)) {
	b.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		elem(i)
	}
	b.WriteByte(']')
}

func writeQuoted(b *strings.Builder, s string, quote byte) {
	b.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(quote)
}
