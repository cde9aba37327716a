package buildtype

import (
	"fmt"

	"github.com/starforge/starforge/pkg/label"
)

// SymlinkBehavior says how symlinks under a fileset entry's source
// directory are materialized.
type SymlinkBehavior int

const (
	// SymlinkCopy materializes the symlink's target contents.
	SymlinkCopy SymlinkBehavior = iota
	// SymlinkDereference follows the symlink and links to its target.
	SymlinkDereference
)

func (b SymlinkBehavior) String() string {
	switch b {
	case SymlinkCopy:
		return "copy"
	case SymlinkDereference:
		return "dereference"
	}
	return fmt.Sprintf("SymlinkBehavior(%d)", int(b))
}

// ParseSymlinkBehavior maps the textual attribute form to the enum.
func ParseSymlinkBehavior(s string) (SymlinkBehavior, error) {
	switch s {
	case "copy":
		return SymlinkCopy, nil
	case "dereference":
		return SymlinkDereference, nil
	}
	return 0, fmt.Errorf("invalid symlinks value '%s': want 'copy' or 'dereference'", s)
}

// NoStripPrefix is the strip_prefix value meaning "strip nothing"; it is
// the default when the field is absent.
const NoStripPrefix = "."

// FilesetEntry describes one entry of a fileset: which source directory
// to take files from, which files, and how to place them. Entries are
// treated as immutable once constructed; NewFilesetEntry copies its slice
// arguments and all validation happens there, never at use time.
type FilesetEntry struct {
	SrcDir      label.Label
	Files       []label.Label
	Excludes    []string
	DestDir     string
	Symlinks    SymlinkBehavior
	StripPrefix string
}

// NewFilesetEntry constructs an entry, applying field defaults: nil
// excludes stays empty, an empty stripPrefix becomes NoStripPrefix.
func NewFilesetEntry(srcDir label.Label, files []label.Label, excludes []string, destDir string, symlinks SymlinkBehavior, stripPrefix string) *FilesetEntry {
	if stripPrefix == "" {
		stripPrefix = NoStripPrefix
	}
	e := &FilesetEntry{
		SrcDir:      srcDir,
		Files:       append([]label.Label(nil), files...),
		Excludes:    append([]string(nil), excludes...),
		DestDir:     destDir,
		Symlinks:    symlinks,
		StripPrefix: stripPrefix,
	}
	return e
}

// Equal reports field-wise structural equality.
func (e *FilesetEntry) Equal(o *FilesetEntry) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.SrcDir != o.SrcDir || e.DestDir != o.DestDir ||
		e.Symlinks != o.Symlinks || e.StripPrefix != o.StripPrefix {
		return false
	}
	if len(e.Files) != len(o.Files) || len(e.Excludes) != len(o.Excludes) {
		return false
	}
	for i := range e.Files {
		if e.Files[i] != o.Files[i] {
			return false
		}
	}
	for i := range e.Excludes {
		if e.Excludes[i] != o.Excludes[i] {
			return false
		}
	}
	return true
}

// labels returns every label the entry references, in declaration order
// without duplicates: the source directory first, then the files.
func (e *FilesetEntry) labels() []label.Label {
	out := make([]label.Label, 0, len(e.Files)+1)
	out = append(out, e.SrcDir)
	out = append(out, e.Files...)
	return dedupLabels(out)
}

type filesetEntryType struct{}

func (filesetEntryType) Name() string { return "FilesetEntry" }

func (t filesetEntryType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	switch v := x.(type) {
	case *FilesetEntry:
		return v, nil
	case map[string]interface{}:
		return convertFilesetFields(t, v, what, current)
	}
	return nil, newConversionError(t, x, what)
}

func (filesetEntryType) Flatten(v interface{}) []label.Label {
	if e, ok := v.(*FilesetEntry); ok {
		return e.labels()
	}
	return nil
}

// convertFilesetFields validates every field with the rules of its
// declared field type, then constructs the value. Any invalid field fails
// construction eagerly; a converted entry is never partially valid.
func convertFilesetFields(t Type, fields map[string]interface{}, what string, current label.Label) (*FilesetEntry, error) {
	for key := range fields {
		switch key {
		case "srcdir", "files", "excludes", "destdir", "strip_prefix", "symlinks":
		default:
			return nil, conversionErrorf(t, what, "unknown FilesetEntry field '%s'", key)
		}
	}

	raw, ok := fields["srcdir"]
	if !ok {
		return nil, conversionErrorf(t, what, "missing mandatory FilesetEntry field 'srcdir'")
	}
	srcv, err := Label.Convert(raw, fieldWhat("srcdir", what), current)
	if err != nil {
		return nil, err
	}
	srcDir := srcv.(label.Label)

	var files []label.Label
	if raw, ok := fields["files"]; ok {
		fv, err := LabelList.Convert(raw, fieldWhat("files", what), current)
		if err != nil {
			return nil, err
		}
		files = fv.([]label.Label)
	}

	var excludes []string
	if raw, ok := fields["excludes"]; ok {
		ev, err := StringList.Convert(raw, fieldWhat("excludes", what), current)
		if err != nil {
			return nil, err
		}
		excludes = ev.([]string)
	}

	destDir := ""
	if raw, ok := fields["destdir"]; ok {
		dv, err := String.Convert(raw, fieldWhat("destdir", what), current)
		if err != nil {
			return nil, err
		}
		destDir = dv.(string)
	}

	stripPrefix := NoStripPrefix
	if raw, ok := fields["strip_prefix"]; ok {
		sv, err := String.Convert(raw, fieldWhat("strip_prefix", what), current)
		if err != nil {
			return nil, err
		}
		stripPrefix = sv.(string)
	}

	symlinks := SymlinkCopy
	if raw, ok := fields["symlinks"]; ok {
		sv, err := String.Convert(raw, fieldWhat("symlinks", what), current)
		if err != nil {
			return nil, err
		}
		symlinks, err = ParseSymlinkBehavior(sv.(string))
		if err != nil {
			return nil, conversionErrorf(t, what, "%s", err.Error())
		}
	}

	return NewFilesetEntry(srcDir, files, excludes, destDir, symlinks, stripPrefix), nil
}

func fieldWhat(field, what string) string {
	if what == "" {
		return "FilesetEntry field '" + field + "'"
	}
	return "FilesetEntry field '" + field + "' of " + what
}

type filesetEntryListType struct{}

func (filesetEntryListType) Name() string { return "list(FilesetEntry)" }

func (t filesetEntryListType) Convert(x interface{}, what string, current label.Label) (interface{}, error) {
	elems, ok := asRawList(x)
	if !ok {
		if entries, isTyped := x.([]*FilesetEntry); isTyped {
			return append([]*FilesetEntry(nil), entries...), nil
		}
		return nil, newConversionError(t, x, what)
	}
	out := make([]*FilesetEntry, 0, len(elems))
	for _, elem := range elems {
		converted, err := FilesetEntryType.Convert(elem, elementWhat(what), current)
		if err != nil {
			return nil, err
		}
		out = append(out, converted.(*FilesetEntry))
	}
	return out, nil
}

func (filesetEntryListType) Flatten(v interface{}) []label.Label {
	entries, ok := v.([]*FilesetEntry)
	if !ok {
		return nil
	}
	var all []label.Label
	for _, e := range entries {
		all = append(all, e.SrcDir)
		all = append(all, e.Files...)
	}
	return dedupLabels(all)
}
