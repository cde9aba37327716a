package loader

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/starforge/starforge/pkg/buildtype"
	"github.com/starforge/starforge/pkg/label"
)

// selectValue is the Starlark-side wrapper produced by the select() builtin.
// It carries either a *buildtype.SelectorValue (a single select) or a
// *buildtype.SelectorExpr (a `+`-concatenation involving a select) and
// supports the binary `+` operator on both sides.
type selectValue struct {
	inner interface{}
}

func (s *selectValue) String() string        { return buildtype.Repr(s.inner) }
func (s *selectValue) Type() string          { return "select" }
func (s *selectValue) Freeze()               {}
func (s *selectValue) Truth() starlark.Bool  { return starlark.True }
func (s *selectValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: select") }

// Binary implements `select(...) + x` and `x + select(...)`.
func (s *selectValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op != syntax.PLUS {
		return nil, nil
	}

	other, err := fromStarlark(y)
	if err != nil {
		return nil, err
	}

	var left, right interface{}
	if side == starlark.Left {
		left, right = s.inner, other
	} else {
		left, right = other, s.inner
	}

	var expr *buildtype.SelectorExpr
	if e, ok := left.(*buildtype.SelectorExpr); ok {
		expr = e.Concat(right)
	} else {
		expr = buildtype.NewSelectorExpr(left, right)
	}
	return &selectValue{inner: expr}, nil
}

// filesetValue is the Starlark-side wrapper produced by the FilesetEntry()
// builtin. It carries the raw field map; typing happens when the enclosing
// attribute is converted.
type filesetValue struct {
	fields map[string]interface{}
}

func (f *filesetValue) String() string {
	keys := make([]string, 0, len(f.fields))
	for k := range f.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "FilesetEntry("
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += k + " = " + buildtype.Repr(f.fields[k])
	}
	return s + ")"
}

func (f *filesetValue) Type() string          { return "FilesetEntry" }
func (f *filesetValue) Freeze()               {}
func (f *filesetValue) Truth() starlark.Bool  { return starlark.True }
func (f *filesetValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: FilesetEntry") }

// builtinSelect implements the select() builtin. The argument must be a dict
// mapping condition labels to candidate values; dict order is preserved.
func builtinSelect(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var d *starlark.Dict
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &d); err != nil {
		return nil, err
	}

	branches := make([]buildtype.SelectorBranch, 0, d.Len())
	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("select: got %s for dict key, want a label string", item[0].Type())
		}
		value, err := fromStarlark(item[1])
		if err != nil {
			return nil, err
		}
		branches = append(branches, buildtype.SelectorBranch{
			Key:   string(key),
			Value: value,
		})
	}

	return &selectValue{inner: buildtype.NewSelectorValue(branches)}, nil
}

// builtinFilesetEntry implements the FilesetEntry() builtin. Arguments are
// keyword-only; srcdir is mandatory, everything else is optional.
func builtinFilesetEntry(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: unexpected positional arguments", b.Name())
	}

	fields := make(map[string]interface{}, len(kwargs))
	for _, kw := range kwargs {
		name := string(kw[0].(starlark.String))
		value, err := fromStarlark(kw[1])
		if err != nil {
			return nil, fmt.Errorf("%s: argument %s: %w", b.Name(), name, err)
		}
		fields[name] = value
	}
	if _, ok := fields["srcdir"]; !ok {
		return nil, fmt.Errorf("%s: missing mandatory argument 'srcdir'", b.Name())
	}

	return &filesetValue{fields: fields}, nil
}

// fromStarlark lowers a Starlark value into the raw Go value model understood
// by the buildtype converters.
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, item := range val {
			lowered, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			list[i] = lowered
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *selectValue:
		return val.inner, nil
	case *filesetValue:
		return val.fields, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

// fileBuilder accumulates the rules instantiated while a build file executes.
type fileBuilder struct {
	loader   *Loader
	pkg      string
	pkgLabel label.Label
	evalID   string
	rules    []*Rule
	byName   map[string]*Rule
}

// ruleBuiltin returns the builtin that instantiates rules of the given kind.
func (fb *fileBuilder) ruleBuiltin(kind string, schema Schema) *starlark.Builtin {
	return starlark.NewBuiltin(kind, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: unexpected positional arguments", kind)
		}

		var name string
		for _, kw := range kwargs {
			if string(kw[0].(starlark.String)) != "name" {
				continue
			}
			s, ok := kw[1].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("%s: 'name' must be a string, got %s", kind, kw[1].Type())
			}
			name = string(s)
		}
		if name == "" {
			return nil, fmt.Errorf("%s: missing mandatory attribute 'name'", kind)
		}

		ruleLabel, err := fb.pkgLabel.Resolve(":" + name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if _, dup := fb.byName[name]; dup {
			return nil, fmt.Errorf("%s: rule '%s' already defined in package '%s'", kind, name, fb.pkg)
		}

		rule := &Rule{
			Label:  ruleLabel,
			Kind:   kind,
			Schema: schema,
			Attrs:  map[string]interface{}{"name": name},
		}

		for _, kw := range kwargs {
			attr := string(kw[0].(starlark.String))
			if attr == "name" {
				continue
			}

			typ, ok := schema[attr]
			if !ok {
				return nil, fmt.Errorf("no such attribute '%s' in '%s' rule", attr, kind)
			}

			raw, err := fromStarlark(kw[1])
			if err != nil {
				return nil, fmt.Errorf("%s: attribute '%s': %w", kind, attr, err)
			}
			if raw == nil {
				// None means the attribute is unset.
				continue
			}

			what := fmt.Sprintf("attribute '%s' of '%s'", attr, ruleLabel)
			converted, err := buildtype.SelectableConvert(typ, raw, what, ruleLabel)
			if err != nil {
				fb.loader.recordConversionError(fb.evalID, ruleLabel.String(), attr, typ, err)
				return nil, err
			}
			fb.loader.recordConversion(typ)
			rule.Attrs[attr] = converted
		}

		fb.rules = append(fb.rules, rule)
		fb.byName[name] = rule
		fb.loader.recordRuleLoaded(fb.evalID, rule)

		return starlark.None, nil
	})
}

// predeclared builds the predeclared environment for a build file evaluation.
func (fb *fileBuilder) predeclared() starlark.StringDict {
	env := starlark.StringDict{
		"select":       starlark.NewBuiltin("select", builtinSelect),
		"FilesetEntry": starlark.NewBuiltin("FilesetEntry", builtinFilesetEntry),
	}
	for kind, schema := range fb.loader.schemas {
		env[kind] = fb.ruleBuiltin(kind, schema)
	}
	return env
}
