// Package label implements parsing and resolution of build target
// references of the form //package:name, relative to a current package
// when the text is not absolute.
package label

import (
	"fmt"
	"strings"
)

// Label identifies a single build target as a (repository, package, name)
// triple. Labels are plain comparable values: two labels are equal exactly
// when their normalized components are equal, regardless of the textual
// form they were parsed from.
type Label struct {
	repo string
	pkg  string
	name string
}

// SyntaxError reports malformed label text. The Error string embeds the
// offending literal verbatim; callers and tests match on it.
type SyntaxError struct {
	Text   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid label '%s': %s", e.Text, e.Reason)
}

// New builds a label from already-validated parts. It is intended for
// tests and for code that constructs labels programmatically; it does not
// re-validate its inputs.
func New(pkg, name string) Label {
	return Label{pkg: pkg, name: name}
}

// Repo returns the repository component, empty for the main repository.
func (l Label) Repo() string { return l.repo }

// Pkg returns the package path component.
func (l Label) Pkg() string { return l.pkg }

// Name returns the target name component.
func (l Label) Name() string { return l.name }

// IsZero reports whether l is the zero Label.
func (l Label) IsZero() bool { return l == Label{} }

// String renders the canonical absolute form, //pkg:name, prefixed with
// @repo when the label belongs to an external repository.
func (l Label) String() string {
	if l.repo != "" {
		return "@" + l.repo + "//" + l.pkg + ":" + l.name
	}
	return "//" + l.pkg + ":" + l.name
}

// Parse parses absolute label text: //pkg:name, //pkg (target name
// defaulting to the last package segment), or @repo//pkg:name. Relative
// forms are rejected; use Resolve for those.
func Parse(text string) (Label, error) {
	l, err := parseAbsolute(text)
	if err != nil {
		return Label{}, err
	}
	return l, nil
}

// Resolve resolves label text against the package of l. Absolute text
// ignores l entirely; a bare name or :name form resolves within l's
// package. This is the single entry point attribute conversion uses for
// embedded references.
func (l Label) Resolve(text string) (Label, error) {
	if strings.HasPrefix(text, "//") || strings.HasPrefix(text, "@") {
		return Parse(text)
	}
	name := strings.TrimPrefix(text, ":")
	if err := validateName(text, name); err != nil {
		return Label{}, err
	}
	return Label{repo: l.repo, pkg: l.pkg, name: name}, nil
}

// ValidatePackage checks a bare package path (no leading //, no target
// part) against the package naming rules.
func ValidatePackage(pkg string) error {
	return validatePkg(pkg, pkg)
}

func parseAbsolute(text string) (Label, error) {
	rest := text
	var repo string
	if strings.HasPrefix(rest, "@") {
		i := strings.Index(rest, "//")
		if i < 0 {
			return Label{}, &SyntaxError{Text: text, Reason: "repository part must be followed by //"}
		}
		repo = rest[1:i]
		if err := validateRepo(text, repo); err != nil {
			return Label{}, err
		}
		rest = rest[i:]
	}
	if !strings.HasPrefix(rest, "//") {
		return Label{}, &SyntaxError{Text: text, Reason: "absolute label must start with //"}
	}
	rest = rest[2:]

	pkg := rest
	name := ""
	if i := strings.Index(rest, ":"); i >= 0 {
		pkg, name = rest[:i], rest[i+1:]
	} else {
		// //foo/bar is shorthand for //foo/bar:bar.
		if i := strings.LastIndex(pkg, "/"); i >= 0 {
			name = pkg[i+1:]
		} else {
			name = pkg
		}
	}
	if err := validatePkg(text, pkg); err != nil {
		return Label{}, err
	}
	if err := validateName(text, name); err != nil {
		return Label{}, err
	}
	return Label{repo: repo, pkg: pkg, name: name}, nil
}

func validateRepo(text, repo string) error {
	if repo == "" {
		return &SyntaxError{Text: text, Reason: "empty repository name"}
	}
	for _, r := range repo {
		if !isAlnum(r) && r != '_' && r != '-' && r != '.' {
			return &SyntaxError{Text: text, Reason: fmt.Sprintf("invalid character %q in repository name", r)}
		}
	}
	return nil
}

func validatePkg(text, pkg string) error {
	if pkg == "" {
		// The root package is written //:name.
		return nil
	}
	if strings.HasPrefix(pkg, "/") || strings.HasSuffix(pkg, "/") {
		return &SyntaxError{Text: text, Reason: "package name may not start or end with '/'"}
	}
	for _, seg := range strings.Split(pkg, "/") {
		if seg == "" {
			return &SyntaxError{Text: text, Reason: "package name contains an empty segment"}
		}
		if seg == "." || seg == ".." {
			return &SyntaxError{Text: text, Reason: "package name may not contain up-level or same-level references"}
		}
	}
	for _, r := range pkg {
		if !isAlnum(r) && !strings.ContainsRune("/-._", r) {
			return &SyntaxError{Text: text, Reason: fmt.Sprintf("invalid character %q in package name", r)}
		}
	}
	return nil
}

// Target names allow most printable punctuation but never whitespace,
// colons, or path tricks; they may contain '/' for targets in
// subdirectories of their package.
func validateName(text, name string) error {
	if name == "" {
		return &SyntaxError{Text: text, Reason: "empty target name"}
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return &SyntaxError{Text: text, Reason: "target name may not start or end with '/'"}
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." {
			return &SyntaxError{Text: text, Reason: "target name may not contain up-level or same-level references"}
		}
	}
	for _, r := range name {
		if r <= ' ' || r == ':' || r == '\\' || r == 127 {
			return &SyntaxError{Text: text, Reason: fmt.Sprintf("invalid character %q in target name", r)}
		}
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
