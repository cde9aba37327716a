package buildtype

import (
	"errors"
	"fmt"

	"github.com/starforge/starforge/pkg/label"
)

// ConversionError reports that a raw value could not be converted to its
// declared attribute type. The message always names the expected type;
// when the failure is a malformed reference it embeds the offending
// literal verbatim. Collaborators and tests match on these substrings, so
// the formats here are load-bearing.
type ConversionError struct {
	// TypeName is the canonical name of the expected type, e.g. "list(label)".
	TypeName string

	// Value is the raw value that failed to convert.
	Value interface{}

	// What attributes the conversion site, e.g. "attribute 'deps' of 'foo'".
	// Empty when the caller supplied no attribution context.
	What string

	// Err is the underlying error, if any (for example a *label.SyntaxError).
	Err error

	msg string
}

func (e *ConversionError) Error() string { return e.msg }

func (e *ConversionError) Unwrap() error { return e.Err }

// newConversionError builds the standard shape-mismatch message:
// "expected value of type 'T' for WHAT, but got VALUE (gotype)".
func newConversionError(t Type, x interface{}, what string) *ConversionError {
	msg := fmt.Sprintf("expected value of type '%s'", t.Name())
	if what != "" {
		msg += " for " + what
	}
	msg += fmt.Sprintf(", but got %s (%s)", Repr(x), rawTypeName(x))
	return &ConversionError{TypeName: t.Name(), Value: x, What: what, msg: msg}
}

// newLabelError wraps a reference-syntax failure, echoing the literal:
// "invalid label 'TEXT' for WHAT: reason".
func newLabelError(t Type, text, what string, err error) *ConversionError {
	var serr *label.SyntaxError
	reason := err.Error()
	if errors.As(err, &serr) {
		reason = serr.Reason
	}
	msg := fmt.Sprintf("invalid label '%s'", text)
	if what != "" {
		msg += " for " + what
	}
	msg += ": " + reason
	return &ConversionError{TypeName: t.Name(), Value: text, What: what, Err: err, msg: msg}
}

// conversionErrorf reports structural failures that are neither a plain
// shape mismatch nor a label-syntax error: bad structured-value fields,
// duplicate selector keys, non-list select concatenation. Same
// propagation policy as any other conversion failure.
func conversionErrorf(t Type, what, format string, args ...interface{}) *ConversionError {
	msg := fmt.Sprintf(format, args...)
	if what != "" {
		msg += " for " + what
	}
	return &ConversionError{TypeName: t.Name(), What: what, msg: msg}
}

// rawTypeName names a raw value's shape for diagnostics.
func rawTypeName(x interface{}) string {
	switch x.(type) {
	case nil:
		return "NoneType"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64:
		return "int"
	case []interface{}, []string:
		return "list"
	case map[string]interface{}:
		return "dict"
	case *SelectorValue, *SelectorExpr:
		return "select"
	case label.Label:
		return "Label"
	case *FilesetEntry:
		return "FilesetEntry"
	default:
		return fmt.Sprintf("%T", x)
	}
}
