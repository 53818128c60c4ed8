package compiler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks errors caused by a malformed layer document:
	// empty combinator levels, a missing output kind, unsupported leaf shapes.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvariantViolation marks internal defects, such as an invalid
	// column in a dependency set or an IR node no backend understands.
	// It is never recoverable.
	ErrInvariantViolation = errors.New("invariant violation")
)

// CompileError describes a failure while compiling one layer.
//
// Field is a path into the layer document, e.g. "filters[2].filter.any[0]".
// Err is the sentinel the error unwraps to; when nil it is ErrConfiguration.
type CompileError struct {
	Layer   string
	Field   string
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Layer != "" {
		fmt.Fprintf(&b, "layer %s: ", e.Layer)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the sentinel category so callers can use errors.Is.
func (e *CompileError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfiguration
}

// configErrorf builds a configuration CompileError at field.
func configErrorf(field, format string, args ...any) *CompileError {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrConfiguration,
	}
}

// invariantErrorf builds an invariant-violation CompileError at field.
func invariantErrorf(field, format string, args ...any) *CompileError {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvariantViolation,
	}
}

// withLayer stamps the layer name onto a CompileError, or wraps any other
// error as an invariant violation: every non-configuration failure inside
// the compiler comes from the IR or the backend.
func withLayer(layer string, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		if ce.Layer == "" {
			ce.Layer = layer
		}
		return ce
	}
	return &CompileError{
		Layer:   layer,
		Message: err.Error(),
		Err:     ErrInvariantViolation,
	}
}

// joinPath appends a child segment to a document path.
func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if strings.HasPrefix(child, "[") {
		return parent + child
	}
	return parent + "." + child
}

// indexPath appends a list index to a document path.
func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
