package veloxql

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinel errors for the error classes a compile can fail with.
var (
	// ErrInvalidArgument is returned for caller errors: malformed or unknown
	// names, wrong function arity, misuse of GROUP BY/HAVING and similar.
	ErrInvalidArgument = errors.New("veloxql: invalid argument")

	// ErrAccessDenied is returned when a permission check fails.
	ErrAccessDenied = errors.New("veloxql: access denied")

	// ErrUnsupported is returned when a dialect lacks a capability the
	// query requires.
	ErrUnsupported = errors.New("veloxql: unsupported operation")
)

// ArgumentError reports an invalid argument passed to the compiler.
type ArgumentError struct {
	Name string // Offending name or construct, optional.
	Msg  string
}

// Error returns the error string.
func (e *ArgumentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("veloxql: invalid argument %q: %s", e.Name, e.Msg)
	}
	return "veloxql: invalid argument: " + e.Msg
}

// Is reports whether the target error matches ErrInvalidArgument.
func (e *ArgumentError) Is(err error) bool {
	return err == ErrInvalidArgument
}

// NewArgumentError returns a new ArgumentError.
func NewArgumentError(name, format string, args ...any) *ArgumentError {
	return &ArgumentError{Name: name, Msg: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument reports whether err is or wraps a *ArgumentError.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// AccessError represents a failed permission check on a table or column.
type AccessError struct {
	Table    string
	Column   string // Empty for table-level checks.
	Required string // Required access mode.
	Actual   string // Effective access mode.
}

// Error returns the error string.
func (e *AccessError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("veloxql: access denied to column %s.%s (required %s, have %s)", e.Table, e.Column, e.Required, e.Actual)
	}
	return fmt.Sprintf("veloxql: access denied to table %s (required %s, have %s)", e.Table, e.Required, e.Actual)
}

// Is reports whether the target error matches ErrAccessDenied.
func (e *AccessError) Is(err error) bool {
	return err == ErrAccessDenied
}

// IsAccessDenied reports whether err is or wraps a *AccessError.
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }

// UnsupportedError reports a capability missing from a dialect.
type UnsupportedError struct {
	Dialect string
	Feature string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	if e.Dialect != "" {
		return fmt.Sprintf("veloxql: %s is not supported by dialect %s", e.Feature, e.Dialect)
	}
	return fmt.Sprintf("veloxql: %s is not supported", e.Feature)
}

// Is reports whether the target error matches ErrUnsupported.
func (e *UnsupportedError) Is(err error) bool {
	return err == ErrUnsupported
}

// NewUnsupportedError returns a new UnsupportedError.
func NewUnsupportedError(dialect, feature string) *UnsupportedError {
	return &UnsupportedError{Dialect: dialect, Feature: feature}
}

// IsUnsupported reports whether err is or wraps a *UnsupportedError.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// InvariantError is the panic value raised when an enum value reaches a
// branch that must be unreachable. It signals a bug, not bad input, and is
// never returned as an error.
type InvariantError struct {
	Where string
	Value any
}

// Error returns the error string.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("veloxql: internal invariant violated in %s: unexpected %T(%v)", e.Where, e.Value, e.Value)
}

// Unreachable panics with an InvariantError.
func Unreachable(where string, v any) {
	panic(&InvariantError{Where: where, Value: v})
}

// CompileError wraps a compile failure with the table being compiled.
type CompileError struct {
	Table string
	Err   error
}

// Error returns the error string.
func (e *CompileError) Error() string {
	return fmt.Sprintf("veloxql: compiling select from %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// AggregateError holds the failures of independent compiles run together.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	var sb strings.Builder
	sb.WriteString("veloxql: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// NewAggregateError drops nil errors and returns nil for none, the error
// itself for one, and an *AggregateError otherwise.
func NewAggregateError(errs ...error) error {
	errs = slices.DeleteFunc(slices.Clone(errs), func(err error) bool { return err == nil })
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &AggregateError{Errors: errs}
}
