package sql

import "github.com/syssam/veloxql/schema/field"

// FormatOptions are the per-call options of the formatter. They are passed
// by value down the recursion; a call site derives new options for its
// children instead of mutating its own.
type FormatOptions struct {
	// NullAsDefault compares nullable columns as the default value of their
	// type when NULL.
	NullAsDefault bool
	// WantedType is the type untyped constants are formatted as.
	WantedType field.Type
	// NoParentheses suppresses the parentheses around a nested expression.
	NoParentheses bool
}

// WithWantedType returns a copy of o with the wanted type set.
func (o FormatOptions) WithWantedType(t field.Type) FormatOptions {
	o.WantedType = t
	return o
}

// WithNullAsDefault returns a copy of o with NullAsDefault set.
func (o FormatOptions) WithNullAsDefault(v bool) FormatOptions {
	o.NullAsDefault = v
	return o
}

// Bare returns a copy of o that suppresses parentheses.
func (o FormatOptions) Bare() FormatOptions {
	o.NoParentheses = true
	return o
}

// child returns the options of a nested operand: parentheses are decided
// again and the wanted type is not inherited.
func (o FormatOptions) child() FormatOptions {
	o.NoParentheses = false
	o.WantedType = field.TypeUnknown
	return o
}
