package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema/field"
)

// Formatter compiles expressions and filters into SQL text. It routes every
// node kind to its emission rule and delegates leaf decisions (quoting,
// literals, function names) to a Dialect. A Formatter holds no per-call
// state; all state lives in the Builder and FormatOptions.
type Formatter struct {
	d Dialect
}

// NewFormatter returns a formatter backed by the given rule set.
func NewFormatter(d Dialect) *Formatter {
	return &Formatter{d: d}
}

// Dialect returns the rule set of the formatter.
func (f *Formatter) Dialect() Dialect { return f.d }

// Capabilities returns the capabilities of the rule set.
func (f *Formatter) Capabilities() dialect.Capabilities { return f.d.Capabilities() }

// Ident writes a quoted identifier.
func (f *Formatter) Ident(b *Builder, name string) error {
	s, err := f.d.Quote(name)
	if err != nil {
		return err
	}
	b.WriteString(s)
	return nil
}

// Qualified writes alias.column with both parts quoted.
func (f *Formatter) Qualified(b *Builder, alias, column string) error {
	if err := f.Ident(b, alias); err != nil {
		return err
	}
	b.WriteByte('.')
	return f.Ident(b, column)
}

// NeedsParentheses reports whether an expression must be parenthesized when
// nested inside another one. Only the arithmetic operators do.
func NeedsParentheses(x ql.Expr) bool {
	fn, ok := x.(*ql.FuncExpr)
	return ok && fn.Kind.Arithmetic()
}

// negative reports whether a numeric constant is written with a leading
// minus sign.
func negative(v any) bool {
	switch v := v.(type) {
	case int64:
		return v < 0
	case float64:
		return math.Signbit(v)
	case decimal.Decimal:
		return v.Sign() < 0
	}
	return false
}

// Expr writes an expression.
func (f *Formatter) Expr(b *Builder, x ql.Expr, opts FormatOptions) error {
	switch x := x.(type) {
	case nil:
		return veloxql.NewArgumentError("", "missing expression")
	case *ql.ColumnExpr:
		return f.column(b, x.Name)
	case *ql.ConstExpr:
		t := x.Type
		if t == field.TypeUnknown {
			t = opts.WantedType
		}
		s, err := f.Literal(x.Value, t)
		if err != nil {
			return err
		}
		b.WriteString(s)
		return nil
	case *ql.FuncExpr:
		return f.function(b, x, opts)
	case *ql.AggregateExpr:
		return f.aggregate(b, x)
	default:
		veloxql.Unreachable("sql.Formatter.Expr", x)
		return nil
	}
}

// afterMinus writes the operand of a minus operator. A negative constant is
// parenthesized there: "--" starts a line comment.
func (f *Formatter) afterMinus(b *Builder, x ql.Expr, opts FormatOptions) error {
	if c, ok := x.(*ql.ConstExpr); !ok || !negative(c.Value) {
		return f.nested(b, x, opts)
	}
	b.WriteByte('(')
	if err := f.Expr(b, x, opts); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

// nested writes an operand of another expression, parenthesized when
// NeedsParentheses says so and opts does not suppress it.
func (f *Formatter) nested(b *Builder, x ql.Expr, opts FormatOptions) error {
	if opts.NoParentheses || !NeedsParentheses(x) {
		return f.Expr(b, x, opts)
	}
	b.WriteByte('(')
	if err := f.Expr(b, x, opts); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

func (f *Formatter) column(b *Builder, name string) error {
	if alias, ok := b.Alias(name); ok {
		return f.Qualified(b, alias, name[strings.LastIndexByte(name, '.')+1:])
	}
	if strings.Contains(name, ".") {
		return veloxql.NewArgumentError(name, "reference path was not resolved")
	}
	if t := b.Qualifier(); t != "" {
		return f.Qualified(b, t, name)
	}
	return f.Ident(b, name)
}

func (f *Formatter) function(b *Builder, x *ql.FuncExpr, opts FormatOptions) error {
	if lo, hi := x.Kind.Arity(); len(x.Args) < lo || (hi >= 0 && len(x.Args) > hi) {
		return veloxql.NewArgumentError(x.Kind.String(), "unexpected number of arguments: %d", len(x.Args))
	}
	switch {
	case x.Kind == ql.FuncNegate:
		b.WriteByte('-')
		return f.afterMinus(b, x.Args[0], opts.child().WithWantedType(operandType(b, x.Args)))
	case x.Kind.Arithmetic():
		child := opts.child().WithWantedType(operandType(b, x.Args))
		if err := f.nested(b, x.Args[0], child); err != nil {
			return err
		}
		b.WriteString(x.Kind.String())
		if x.Kind == ql.FuncSubtract {
			return f.afterMinus(b, x.Args[1], child)
		}
		return f.nested(b, x.Args[1], child)
	case x.Kind == ql.FuncSubstring:
		return f.substring(b, x.Args[0], x.Args[1], x.Args[2], opts)
	}
	name, err := f.d.FuncName(x.Kind)
	if err != nil {
		return err
	}
	child := opts.child().Bare()
	if x.Kind == ql.FuncCoalesce {
		child = child.WithWantedType(operandType(b, x.Args))
	}
	b.WriteString(name)
	b.WriteByte('(')
	for i, arg := range x.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := f.Expr(b, arg, child); err != nil {
			return err
		}
	}
	b.WriteByte(')')
	return nil
}

// substring writes SUBSTRING(s, start, length) with the 0-based start of the
// expression tree shifted to the 1-based start of SQL.
func (f *Formatter) substring(b *Builder, s, start, length ql.Expr, opts FormatOptions) error {
	name, err := f.d.FuncName(ql.FuncSubstring)
	if err != nil {
		return err
	}
	child := opts.child().Bare()
	one := ql.Add(start, ql.TypedConst(1, field.TypeInt))
	if c, ok := one.AsConst(); ok {
		start = c
	} else {
		start = one
	}
	b.WriteString(name)
	b.WriteByte('(')
	if err := f.Expr(b, s, child); err != nil {
		return err
	}
	b.WriteString(", ")
	if err := f.Expr(b, start, child.WithWantedType(field.TypeInt)); err != nil {
		return err
	}
	b.WriteString(", ")
	if err := f.Expr(b, length, child.WithWantedType(field.TypeInt)); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

func (f *Formatter) aggregate(b *Builder, x *ql.AggregateExpr) error {
	name, err := f.d.AggName(x.Kind)
	if err != nil {
		return err
	}
	b.WriteString(name)
	b.WriteByte('(')
	if x.Arg == nil {
		if x.Kind != ql.AggCount {
			return veloxql.NewArgumentError(x.Kind.String(), "missing argument")
		}
		b.WriteByte('*')
	} else if err := f.Expr(b, x.Arg, FormatOptions{NoParentheses: true}); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

// operandType returns the type untyped operands of xs are formatted as: the
// first known type among them, Int otherwise.
func operandType(b *Builder, xs []ql.Expr) field.Type {
	for _, x := range xs {
		if t := TypeOf(b, x); t != field.TypeUnknown {
			return t
		}
	}
	return field.TypeInt
}

// TypeOf returns the type of an expression as far as the recorded column
// metadata tells.
func TypeOf(b *Builder, x ql.Expr) field.Type {
	switch x := x.(type) {
	case *ql.ColumnExpr:
		if b != nil {
			if info, ok := b.Column(x.Name); ok {
				return info.Type
			}
		}
	case *ql.ConstExpr:
		return x.Type
	case *ql.FuncExpr:
		switch x.Kind {
		case ql.FuncLength:
			return field.TypeInt
		case ql.FuncLower, ql.FuncUpper, ql.FuncSubstring:
			return field.TypeString
		}
		for _, arg := range x.Args {
			if t := TypeOf(b, arg); t != field.TypeUnknown {
				return t
			}
		}
	case *ql.AggregateExpr:
		switch x.Kind {
		case ql.AggCount:
			return field.TypeInt
		case ql.AggAvg:
			return field.TypeFloat
		}
		if x.Arg != nil {
			return TypeOf(b, x.Arg)
		}
	}
	return field.TypeUnknown
}

// Literal returns the literal of a value formatted as the given type. An
// unknown type is inferred from the value.
func (f *Formatter) Literal(v any, t field.Type) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	if t == field.TypeUnknown {
		t = field.Infer(v)
	}
	if fv, ok := v.(float64); ok && (math.IsNaN(fv) || math.IsInf(fv, 0)) {
		return "", veloxql.NewArgumentError(strconv.FormatFloat(fv, 'g', -1, 64), "non-finite number has no %s literal", t)
	}
	switch t {
	case field.TypeString, field.TypeMemo, field.TypeXML:
		switch v := v.(type) {
		case string:
			return f.d.FormatString(v), nil
		case fmt.Stringer:
			return f.d.FormatString(v.String()), nil
		case []byte:
			return f.d.FormatString(string(v)), nil
		}
	case field.TypeBool:
		if v, ok := v.(bool); ok {
			return f.d.FormatBool(v), nil
		}
	case field.TypeInt:
		switch v := v.(type) {
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		case decimal.Decimal:
			if v.IsInteger() {
				return v.String(), nil
			}
		}
	case field.TypeFloat:
		switch v := v.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case decimal.Decimal:
			return v.String(), nil
		}
	case field.TypeMoney:
		switch v := v.(type) {
		case decimal.Decimal:
			return v.String(), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return decimal.NewFromFloat(v).String(), nil
		}
	case field.TypeDate:
		if v, ok := v.(time.Time); ok {
			return f.d.FormatDateTime(v, true, false), nil
		}
	case field.TypeDateTime:
		if v, ok := v.(time.Time); ok {
			return f.d.FormatDateTime(v, true, hasClock(v)), nil
		}
	case field.TypeTime:
		switch v := v.(type) {
		case time.Duration:
			return f.d.FormatDateTime(time.Time{}.Add(v), false, true), nil
		case time.Time:
			return f.d.FormatDateTime(v, false, true), nil
		}
	case field.TypeGUID:
		switch v := v.(type) {
		case uuid.UUID:
			return f.d.FormatString(v.String()), nil
		case string:
			u, err := uuid.Parse(v)
			if err != nil {
				return "", veloxql.NewArgumentError(v, "invalid guid: %v", err)
			}
			return f.d.FormatString(u.String()), nil
		}
	case field.TypeBinary:
		if v, ok := v.([]byte); ok {
			return f.d.FormatBinary(v)
		}
	}
	return "", veloxql.NewArgumentError(t.String(), "cannot format %T as a %s literal", v, t)
}

func hasClock(t time.Time) bool {
	return t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0
}
