package querylanguage

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/schema/field"
)

// A Node is a node in the query AST. Nodes are immutable and may be shared
// between goroutines and queries.
type Node interface {
	fmt.Stringer
	// ReferencedColumns returns the names of all columns used in the subtree,
	// in first-seen order and without duplicates. Dotted paths are kept.
	ReferencedColumns() []string
	node()
}

// Expr is a scalar expression: a column, a constant, a function call or an
// aggregate call.
type Expr interface {
	Node
	// Evaluate computes the value of the expression against a row. With
	// nullAsDefault set, NULL operands of comparisons are replaced by the
	// default value of the compared type.
	Evaluate(row Row, nullAsDefault bool) (any, error)
	// AsConst returns the constant the expression folds to, if any.
	AsConst() (*ConstExpr, bool)
	// WithColumnPrefix returns a copy of the expression with every column
	// name prefixed by the given reference path.
	WithColumnPrefix(prefix string) Expr
	expr()
}

// Row gives access to the named values of a row during in-memory evaluation.
type Row interface {
	Value(column string) (any, bool)
}

// MapRow is a Row backed by a map. Dotted paths are plain keys.
type MapRow map[string]any

// Value implements Row.
func (r MapRow) Value(column string) (any, bool) {
	v, ok := r[column]
	return v, ok
}

// ColumnExpr references a column by name. The name may be a dotted reference
// path (e.g. "OwnerId.Name") which is resolved at compile time.
type ColumnExpr struct {
	Name string
}

// Column returns a column reference.
func Column(name string) *ColumnExpr {
	return &ColumnExpr{Name: name}
}

// F is a shorthand for Column.
func F(name string) *ColumnExpr {
	return Column(name)
}

// String returns the column name.
func (c *ColumnExpr) String() string { return c.Name }

// ReferencedColumns implements Node.
func (c *ColumnExpr) ReferencedColumns() []string { return []string{c.Name} }

// Evaluate returns the value of the column in the row.
func (c *ColumnExpr) Evaluate(row Row, _ bool) (any, error) {
	if row == nil {
		return nil, veloxql.NewArgumentError(c.Name, "no row to evaluate column against")
	}
	v, ok := row.Value(c.Name)
	if !ok {
		return nil, veloxql.NewArgumentError(c.Name, "unknown column")
	}
	return normalize(v), nil
}

// AsConst implements Expr.
func (*ColumnExpr) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Expr.
func (c *ColumnExpr) WithColumnPrefix(prefix string) Expr {
	if prefix == "" {
		return c
	}
	return &ColumnExpr{Name: prefix + "." + c.Name}
}

// ConstExpr is a typed constant. A nil Value is the NULL of its type.
type ConstExpr struct {
	Value any
	Type  field.Type
}

// Const returns a constant with a type inferred from its Go value. Integer
// kinds are stored as int64 and float kinds as float64.
func Const(v any) *ConstExpr {
	t := field.Infer(v)
	v = normalize(v)
	if t == field.TypeUnknown {
		t = field.Infer(v)
	}
	return &ConstExpr{Value: v, Type: t}
}

// TypedConst returns a constant with an explicit declared type. Numbers are
// converted to the representation of a numeric declared type.
func TypedConst(v any, t field.Type) *ConstExpr {
	v = normalize(v)
	switch x := v.(type) {
	case int64:
		switch t {
		case field.TypeFloat:
			v = float64(x)
		case field.TypeMoney:
			v = decimal.NewFromInt(x)
		}
	case float64:
		// Non-finite values stay floats and are rejected when formatted.
		if t == field.TypeMoney && !math.IsNaN(x) && !math.IsInf(x, 0) {
			v = decimal.NewFromFloat(x)
		}
	}
	return &ConstExpr{Value: v, Type: t}
}

// Null returns the NULL constant of the given type.
func Null(t field.Type) *ConstExpr {
	return &ConstExpr{Type: t}
}

// IsNull reports whether the constant is NULL.
func (c *ConstExpr) IsNull() bool { return c.Value == nil }

// String returns the constant in its textual form.
func (c *ConstExpr) String() string { return formatValue(c.Value) }

// ReferencedColumns implements Node.
func (*ConstExpr) ReferencedColumns() []string { return nil }

// Evaluate returns the constant value.
func (c *ConstExpr) Evaluate(Row, bool) (any, error) { return c.Value, nil }

// AsConst implements Expr.
func (c *ConstExpr) AsConst() (*ConstExpr, bool) { return c, true }

// WithColumnPrefix implements Expr.
func (c *ConstExpr) WithColumnPrefix(string) Expr { return c }

// fromUint64 keeps unsigned values that overflow int64 exact as decimals.
func fromUint64(v uint64) any {
	if v > math.MaxInt64 {
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
	}
	return int64(v)
}

// normalize maps Go values to the representation stored in constants.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return fromUint64(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return fromUint64(v)
	case float32:
		return float64(v)
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		return *v
	case *uuid.UUID:
		if v == nil {
			return nil
		}
		return *v
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	case *string:
		if v == nil {
			return nil
		}
		return *v
	}
	return v
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return strconv.Quote(v.Format(time.DateOnly))
		}
		return strconv.Quote(v.Format(time.RFC3339Nano))
	case time.Duration:
		return strconv.Quote(v.String())
	case uuid.UUID:
		return strconv.Quote(v.String())
	case []byte:
		return strconv.Quote(base64.StdEncoding.EncodeToString(v))
	}
	return fmt.Sprint(v)
}

// FuncKind is a scalar function kind.
type FuncKind uint8

// Scalar function kinds.
const (
	FuncAdd FuncKind = iota
	FuncSubtract
	FuncMultiply
	FuncDivide
	FuncNegate
	FuncAbs
	FuncCoalesce
	FuncLength
	FuncLower
	FuncUpper
	FuncSubstring
	funcEnd
)

// arity of every function kind; max < 0 means unbounded.
var funcs = [...]struct {
	name     string
	min, max int
}{
	FuncAdd:       {"+", 2, 2},
	FuncSubtract:  {"-", 2, 2},
	FuncMultiply:  {"*", 2, 2},
	FuncDivide:    {"/", 2, 2},
	FuncNegate:    {"-", 1, 1},
	FuncAbs:       {"abs", 1, 1},
	FuncCoalesce:  {"coalesce", 2, -1},
	FuncLength:    {"length", 1, 1},
	FuncLower:     {"lower", 1, 1},
	FuncUpper:     {"upper", 1, 1},
	FuncSubstring: {"substring", 3, 3},
}

// String returns the function name or operator.
func (k FuncKind) String() string {
	if k < funcEnd {
		return funcs[k].name
	}
	return "FuncKind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports if the kind is a known function kind.
func (k FuncKind) Valid() bool { return k < funcEnd }

// Arithmetic reports whether the kind is one of the five arithmetic
// operators. Only these require parentheses when nested.
func (k FuncKind) Arithmetic() bool { return k <= FuncNegate }

// Arity returns the bounds on the number of arguments. A negative max means
// the function is variadic.
func (k FuncKind) Arity() (min, max int) {
	if !k.Valid() {
		return 0, 0
	}
	return funcs[k].min, funcs[k].max
}

// FuncExpr is a scalar function call.
type FuncExpr struct {
	Kind FuncKind
	Args []Expr
}

// NewFunc returns a function call after checking the kind and arity.
func NewFunc(kind FuncKind, args ...Expr) (*FuncExpr, error) {
	if !kind.Valid() {
		return nil, veloxql.NewArgumentError(kind.String(), "unknown function kind")
	}
	lo, hi := kind.Arity()
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return nil, veloxql.NewArgumentError(kind.String(), "expects %s, got %d", arityString(lo, hi), len(args))
	}
	for i, a := range args {
		if a == nil {
			return nil, veloxql.NewArgumentError(kind.String(), "argument %d is nil", i)
		}
	}
	return &FuncExpr{Kind: kind, Args: args}, nil
}

// MustFunc is like NewFunc but panics on error.
func MustFunc(kind FuncKind, args ...Expr) *FuncExpr {
	f, err := NewFunc(kind, args...)
	if err != nil {
		panic(err)
	}
	return f
}

func arityString(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d arguments", lo)
	case lo == hi && lo == 1:
		return "1 argument"
	case lo == hi:
		return fmt.Sprintf("%d arguments", lo)
	default:
		return fmt.Sprintf("%d to %d arguments", lo, hi)
	}
}

// Add returns x + y.
func Add(x, y Expr) *FuncExpr { return &FuncExpr{Kind: FuncAdd, Args: []Expr{x, y}} }

// Sub returns x - y.
func Sub(x, y Expr) *FuncExpr { return &FuncExpr{Kind: FuncSubtract, Args: []Expr{x, y}} }

// Mul returns x * y.
func Mul(x, y Expr) *FuncExpr { return &FuncExpr{Kind: FuncMultiply, Args: []Expr{x, y}} }

// Div returns x / y.
func Div(x, y Expr) *FuncExpr { return &FuncExpr{Kind: FuncDivide, Args: []Expr{x, y}} }

// Neg returns -x.
func Neg(x Expr) *FuncExpr { return &FuncExpr{Kind: FuncNegate, Args: []Expr{x}} }

// Abs returns abs(x).
func Abs(x Expr) *FuncExpr { return &FuncExpr{Kind: FuncAbs, Args: []Expr{x}} }

// Coalesce returns the first non-NULL argument.
func Coalesce(x, y Expr, rest ...Expr) *FuncExpr {
	return &FuncExpr{Kind: FuncCoalesce, Args: append([]Expr{x, y}, rest...)}
}

// Length returns the length of a string in characters.
func Length(x Expr) *FuncExpr { return &FuncExpr{Kind: FuncLength, Args: []Expr{x}} }

// Lower returns x in lower case.
func Lower(x Expr) *FuncExpr { return &FuncExpr{Kind: FuncLower, Args: []Expr{x}} }

// Upper returns x in upper case.
func Upper(x Expr) *FuncExpr { return &FuncExpr{Kind: FuncUpper, Args: []Expr{x}} }

// Substring returns length characters of s starting at the 0-based start.
func Substring(s, start, length Expr) *FuncExpr {
	return &FuncExpr{Kind: FuncSubstring, Args: []Expr{s, start, length}}
}

// String returns the function call in its textual form.
func (f *FuncExpr) String() string {
	switch {
	case f.Kind == FuncNegate && len(f.Args) == 1:
		return "-" + f.Args[0].String()
	case f.Kind.Arithmetic() && len(f.Args) == 2:
		return "(" + f.Args[0].String() + " " + f.Kind.String() + " " + f.Args[1].String() + ")"
	}
	var b strings.Builder
	b.WriteString(f.Kind.String())
	b.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// ReferencedColumns implements Node.
func (f *FuncExpr) ReferencedColumns() []string {
	var c columnSet
	for _, a := range f.Args {
		c.add(a)
	}
	return c.names
}

// Evaluate computes the function. NULL arguments yield NULL, except for
// coalesce.
func (f *FuncExpr) Evaluate(row Row, nullAsDefault bool) (any, error) {
	args := make([]any, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Evaluate(row, nullAsDefault)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return evalFunc(f.Kind, args)
}

// AsConst folds the call if every argument is constant.
func (f *FuncExpr) AsConst() (*ConstExpr, bool) {
	for _, a := range f.Args {
		if _, ok := a.AsConst(); !ok {
			return nil, false
		}
	}
	v, err := f.Evaluate(nil, false)
	if err != nil {
		return nil, false
	}
	return Const(v), true
}

// WithColumnPrefix implements Expr.
func (f *FuncExpr) WithColumnPrefix(prefix string) Expr {
	args := make([]Expr, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.WithColumnPrefix(prefix)
	}
	return &FuncExpr{Kind: f.Kind, Args: args}
}

// AggKind is an aggregate function kind.
type AggKind uint8

// Aggregate function kinds.
const (
	AggSum AggKind = iota
	AggCount
	AggMin
	AggMax
	AggAvg
	aggEnd
)

var aggNames = [...]string{
	AggSum:   "sum",
	AggCount: "count",
	AggMin:   "min",
	AggMax:   "max",
	AggAvg:   "avg",
}

// String returns the aggregate name.
func (k AggKind) String() string {
	if k < aggEnd {
		return aggNames[k]
	}
	return "AggKind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports if the kind is a known aggregate kind.
func (k AggKind) Valid() bool { return k < aggEnd }

// AggregateExpr is an aggregate call. Arg is nil only for count(*).
type AggregateExpr struct {
	Kind AggKind
	Arg  Expr
}

// NewAggregate returns an aggregate call after checking its argument.
func NewAggregate(kind AggKind, arg Expr) (*AggregateExpr, error) {
	if !kind.Valid() {
		return nil, veloxql.NewArgumentError(kind.String(), "unknown aggregate kind")
	}
	if arg == nil && kind != AggCount {
		return nil, veloxql.NewArgumentError(kind.String(), "expects 1 argument, got 0")
	}
	return &AggregateExpr{Kind: kind, Arg: arg}, nil
}

// Sum returns sum(x).
func Sum(x Expr) *AggregateExpr { return &AggregateExpr{Kind: AggSum, Arg: x} }

// Count returns count(x).
func Count(x Expr) *AggregateExpr { return &AggregateExpr{Kind: AggCount, Arg: x} }

// CountAll returns count(*).
func CountAll() *AggregateExpr { return &AggregateExpr{Kind: AggCount} }

// Min returns min(x).
func Min(x Expr) *AggregateExpr { return &AggregateExpr{Kind: AggMin, Arg: x} }

// Max returns max(x).
func Max(x Expr) *AggregateExpr { return &AggregateExpr{Kind: AggMax, Arg: x} }

// Avg returns avg(x).
func Avg(x Expr) *AggregateExpr { return &AggregateExpr{Kind: AggAvg, Arg: x} }

// String returns the aggregate call in its textual form.
func (a *AggregateExpr) String() string {
	if a.Arg == nil {
		return a.Kind.String() + "(*)"
	}
	return a.Kind.String() + "(" + a.Arg.String() + ")"
}

// ReferencedColumns implements Node.
func (a *AggregateExpr) ReferencedColumns() []string {
	if a.Arg == nil {
		return nil
	}
	return a.Arg.ReferencedColumns()
}

// Evaluate always fails: an aggregate has no single-row value.
func (a *AggregateExpr) Evaluate(Row, bool) (any, error) {
	return nil, veloxql.NewUnsupportedError("", "evaluating aggregate "+a.Kind.String()+" against a single row")
}

// AsConst implements Expr.
func (*AggregateExpr) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Expr.
func (a *AggregateExpr) WithColumnPrefix(prefix string) Expr {
	if a.Arg == nil {
		return a
	}
	return &AggregateExpr{Kind: a.Kind, Arg: a.Arg.WithColumnPrefix(prefix)}
}

// columnSet collects column names in first-seen order.
type columnSet struct {
	names []string
	seen  map[string]struct{}
}

func (c *columnSet) add(n Node) {
	if n == nil {
		return
	}
	for _, name := range n.ReferencedColumns() {
		if c.seen == nil {
			c.seen = make(map[string]struct{})
		}
		if _, ok := c.seen[name]; ok {
			continue
		}
		c.seen[name] = struct{}{}
		c.names = append(c.names, name)
	}
}

func (*ColumnExpr) node()    {}
func (*ConstExpr) node()     {}
func (*FuncExpr) node()      {}
func (*AggregateExpr) node() {}

func (*ColumnExpr) expr()    {}
func (*ConstExpr) expr()     {}
func (*FuncExpr) expr()      {}
func (*AggregateExpr) expr() {}
