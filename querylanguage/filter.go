package querylanguage

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/schema/field"
)

// Filter is a boolean predicate.
type Filter interface {
	Node
	// Evaluate reports whether the row satisfies the filter.
	Evaluate(row Row, nullAsDefault bool) (bool, error)
	// AsConst returns the boolean constant the filter folds to, if any.
	AsConst() (*ConstExpr, bool)
	// WithColumnPrefix returns a copy of the filter with every column name
	// prefixed by the given reference path.
	WithColumnPrefix(prefix string) Filter
	filter()
}

// An Op represents a comparison operator.
type Op int

// Comparison operators.
const (
	OpEQ  Op = iota // ==
	OpNEQ           // !=
	OpGT            // >
	OpGTE           // >=
	OpLT            // <
	OpLTE           // <=
	opEnd
)

var ops = [...]string{
	OpEQ:  "==",
	OpNEQ: "!=",
	OpGT:  ">",
	OpGTE: ">=",
	OpLT:  "<",
	OpLTE: "<=",
}

// String returns the operator.
func (o Op) String() string {
	if o >= 0 && o < opEnd {
		return ops[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Valid reports if the operator is known.
func (o Op) Valid() bool { return o >= 0 && o < opEnd }

// ParseOp parses an operator as returned by String. "=" and "<>" are
// accepted too.
func ParseOp(s string) (Op, error) {
	switch s {
	case "==", "=":
		return OpEQ, nil
	case "!=", "<>":
		return OpNEQ, nil
	case ">":
		return OpGT, nil
	case ">=":
		return OpGTE, nil
	case "<":
		return OpLT, nil
	case "<=":
		return OpLTE, nil
	}
	return 0, veloxql.NewArgumentError(s, "unknown comparison operator")
}

// holds reports whether the operator holds for a three-way comparison result.
func (o Op) holds(c int) bool {
	switch o {
	case OpEQ:
		return c == 0
	case OpNEQ:
		return c != 0
	case OpGT:
		return c > 0
	case OpGTE:
		return c >= 0
	case OpLT:
		return c < 0
	case OpLTE:
		return c <= 0
	}
	veloxql.Unreachable("querylanguage.Op.holds", o)
	return false
}

// CompareFilter compares two expressions. With NullAsDefault set, nullable
// operands compare as the default value of their type when NULL.
type CompareFilter struct {
	Op            Op
	Left, Right   Expr
	NullAsDefault bool
}

// Compare returns a comparison filter.
func Compare(op Op, x, y Expr) *CompareFilter {
	return &CompareFilter{Op: op, Left: x, Right: y}
}

// CompareNullAsDefault returns a comparison filter that treats NULL operands
// as the default value of their type.
func CompareNullAsDefault(op Op, x, y Expr) *CompareFilter {
	return &CompareFilter{Op: op, Left: x, Right: y, NullAsDefault: true}
}

// EQ returns a filter for x == y.
func EQ(x, y Expr) *CompareFilter { return Compare(OpEQ, x, y) }

// NEQ returns a filter for x != y.
func NEQ(x, y Expr) *CompareFilter { return Compare(OpNEQ, x, y) }

// GT returns a filter for x > y.
func GT(x, y Expr) *CompareFilter { return Compare(OpGT, x, y) }

// GTE returns a filter for x >= y.
func GTE(x, y Expr) *CompareFilter { return Compare(OpGTE, x, y) }

// LT returns a filter for x < y.
func LT(x, y Expr) *CompareFilter { return Compare(OpLT, x, y) }

// LTE returns a filter for x <= y.
func LTE(x, y Expr) *CompareFilter { return Compare(OpLTE, x, y) }

// String returns the filter in its textual form.
func (f *CompareFilter) String() string {
	s := f.Left.String() + " " + f.Op.String() + " " + f.Right.String()
	if f.NullAsDefault {
		return "default(" + s + ")"
	}
	return s
}

// ReferencedColumns implements Node.
func (f *CompareFilter) ReferencedColumns() []string {
	var c columnSet
	c.add(f.Left)
	c.add(f.Right)
	return c.names
}

// Evaluate implements Filter. A comparison against a NULL constant is an
// IS [NOT] NULL test; other operators are invalid against NULL.
func (f *CompareFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	nullAsDefault = nullAsDefault || f.NullAsDefault
	x, err := f.Left.Evaluate(row, nullAsDefault)
	if err != nil {
		return false, err
	}
	if c, ok := f.Right.AsConst(); ok && c.IsNull() {
		switch f.Op {
		case OpEQ:
			return x == nil, nil
		case OpNEQ:
			return x != nil, nil
		default:
			return false, veloxql.NewArgumentError(f.Op.String(), "operator cannot be used with NULL")
		}
	}
	y, err := f.Right.Evaluate(row, nullAsDefault)
	if err != nil {
		return false, err
	}
	if x == nil || y == nil {
		if !nullAsDefault {
			return false, nil
		}
		if x, y, err = defaultNulls(x, y, exprType(f.Left), exprType(f.Right)); err != nil || x == nil || y == nil {
			return false, err
		}
	}
	cmp, err := compareValues(x, y)
	if err != nil {
		return false, err
	}
	return f.Op.holds(cmp), nil
}

// AsConst implements Filter.
func (*CompareFilter) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Filter.
func (f *CompareFilter) WithColumnPrefix(prefix string) Filter {
	return &CompareFilter{Op: f.Op, Left: f.Left.WithColumnPrefix(prefix), Right: f.Right.WithColumnPrefix(prefix), NullAsDefault: f.NullAsDefault}
}

// IDsFilter tests an expression for membership in a list of integer ids.
type IDsFilter struct {
	Expr Expr
	IDs  []int64
}

// IDs returns a filter matching rows whose expression is one of the ids.
// With no ids, nothing matches.
func IDs(x Expr, ids ...int64) *IDsFilter {
	return &IDsFilter{Expr: x, IDs: ids}
}

// String returns the filter in its textual form.
func (f *IDsFilter) String() string {
	vs := make([]string, len(f.IDs))
	for i, id := range f.IDs {
		vs[i] = strconv.FormatInt(id, 10)
	}
	return f.Expr.String() + " in [" + strings.Join(vs, ",") + "]"
}

// ReferencedColumns implements Node.
func (f *IDsFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *IDsFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	v, err := f.Expr.Evaluate(row, nullAsDefault)
	if err != nil || v == nil {
		return false, err
	}
	id, ok := v.(int64)
	if !ok {
		return false, veloxql.NewArgumentError(f.Expr.String(), "id value of type %T is not an integer", v)
	}
	for _, x := range f.IDs {
		if x == id {
			return true, nil
		}
	}
	return false, nil
}

// AsConst implements Filter.
func (f *IDsFilter) AsConst() (*ConstExpr, bool) {
	if len(f.IDs) == 0 {
		return TypedConst(false, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *IDsFilter) WithColumnPrefix(prefix string) Filter {
	return &IDsFilter{Expr: f.Expr.WithColumnPrefix(prefix), IDs: f.IDs}
}

// ValuesFilter tests an expression for membership in a list of typed values.
type ValuesFilter struct {
	Expr   Expr
	Values []*ConstExpr
}

// In returns a filter matching rows whose expression equals one of the
// values. Value types are inferred.
func In(x Expr, vs ...any) *ValuesFilter {
	cs := make([]*ConstExpr, len(vs))
	for i, v := range vs {
		cs[i] = Const(v)
	}
	return &ValuesFilter{Expr: x, Values: cs}
}

// InTyped is like In with an explicit value type.
func InTyped(x Expr, t field.Type, vs ...any) *ValuesFilter {
	cs := make([]*ConstExpr, len(vs))
	for i, v := range vs {
		cs[i] = TypedConst(v, t)
	}
	return &ValuesFilter{Expr: x, Values: cs}
}

// String returns the filter in its textual form.
func (f *ValuesFilter) String() string {
	vs := make([]string, len(f.Values))
	for i, v := range f.Values {
		vs[i] = v.String()
	}
	return f.Expr.String() + " in [" + strings.Join(vs, ",") + "]"
}

// ReferencedColumns implements Node.
func (f *ValuesFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *ValuesFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	v, err := f.Expr.Evaluate(row, nullAsDefault)
	if err != nil || v == nil {
		return false, err
	}
	for _, c := range f.Values {
		if c.IsNull() {
			continue
		}
		cmp, err := compareValues(v, c.Value)
		if err != nil {
			return false, err
		}
		if cmp == 0 {
			return true, nil
		}
	}
	return false, nil
}

// AsConst implements Filter.
func (f *ValuesFilter) AsConst() (*ConstExpr, bool) {
	if len(f.Values) == 0 {
		return TypedConst(false, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *ValuesFilter) WithColumnPrefix(prefix string) Filter {
	return &ValuesFilter{Expr: f.Expr.WithColumnPrefix(prefix), Values: f.Values}
}

// StartsWithFilter tests a string expression for a prefix.
type StartsWithFilter struct {
	Expr       Expr
	Prefix     string
	IgnoreCase bool
}

// HasPrefix returns a filter matching strings starting with prefix.
func HasPrefix(x Expr, prefix string) *StartsWithFilter {
	return &StartsWithFilter{Expr: x, Prefix: prefix}
}

// HasPrefixFold is the case-insensitive HasPrefix.
func HasPrefixFold(x Expr, prefix string) *StartsWithFilter {
	return &StartsWithFilter{Expr: x, Prefix: prefix, IgnoreCase: true}
}

// String returns the filter in its textual form.
func (f *StartsWithFilter) String() string {
	return callString(foldName("has_prefix", f.IgnoreCase), f.Expr.String(), strconv.Quote(f.Prefix))
}

// ReferencedColumns implements Node.
func (f *StartsWithFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *StartsWithFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	s, ok, err := evalString(f.Expr, row, nullAsDefault)
	if err != nil || !ok {
		return false, err
	}
	p := f.Prefix
	if f.IgnoreCase {
		s, p = upper(s), upper(p)
	}
	return strings.HasPrefix(s, p), nil
}

// AsConst implements Filter.
func (*StartsWithFilter) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Filter.
func (f *StartsWithFilter) WithColumnPrefix(prefix string) Filter {
	return &StartsWithFilter{Expr: f.Expr.WithColumnPrefix(prefix), Prefix: f.Prefix, IgnoreCase: f.IgnoreCase}
}

// SubstringFilter tests whether a string expression contains Value at the
// 0-based character offset Start.
type SubstringFilter struct {
	Expr       Expr
	Start      int
	Value      string
	IgnoreCase bool
}

// SubstringAt returns a filter matching strings containing value at start.
func SubstringAt(x Expr, start int, value string) *SubstringFilter {
	return &SubstringFilter{Expr: x, Start: start, Value: value}
}

// SubstringAtFold is the case-insensitive SubstringAt.
func SubstringAtFold(x Expr, start int, value string) *SubstringFilter {
	return &SubstringFilter{Expr: x, Start: start, Value: value, IgnoreCase: true}
}

// String returns the filter in its textual form.
func (f *SubstringFilter) String() string {
	return callString(foldName("substring_at", f.IgnoreCase), f.Expr.String(), strconv.Itoa(f.Start), strconv.Quote(f.Value))
}

// ReferencedColumns implements Node.
func (f *SubstringFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *SubstringFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	s, ok, err := evalString(f.Expr, row, nullAsDefault)
	if err != nil || !ok {
		return false, err
	}
	v := f.Value
	s = substring(s, int64(f.Start), int64(len([]rune(v))))
	if f.IgnoreCase {
		s, v = upper(s), upper(v)
	}
	return s == v, nil
}

// AsConst implements Filter.
func (*SubstringFilter) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Filter.
func (f *SubstringFilter) WithColumnPrefix(prefix string) Filter {
	return &SubstringFilter{Expr: f.Expr.WithColumnPrefix(prefix), Start: f.Start, Value: f.Value, IgnoreCase: f.IgnoreCase}
}

// ContainsFilter tests whether a string expression contains Value anywhere.
type ContainsFilter struct {
	Expr       Expr
	Value      string
	IgnoreCase bool
}

// Contains returns a filter matching strings containing value.
func Contains(x Expr, value string) *ContainsFilter {
	return &ContainsFilter{Expr: x, Value: value}
}

// ContainsFold is the case-insensitive Contains.
func ContainsFold(x Expr, value string) *ContainsFilter {
	return &ContainsFilter{Expr: x, Value: value, IgnoreCase: true}
}

// String returns the filter in its textual form.
func (f *ContainsFilter) String() string {
	return callString(foldName("contains", f.IgnoreCase), f.Expr.String(), strconv.Quote(f.Value))
}

// ReferencedColumns implements Node.
func (f *ContainsFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *ContainsFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	s, ok, err := evalString(f.Expr, row, nullAsDefault)
	if err != nil || !ok {
		return false, err
	}
	v := f.Value
	if f.IgnoreCase {
		s, v = upper(s), upper(v)
	}
	return strings.Contains(s, v), nil
}

// AsConst implements Filter.
func (*ContainsFilter) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Filter.
func (f *ContainsFilter) WithColumnPrefix(prefix string) Filter {
	return &ContainsFilter{Expr: f.Expr.WithColumnPrefix(prefix), Value: f.Value, IgnoreCase: f.IgnoreCase}
}

// NumRangeFilter tests a numeric expression against a closed range. Either
// bound may be absent.
type NumRangeFilter struct {
	Expr     Expr
	Min, Max decimal.NullDecimal
}

// NumRange returns a numeric range filter.
func NumRange(x Expr, min, max decimal.NullDecimal) *NumRangeFilter {
	return &NumRangeFilter{Expr: x, Min: min, Max: max}
}

// Between returns a numeric range filter with both bounds present.
func Between(x Expr, min, max decimal.Decimal) *NumRangeFilter {
	return NumRange(x, Bound(min), Bound(max))
}

// Bound returns a present range bound.
func Bound(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// IntBound returns a present integer range bound.
func IntBound(i int64) decimal.NullDecimal {
	return Bound(decimal.NewFromInt(i))
}

// Unbounded is an absent range bound.
var Unbounded = decimal.NullDecimal{}

// String returns the filter in its textual form.
func (f *NumRangeFilter) String() string {
	return callString("between", f.Expr.String(), boundString(f.Min), boundString(f.Max))
}

func boundString(b decimal.NullDecimal) string {
	if !b.Valid {
		return "nil"
	}
	return b.Decimal.String()
}

// ReferencedColumns implements Node.
func (f *NumRangeFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *NumRangeFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	v, err := f.Expr.Evaluate(row, nullAsDefault)
	if err != nil || v == nil {
		return false, err
	}
	d, ok := toDecimal(v)
	if !ok {
		return false, veloxql.NewArgumentError(f.Expr.String(), "value of type %T is not numeric", v)
	}
	if f.Min.Valid && d.LessThan(f.Min.Decimal) {
		return false, nil
	}
	if f.Max.Valid && d.GreaterThan(f.Max.Decimal) {
		return false, nil
	}
	return true, nil
}

// AsConst implements Filter. A range without bounds is always true.
func (f *NumRangeFilter) AsConst() (*ConstExpr, bool) {
	if !f.Min.Valid && !f.Max.Valid {
		return TypedConst(true, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *NumRangeFilter) WithColumnPrefix(prefix string) Filter {
	return &NumRangeFilter{Expr: f.Expr.WithColumnPrefix(prefix), Min: f.Min, Max: f.Max}
}

// DateRangeFilter tests a date expression against a range of days. Max is
// inclusive of the whole day. A zero bound is absent.
type DateRangeFilter struct {
	Expr     Expr
	Min, Max time.Time
}

// DateRange returns a date range filter. Pass the zero time for an absent
// bound.
func DateRange(x Expr, min, max time.Time) *DateRangeFilter {
	return &DateRangeFilter{Expr: x, Min: min, Max: max}
}

// String returns the filter in its textual form.
func (f *DateRangeFilter) String() string {
	return callString("date_between", f.Expr.String(), dateString(f.Min), dateString(f.Max))
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return "nil"
	}
	return formatValue(t)
}

// ReferencedColumns implements Node.
func (f *DateRangeFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate implements Filter.
func (f *DateRangeFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	v, err := f.Expr.Evaluate(row, nullAsDefault)
	if err != nil || v == nil {
		return false, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return false, veloxql.NewArgumentError(f.Expr.String(), "value of type %T is not a date", v)
	}
	if !f.Min.IsZero() && t.Before(f.Min) {
		return false, nil
	}
	if !f.Max.IsZero() && !t.Before(NextDay(f.Max)) {
		return false, nil
	}
	return true, nil
}

// NextDay returns midnight of the day after t.
func NextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// AsConst implements Filter. A range without bounds is always true.
func (f *DateRangeFilter) AsConst() (*ConstExpr, bool) {
	if f.Min.IsZero() && f.Max.IsZero() {
		return TypedConst(true, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *DateRangeFilter) WithColumnPrefix(prefix string) Filter {
	return &DateRangeFilter{Expr: f.Expr.WithColumnPrefix(prefix), Min: f.Min, Max: f.Max}
}

// DateInclusionFilter tests whether Probe lies in the interval [First, Last].
// A NULL endpoint leaves that side of the interval open.
type DateInclusionFilter struct {
	First, Last Expr
	Probe       Expr
}

// DateIncludes returns a filter matching rows whose interval contains probe.
func DateIncludes(first, last, probe Expr) *DateInclusionFilter {
	return &DateInclusionFilter{First: first, Last: last, Probe: probe}
}

// String returns the filter in its textual form.
func (f *DateInclusionFilter) String() string {
	return callString("date_includes", f.First.String(), f.Last.String(), f.Probe.String())
}

// ReferencedColumns implements Node.
func (f *DateInclusionFilter) ReferencedColumns() []string {
	var c columnSet
	c.add(f.First)
	c.add(f.Last)
	c.add(f.Probe)
	return c.names
}

// Evaluate implements Filter.
func (f *DateInclusionFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	p, err := f.Probe.Evaluate(row, nullAsDefault)
	if err != nil || p == nil {
		return false, err
	}
	return inInterval(row, nullAsDefault, f.First, f.Last, p, p)
}

// AsConst implements Filter.
func (*DateInclusionFilter) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Filter.
func (f *DateInclusionFilter) WithColumnPrefix(prefix string) Filter {
	return &DateInclusionFilter{First: f.First.WithColumnPrefix(prefix), Last: f.Last.WithColumnPrefix(prefix), Probe: f.Probe.WithColumnPrefix(prefix)}
}

// DateOverlapFilter tests whether the interval [First, Last] overlaps the
// range [Min, Max]. NULL endpoints and zero bounds are open.
type DateOverlapFilter struct {
	First, Last Expr
	Min, Max    time.Time
}

// DateOverlaps returns a filter matching rows whose interval overlaps the
// given range.
func DateOverlaps(first, last Expr, min, max time.Time) *DateOverlapFilter {
	return &DateOverlapFilter{First: first, Last: last, Min: min, Max: max}
}

// String returns the filter in its textual form.
func (f *DateOverlapFilter) String() string {
	return callString("date_overlaps", f.First.String(), f.Last.String(), dateString(f.Min), dateString(f.Max))
}

// ReferencedColumns implements Node.
func (f *DateOverlapFilter) ReferencedColumns() []string {
	var c columnSet
	c.add(f.First)
	c.add(f.Last)
	return c.names
}

// Evaluate implements Filter.
func (f *DateOverlapFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	var lo, hi any
	if !f.Min.IsZero() {
		lo = f.Min
	}
	if !f.Max.IsZero() {
		hi = f.Max
	}
	return inInterval(row, nullAsDefault, f.First, f.Last, hi, lo)
}

// AsConst implements Filter.
func (f *DateOverlapFilter) AsConst() (*ConstExpr, bool) {
	if f.Min.IsZero() && f.Max.IsZero() {
		return TypedConst(true, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *DateOverlapFilter) WithColumnPrefix(prefix string) Filter {
	return &DateOverlapFilter{First: f.First.WithColumnPrefix(prefix), Last: f.Last.WithColumnPrefix(prefix), Min: f.Min, Max: f.Max}
}

// inInterval reports coalesce(first, hi) <= hi and coalesce(last, lo) >= lo.
// A nil hi or lo skips that side.
func inInterval(row Row, nullAsDefault bool, first, last Expr, hi, lo any) (bool, error) {
	if hi != nil {
		v, err := first.Evaluate(row, nullAsDefault)
		if err != nil {
			return false, err
		}
		if v != nil {
			cmp, err := compareValues(v, hi)
			if err != nil || cmp > 0 {
				return false, err
			}
		}
	}
	if lo != nil {
		v, err := last.Evaluate(row, nullAsDefault)
		if err != nil {
			return false, err
		}
		if v != nil {
			cmp, err := compareValues(v, lo)
			if err != nil || cmp < 0 {
				return false, err
			}
		}
	}
	return true, nil
}

// InSelectFilter tests an expression for membership in the single-column
// result of a subquery.
type InSelectFilter struct {
	Expr  Expr
	Query *Query
}

// InSelect returns a subquery membership filter.
func InSelect(x Expr, q *Query) *InSelectFilter {
	return &InSelectFilter{Expr: x, Query: q}
}

// String returns the filter in its textual form.
func (f *InSelectFilter) String() string {
	return f.Expr.String() + " in (" + f.Query.String() + ")"
}

// ReferencedColumns returns the columns of the outer expression. Columns of
// the subquery belong to its own table.
func (f *InSelectFilter) ReferencedColumns() []string { return f.Expr.ReferencedColumns() }

// Evaluate always fails: subqueries need a database.
func (*InSelectFilter) Evaluate(Row, bool) (bool, error) {
	return false, veloxql.NewUnsupportedError("", "evaluating a subquery in memory")
}

// AsConst implements Filter.
func (*InSelectFilter) AsConst() (*ConstExpr, bool) { return nil, false }

// WithColumnPrefix implements Filter.
func (f *InSelectFilter) WithColumnPrefix(prefix string) Filter {
	return &InSelectFilter{Expr: f.Expr.WithColumnPrefix(prefix), Query: f.Query}
}

// AndFilter is the conjunction of its operands.
type AndFilter struct {
	Filters []Filter
}

// And returns the conjunction of filters. Always-true operands are dropped
// and an always-false operand makes the result false. With no operands left
// the result is true.
func And(fs ...Filter) Filter {
	kept := make([]Filter, 0, len(fs))
	for _, f := range fs {
		switch v, ok := constBool(f); {
		case !ok:
			kept = append(kept, f)
		case !v:
			return False
		}
	}
	switch len(kept) {
	case 0:
		return True
	case 1:
		return kept[0]
	}
	return &AndFilter{Filters: kept}
}

// String returns the filter in its textual form.
func (f *AndFilter) String() string { return naryString(f.Filters, " && ") }

// ReferencedColumns implements Node.
func (f *AndFilter) ReferencedColumns() []string {
	var c columnSet
	for _, x := range f.Filters {
		c.add(x)
	}
	return c.names
}

// Evaluate implements Filter.
func (f *AndFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	for _, x := range f.Filters {
		ok, err := x.Evaluate(row, nullAsDefault)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// AsConst implements Filter.
func (f *AndFilter) AsConst() (*ConstExpr, bool) {
	all := true
	for _, x := range f.Filters {
		v, ok := constBool(x)
		if ok && !v {
			return TypedConst(false, field.TypeBool), true
		}
		all = all && ok
	}
	if all {
		return TypedConst(true, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *AndFilter) WithColumnPrefix(prefix string) Filter {
	return &AndFilter{Filters: prefixFilters(f.Filters, prefix)}
}

// OrFilter is the disjunction of its operands.
type OrFilter struct {
	Filters []Filter
}

// Or returns the disjunction of filters. Always-false operands are dropped
// and an always-true operand makes the result true. With no operands left
// the result is false.
func Or(fs ...Filter) Filter {
	kept := make([]Filter, 0, len(fs))
	for _, f := range fs {
		switch v, ok := constBool(f); {
		case !ok:
			kept = append(kept, f)
		case v:
			return True
		}
	}
	switch len(kept) {
	case 0:
		return False
	case 1:
		return kept[0]
	}
	return &OrFilter{Filters: kept}
}

// String returns the filter in its textual form.
func (f *OrFilter) String() string { return naryString(f.Filters, " || ") }

// ReferencedColumns implements Node.
func (f *OrFilter) ReferencedColumns() []string {
	var c columnSet
	for _, x := range f.Filters {
		c.add(x)
	}
	return c.names
}

// Evaluate implements Filter.
func (f *OrFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	for _, x := range f.Filters {
		ok, err := x.Evaluate(row, nullAsDefault)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// AsConst implements Filter.
func (f *OrFilter) AsConst() (*ConstExpr, bool) {
	all := true
	for _, x := range f.Filters {
		v, ok := constBool(x)
		if ok && v {
			return TypedConst(true, field.TypeBool), true
		}
		all = all && ok
	}
	if all {
		return TypedConst(false, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *OrFilter) WithColumnPrefix(prefix string) Filter {
	return &OrFilter{Filters: prefixFilters(f.Filters, prefix)}
}

// NotFilter negates its operand.
type NotFilter struct {
	Filter Filter
}

// Not returns the negation of a filter.
func Not(f Filter) *NotFilter {
	return &NotFilter{Filter: f}
}

// String returns the filter in its textual form.
func (f *NotFilter) String() string { return "!(" + f.Filter.String() + ")" }

// ReferencedColumns implements Node.
func (f *NotFilter) ReferencedColumns() []string { return f.Filter.ReferencedColumns() }

// Evaluate implements Filter.
func (f *NotFilter) Evaluate(row Row, nullAsDefault bool) (bool, error) {
	ok, err := f.Filter.Evaluate(row, nullAsDefault)
	return !ok && err == nil, err
}

// AsConst implements Filter.
func (f *NotFilter) AsConst() (*ConstExpr, bool) {
	if v, ok := constBool(f.Filter); ok {
		return TypedConst(!v, field.TypeBool), true
	}
	return nil, false
}

// WithColumnPrefix implements Filter.
func (f *NotFilter) WithColumnPrefix(prefix string) Filter {
	return &NotFilter{Filter: f.Filter.WithColumnPrefix(prefix)}
}

// BoolFilter is the always-true or always-false dummy predicate.
type BoolFilter struct {
	Value bool
}

// The dummy predicates.
var (
	True  = &BoolFilter{Value: true}
	False = &BoolFilter{Value: false}
)

// String returns the filter in its textual form.
func (f *BoolFilter) String() string { return strconv.FormatBool(f.Value) }

// ReferencedColumns implements Node.
func (*BoolFilter) ReferencedColumns() []string { return nil }

// Evaluate implements Filter.
func (f *BoolFilter) Evaluate(Row, bool) (bool, error) { return f.Value, nil }

// AsConst implements Filter.
func (f *BoolFilter) AsConst() (*ConstExpr, bool) { return TypedConst(f.Value, field.TypeBool), true }

// WithColumnPrefix implements Filter.
func (f *BoolFilter) WithColumnPrefix(string) Filter { return f }

// AlwaysTrue reports whether a filter folds to true. A nil filter is true.
func AlwaysTrue(f Filter) bool {
	if f == nil {
		return true
	}
	v, ok := constBool(f)
	return ok && v
}

// AlwaysFalse reports whether a filter folds to false.
func AlwaysFalse(f Filter) bool {
	if f == nil {
		return false
	}
	v, ok := constBool(f)
	return ok && !v
}

func constBool(f Filter) (bool, bool) {
	c, ok := f.AsConst()
	if !ok {
		return false, false
	}
	v, ok := c.Value.(bool)
	return v, ok
}

func prefixFilters(fs []Filter, prefix string) []Filter {
	out := make([]Filter, len(fs))
	for i, f := range fs {
		out[i] = f.WithColumnPrefix(prefix)
	}
	return out
}

func naryString(fs []Filter, sep string) string {
	s := make([]string, len(fs))
	for i, f := range fs {
		s[i] = f.String()
	}
	if len(fs) > 2 {
		return "(" + strings.Join(s, sep) + ")"
	}
	return strings.Join(s, sep)
}

func callString(name string, args ...string) string {
	return name + "(" + strings.Join(args, ", ") + ")"
}

func foldName(name string, fold bool) string {
	if fold {
		return name + "_fold"
	}
	return name
}

func (*CompareFilter) node()       {}
func (*IDsFilter) node()           {}
func (*ValuesFilter) node()        {}
func (*StartsWithFilter) node()    {}
func (*SubstringFilter) node()     {}
func (*ContainsFilter) node()      {}
func (*NumRangeFilter) node()      {}
func (*DateRangeFilter) node()     {}
func (*DateInclusionFilter) node() {}
func (*DateOverlapFilter) node()   {}
func (*InSelectFilter) node()      {}
func (*AndFilter) node()           {}
func (*OrFilter) node()            {}
func (*NotFilter) node()           {}
func (*BoolFilter) node()          {}

func (*CompareFilter) filter()       {}
func (*IDsFilter) filter()           {}
func (*ValuesFilter) filter()        {}
func (*StartsWithFilter) filter()    {}
func (*SubstringFilter) filter()     {}
func (*ContainsFilter) filter()      {}
func (*NumRangeFilter) filter()      {}
func (*DateRangeFilter) filter()     {}
func (*DateInclusionFilter) filter() {}
func (*DateOverlapFilter) filter()   {}
func (*InSelectFilter) filter()      {}
func (*AndFilter) filter()           {}
func (*OrFilter) filter()            {}
func (*NotFilter) filter()           {}
func (*BoolFilter) filter()          {}
