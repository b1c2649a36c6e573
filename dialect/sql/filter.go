package sql

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/syssam/veloxql"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema/field"
)

// Always-true and always-false predicates.
const (
	TrueSQL  = "1=1"
	FalseSQL = "1=0"
)

var ops = [...]string{
	ql.OpEQ:  "=",
	ql.OpNEQ: "<>",
	ql.OpGT:  ">",
	ql.OpGTE: ">=",
	ql.OpLT:  "<",
	ql.OpLTE: "<=",
}

// reverse returns the operator that holds for (y, x) when op holds for (x, y).
func reverse(op ql.Op) ql.Op {
	switch op {
	case ql.OpGT:
		return ql.OpLT
	case ql.OpGTE:
		return ql.OpLTE
	case ql.OpLT:
		return ql.OpGT
	case ql.OpLTE:
		return ql.OpGTE
	}
	return op
}

// Filter writes a filter. A nil filter is always true.
func (f *Formatter) Filter(b *Builder, p ql.Filter, opts FormatOptions) error {
	switch p := p.(type) {
	case nil:
		b.WriteString(TrueSQL)
		return nil
	case *ql.CompareFilter:
		return f.compare(b, p.Op, p.Left, p.Right, opts.WithNullAsDefault(opts.NullAsDefault || p.NullAsDefault))
	case *ql.IDsFilter:
		return f.ids(b, p, opts)
	case *ql.ValuesFilter:
		return f.values(b, p, opts)
	case *ql.StartsWithFilter:
		pattern, esc := f.d.LikePattern(p.Prefix)
		return f.like(b, p.Expr, pattern+"%", esc, p.IgnoreCase, opts)
	case *ql.ContainsFilter:
		pattern, esc := f.d.LikePattern(p.Value)
		return f.like(b, p.Expr, "%"+pattern+"%", esc, p.IgnoreCase, opts)
	case *ql.SubstringFilter:
		return f.substringAt(b, p, opts)
	case *ql.NumRangeFilter:
		return f.numRange(b, p, opts)
	case *ql.DateRangeFilter:
		return f.dateRange(b, p, opts)
	case *ql.DateInclusionFilter:
		return f.dateInclusion(b, p, opts)
	case *ql.DateOverlapFilter:
		return f.dateOverlap(b, p, opts)
	case *ql.InSelectFilter:
		return f.inSelect(b, p, opts)
	case *ql.AndFilter:
		if len(p.Filters) == 0 {
			b.WriteString(TrueSQL)
			return nil
		}
		return f.join(b, " AND ", p.Filters, opts)
	case *ql.OrFilter:
		if len(p.Filters) == 0 {
			b.WriteString(FalseSQL)
			return nil
		}
		return f.join(b, " OR ", p.Filters, opts)
	case *ql.NotFilter:
		b.WriteString("NOT ")
		return f.Wrap(b, p.Filter, opts)
	case *ql.BoolFilter:
		if p.Value {
			b.WriteString(TrueSQL)
		} else {
			b.WriteString(FalseSQL)
		}
		return nil
	default:
		veloxql.Unreachable("sql.Formatter.Filter", p)
		return nil
	}
}

// Wrap writes a filter in parentheses.
func (f *Formatter) Wrap(b *Builder, p ql.Filter, opts FormatOptions) error {
	b.WriteByte('(')
	if err := f.Filter(b, p, opts); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

// join writes the operands wrapped and separated by sep.
func (f *Formatter) join(b *Builder, sep string, ps []ql.Filter, opts FormatOptions) error {
	for i, p := range ps {
		if i > 0 {
			b.WriteString(sep)
		}
		if err := f.Wrap(b, p, opts); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) compare(b *Builder, op ql.Op, x, y ql.Expr, opts FormatOptions) error {
	if !op.Valid() {
		return veloxql.NewArgumentError(op.String(), "unknown comparison operator")
	}
	if x == nil || y == nil {
		return veloxql.NewArgumentError(op.String(), "missing comparison operand")
	}
	if isNull(x) && !isNull(y) {
		x, y, op = y, x, reverse(op)
	}
	if isNull(y) {
		var suffix string
		switch op {
		case ql.OpEQ:
			suffix = " IS NULL"
		case ql.OpNEQ:
			suffix = " IS NOT NULL"
		default:
			return veloxql.NewArgumentError(op.String(), "operator cannot be used with NULL")
		}
		if err := f.nested(b, x, opts.child()); err != nil {
			return err
		}
		b.WriteString(suffix)
		return nil
	}
	if err := f.operand(b, op, x, y, opts); err != nil {
		return err
	}
	b.WriteString(ops[op])
	return f.operand(b, reverse(op), y, x, opts)
}

func isNull(x ql.Expr) bool {
	c, ok := x.AsConst()
	return ok && c.IsNull()
}

// operand writes x, the left side of "x op other". With NullAsDefault set,
// a nullable column is written as COALESCE(x, default) when the default
// value of its type satisfies the comparison.
func (f *Formatter) operand(b *Builder, op ql.Op, x, other ql.Expr, opts FormatOptions) error {
	child := opts.child().WithWantedType(TypeOf(b, other))
	col, ok := x.(*ql.ColumnExpr)
	if !opts.NullAsDefault || !ok {
		return f.nested(b, x, child)
	}
	def, t, ok := coalesceDefault(b, op, col, other)
	if !ok {
		return f.nested(b, x, child)
	}
	name, err := f.d.FuncName(ql.FuncCoalesce)
	if err != nil {
		return err
	}
	lit, err := f.Literal(def, t)
	if err != nil {
		return err
	}
	b.WriteString(name)
	b.WriteByte('(')
	if err := f.column(b, col.Name); err != nil {
		return err
	}
	b.WriteString(", ")
	b.WriteString(lit)
	b.WriteByte(')')
	return nil
}

// coalesceDefault returns the default value a NULL column compares as. It
// reports false for columns known to be non-nullable, for types without a
// default and when the default would not satisfy "col op other".
func coalesceDefault(b *Builder, op ql.Op, col *ql.ColumnExpr, other ql.Expr) (any, field.Type, bool) {
	info, known := b.Column(col.Name)
	if known && !info.Nullable && info.Type != field.TypeUnknown {
		return nil, 0, false
	}
	t := info.Type
	if t == field.TypeUnknown {
		t = TypeOf(b, other)
	}
	def, ok := t.Default()
	if !ok {
		return nil, 0, false
	}
	c, ok := other.AsConst()
	if !ok {
		return def, t, true
	}
	holds, err := ql.Compare(op, ql.TypedConst(def, t), c).Evaluate(nil, false)
	return def, t, err == nil && holds
}

func (f *Formatter) ids(b *Builder, p *ql.IDsFilter, opts FormatOptions) error {
	if len(p.IDs) == 0 {
		b.WriteString(FalseSQL)
		return nil
	}
	if err := f.nested(b, p.Expr, opts.child()); err != nil {
		return err
	}
	if len(p.IDs) == 1 {
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(p.IDs[0], 10))
		return nil
	}
	b.WriteString(" IN (")
	for i, id := range p.IDs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte(')')
	return nil
}

func (f *Formatter) values(b *Builder, p *ql.ValuesFilter, opts FormatOptions) error {
	switch len(p.Values) {
	case 0:
		b.WriteString(FalseSQL)
		return nil
	case 1:
		return f.compare(b, ql.OpEQ, p.Expr, p.Values[0], opts.WithNullAsDefault(false))
	}
	want := TypeOf(b, p.Expr)
	if err := f.nested(b, p.Expr, opts.child()); err != nil {
		return err
	}
	b.WriteString(" IN (")
	for i, v := range p.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := f.Expr(b, v, opts.child().WithWantedType(want)); err != nil {
			return err
		}
	}
	b.WriteByte(')')
	return nil
}

// like writes "x LIKE pattern". Case-insensitive tests compare both sides
// in upper case.
func (f *Formatter) like(b *Builder, x ql.Expr, pattern, esc string, fold bool, opts FormatOptions) error {
	lit := f.d.FormatString(pattern)
	if fold {
		upper, err := f.d.FuncName(ql.FuncUpper)
		if err != nil {
			return err
		}
		b.WriteString(upper)
		b.WriteByte('(')
		if err := f.Expr(b, x, opts.child().Bare()); err != nil {
			return err
		}
		b.WriteString(") LIKE ")
		b.WriteString(upper + "(" + lit + ")")
	} else {
		if err := f.nested(b, x, opts.child()); err != nil {
			return err
		}
		b.WriteString(" LIKE ")
		b.WriteString(lit)
	}
	b.WriteString(esc)
	return nil
}

// substringAt rewrites a contains-at-offset test to an equality over
// SUBSTRING.
func (f *Formatter) substringAt(b *Builder, p *ql.SubstringFilter, opts FormatOptions) error {
	var (
		sub   ql.Expr = ql.Substring(p.Expr, ql.TypedConst(p.Start, field.TypeInt), ql.TypedConst(utf8.RuneCountInString(p.Value), field.TypeInt))
		value ql.Expr = ql.TypedConst(p.Value, field.TypeString)
	)
	if p.IgnoreCase {
		sub, value = ql.Upper(sub), ql.Upper(value)
	}
	return f.compare(b, ql.OpEQ, sub, value, opts.WithNullAsDefault(false))
}

// numRange rewrites a numeric range. Bounds are formatted as money.
func (f *Formatter) numRange(b *Builder, p *ql.NumRangeFilter, opts FormatOptions) error {
	lo, hi := p.Min, p.Max
	bound := func(op string, v any) error {
		if err := f.nested(b, p.Expr, opts.child()); err != nil {
			return err
		}
		lit, err := f.Literal(v, field.TypeMoney)
		if err != nil {
			return err
		}
		b.WriteString(op)
		b.WriteString(lit)
		return nil
	}
	switch {
	case lo.Valid && hi.Valid && lo.Decimal.Equal(hi.Decimal):
		return bound("=", lo.Decimal)
	case lo.Valid && hi.Valid && f.Capabilities().Between:
		if err := bound(" BETWEEN ", lo.Decimal); err != nil {
			return err
		}
		lit, err := f.Literal(hi.Decimal, field.TypeMoney)
		if err != nil {
			return err
		}
		b.WriteString(" AND ")
		b.WriteString(lit)
		return nil
	case lo.Valid && hi.Valid:
		b.WriteByte('(')
		if err := bound(">=", lo.Decimal); err != nil {
			return err
		}
		b.WriteString(") AND (")
		if err := bound("<=", hi.Decimal); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil
	case lo.Valid:
		return bound(">=", lo.Decimal)
	case hi.Valid:
		return bound("<=", hi.Decimal)
	default:
		b.WriteString(TrueSQL)
		return nil
	}
}

// dateRange rewrites a closed day range [min, max] to min <= x < max+1day,
// so that every time of day on max matches.
func (f *Formatter) dateRange(b *Builder, p *ql.DateRangeFilter, opts FormatOptions) error {
	var ps []ql.Filter
	if !p.Min.IsZero() {
		ps = append(ps, ql.GTE(p.Expr, date(p.Min)))
	}
	if !p.Max.IsZero() {
		ps = append(ps, ql.LT(p.Expr, date(ql.NextDay(p.Max))))
	}
	return f.all(b, ps, opts)
}

// dateInclusion rewrites a point-in-interval test. A NULL endpoint is
// replaced by the probe, so it never excludes it.
func (f *Formatter) dateInclusion(b *Builder, p *ql.DateInclusionFilter, opts FormatOptions) error {
	return f.all(b, []ql.Filter{
		ql.LTE(ql.Coalesce(p.First, p.Probe), p.Probe),
		ql.GTE(ql.Coalesce(p.Last, p.Probe), p.Probe),
	}, opts)
}

// dateOverlap rewrites an interval overlap test the same way.
func (f *Formatter) dateOverlap(b *Builder, p *ql.DateOverlapFilter, opts FormatOptions) error {
	var ps []ql.Filter
	if !p.Max.IsZero() {
		hi := date(p.Max)
		ps = append(ps, ql.LTE(ql.Coalesce(p.First, hi), hi))
	}
	if !p.Min.IsZero() {
		lo := date(p.Min)
		ps = append(ps, ql.GTE(ql.Coalesce(p.Last, lo), lo))
	}
	return f.all(b, ps, opts)
}

// all writes the conjunction of ps, bare when there is a single operand.
func (f *Formatter) all(b *Builder, ps []ql.Filter, opts FormatOptions) error {
	opts = opts.WithNullAsDefault(false)
	switch len(ps) {
	case 0:
		b.WriteString(TrueSQL)
		return nil
	case 1:
		return f.Filter(b, ps[0], opts)
	default:
		return f.join(b, " AND ", ps, opts)
	}
}

func (f *Formatter) inSelect(b *Builder, p *ql.InSelectFilter, opts FormatOptions) error {
	sub, ok := b.Subquery(p.Query)
	if !ok {
		return veloxql.NewUnsupportedError(f.d.Name(), "subquery outside a compiled SELECT")
	}
	if err := f.nested(b, p.Expr, opts.child()); err != nil {
		return err
	}
	b.WriteString(" IN (")
	b.WriteString(sub)
	b.WriteByte(')')
	return nil
}

func date(t time.Time) *ql.ConstExpr {
	return ql.TypedConst(t, field.TypeDate)
}
