package querylanguage

import (
	"strconv"
	"strings"
)

// Projection is an output column of a query. An empty Alias names the
// column after its expression.
type Projection struct {
	Expr  Expr
	Alias string
}

// Project returns a projection.
func Project(x Expr, alias string) Projection {
	return Projection{Expr: x, Alias: alias}
}

// Name returns the name the projection is exposed under.
func (p Projection) Name() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Expr.String()
}

// Order is an ORDER BY term.
type Order struct {
	Expr Expr
	Desc bool
}

// Asc returns an ascending order term.
func Asc(x Expr) Order { return Order{Expr: x} }

// Desc returns a descending order term.
func Desc(x Expr) Order { return Order{Expr: x, Desc: true} }

// Query describes a SELECT over one table. Column names are relative to
// Table and may be dotted reference paths.
type Query struct {
	Table       string
	Projections []Projection
	Where       Filter
	GroupBy     []Expr
	Having      Filter
	OrderBy     []Order
	// Limit is the maximum number of rows, 0 for no limit.
	Limit    int
	Distinct bool
}

// Select returns a query projecting the given columns of a table.
func Select(table string, columns ...string) *Query {
	q := &Query{Table: table}
	for _, c := range columns {
		q.Projections = append(q.Projections, Projection{Expr: Column(c)})
	}
	return q
}

// String returns the query in its textual form.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("select ")
	if q.Distinct {
		b.WriteString("distinct ")
	}
	if len(q.Projections) == 0 {
		b.WriteByte('*')
	}
	for i, p := range q.Projections {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Expr.String())
		if p.Alias != "" {
			b.WriteString(" as ")
			b.WriteString(p.Alias)
		}
	}
	b.WriteString(" from ")
	b.WriteString(q.Table)
	if q.Where != nil {
		b.WriteString(" where ")
		b.WriteString(q.Where.String())
	}
	for i, g := range q.GroupBy {
		if i == 0 {
			b.WriteString(" group by ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(g.String())
	}
	if q.Having != nil {
		b.WriteString(" having ")
		b.WriteString(q.Having.String())
	}
	for i, o := range q.OrderBy {
		if i == 0 {
			b.WriteString(" order by ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(o.Expr.String())
		if o.Desc {
			b.WriteString(" desc")
		}
	}
	if q.Limit > 0 {
		b.WriteString(" limit ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	return b.String()
}

// ReferencedColumns returns every column the query uses, in clause order.
func (q *Query) ReferencedColumns() []string {
	var c columnSet
	for _, p := range q.Projections {
		c.add(p.Expr)
	}
	if q.Where != nil {
		c.add(q.Where)
	}
	for _, g := range q.GroupBy {
		c.add(g)
	}
	if q.Having != nil {
		c.add(q.Having)
	}
	for _, o := range q.OrderBy {
		c.add(o.Expr)
	}
	return c.names
}

// Equal reports whether two queries are structurally equal.
func (q *Query) Equal(o *Query) bool {
	if q == nil || o == nil {
		return q == nil && o == nil
	}
	if q.Table != o.Table || q.Limit != o.Limit || q.Distinct != o.Distinct ||
		len(q.Projections) != len(o.Projections) || len(q.OrderBy) != len(o.OrderBy) ||
		!exprsEqual(q.GroupBy, o.GroupBy) || !equalFilter(q.Where, o.Where) || !equalFilter(q.Having, o.Having) {
		return false
	}
	for i := range q.Projections {
		if q.Projections[i].Alias != o.Projections[i].Alias || !Equal(q.Projections[i].Expr, o.Projections[i].Expr) {
			return false
		}
	}
	for i := range q.OrderBy {
		if q.OrderBy[i].Desc != o.OrderBy[i].Desc || !Equal(q.OrderBy[i].Expr, o.OrderBy[i].Expr) {
			return false
		}
	}
	return true
}

func equalFilter(a, b Filter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}
