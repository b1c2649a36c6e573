package sql

import (
	"log/slog"
	"strconv"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect"
	"github.com/syssam/veloxql/dialect/sql/sqlgraph"
	"github.com/syssam/veloxql/privacy"
	ql "github.com/syssam/veloxql/querylanguage"
)

// maxSubqueryDepth bounds the nesting of IN subqueries.
const maxSubqueryDepth = 16

// Statement is a compiled SELECT statement. All values are inlined as
// escaped literals; the statement has no bind parameters.
type Statement struct {
	SQL   string
	Shape *Shape
}

// String returns the SQL text.
func (s *Statement) String() string { return s.SQL }

// Compiler assembles SELECT statements for one dialect. It is safe for
// concurrent use; every compile owns its Builder and join graph.
type Compiler struct {
	format    *Formatter
	validator *Validator
	log       *slog.Logger
}

// CompileOption configures a Compiler.
type CompileOption func(*Compiler)

// WithLogger sets the logger compiled statements are logged to at debug
// level. The default discards them.
func WithLogger(l *slog.Logger) CompileOption {
	return func(c *Compiler) {
		c.log = l
	}
}

// NewCompiler returns a compiler for a dialect. Names are resolved and
// access-checked by v.
func NewCompiler(d Dialect, v *Validator, opts ...CompileOption) *Compiler {
	c := &Compiler{
		format:    NewFormatter(d),
		validator: v,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile is a shorthand for NewCompiler(d, v).Compile(q).
func Compile(d Dialect, v *Validator, q *ql.Query) (*Statement, error) {
	return NewCompiler(d, v).Compile(q)
}

// Dialect returns the rule set of the compiler.
func (c *Compiler) Dialect() Dialect { return c.format.Dialect() }

// Formatter returns the formatter of the compiler.
func (c *Compiler) Formatter() *Formatter { return c.format }

// Compile compiles a query. Every referenced name is resolved and
// access-checked before any text is emitted; no partial statement is ever
// returned.
func (c *Compiler) Compile(q *ql.Query) (*Statement, error) {
	stmt, err := c.compile(q, 0)
	if err != nil {
		table := ""
		if q != nil {
			table = q.Table
		}
		return nil, &veloxql.CompileError{Table: table, Err: err}
	}
	c.log.Debug("compiled select", "dialect", c.Dialect().Name(), "table", q.Table, "sql", stmt.SQL)
	return stmt, nil
}

func (c *Compiler) compile(q *ql.Query, depth int) (*Statement, error) {
	b := NewBuilder()
	projections, err := c.prepare(b, q, depth)
	if err != nil {
		return nil, err
	}
	g := sqlgraph.New(q.Table)
	for _, name := range b.Dotted() {
		hops, _ := b.Path(name)
		b.SetAlias(name, g.Walk(hops))
	}
	if g.Len() > 0 {
		b.SetQualifier(q.Table)
	}
	if err := c.emit(b, q, projections, g); err != nil {
		return nil, err
	}
	return &Statement{
		SQL:   b.String(),
		Shape: NewShape(b, projections, c.format.Capabilities().CoerceResultTypes),
	}, nil
}

// prepare checks the query structure and resolves every referenced name,
// collecting all failures. It returns the projections to emit.
func (c *Compiler) prepare(b *Builder, q *ql.Query, depth int) ([]ql.Projection, error) {
	switch {
	case q == nil:
		return nil, veloxql.NewArgumentError("", "missing query")
	case depth > maxSubqueryDepth:
		return nil, veloxql.NewArgumentError(q.Table, "subqueries nested deeper than %d levels", maxSubqueryDepth)
	case len(q.GroupBy) > 0 && len(q.Projections) == 0:
		return nil, veloxql.NewArgumentError("GROUP BY", "requires an explicit projection list")
	case q.Having != nil && len(q.GroupBy) == 0:
		return nil, veloxql.NewArgumentError("HAVING", "requires GROUP BY")
	case q.Limit < 0:
		return nil, veloxql.NewArgumentError("LIMIT", "negative row limit %d", q.Limit)
	}
	if err := c.validator.ResolveTable(q.Table, privacy.ReadOnly); err != nil {
		return nil, err
	}
	projections := q.Projections
	if len(projections) == 0 {
		cols, err := c.validator.Readable(q.Table)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, veloxql.NewArgumentError(q.Table, "no readable columns")
		}
		for _, col := range cols {
			projections = append(projections, ql.Project(ql.Column(col.Name), ""))
		}
	}
	var errs []error
	resolve := func(n ql.Node) {
		for _, name := range n.ReferencedColumns() {
			if _, err := c.validator.ResolveColumn(b, q.Table, name, true, privacy.ReadOnly); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for i, p := range projections {
		if p.Expr == nil {
			errs = append(errs, veloxql.NewArgumentError("SELECT", "projection %d has no expression", i))
			continue
		}
		resolve(p.Expr)
	}
	for _, p := range []ql.Filter{q.Where, q.Having} {
		if p == nil {
			continue
		}
		resolve(p)
		for _, sub := range subqueries(p) {
			errs = append(errs, c.subquery(b, sub, depth))
		}
	}
	for i, x := range q.GroupBy {
		if x == nil {
			errs = append(errs, veloxql.NewArgumentError("GROUP BY", "expression %d is missing", i))
			continue
		}
		resolve(x)
	}
	for i, o := range q.OrderBy {
		if o.Expr == nil {
			errs = append(errs, veloxql.NewArgumentError("ORDER BY", "expression %d is missing", i))
			continue
		}
		resolve(o.Expr)
	}
	return projections, veloxql.NewAggregateError(errs...)
}

// subquery compiles the query of an IN filter into b.
func (c *Compiler) subquery(b *Builder, p *ql.InSelectFilter, depth int) error {
	if _, ok := b.Subquery(p.Query); ok {
		return nil
	}
	stmt, err := c.compile(p.Query, depth+1)
	if err != nil {
		return err
	}
	if n := len(stmt.Shape.Columns); n != 1 {
		return veloxql.NewArgumentError(p.Query.Table, "IN subquery must select exactly one column, got %d", n)
	}
	b.SetSubquery(p.Query, stmt.SQL)
	return nil
}

// subqueries returns the IN filters of a filter tree.
func subqueries(p ql.Filter) []*ql.InSelectFilter {
	switch p := p.(type) {
	case *ql.InSelectFilter:
		return []*ql.InSelectFilter{p}
	case *ql.AndFilter:
		return subqueriesOf(p.Filters)
	case *ql.OrFilter:
		return subqueriesOf(p.Filters)
	case *ql.NotFilter:
		return subqueries(p.Filter)
	}
	return nil
}

func subqueriesOf(ps []ql.Filter) []*ql.InSelectFilter {
	var subs []*ql.InSelectFilter
	for _, p := range ps {
		subs = append(subs, subqueries(p)...)
	}
	return subs
}

// emit writes the clauses in order:
//
//	SELECT [TOP n] [DISTINCT] ... FROM ... [WHERE] [GROUP BY] [HAVING] [ORDER BY] [LIMIT n]
func (c *Compiler) emit(b *Builder, q *ql.Query, projections []ql.Projection, g *sqlgraph.Graph) error {
	var top, limit bool
	if q.Limit > 0 {
		switch rl := c.format.Capabilities().RowLimit; rl {
		case dialect.RowLimitTop:
			top = true
		case dialect.RowLimitLimit:
			limit = true
		default:
			veloxql.Unreachable("sql.Compiler.emit", rl)
		}
	}
	b.WriteString("SELECT ")
	if top {
		b.WriteString("TOP " + strconv.Itoa(q.Limit) + " ")
	}
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, p := range projections {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := c.format.Expr(b, p.Expr, FormatOptions{NoParentheses: true}); err != nil {
			return err
		}
	}
	b.WriteString(" FROM ")
	if err := c.from(b, g); err != nil {
		return err
	}
	if !ql.AlwaysTrue(q.Where) {
		b.WriteString(" WHERE ")
		if err := c.format.Filter(b, q.Where, FormatOptions{}); err != nil {
			return err
		}
	}
	if len(q.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		if err := c.exprs(b, q.GroupBy); err != nil {
			return err
		}
	}
	if !ql.AlwaysTrue(q.Having) {
		b.WriteString(" HAVING ")
		if err := c.format.Filter(b, q.Having, FormatOptions{}); err != nil {
			return err
		}
	}
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := c.format.Expr(b, o.Expr, FormatOptions{NoParentheses: true}); err != nil {
				return err
			}
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if limit {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return nil
}

func (c *Compiler) exprs(b *Builder, xs []ql.Expr) error {
	for i, x := range xs {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := c.format.Expr(b, x, FormatOptions{NoParentheses: true}); err != nil {
			return err
		}
	}
	return nil
}

// from writes the base table and its join chain. With more than one join,
// every join but the last is nested in parentheses:
//
//	((T LEFT JOIN A ON ...) LEFT JOIN B ON ...) LEFT JOIN C ON ...
func (c *Compiler) from(b *Builder, g *sqlgraph.Graph) error {
	joins := g.Joins()
	for i := 1; i < len(joins); i++ {
		b.WriteByte('(')
	}
	if err := c.format.Ident(b, g.Base()); err != nil {
		return err
	}
	for i, j := range joins {
		b.WriteString(" LEFT JOIN ")
		if err := c.format.Ident(b, j.RightTable); err != nil {
			return err
		}
		b.WriteString(" AS ")
		if err := c.format.Ident(b, j.Alias); err != nil {
			return err
		}
		b.WriteString(" ON ")
		if err := c.format.Qualified(b, j.LeftAlias, j.RefColumn); err != nil {
			return err
		}
		b.WriteByte('=')
		if err := c.format.Qualified(b, j.Alias, j.RightKey); err != nil {
			return err
		}
		if i < len(joins)-1 {
			b.WriteByte(')')
		}
	}
	return nil
}
