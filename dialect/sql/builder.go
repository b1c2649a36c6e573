package sql

import (
	"strings"

	"github.com/syssam/veloxql/dialect/sql/sqlgraph"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

// ColumnInfo is the resolved metadata of a column name.
type ColumnInfo struct {
	Type     field.Type
	Nullable bool
	// Column is the declared column, nil for names resolved without metadata.
	Column *schema.Column
}

// Builder is the compilation buffer of one statement. It accumulates the
// output text and the state the validator hands to the formatter: resolved
// column metadata, reference paths and their join aliases.
//
// A Builder is created per statement and must not be shared between
// goroutines.
type Builder struct {
	sb      strings.Builder
	columns map[string]ColumnInfo
	paths   map[string][]sqlgraph.Hop
	dotted  []string
	aliases map[string]string
	subs    map[*ql.Query]string
	// qualifier prefixes base table columns once the statement has joins.
	qualifier string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		columns: make(map[string]ColumnInfo),
	}
}

// WriteString appends s to the buffer.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends c to the buffer.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad appends a space to the buffer.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// String returns the accumulated text.
func (b *Builder) String() string {
	return b.sb.String()
}

// Len returns the length of the accumulated text.
func (b *Builder) Len() int {
	return b.sb.Len()
}

// SetColumn records the metadata of a resolved column name.
func (b *Builder) SetColumn(name string, info ColumnInfo) {
	b.columns[name] = info
}

// Column returns the recorded metadata of a column name.
func (b *Builder) Column(name string) (ColumnInfo, bool) {
	info, ok := b.columns[name]
	return info, ok
}

// SetPath records the reference hops of a dotted column name. Names are kept
// in first-seen order.
func (b *Builder) SetPath(name string, hops []sqlgraph.Hop) {
	if b.paths == nil {
		b.paths = make(map[string][]sqlgraph.Hop)
	}
	if _, ok := b.paths[name]; !ok {
		b.dotted = append(b.dotted, name)
	}
	b.paths[name] = hops
}

// Path returns the recorded reference hops of a dotted column name.
func (b *Builder) Path(name string) ([]sqlgraph.Hop, bool) {
	hops, ok := b.paths[name]
	return hops, ok
}

// Dotted returns the recorded dotted column names in first-seen order.
func (b *Builder) Dotted() []string {
	return b.dotted
}

// SetAlias records the join alias of the table holding a dotted column.
func (b *Builder) SetAlias(name, alias string) {
	if b.aliases == nil {
		b.aliases = make(map[string]string)
	}
	b.aliases[name] = alias
}

// Alias returns the join alias of a dotted column name.
func (b *Builder) Alias(name string) (string, bool) {
	alias, ok := b.aliases[name]
	return alias, ok
}

// SetQualifier sets the table name undotted columns are qualified with.
func (b *Builder) SetQualifier(table string) {
	b.qualifier = table
}

// Qualifier returns the table name undotted columns are qualified with, or
// "" when they are written bare.
func (b *Builder) Qualifier() string {
	return b.qualifier
}

// SetSubquery records the compiled text of a subquery.
func (b *Builder) SetSubquery(q *ql.Query, sql string) {
	if b.subs == nil {
		b.subs = make(map[*ql.Query]string)
	}
	b.subs[q] = sql
}

// Subquery returns the compiled text of a subquery.
func (b *Builder) Subquery(q *ql.Query) (string, bool) {
	sql, ok := b.subs[q]
	return sql, ok
}
