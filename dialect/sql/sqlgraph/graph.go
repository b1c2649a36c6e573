// Package sqlgraph builds the implicit LEFT JOIN graph of a SELECT statement
// from the reference paths its columns traverse.
package sqlgraph

import (
	"strconv"
	"strings"
)

// Hop is one step of a reference path: the reference column Column of Table
// points at the RefKey column of table Ref.
type Hop struct {
	Table  string
	Column string
	Ref    string
	RefKey string
}

// JoinSpec is a LEFT JOIN synthesized for a reference hop.
type JoinSpec struct {
	// LeftAlias is the table or alias the reference column belongs to.
	LeftAlias string
	// RightTable is the referenced table.
	RightTable string
	// RefColumn is the reference column on the left side.
	RefColumn string
	// RightKey is the primary key of the right table.
	RightKey string
	// Alias is the generated alias of the right table, "{RightTable}_{n}".
	Alias string
}

type joinKey struct {
	left, right, column string
}

// Graph is the deduplicated set of joins of one statement. It is not safe
// for concurrent use; every compile owns its own graph.
type Graph struct {
	base    string
	joins   []*JoinSpec
	index   map[joinKey]*JoinSpec
	ordinal map[string]int
}

// New returns an empty graph rooted at the base table.
func New(base string) *Graph {
	return &Graph{
		base:    base,
		index:   make(map[joinKey]*JoinSpec),
		ordinal: make(map[string]int),
	}
}

// Base returns the base table name.
func (g *Graph) Base() string { return g.base }

// Join returns the join for a reference column of the left alias, creating
// it on first use. Aliases are numbered per right table in first-seen order.
func (g *Graph) Join(leftAlias, rightTable, refColumn, rightKey string) *JoinSpec {
	k := joinKey{left: leftAlias, right: rightTable, column: refColumn}
	if j, ok := g.index[k]; ok {
		return j
	}
	g.ordinal[rightTable]++
	j := &JoinSpec{
		LeftAlias:  leftAlias,
		RightTable: rightTable,
		RefColumn:  refColumn,
		RightKey:   rightKey,
		Alias:      rightTable + "_" + strconv.Itoa(g.ordinal[rightTable]),
	}
	g.index[k] = j
	g.joins = append(g.joins, j)
	return j
}

// Walk follows the hops of a reference path from the base table and returns
// the alias of the table holding the final column.
func (g *Graph) Walk(hops []Hop) string {
	alias := g.base
	for _, h := range hops {
		alias = g.Join(alias, h.Ref, h.Column, h.RefKey).Alias
	}
	return alias
}

// Joins returns the joins in creation order. A join always comes after the
// join that introduces its left alias.
func (g *Graph) Joins() []*JoinSpec { return g.joins }

// Len returns the number of joins.
func (g *Graph) Len() int { return len(g.joins) }

// String returns a debug representation of the graph.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString(g.base)
	for _, j := range g.joins {
		b.WriteString(" -> ")
		b.WriteString(j.LeftAlias + "." + j.RefColumn + "=" + j.Alias + "." + j.RightKey)
	}
	return b.String()
}
