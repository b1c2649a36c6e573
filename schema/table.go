package schema

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/syssam/veloxql/schema/field"
)

// Column describes a single table column.
type Column struct {
	Name     string     `yaml:"name"`
	Type     field.Type `yaml:"type"`
	Nullable bool       `yaml:"nullable,omitempty"`
	// Ref holds the referenced (master) table name for foreign-key columns.
	// Reference columns may start a dotted path such as "OwnerId.Name".
	Ref string `yaml:"ref,omitempty"`
	// Size is the maximum length of textual columns, 0 if unbounded.
	Size int `yaml:"size,omitempty"`
	// MinValue and MaxValue declare the numeric range of integer columns.
	// Both zero means the range is unspecified.
	MinValue int64 `yaml:"min,omitempty"`
	MaxValue int64 `yaml:"max,omitempty"`
}

// IsRef reports if the column references another table.
func (c *Column) IsRef() bool {
	return c.Ref != ""
}

// IntRange returns the declared range of an integer column. Columns without
// a declared range report the 32-bit integer range.
func (c *Column) IntRange() (lo, hi int64) {
	if c.MinValue == 0 && c.MaxValue == 0 {
		return math.MinInt32, math.MaxInt32
	}
	return c.MinValue, c.MaxValue
}

// Table describes a table and its single-column primary key.
type Table struct {
	Name       string    `yaml:"name"`
	PrimaryKey string    `yaml:"primary_key"`
	Columns    []*Column `yaml:"columns"`
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Metadata is the table-metadata source consumed by the compiler.
type Metadata interface {
	// Columns returns the columns of a table in declaration order.
	Columns(table string) ([]*Column, bool)
	// PrimaryKey returns the primary key column of a table. It is the join
	// target when reference paths are resolved.
	PrimaryKey(table string) (string, bool)
}

// Catalog is an in-memory Metadata implementation. It is safe for
// concurrent use; Replace swaps the whole table set atomically, which lets a
// watcher reload metadata while compiles are running.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
	order  []string
}

// NewCatalog returns a catalog holding the given tables.
func NewCatalog(tables ...*Table) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(tables...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(tables ...*Table) *Catalog {
	c, err := NewCatalog(tables...)
	if err != nil {
		panic(err)
	}
	return c
}

// Replace replaces all tables of the catalog.
func (c *Catalog) Replace(tables ...*Table) error {
	byName := make(map[string]*Table, len(tables))
	order := make([]string, 0, len(tables))
	for _, t := range tables {
		if t == nil || t.Name == "" {
			return fmt.Errorf("schema: table without a name")
		}
		if _, ok := byName[t.Name]; ok {
			return fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		byName[t.Name] = t
		order = append(order, t.Name)
	}
	c.mu.Lock()
	c.tables, c.order = byName, order
	c.mu.Unlock()
	return nil
}

// Table returns the table with the given name.
func (c *Catalog) Table(name string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

// Tables returns all tables in the order they were added.
func (c *Catalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tables := make([]*Table, 0, len(c.order))
	for _, name := range c.order {
		tables = append(tables, c.tables[name])
	}
	return tables
}

// Columns implements Metadata.
func (c *Catalog) Columns(table string) ([]*Column, bool) {
	t, ok := c.Table(table)
	if !ok {
		return nil, false
	}
	return slices.Clone(t.Columns), true
}

// PrimaryKey implements Metadata.
func (c *Catalog) PrimaryKey(table string) (string, bool) {
	t, ok := c.Table(table)
	if !ok || t.PrimaryKey == "" {
		return "", false
	}
	return t.PrimaryKey, true
}

var _ Metadata = (*Catalog)(nil)
