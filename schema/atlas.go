package schema

import (
	"context"
	"fmt"
	"math"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/veloxql/schema/field"
)

// FromRealm converts an inspected atlas realm into a catalog. Only
// single-column primary and foreign keys are kept; tables from every schema
// of the realm are merged into one catalog.
func FromRealm(realm *atlas.Realm) (*Catalog, error) {
	var tables []*Table
	for _, s := range realm.Schemas {
		for _, t := range s.Tables {
			tables = append(tables, fromAtlasTable(t))
		}
	}
	return NewCatalog(tables...)
}

// InspectSQLite reads the metadata of every table in a SQLite database.
func InspectSQLite(ctx context.Context, db atlas.ExecQuerier) (*Catalog, error) {
	return Inspect(ctx, "sqlite", db)
}

// Inspect reads the metadata of every table of a live database. The
// dialect is one of "sqlite", "postgres" or "mysql".
func Inspect(ctx context.Context, dialect string, db atlas.ExecQuerier) (*Catalog, error) {
	var (
		drv migrate.Driver
		err error
	)
	switch dialect {
	case "sqlite":
		drv, err = sqlite.Open(db)
	case "postgres":
		drv, err = postgres.Open(db)
	case "mysql":
		drv, err = mysql.Open(db)
	default:
		return nil, fmt.Errorf("schema: no inspector for dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: open %s inspector: %w", dialect, err)
	}
	realm, err := drv.InspectRealm(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("schema: inspect realm: %w", err)
	}
	return FromRealm(realm)
}

func fromAtlasTable(t *atlas.Table) *Table {
	tbl := &Table{Name: t.Name}
	if pk := t.PrimaryKey; pk != nil && len(pk.Parts) == 1 && pk.Parts[0].C != nil {
		tbl.PrimaryKey = pk.Parts[0].C.Name
	}
	refs := make(map[string]string)
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 1 && fk.RefTable != nil {
			refs[fk.Columns[0].Name] = fk.RefTable.Name
		}
	}
	for _, c := range t.Columns {
		col := &Column{Name: c.Name, Ref: refs[c.Name]}
		if c.Type != nil {
			col.Nullable = c.Type.Null
			fromAtlasType(col, c.Type.Type)
		}
		tbl.Columns = append(tbl.Columns, col)
	}
	return tbl
}

func fromAtlasType(c *Column, t atlas.Type) {
	switch t := t.(type) {
	case *atlas.StringType:
		c.Type, c.Size = field.TypeString, t.Size
		if strings.Contains(strings.ToLower(t.T), "text") && t.Size == 0 {
			c.Type = field.TypeMemo
		}
	case *atlas.BoolType:
		c.Type = field.TypeBool
	case *atlas.IntegerType:
		c.Type = field.TypeInt
		switch strings.ToLower(t.T) {
		case "smallint", "int2":
			c.MinValue, c.MaxValue = math.MinInt16, math.MaxInt16
		case "bigint", "int8":
			c.MinValue, c.MaxValue = math.MinInt64, math.MaxInt64
		}
	case *atlas.FloatType:
		c.Type = field.TypeFloat
	case *atlas.DecimalType:
		c.Type = field.TypeMoney
	case *atlas.TimeType:
		switch strings.ToLower(t.T) {
		case "date":
			c.Type = field.TypeDate
		case "time":
			c.Type = field.TypeTime
		default:
			c.Type = field.TypeDateTime
		}
	case *atlas.UUIDType:
		c.Type = field.TypeGUID
	case *atlas.BinaryType:
		c.Type = field.TypeBinary
	case *atlas.JSONType:
		c.Type = field.TypeMemo
	default:
		c.Type = field.TypeUnknown
	}
}
