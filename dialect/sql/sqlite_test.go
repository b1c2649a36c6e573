package sql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/veloxql/dialect"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

const itemsDDL = `
CREATE TABLE Owners (OwnerKey INTEGER PRIMARY KEY, OwnerName TEXT NOT NULL);
CREATE TABLE Items (
	ItemKey INTEGER PRIMARY KEY,
	Title TEXT NOT NULL,
	OwnerRef INTEGER REFERENCES Owners(OwnerKey),
	Price NUMERIC,
	Created TEXT NOT NULL,
	Active INTEGER NOT NULL
);
INSERT INTO Owners VALUES (1, 'Ann'), (2, 'Bob');
INSERT INTO Items VALUES
	(1, 'O''Brien 50% off', 1, 9.5, '2024-01-15', 1),
	(2, 'O''Brien 500', 2, 25, '2024-01-31', 0),
	(3, 'Plain', NULL, 12, '2024-02-01', 1),
	(4, 'Old', 1, NULL, '2023-12-31', 0);
`

func itemsCatalog() *schema.Catalog {
	return schema.MustCatalog(
		&schema.Table{Name: "Owners", PrimaryKey: "OwnerKey", Columns: []*schema.Column{
			{Name: "OwnerKey", Type: field.TypeInt},
			{Name: "OwnerName", Type: field.TypeString},
		}},
		&schema.Table{Name: "Items", PrimaryKey: "ItemKey", Columns: []*schema.Column{
			{Name: "ItemKey", Type: field.TypeInt},
			{Name: "Title", Type: field.TypeString},
			{Name: "OwnerRef", Type: field.TypeInt, Ref: "Owners", Nullable: true},
			{Name: "Price", Type: field.TypeMoney, Nullable: true},
			{Name: "Created", Type: field.TypeDate},
			{Name: "Active", Type: field.TypeBool},
		}},
	)
}

func openItems(t *testing.T) (*Driver, *Compiler) {
	t.Helper()
	db, err := sql.Open(DriverName(dialect.SQLite), ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(itemsDDL)
	require.NoError(t, err)
	return OpenDB(dialect.SQLite, db), NewCompiler(NewSQLite(), NewValidator(itemsCatalog()))
}

func selectItems(t *testing.T, drv *Driver, c *Compiler, q *ql.Query) *ResultTable {
	t.Helper()
	q.OrderBy = append(q.OrderBy, ql.Asc(ql.F("ItemKey")))
	stmt, err := c.Compile(q)
	require.NoError(t, err)
	rt, err := Select(context.Background(), drv, stmt)
	require.NoError(t, err, stmt.SQL)
	return rt
}

func keys(rt *ResultTable) []int64 {
	var ks []int64
	for _, row := range rt.Rows {
		ks = append(ks, row[0].(int64))
	}
	return ks
}

func TestSQLite_Select(t *testing.T) {
	drv, c := openItems(t)
	q := ql.Select("Items", "ItemKey", "Title", "OwnerRef.OwnerName", "Price", "Created", "Active")
	q.Where = ql.HasPrefix(ql.F("Title"), "O'Brien 50%")
	rt := selectItems(t, drv, c, q)

	assert.Equal(t, []string{"ItemKey", "Title", "OwnerRef.OwnerName", "Price", "Created", "Active"}, rt.Columns)
	require.Len(t, rt.Rows, 1)
	row := rt.Rows[0]
	assert.Equal(t, int64(1), row[0])
	assert.Equal(t, "O'Brien 50% off", row[1])
	assert.Equal(t, "Ann", row[2])
	require.IsType(t, decimal.Decimal{}, row[3])
	assert.True(t, decimal.RequireFromString("9.5").Equal(row[3].(decimal.Decimal)))
	require.IsType(t, time.Time{}, row[4])
	assert.True(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC).Equal(row[4].(time.Time)))
	assert.Equal(t, true, row[5])
}

func TestSQLite_Filters(t *testing.T) {
	drv, c := openItems(t)
	tests := []struct {
		name   string
		filter ql.Filter
		want   []int64
	}{
		{"date range", ql.DateRange(ql.F("Created"), ymd(2024, time.January, 1), ymd(2024, time.January, 31)), []int64{1, 2}},
		{"between", ql.Between(ql.F("Price"), decimal.NewFromInt(5), decimal.NewFromInt(20)), []int64{1, 3}},
		{"null reference", ql.EQ(ql.F("OwnerRef.OwnerName"), ql.Null(field.TypeString)), []int64{3}},
		{"joined value", ql.EQ(ql.F("OwnerRef.OwnerName"), ql.Const("Ann")), []int64{1, 4}},
		{"null as default", ql.CompareNullAsDefault(ql.OpEQ, ql.F("Price"), ql.Const(0)), []int64{4}},
		{"ids", ql.IDs(ql.F("ItemKey"), 4, 2), []int64{2, 4}},
		{"substring", ql.SubstringAt(ql.F("Title"), 2, "Brien"), []int64{1, 2}},
		{"negated", ql.Not(ql.Contains(ql.F("Title"), "%")), []int64{2, 3, 4}},
		{"subquery", ql.InSelect(ql.F("OwnerRef"), &ql.Query{
			Table:       "Owners",
			Projections: []ql.Projection{{Expr: ql.F("OwnerKey")}},
			Where:       ql.EQ(ql.F("OwnerName"), ql.Const("Bob")),
		}), []int64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ql.Select("Items", "ItemKey")
			q.Where = tt.filter
			assert.Equal(t, tt.want, keys(selectItems(t, drv, c, q)))
		})
	}
}

func TestSQLite_Aggregate(t *testing.T) {
	drv, c := openItems(t)
	q := &ql.Query{
		Table: "Items",
		Projections: []ql.Projection{
			ql.Project(ql.F("OwnerRef.OwnerName"), "Owner"),
			ql.Project(ql.CountAll(), "Items"),
		},
		GroupBy: []ql.Expr{ql.F("OwnerRef.OwnerName")},
		Having:  ql.GT(ql.CountAll(), ql.Const(1)),
	}
	stmt, err := c.Compile(q)
	require.NoError(t, err)
	rt, err := Select(context.Background(), drv, stmt)
	require.NoError(t, err, stmt.SQL)
	assert.Equal(t, []string{"Owner", "Items"}, rt.Columns)
	assert.Equal(t, [][]any{{"Ann", int64(2)}}, rt.Rows)
}
