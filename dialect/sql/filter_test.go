package sql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema/field"
)

func formatFilter(t *testing.T, d Dialect, p ql.Filter) (string, error) {
	t.Helper()
	b := resolved(t, p)
	err := NewFormatter(d).Filter(b, p, FormatOptions{})
	return b.String(), err
}

// noBetween is a double-quoting rule set without BETWEEN.
var noBetween = NewCommon("nobetween", dialect.Capabilities{
	RowLimit: dialect.RowLimitLimit,
	Envelope: dialect.EnvelopeDoubleQuote,
})

func TestFormatter_Filter(t *testing.T) {
	t.Parallel()
	var (
		name    = ql.F("Name")
		qty     = ql.F("Qty")
		jan1    = ymd(2024, time.January, 1)
		jan31   = ymd(2024, time.January, 31)
		mar1    = ymd(2024, time.March, 1)
		mar31   = ymd(2024, time.March, 31)
		ten     = decimal.NewFromInt(10)
		twenty  = decimal.NewFromInt(20)
		noBound decimal.NullDecimal
	)
	tests := []struct {
		name    string
		dialect Dialect
		filter  ql.Filter
		want    string
	}{
		{"nil", NewSQLite(), nil, "1=1"},
		{"true", NewSQLite(), ql.True, "1=1"},
		{"false", NewSQLite(), ql.False, "1=0"},
		{"equal string", NewSQLite(), ql.EQ(name, ql.Const("O'Brien")), `"Name"='O''Brien'`},
		{"not equal", NewAccess(), ql.NEQ(name, ql.Const("x")), "[Name]<>'x'"},
		{"greater", NewSQLite(), ql.GT(qty, ql.Const(5)), `"Qty">5`},
		{"constant left", NewSQLite(), ql.LT(ql.Const(5), qty), `5<"Qty"`},
		{"arithmetic operand", NewSQLite(), ql.GT(ql.Mul(ql.Add(qty, ql.Const(1)), ql.Const(2)), ql.Const(10)), `(("Qty"+1)*2)>10`},
		{"is null", NewSQLite(), ql.EQ(qty, ql.Null(field.TypeInt)), `"Qty" IS NULL`},
		{"is not null", NewSQLite(), ql.NEQ(qty, ql.Null(field.TypeUnknown)), `"Qty" IS NOT NULL`},
		{"null on the left", NewSQLite(), ql.EQ(ql.Null(field.TypeInt), qty), `"Qty" IS NULL`},
		{"untyped constant takes column type", NewSQLite(), ql.EQ(ql.F("Price"), ql.TypedConst(decimal.RequireFromString("9.90"), field.TypeUnknown)), `"Price"=9.9`},
		{"date constant", NewSQLite(), ql.EQ(ql.F("Created"), ql.TypedConst(jan1, field.TypeDate)), `"Created"='2024-01-01'`},

		{"null as default matches", NewSQLite(), ql.CompareNullAsDefault(ql.OpEQ, qty, ql.Const(0)), `COALESCE("Qty", 0)=0`},
		{"null as default skipped", NewSQLite(), ql.CompareNullAsDefault(ql.OpEQ, qty, ql.Const(5)), `"Qty"=5`},
		{"null as default not nullable", NewSQLite(), ql.CompareNullAsDefault(ql.OpEQ, ql.F("Id"), ql.Const(0)), `"Id"=0`},
		{"null as default column operand", NewSQLite(), ql.CompareNullAsDefault(ql.OpLT, qty, ql.F("Id")), `COALESCE("Qty", 0)<"Id"`},
		{"null as default money", NewSQLite(), ql.CompareNullAsDefault(ql.OpLTE, ql.F("Price"), ql.Const(3)), `COALESCE("Price", 0)<=3`},

		{"no ids", NewSQLite(), ql.IDs(ql.F("Id")), "1=0"},
		{"one id", NewSQLite(), ql.IDs(ql.F("Id"), 7), `"Id"=7`},
		{"ids keep order", NewSQLite(), ql.IDs(ql.F("Id"), 3, 1, 2), `"Id" IN (3, 1, 2)`},
		{"no values", NewSQLite(), ql.In(name), "1=0"},
		{"one value", NewSQLite(), ql.In(name, "a"), `"Name"='a'`},
		{"values", NewSQLite(), ql.In(name, "a", "b'c"), `"Name" IN ('a', 'b''c')`},
		{"typed values", NewPostgres(), ql.InTyped(ql.F("Created"), field.TypeDate, jan1, jan31), `"Created" IN (DATE '2024-01-01', DATE '2024-01-31')`},

		{"prefix default", NewAccess(), ql.HasPrefix(name, "50%_[x]"), "[Name] LIKE '50[%][_][[]x]%'"},
		{"prefix default quote", NewAccess(), ql.HasPrefix(name, "O'B"), "[Name] LIKE 'O['']B%'"},
		{"prefix postgres", NewPostgres(), ql.HasPrefix(name, "50%_off"), `"Name" LIKE '50\%\_off%'`},
		{"prefix sqlite", NewSQLite(), ql.HasPrefix(name, "50%"), `"Name" LIKE '50\%%' ESCAPE '\'`},
		{"prefix mysql", NewMySQL(), ql.HasPrefix(name, "a_b"), "`Name` LIKE 'a\\\\_b%'"},
		{"prefix fold", NewSQLServer(), ql.HasPrefixFold(name, "ab"), "UPPER([Name]) LIKE UPPER('ab%')"},
		{"contains", NewPostgres(), ql.Contains(name, "a_b"), `"Name" LIKE '%a\_b%'`},
		{"contains fold", NewAccess(), ql.ContainsFold(name, "ab"), "UCASE([Name]) LIKE UCASE('%ab%')"},
		{"substring at", NewSQLite(), ql.SubstringAt(name, 2, "ab"), `SUBSTR("Name", 3, 2)='ab'`},
		{"substring at runes", NewSQLServer(), ql.SubstringAt(name, 0, "äö"), "SUBSTRING([Name], 1, 2)='äö'"},
		{"substring at fold", NewSQLite(), ql.SubstringAtFold(name, 0, "ab"), `UPPER(SUBSTR("Name", 1, 2))=UPPER('ab')`},

		{"range equal bounds", NewSQLite(), ql.Between(qty, ten, ten), `"Qty"=10`},
		{"range between", NewSQLite(), ql.Between(qty, ten, twenty), `"Qty" BETWEEN 10 AND 20`},
		{"range without between", noBetween, ql.Between(qty, ten, twenty), `("Qty">=10) AND ("Qty"<=20)`},
		{"range lower", NewSQLite(), ql.NumRange(qty, ql.Bound(ten), noBound), `"Qty">=10`},
		{"range upper", NewSQLite(), ql.NumRange(qty, noBound, ql.Bound(decimal.RequireFromString("2.5"))), `"Qty"<=2.5`},
		{"range open", NewSQLite(), ql.NumRange(qty, noBound, noBound), "1=1"},

		{"date range", NewSQLite(), ql.DateRange(ql.F("Created"), jan1, jan31), `("Created">='2024-01-01') AND ("Created"<'2024-02-01')`},
		{"date range default", NewAccess(), ql.DateRange(ql.F("Created"), jan1, jan31), "([Created]>=#1/1/2024#) AND ([Created]<#2/1/2024#)"},
		{"date range from", NewSQLite(), ql.DateRange(ql.F("Created"), jan1, time.Time{}), `"Created">='2024-01-01'`},
		{"date range until", NewPostgres(), ql.DateRange(ql.F("Created"), time.Time{}, jan31), `"Created"<DATE '2024-02-01'`},
		{"date range open", NewSQLite(), ql.DateRange(ql.F("Created"), time.Time{}, time.Time{}), "1=1"},
		{
			"date inclusion", NewSQLite(),
			ql.DateIncludes(ql.F("Created"), ql.F("Closed"), ql.TypedConst(mar1, field.TypeDate)),
			`(COALESCE("Created", '2024-03-01')<='2024-03-01') AND (COALESCE("Closed", '2024-03-01')>='2024-03-01')`,
		},
		{
			"date overlap", NewSQLite(),
			ql.DateOverlaps(ql.F("Created"), ql.F("Closed"), mar1, mar31),
			`(COALESCE("Created", '2024-03-31')<='2024-03-31') AND (COALESCE("Closed", '2024-03-01')>='2024-03-01')`,
		},
		{"date overlap from", NewSQLite(), ql.DateOverlaps(ql.F("Created"), ql.F("Closed"), mar1, time.Time{}), `COALESCE("Closed", '2024-03-01')>='2024-03-01'`},
		{"date overlap open", NewSQLite(), ql.DateOverlaps(ql.F("Created"), ql.F("Closed"), time.Time{}, time.Time{}), "1=1"},

		{"and", NewSQLite(), &ql.AndFilter{Filters: []ql.Filter{ql.EQ(name, ql.Const("a")), ql.GT(qty, ql.Const(1))}}, `("Name"='a') AND ("Qty">1)`},
		{"or", NewSQLite(), &ql.OrFilter{Filters: []ql.Filter{ql.EQ(name, ql.Const("a")), ql.EQ(name, ql.Const("b"))}}, `("Name"='a') OR ("Name"='b')`},
		{"empty and", NewSQLite(), &ql.AndFilter{}, "1=1"},
		{"empty or", NewSQLite(), &ql.OrFilter{}, "1=0"},
		{"not", NewSQLite(), ql.Not(ql.EQ(name, ql.Const("a"))), `NOT ("Name"='a')`},
		{
			"nested", NewSQLite(),
			&ql.AndFilter{Filters: []ql.Filter{
				&ql.OrFilter{Filters: []ql.Filter{ql.IDs(ql.F("Id"), 1, 2), ql.Not(ql.EQ(qty, ql.Null(field.TypeInt)))}},
				ql.HasPrefix(name, "x"),
			}},
			`(("Id" IN (1, 2)) OR (NOT ("Qty" IS NULL))) AND ("Name" LIKE 'x%' ESCAPE '\')`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := formatFilter(t, tt.dialect, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatter_FilterErrors(t *testing.T) {
	t.Parallel()
	qty := ql.F("Qty")
	for _, op := range []ql.Op{ql.OpGT, ql.OpGTE, ql.OpLT, ql.OpLTE} {
		_, err := formatFilter(t, NewSQLite(), ql.Compare(op, qty, ql.Null(field.TypeInt)))
		assert.True(t, veloxql.IsInvalidArgument(err), op.String())
	}
	_, err := formatFilter(t, NewSQLite(), ql.Compare(ql.Op(99), qty, ql.Const(1)))
	assert.True(t, veloxql.IsInvalidArgument(err))
	_, err = formatFilter(t, NewSQLite(), ql.EQ(qty, nil))
	assert.True(t, veloxql.IsInvalidArgument(err))

	_, err = formatFilter(t, NewSQLite(), ql.InSelect(ql.F("OwnerId"), ql.Select("Users", "Id")))
	assert.True(t, veloxql.IsUnsupported(err), "subqueries are compiled by the SELECT assembler")
}
