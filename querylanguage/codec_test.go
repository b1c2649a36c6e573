package querylanguage_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/syssam/veloxql"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema/field"
)

func TestFilterCodec(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	filters := []ql.Filter{
		ql.EQ(ql.F("Name"), ql.Const("O'Brien")),
		ql.CompareNullAsDefault(ql.OpLTE, ql.Abs(ql.F("Qty")), ql.Const(10)),
		ql.EQ(ql.F("Guid"), ql.Const(id)),
		ql.EQ(ql.F("Price"), ql.Const(decimal.RequireFromString("9.99"))),
		ql.EQ(ql.F("Big"), ql.Const(uint64(math.MaxUint64))),
		ql.EQ(ql.F("Blob"), ql.Const([]byte{0, 1, 2})),
		ql.EQ(ql.F("At"), ql.Const(90*time.Minute)),
		ql.EQ(ql.F("Done"), ql.Const(false)),
		ql.EQ(ql.F("Created"), ql.Const(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))),
		ql.NEQ(ql.F("Nick"), ql.Null(field.TypeString)),
		ql.IDs(ql.F("Id"), 3, 1, 2),
		ql.InTyped(ql.F("Score"), field.TypeFloat, 1.5, 2),
		ql.HasPrefixFold(ql.F("Name"), ""),
		ql.SubstringAt(ql.F("Name"), 2, "Bri"),
		ql.Contains(ql.F("Name"), "%"),
		ql.NumRange(ql.F("Qty"), ql.IntBound(1), ql.Unbounded),
		ql.DateRange(ql.F("Created"), day(2024, 1, 1), day(2024, 2, 1)),
		ql.DateIncludes(ql.F("From"), ql.F("To"), ql.Const(day(2024, 1, 1))),
		ql.DateOverlaps(ql.F("From"), ql.F("To"), time.Time{}, day(2024, 1, 1)),
		ql.Or(ql.True, ql.Not(ql.False)),
		&ql.OrFilter{Filters: []ql.Filter{ql.True, ql.Not(ql.False)}},
		ql.InSelect(ql.F("OwnerId"), &ql.Query{
			Table:       "Users",
			Projections: []ql.Projection{ql.Project(ql.F("Id"), "")},
			Where:       ql.EQ(ql.Lower(ql.F("Email")), ql.Const("a@b.c")),
			Limit:       5,
		}),
		ql.EQ(ql.Coalesce(ql.F("A"), ql.F("B"), ql.Const(0)), ql.Substring(ql.F("S"), ql.Const(0), ql.Const(1))),
	}
	for _, f := range filters {
		t.Run(f.String(), func(t *testing.T) {
			b, err := ql.MarshalFilter(f)
			require.NoError(t, err)
			got, err := ql.UnmarshalFilter(b)
			require.NoError(t, err)
			assert.True(t, ql.Equal(f, got), "got %s", got)
			assert.Equal(t, ql.Hash(f), ql.Hash(got))
		})
	}
}

func TestExprCodec(t *testing.T) {
	t.Parallel()
	for _, x := range []ql.Expr{ql.CountAll(), ql.Avg(ql.F("Qty")), ql.Neg(ql.F("Qty")), ql.Null(field.TypeDate)} {
		b, err := ql.MarshalExpr(x)
		require.NoError(t, err)
		got, err := ql.UnmarshalExpr(b)
		require.NoError(t, err)
		assert.True(t, ql.Equal(x, got), "%s != %s", x, got)
	}
	_, err := ql.MarshalExpr(nil)
	assert.True(t, veloxql.IsInvalidArgument(err))
	_, err = ql.UnmarshalExpr([]byte{0xc1})
	assert.Error(t, err)
}

func TestQueryCodec(t *testing.T) {
	t.Parallel()
	q := &ql.Query{
		Table: "Docs",
		Projections: []ql.Projection{
			ql.Project(ql.F("OwnerId.Name"), "Owner"),
			ql.Project(ql.Count(ql.F("Id")), "N"),
		},
		Where:    ql.GT(ql.F("Qty"), ql.Const(0)),
		GroupBy:  []ql.Expr{ql.F("OwnerId.Name")},
		Having:   ql.GT(ql.Count(ql.F("Id")), ql.Const(1)),
		OrderBy:  []ql.Order{ql.Desc(ql.F("OwnerId.Name"))},
		Limit:    10,
		Distinct: true,
	}
	b, err := ql.MarshalQuery(q)
	require.NoError(t, err)
	got, err := ql.UnmarshalQuery(b)
	require.NoError(t, err)
	assert.True(t, q.Equal(got))
	assert.Equal(t, q.String(), got.String())

	out, err := yaml.Marshal(q)
	require.NoError(t, err)
	qs, err := ql.LoadQueries(strings.NewReader(string(out)))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.True(t, q.Equal(qs[0]), "%s", out)
}

func TestLoadQueries(t *testing.T) {
	t.Parallel()
	qs, err := ql.LoadQueries(strings.NewReader(`
table: Docs
select:
  - expr: {name: Id}
  - expr: {name: Name}
  - expr: {name: OwnerId.Name}
    as: OwnerName
where:
  kind: compare
  name: "=="
  null_as_default: true
  args: [{name: Name}, {kind: const, value: "O'Brien"}]
---
table: Docs
where:
  kind: and
  args:
    - {kind: between, args: [{name: Qty}], min: "1", max: "10"}
    - {kind: date_between, args: [{name: Created}], min: "2024-01-01", max: "2024-01-31"}
    - {kind: values, args: [{name: Price}], values: [{kind: const, type: money, value: "1.50"}]}
`))
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, `select Id, Name, OwnerId.Name as OwnerName from Docs where default(Name == "O'Brien")`, qs[0].String())
	assert.Equal(t, `select * from Docs where (between(Qty, 1, 10) && date_between(Created, "2024-01-01", "2024-01-31") && Price in [1.5])`, qs[1].String())

	_, err = ql.LoadQueries(strings.NewReader("table: Docs\nwhere: {kind: bogus, args: [{name: X}]}\n"))
	assert.ErrorContains(t, err, "unknown filter kind")
	_, err = ql.LoadQueries(strings.NewReader("select: []\n"))
	assert.ErrorContains(t, err, "query without a table")
	_, err = ql.LoadQueries(strings.NewReader("table: Docs\nwhere: {kind: const, value: 1}\n"))
	assert.Error(t, err)
	_, err = ql.LoadQueries(strings.NewReader("table: Docs\nselect: [{expr: {kind: func, name: substring, args: [{name: X}]}}]\n"))
	assert.True(t, veloxql.IsInvalidArgument(err))
}
