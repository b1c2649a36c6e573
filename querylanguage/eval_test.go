package querylanguage_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxql"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema/field"
)

func TestEvaluateExpr(t *testing.T) {
	t.Parallel()
	row := ql.MapRow{
		"A":            int64(2),
		"B":            3,
		"Price":        decimal.RequireFromString("1.50"),
		"Name":         "straße",
		"Missing":      nil,
		"OwnerId.Name": "a8m",
	}
	tests := []struct {
		name string
		expr ql.Expr
		want any
	}{
		{"Add", ql.Add(ql.F("A"), ql.F("B")), int64(5)},
		{"Nested", ql.Mul(ql.Add(ql.F("A"), ql.F("B")), ql.Const(2)), int64(10)},
		{"IntDivide", ql.Div(ql.F("B"), ql.F("A")), int64(1)},
		{"FloatDivide", ql.Div(ql.Const(3.0), ql.Const(2.0)), 1.5},
		{"Money", ql.Mul(ql.F("Price"), ql.F("A")), decimal.RequireFromString("3")},
		{"Negate", ql.Neg(ql.F("A")), int64(-2)},
		{"Abs", ql.Abs(ql.Const(-4)), int64(4)},
		{"Concat", ql.Add(ql.Const("a"), ql.Const("b")), "ab"},
		{"NullPropagates", ql.Add(ql.F("A"), ql.F("Missing")), nil},
		{"Coalesce", ql.Coalesce(ql.F("Missing"), ql.Const("x")), "x"},
		{"Length", ql.Length(ql.F("Name")), int64(6)},
		{"Upper", ql.Upper(ql.F("Name")), "STRASSE"},
		{"Lower", ql.Lower(ql.Const("ABC")), "abc"},
		{"Substring", ql.Substring(ql.Const("abcdef"), ql.Const(1), ql.Const(3)), "bcd"},
		{"SubstringClamp", ql.Substring(ql.Const("abc"), ql.Const(2), ql.Const(10)), "c"},
		{"Dotted", ql.F("OwnerId.Name"), "a8m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.expr.Evaluate(row, false)
			require.NoError(t, err)
			if d, ok := tt.want.(decimal.Decimal); ok {
				require.IsType(t, decimal.Decimal{}, got)
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()
	_, err := ql.Sum(ql.F("A")).Evaluate(ql.MapRow{"A": 1}, false)
	assert.True(t, veloxql.IsUnsupported(err))
	_, err = ql.F("Nope").Evaluate(ql.MapRow{}, false)
	assert.True(t, veloxql.IsInvalidArgument(err))
	_, err = ql.Length(ql.Const(1)).Evaluate(nil, false)
	assert.True(t, veloxql.IsInvalidArgument(err))
	_, err = ql.LT(ql.F("A"), ql.Null(field.TypeInt)).Evaluate(ql.MapRow{"A": 1}, false)
	assert.True(t, veloxql.IsInvalidArgument(err))
	_, err = ql.EQ(ql.F("A"), ql.Const("x")).Evaluate(ql.MapRow{"A": 1}, false)
	assert.True(t, veloxql.IsInvalidArgument(err))
	_, err = ql.InSelect(ql.F("A"), ql.Select("Users", "Id")).Evaluate(ql.MapRow{"A": 1}, false)
	assert.True(t, veloxql.IsUnsupported(err))
}

func TestEvaluateFilter(t *testing.T) {
	t.Parallel()
	created := time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)
	row := ql.MapRow{
		"Id":      int64(7),
		"Name":    "O'Brien",
		"Nick":    nil,
		"Qty":     5,
		"Created": created,
		"From":    day(2023, 12, 1),
		"To":      nil,
		"Active":  true,
	}
	tests := []struct {
		name   string
		filter ql.Filter
		want   bool
	}{
		{"Equal", ql.EQ(ql.F("Name"), ql.Const("O'Brien")), true},
		{"IsNull", ql.EQ(ql.F("Nick"), ql.Null(field.TypeString)), true},
		{"IsNotNull", ql.NEQ(ql.F("Name"), ql.Null(field.TypeString)), true},
		{"NullNotEqual", ql.NEQ(ql.F("Nick"), ql.Const("x")), false},
		{"NullAsDefault", ql.CompareNullAsDefault(ql.OpNEQ, ql.F("Nick"), ql.Const("x")), true},
		{"NullAsDefaultEqual", ql.CompareNullAsDefault(ql.OpEQ, ql.F("Nick"), ql.Const("")), true},
		{"MixedNumbers", ql.GT(ql.F("Qty"), ql.Const(4.5)), true},
		{"IDsOne", ql.IDs(ql.F("Id"), 7), true},
		{"IDsMany", ql.IDs(ql.F("Id"), 1, 2), false},
		{"IDsNone", ql.IDs(ql.F("Id")), false},
		{"Values", ql.In(ql.F("Name"), "a", "O'Brien"), true},
		{"Prefix", ql.HasPrefix(ql.F("Name"), "O'"), true},
		{"PrefixCase", ql.HasPrefix(ql.F("Name"), "o'"), false},
		{"PrefixFold", ql.HasPrefixFold(ql.F("Name"), "o'b"), true},
		{"SubstringAt", ql.SubstringAt(ql.F("Name"), 2, "Bri"), true},
		{"SubstringAtFold", ql.SubstringAtFold(ql.F("Name"), 2, "bri"), true},
		{"SubstringAtMiss", ql.SubstringAt(ql.F("Name"), 1, "Bri"), false},
		{"Contains", ql.Contains(ql.F("Name"), "rie"), true},
		{"ContainsFold", ql.ContainsFold(ql.F("Name"), "RIE"), true},
		{"RangeEqual", ql.NumRange(ql.F("Qty"), ql.IntBound(5), ql.IntBound(5)), true},
		{"RangeBelow", ql.NumRange(ql.F("Qty"), ql.IntBound(6), ql.Unbounded), false},
		{"RangeOpen", ql.NumRange(ql.F("Qty"), ql.Unbounded, ql.Unbounded), true},
		{"DateRangeSameDay", ql.DateRange(ql.F("Created"), day(2024, 1, 1), day(2024, 1, 1)), true},
		{"DateRangeBefore", ql.DateRange(ql.F("Created"), time.Time{}, day(2023, 12, 31)), false},
		{"IncludesOpenEnd", ql.DateIncludes(ql.F("From"), ql.F("To"), ql.Const(day(2024, 6, 1))), true},
		{"IncludesBeforeStart", ql.DateIncludes(ql.F("From"), ql.F("To"), ql.Const(day(2023, 6, 1))), false},
		{"Overlaps", ql.DateOverlaps(ql.F("From"), ql.F("To"), day(2023, 1, 1), day(2023, 12, 1)), true},
		{"OverlapsBefore", ql.DateOverlaps(ql.F("From"), ql.F("To"), time.Time{}, day(2023, 11, 30)), false},
		{"And", ql.And(ql.EQ(ql.F("Active"), ql.Const(true)), ql.IDs(ql.F("Id"), 7)), true},
		{"Or", ql.Or(ql.EQ(ql.F("Active"), ql.Const(false)), ql.IDs(ql.F("Id"), 8)), false},
		{"Not", ql.Not(ql.EQ(ql.F("Active"), ql.Const(false))), true},
		{"True", ql.True, true},
		{"False", ql.False, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Evaluate(row, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateNullAsDefaultArgument(t *testing.T) {
	t.Parallel()
	f := ql.LT(ql.F("Qty"), ql.Const(1))
	got, err := f.Evaluate(ql.MapRow{"Qty": nil}, false)
	require.NoError(t, err)
	assert.False(t, got)
	got, err = f.Evaluate(ql.MapRow{"Qty": nil}, true)
	require.NoError(t, err)
	assert.True(t, got)
}
