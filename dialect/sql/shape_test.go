package sql

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/schema/field"
)

func TestCoerce(t *testing.T) {
	t.Parallel()
	guid := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tests := []struct {
		name  string
		value any
		typ   field.Type
		want  any
	}{
		{"nil", nil, field.TypeInt, nil},
		{"unknown passes", int64(1), field.TypeUnknown, int64(1)},
		{"raw text", []byte("abc"), field.TypeString, "abc"},
		{"memo from number", int64(5), field.TypeMemo, "5"},
		{"bool from int", int64(1), field.TypeBool, true},
		{"bool from text", "false", field.TypeBool, false},
		{"int from float", float64(7), field.TypeInt, int64(7)},
		{"int from text", []byte("42"), field.TypeInt, int64(42)},
		{"float from int", int64(2), field.TypeFloat, float64(2)},
		{"float from text", "2.5", field.TypeFloat, 2.5},
		{"guid from text", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", field.TypeGUID, guid},
		{"guid from bytes", guid[:], field.TypeGUID, guid},
		{"binary stays", []byte{1, 2}, field.TypeBinary, []byte{1, 2}},
		{"binary from text", "ab", field.TypeBinary, []byte("ab")},
		{"time from text", "01:30:00", field.TypeTime, 90 * time.Minute},
		{"time from datetime", time.Date(2024, 1, 1, 1, 30, 0, 0, time.UTC), field.TypeTime, 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Coerce(tt.value, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Money(t *testing.T) {
	t.Parallel()
	for _, v := range []any{"12.5", []byte("12.50"), 12.5, decimal.RequireFromString("12.5")} {
		got, err := Coerce(v, field.TypeMoney)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("12.5").Equal(got.(decimal.Decimal)), "%v", v)
	}
}

func TestCoerce_Dates(t *testing.T) {
	t.Parallel()
	want := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	for _, v := range []any{"2024-01-31", "2024-01-31 00:00:00", "2024-01-31T00:00:00Z", want} {
		got, err := Coerce(v, field.TypeDate)
		require.NoError(t, err)
		assert.True(t, want.Equal(got.(time.Time)), "%v", v)
	}
	got, err := Coerce("2024-01-31 10:20:30", field.TypeDateTime)
	require.NoError(t, err)
	assert.Equal(t, 10, got.(time.Time).Hour())
}

func TestCoerce_Errors(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		value any
		typ   field.Type
	}{
		{"abc", field.TypeInt},
		{2.5, field.TypeInt},
		{"maybe", field.TypeBool},
		{"soon", field.TypeDate},
		{"x", field.TypeMoney},
		{"not-a-guid", field.TypeGUID},
		{int64(1), field.TypeBinary},
	} {
		_, err := Coerce(tt.value, tt.typ)
		assert.True(t, veloxql.IsInvalidArgument(err), "%v as %s", tt.value, tt.typ)
	}
}

func TestShape_Apply(t *testing.T) {
	t.Parallel()
	shape := &Shape{Columns: []ShapeColumn{
		{Name: "Id", Type: field.TypeInt},
		{Name: "OwnerId.Name", Type: field.TypeString},
	}}
	table := &ResultTable{
		Columns: []string{"Id", "Name"},
		Rows:    [][]any{{"1", []byte("Ann")}},
	}
	require.NoError(t, shape.Apply(table))
	assert.Equal(t, []string{"Id", "OwnerId.Name"}, table.Columns)
	assert.Equal(t, []field.Type{field.TypeInt, field.TypeString}, table.Types)
	assert.Equal(t, []any{"1", "Ann"}, table.Rows[0], "only raw text is converted without coercion")

	shape.Coerce = true
	require.NoError(t, shape.Apply(table))
	assert.Equal(t, []any{int64(1), "Ann"}, table.Rows[0])

	table.Rows = [][]any{{"x", "Ann"}}
	err := shape.Apply(table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column Id")

	err = shape.Apply(&ResultTable{Columns: []string{"Id"}})
	assert.True(t, veloxql.IsInvalidArgument(err))
}
