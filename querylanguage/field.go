package querylanguage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/veloxql/schema/field"
)

// StringField is a string column that provides type-safe filter methods.
//
// Usage:
//
//	var Name = querylanguage.StringField("Name")
//	q.Where = querylanguage.And(Name.HasPrefix("O'"), Name.NotNull())
type StringField string

// Name returns the column name.
func (f StringField) Name() string { return string(f) }

// Column returns the column reference.
func (f StringField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given value.
func (f StringField) EQ(v string) Filter { return EQ(f.Column(), TypedConst(v, field.TypeString)) }

// NEQ returns a filter that checks if the column does not equal the given value.
func (f StringField) NEQ(v string) Filter { return NEQ(f.Column(), TypedConst(v, field.TypeString)) }

// GT returns a filter that checks if the column is greater than the given value.
func (f StringField) GT(v string) Filter { return GT(f.Column(), TypedConst(v, field.TypeString)) }

// LT returns a filter that checks if the column is less than the given value.
func (f StringField) LT(v string) Filter { return LT(f.Column(), TypedConst(v, field.TypeString)) }

// In returns a filter that checks if the column value is in the given list.
func (f StringField) In(vs ...string) Filter {
	return InTyped(f.Column(), field.TypeString, anySlice(vs)...)
}

// NotIn returns a filter that checks if the column value is not in the given list.
func (f StringField) NotIn(vs ...string) Filter { return Not(f.In(vs...)) }

// Contains returns a filter that checks if the column contains the given substring.
func (f StringField) Contains(v string) Filter { return Contains(f.Column(), v) }

// ContainsFold returns a filter that checks if the column contains the given substring (case-insensitive).
func (f StringField) ContainsFold(v string) Filter { return ContainsFold(f.Column(), v) }

// HasPrefix returns a filter that checks if the column has the given prefix.
func (f StringField) HasPrefix(v string) Filter { return HasPrefix(f.Column(), v) }

// HasPrefixFold returns a filter that checks if the column has the given prefix (case-insensitive).
func (f StringField) HasPrefixFold(v string) Filter { return HasPrefixFold(f.Column(), v) }

// EqualFold returns a filter that checks if the column equals the given value (case-insensitive).
func (f StringField) EqualFold(v string) Filter {
	return EQ(Upper(f.Column()), Upper(TypedConst(v, field.TypeString)))
}

// IsNull returns a filter that checks if the column is NULL.
func (f StringField) IsNull() Filter { return EQ(f.Column(), Null(field.TypeString)) }

// NotNull returns a filter that checks if the column is not NULL.
func (f StringField) NotNull() Filter { return NEQ(f.Column(), Null(field.TypeString)) }

// IntField is an integer column that provides type-safe filter methods.
type IntField string

// Name returns the column name.
func (f IntField) Name() string { return string(f) }

// Column returns the column reference.
func (f IntField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given value.
func (f IntField) EQ(v int64) Filter { return EQ(f.Column(), TypedConst(v, field.TypeInt)) }

// NEQ returns a filter that checks if the column does not equal the given value.
func (f IntField) NEQ(v int64) Filter { return NEQ(f.Column(), TypedConst(v, field.TypeInt)) }

// GT returns a filter that checks if the column is greater than the given value.
func (f IntField) GT(v int64) Filter { return GT(f.Column(), TypedConst(v, field.TypeInt)) }

// GTE returns a filter that checks if the column is greater than or equal to the given value.
func (f IntField) GTE(v int64) Filter { return GTE(f.Column(), TypedConst(v, field.TypeInt)) }

// LT returns a filter that checks if the column is less than the given value.
func (f IntField) LT(v int64) Filter { return LT(f.Column(), TypedConst(v, field.TypeInt)) }

// LTE returns a filter that checks if the column is less than or equal to the given value.
func (f IntField) LTE(v int64) Filter { return LTE(f.Column(), TypedConst(v, field.TypeInt)) }

// In returns a filter that checks if the column is one of the given ids.
func (f IntField) In(ids ...int64) Filter { return IDs(f.Column(), ids...) }

// NotIn returns a filter that checks if the column is none of the given ids.
func (f IntField) NotIn(ids ...int64) Filter { return Not(f.In(ids...)) }

// Between returns a filter that checks if the column is within [lo, hi].
func (f IntField) Between(lo, hi int64) Filter {
	return NumRange(f.Column(), IntBound(lo), IntBound(hi))
}

// IsNull returns a filter that checks if the column is NULL.
func (f IntField) IsNull() Filter { return EQ(f.Column(), Null(field.TypeInt)) }

// NotNull returns a filter that checks if the column is not NULL.
func (f IntField) NotNull() Filter { return NEQ(f.Column(), Null(field.TypeInt)) }

// FloatField is a floating point column that provides type-safe filter methods.
type FloatField string

// Name returns the column name.
func (f FloatField) Name() string { return string(f) }

// Column returns the column reference.
func (f FloatField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given value.
func (f FloatField) EQ(v float64) Filter { return EQ(f.Column(), TypedConst(v, field.TypeFloat)) }

// GT returns a filter that checks if the column is greater than the given value.
func (f FloatField) GT(v float64) Filter { return GT(f.Column(), TypedConst(v, field.TypeFloat)) }

// LT returns a filter that checks if the column is less than the given value.
func (f FloatField) LT(v float64) Filter { return LT(f.Column(), TypedConst(v, field.TypeFloat)) }

// Between returns a filter that checks if the column is within [lo, hi].
func (f FloatField) Between(lo, hi float64) Filter {
	return Between(f.Column(), decimal.NewFromFloat(lo), decimal.NewFromFloat(hi))
}

// MoneyField is a decimal column that provides type-safe filter methods.
type MoneyField string

// Name returns the column name.
func (f MoneyField) Name() string { return string(f) }

// Column returns the column reference.
func (f MoneyField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given value.
func (f MoneyField) EQ(v decimal.Decimal) Filter { return EQ(f.Column(), TypedConst(v, field.TypeMoney)) }

// GTE returns a filter that checks if the column is greater than or equal to the given value.
func (f MoneyField) GTE(v decimal.Decimal) Filter { return GTE(f.Column(), TypedConst(v, field.TypeMoney)) }

// LTE returns a filter that checks if the column is less than or equal to the given value.
func (f MoneyField) LTE(v decimal.Decimal) Filter { return LTE(f.Column(), TypedConst(v, field.TypeMoney)) }

// Between returns a filter that checks if the column is within [lo, hi].
func (f MoneyField) Between(lo, hi decimal.Decimal) Filter { return Between(f.Column(), lo, hi) }

// BoolField is a boolean column that provides type-safe filter methods.
type BoolField string

// Name returns the column name.
func (f BoolField) Name() string { return string(f) }

// Column returns the column reference.
func (f BoolField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given value.
func (f BoolField) EQ(v bool) Filter { return EQ(f.Column(), TypedConst(v, field.TypeBool)) }

// NEQ returns a filter that checks if the column does not equal the given value.
func (f BoolField) NEQ(v bool) Filter { return NEQ(f.Column(), TypedConst(v, field.TypeBool)) }

// IsNull returns a filter that checks if the column is NULL.
func (f BoolField) IsNull() Filter { return EQ(f.Column(), Null(field.TypeBool)) }

// DateField is a date column that provides type-safe filter methods.
type DateField string

// Name returns the column name.
func (f DateField) Name() string { return string(f) }

// Column returns the column reference.
func (f DateField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given date.
func (f DateField) EQ(v time.Time) Filter { return EQ(f.Column(), TypedConst(v, field.TypeDate)) }

// Before returns a filter that checks if the column is before the given date.
func (f DateField) Before(v time.Time) Filter { return LT(f.Column(), TypedConst(v, field.TypeDate)) }

// After returns a filter that checks if the column is after the given date.
func (f DateField) After(v time.Time) Filter { return GT(f.Column(), TypedConst(v, field.TypeDate)) }

// Within returns a filter that checks if the column falls on a day in
// [min, max]. A zero bound is open.
func (f DateField) Within(min, max time.Time) Filter { return DateRange(f.Column(), min, max) }

// IsNull returns a filter that checks if the column is NULL.
func (f DateField) IsNull() Filter { return EQ(f.Column(), Null(field.TypeDate)) }

// NotNull returns a filter that checks if the column is not NULL.
func (f DateField) NotNull() Filter { return NEQ(f.Column(), Null(field.TypeDate)) }

// GUIDField is a GUID column that provides type-safe filter methods.
type GUIDField string

// Name returns the column name.
func (f GUIDField) Name() string { return string(f) }

// Column returns the column reference.
func (f GUIDField) Column() *ColumnExpr { return Column(string(f)) }

// EQ returns a filter that checks if the column equals the given value.
func (f GUIDField) EQ(v uuid.UUID) Filter { return EQ(f.Column(), TypedConst(v, field.TypeGUID)) }

// In returns a filter that checks if the column value is in the given list.
func (f GUIDField) In(vs ...uuid.UUID) Filter {
	return InTyped(f.Column(), field.TypeGUID, anySlice(vs)...)
}

// IsNull returns a filter that checks if the column is NULL.
func (f GUIDField) IsNull() Filter { return EQ(f.Column(), Null(field.TypeGUID)) }

func anySlice[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
