package sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/veloxql"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema/field"
)

// ShapeColumn is an output column of a compiled statement.
type ShapeColumn struct {
	Name string
	Type field.Type
}

// Shape maps the raw result of a compiled statement to the columns the
// query asked for. Projections are emitted without AS clauses; the Shape
// carries their names instead.
type Shape struct {
	Columns []ShapeColumn
	// Coerce is set for engines that report result types per value.
	Coerce bool
}

// NewShape returns the shape of the given projections.
func NewShape(b *Builder, projections []ql.Projection, coerce bool) *Shape {
	s := &Shape{Columns: make([]ShapeColumn, len(projections)), Coerce: coerce}
	for i, p := range projections {
		s.Columns[i] = ShapeColumn{Name: p.Name(), Type: TypeOf(b, p.Expr)}
	}
	return s
}

// Names returns the column names of the shape.
func (s *Shape) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// ResultTable is a materialized result set.
type ResultTable struct {
	Columns []string
	Types   []field.Type
	Rows    [][]any
}

// Apply renames the columns of t and, when the shape asks for it, converts
// every value to its declared type. Otherwise only raw text is turned into
// strings.
func (s *Shape) Apply(t *ResultTable) error {
	if len(t.Columns) != len(s.Columns) {
		return veloxql.NewArgumentError("result", "expected %d columns, got %d", len(s.Columns), len(t.Columns))
	}
	t.Types = make([]field.Type, len(s.Columns))
	for i, c := range s.Columns {
		t.Columns[i] = c.Name
		t.Types[i] = c.Type
	}
	for _, row := range t.Rows {
		for i, c := range s.Columns {
			if !s.Coerce {
				if b, ok := row[i].([]byte); ok && c.Type != field.TypeBinary {
					row[i] = string(b)
				}
				continue
			}
			v, err := Coerce(row[i], c.Type)
			if err != nil {
				return fmt.Errorf("column %s: %w", c.Name, err)
			}
			row[i] = v
		}
	}
	return nil
}

// timeLayouts are the text forms dates and times are read back from.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateTime,
	time.DateOnly,
}

// Coerce converts a raw driver value to the Go type of t. Nil stays nil and
// values of an unknown type pass through.
func Coerce(v any, t field.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok && t != field.TypeBinary {
		v = string(b)
	}
	switch t {
	case field.TypeUnknown:
		return v, nil
	case field.TypeString, field.TypeMemo, field.TypeXML:
		switch v := v.(type) {
		case string:
			return v, nil
		case time.Time:
			return v.Format(time.RFC3339Nano), nil
		}
		return fmt.Sprint(v), nil
	case field.TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case float64:
			return v != 0, nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, nil
			}
		}
	case field.TypeInt:
		switch v := v.(type) {
		case int64:
			return v, nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case bool:
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, nil
			}
		}
	case field.TypeFloat:
		switch v := v.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, nil
			}
		}
	case field.TypeMoney:
		switch v := v.(type) {
		case decimal.Decimal:
			return v, nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				return d, nil
			}
		}
	case field.TypeDate, field.TypeDateTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			if tm, ok := parseTime(v); ok {
				return tm, nil
			}
		}
	case field.TypeTime:
		switch v := v.(type) {
		case time.Duration:
			return v, nil
		case time.Time:
			return clock(v), nil
		case string:
			if tm, err := time.Parse(time.TimeOnly, v); err == nil {
				return clock(tm), nil
			}
			if tm, ok := parseTime(v); ok {
				return clock(tm), nil
			}
		}
	case field.TypeGUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			if len(v) == 16 {
				if u, err := uuid.FromBytes([]byte(v)); err == nil {
					return u, nil
				}
			}
			if u, err := uuid.Parse(v); err == nil {
				return u, nil
			}
		}
	case field.TypeBinary:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	}
	return nil, veloxql.NewArgumentError(t.String(), "cannot convert %T value %v", v, v)
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// clock returns the time of day of t.
func clock(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
