package querylanguage

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/schema/field"
)

// upper maps s to upper case the way the dialects' UPPER function does for
// the invariant culture. Casers are not safe for concurrent use, so one is
// made per call.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// substring returns n characters of s starting at the 0-based start.
// Out-of-range positions are clamped.
func substring(s string, start, n int64) string {
	if start < 0 {
		n += start
		start = 0
	}
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if start >= int64(len(r)) {
		return ""
	}
	end := start + n
	if end > int64(len(r)) {
		end = int64(len(r))
	}
	return string(r[start:end])
}

func evalString(x Expr, row Row, nullAsDefault bool) (string, bool, error) {
	v, err := x.Evaluate(row, nullAsDefault)
	if err != nil {
		return "", false, err
	}
	switch v := v.(type) {
	case nil:
		if nullAsDefault {
			return "", true, nil
		}
		return "", false, nil
	case string:
		return v, true, nil
	}
	return "", false, veloxql.NewArgumentError(x.String(), "value of type %T is not a string", v)
}

// exprType returns the declared type of a constant, or TypeUnknown.
func exprType(x Expr) field.Type {
	if c, ok := x.(*ConstExpr); ok {
		return c.Type
	}
	return field.TypeUnknown
}

// defaultNulls replaces a NULL operand by the default value of the type of
// the comparison. The type is the declared type of either side, or the type
// of the non-NULL value.
func defaultNulls(x, y any, tx, ty field.Type) (any, any, error) {
	t := tx
	if t == field.TypeUnknown {
		t = ty
	}
	if t == field.TypeUnknown {
		if x != nil {
			t = field.Infer(x)
		} else {
			t = field.Infer(y)
		}
	}
	d, ok := t.Default()
	if !ok {
		return x, y, nil
	}
	if x == nil {
		x = d
	}
	if y == nil {
		y = d
	}
	return x, y, nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case decimal.Decimal:
		return v, true
	}
	return decimal.Decimal{}, false
}

// compareValues returns -1, 0 or +1. Numbers of different kinds compare by
// value; other values must be of the same kind.
func compareValues(x, y any) (int, error) {
	x, y = normalize(x), normalize(y)
	switch x := x.(type) {
	case int64:
		if y, ok := y.(int64); ok {
			return cmpOrdered(x, y), nil
		}
	case float64:
		if y, ok := y.(float64); ok {
			return cmpOrdered(x, y), nil
		}
	case string:
		if y, ok := y.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := y.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		if y, ok := y.(time.Time); ok {
			return x.Compare(y), nil
		}
	case time.Duration:
		if y, ok := y.(time.Duration); ok {
			return cmpOrdered(x, y), nil
		}
	case uuid.UUID:
		if y, ok := y.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:]), nil
		}
	case []byte:
		if y, ok := y.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}
	dx, okx := toDecimal(x)
	dy, oky := toDecimal(y)
	if okx && oky {
		return dx.Cmp(dy), nil
	}
	return 0, veloxql.NewArgumentError("", "cannot compare %T with %T", x, y)
}

func cmpOrdered[T int64 | float64 | time.Duration](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func evalFunc(kind FuncKind, args []any) (any, error) {
	if kind == FuncCoalesce {
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	}
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}
	switch kind {
	case FuncAdd, FuncSubtract, FuncMultiply, FuncDivide:
		return arith(kind, args[0], args[1])
	case FuncNegate:
		switch v := args[0].(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		case decimal.Decimal:
			return v.Neg(), nil
		}
		return nil, veloxql.NewArgumentError(kind.String(), "cannot negate %T", args[0])
	case FuncAbs:
		switch v := args[0].(type) {
		case int64:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		case float64:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		case decimal.Decimal:
			return v.Abs(), nil
		}
		return nil, veloxql.NewArgumentError(kind.String(), "cannot take abs of %T", args[0])
	case FuncLength:
		s, ok := args[0].(string)
		if !ok {
			return nil, veloxql.NewArgumentError(kind.String(), "expects a string, got %T", args[0])
		}
		return int64(utf8.RuneCountInString(s)), nil
	case FuncLower, FuncUpper:
		s, ok := args[0].(string)
		if !ok {
			return nil, veloxql.NewArgumentError(kind.String(), "expects a string, got %T", args[0])
		}
		if kind == FuncLower {
			return lower(s), nil
		}
		return upper(s), nil
	case FuncSubstring:
		s, ok := args[0].(string)
		start, ok1 := args[1].(int64)
		n, ok2 := args[2].(int64)
		if !ok || !ok1 || !ok2 {
			return nil, veloxql.NewArgumentError(kind.String(), "expects (string, int, int), got (%T, %T, %T)", args[0], args[1], args[2])
		}
		return substring(s, start, n), nil
	}
	veloxql.Unreachable("querylanguage.evalFunc", kind)
	return nil, nil
}

func arith(kind FuncKind, x, y any) (any, error) {
	if xs, ok := x.(string); ok && kind == FuncAdd {
		if ys, ok := y.(string); ok {
			return xs + ys, nil
		}
	}
	switch x := x.(type) {
	case int64:
		if y, ok := y.(int64); ok {
			switch kind {
			case FuncAdd:
				return x + y, nil
			case FuncSubtract:
				return x - y, nil
			case FuncMultiply:
				return x * y, nil
			default:
				if y == 0 {
					return nil, veloxql.NewArgumentError(kind.String(), "division by zero")
				}
				return x / y, nil
			}
		}
	case float64:
		if y, ok := y.(float64); ok {
			switch kind {
			case FuncAdd:
				return x + y, nil
			case FuncSubtract:
				return x - y, nil
			case FuncMultiply:
				return x * y, nil
			default:
				return x / y, nil
			}
		}
	}
	dx, okx := toDecimal(x)
	dy, oky := toDecimal(y)
	if !okx || !oky {
		return nil, veloxql.NewArgumentError(kind.String(), "cannot apply to %T and %T", x, y)
	}
	switch kind {
	case FuncAdd:
		return dx.Add(dy), nil
	case FuncSubtract:
		return dx.Sub(dy), nil
	case FuncMultiply:
		return dx.Mul(dy), nil
	}
	if dy.IsZero() {
		return nil, veloxql.NewArgumentError(kind.String(), "division by zero")
	}
	return dx.Div(dy), nil
}

// Equal reports whether two nodes are structurally equal.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case *ColumnExpr:
		b, ok := b.(*ColumnExpr)
		return ok && a.Name == b.Name
	case *ConstExpr:
		b, ok := b.(*ConstExpr)
		return ok && a.Type == b.Type && valuesEqual(a.Value, b.Value)
	case *FuncExpr:
		b, ok := b.(*FuncExpr)
		return ok && a.Kind == b.Kind && exprsEqual(a.Args, b.Args)
	case *AggregateExpr:
		b, ok := b.(*AggregateExpr)
		return ok && a.Kind == b.Kind && equalExpr(a.Arg, b.Arg)
	case *CompareFilter:
		b, ok := b.(*CompareFilter)
		return ok && a.Op == b.Op && a.NullAsDefault == b.NullAsDefault && Equal(a.Left, b.Left) && Equal(a.Right, b.Right)
	case *IDsFilter:
		b, ok := b.(*IDsFilter)
		if !ok || len(a.IDs) != len(b.IDs) || !Equal(a.Expr, b.Expr) {
			return false
		}
		for i := range a.IDs {
			if a.IDs[i] != b.IDs[i] {
				return false
			}
		}
		return true
	case *ValuesFilter:
		b, ok := b.(*ValuesFilter)
		if !ok || len(a.Values) != len(b.Values) || !Equal(a.Expr, b.Expr) {
			return false
		}
		for i := range a.Values {
			if !Equal(a.Values[i], b.Values[i]) {
				return false
			}
		}
		return true
	case *StartsWithFilter:
		b, ok := b.(*StartsWithFilter)
		return ok && a.Prefix == b.Prefix && a.IgnoreCase == b.IgnoreCase && Equal(a.Expr, b.Expr)
	case *SubstringFilter:
		b, ok := b.(*SubstringFilter)
		return ok && a.Start == b.Start && a.Value == b.Value && a.IgnoreCase == b.IgnoreCase && Equal(a.Expr, b.Expr)
	case *ContainsFilter:
		b, ok := b.(*ContainsFilter)
		return ok && a.Value == b.Value && a.IgnoreCase == b.IgnoreCase && Equal(a.Expr, b.Expr)
	case *NumRangeFilter:
		b, ok := b.(*NumRangeFilter)
		return ok && boundsEqual(a.Min, b.Min) && boundsEqual(a.Max, b.Max) && Equal(a.Expr, b.Expr)
	case *DateRangeFilter:
		b, ok := b.(*DateRangeFilter)
		return ok && dateString(a.Min) == dateString(b.Min) && dateString(a.Max) == dateString(b.Max) && Equal(a.Expr, b.Expr)
	case *DateInclusionFilter:
		b, ok := b.(*DateInclusionFilter)
		return ok && Equal(a.First, b.First) && Equal(a.Last, b.Last) && Equal(a.Probe, b.Probe)
	case *DateOverlapFilter:
		b, ok := b.(*DateOverlapFilter)
		return ok && dateString(a.Min) == dateString(b.Min) && dateString(a.Max) == dateString(b.Max) && Equal(a.First, b.First) && Equal(a.Last, b.Last)
	case *InSelectFilter:
		b, ok := b.(*InSelectFilter)
		return ok && Equal(a.Expr, b.Expr) && a.Query.Equal(b.Query)
	case *AndFilter:
		b, ok := b.(*AndFilter)
		return ok && filtersEqual(a.Filters, b.Filters)
	case *OrFilter:
		b, ok := b.(*OrFilter)
		return ok && filtersEqual(a.Filters, b.Filters)
	case *NotFilter:
		b, ok := b.(*NotFilter)
		return ok && Equal(a.Filter, b.Filter)
	case *BoolFilter:
		b, ok := b.(*BoolFilter)
		return ok && a.Value == b.Value
	}
	veloxql.Unreachable("querylanguage.Equal", a)
	return false
}

// equalExpr compares two possibly nil expressions. Nil interface values are
// handled apart from typed nils so count(*) compares equal.
func equalExpr(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}

func exprsEqual(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func filtersEqual(a, b []Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func boundsEqual(a, b decimal.NullDecimal) bool {
	return a.Valid == b.Valid && (!a.Valid || a.Decimal.Equal(b.Decimal))
}

func valuesEqual(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return fmt.Sprintf("%T", x) == fmt.Sprintf("%T", y) && formatValue(x) == formatValue(y)
}

// Hash returns a hash of the node. Structurally equal nodes hash the same.
func Hash(n Node) uint64 {
	h := fnv.New64a()
	if n != nil {
		h.Write([]byte(n.String()))
	}
	return h.Sum64()
}
