package field

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Type is the declared type of a column or constant. It drives literal
// formatting, default-value substitution and type-name emission.
type Type uint8

// Column types.
const (
	TypeUnknown Type = iota
	TypeString
	TypeBool
	TypeInt
	TypeFloat
	TypeMoney
	TypeDate
	TypeDateTime
	TypeTime
	TypeGUID
	TypeMemo
	TypeXML
	TypeBinary
	endTypes
)

var typeNames = [...]string{
	TypeUnknown:  "unknown",
	TypeString:   "string",
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeMoney:    "money",
	TypeDate:     "date",
	TypeDateTime: "datetime",
	TypeTime:     "time",
	TypeGUID:     "guid",
	TypeMemo:     "memo",
	TypeXML:      "xml",
	TypeBinary:   "binary",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return "invalid"
}

// Valid reports if the given type is known.
func (t Type) Valid() bool {
	return t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeMoney
}

// Temporal reports if the given type holds a date, a time-of-day or both.
func (t Type) Temporal() bool {
	return t == TypeDate || t == TypeDateTime || t == TypeTime
}

// Textual reports if the given type is stored as text.
func (t Type) Textual() bool {
	return t == TypeString || t == TypeMemo || t == TypeXML
}

// ParseType parses a type name as returned by String. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	switch s {
	case "", "any":
		return TypeUnknown, nil
	case "boolean":
		return TypeBool, nil
	case "integer", "int64":
		return TypeInt, nil
	case "decimal", "currency":
		return TypeMoney, nil
	case "uuid":
		return TypeGUID, nil
	case "text":
		return TypeMemo, nil
	case "bytes", "blob":
		return TypeBinary, nil
	}
	return TypeUnknown, fmt.Errorf("field: unknown type %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Type) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Default returns the default value of a type, used when NULL is treated
// as the default value. Binary and unknown types have no default and the
// second return value is false.
func (t Type) Default() (any, bool) {
	switch t {
	case TypeString, TypeMemo, TypeXML:
		return "", true
	case TypeBool:
		return false, true
	case TypeInt:
		return int64(0), true
	case TypeFloat:
		return float64(0), true
	case TypeMoney:
		return decimal.Zero, true
	case TypeDate, TypeDateTime:
		return time.Time{}, true
	case TypeTime:
		return time.Duration(0), true
	case TypeGUID:
		return uuid.Nil, true
	}
	return nil, false
}

// Infer returns the type a Go value would be declared with when no explicit
// type is given.
func Infer(v any) Type {
	switch v := v.(type) {
	case string:
		return TypeString
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case decimal.Decimal:
		return TypeMoney
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return TypeDate
		}
		return TypeDateTime
	case time.Duration:
		return TypeTime
	case uuid.UUID:
		return TypeGUID
	case []byte:
		return TypeBinary
	}
	return TypeUnknown
}
