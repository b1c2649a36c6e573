package sql

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

// Dialect is the rule set of a SQL engine: the leaf decisions the Formatter
// delegates. Implementations hold no per-call state and are shared by all
// concurrent compiles.
type Dialect interface {
	// Name returns the dialect name.
	Name() string
	// Capabilities returns the dialect capabilities.
	Capabilities() dialect.Capabilities
	// Quote returns an identifier in the dialect envelope.
	Quote(ident string) (string, error)
	// FormatString returns a string literal.
	FormatString(s string) string
	// FormatBool returns a boolean literal.
	FormatBool(v bool) string
	// FormatDateTime returns a date and/or time literal. At least one of
	// useDate and useTime is set.
	FormatDateTime(t time.Time, useDate, useTime bool) string
	// FormatBinary returns a binary literal.
	FormatBinary(v []byte) (string, error)
	// FuncName returns the keyword of a non-arithmetic scalar function.
	FuncName(k ql.FuncKind) (string, error)
	// AggName returns the keyword of an aggregate function.
	AggName(k ql.AggKind) (string, error)
	// LikePattern escapes the wildcard characters of s for a LIKE pattern.
	// A non-empty escape is appended after the pattern literal.
	LikePattern(s string) (pattern, escape string)
	// TypeName returns the column type name used in DDL and casts.
	TypeName(c *schema.Column) (string, error)
	// Placeholder returns the i-th (1-based) bind parameter marker.
	Placeholder(i int) string
}

// Common implements the SQL-92-ish default rules. Engine rule sets embed it
// and override the rules they disagree with.
type Common struct {
	ID   string
	Caps dialect.Capabilities
}

// NewCommon returns the default rule set under the given name.
func NewCommon(name string, caps dialect.Capabilities) Common {
	return Common{ID: name, Caps: caps}
}

// Name implements Dialect.
func (c Common) Name() string { return c.ID }

// Capabilities implements Dialect.
func (c Common) Capabilities() dialect.Capabilities { return c.Caps }

// Quote implements Dialect. Envelope characters inside the identifier are
// doubled.
func (c Common) Quote(ident string) (string, error) {
	switch c.Caps.Envelope {
	case dialect.EnvelopeDoubleQuote:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`, nil
	case dialect.EnvelopeBracket:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]", nil
	case dialect.EnvelopeBacktick:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`", nil
	case dialect.EnvelopeNone:
		return ident, nil
	case dialect.EnvelopeUnsupported:
		return "", veloxql.NewUnsupportedError(c.ID, "identifier quoting")
	default:
		veloxql.Unreachable("sql.Common.Quote", c.Caps.Envelope)
		return "", nil
	}
}

// FormatString implements Dialect.
func (Common) FormatString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatBool implements Dialect.
func (Common) FormatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// FormatDateTime implements Dialect with the #M/D/YYYY H:M:S# form.
func (Common) FormatDateTime(t time.Time, useDate, useTime bool) string {
	var parts []string
	if useDate || !useTime {
		parts = append(parts, fmt.Sprintf("%d/%d/%d", t.Month(), t.Day(), t.Year()))
	}
	if useTime {
		parts = append(parts, fmt.Sprintf("%d:%d:%d", t.Hour(), t.Minute(), t.Second()))
	}
	return "#" + strings.Join(parts, " ") + "#"
}

// FormatBinary implements Dialect.
func (c Common) FormatBinary([]byte) (string, error) {
	return "", veloxql.NewUnsupportedError(c.ID, "binary literals")
}

var commonFuncs = map[ql.FuncKind]string{
	ql.FuncAbs:       "ABS",
	ql.FuncCoalesce:  "COALESCE",
	ql.FuncLength:    "LEN",
	ql.FuncLower:     "LOWER",
	ql.FuncUpper:     "UPPER",
	ql.FuncSubstring: "SUBSTRING",
}

// FuncName implements Dialect.
func (c Common) FuncName(k ql.FuncKind) (string, error) {
	if name, ok := commonFuncs[k]; ok {
		return name, nil
	}
	return "", veloxql.NewUnsupportedError(c.ID, "function "+k.String())
}

var commonAggs = map[ql.AggKind]string{
	ql.AggSum:   "SUM",
	ql.AggCount: "COUNT",
	ql.AggMin:   "MIN",
	ql.AggMax:   "MAX",
	ql.AggAvg:   "AVG",
}

// AggName implements Dialect.
func (c Common) AggName(k ql.AggKind) (string, error) {
	if name, ok := commonAggs[k]; ok {
		return name, nil
	}
	return "", veloxql.NewUnsupportedError(c.ID, "aggregate "+k.String())
}

// LikePattern implements Dialect by wrapping each of % _ [ ' in brackets.
func (Common) LikePattern(s string) (string, string) {
	return escapeLike(s, "%_['", func(r rune) string { return "[" + string(r) + "]" }), ""
}

// escapeLike rewrites every special rune of s with esc.
func escapeLike(s, special string, esc func(rune) string) string {
	if !strings.ContainsAny(s, special) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteString(esc(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// backslashLike escapes wildcards with a backslash.
func backslashLike(s string) string {
	return escapeLike(s, `%_\`, func(r rune) string { return `\` + string(r) })
}

// TypeName implements Dialect.
func (c Common) TypeName(col *schema.Column) (string, error) {
	switch col.Type {
	case field.TypeString:
		return varchar("VARCHAR", col.Size, 255), nil
	case field.TypeMemo, field.TypeXML:
		return "TEXT", nil
	case field.TypeBool:
		return "BOOLEAN", nil
	case field.TypeInt:
		return intType(col, "SMALLINT", "INTEGER", "BIGINT"), nil
	case field.TypeFloat:
		return "DOUBLE PRECISION", nil
	case field.TypeMoney:
		return "DECIMAL(19,4)", nil
	case field.TypeDate:
		return "DATE", nil
	case field.TypeDateTime:
		return "TIMESTAMP", nil
	case field.TypeTime:
		return "TIME", nil
	case field.TypeGUID:
		return "CHAR(36)", nil
	case field.TypeBinary:
		return "BLOB", nil
	}
	return "", veloxql.NewUnsupportedError(c.ID, "column type "+col.Type.String())
}

// Placeholder implements Dialect.
func (Common) Placeholder(int) string { return "?" }

// intType picks the narrowest integer type holding the declared range.
func intType(col *schema.Column, small, regular, big string) string {
	lo, hi := col.IntRange()
	switch {
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return small
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return regular
	default:
		return big
	}
}

func varchar(name string, size, fallback int) string {
	if size <= 0 {
		size = fallback
	}
	return fmt.Sprintf("%s(%d)", name, size)
}

var _ Dialect = Common{}
