package sql

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/veloxql/dialect"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

// Lookup returns the rule set of a dialect name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case dialect.Access:
		return NewAccess(), nil
	case dialect.SQLServer, "mssql":
		return NewSQLServer(), nil
	case dialect.Postgres, "postgresql":
		return NewPostgres(), nil
	case dialect.SQLite, "sqlite3":
		return NewSQLite(), nil
	case dialect.MySQL:
		return NewMySQL(), nil
	default:
		return nil, fmt.Errorf("dialect/sql: unknown dialect %q", name)
	}
}

// AccessDialect is the rule set of desktop file-based engines. It keeps
// the default date envelope and LIKE escaping.
type AccessDialect struct{ Common }

// NewAccess returns the Access rule set.
func NewAccess() AccessDialect {
	return AccessDialect{NewCommon(dialect.Access, dialect.Capabilities{
		Between:  true,
		RowLimit: dialect.RowLimitTop,
		Envelope: dialect.EnvelopeBracket,
	})}
}

// FuncName implements Dialect.
func (d AccessDialect) FuncName(k ql.FuncKind) (string, error) {
	switch k {
	case ql.FuncUpper:
		return "UCASE", nil
	case ql.FuncLower:
		return "LCASE", nil
	case ql.FuncSubstring:
		return "MID", nil
	}
	return d.Common.FuncName(k)
}

// TypeName implements Dialect.
func (d AccessDialect) TypeName(c *schema.Column) (string, error) {
	switch c.Type {
	case field.TypeString:
		return varchar("TEXT", c.Size, 255), nil
	case field.TypeMemo, field.TypeXML:
		return "MEMO", nil
	case field.TypeBool:
		return "BIT", nil
	case field.TypeInt:
		return intType(c, "SMALLINT", "INTEGER", "DECIMAL(19,0)"), nil
	case field.TypeFloat:
		return "DOUBLE", nil
	case field.TypeMoney:
		return "CURRENCY", nil
	case field.TypeDate, field.TypeDateTime, field.TypeTime:
		return "DATETIME", nil
	case field.TypeGUID:
		return "GUID", nil
	case field.TypeBinary:
		return "LONGBINARY", nil
	}
	return d.Common.TypeName(c)
}

// SQLServerDialect is the rule set of Microsoft SQL Server.
type SQLServerDialect struct{ Common }

// NewSQLServer returns the SQL Server rule set.
func NewSQLServer() SQLServerDialect {
	return SQLServerDialect{NewCommon(dialect.SQLServer, dialect.Capabilities{
		Between:  true,
		RowLimit: dialect.RowLimitTop,
		Envelope: dialect.EnvelopeBracket,
	})}
}

// FormatBool implements Dialect.
func (SQLServerDialect) FormatBool(v bool) string { return bitLiteral(v) }

// FormatDateTime implements Dialect with language-neutral ISO forms.
func (SQLServerDialect) FormatDateTime(t time.Time, useDate, useTime bool) string {
	switch {
	case useDate && useTime:
		return "'" + t.Format("2006-01-02T15:04:05") + "'"
	case useTime:
		return "'" + t.Format(time.TimeOnly) + "'"
	default:
		return "'" + t.Format("20060102") + "'"
	}
}

// FormatBinary implements Dialect.
func (SQLServerDialect) FormatBinary(v []byte) (string, error) {
	return "0x" + strings.ToUpper(hex.EncodeToString(v)), nil
}

// TypeName implements Dialect.
func (d SQLServerDialect) TypeName(c *schema.Column) (string, error) {
	switch c.Type {
	case field.TypeString:
		if c.Size <= 0 || c.Size > 4000 {
			return "NVARCHAR(MAX)", nil
		}
		return varchar("NVARCHAR", c.Size, 0), nil
	case field.TypeMemo:
		return "NVARCHAR(MAX)", nil
	case field.TypeXML:
		return "XML", nil
	case field.TypeBool:
		return "BIT", nil
	case field.TypeInt:
		return intType(c, "SMALLINT", "INT", "BIGINT"), nil
	case field.TypeFloat:
		return "FLOAT", nil
	case field.TypeMoney:
		return "MONEY", nil
	case field.TypeDateTime:
		return "DATETIME2", nil
	case field.TypeGUID:
		return "UNIQUEIDENTIFIER", nil
	case field.TypeBinary:
		return "VARBINARY(MAX)", nil
	}
	return d.Common.TypeName(c)
}

// Placeholder implements Dialect.
func (SQLServerDialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

// PostgresDialect is the rule set of PostgreSQL.
type PostgresDialect struct{ Common }

// NewPostgres returns the PostgreSQL rule set.
func NewPostgres() PostgresDialect {
	return PostgresDialect{NewCommon(dialect.Postgres, dialect.Capabilities{
		Between:  true,
		RowLimit: dialect.RowLimitLimit,
		Envelope: dialect.EnvelopeDoubleQuote,
	})}
}

// Quote implements Dialect.
func (PostgresDialect) Quote(ident string) (string, error) {
	return pq.QuoteIdentifier(ident), nil
}

// FormatDateTime implements Dialect with typed literals.
func (PostgresDialect) FormatDateTime(t time.Time, useDate, useTime bool) string {
	switch {
	case useDate && useTime:
		return "TIMESTAMP '" + t.Format(time.DateTime) + "'"
	case useTime:
		return "TIME '" + t.Format(time.TimeOnly) + "'"
	default:
		return "DATE '" + t.Format(time.DateOnly) + "'"
	}
}

// FormatBinary implements Dialect.
func (PostgresDialect) FormatBinary(v []byte) (string, error) {
	return "'\\x" + hex.EncodeToString(v) + "'::bytea", nil
}

// FuncName implements Dialect.
func (d PostgresDialect) FuncName(k ql.FuncKind) (string, error) {
	if k == ql.FuncLength {
		return "LENGTH", nil
	}
	return d.Common.FuncName(k)
}

// LikePattern implements Dialect. Backslash is the default LIKE escape.
func (PostgresDialect) LikePattern(s string) (string, string) {
	return backslashLike(s), ""
}

// TypeName implements Dialect.
func (d PostgresDialect) TypeName(c *schema.Column) (string, error) {
	switch c.Type {
	case field.TypeString:
		if c.Size <= 0 {
			return "TEXT", nil
		}
	case field.TypeXML:
		return "XML", nil
	case field.TypeMoney:
		return "NUMERIC(19,4)", nil
	case field.TypeGUID:
		return "UUID", nil
	case field.TypeBinary:
		return "BYTEA", nil
	}
	return d.Common.TypeName(c)
}

// Placeholder implements Dialect.
func (PostgresDialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

// SQLiteDialect is the rule set of SQLite. SQLite reports result types per
// value rather than per column, so results are coerced to declared types.
type SQLiteDialect struct{ Common }

// NewSQLite returns the SQLite rule set.
func NewSQLite() SQLiteDialect {
	return SQLiteDialect{NewCommon(dialect.SQLite, dialect.Capabilities{
		Between:           true,
		RowLimit:          dialect.RowLimitLimit,
		Envelope:          dialect.EnvelopeDoubleQuote,
		CoerceResultTypes: true,
	})}
}

// FormatBool implements Dialect.
func (SQLiteDialect) FormatBool(v bool) string { return bitLiteral(v) }

// FormatDateTime implements Dialect with the text forms of the SQLite date
// functions.
func (SQLiteDialect) FormatDateTime(t time.Time, useDate, useTime bool) string {
	return "'" + t.Format(isoLayout(useDate, useTime)) + "'"
}

// FormatBinary implements Dialect.
func (SQLiteDialect) FormatBinary(v []byte) (string, error) {
	return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
}

// FuncName implements Dialect.
func (d SQLiteDialect) FuncName(k ql.FuncKind) (string, error) {
	switch k {
	case ql.FuncLength:
		return "LENGTH", nil
	case ql.FuncSubstring:
		return "SUBSTR", nil
	}
	return d.Common.FuncName(k)
}

// LikePattern implements Dialect. SQLite has no default LIKE escape.
func (SQLiteDialect) LikePattern(s string) (string, string) {
	return backslashLike(s), ` ESCAPE '\'`
}

// TypeName implements Dialect.
func (d SQLiteDialect) TypeName(c *schema.Column) (string, error) {
	switch c.Type {
	case field.TypeString, field.TypeMemo, field.TypeXML, field.TypeGUID,
		field.TypeDate, field.TypeDateTime, field.TypeTime:
		return "TEXT", nil
	case field.TypeBool, field.TypeInt:
		return "INTEGER", nil
	case field.TypeFloat:
		return "REAL", nil
	case field.TypeMoney:
		return "NUMERIC", nil
	}
	return d.Common.TypeName(c)
}

// MySQLDialect is the rule set of MySQL and MariaDB.
type MySQLDialect struct{ Common }

// NewMySQL returns the MySQL rule set.
func NewMySQL() MySQLDialect {
	return MySQLDialect{NewCommon(dialect.MySQL, dialect.Capabilities{
		Between:  true,
		RowLimit: dialect.RowLimitLimit,
		Envelope: dialect.EnvelopeBacktick,
	})}
}

// FormatString implements Dialect. Backslashes are escaped as well, since
// MySQL treats them as escape characters inside string literals.
func (MySQLDialect) FormatString(s string) string {
	return "'" + escapeStringValue(s) + "'"
}

// FormatDateTime implements Dialect.
func (MySQLDialect) FormatDateTime(t time.Time, useDate, useTime bool) string {
	return "'" + t.Format(isoLayout(useDate, useTime)) + "'"
}

// FormatBinary implements Dialect.
func (MySQLDialect) FormatBinary(v []byte) (string, error) {
	return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
}

// FuncName implements Dialect.
func (d MySQLDialect) FuncName(k ql.FuncKind) (string, error) {
	if k == ql.FuncLength {
		return "CHAR_LENGTH", nil
	}
	return d.Common.FuncName(k)
}

// LikePattern implements Dialect. Backslash is the default LIKE escape.
func (MySQLDialect) LikePattern(s string) (string, string) {
	return backslashLike(s), ""
}

// TypeName implements Dialect.
func (d MySQLDialect) TypeName(c *schema.Column) (string, error) {
	switch c.Type {
	case field.TypeString:
		return varchar("VARCHAR", c.Size, 191), nil
	case field.TypeMemo, field.TypeXML:
		return "LONGTEXT", nil
	case field.TypeBool:
		return "TINYINT(1)", nil
	case field.TypeInt:
		return intType(c, "SMALLINT", "INT", "BIGINT"), nil
	case field.TypeFloat:
		return "DOUBLE", nil
	case field.TypeDateTime:
		return "DATETIME", nil
	case field.TypeBinary:
		return "LONGBLOB", nil
	}
	return d.Common.TypeName(c)
}

func bitLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func isoLayout(useDate, useTime bool) string {
	switch {
	case useDate && useTime:
		return time.DateTime
	case useTime:
		return time.TimeOnly
	default:
		return time.DateOnly
	}
}

var (
	_ Dialect = AccessDialect{}
	_ Dialect = SQLServerDialect{}
	_ Dialect = PostgresDialect{}
	_ Dialect = SQLiteDialect{}
	_ Dialect = MySQLDialect{}
)
