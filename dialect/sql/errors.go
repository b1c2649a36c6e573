package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Compiled statements are validated against a catalog. The helpers below
// classify the errors a database returns when the catalog has drifted from
// the live schema or the database denies what the permissions allowed.

// PostgreSQL SQLSTATE codes.
const (
	pgUndefinedTable        = "42P01"
	pgUndefinedColumn       = "42703"
	pgSyntaxError           = "42601"
	pgInsufficientPrivilege = "42501"
)

// MySQL error numbers.
const (
	mysqlNoSuchTable        = 1146
	mysqlBadField           = 1054
	mysqlParseError         = 1064
	mysqlTableAccessDenied  = 1142
	mysqlColumnAccessDenied = 1143
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// IsUndefinedTableError reports whether err says a table of the statement
// does not exist.
func IsUndefinedTableError(err error) bool {
	return classify(err, pgUndefinedTable, mysqlNoSuchTable) ||
		containsAny(err, "no such table", "Invalid object name", "cannot find the input table")
}

// IsUndefinedColumnError reports whether err says a column of the statement
// does not exist.
func IsUndefinedColumnError(err error) bool {
	return classify(err, pgUndefinedColumn, mysqlBadField) ||
		containsAny(err, "no such column", "Invalid column name")
}

// IsSyntaxError reports whether the database rejected the statement text.
func IsSyntaxError(err error) bool {
	return classify(err, pgSyntaxError, mysqlParseError) ||
		containsAny(err, "syntax error", "Incorrect syntax")
}

// IsPermissionError reports whether the database denied access to a table
// or column of the statement.
func IsPermissionError(err error) bool {
	return classify(err, pgInsufficientPrivilege, mysqlTableAccessDenied, mysqlColumnAccessDenied) ||
		containsAny(err, "permission denied")
}

// IsCatalogDrift reports whether err means the catalog the statement was
// compiled against no longer matches the database.
func IsCatalogDrift(err error) bool {
	return IsUndefinedTableError(err) || IsUndefinedColumnError(err)
}

func classify(err error, state string, numbers ...uint16) bool {
	if err == nil {
		return false
	}
	if pe := (*pq.Error)(nil); errors.As(err, &pe) {
		return string(pe.Code) == state
	}
	if me := (*mysql.MySQLError)(nil); errors.As(err, &me) {
		for _, n := range numbers {
			if me.Number == n {
				return true
			}
		}
		return false
	}
	var se sqlStateError
	if errors.As(err, &se) {
		return se.SQLState() == state
	}
	return false
}

func containsAny(err error, substrings ...string) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
