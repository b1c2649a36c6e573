// Package sql compiles querylanguage queries into SELECT statements for a
// target SQL dialect and runs them over database/sql.
//
// Compilation is split between three parts:
//
//   - Validator resolves table and column names against schema metadata and
//     checks every access against a privacy.Permissions, including each hop
//     of a dotted reference path such as "OwnerId.CityId.Name".
//   - Formatter walks the expression and filter trees and writes SQL text.
//     It owns all node dispatch; a Dialect only supplies leaf rules such as
//     literal forms, identifier quoting, function names and LIKE escaping.
//   - Compiler assembles the statement: projections, the LEFT JOIN chain built
//     from the reference paths, WHERE, GROUP BY, HAVING, ORDER BY and the row
//     limit.
//
// All values are inlined as dialect literals; compiled statements carry no
// bind parameters.
//
// # Dialects
//
// Rule sets exist for Access, SQL Server, PostgreSQL, SQLite and MySQL. Each
// embeds Common and overrides what differs:
//
//	d, err := sql.Lookup(dialect.Postgres)
//	stmt, err := sql.Compile(d, sql.NewValidator(catalog), q)
//
// # Validation
//
// A Validator is strict by default: unknown tables and columns are invalid
// arguments. WithStrict(false) resolves them as field.TypeUnknown. Permission
// failures are reported as *veloxql.AccessError and never as invalid
// arguments:
//
//	v := sql.NewValidator(catalog, sql.WithPermissions(grants))
//	stmt, err := sql.Compile(d, v, q)
//	if veloxql.IsAccessDenied(err) {
//	    ...
//	}
//
// # Execution
//
// Select runs a compiled statement on any dialect.ExecQuerier and applies its
// Shape: columns are renamed to the projection names and, for engines that
// report types per value, raw values are converted to the declared types.
//
//	drv, err := sql.Open(dialect.SQLite, "file:docs.db")
//	t, err := sql.Select(ctx, drv, stmt)
//
// StatsDriver and DebugDriver wrap a driver with statement statistics and
// debug logging through log/slog.
package sql
