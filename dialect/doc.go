// Package dialect identifies the SQL engines the compiler targets and
// describes what each of them can express.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Access    = "access"
//	dialect.SQLServer = "sqlserver"
//	dialect.Postgres  = "postgres"
//	dialect.SQLite    = "sqlite"
//	dialect.MySQL     = "mysql"
//
// # Capabilities
//
// Engines disagree on identifier quoting, BETWEEN support, row-limit syntax
// and how faithfully they report result column types. A Capabilities value
// captures those differences once per dialect:
//
//	caps := dialect.Capabilities{
//	    Between:  true,
//	    RowLimit: dialect.RowLimitTop,
//	    Envelope: dialect.EnvelopeBracket,
//	}
//
// Capabilities are immutable values. The rule sets in dialect/sql return
// them and the SELECT assembler consults them instead of branching on the
// dialect name.
//
// # Driver Interface
//
// Compiled statements are executed through the Driver interface:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Sub-packages
//
//   - dialect/sql: rule sets, formatter, validator, SELECT assembler and driver
//   - dialect/sql/sqlgraph: deduplicated LEFT JOIN alias graph
package dialect
