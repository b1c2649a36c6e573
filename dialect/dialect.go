package dialect

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
)

// Dialect names.
const (
	Access    = "access"
	SQLServer = "sqlserver"
	Postgres  = "postgres"
	SQLite    = "sqlite"
	MySQL     = "mysql"
)

// Names returns the names of all known dialects.
func Names() []string {
	return []string{Access, SQLServer, Postgres, SQLite, MySQL}
}

// Envelope is the identifier quoting style of a dialect.
type Envelope uint8

// Envelope styles.
const (
	EnvelopeDoubleQuote Envelope = iota // "name"
	EnvelopeBracket                     // [name]
	EnvelopeBacktick                    // `name`
	EnvelopeNone                        // name
	EnvelopeUnsupported                 // quoting fails
)

var envelopes = [...]string{
	EnvelopeDoubleQuote: "double-quote",
	EnvelopeBracket:     "bracket",
	EnvelopeBacktick:    "backtick",
	EnvelopeNone:        "none",
	EnvelopeUnsupported: "unsupported",
}

// String returns the envelope name.
func (e Envelope) String() string {
	if int(e) < len(envelopes) {
		return envelopes[e]
	}
	return fmt.Sprintf("Envelope(%d)", e)
}

// ParseEnvelope parses an envelope name.
func ParseEnvelope(s string) (Envelope, error) {
	for i, name := range envelopes {
		if strings.EqualFold(s, name) {
			return Envelope(i), nil
		}
	}
	return 0, fmt.Errorf("dialect: unknown envelope %q", s)
}

// RowLimit is the syntax a dialect uses to cap the number of result rows.
type RowLimit uint8

// Row-limit styles.
const (
	// RowLimitLimit appends "LIMIT n" after ORDER BY.
	RowLimitLimit RowLimit = iota
	// RowLimitTop prefixes the projection list with "TOP n", before DISTINCT.
	RowLimitTop
)

// String returns the row-limit style name.
func (r RowLimit) String() string {
	switch r {
	case RowLimitLimit:
		return "limit"
	case RowLimitTop:
		return "top"
	default:
		return fmt.Sprintf("RowLimit(%d)", r)
	}
}

// Capabilities describes what a dialect can express.
type Capabilities struct {
	// Between reports support for "x BETWEEN lo AND hi".
	Between bool
	// RowLimit is the row-limit syntax.
	RowLimit RowLimit
	// Envelope is the identifier quoting style.
	Envelope Envelope
	// CoerceResultTypes is set for engines that mis-infer scalar result types.
	// Result tables are then rebuilt with the declared column types.
	CoerceResultTypes bool
}

// ExecQuerier runs statements. Drivers in dialect/sql store an
// *sql.Result in v for Exec and a *dialect/sql.Rows for Query.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for executing
// compiled statements.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	driver.Tx
}
