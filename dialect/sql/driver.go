package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect"
)

// Driver runs compiled statements on a database/sql database.
type Driver struct {
	Conn
	dialect string
}

// NewDriver returns a driver over c for the named dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open opens a database by dialect name and returns a Driver over it. The
// database/sql driver of the dialect must be registered by the caller.
func Open(dialect, source string) (*Driver, error) {
	db, err := sql.Open(DriverName(dialect), source)
	if err != nil {
		return nil, err
	}
	return NewDriver(dialect, Conn{db, dialect}), nil
}

// DriverName returns the database/sql driver name registered for a dialect
// by the drivers this module is tested with: lib/pq, go-sql-driver/mysql and
// modernc.org/sqlite.
func DriverName(name string) string {
	switch name {
	case dialect.SQLite:
		return "sqlite"
	case dialect.SQLServer:
		return "sqlserver"
	}
	return name
}

// OpenDB returns a driver over an open database.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{db, dialect})
}

// DB returns the underlying database.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect name. Suffixed names such as "postgres-traced"
// used by wrapping drivers report their base dialect.
func (d Driver) Dialect() string {
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres, dialect.SQLServer, dialect.Access} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Tx starts a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *sql.TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Conn: Conn{tx, d.dialect},
		Tx:   tx,
	}, nil
}

// Close closes the database.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx is a transaction of a Driver.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn adapts an ExecQuerier to dialect.ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec runs a statement without rows. v is nil or a *sql.Result.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, err := argList(args)
	if err != nil {
		return err
	}
	res, ok := v.(*sql.Result)
	if !ok && v != nil {
		return fmt.Errorf("dialect/sql: exec: want *sql.Result, got %T", v)
	}
	s, err := c.session(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	r, err := s.ExecContext(ctx, query, argv...)
	switch {
	case err != nil:
		err = fmt.Errorf("dialect/sql: exec: %w", err)
	case res != nil:
		*res = r
	}
	return s.done(err)
}

// Query runs a statement and stores its rows in v, which must be a *Rows.
// Compiled statements carry no parameters, so args is always empty for them.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	argv, err := argList(args)
	if err != nil {
		return err
	}
	out, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: query: want *Rows, got %T", v)
	}
	s, err := c.session(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows, err := s.QueryContext(ctx, query, argv...)
	if err != nil {
		return s.done(fmt.Errorf("dialect/sql: query: %w", err))
	}
	// The connection is released with the rows.
	out.ColumnScanner = rows
	if s.release != nil {
		out.ColumnScanner = rowsWithCloser{rows, s.release}
	}
	return nil
}

func argList(args any) ([]any, error) {
	argv, ok := args.([]any)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: want []any arguments, got %T", args)
	}
	return argv, nil
}

// session is the connection one statement runs on.
type session struct {
	ExecQuerier
	// release restores the session variables and returns a dedicated
	// connection to the pool. It is nil for the shared handle.
	release func() error
}

// done runs release after the statement and joins its error with err.
func (s session) done(err error) error {
	if s.release == nil {
		return err
	}
	return errors.Join(err, s.release())
}

// Session variables are set on the connection a statement runs on, such as
// statement_timeout on PostgreSQL, max_execution_time on MySQL or
// busy_timeout on SQLite.

type sessionVarsKey struct{}

type sessionVar struct{ name, value string }

// WithVar returns a context whose statements first set the session variable.
func WithVar(ctx context.Context, name, value string) context.Context {
	vars, _ := ctx.Value(sessionVarsKey{}).([]sessionVar)
	vars = append(vars[:len(vars):len(vars)], sessionVar{name, value})
	return context.WithValue(ctx, sessionVarsKey{}, vars)
}

// VarFromContext returns the value of a session variable set by WithVar.
// The last value set wins.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	vars, _ := ctx.Value(sessionVarsKey{}).([]sessionVar)
	for i := len(vars) - 1; i >= 0; i-- {
		if vars[i].name == name {
			return vars[i].value, true
		}
	}
	return "", false
}

var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier reports whether s can be used as a session variable name.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue doubles single quotes and, for MySQL, backslashes.
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}

// setVarStatements returns the statements that set a session variable and
// restore it before the connection returns to the pool. reset is empty when
// the engine has no way to restore the default.
func setVarStatements(name, value, dialectName string) (set, reset string, err error) {
	if !isValidIdentifier(name) {
		return "", "", fmt.Errorf("invalid session variable name: %q", name)
	}
	value = escapeStringValue(value)
	switch dialectName {
	case dialect.Postgres:
		return fmt.Sprintf("SET %s = '%s'", name, value), "RESET " + name, nil
	case dialect.MySQL:
		return fmt.Sprintf("SET %s = '%s'", name, value), fmt.Sprintf("SET %s = NULL", name), nil
	case dialect.SQLite:
		return fmt.Sprintf("PRAGMA %s = '%s'", name, value), "", nil
	default:
		return "", "", veloxql.NewUnsupportedError(dialectName, "session variables")
	}
}

// session returns the connection for a statement with the session
// variables of ctx set on it. Outside a transaction that is a dedicated
// connection held until the statement is done.
func (c Conn) session(ctx context.Context) (session, error) {
	vars, _ := ctx.Value(sessionVarsKey{}).([]sessionVar)
	if len(vars) == 0 {
		return session{ExecQuerier: c}, nil
	}
	var s session
	switch h := c.ExecQuerier.(type) {
	case *sql.Tx:
		s.ExecQuerier = h
	case *sql.DB:
		conn, err := h.Conn(ctx)
		if err != nil {
			return session{}, fmt.Errorf("session vars: %w", err)
		}
		s = session{ExecQuerier: conn, release: conn.Close}
	default:
		return session{}, fmt.Errorf("session vars: cannot set on %T", c.ExecQuerier)
	}
	name := Driver{dialect: c.dialect}.Dialect()
	var resets []string
	restored := make(map[string]bool, len(vars))
	for _, v := range vars {
		set, reset, err := setVarStatements(v.name, v.value, name)
		if err == nil {
			_, err = s.ExecContext(ctx, set)
		}
		if err != nil {
			return session{}, s.done(fmt.Errorf("session vars: %w", err))
		}
		if reset != "" && !restored[v.name] {
			restored[v.name] = true
			resets = append(resets, reset)
		}
	}
	if s.release != nil && len(resets) > 0 {
		s.release = restore(s.ExecQuerier, resets, s.release)
	}
	return s, nil
}

// restore returns a release function that resets the variables before
// close. It uses its own context so a canceled statement still hands a clean
// connection back to the pool.
func restore(ex ExecQuerier, resets []string, close func() error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, q := range resets {
			if _, err := ex.ExecContext(ctx, q); err != nil {
				return errors.Join(err, close())
			}
		}
		return close()
	}
}

// Select runs a compiled statement and materializes its rows through the
// statement's Shape.
func Select(ctx context.Context, ex dialect.ExecQuerier, stmt *Statement) (_ *ResultTable, rerr error) {
	var rows Rows
	if err := ex.Query(ctx, stmt.SQL, []any{}, &rows); err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	t := &ResultTable{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	if err := stmt.Shape.Apply(t); err != nil {
		return nil, err
	}
	return t, nil
}

var _ dialect.Driver = (*Driver)(nil)

// Rows holds the rows of a query. It wraps a ColumnScanner so Rows values
// are copied without copying sql.Rows locks.
type Rows struct{ ColumnScanner }

// ColumnScanner is the subset of *sql.Rows used to read results.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// rowsWithCloser runs closer after the rows are closed.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
}

func (r rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	return errors.Join(err, r.closer())
}
