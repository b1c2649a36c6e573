package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/veloxql/dialect"
)

// Stats counts the statements a StatsDriver runs. It is safe for
// concurrent use.
type Stats struct {
	queries, execs, slow, failed atomic.Int64
	elapsed                      atomic.Int64

	mu             sync.Mutex
	slowest        string
	slowestElapsed time.Duration
}

// Snapshot is a copy of Stats at one point in time.
type Snapshot struct {
	Queries int64
	Execs   int64
	Slow    int64
	Failed  int64
	Elapsed time.Duration
	// Slowest is the text of the slowest statement and SlowestElapsed its
	// duration.
	Slowest        string
	SlowestElapsed time.Duration
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	slowest, slowestElapsed := s.slowest, s.slowestElapsed
	s.mu.Unlock()
	return Snapshot{
		Queries:        s.queries.Load(),
		Execs:          s.execs.Load(),
		Slow:           s.slow.Load(),
		Failed:         s.failed.Load(),
		Elapsed:        time.Duration(s.elapsed.Load()),
		Slowest:        slowest,
		SlowestElapsed: slowestElapsed,
	}
}

// Reset zeroes the counters.
func (s *Stats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.slow, &s.failed, &s.elapsed} {
		c.Store(0)
	}
	s.mu.Lock()
	s.slowest, s.slowestElapsed = "", 0
	s.mu.Unlock()
}

func (s *Stats) record(query string, rows bool, elapsed time.Duration, err error, slow bool) {
	if rows {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.elapsed.Add(int64(elapsed))
	if err != nil {
		s.failed.Add(1)
	}
	if slow {
		s.slow.Add(1)
	}
	s.mu.Lock()
	if elapsed > s.slowestElapsed {
		s.slowest, s.slowestElapsed = query, elapsed
	}
	s.mu.Unlock()
}

// Avg returns the mean statement duration.
func (s Snapshot) Avg() time.Duration {
	if n := s.Queries + s.Execs; n > 0 {
		return s.Elapsed / time.Duration(n)
	}
	return 0
}

func (s Snapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d failed=%d slow=%d elapsed=%s avg=%s",
		s.Queries, s.Execs, s.Failed, s.Slow, s.Elapsed, s.Avg())
}

// SlowQueryHook is called for every statement over the slow threshold.
type SlowQueryHook func(ctx context.Context, query string, elapsed time.Duration)

// StatsDriver counts the statements of a driver and reports the slow ones.
type StatsDriver struct {
	dialect.Driver
	stats     Stats
	threshold atomic.Int64
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration over which a statement is slow. The
// default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.threshold.Store(int64(d)) }
}

// WithSlowQueryHook sets the callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.hook = hook }
}

// WithSlowQueryLog logs slow statements to l at warn level.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, elapsed time.Duration) {
		l.WarnContext(ctx, "slow query", "duration", elapsed, "sql", query)
	})
}

// NewStatsDriver wraps drv:
//
//	sd := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger))
//	t, err := sql.Select(ctx, sd, stmt)
//	fmt.Println(sd.Stats().Snapshot())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv}
	s.threshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the counters of the driver.
func (d *StatsDriver) Stats() *Stats { return &d.stats }

// SlowThreshold returns the duration over which a statement is slow.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetSlowThreshold changes the slow threshold of later statements.
func (d *StatsDriver) SetSlowThreshold(t time.Duration) { d.threshold.Store(int64(t)) }

func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, true, func() error { return d.Driver.Query(ctx, query, args, v) })
}

func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, false, func() error { return d.Driver.Exec(ctx, query, args, v) })
}

func (d *StatsDriver) observe(ctx context.Context, query string, rows bool, run func() error) error {
	start := time.Now()
	err := run()
	elapsed := time.Since(start)
	slow := elapsed > d.SlowThreshold()
	d.stats.record(query, rows, elapsed, err, slow)
	if slow && d.hook != nil {
		d.hook(ctx, query, elapsed)
	}
	return err
}

// Tx starts a transaction whose statements are recorded too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx is a transaction of a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, query, true, func() error { return tx.Tx.Query(ctx, query, args, v) })
}

func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, query, false, func() error { return tx.Tx.Exec(ctx, query, args, v) })
}

// DebugDriver logs every statement it runs with its duration. Failed
// statements are logged at warn level.
type DebugDriver struct {
	dialect.Driver
	log *slog.Logger
}

// NewDebugDriver wraps a driver with debug logging to l.
func NewDebugDriver(drv dialect.Driver, l *slog.Logger) *DebugDriver {
	return &DebugDriver{Driver: drv, log: l.With("dialect", drv.Dialect())}
}

// Query runs and logs a statement.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	return logged(ctx, d.log, "query", query, func() error { return d.Driver.Query(ctx, query, args, v) })
}

// Exec runs and logs a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	return logged(ctx, d.log, "exec", query, func() error { return d.Driver.Exec(ctx, query, args, v) })
}

// Tx starts a transaction whose statements are logged too.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, log: d.log}, nil
}

// DebugTx is a transaction of a DebugDriver.
type DebugTx struct {
	dialect.Tx
	log *slog.Logger
}

// Query runs and logs a statement within the transaction.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	return logged(ctx, tx.log, "tx query", query, func() error { return tx.Tx.Query(ctx, query, args, v) })
}

// Exec runs and logs a statement within the transaction.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	return logged(ctx, tx.log, "tx exec", query, func() error { return tx.Tx.Exec(ctx, query, args, v) })
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.log.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls the transaction back and logs it.
func (tx *DebugTx) Rollback() error {
	tx.log.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

func logged(ctx context.Context, l *slog.Logger, msg, query string, run func() error) error {
	start := time.Now()
	err := run()
	if err != nil {
		l.WarnContext(ctx, msg, "sql", query, "duration", time.Since(start), "error", err)
		return err
	}
	l.DebugContext(ctx, msg, "sql", query, "duration", time.Since(start))
	return nil
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
