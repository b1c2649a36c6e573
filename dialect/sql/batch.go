package sql

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	ql "github.com/syssam/veloxql/querylanguage"
)

// BatchError reports the query of a batch that failed to compile.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string { return fmt.Sprintf("query %d: %v", e.Index, e.Err) }

func (e *BatchError) Unwrap() error { return e.Err }

// CompileBatch compiles queries in parallel. The statements are returned in
// the order of the queries. The first failure cancels the remaining work.
func (c *Compiler) CompileBatch(ctx context.Context, qs []*ql.Query) ([]*Statement, error) {
	stmts := make([]*Statement, len(qs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range qs {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			stmt, err := c.Compile(q)
			if err != nil {
				return &BatchError{Index: i, Err: err}
			}
			stmts[i] = stmt
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return stmts, nil
}
