package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/syssam/veloxql/cmd/veloxql/internal/config"
	"github.com/syssam/veloxql/dialect"
	vsql "github.com/syssam/veloxql/dialect/sql"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		format string
		vars   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "run QUERIES.yaml...",
		Short: "Compile queries and print their results",
		Example: `  veloxql run -d sqlite --dsn file:docs.db queries.yaml
  VELOXQL_DSN=postgres://localhost/docs veloxql run -d postgres -o yaml q.yaml
  veloxql run -d postgres --var statement_timeout=5000 q.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DSN == "" {
				return fmt.Errorf("no data source; set --%s or %s_DSN", config.KeyDSN, config.EnvPrefix)
			}
			out, err := newResultWriter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			c, err := a.loadCatalog(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			p, err := a.loadPermissions(cmd.Context())
			if err != nil {
				return err
			}
			comp, err := a.newCompiler(c, p)
			if err != nil {
				return err
			}
			lqs, err := loadQueries(args)
			if err != nil {
				return err
			}
			stmts, err := compileAll(cmd.Context(), comp, lqs)
			if err != nil {
				return err
			}
			drv, err := a.open(cmd.Context(), comp.Dialect().Name())
			if err != nil {
				return err
			}
			defer drv.Close()
			stats := vsql.NewStatsDriver(drv,
				vsql.WithSlowThreshold(a.cfg.SlowThreshold),
				vsql.WithSlowQueryLog(a.log),
			)
			var ex dialect.Driver = stats
			if a.cfg.LogLevel <= slog.LevelDebug {
				ex = vsql.NewDebugDriver(stats, a.log)
			}
			defer func() {
				snap := stats.Stats().Snapshot()
				a.log.InfoContext(cmd.Context(), "statement stats", "stats", snap.String(), "slowest", snap.SlowestElapsed)
			}()
			ctx := cmd.Context()
			for _, name := range slices.Sorted(maps.Keys(vars)) {
				ctx = vsql.WithVar(ctx, name, vars[name])
			}
			for i, stmt := range stmts {
				t, err := vsql.Select(ctx, ex, stmt)
				if err != nil {
					return fmt.Errorf("%s: %w", lqs[i].label, err)
				}
				if err := out.Write(lqs[i].label, t); err != nil {
					return err
				}
			}
			return out.Close()
		},
	}
	cmd.Flags().String(config.KeyDSN, "", "data source name of the database")
	cmd.Flags().Duration(config.KeySlowThreshold, 0, "log statements slower than this (default 100ms)")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "session variable set before each statement, as name=value")
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "output format: table or yaml")
	return cmd
}

// open connects to the configured data source. MySQL sources are made to
// return DATE and DATETIME values as time.Time.
func (a *app) open(ctx context.Context, name string) (*vsql.Driver, error) {
	dsn := a.cfg.DSN
	if name == dialect.MySQL {
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	}
	drv, err := vsql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := drv.DB().PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("connecting to %s: %w", name, err), drv.Close())
	}
	return drv, nil
}
