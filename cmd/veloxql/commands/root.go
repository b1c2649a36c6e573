// Package commands implements the veloxql command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syssam/veloxql/cmd/veloxql/internal/config"
	vsql "github.com/syssam/veloxql/dialect/sql"
	"github.com/syssam/veloxql/privacy"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema"
)

// Execute runs the root command with the process arguments.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd := NewRootCmd(afero.NewOsFs())
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	return err
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	v   *viper.Viper
	fs  afero.Fs
	cfg *config.Config
	log *slog.Logger
}

// NewRootCmd returns the veloxql command tree reading files from fs.
func NewRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{v: viper.New(), fs: fs}
	root := &cobra.Command{
		Use:   "veloxql",
		Short: "Compile permission-checked queries into dialect SQL",
		Long: `veloxql compiles YAML query documents into SELECT statements for a SQL
dialect. Every table and column a query touches, including each hop of a
dotted reference path such as OwnerId.Name, is checked against the table
metadata and the grants before any SQL is produced.

Configuration is read from flags, VELOXQL_* environment variables (also
from .env files) and .veloxql.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(a.v, a.fs)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringP(config.KeySchema, "s", "", "table metadata YAML (default schema.yaml)")
	pf.StringP(config.KeyGrants, "g", "", "grants YAML; full access when empty")
	pf.StringP(config.KeyDialect, "d", "", "target dialect: access, sqlserver, postgres, sqlite, mysql (default sqlite)")
	pf.Bool(config.KeyLenient, false, "resolve unknown tables and columns instead of rejecting them")
	pf.String(config.KeyLogLevel, "", "log level: debug, info, warn, error (default info)")
	pf.StringSlice(config.KeyRoles, nil, "roles of the viewer queries are compiled for")
	pf.StringSlice(config.KeyAdminRoles, nil, "viewer roles granted full access regardless of the grants")

	root.AddCommand(
		newCompileCmd(a),
		newRunCmd(a),
		newInspectCmd(a),
		newValidateCmd(a),
		newWatchCmd(a),
	)
	return root
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.Bold)
	commentColor = color.New(color.FgHiBlack)
)

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "error: ")
	fmt.Fprintln(w, err)
	if vsql.IsCatalogDrift(err) {
		warningColor.Fprintln(w, "hint: the metadata no longer matches the database; refresh it with `veloxql inspect`")
	}
}

// loadCatalog reads and validates the table metadata. Warnings are printed
// and errors fail the load.
func (a *app) loadCatalog(w io.Writer) (*schema.Catalog, error) {
	c, err := schema.LoadFile(a.cfg.Schema)
	if err != nil {
		return nil, err
	}
	res := schema.Validate(c, schema.AllowDanglingRefs())
	for _, warn := range res.Warnings {
		warningColor.Fprintf(w, "warning: %s\n", warn)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadPermissions returns the grants, or full access without a grants
// file. With admin roles configured, the grants are wrapped in a policy that
// lets viewers holding one of them through.
func (a *app) loadPermissions(ctx context.Context) (privacy.Permissions, error) {
	var grants privacy.Permissions = privacy.AllowAll
	if a.cfg.Grants != "" {
		g, err := privacy.LoadGrantsFile(a.cfg.Grants)
		if err != nil {
			return nil, err
		}
		grants = g
	}
	if len(a.cfg.AdminRoles) == 0 {
		return grants, nil
	}
	policy := privacy.Policy{
		privacy.HasAnyRole(a.cfg.AdminRoles...),
		privacy.PermissionsRule(grants),
	}
	viewer := &privacy.SimpleViewer{UserID: os.Getenv("USER"), Roles: a.cfg.Roles}
	return policy.Permissions(privacy.WithViewer(ctx, viewer)), nil
}

// newCompiler returns a compiler for the configured dialect.
func (a *app) newCompiler(md schema.Metadata, p privacy.Permissions) (*vsql.Compiler, error) {
	d, err := vsql.Lookup(a.cfg.Dialect)
	if err != nil {
		return nil, err
	}
	v := vsql.NewValidator(md, vsql.WithPermissions(p), vsql.WithStrict(!a.cfg.Lenient))
	return vsql.NewCompiler(d, v, vsql.WithLogger(a.log)), nil
}

// labeledQuery is a query with the file position it was read from.
type labeledQuery struct {
	label string
	query *ql.Query
}

func loadQueries(files []string) ([]labeledQuery, error) {
	var qs []labeledQuery
	for _, f := range files {
		loaded, err := ql.LoadQueriesFile(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		for i, q := range loaded {
			qs = append(qs, labeledQuery{label: fmt.Sprintf("%s#%d", f, i+1), query: q})
		}
	}
	return qs, nil
}

// compileAll compiles the queries, naming the failing one by its label.
func compileAll(ctx context.Context, comp *vsql.Compiler, lqs []labeledQuery) ([]*vsql.Statement, error) {
	stmts, err := comp.CompileBatch(ctx, queriesOf(lqs))
	var be *vsql.BatchError
	if errors.As(err, &be) {
		return nil, fmt.Errorf("%s: %w", lqs[be.Index].label, be.Err)
	}
	return stmts, err
}

func queriesOf(lqs []labeledQuery) []*ql.Query {
	qs := make([]*ql.Query, len(lqs))
	for i, lq := range lqs {
		qs[i] = lq.query
	}
	return qs
}

// livePermissions lets the watch command swap grants while compiles run.
type livePermissions struct {
	p atomic.Pointer[privacy.Permissions]
}

func newLivePermissions(p privacy.Permissions) *livePermissions {
	lp := &livePermissions{}
	lp.Store(p)
	return lp
}

func (lp *livePermissions) Store(p privacy.Permissions) { lp.p.Store(&p) }

// AccessMode implements privacy.Permissions.
func (lp *livePermissions) AccessMode(table, column string) privacy.AccessMode {
	return (*lp.p.Load()).AccessMode(table, column)
}
