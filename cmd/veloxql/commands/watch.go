package commands

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/veloxql/cmd/veloxql/internal/watch"
	vsql "github.com/syssam/veloxql/dialect/sql"
	"github.com/syssam/veloxql/schema"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		allowBreaking bool
		debounce      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch QUERIES.yaml...",
		Short: "Recompile queries whenever the metadata, grants or queries change",
		Long: `watch compiles the queries and prints their SQL, then does so again each
time one of the files changes. Metadata changes that break existing queries
are refused unless --allow-breaking is set; the previous metadata stays in
use.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, allowBreaking)
			if err != nil {
				return err
			}
			if err := s.compile(cmd.Context()); err != nil {
				printError(s.errw, err)
			}
			w, err := watch.New(s.files(), func(changed []string) error {
				return s.reload(cmd.Context(), changed)
			}, watch.WithDebounce(debounce), watch.WithLogger(a.log))
			if err != nil {
				return err
			}
			a.log.InfoContext(cmd.Context(), "watching", "files", s.files())
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&allowBreaking, "allow-breaking", false, "apply metadata changes that break existing queries")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before recompiling")
	return cmd
}

// session is the live state of the watch command. The compiler reads the
// catalog and grants through their live holders, so both are swapped without
// rebuilding it.
type session struct {
	a             *app
	out, errw     io.Writer
	catalog       *schema.Catalog
	perms         *livePermissions
	compiler      *vsql.Compiler
	schemaPath    string
	grantsPath    string
	queries       []string
	allowBreaking bool
}

func (a *app) newSession(ctx context.Context, out, errw io.Writer, queries []string, allowBreaking bool) (*session, error) {
	s := &session{a: a, out: out, errw: errw, allowBreaking: allowBreaking}
	var err error
	if s.schemaPath, err = filepath.Abs(a.cfg.Schema); err != nil {
		return nil, err
	}
	if a.cfg.Grants != "" {
		if s.grantsPath, err = filepath.Abs(a.cfg.Grants); err != nil {
			return nil, err
		}
	}
	for _, q := range queries {
		abs, err := filepath.Abs(q)
		if err != nil {
			return nil, err
		}
		s.queries = append(s.queries, abs)
	}
	if s.catalog, err = a.loadCatalog(errw); err != nil {
		return nil, err
	}
	p, err := a.loadPermissions(ctx)
	if err != nil {
		return nil, err
	}
	s.perms = newLivePermissions(p)
	if s.compiler, err = a.newCompiler(s.catalog, s.perms); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) files() []string {
	files := []string{s.schemaPath}
	if s.grantsPath != "" {
		files = append(files, s.grantsPath)
	}
	return append(files, s.queries...)
}

// reload applies changed metadata and grants, then recompiles every query.
// A failed reload keeps the previous state.
func (s *session) reload(ctx context.Context, changed []string) error {
	for _, f := range changed {
		switch f {
		case s.schemaPath:
			if err := s.reloadCatalog(); err != nil {
				printError(s.errw, err)
				return err
			}
		case s.grantsPath:
			p, err := s.a.loadPermissions(ctx)
			if err != nil {
				printError(s.errw, err)
				return err
			}
			s.perms.Store(p)
			s.a.log.InfoContext(ctx, "grants reloaded", "file", f)
		}
	}
	if err := s.compile(ctx); err != nil {
		printError(s.errw, err)
		return err
	}
	return nil
}

func (s *session) reloadCatalog() error {
	next, err := s.a.loadCatalog(s.errw)
	if err != nil {
		return err
	}
	res := schema.Diff(s.catalog, next)
	if res.HasErrors() && !s.allowBreaking {
		printResult(s.errw, res)
		return errors.New("metadata changes break existing queries; keeping the previous metadata")
	}
	for _, warn := range res.Warnings {
		warningColor.Fprintf(s.errw, "warning: %s\n", warn)
	}
	if err := s.catalog.Replace(next.Tables()...); err != nil {
		return err
	}
	s.a.log.Info("metadata reloaded", "file", s.schemaPath, "tables", len(next.Tables()))
	return nil
}

func (s *session) compile(ctx context.Context) error {
	lqs, err := loadQueries(s.queries)
	if err != nil {
		return err
	}
	stmts, err := compileAll(ctx, s.compiler, lqs)
	if err != nil {
		return err
	}
	return printStatements(s.out, lqs, stmts, false)
}
