package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	vsql "github.com/syssam/veloxql/dialect/sql"
)

func newCompileCmd(a *app) *cobra.Command {
	var shape bool
	cmd := &cobra.Command{
		Use:   "compile QUERIES.yaml...",
		Short: "Print the SQL of each query document",
		Example: `  veloxql compile -d postgres -s schema.yaml queries.yaml
  veloxql compile --shape -g grants.yaml reports/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			return printStatements(cmd.OutOrStdout(), lqs, stmts, shape)
		},
	}
	cmd.Flags().BoolVar(&shape, "shape", false, "print the output columns and their types")
	return cmd
}

func printStatements(w io.Writer, lqs []labeledQuery, stmts []*vsql.Statement, shape bool) error {
	for i, stmt := range stmts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		commentColor.Fprintf(w, "-- %s\n", lqs[i].label)
		if shape {
			cols := make([]string, len(stmt.Shape.Columns))
			for j, c := range stmt.Shape.Columns {
				cols[j] = fmt.Sprintf("%s %s", c.Name, c.Type)
			}
			commentColor.Fprintf(w, "-- (%s)\n", strings.Join(cols, ", "))
		}
		if _, err := fmt.Fprintf(w, "%s;\n", stmt.SQL); err != nil {
			return err
		}
	}
	return nil
}
