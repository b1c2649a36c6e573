package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/veloxql/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		against string
		relax   []string
	)
	cmd := &cobra.Command{
		Use:   "validate [QUERIES.yaml...]",
		Short: "Check the metadata, and optionally queries, without a database",
		Long: `validate checks the metadata document. Given --against, it also reports
the changes from an older metadata document that would break existing
queries. Query documents given as arguments are compiled and discarded.`,
		Example: `  veloxql validate -s schema.yaml
  veloxql validate -s next.yaml --against schema.yaml --allow drop-column`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			c, err := a.loadCatalog(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if against != "" {
				prev, err := schema.LoadFile(against)
				if err != nil {
					return err
				}
				opts, err := diffOptions(relax)
				if err != nil {
					return err
				}
				res := schema.Diff(prev, c, opts...)
				printResult(w, res)
				if res.HasErrors() {
					return errors.New("metadata changes break existing queries")
				}
			}
			if len(args) == 0 {
				return nil
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
			if _, err := compileAll(cmd.Context(), comp, lqs); err != nil {
				return err
			}
			fmt.Fprintf(w, "%d queries ok\n", len(lqs))
			return nil
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "older metadata document to diff with")
	cmd.Flags().StringSliceVar(&relax, "allow", nil, "changes reported as warnings: drop-column, drop-table, retype")
	return cmd
}

func diffOptions(names []string) ([]schema.DiffOption, error) {
	var opts []schema.DiffOption
	for _, n := range names {
		switch n {
		case "drop-column":
			opts = append(opts, schema.AllowDropColumn())
		case "drop-table":
			opts = append(opts, schema.AllowDropTable())
		case "retype":
			opts = append(opts, schema.AllowRetype())
		default:
			return nil, fmt.Errorf("unknown change kind %q", n)
		}
	}
	return opts, nil
}

func printResult(w io.Writer, res *schema.ValidationResult) {
	for _, e := range res.Errors {
		errorColor.Fprint(w, "error: ")
		fmt.Fprint(w, e)
		if e.Breaking {
			fmt.Fprint(w, " [BREAKING]")
		}
		fmt.Fprintln(w)
	}
	for _, warn := range res.Warnings {
		warningColor.Fprintf(w, "warning: %s\n", warn)
	}
	if !res.HasErrors() && !res.HasWarnings() {
		fmt.Fprintln(w, "no changes break existing queries")
	}
}
