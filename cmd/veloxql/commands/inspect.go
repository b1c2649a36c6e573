package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/syssam/veloxql/cmd/veloxql/internal/config"
	"github.com/syssam/veloxql/schema"
)

func newInspectCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Write the table metadata of a live database",
		Long: `inspect reads the tables, columns, primary keys and single-column
foreign keys of a SQLite, PostgreSQL or MySQL database and writes them as a
metadata document usable with --schema.`,
		Example: `  veloxql inspect -d sqlite --dsn file:docs.db -o schema.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DSN == "" {
				return fmt.Errorf("no data source; set --%s or %s_DSN", config.KeyDSN, config.EnvPrefix)
			}
			drv, err := a.open(cmd.Context(), a.cfg.Dialect)
			if err != nil {
				return err
			}
			defer drv.Close()
			c, err := schema.Inspect(cmd.Context(), drv.Dialect(), drv.DB())
			if err != nil {
				return err
			}
			res := schema.Validate(c, schema.AllowDanglingRefs(), schema.AllowNoPrimaryKey(), schema.AllowUnknownTypes())
			for _, warn := range res.Warnings {
				warningColor.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
			}
			b, err := c.Marshal()
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := afero.WriteFile(a.fs, output, b, 0o644); err != nil {
				return err
			}
			a.log.InfoContext(cmd.Context(), "wrote metadata", "file", output, "tables", len(c.Tables()))
			return nil
		},
	}
	cmd.Flags().String(config.KeyDSN, "", "data source name of the database")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write; stdout when empty")
	return cmd
}
