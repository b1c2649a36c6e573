// Command veloxql compiles YAML query documents into dialect SQL, checks them
// against table metadata and grants, and runs them against a database.
package main

import (
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/veloxql/cmd/veloxql/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
