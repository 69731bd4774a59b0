package cli

import (
	"fmt"
	"os"

	"checklist-cli/internal/store"

	"github.com/spf13/cobra"
)

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <tree.yaml>",
		Short: "Append machines, assemblies, parts and items from a YAML file",
		Long: "Writes directly to the configured database, so run it where the server's\n" +
			"database and blob storage are reachable.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			defer f.Close()
			seed, err := store.DecodeSeed(f)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			stats, err := st.Import(cmd.Context(), seed)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, stats, func() string {
				return fmt.Sprintf("imported %d machines, %d assemblies, %d parts, %d items\n",
					stats.Machines, stats.Assemblies, stats.Parts, stats.Items)
			})
		},
	}
}
