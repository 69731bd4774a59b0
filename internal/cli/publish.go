package cli

import (
	"strings"

	"checklist-cli/internal/publish"

	"github.com/spf13/cobra"
)

func newPublishCmd(app *App) *cobra.Command {
	var toDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "publish <machine-id>",
		Short: "Write a machine's checklists as Markdown files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			tree, err := c.FetchTree(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteMachine(cmd.Context(), tree, args[0], c, toDir, publish.WriteOptions{Overwrite: overwrite})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res, func() string { return strings.Join(res.Written, "\n") + "\n" })
		},
	}
	cmd.Flags().StringVar(&toDir, "to", "", "Output directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	return cmd
}
