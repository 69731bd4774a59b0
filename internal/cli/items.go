package cli

import (
	"strings"

	"checklist-cli/internal/format"
	"checklist-cli/internal/model"

	"github.com/spf13/cobra"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Read checklist items",
	}
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsShowCmd(app))
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <part-id>",
		Short: "List a part's checklist items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := c.FetchItems(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			if items == nil {
				items = []model.ChecklistItem{}
			}
			return writeOut(cmd, app, items, func() string { return format.RenderItems(items, app.styles(cmd)) })
		},
	}
}

func newItemsShowCmd(app *App) *cobra.Command {
	var render bool
	var width int
	var style string

	cmd := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one checklist item with its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			it, err := c.FetchItem(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			if render {
				_, err := cmd.OutOrStdout().Write([]byte(format.RenderMarkdown(format.ItemMarkdown(it), width, style)))
				return err
			}
			return writeOut(cmd, app, it, func() string { return format.ItemMarkdown(it) })
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Render the item as styled markdown")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --render")
	cmd.Flags().StringVar(&style, "style", envOr("CHECKLIST_MARKDOWN_STYLE", "dark"), "Glamour style for --render (dark|light|notty)")
	return cmd
}
