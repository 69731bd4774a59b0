package cli

import (
	"fmt"
	"strings"

	"checklist-cli/internal/docs"
	"checklist-cli/internal/format"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *App) *cobra.Command {
	var raw, render bool
	var width int

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show documentation topics (import format, browser keys, API, config)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				topics := docs.Topics()
				return writeOut(cmd, app, map[string]any{"topics": topics}, func() string {
					return strings.Join(topics, "\n") + "\n"
				})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `checklist docs` to list topics)", topic))
			}
			switch {
			case raw:
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			case render:
				_, err := fmt.Fprint(cmd.OutOrStdout(), format.RenderMarkdown(body, width, envOr("CHECKLIST_MARKDOWN_STYLE", "dark")))
				return err
			}
			return writeOut(cmd, app, map[string]any{"topic": topic, "markdown": body}, func() string { return body })
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no envelope)")
	cmd.Flags().BoolVar(&render, "render", false, "Render the markdown for the terminal")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --render")
	return cmd
}
