package cli

import (
	"fmt"
	"strconv"
	"strings"

	"checklist-cli/internal/expand"
	"checklist-cli/internal/format"
	"checklist-cli/internal/model"
	"checklist-cli/internal/reorder"

	"github.com/spf13/cobra"
)

func newTreeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show and edit the machine / assembly / part tree",
	}
	cmd.AddCommand(newTreeShowCmd(app))
	cmd.AddCommand(newTreeMoveCmd(app, model.IntentMoveAssembly))
	cmd.AddCommand(newTreeMoveCmd(app, model.IntentMovePart))
	cmd.AddCommand(newTreeRenameCmd(app))
	cmd.AddCommand(newTreeRmCmd(app))
	return cmd
}

func writeTree(cmd *cobra.Command, app *App, t model.Tree) error {
	return writeOut(cmd, app, t, func() string { return format.RenderTree(t, app.styles(cmd)) })
}

func newTreeShowCmd(app *App) *cobra.Command {
	var expandPart string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := app.session(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if expandPart = strings.TrimSpace(expandPart); expandPart == "" {
				return writeTree(cmd, app, s.Tree())
			}
			// Only the branch containing the part, as the browser would show it.
			s.ExpandContaining(expandPart)
			rows := s.Rows()
			return writeOut(cmd, app, rows, func() string { return renderRows(rows) })
		},
	}
	cmd.Flags().StringVar(&expandPart, "expand", "", "Show only the rows visible with the branch holding this part expanded")
	return cmd
}

func renderRows(rows []expand.Row) string {
	var b strings.Builder
	for _, r := range rows {
		marker := " "
		switch {
		case r.HasChildren && r.Expanded:
			marker = "▾"
		case r.HasChildren:
			marker = "▸"
		}
		fmt.Fprintf(&b, "%s%s %s %s\n", strings.Repeat("  ", r.Depth), marker, r.Name, r.ID)
	}
	return b.String()
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index: %q", s)
	}
	return n, nil
}

func newTreeMoveCmd(app *App, typ model.IntentType) *cobra.Command {
	use, short, parent := "move-part <assembly-id> <from> <to>", "Move a part within its assembly", "assembly"
	container := reorder.PartsContainer
	if typ == model.IntentMoveAssembly {
		use, short, parent = "move-assembly <machine-id> <from> <to>", "Move an assembly within its machine", "machine"
		container = reorder.AssembliesContainer
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ". Indices are zero-based positions among the " + parent + "'s children, as printed by `tree show --format text`.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID := strings.TrimSpace(args[0])
			from, err := parseIndex(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			to, err := parseIndex(args[2])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, _, err := app.session(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			intent := model.ReorderIntent{
				Type:        typ,
				ContainerID: container(parentID),
				ParentID:    parentID,
				FromIndex:   from,
				ToIndex:     to,
			}
			if err := s.Reorder().Commit(cmd.Context(), intent); err != nil {
				return writeErr(cmd, err)
			}
			return writeTree(cmd, app, s.Tree())
		},
	}
}

func newTreeRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <assembly|part> <id> <name>",
		Short: "Rename an assembly or part",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := editableKind(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, _, err := app.session(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.Rename(cmd.Context(), kind, args[1], args[2]); err != nil {
				return writeErr(cmd, err)
			}
			return writeTree(cmd, app, s.Tree())
		},
	}
}

func newTreeRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <assembly|part> <id>",
		Short: "Delete an assembly or part with everything below it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := editableKind(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, _, err := app.session(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.Remove(cmd.Context(), kind, args[1]); err != nil {
				return writeErr(cmd, err)
			}
			return writeTree(cmd, app, s.Tree())
		},
	}
}

func editableKind(s string) (model.Kind, error) {
	kind, err := model.ParseKind(s)
	if err != nil {
		return "", err
	}
	if kind == model.KindMachine {
		return "", fmt.Errorf("machines cannot be edited from the client (expected assembly|part)")
	}
	return kind, nil
}
