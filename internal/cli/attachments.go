package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"checklist-cli/internal/remote"
	"checklist-cli/internal/session"

	"github.com/spf13/cobra"
)

func newAttachmentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "Upload and remove checklist item attachments",
	}
	cmd.AddCommand(newAttachmentsUploadCmd(app))
	cmd.AddCommand(newAttachmentsRmCmd(app))
	return cmd
}

// itemSession loads the item's part so the session can track its attachment
// list.
func (app *App) itemSession(ctx context.Context, itemID string) (*session.Session, error) {
	s, c, err := app.session(ctx)
	if err != nil {
		return nil, err
	}
	it, err := c.FetchItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.LoadItems(ctx, it.PartID); err != nil {
		return nil, err
	}
	return s, nil
}

func newAttachmentsUploadCmd(app *App) *cobra.Command {
	var name, mimeType string

	cmd := &cobra.Command{
		Use:   "upload <item-id> <path>",
		Short: "Attach a local file to a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := strings.TrimSpace(args[0])
			path := strings.TrimSpace(args[1])
			if itemID == "" || path == "" {
				return writeErr(cmd, errors.New("missing item id/path"))
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return writeErr(cmd, err)
			}
			if name = strings.TrimSpace(name); name == "" {
				name = filepath.Base(path)
			}
			s, err := app.itemSession(cmd.Context(), itemID)
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := s.Upload(cmd.Context(), itemID, remote.File{Name: name, MimeType: mimeType, Data: data})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, a, func() string { return a.ID + " " + a.URL + "\n" })
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Filename to store (default: base name of path)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (default: detected)")
	return cmd
}

func newAttachmentsRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <item-id> <attachment-id>",
		Short: "Remove an attachment from a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := strings.TrimSpace(args[0])
			attID := strings.TrimSpace(args[1])
			s, err := app.itemSession(cmd.Context(), itemID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.DeleteAttachment(cmd.Context(), itemID, attID); err != nil {
				return writeErr(cmd, err)
			}
			it, _ := s.Item(itemID)
			return writeOut(cmd, app, it, func() string { return "removed " + attID + "\n" })
		},
	}
}
