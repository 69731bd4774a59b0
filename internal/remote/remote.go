// Package remote defines the persistence boundary consumed by the mutation
// engines, and an HTTP/JSON client implementing it.
package remote

import (
	"context"

	"checklist-cli/internal/model"
)

// File is an upload payload. Data is kept in memory so a local preview can be
// served before the upload completes.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

type TreeService interface {
	FetchTree(ctx context.Context) (model.Tree, error)
	PersistReorder(ctx context.Context, intent model.ReorderIntent) error
	PersistRename(ctx context.Context, kind model.Kind, id, name string) error
	PersistDelete(ctx context.Context, kind model.Kind, id string) error
}

type AttachmentService interface {
	UploadAttachment(ctx context.Context, f File, checklistItemID string) (model.Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID string) error
}

type ItemService interface {
	FetchItems(ctx context.Context, partID string) ([]model.ChecklistItem, error)
}

// Sync is the full collaborator surface.
type Sync interface {
	TreeService
	AttachmentService
	ItemService
}
