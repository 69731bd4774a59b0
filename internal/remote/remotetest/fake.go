// Package remotetest provides an in-memory remote.Sync for tests.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"checklist-cli/internal/model"
	"checklist-cli/internal/remote"
)

// Fake records every call and fails any operation whose name is set in
// Fail. Block, when set for an operation, is received from before the call
// returns so tests can hold a persist in flight.
type Fake struct {
	mu sync.Mutex

	Tree  model.Tree
	Items map[string][]model.ChecklistItem

	Fail  map[string]error
	Block map[string]chan struct{}

	Reorders []model.ReorderIntent
	Renames  []string
	Deletes  []string
	Uploads  []remote.File
	Detached []string

	seq int
}

var _ remote.Sync = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Items: map[string][]model.ChecklistItem{},
		Fail:  map[string]error{},
		Block: map[string]chan struct{}{},
	}
}

// SetFail makes op fail with err; a nil err clears it.
func (f *Fake) SetFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, op)
		return
	}
	f.Fail[op] = err
}

func (f *Fake) SetBlock(op string, ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Block[op] = ch
}

func (f *Fake) gate(ctx context.Context, op string) error {
	f.mu.Lock()
	ch := f.Block[op]
	f.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fail[op]
}

func (f *Fake) FetchTree(ctx context.Context) (model.Tree, error) {
	if err := f.gate(ctx, "FetchTree"); err != nil {
		return model.Tree{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Tree, nil
}

func (f *Fake) PersistReorder(ctx context.Context, intent model.ReorderIntent) error {
	if err := f.gate(ctx, "PersistReorder"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reorders = append(f.Reorders, intent)
	return nil
}

func (f *Fake) PersistRename(ctx context.Context, kind model.Kind, id, name string) error {
	if err := f.gate(ctx, "PersistRename"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Renames = append(f.Renames, fmt.Sprintf("%s/%s=%s", kind, id, name))
	return nil
}

func (f *Fake) PersistDelete(ctx context.Context, kind model.Kind, id string) error {
	if err := f.gate(ctx, "PersistDelete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes = append(f.Deletes, fmt.Sprintf("%s/%s", kind, id))
	return nil
}

func (f *Fake) FetchItems(ctx context.Context, partID string) ([]model.ChecklistItem, error) {
	if err := f.gate(ctx, "FetchItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ChecklistItem(nil), f.Items[partID]...), nil
}

func (f *Fake) UploadAttachment(ctx context.Context, file remote.File, itemID string) (model.Attachment, error) {
	if err := f.gate(ctx, "UploadAttachment"); err != nil {
		return model.Attachment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.Uploads = append(f.Uploads, file)
	id := fmt.Sprintf("att-%d", f.seq)
	return model.Attachment{
		ID:              id,
		ChecklistItemID: itemID,
		Filename:        file.Name,
		MimeType:        file.MimeType,
		URL:             "https://files.example/" + id,
		Size:            int64(len(file.Data)),
	}, nil
}

func (f *Fake) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if err := f.gate(ctx, "DeleteAttachment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Detached = append(f.Detached, attachmentID)
	return nil
}

// ReorderCalls returns a copy of the recorded reorder intents.
func (f *Fake) ReorderCalls() []model.ReorderIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ReorderIntent(nil), f.Reorders...)
}
