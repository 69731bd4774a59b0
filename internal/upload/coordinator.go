// Package upload attaches files to checklist items optimistically: a pending
// attachment backed by a local preview is shown at once and is later either
// promoted to the server's attachment in place or removed.
package upload

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"checklist-cli/internal/logging"
	"checklist-cli/internal/metrics"
	"checklist-cli/internal/model"
	"checklist-cli/internal/remote"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tempPrefix = "tmp-"

var (
	ErrUnknownItem = errors.New("upload: unknown checklist item")
	// ErrPendingAttachment is returned when deleting an attachment that has
	// not been confirmed yet.
	ErrPendingAttachment = errors.New("upload: attachment is still pending")
	ErrEmptyFile         = errors.New("upload: empty file name")
)

// Lists gives the coordinator read-modify-write access to one item's
// attachment list. fn must not retain its argument. Update returns
// ErrUnknownItem (possibly wrapped) for items it does not hold.
type Lists interface {
	Update(itemID string, fn func([]model.Attachment) []model.Attachment) error
}

type Coordinator struct {
	svc      remote.AttachmentService
	lists    Lists
	previews *Previews
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option { return func(c *Coordinator) { c.log = logging.OrNop(l) } }

func WithPreviews(p *Previews) Option { return func(c *Coordinator) { c.previews = p } }

func New(svc remote.AttachmentService, lists Lists, opts ...Option) *Coordinator {
	c := &Coordinator{
		svc:      svc,
		lists:    lists,
		previews: NewPreviews(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) Previews() *Previews { return c.previews }

// Upload attaches f to the item. The pending attachment is in the item's
// list when the upload request is issued; when Upload returns it has been
// either replaced by the confirmed attachment at the same position or
// removed. The preview reference is released on every path.
//
// Callers must not start a second upload for an item while HasPending is
// true for its list.
func (c *Coordinator) Upload(ctx context.Context, itemID string, f remote.File) (model.Attachment, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return model.Attachment{}, ErrEmptyFile
	}
	f.Name = filepath.Base(name)
	if strings.TrimSpace(f.MimeType) == "" {
		f.MimeType = DetectMimeType(f.Name, f.Data)
	}

	start := c.now()
	ref := c.previews.Create(f.Data)
	defer c.previews.Release(ref)

	placeholder := model.Attachment{
		ID:              tempPrefix + uuid.NewString(),
		ChecklistItemID: itemID,
		Filename:        f.Name,
		MimeType:        f.MimeType,
		URL:             ref,
		Size:            int64(len(f.Data)),
		CreatedAt:       start.UTC(),
		IsTemp:          true,
	}
	if err := c.lists.Update(itemID, func(in []model.Attachment) []model.Attachment {
		return append(append([]model.Attachment(nil), in...), placeholder)
	}); err != nil {
		return model.Attachment{}, err
	}

	defer func() { metrics.UploadDuration.Observe(c.now().Sub(start).Seconds()) }()
	confirmed, err := c.svc.UploadAttachment(ctx, f, itemID)
	if err != nil {
		c.rollback(itemID, placeholder.ID)
		metrics.UploadsTotal.WithLabelValues(resultLabel(err)).Inc()
		c.log.Warn("upload rolled back",
			zap.String("item", itemID),
			zap.String("file", f.Name),
			zap.Bool("retryable", remote.IsRetryable(err)),
			zap.Error(err))
		return model.Attachment{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}

	confirmed.IsTemp = false
	if confirmed.ChecklistItemID == "" {
		confirmed.ChecklistItemID = itemID
	}
	replaced := false
	uerr := c.lists.Update(itemID, func(in []model.Attachment) []model.Attachment {
		out := append([]model.Attachment(nil), in...)
		for i := range out {
			if out[i].ID == placeholder.ID {
				out[i] = confirmed
				replaced = true
				break
			}
		}
		return out
	})
	if uerr != nil || !replaced {
		// The item went away while uploading; the server copy stands.
		c.log.Info("upload confirmed for item no longer listed",
			zap.String("item", itemID), zap.String("attachment", confirmed.ID))
	}
	metrics.UploadsTotal.WithLabelValues("confirmed").Inc()
	c.log.Debug("upload confirmed", zap.String("item", itemID), zap.String("attachment", confirmed.ID))
	return confirmed, nil
}

func (c *Coordinator) rollback(itemID, placeholderID string) {
	_ = c.lists.Update(itemID, func(in []model.Attachment) []model.Attachment {
		out := make([]model.Attachment, 0, len(in))
		for _, a := range in {
			if a.ID != placeholderID {
				out = append(out, a)
			}
		}
		return out
	})
}

// Delete removes a confirmed attachment optimistically and restores it at
// its previous position if the server refuses.
func (c *Coordinator) Delete(ctx context.Context, itemID, attachmentID string) error {
	var (
		removed model.Attachment
		index   = -1
		pending bool
	)
	if err := c.lists.Update(itemID, func(in []model.Attachment) []model.Attachment {
		for i, a := range in {
			if a.ID != attachmentID {
				continue
			}
			if a.IsTemp {
				pending = true
				return in
			}
			removed, index = a, i
			out := make([]model.Attachment, 0, len(in)-1)
			out = append(out, in[:i]...)
			return append(out, in[i+1:]...)
		}
		return in
	}); err != nil {
		return err
	}
	switch {
	case pending:
		return ErrPendingAttachment
	case index < 0:
		return fmt.Errorf("attachment not found: %s", attachmentID)
	}

	if err := c.svc.DeleteAttachment(ctx, attachmentID); err != nil {
		_ = c.lists.Update(itemID, func(in []model.Attachment) []model.Attachment {
			i := index
			if i > len(in) {
				i = len(in)
			}
			out := make([]model.Attachment, 0, len(in)+1)
			out = append(out, in[:i]...)
			out = append(out, removed)
			return append(out, in[i:]...)
		})
		c.log.Warn("attachment delete rolled back",
			zap.String("attachment", attachmentID), zap.Error(err))
		return fmt.Errorf("delete attachment %s: %w", attachmentID, err)
	}
	return nil
}

// HasPending reports whether any attachment in the list is still uploading.
func HasPending(atts []model.Attachment) bool {
	for _, a := range atts {
		if a.IsTemp {
			return true
		}
	}
	return false
}

// IsPlaceholderID reports whether id was generated locally for a pending upload.
func IsPlaceholderID(id string) bool { return strings.HasPrefix(id, tempPrefix) }

// DetectMimeType guesses from the extension, then sniffs the content.
func DetectMimeType(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, remote.ErrNetwork):
		return "network_error"
	case errors.Is(err, remote.ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}
