package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"checklist-cli/internal/blob"
	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"

	"go.uber.org/zap"
)

var (
	ErrTooLarge    = errors.New("attachment too large")
	ErrEmptyUpload = errors.New("attachment is empty")

	// ErrAttachmentNotFound matches mutate.ErrNotFound.
	ErrAttachmentNotFound = fmt.Errorf("attachment %w", mutate.ErrNotFound)
)

// AttachmentURL is the API path serving an attachment's content.
func AttachmentURL(id string) string { return "/api/attachments/" + id + "/content" }

func guessMimeType(filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

func cleanFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}

// AddAttachment streams r into blob storage under a fresh id and records it
// against the item. Content over the configured maximum fails with
// ErrTooLarge and leaves nothing behind.
func (s *Store) AddAttachment(ctx context.Context, itemID, filename, mimeType string, r io.Reader) (model.Attachment, error) {
	itemID = strings.TrimSpace(itemID)
	ok, err := s.exists(ctx, s.db, "items", itemID)
	if err != nil {
		return model.Attachment{}, err
	}
	if !ok {
		return model.Attachment{}, fmt.Errorf("item not found: %s: %w", itemID, mutate.ErrNotFound)
	}

	filename = cleanFilename(filename)
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = guessMimeType(filename)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id, err := newID(prefixAttachment)
	if err != nil {
		return model.Attachment{}, err
	}
	key := "attachments/" + id + "/" + filename

	h := sha256.New()
	counter := &countingReader{r: io.LimitReader(r, s.maxBytes+1)}
	info, err := s.blobs.Put(ctx, key, io.TeeReader(counter, h), blob.PutOptions{
		ContentType: mimeType,
		Metadata:    map[string]string{"item": itemID, "filename": filename},
	})
	if err != nil {
		return model.Attachment{}, fmt.Errorf("store attachment content: %w", err)
	}
	if counter.n > s.maxBytes {
		s.removeBlobs(ctx, []string{key})
		return model.Attachment{}, fmt.Errorf("%w (%d bytes > %d bytes)", ErrTooLarge, counter.n, s.maxBytes)
	}
	if counter.n == 0 {
		s.removeBlobs(ctx, []string{key})
		return model.Attachment{}, ErrEmptyUpload
	}

	now := time.Now().UTC()
	sum := hex.EncodeToString(h.Sum(nil))
	_, err = s.exec(ctx, s.db,
		`INSERT INTO attachments(id, item_id, filename, mime_type, size_bytes, sha256, blob_key, created_at_unixms) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		id, itemID, filename, mimeType, info.Size, sum, key, now.UnixMilli())
	if err != nil {
		s.removeBlobs(ctx, []string{key})
		return model.Attachment{}, err
	}
	s.log.Info("attachment stored",
		zap.String("id", id),
		zap.String("item", itemID),
		zap.Int64("bytes", info.Size),
		zap.String("driver", string(s.blobs.Driver())))

	return model.Attachment{
		ID:              id,
		ChecklistItemID: itemID,
		Filename:        filename,
		MimeType:        mimeType,
		URL:             AttachmentURL(id),
		Size:            info.Size,
		CreatedAt:       time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *Store) attachmentRow(ctx context.Context, q queryer, id string) (model.Attachment, string, error) {
	row := s.queryRow(ctx, q,
		`SELECT id, item_id, filename, mime_type, size_bytes, created_at_unixms, blob_key FROM attachments WHERE id = ?`,
		strings.TrimSpace(id))
	var a model.Attachment
	var createdMs int64
	var key string
	err := row.Scan(&a.ID, &a.ChecklistItemID, &a.Filename, &a.MimeType, &a.Size, &createdMs, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attachment{}, "", fmt.Errorf("%w: %s", ErrAttachmentNotFound, id)
	}
	if err != nil {
		return model.Attachment{}, "", err
	}
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	a.URL = AttachmentURL(a.ID)
	return a, key, nil
}

func (s *Store) Attachment(ctx context.Context, id string) (model.Attachment, error) {
	a, _, err := s.attachmentRow(ctx, s.db, id)
	return a, err
}

// OpenAttachment returns the attachment and a reader over its content. The
// caller closes the reader.
func (s *Store) OpenAttachment(ctx context.Context, id string) (model.Attachment, io.ReadCloser, error) {
	a, key, err := s.attachmentRow(ctx, s.db, id)
	if err != nil {
		return model.Attachment{}, nil, err
	}
	_, rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return model.Attachment{}, nil, fmt.Errorf("attachment %s content: %w", id, err)
	}
	return a, rc, nil
}

// PresignAttachment returns a direct download URL when the blob backend
// supports one (blob.ErrUnsupported otherwise).
func (s *Store) PresignAttachment(ctx context.Context, id string, expiry time.Duration) (string, error) {
	_, key, err := s.attachmentRow(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignURL(ctx, key, expiry)
}

func (s *Store) DeleteAttachment(ctx context.Context, id string) error {
	_, key, err := s.attachmentRow(ctx, s.db, id)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, s.db, `DELETE FROM attachments WHERE id = ?`, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.removeBlobs(ctx, []string{key})
	return nil
}
