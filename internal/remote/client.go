package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"checklist-cli/internal/model"

	"go.uber.org/zap"
)

const maxErrorBody = 64 * 1024

// Client talks to the checklist API over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	header http.Header
	log    *zap.Logger
}

var _ Sync = (*Client)(nil)

type ClientOption func(*Client)

// WithHeader sets credential headers copied verbatim onto every request.
func WithHeader(h http.Header) ClientOption {
	return func(c *Client) { c.header = h.Clone() }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("remote: missing base url")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		header: http.Header{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) FetchTree(ctx context.Context) (model.Tree, error) {
	var t model.Tree
	err := c.doJSON(ctx, "fetchTree", http.MethodGet, "api/tree", nil, &t)
	return t, err
}

func (c *Client) PersistReorder(ctx context.Context, intent model.ReorderIntent) error {
	return c.doJSON(ctx, "persistReorder", http.MethodPost, "api/tree/reorder", intent, nil)
}

func (c *Client) PersistRename(ctx context.Context, kind model.Kind, id, name string) error {
	p, err := nodePath(kind, id)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, "persistRename", http.MethodPatch, p, map[string]string{"name": name}, nil)
}

func (c *Client) PersistDelete(ctx context.Context, kind model.Kind, id string) error {
	p, err := nodePath(kind, id)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, "persistDelete", http.MethodDelete, p, nil, nil)
}

func (c *Client) FetchItems(ctx context.Context, partID string) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	err := c.doJSON(ctx, "fetchItems", http.MethodGet, "api/parts/"+url.PathEscape(partID)+"/items", nil, &items)
	for i := range items {
		for j := range items[i].Attachments {
			items[i].Attachments[j].URL = c.resolve(items[i].Attachments[j].URL)
		}
	}
	return items, err
}

// FetchItem loads one checklist item; its PartID locates the item list it
// belongs to.
func (c *Client) FetchItem(ctx context.Context, itemID string) (model.ChecklistItem, error) {
	var it model.ChecklistItem
	if err := c.doJSON(ctx, "fetchItem", http.MethodGet, "api/items/"+url.PathEscape(itemID), nil, &it); err != nil {
		return model.ChecklistItem{}, err
	}
	for j := range it.Attachments {
		it.Attachments[j].URL = c.resolve(it.Attachments[j].URL)
	}
	return it, nil
}

func (c *Client) UploadAttachment(ctx context.Context, f File, checklistItemID string) (model.Attachment, error) {
	const op = "uploadAttachment"
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return model.Attachment{}, err
	}
	if _, err := part.Write(f.Data); err != nil {
		return model.Attachment{}, err
	}
	if err := mw.Close(); err != nil {
		return model.Attachment{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "api/items/"+url.PathEscape(checklistItemID)+"/attachments", &body)
	if err != nil {
		return model.Attachment{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var a model.Attachment
	if err := c.do(op, req, &a); err != nil {
		return model.Attachment{}, err
	}
	a.URL = c.resolve(a.URL)
	a.IsTemp = false
	return a, nil
}

func (c *Client) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return c.doJSON(ctx, "deleteAttachment", http.MethodDelete, "api/attachments/"+url.PathEscape(attachmentID), nil, nil)
}

func nodePath(kind model.Kind, id string) (string, error) {
	switch kind {
	case model.KindAssembly:
		return "api/assemblies/" + url.PathEscape(id), nil
	case model.KindPart:
		return "api/parts/" + url.PathEscape(id), nil
	default:
		return "", fmt.Errorf("remote: unsupported node kind %q", kind)
	}
}

// resolve turns server-relative attachment URLs into absolute ones.
func (c *Client) resolve(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	return c.base.ResolveReference(u).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.String("url", req.URL.String()), zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request done",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{Op: op, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// The body was cut off mid-stream; treat like a lost response.
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return strings.TrimSpace(payload.Error)
	}
	return strings.TrimSpace(string(b))
}
