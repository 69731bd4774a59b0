package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"checklist-cli/internal/blob"
	"checklist-cli/internal/config"
	"checklist-cli/internal/model"
	"checklist-cli/internal/remote"
	"checklist-cli/internal/session"
	"checklist-cli/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
machines:
  - name: M1
    assemblies:
      - name: A1
        parts:
          - name: P1
            items:
              - text: Inspect seal
          - name: P2
      - name: A2
      - name: A3
`

type harness struct {
	store  *store.Store
	srv    *httptest.Server
	client *remote.Client
}

func newHarness(t *testing.T, opts ...store.Option) *harness {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	}, blob.NewMemory(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	seed, err := store.DecodeSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	_, err = st.Import(ctx, seed)
	require.NoError(t, err)

	api, err := New(st)
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	c, err := remote.NewClient(srv.URL)
	require.NoError(t, err)
	return &harness{store: st, srv: srv, client: c}
}

func rejected(t *testing.T, err error) *remote.RejectedError {
	t.Helper()
	var rej *remote.RejectedError
	require.True(t, errors.As(err, &rej), "expected rejection, got %v", err)
	return rej
}

func TestAPI_TreeReorderRenameDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tree, err := h.client.FetchTree(ctx)
	require.NoError(t, err)
	m := tree.Machines[0]
	require.Len(t, m.Assemblies, 3)

	require.NoError(t, h.client.PersistReorder(ctx, model.ReorderIntent{
		Type: model.IntentMoveAssembly, ContainerID: "assemblies-" + m.ID, ParentID: m.ID, FromIndex: 0, ToIndex: 2,
	}))
	require.NoError(t, h.client.PersistRename(ctx, model.KindPart, m.Assemblies[0].Parts[1].ID, "Gasket"))
	require.NoError(t, h.client.PersistDelete(ctx, model.KindAssembly, m.Assemblies[1].ID))

	tree, err = h.client.FetchTree(ctx)
	require.NoError(t, err)
	var got []string
	for _, a := range tree.Machines[0].Assemblies {
		got = append(got, a.Name)
	}
	assert.Equal(t, []string{"A3", "A1"}, got)
	assert.Equal(t, "Gasket", tree.Machines[0].Assemblies[1].Parts[1].Name)
}

func TestAPI_ErrorStatuses(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tree, err := h.client.FetchTree(ctx)
	require.NoError(t, err)
	m := tree.Machines[0]

	err = h.client.PersistReorder(ctx, model.ReorderIntent{Type: model.IntentMoveAssembly, ParentID: m.ID, FromIndex: 0, ToIndex: 9})
	rej := rejected(t, err)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Contains(t, rej.Message, "invalid index")
	assert.False(t, remote.IsRetryable(err))

	err = h.client.PersistRename(ctx, model.KindPart, "prt-missing", "x")
	assert.True(t, remote.IsNotFound(err))

	err = h.client.PersistRename(ctx, model.KindPart, m.Assemblies[0].Parts[0].ID, "  ")
	assert.Equal(t, http.StatusBadRequest, rejected(t, err).Status)

	_, err = h.client.FetchItems(ctx, "prt-missing")
	assert.True(t, remote.IsNotFound(err))

	resp, err := http.Post(h.srv.URL+"/api/tree/reorder", "application/json", strings.NewReader(`{"type":"movePart","bogus":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/api/nothing")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"no such route"}`, string(body))
}

func TestAPI_MachinesCannotBeEdited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tree, err := h.client.FetchTree(ctx)
	require.NoError(t, err)
	m := tree.Machines[0]

	for _, method := range []string{http.MethodPatch, http.MethodDelete} {
		req, err := http.NewRequest(method, h.srv.URL+"/api/machines/"+m.ID, strings.NewReader(`{"name":"X"}`))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, method)
	}

	after, err := h.client.FetchTree(ctx)
	require.NoError(t, err)
	require.Len(t, after.Machines, len(tree.Machines))
	assert.Equal(t, m.Name, after.Machines[0].Name)
}

func TestAPI_AttachmentLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tree, err := h.client.FetchTree(ctx)
	require.NoError(t, err)
	p1 := tree.Machines[0].Assemblies[0].Parts[0]

	items, err := h.client.FetchItems(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	itemID := items[0].ID

	a, err := h.client.UploadAttachment(ctx, remote.File{Name: "seal.png", MimeType: "image/png", Data: []byte("png")}, itemID)
	require.NoError(t, err)
	assert.Equal(t, "seal.png", a.Filename)
	assert.Equal(t, itemID, a.ChecklistItemID)
	assert.Equal(t, h.srv.URL+"/api/attachments/"+a.ID+"/content", a.URL)

	resp, err := http.Get(a.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "png", string(body))

	items, err = h.client.FetchItems(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, items[0].Attachments, 1)
	assert.Equal(t, a.URL, items[0].Attachments[0].URL)

	require.NoError(t, h.client.DeleteAttachment(ctx, a.ID))
	assert.True(t, remote.IsNotFound(h.client.DeleteAttachment(ctx, a.ID)))

	_, err = h.client.UploadAttachment(ctx, remote.File{Name: "x.txt", Data: []byte("x")}, "itm-missing")
	assert.True(t, remote.IsNotFound(err))
}

func TestAPI_UploadTooLarge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.WithMaxAttachmentBytes(8))
	tree, err := h.client.FetchTree(ctx)
	require.NoError(t, err)
	items, err := h.client.FetchItems(ctx, tree.Machines[0].Assemblies[0].Parts[0].ID)
	require.NoError(t, err)

	_, err = h.client.UploadAttachment(ctx, remote.File{Name: "big.bin", Data: []byte("0123456789")}, items[0].ID)
	rej := rejected(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rej.Status)
	assert.Contains(t, rej.Message, "too large")
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = h.client.FetchTree(context.Background())
	require.NoError(t, err)

	resp, err = http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `checklist_http_requests_total{method="GET",route="/api/tree",status="200"}`)
}

// The session drives optimistic edits against the real server.
func TestAPI_SessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sess := session.New(h.client)
	require.NoError(t, sess.Load(ctx))

	m := sess.Tree().Machines[0]
	a1 := m.Assemblies[0]
	require.NoError(t, sess.Reorder().Commit(ctx, model.ReorderIntent{
		Type: model.IntentMovePart, ContainerID: "parts-" + a1.ID, ParentID: a1.ID, FromIndex: 0, ToIndex: 1,
	}))
	assert.Equal(t, "P2", sess.Tree().Machines[0].Assemblies[0].Parts[0].Name)

	server, err := h.store.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Tree(), server)

	err = sess.Rename(ctx, model.KindAssembly, a1.ID, "")
	require.Error(t, err)
	assert.Equal(t, "A1", sess.Tree().Machines[0].Assemblies[0].Name)

	p1 := sess.Tree().Machines[0].Assemblies[0].Parts[1]
	items, err := sess.LoadItems(ctx, p1.ID)
	require.NoError(t, err)
	att, err := sess.Upload(ctx, items[0].ID, remote.File{Name: "photo.jpg", Data: []byte("jpg")})
	require.NoError(t, err)
	it, ok := sess.Item(items[0].ID)
	require.True(t, ok)
	require.Len(t, it.Attachments, 1)
	assert.Equal(t, att.ID, it.Attachments[0].ID)
	assert.False(t, it.Attachments[0].IsTemp)
	assert.Equal(t, 0, sess.Uploads().Previews().Len())
}
