package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checklist-cli/internal/blob"
	"checklist-cli/internal/config"
	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
machines:
  - name: Press 4
    assemblies:
      - name: Hydraulics
        parts:
          - name: Pump
            items:
              - text: Check oil level
                section: inspection
                optionType: pass_fail
              - text: Replace filter
                section: maintenance
          - name: Valve
          - name: Hose
      - name: Frame
        parts:
          - name: Guard
            items:
              - text: Guard closes
                section: safety
                optionType: checkbox
`

func openTestStore(t *testing.T, opts ...Option) (*Store, *blob.Memory) {
	t.Helper()
	blobs := blob.NewMemory()
	s, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "checklist.db"),
	}, blobs, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, blobs
}

func seeded(t *testing.T, s *Store) model.Tree {
	t.Helper()
	seed, err := DecodeSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	st, err := s.Import(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, SeedStats{Machines: 1, Assemblies: 2, Parts: 4, Items: 3}, st)
	tree, err := s.Tree(context.Background())
	require.NoError(t, err)
	return tree
}

func names[T any](xs []T, name func(T) string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = name(x)
	}
	return out
}

func partNames(a model.Assembly) []string {
	return names(a.Parts, func(p model.Part) string { return p.Name })
}

func TestImport_TreeInSeedOrder(t *testing.T) {
	s, _ := openTestStore(t)
	tree := seeded(t, s)

	require.Len(t, tree.Machines, 1)
	m := tree.Machines[0]
	assert.Equal(t, "Press 4", m.Name)
	assert.Equal(t, []string{"Hydraulics", "Frame"}, names(m.Assemblies, func(a model.Assembly) string { return a.Name }))
	assert.Equal(t, []string{"Pump", "Valve", "Hose"}, partNames(m.Assemblies[0]))
	assert.True(t, strings.HasPrefix(m.ID, "mch-"))

	items, err := s.Items(context.Background(), m.Assemblies[0].Parts[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Check oil level", items[0].Text)
	assert.Equal(t, model.OptionPassFail, items[0].OptionType)
	assert.Equal(t, model.OptionCheckbox, items[1].OptionType)
	assert.Equal(t, model.SectionMaintenance, items[1].Section)
	assert.Empty(t, items[0].Attachments)
}

func TestDecodeSeed_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeSeed(strings.NewReader("machines:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)
}

func TestImport_InvalidItemStops(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Import(context.Background(), Seed{Machines: []SeedMachine{{
		Name: "M",
		Assemblies: []SeedAssembly{{Name: "A", Parts: []SeedPart{{
			Name:  "P",
			Items: []SeedItem{{Text: "x", Section: "paint"}},
		}}}},
	}}})
	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.Contains(t, err.Error(), "items[0]")
}

func TestReorder_MovesWithinParent(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	tree := seeded(t, s)
	asm := tree.Machines[0].Assemblies[0]

	require.NoError(t, s.Reorder(ctx, model.ReorderIntent{
		Type: model.IntentMovePart, ParentID: asm.ID, FromIndex: 0, ToIndex: 2,
	}))
	tree, err := s.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Valve", "Hose", "Pump"}, partNames(tree.Machines[0].Assemblies[0]))

	require.NoError(t, s.Reorder(ctx, model.ReorderIntent{
		Type: model.IntentMoveAssembly, ParentID: tree.Machines[0].ID, FromIndex: 1, ToIndex: 0,
	}))
	tree, err = s.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Frame", tree.Machines[0].Assemblies[0].Name)
	assert.Equal(t, []string{"Valve", "Hose", "Pump"}, partNames(tree.Machines[0].Assemblies[1]))
}

func TestReorder_RepeatedMovesStayConsistent(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	tree := seeded(t, s)
	asm := tree.Machines[0].Assemblies[0]
	want := partNames(asm)

	for _, mv := range [][2]int{{0, 1}, {0, 1}, {0, 1}, {2, 0}, {1, 2}, {2, 1}, {0, 2}} {
		require.NoError(t, s.Reorder(ctx, model.ReorderIntent{
			Type: model.IntentMovePart, ParentID: asm.ID, FromIndex: mv[0], ToIndex: mv[1],
		}))
		moved := want[mv[0]]
		want = append(want[:mv[0]:mv[0]], want[mv[0]+1:]...)
		want = append(want[:mv[1]:mv[1]], append([]string{moved}, want[mv[1]:]...)...)

		tree, err := s.Tree(ctx)
		require.NoError(t, err)
		require.Equal(t, want, partNames(tree.Machines[0].Assemblies[0]), "after move %v", mv)
	}
}

func TestReorder_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	tree := seeded(t, s)
	asm := tree.Machines[0].Assemblies[0]

	err := s.Reorder(ctx, model.ReorderIntent{Type: model.IntentMovePart, ParentID: asm.ID, FromIndex: 0, ToIndex: 3})
	assert.ErrorIs(t, err, mutate.ErrInvalidIndex)

	err = s.Reorder(ctx, model.ReorderIntent{Type: model.IntentMovePart, ParentID: "asm-missing", FromIndex: 0, ToIndex: 1})
	assert.ErrorIs(t, err, mutate.ErrNotFound)

	err = s.Reorder(ctx, model.ReorderIntent{Type: "moveMachine", ParentID: asm.ID})
	assert.ErrorIs(t, err, mutate.ErrInvalidIndex)

	after, err := s.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, tree, after)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	tree := seeded(t, s)
	part := tree.Machines[0].Assemblies[0].Parts[1]

	require.NoError(t, s.Rename(ctx, model.KindPart, part.ID, "  Relief valve "))
	tree, err := s.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Relief valve", tree.Machines[0].Assemblies[0].Parts[1].Name)

	assert.ErrorIs(t, s.Rename(ctx, model.KindPart, part.ID, "  "), mutate.ErrInvalidName)
	assert.ErrorIs(t, s.Rename(ctx, model.KindAssembly, "asm-missing", "x"), mutate.ErrNotFound)
}

func TestDelete_CascadesToItemsAndContent(t *testing.T) {
	ctx := context.Background()
	s, blobs := openTestStore(t)
	tree := seeded(t, s)
	asm := tree.Machines[0].Assemblies[0]
	pump := asm.Parts[0]

	items, err := s.Items(ctx, pump.ID)
	require.NoError(t, err)
	att, err := s.AddAttachment(ctx, items[0].ID, "dipstick.jpg", "", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	listed, err := blobs.List(ctx, "attachments/")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, s.Delete(ctx, model.KindAssembly, asm.ID))

	tree, err = s.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Frame"}, names(tree.Machines[0].Assemblies, func(a model.Assembly) string { return a.Name }))

	_, err = s.Items(ctx, pump.ID)
	assert.ErrorIs(t, err, mutate.ErrNotFound)
	_, err = s.Item(ctx, items[0].ID)
	assert.ErrorIs(t, err, mutate.ErrNotFound)
	_, err = s.Attachment(ctx, att.ID)
	assert.ErrorIs(t, err, mutate.ErrNotFound)

	listed, err = blobs.List(ctx, "attachments/")
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.ErrorIs(t, s.Delete(ctx, model.KindAssembly, asm.ID), mutate.ErrNotFound)
}

func TestAttachments_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, blobs := openTestStore(t)
	tree := seeded(t, s)
	items, err := s.Items(ctx, tree.Machines[0].Assemblies[0].Parts[0].ID)
	require.NoError(t, err)

	att, err := s.AddAttachment(ctx, items[0].ID, `C:\photos\oil.png`, "", bytes.NewReader([]byte("png-data")))
	require.NoError(t, err)
	assert.Equal(t, "oil.png", att.Filename)
	assert.Equal(t, "image/png", att.MimeType)
	assert.Equal(t, int64(8), att.Size)
	assert.Equal(t, "/api/attachments/"+att.ID+"/content", att.URL)
	assert.False(t, att.IsTemp)

	got, rc, err := s.OpenAttachment(ctx, att.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-data", string(body))
	assert.Equal(t, att.ID, got.ID)

	item, err := s.Item(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, item.Attachments, 1)
	assert.Equal(t, att.ID, item.Attachments[0].ID)

	_, err = s.PresignAttachment(ctx, att.ID, 0)
	assert.ErrorIs(t, err, blob.ErrUnsupported)

	require.NoError(t, s.DeleteAttachment(ctx, att.ID))
	assert.ErrorIs(t, s.DeleteAttachment(ctx, att.ID), mutate.ErrNotFound)
	listed, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestAddAttachment_Limits(t *testing.T) {
	ctx := context.Background()
	s, blobs := openTestStore(t, WithMaxAttachmentBytes(4))
	tree := seeded(t, s)
	items, err := s.Items(ctx, tree.Machines[0].Assemblies[0].Parts[0].ID)
	require.NoError(t, err)

	_, err = s.AddAttachment(ctx, items[0].ID, "big.bin", "", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.AddAttachment(ctx, items[0].ID, "empty.txt", "", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = s.AddAttachment(ctx, "itm-missing", "a.txt", "", strings.NewReader("a"))
	assert.ErrorIs(t, err, mutate.ErrNotFound)

	listed, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed)

	att, err := s.AddAttachment(ctx, items[0].ID, "ok.bin", "", strings.NewReader("1234"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", att.MimeType)
}

func TestCreate_AppendsAndValidates(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	tree := seeded(t, s)
	asm := tree.Machines[0].Assemblies[1]

	p, err := s.CreatePart(ctx, asm.ID, "Interlock")
	require.NoError(t, err)
	tree, err = s.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Guard", "Interlock"}, partNames(tree.Machines[0].Assemblies[1]))

	_, err = s.CreatePart(ctx, "asm-missing", "x")
	assert.ErrorIs(t, err, mutate.ErrNotFound)
	_, err = s.CreateAssembly(ctx, tree.Machines[0].ID, " ")
	assert.ErrorIs(t, err, mutate.ErrInvalidName)
	_, err = s.CreateItem(ctx, p.ID, model.ChecklistItem{Text: "Test", OptionType: "slider"})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"}, blob.NewMemory())
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `UPDATE parts SET rank = ? WHERE id = ?`
	assert.Equal(t, q, dialectSQLite.rebind(q))
	assert.Equal(t, `UPDATE parts SET rank = $1 WHERE id = $2`, dialectPostgres.rebind(q))
}

// TestPostgres runs the tree round trip against a live server when
// CHECKLIST_TEST_PG_DSN is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("CHECKLIST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CHECKLIST_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, config.DatabaseConfig{Driver: "postgres", DSN: dsn}, blob.NewMemory())
	require.NoError(t, err)
	defer s.Close()

	m, err := s.CreateMachine(ctx, "pg-test")
	require.NoError(t, err)
	defer func() { _ = s.Delete(ctx, model.KindMachine, m.ID) }()
	a, err := s.CreateAssembly(ctx, m.ID, "A")
	require.NoError(t, err)
	for _, n := range []string{"P1", "P2", "P3"} {
		_, err := s.CreatePart(ctx, a.ID, n)
		require.NoError(t, err)
	}
	require.NoError(t, s.Reorder(ctx, model.ReorderIntent{Type: model.IntentMovePart, ParentID: a.ID, FromIndex: 2, ToIndex: 0}))

	tree, err := s.Tree(ctx)
	require.NoError(t, err)
	for _, mm := range tree.Machines {
		if mm.ID == m.ID {
			assert.Equal(t, []string{"P3", "P1", "P2"}, partNames(mm.Assemblies[0]))
			return
		}
	}
	t.Fatalf("machine %s missing from tree", m.ID)
}
