package mutate

import (
	"errors"
	"testing"

	"checklist-cli/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fixtureTree() model.Tree {
	return model.Tree{Machines: []model.Machine{
		{
			ID:   "M1",
			Name: "Press",
			Assemblies: []model.Assembly{
				{ID: "A1", Name: "Hydraulics", Parts: []model.Part{{ID: "P1", Name: "Pump"}, {ID: "P2", Name: "Valve"}}},
				{ID: "A2", Name: "Frame", Parts: []model.Part{{ID: "P3", Name: "Bolt"}}},
				{ID: "A3", Name: "Controls"},
			},
		},
		{
			ID:   "M2",
			Name: "Lathe",
			Assemblies: []model.Assembly{
				{ID: "A4", Name: "Spindle", Parts: []model.Part{{ID: "P4", Name: "Bearing"}}},
			},
		},
	}}
}

func assemblyIDs(t model.Tree, machineID string) []string {
	m, _ := FindMachine(t, machineID)
	out := []string{}
	for _, a := range m.Assemblies {
		out = append(out, a.ID)
	}
	return out
}

func partIDs(t model.Tree, assemblyID string) []string {
	a, _, _ := FindAssembly(t, assemblyID)
	out := []string{}
	for _, p := range a.Parts {
		out = append(out, p.ID)
	}
	return out
}

func TestMoveAssembly_FirstToLast(t *testing.T) {
	tree := fixtureTree()
	got, err := MoveAssembly(tree, "M1", 0, 2)
	if err != nil {
		t.Fatalf("MoveAssembly: %v", err)
	}
	if diff := cmp.Diff([]string{"A2", "A3", "A1"}, assemblyIDs(got, "M1")); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	// Input snapshot is untouched.
	if diff := cmp.Diff([]string{"A1", "A2", "A3"}, assemblyIDs(tree, "M1")); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestMoveAssembly_SameIndexIsNoop(t *testing.T) {
	tree := fixtureTree()
	for i := 0; i < 3; i++ {
		got, err := MoveAssembly(tree, "M1", i, i)
		if err != nil {
			t.Fatalf("MoveAssembly(%d,%d): %v", i, i, err)
		}
		if diff := cmp.Diff(tree, got); diff != "" {
			t.Fatalf("expected structurally equal tree (-want +got):\n%s", diff)
		}
	}
}

func TestMoveAssembly_RoundTrip(t *testing.T) {
	tree := fixtureTree()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			moved, err := MoveAssembly(tree, "M1", i, j)
			if err != nil {
				t.Fatalf("move %d->%d: %v", i, j, err)
			}
			back, err := MoveAssembly(moved, "M1", j, i)
			if err != nil {
				t.Fatalf("move back %d->%d: %v", j, i, err)
			}
			if diff := cmp.Diff(tree, back, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("round trip %d<->%d mismatch (-want +got):\n%s", i, j, diff)
			}
		}
	}
}

func TestMoveAssembly_Bounds(t *testing.T) {
	tree := fixtureTree()
	cases := []struct{ from, to int }{
		{-1, 0}, {0, -1}, {3, 0}, {0, 3}, {10, 10},
	}
	for _, tc := range cases {
		got, err := MoveAssembly(tree, "M1", tc.from, tc.to)
		if !errors.Is(err, ErrInvalidIndex) {
			t.Fatalf("move %d->%d: expected ErrInvalidIndex, got %v", tc.from, tc.to, err)
		}
		if diff := cmp.Diff(tree, got); diff != "" {
			t.Fatalf("expected unchanged tree on error (-want +got):\n%s", diff)
		}
	}

	if _, err := MoveAssembly(tree, "nope", 0, 1); !errors.Is(err, ErrInvalidIndex) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown machine: expected ErrInvalidIndex+ErrNotFound, got %v", err)
	}
}

func TestMoveAssembly_PreservesSiblingIdentity(t *testing.T) {
	tree := fixtureTree()
	got, err := MoveAssembly(tree, "M1", 0, 2)
	if err != nil {
		t.Fatalf("MoveAssembly: %v", err)
	}
	// The untouched machine shares its backing array with the input.
	if &got.Machines[1].Assemblies[0] != &tree.Machines[1].Assemblies[0] {
		t.Fatalf("expected untouched machine to keep its assemblies slice")
	}
	// Moved assemblies keep their part slices.
	if &got.Machines[0].Assemblies[2].Parts[0] != &tree.Machines[0].Assemblies[0].Parts[0] {
		t.Fatalf("expected moved assembly to keep its parts slice")
	}
}

func TestMovePart_Swap(t *testing.T) {
	tree := fixtureTree()
	got, err := MovePart(tree, "A1", 0, 1)
	if err != nil {
		t.Fatalf("MovePart: %v", err)
	}
	if diff := cmp.Diff([]string{"P2", "P1"}, partIDs(got, "A1")); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"P1", "P2"}, partIDs(tree, "A1")); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
	if _, err := MovePart(tree, "A1", 0, 2); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if _, err := MovePart(tree, "A9", 0, 0); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("unknown assembly: expected ErrInvalidIndex, got %v", err)
	}
}

func TestRename(t *testing.T) {
	tree := fixtureTree()

	got, err := Rename(tree, model.KindAssembly, "A2", "  Chassis ")
	if err != nil {
		t.Fatalf("Rename assembly: %v", err)
	}
	if a, _, _ := FindAssembly(got, "A2"); a.Name != "Chassis" {
		t.Fatalf("expected trimmed name, got %q", a.Name)
	}
	if a, _, _ := FindAssembly(tree, "A2"); a.Name != "Frame" {
		t.Fatalf("input mutated: %q", a.Name)
	}

	got, err = Rename(tree, model.KindPart, "P4", "Roller bearing")
	if err != nil {
		t.Fatalf("Rename part: %v", err)
	}
	if p, _, _ := FindPart(got, "P4"); p.Name != "Roller bearing" {
		t.Fatalf("unexpected part name %q", p.Name)
	}

	if _, err := Rename(tree, model.KindPart, "P4", " \t "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	// Ids are namespaced by kind.
	if _, err := Rename(tree, model.KindPart, "A1", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nf NotFoundError
	if _, err := Rename(tree, model.KindAssembly, "zzz", "x"); !errors.As(err, &nf) || nf.ID != "zzz" {
		t.Fatalf("expected NotFoundError for zzz, got %v", err)
	}
}

func TestRemove_AssemblyCascadesParts(t *testing.T) {
	tree := fixtureTree()
	drop := SubtreePartIDs(tree, model.KindAssembly, "A1")
	if diff := cmp.Diff([]string{"P1", "P2"}, drop); diff != "" {
		t.Fatalf("subtree mismatch (-want +got):\n%s", diff)
	}

	got, err := Remove(tree, model.KindAssembly, "A1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if diff := cmp.Diff([]string{"A2", "A3"}, assemblyIDs(got, "M1")); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	for _, id := range drop {
		if HasPart(got, id) {
			t.Fatalf("part %s still reachable after cascade delete", id)
		}
	}
	if !HasPart(tree, "P1") {
		t.Fatalf("input mutated")
	}
}

func TestRemove_Part(t *testing.T) {
	tree := fixtureTree()
	got, err := Remove(tree, model.KindPart, "P1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if diff := cmp.Diff([]string{"P2"}, partIDs(got, "A1")); diff != "" {
		t.Fatalf("parts mismatch (-want +got):\n%s", diff)
	}
	if _, err := Remove(got, model.KindPart, "P1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestInsert(t *testing.T) {
	tree := fixtureTree()
	got, err := InsertAssembly(tree, "M2", 0, model.Assembly{ID: "A5", Name: "Tailstock"})
	if err != nil {
		t.Fatalf("InsertAssembly: %v", err)
	}
	if diff := cmp.Diff([]string{"A5", "A4"}, assemblyIDs(got, "M2")); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if _, err := InsertAssembly(got, "M1", 0, model.Assembly{ID: "A5", Name: "dup"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	got, err = InsertPart(got, "A5", 0, model.Part{ID: "P9", Name: "Quill"})
	if err != nil {
		t.Fatalf("InsertPart: %v", err)
	}
	if m, a, ok := OwnerOfPart(got, "P9"); !ok || m != "M2" || a != "A5" {
		t.Fatalf("unexpected owner %s/%s ok=%v", m, a, ok)
	}
	if _, err := InsertPart(got, "A5", 5, model.Part{ID: "P10", Name: "x"}); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestOps_ApplyMatchesFunctions(t *testing.T) {
	tree := fixtureTree()
	op := MoveOp{Intent: model.ReorderIntent{Type: model.IntentMovePart, ParentID: "A1", FromIndex: 0, ToIndex: 1}}
	got, err := op.Apply(tree)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want, _ := MovePart(tree, "A1", 0, 1)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("op/function mismatch (-want +got):\n%s", diff)
	}

	if _, err := (MoveOp{Intent: model.ReorderIntent{Type: "bogus"}}).Apply(tree); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex for unknown intent, got %v", err)
	}
}
