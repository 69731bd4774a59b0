package mutate

import (
	"fmt"

	"checklist-cli/internal/model"
)

// Op is a tree mutation captured as a value so it can be applied speculatively
// and replayed against another snapshot.
type Op interface {
	Apply(model.Tree) (model.Tree, error)
	String() string
}

type MoveOp struct {
	Intent model.ReorderIntent
}

func (o MoveOp) Apply(t model.Tree) (model.Tree, error) {
	switch o.Intent.Type {
	case model.IntentMoveAssembly:
		return MoveAssembly(t, o.Intent.ParentID, o.Intent.FromIndex, o.Intent.ToIndex)
	case model.IntentMovePart:
		return MovePart(t, o.Intent.ParentID, o.Intent.FromIndex, o.Intent.ToIndex)
	default:
		return t, fmt.Errorf("%w: unknown intent type %q", ErrInvalidIndex, o.Intent.Type)
	}
}

func (o MoveOp) String() string {
	return fmt.Sprintf("%s %s %d->%d", o.Intent.Type, o.Intent.ParentID, o.Intent.FromIndex, o.Intent.ToIndex)
}

type RenameOp struct {
	Kind model.Kind
	ID   string
	Name string
}

func (o RenameOp) Apply(t model.Tree) (model.Tree, error) { return Rename(t, o.Kind, o.ID, o.Name) }

func (o RenameOp) String() string { return fmt.Sprintf("rename %s %s", o.Kind, o.ID) }

type RemoveOp struct {
	Kind model.Kind
	ID   string
}

func (o RemoveOp) Apply(t model.Tree) (model.Tree, error) { return Remove(t, o.Kind, o.ID) }

func (o RemoveOp) String() string { return fmt.Sprintf("remove %s %s", o.Kind, o.ID) }
