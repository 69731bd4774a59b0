package mutate

import (
	"fmt"
	"strings"

	"checklist-cli/internal/model"
)

// Every operation in this file treats its input tree as immutable. Only the
// path from the root to the edited node is copied; untouched machines,
// assemblies and part lists keep sharing their backing arrays with the input.
// On error the input tree is returned as-is.

// MoveAssembly removes the assembly at from within machineID's assembly list
// and reinserts it at to (an index into the final list).
func MoveAssembly(t model.Tree, machineID string, from, to int) (model.Tree, error) {
	machineID = strings.TrimSpace(machineID)
	mi := machineIndex(t, machineID)
	if mi < 0 {
		return t, fmt.Errorf("%w: %w", ErrInvalidIndex, NotFoundError{Kind: model.KindMachine, ID: machineID})
	}
	asms := t.Machines[mi].Assemblies
	if !inRange(from, len(asms)) || !inRange(to, len(asms)) {
		return t, IndexError{ParentID: machineID, From: from, To: to, Len: len(asms)}
	}
	if from == to {
		return t, nil
	}
	out := cloneMachines(t)
	out.Machines[mi].Assemblies = moveElem(asms, from, to)
	return out, nil
}

// MovePart is MoveAssembly scoped to the part list of one assembly.
func MovePart(t model.Tree, assemblyID string, from, to int) (model.Tree, error) {
	assemblyID = strings.TrimSpace(assemblyID)
	mi, ai := assemblyIndex(t, assemblyID)
	if mi < 0 {
		return t, fmt.Errorf("%w: %w", ErrInvalidIndex, NotFoundError{Kind: model.KindAssembly, ID: assemblyID})
	}
	parts := t.Machines[mi].Assemblies[ai].Parts
	if !inRange(from, len(parts)) || !inRange(to, len(parts)) {
		return t, IndexError{ParentID: assemblyID, From: from, To: to, Len: len(parts)}
	}
	if from == to {
		return t, nil
	}
	out := cloneAssemblyPath(t, mi)
	out.Machines[mi].Assemblies[ai].Parts = moveElem(parts, from, to)
	return out, nil
}

// Rename sets the name of an assembly or part. The new name is trimmed.
func Rename(t model.Tree, kind model.Kind, id, name string) (model.Tree, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if name == "" {
		return t, ErrInvalidName
	}
	switch kind {
	case model.KindAssembly:
		mi, ai := assemblyIndex(t, id)
		if mi < 0 {
			return t, NotFoundError{Kind: kind, ID: id}
		}
		if t.Machines[mi].Assemblies[ai].Name == name {
			return t, nil
		}
		out := cloneAssemblyPath(t, mi)
		out.Machines[mi].Assemblies[ai].Name = name
		return out, nil
	case model.KindPart:
		mi, ai, pi := partIndex(t, id)
		if mi < 0 {
			return t, NotFoundError{Kind: kind, ID: id}
		}
		if t.Machines[mi].Assemblies[ai].Parts[pi].Name == name {
			return t, nil
		}
		out := clonePartPath(t, mi, ai)
		out.Machines[mi].Assemblies[ai].Parts[pi].Name = name
		return out, nil
	default:
		return t, NotFoundError{Kind: kind, ID: id}
	}
}

// Remove deletes an assembly (with all of its parts) or a single part.
func Remove(t model.Tree, kind model.Kind, id string) (model.Tree, error) {
	id = strings.TrimSpace(id)
	switch kind {
	case model.KindAssembly:
		mi, ai := assemblyIndex(t, id)
		if mi < 0 {
			return t, NotFoundError{Kind: kind, ID: id}
		}
		out := cloneMachines(t)
		out.Machines[mi].Assemblies = removeElem(t.Machines[mi].Assemblies, ai)
		return out, nil
	case model.KindPart:
		mi, ai, pi := partIndex(t, id)
		if mi < 0 {
			return t, NotFoundError{Kind: kind, ID: id}
		}
		out := cloneAssemblyPath(t, mi)
		out.Machines[mi].Assemblies[ai].Parts = removeElem(t.Machines[mi].Assemblies[ai].Parts, pi)
		return out, nil
	default:
		return t, NotFoundError{Kind: kind, ID: id}
	}
}

// InsertAssembly inserts a at index within machineID's assembly list.
// index == len(list) appends.
func InsertAssembly(t model.Tree, machineID string, index int, a model.Assembly) (model.Tree, error) {
	machineID = strings.TrimSpace(machineID)
	mi := machineIndex(t, machineID)
	if mi < 0 {
		return t, NotFoundError{Kind: model.KindMachine, ID: machineID}
	}
	if strings.TrimSpace(a.Name) == "" {
		return t, ErrInvalidName
	}
	if _, _, ok := FindAssembly(t, a.ID); ok || strings.TrimSpace(a.ID) == "" {
		return t, fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
	}
	asms := t.Machines[mi].Assemblies
	if index < 0 || index > len(asms) {
		return t, IndexError{ParentID: machineID, From: index, To: index, Len: len(asms)}
	}
	a.Parts = append([]model.Part(nil), a.Parts...)
	out := cloneMachines(t)
	out.Machines[mi].Assemblies = insertElem(asms, index, a)
	return out, nil
}

// InsertPart inserts p at index within assemblyID's part list.
func InsertPart(t model.Tree, assemblyID string, index int, p model.Part) (model.Tree, error) {
	assemblyID = strings.TrimSpace(assemblyID)
	mi, ai := assemblyIndex(t, assemblyID)
	if mi < 0 {
		return t, NotFoundError{Kind: model.KindAssembly, ID: assemblyID}
	}
	if strings.TrimSpace(p.Name) == "" {
		return t, ErrInvalidName
	}
	if _, _, ok := FindPart(t, p.ID); ok || strings.TrimSpace(p.ID) == "" {
		return t, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	parts := t.Machines[mi].Assemblies[ai].Parts
	if index < 0 || index > len(parts) {
		return t, IndexError{ParentID: assemblyID, From: index, To: index, Len: len(parts)}
	}
	out := cloneAssemblyPath(t, mi)
	out.Machines[mi].Assemblies[ai].Parts = insertElem(parts, index, p)
	return out, nil
}

func inRange(i, n int) bool { return i >= 0 && i < n }

func cloneMachines(t model.Tree) model.Tree {
	return model.Tree{Machines: append([]model.Machine(nil), t.Machines...)}
}

func cloneAssemblyPath(t model.Tree, mi int) model.Tree {
	out := cloneMachines(t)
	out.Machines[mi].Assemblies = append([]model.Assembly(nil), t.Machines[mi].Assemblies...)
	return out
}

func clonePartPath(t model.Tree, mi, ai int) model.Tree {
	out := cloneAssemblyPath(t, mi)
	out.Machines[mi].Assemblies[ai].Parts = append([]model.Part(nil), t.Machines[mi].Assemblies[ai].Parts...)
	return out
}

func moveElem[T any](in []T, from, to int) []T {
	v := in[from]
	out := removeElem(in, from)
	return insertElem(out, to, v)
}

func removeElem[T any](in []T, i int) []T {
	out := make([]T, 0, len(in))
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}

func insertElem[T any](in []T, i int, v T) []T {
	out := make([]T, 0, len(in)+1)
	out = append(out, in[:i]...)
	out = append(out, v)
	return append(out, in[i:]...)
}
