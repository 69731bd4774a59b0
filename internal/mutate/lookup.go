package mutate

import (
	"strings"

	"checklist-cli/internal/model"
)

func machineIndex(t model.Tree, id string) int {
	for i := range t.Machines {
		if t.Machines[i].ID == id {
			return i
		}
	}
	return -1
}

func assemblyIndex(t model.Tree, id string) (mi, ai int) {
	for mi := range t.Machines {
		for ai := range t.Machines[mi].Assemblies {
			if t.Machines[mi].Assemblies[ai].ID == id {
				return mi, ai
			}
		}
	}
	return -1, -1
}

func partIndex(t model.Tree, id string) (mi, ai, pi int) {
	for mi := range t.Machines {
		for ai := range t.Machines[mi].Assemblies {
			for pi := range t.Machines[mi].Assemblies[ai].Parts {
				if t.Machines[mi].Assemblies[ai].Parts[pi].ID == id {
					return mi, ai, pi
				}
			}
		}
	}
	return -1, -1, -1
}

// FindMachine returns the machine with id.
func FindMachine(t model.Tree, id string) (model.Machine, bool) {
	mi := machineIndex(t, strings.TrimSpace(id))
	if mi < 0 {
		return model.Machine{}, false
	}
	return t.Machines[mi], true
}

// FindAssembly returns the assembly with id and the id of its owning machine.
func FindAssembly(t model.Tree, id string) (model.Assembly, string, bool) {
	mi, ai := assemblyIndex(t, strings.TrimSpace(id))
	if mi < 0 {
		return model.Assembly{}, "", false
	}
	return t.Machines[mi].Assemblies[ai], t.Machines[mi].ID, true
}

// FindPart returns the part with id and the id of its owning assembly.
func FindPart(t model.Tree, id string) (model.Part, string, bool) {
	mi, ai, pi := partIndex(t, strings.TrimSpace(id))
	if mi < 0 {
		return model.Part{}, "", false
	}
	a := t.Machines[mi].Assemblies[ai]
	return a.Parts[pi], a.ID, true
}

// OwnerOfPart returns the owning machine and assembly ids of a part.
func OwnerOfPart(t model.Tree, partID string) (machineID, assemblyID string, ok bool) {
	mi, ai, _ := partIndex(t, strings.TrimSpace(partID))
	if mi < 0 {
		return "", "", false
	}
	return t.Machines[mi].ID, t.Machines[mi].Assemblies[ai].ID, true
}

// SubtreePartIDs lists the part ids that Remove(t, kind, id) would drop.
func SubtreePartIDs(t model.Tree, kind model.Kind, id string) []string {
	id = strings.TrimSpace(id)
	switch kind {
	case model.KindAssembly:
		a, _, ok := FindAssembly(t, id)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(a.Parts))
		for _, p := range a.Parts {
			out = append(out, p.ID)
		}
		return out
	case model.KindPart:
		if _, _, ok := FindPart(t, id); ok {
			return []string{id}
		}
	}
	return nil
}

// HasPart reports whether any assembly in t lists partID.
func HasPart(t model.Tree, partID string) bool {
	mi, _, _ := partIndex(t, strings.TrimSpace(partID))
	return mi >= 0
}
