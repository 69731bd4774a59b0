package expand

import (
	"checklist-cli/internal/model"
	"checklist-cli/internal/reorder"
)

// Row is one displayed line of the tree.
type Row struct {
	Kind        model.Kind `json:"kind"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Depth       int        `json:"depth"`
	ContainerID string     `json:"containerId,omitempty"` // sortable container holding this row; empty for machines
	Index       int        `json:"index"`                 // position within ContainerID
	HasChildren bool       `json:"hasChildren"`
	Expanded    bool       `json:"expanded"`
}

// Visible flattens t into display rows, descending only into expanded nodes.
// Parts are always listed as leaves; their expansion shows checklist items,
// which are not part of the tree.
func Visible(t model.Tree, s State) []Row {
	var out []Row
	for mi, m := range t.Machines {
		out = append(out, Row{
			Kind:        model.KindMachine,
			ID:          m.ID,
			Name:        m.Name,
			Index:       mi,
			HasChildren: len(m.Assemblies) > 0,
			Expanded:    s.Expanded(m.ID),
		})
		if !s.Expanded(m.ID) {
			continue
		}
		for ai, a := range m.Assemblies {
			out = append(out, Row{
				Kind:        model.KindAssembly,
				ID:          a.ID,
				Name:        a.Name,
				Depth:       1,
				ContainerID: reorder.AssembliesContainer(m.ID),
				Index:       ai,
				HasChildren: len(a.Parts) > 0,
				Expanded:    s.Expanded(a.ID),
			})
			if !s.Expanded(a.ID) {
				continue
			}
			for pi, p := range a.Parts {
				out = append(out, Row{
					Kind:        model.KindPart,
					ID:          p.ID,
					Name:        p.Name,
					Depth:       2,
					ContainerID: reorder.PartsContainer(a.ID),
					Index:       pi,
					Expanded:    s.Expanded(p.ID),
				})
			}
		}
	}
	return out
}
