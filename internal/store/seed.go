package store

import (
	"context"
	"fmt"
	"io"

	"checklist-cli/internal/model"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML import format: a nested tree with checklist items on
// parts. Ids are assigned on import.
type Seed struct {
	Machines []SeedMachine `yaml:"machines"`
}

type SeedMachine struct {
	Name       string         `yaml:"name"`
	Assemblies []SeedAssembly `yaml:"assemblies"`
}

type SeedAssembly struct {
	Name  string     `yaml:"name"`
	Parts []SeedPart `yaml:"parts"`
}

type SeedPart struct {
	Name  string     `yaml:"name"`
	Items []SeedItem `yaml:"items"`
}

type SeedItem struct {
	Text        string           `yaml:"text"`
	Section     model.Section    `yaml:"section"`
	OptionType  model.OptionType `yaml:"optionType"`
	Description string           `yaml:"description"`
}

// SeedStats counts rows created by an import.
type SeedStats struct {
	Machines   int `json:"machines"`
	Assemblies int `json:"assemblies"`
	Parts      int `json:"parts"`
	Items      int `json:"items"`
}

func DecodeSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return Seed{}, nil
		}
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// Import appends the seed's machines after any existing ones. It stops at
// the first invalid row; rows created before that remain.
func (s *Store) Import(ctx context.Context, seed Seed) (SeedStats, error) {
	var st SeedStats
	for mi, sm := range seed.Machines {
		m, err := s.CreateMachine(ctx, sm.Name)
		if err != nil {
			return st, fmt.Errorf("machines[%d]: %w", mi, err)
		}
		st.Machines++
		for ai, sa := range sm.Assemblies {
			a, err := s.CreateAssembly(ctx, m.ID, sa.Name)
			if err != nil {
				return st, fmt.Errorf("machines[%d].assemblies[%d]: %w", mi, ai, err)
			}
			st.Assemblies++
			for pi, sp := range sa.Parts {
				p, err := s.CreatePart(ctx, a.ID, sp.Name)
				if err != nil {
					return st, fmt.Errorf("machines[%d].assemblies[%d].parts[%d]: %w", mi, ai, pi, err)
				}
				st.Parts++
				for ii, si := range sp.Items {
					_, err := s.CreateItem(ctx, p.ID, model.ChecklistItem{
						Text:        si.Text,
						Section:     si.Section,
						OptionType:  si.OptionType,
						Description: si.Description,
					})
					if err != nil {
						return st, fmt.Errorf("machines[%d].assemblies[%d].parts[%d].items[%d]: %w", mi, ai, pi, ii, err)
					}
					st.Items++
				}
			}
		}
	}
	s.log.Info("seed imported",
		zap.Int("machines", st.Machines),
		zap.Int("assemblies", st.Assemblies),
		zap.Int("parts", st.Parts),
		zap.Int("items", st.Items))
	return st, nil
}
