// Package publish writes a machine's checklists as Markdown files.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
)

// ItemSource loads a part's checklist items.
type ItemSource interface {
	FetchItems(ctx context.Context, partID string) ([]model.ChecklistItem, error)
}

type WriteOptions struct {
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteMachine writes <toDir>/machines/<id>/index.md and one page per part
// under parts/. It stops at the first error.
func WriteMachine(ctx context.Context, t model.Tree, machineID string, src ItemSource, toDir string, opt WriteOptions) (WriteResult, error) {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return WriteResult{}, errors.New("missing machine id")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	var machine *model.Machine
	for i := range t.Machines {
		if t.Machines[i].ID == machineID {
			machine = &t.Machines[i]
			break
		}
	}
	if machine == nil {
		return WriteResult{}, mutate.NotFoundError{Kind: model.KindMachine, ID: machineID}
	}

	machineDir := filepath.Join(filepath.Clean(toDir), "machines", machineID)
	partsDir := filepath.Join(machineDir, "parts")
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexPath := filepath.Join(machineDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderMachineIndex(*machine)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	written := []string{indexPath}

	for _, a := range machine.Assemblies {
		for _, p := range a.Parts {
			items, err := src.FetchItems(ctx, p.ID)
			if err != nil {
				return WriteResult{Written: written}, fmt.Errorf("items for %s: %w", p.ID, err)
			}
			path := filepath.Join(partsDir, p.ID+".md")
			if err := writeFile(path, []byte(RenderPartMarkdown(*machine, a, p, items)), opt.Overwrite); err != nil {
				return WriteResult{Written: written}, err
			}
			written = append(written, path)
		}
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
