package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
	"checklist-cli/internal/remote/remotetest"
)

func plant() model.Tree {
	return model.Tree{Machines: []model.Machine{{
		ID:   "mch-1",
		Name: "Press 4",
		Assemblies: []model.Assembly{
			{ID: "asm-1", Name: "Hydraulics", Parts: []model.Part{{ID: "prt-1", Name: "Pump"}, {ID: "prt-2", Name: "Valve"}}},
			{ID: "asm-2", Name: "Frame", Parts: []model.Part{}},
		},
	}}}
}

func TestRenderPartMarkdown_GroupsBySection(t *testing.T) {
	t.Parallel()

	tree := plant()
	m := tree.Machines[0]
	md := RenderPartMarkdown(m, m.Assemblies[0], m.Assemblies[0].Parts[0], []model.ChecklistItem{
		{ID: "itm-1", Text: "Guard closes", Section: model.SectionSafety, OptionType: model.OptionCheckbox},
		{ID: "itm-2", Text: "Check oil level", Section: model.SectionInspection, OptionType: model.OptionPassFail, Description: "Use the dipstick."},
		{ID: "itm-3", Text: "Pressure", Section: model.SectionInspection, OptionType: model.OptionValue,
			Attachments: []model.Attachment{{ID: "att-1", Filename: "gauge.png", URL: "http://x/att-1"}, {ID: "tmp-1", Filename: "new.png", IsTemp: true}}},
	})

	for _, want := range []string{
		"# Pump",
		"_Press 4 › Hydraulics_",
		"- [ ] Check oil level _(pass / fail)_\n  Use the dipstick.",
		"  - [gauge.png](http://x/att-1)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "new.png") {
		t.Fatalf("pending uploads should not be published:\n%s", md)
	}
	if strings.Index(md, "## Inspection") > strings.Index(md, "## Safety") {
		t.Fatalf("sections out of order:\n%s", md)
	}
	if strings.Index(md, "Check oil level") > strings.Index(md, "Pressure") {
		t.Fatalf("items out of order:\n%s", md)
	}
}

func TestWriteMachine(t *testing.T) {
	t.Parallel()

	fake := remotetest.New()
	fake.Items["prt-1"] = []model.ChecklistItem{{ID: "itm-1", Text: "Check oil level", Section: model.SectionInspection}}
	dir := t.TempDir()

	res, err := WriteMachine(context.Background(), plant(), "mch-1", fake, dir, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteMachine: %v", err)
	}
	if len(res.Written) != 3 {
		t.Fatalf("written = %v", res.Written)
	}
	index, err := os.ReadFile(filepath.Join(dir, "machines", "mch-1", "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	for _, want := range []string{"## 1. Hydraulics", "2. [Valve](parts/prt-2.md)", "## 2. Frame\n\n_No parts._"} {
		if !strings.Contains(string(index), want) {
			t.Fatalf("index missing %q:\n%s", want, index)
		}
	}
	valve, err := os.ReadFile(filepath.Join(dir, "machines", "mch-1", "parts", "prt-2.md"))
	if err != nil || !strings.Contains(string(valve), "_No checklist items._") {
		t.Fatalf("valve page (err=%v):\n%s", err, valve)
	}

	if _, err := WriteMachine(context.Background(), plant(), "mch-1", fake, dir, WriteOptions{}); err == nil || !strings.Contains(err.Error(), "--overwrite") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if _, err := WriteMachine(context.Background(), plant(), "mch-1", fake, dir, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestWriteMachine_Errors(t *testing.T) {
	t.Parallel()

	fake := remotetest.New()
	if _, err := WriteMachine(context.Background(), plant(), "mch-x", fake, t.TempDir(), WriteOptions{}); !errors.Is(err, mutate.ErrNotFound) {
		t.Fatalf("unknown machine: %v", err)
	}
	if _, err := WriteMachine(context.Background(), plant(), "mch-1", fake, " ", WriteOptions{}); err == nil {
		t.Fatalf("expected missing --to error")
	}

	boom := errors.New("boom")
	fake.SetFail("FetchItems", boom)
	res, err := WriteMachine(context.Background(), plant(), "mch-1", fake, t.TempDir(), WriteOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Written) != 1 {
		t.Fatalf("only the index should be written, got %v", res.Written)
	}
}
