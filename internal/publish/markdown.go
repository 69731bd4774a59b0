package publish

import (
	"bytes"
	"fmt"
	"strings"

	"checklist-cli/internal/model"
)

var sectionOrder = []model.Section{model.SectionInspection, model.SectionMaintenance, model.SectionSafety}

func sectionTitle(s model.Section) string {
	if s == "" {
		return "Other"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// RenderMachineIndex lists the machine's assemblies and parts in display
// order, linking each part to its page.
func RenderMachineIndex(m model.Machine) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", strings.TrimSpace(m.Name))
	if len(m.Assemblies) == 0 {
		buf.WriteString("_No assemblies._\n")
		return buf.String()
	}
	for ai, a := range m.Assemblies {
		fmt.Fprintf(&buf, "## %d. %s\n\n", ai+1, strings.TrimSpace(a.Name))
		if len(a.Parts) == 0 {
			buf.WriteString("_No parts._\n\n")
			continue
		}
		for pi, p := range a.Parts {
			fmt.Fprintf(&buf, "%d. [%s](parts/%s.md)\n", pi+1, strings.TrimSpace(p.Name), p.ID)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// RenderPartMarkdown is a printable checklist for one part, grouped by
// section. Items keep their order within a section.
func RenderPartMarkdown(machine model.Machine, asm model.Assembly, p model.Part, items []model.ChecklistItem) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(p.Name))
	writeLn("")
	writeLn(fmt.Sprintf("_%s › %s_", strings.TrimSpace(machine.Name), strings.TrimSpace(asm.Name)))
	writeLn("")
	if len(items) == 0 {
		writeLn("_No checklist items._")
		return buf.String()
	}

	bySection := map[model.Section][]model.ChecklistItem{}
	var extra []model.Section
	for _, it := range items {
		if _, seen := bySection[it.Section]; !seen && !knownSection(it.Section) {
			extra = append(extra, it.Section)
		}
		bySection[it.Section] = append(bySection[it.Section], it)
	}
	for _, sec := range append(append([]model.Section{}, sectionOrder...), extra...) {
		group := bySection[sec]
		if len(group) == 0 {
			continue
		}
		writeLn("## " + sectionTitle(sec))
		writeLn("")
		for _, it := range group {
			writeLn(fmt.Sprintf("- [ ] %s%s", strings.TrimSpace(it.Text), responseHint(it.OptionType)))
			if d := strings.TrimSpace(it.Description); d != "" {
				for _, line := range strings.Split(d, "\n") {
					writeLn("  " + line)
				}
			}
			for _, a := range it.Attachments {
				if a.IsTemp {
					continue
				}
				writeLn(fmt.Sprintf("  - [%s](%s)", a.Filename, a.URL))
			}
		}
		writeLn("")
	}
	return buf.String()
}

func knownSection(s model.Section) bool {
	for _, k := range sectionOrder {
		if k == s {
			return true
		}
	}
	return false
}

func responseHint(o model.OptionType) string {
	switch o {
	case model.OptionPassFail:
		return " _(pass / fail)_"
	case model.OptionValue:
		return " _(value: ______)_"
	default:
		return ""
	}
}
