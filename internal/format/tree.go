package format

import (
	"fmt"
	"io"
	"strings"

	"checklist-cli/internal/model"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles used by the text renderers. Build them with NewStyles so colour
// output follows the destination writer.
type Styles struct {
	Machine  lipgloss.Style
	Assembly lipgloss.Style
	Part     lipgloss.Style
	ID       lipgloss.Style
	Index    lipgloss.Style
	Pending  lipgloss.Style
}

// NewStyles returns styles for w. With color false (or a non-terminal w)
// output carries no escape sequences.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return StylesFor(r)
}

// StylesFor builds the styles on an existing renderer.
func StylesFor(r *lipgloss.Renderer) Styles {
	muted := lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	return Styles{
		Machine:  r.NewStyle().Bold(true),
		Assembly: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "27", Dark: "62"}),
		Part:     r.NewStyle(),
		ID:       r.NewStyle().Foreground(muted),
		Index:    r.NewStyle().Foreground(muted),
		Pending:  r.NewStyle().Italic(true).Foreground(muted),
	}
}

// RenderTree draws the hierarchy with box-drawing guides and sibling indices,
// which are the indices the move commands take.
func RenderTree(t model.Tree, st Styles) string {
	var b strings.Builder
	if len(t.Machines) == 0 {
		b.WriteString(st.ID.Render("(no machines)"))
		b.WriteByte('\n')
		return b.String()
	}
	for _, m := range t.Machines {
		fmt.Fprintf(&b, "%s %s\n", st.Machine.Render(m.Name), st.ID.Render(m.ID))
		for ai, a := range m.Assemblies {
			lastA := ai == len(m.Assemblies)-1
			fmt.Fprintf(&b, "%s%s %s %s\n", guide(lastA), st.Index.Render(fmt.Sprintf("%d.", ai)), st.Assembly.Render(a.Name), st.ID.Render(a.ID))
			stem := "│   "
			if lastA {
				stem = "    "
			}
			for pi, p := range a.Parts {
				fmt.Fprintf(&b, "%s%s%s %s %s\n", stem, guide(pi == len(a.Parts)-1), st.Index.Render(fmt.Sprintf("%d.", pi)), st.Part.Render(p.Name), st.ID.Render(p.ID))
			}
		}
	}
	return b.String()
}

func guide(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

// RenderItems lists checklist items one per line with their attachment count.
func RenderItems(items []model.ChecklistItem, st Styles) string {
	if len(items) == 0 {
		return st.ID.Render("(no items)") + "\n"
	}
	var b strings.Builder
	for i, it := range items {
		line := fmt.Sprintf("%s [%s/%s] %s %s", st.Index.Render(fmt.Sprintf("%d.", i)), it.Section, it.OptionType, it.Text, st.ID.Render(it.ID))
		if n := len(it.Attachments); n > 0 {
			line += st.ID.Render(fmt.Sprintf(" (%d attachments)", n))
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// ItemMarkdown builds a markdown document for one checklist item.
func ItemMarkdown(it model.ChecklistItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", it.Text)
	fmt.Fprintf(&b, "- **Section:** %s\n- **Response:** %s\n- **ID:** `%s`\n\n", it.Section, it.OptionType, it.ID)
	if d := strings.TrimSpace(it.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	if len(it.Attachments) > 0 {
		b.WriteString("## Attachments\n\n")
		for _, a := range it.Attachments {
			if a.IsTemp {
				fmt.Fprintf(&b, "- %s _(uploading)_\n", a.Filename)
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s) `%s`\n", a.Filename, a.URL, a.MimeType)
		}
	}
	return b.String()
}

// RenderMarkdown renders md for a terminal with a fixed glamour style
// ("dark", "light", "notty" ...). Rendering errors fall back to the source.
func RenderMarkdown(md string, width int, style string) string {
	if width < 20 {
		width = 20
	}
	if style == "" {
		style = "notty"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
