package tui

import (
	"fmt"
	"io"
	"strings"

	"checklist-cli/internal/expand"
	"checklist-cli/internal/model"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

type rowItem struct {
	expand.Row
}

func (i rowItem) FilterValue() string { return i.Name }

// rowDelegate draws one tree row per line. openPart marks the part whose
// items are shown in the side panel.
type rowDelegate struct {
	st       styles
	openPart string
}

func (d rowDelegate) Height() int                             { return 1 }
func (d rowDelegate) Spacing() int                            { return 0 }
func (d rowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(rowItem)
	if !ok {
		return
	}
	contentW := m.Width()
	if contentW < 4 {
		return
	}

	marker := "  "
	switch {
	case it.HasChildren && it.Expanded:
		marker = "▾ "
	case it.HasChildren:
		marker = "▸ "
	case it.Kind == model.KindPart && it.ID == d.openPart:
		marker = "• "
	}
	line := strings.Repeat("  ", it.Depth) + marker + it.Name

	if w := xansi.StringWidth(line); w < contentW {
		line += strings.Repeat(" ", contentW-w)
	} else if w > contentW {
		line = xansi.Truncate(line, contentW, "…")
	}

	style := d.st.part
	switch it.Kind {
	case model.KindMachine:
		style = d.st.machine
	case model.KindAssembly:
		style = d.st.assembly
	}
	if index == m.Index() {
		style = d.st.selected
	}
	fmt.Fprint(w, style.Render(line))
}
