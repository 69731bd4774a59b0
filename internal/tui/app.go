package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checklist-cli/internal/expand"
	"checklist-cli/internal/format"
	"checklist-cli/internal/logging"
	"checklist-cli/internal/model"
	"checklist-cli/internal/reorder"
	"checklist-cli/internal/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
)

var (
	errMachineMove   = errors.New("machines keep their order")
	errMachineRename = errors.New("machines cannot be renamed here")
)

// footerLines is the space under the list: status, input and help.
const footerLines = 3

type (
	changedMsg struct{}
	loadedMsg  struct{ err error }
	itemsMsg   struct {
		partID string
		err    error
	}
	persistedMsg struct {
		label string
		err   error
	}
)

type appModel struct {
	ctx     context.Context
	sess    *session.Session
	log     *zap.Logger
	changes <-chan struct{}

	keys   keyMap
	help   help.Model
	st     styles
	itemSt format.Styles
	list   list.Model
	input  textinput.Model

	renaming *expand.Row

	width  int
	height int
	loaded bool

	itemsPart string
	status    string
	statusErr bool
}

func newAppModel(ctx context.Context, sess *session.Session, changes <-chan struct{}, r *lipgloss.Renderer, log *zap.Logger) appModel {
	st := newStyles(r)
	m := appModel{
		ctx:     ctx,
		sess:    sess,
		log:     logging.OrNop(log),
		changes: changes,
		keys:    defaultKeyMap(),
		help:    help.New(),
		st:      st,
		itemSt:  format.StylesFor(r),
		input:   textinput.New(),
		width:   80,
		height:  24,
	}
	m.input.Prompt = "name: "
	m.input.CharLimit = 200

	m.list = list.New(nil, rowDelegate{st: st}, m.width, m.height-footerLines)
	m.list.SetShowTitle(false)
	m.list.SetShowStatusBar(false)
	m.list.SetShowHelp(false)
	m.list.SetFilteringEnabled(false)
	m.list.DisableQuitKeybindings()
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.load(), waitForChange(m.changes))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m appModel) load() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg { return loadedMsg{err: sess.Load(ctx)} }
}

func (m appModel) loadItems(partID string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		_, err := sess.LoadItems(ctx, partID)
		return itemsMsg{partID: partID, err: err}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.setError("load", msg.err)
			return m, nil
		}
		m.loaded = true
		m.refresh()
		m.setStatus(fmt.Sprintf("%d machines", len(m.sess.Tree().Machines)))
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case itemsMsg:
		if msg.err != nil {
			m.setError("items", msg.err)
			return m, nil
		}
		m.itemsPart = msg.partID
		m.refresh()
		return m, nil

	case persistedMsg:
		if msg.err != nil {
			m.setError(msg.label, msg.err)
		} else if m.sess.Pending() == 0 {
			m.setStatus("saved")
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.renaming != nil {
			return m.updateRename(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.list.CursorUp()
	case key.Matches(msg, m.keys.Down):
		m.list.CursorDown()
	case key.Matches(msg, m.keys.Toggle):
		cmd := m.toggle()
		return m, cmd
	case key.Matches(msg, m.keys.Collapse):
		m.collapse()
	case key.Matches(msg, m.keys.MoveUp):
		cmd := m.move(-1)
		return m, cmd
	case key.Matches(msg, m.keys.MoveDown):
		cmd := m.move(1)
		return m, cmd
	case key.Matches(msg, m.keys.Rename):
		m.startRename()
	case key.Matches(msg, m.keys.CollapseAll):
		m.itemsPart = ""
		m.sess.CollapseAll()
		m.refresh()
	case key.Matches(msg, m.keys.Reload):
		m.setStatus("reloading")
		cmd := m.load()
		return m, cmd
	}
	return m, nil
}

func (m *appModel) selected() (expand.Row, bool) {
	it, ok := m.list.SelectedItem().(rowItem)
	if !ok {
		return expand.Row{}, false
	}
	return it.Row, true
}

func (m *appModel) toggle() tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	if r.Kind == model.KindPart {
		if m.itemsPart == r.ID {
			m.itemsPart = ""
			m.refresh()
			return nil
		}
		return m.loadItems(r.ID)
	}
	m.sess.Toggle(r.ID)
	m.refresh()
	return nil
}

// collapse closes the selected row, or jumps to its parent when it is
// already closed.
func (m *appModel) collapse() {
	r, ok := m.selected()
	if !ok {
		return
	}
	switch {
	case r.Kind == model.KindPart && m.itemsPart == r.ID:
		m.itemsPart = ""
		m.refresh()
	case r.Expanded:
		m.sess.Toggle(r.ID)
		m.refresh()
	default:
		if parent := m.sess.Expansion().Levels().Parent(r.ID); parent != "" {
			m.selectID(parent)
		}
	}
}

// move shifts the selected row one place among its siblings. The drop is
// applied before move returns; the returned command reports persistence.
func (m *appModel) move(delta int) tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	if r.ContainerID == "" {
		m.setError("move", errMachineMove)
		return nil
	}
	to := r.Index + delta
	if to < 0 || to >= m.siblings(r.ContainerID) {
		return nil
	}

	eng := m.sess.Reorder()
	if err := eng.DragStart(reorder.DragStart{Source: reorder.Target{ContainerID: r.ContainerID, Index: r.Index}}); err != nil {
		m.setError("move", err)
		return nil
	}
	_, _, done, err := eng.Drop(m.ctx, reorder.DragEnd{Over: &reorder.Target{ContainerID: r.ContainerID, Index: to}})
	m.refresh()
	if err != nil {
		m.setError("move", err)
		return nil
	}
	m.selectID(r.ID)
	if done == nil {
		return nil
	}
	m.setStatus("saving…")
	label := "move " + r.Name
	return func() tea.Msg { return persistedMsg{label: label, err: <-done} }
}

func (m *appModel) siblings(containerID string) int {
	n := 0
	for _, it := range m.list.Items() {
		if r, ok := it.(rowItem); ok && r.ContainerID == containerID {
			n++
		}
	}
	return n
}

func (m *appModel) startRename() {
	r, ok := m.selected()
	if !ok {
		return
	}
	if r.Kind == model.KindMachine {
		m.setError("rename", errMachineRename)
		return
	}
	m.renaming = &r
	m.input.SetValue(r.Name)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m appModel) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.renaming = nil
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		r, name := *m.renaming, m.input.Value()
		m.renaming = nil
		m.input.Blur()
		sess, ctx := m.sess, m.ctx
		label := "rename " + r.Name
		m.setStatus("saving…")
		return m, func() tea.Msg {
			return persistedMsg{label: label, err: sess.Rename(ctx, r.Kind, r.ID, name)}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh rebuilds the rows from the session, keeping the cursor on the
// same node when it is still visible.
func (m *appModel) refresh() {
	cur, hadCur := m.selected()
	rows := m.sess.Rows()
	items := make([]list.Item, len(rows))
	for i, r := range rows {
		items[i] = rowItem{Row: r}
	}
	if m.itemsPart != "" && !containsPart(rows, m.itemsPart) {
		m.itemsPart = ""
	}
	m.list.SetDelegate(rowDelegate{st: m.st, openPart: m.itemsPart})
	m.list.SetItems(items)
	m.resize()
	if hadCur {
		m.selectID(cur.ID)
	}
}

func containsPart(rows []expand.Row, id string) bool {
	for _, r := range rows {
		if r.Kind == model.KindPart && r.ID == id {
			return true
		}
	}
	return false
}

func (m *appModel) selectID(id string) {
	for i, it := range m.list.Items() {
		if r, ok := it.(rowItem); ok && r.ID == id {
			m.list.Select(i)
			return
		}
	}
}

func (m *appModel) resize() {
	w := m.width
	if m.itemsPart != "" {
		w = m.width / 2
	}
	h := m.height - footerLines
	if h < 1 {
		h = 1
	}
	m.list.SetSize(w, h)
}

func (m *appModel) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *appModel) setError(op string, err error) {
	m.log.Debug("browse action failed", zap.String("op", op), zap.Error(err))
	m.status = op + ": " + err.Error()
	m.statusErr = true
}

func (m appModel) View() string {
	if !m.loaded && !m.statusErr {
		return "loading…\n"
	}
	body := m.list.View()
	if m.itemsPart != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.itemsView())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.footer())
}

func (m appModel) itemsView() string {
	w := m.width - m.width/2 - 2
	if w < 10 {
		w = 10
	}
	lines := strings.Split(strings.TrimRight(format.RenderItems(m.sess.Items(m.itemsPart), m.itemSt), "\n"), "\n")
	for i, l := range lines {
		lines[i] = xansi.Truncate(l, w, "…")
	}
	return m.st.panel.Height(m.height - footerLines).Render(strings.Join(lines, "\n"))
}

func (m appModel) footer() string {
	status := m.st.muted.Render(m.status)
	if m.statusErr {
		status = m.st.err.Render(m.status)
	}
	if n := m.sess.Pending(); n > 0 {
		status += m.st.muted.Render(fmt.Sprintf("  (%d pending)", n))
	}
	input := ""
	if m.renaming != nil {
		input = m.input.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, input, m.help.View(m.keys))
}
