// Package tui is the interactive tree browser: expand machines and
// assemblies, read a part's checklist items, and reorder or rename nodes
// with the changes applied before the server confirms them.
package tui

import (
	"context"
	"sync"

	"checklist-cli/internal/logging"
	"checklist-cli/internal/remote"
	"checklist-cli/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

func Run(ctx context.Context, svc remote.Sync, log *zap.Logger) error {
	log = logging.OrNop(log)
	n := newNotifier()
	defer n.close()

	sess := session.New(svc, session.WithLogger(log), session.WithOnChange(n.notify))
	m := newAppModel(ctx, sess, n.ch, lipgloss.DefaultRenderer(), log)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// notifier coalesces session change callbacks into a channel the model
// listens on. Callbacks after close are dropped.
type notifier struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1)}
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
}
