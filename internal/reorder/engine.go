package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"checklist-cli/internal/logging"
	"checklist-cli/internal/metrics"
	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
	"checklist-cli/internal/optimistic"
	"checklist-cli/internal/remote"

	"go.uber.org/zap"
)

// Engine turns drag gestures into reorder intents and commits them through
// the optimistic ledger: the move is visible in the ledger's snapshot as soon
// as DragEnd decides on it, and compensated if persistence fails.
type Engine struct {
	mu      sync.Mutex
	tracker *Tracker
	ledger  *optimistic.Ledger[model.Tree]
	svc     remote.TreeService
	log     *zap.Logger
}

func NewEngine(ledger *optimistic.Ledger[model.Tree], svc remote.TreeService, log *zap.Logger) *Engine {
	return &Engine{
		tracker: NewTracker(),
		ledger:  ledger,
		svc:     svc,
		log:     logging.OrNop(log),
	}
}

func (e *Engine) SetLayout(l Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.SetLayout(l)
}

func (e *Engine) DragStart(ev DragStart) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Start(ev)
}

func (e *Engine) DragMove(ev DragMove) (Target, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Move(ev)
}

func (e *Engine) DragCancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Cancel()
	metrics.GesturesTotal.WithLabelValues("cancelled").Inc()
}

func (e *Engine) Dragging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.State() == StateDragging
}

// DragEnd resolves the gesture and, when it commits, applies and persists the
// intent. It blocks until persistence resolves; the speculative snapshot is
// observable through the ledger before that.
func (e *Engine) DragEnd(ctx context.Context, ev DragEnd) (model.ReorderIntent, Outcome, error) {
	intent, outcome, err := e.resolve(ev)
	if err != nil || outcome != OutcomeCommitted {
		return intent, outcome, err
	}
	return intent, outcome, e.Commit(ctx, intent)
}

// Drop is DragEnd without the wait: a committed move is applied before Drop
// returns and its persistence outcome arrives on the channel. The channel is
// nil when nothing was submitted.
func (e *Engine) Drop(ctx context.Context, ev DragEnd) (model.ReorderIntent, Outcome, <-chan error, error) {
	intent, outcome, err := e.resolve(ev)
	if err != nil || outcome != OutcomeCommitted {
		return intent, outcome, nil, err
	}
	done, err := e.CommitAsync(ctx, intent)
	return intent, outcome, done, err
}

func (e *Engine) resolve(ev DragEnd) (model.ReorderIntent, Outcome, error) {
	e.mu.Lock()
	intent, outcome, err := e.tracker.End(ev)
	e.mu.Unlock()

	switch {
	case errors.Is(err, ErrCrossContainer):
		metrics.GesturesTotal.WithLabelValues("rejected").Inc()
		e.log.Debug("drop rejected", zap.Error(err))
	case err != nil:
	case outcome == OutcomeCancelled:
		metrics.GesturesTotal.WithLabelValues("cancelled").Inc()
	default:
		metrics.GesturesTotal.WithLabelValues("committed").Inc()
	}
	return intent, outcome, err
}

// Commit applies intent optimistically and persists it. On failure the
// snapshot has already been restored when the error is returned.
func (e *Engine) Commit(ctx context.Context, intent model.ReorderIntent) error {
	done, err := e.CommitAsync(ctx, intent)
	if err != nil {
		return err
	}
	return <-done
}

// CommitAsync applies intent and returns once it is visible in the ledger
// snapshot. Out-of-range intents fail here with mutate.ErrInvalidIndex and
// are never persisted.
func (e *Engine) CommitAsync(ctx context.Context, intent model.ReorderIntent) (<-chan error, error) {
	move := mutate.MoveOp{Intent: intent}
	op := optimistic.OpFunc[model.Tree]{
		Name:      move.String(),
		ApplyFunc: move.Apply,
		PersistFunc: func(ctx context.Context) error {
			return e.svc.PersistReorder(ctx, intent)
		},
	}
	persisted, err := e.ledger.SubmitAsync(ctx, op)
	if err != nil {
		return nil, err
	}
	out := make(chan error, 1)
	go func() { out <- e.settle(intent, move, <-persisted) }()
	return out, nil
}

func (e *Engine) settle(intent model.ReorderIntent, move mutate.MoveOp, err error) error {
	if err == nil {
		metrics.OptimisticOpsTotal.WithLabelValues("move", optimistic.PhaseCommitted.String()).Inc()
		e.log.Info("reorder committed",
			zap.String("type", string(intent.Type)),
			zap.String("parent", intent.ParentID),
			zap.Int("from", intent.FromIndex),
			zap.Int("to", intent.ToIndex))
		return nil
	}
	metrics.OptimisticOpsTotal.WithLabelValues("move", optimistic.PhaseCompensated.String()).Inc()
	e.log.Warn("reorder rolled back",
		zap.String("op", move.String()),
		zap.Bool("retryable", remote.IsRetryable(err)),
		zap.Error(err))
	return fmt.Errorf("reorder %s: %w", move.String(), err)
}
