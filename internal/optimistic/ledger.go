// Package optimistic implements the apply / confirm / commit-or-compensate
// protocol used for speculative mutations of a snapshot.
//
// A Ledger holds the last confirmed snapshot plus a FIFO of pending
// operations. Each operation is applied to the current speculative snapshot
// synchronously when it is submitted, then persisted. Persistence is serial:
// an operation is only sent after every operation submitted before it has
// resolved. When persistence fails the operation and every operation queued
// after it (which were derived from its speculative result) are compensated,
// leaving the confirmed snapshot as the current one.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSuperseded is returned for a queued operation that was compensated
// because an operation submitted before it failed to persist.
var ErrSuperseded = errors.New("optimistic: superseded by an earlier failed operation")

// ErrBusy is returned by Replace while operations are still pending.
var ErrBusy = errors.New("optimistic: operations pending")

// Op is a speculative mutation of a snapshot of type S.
type Op[S any] interface {
	Apply(S) (S, error)
	Persist(ctx context.Context) error
}

// Phase is the lifecycle position of one submitted operation.
type Phase int

const (
	PhasePending Phase = iota
	PhaseCommitted
	PhaseCompensated
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseCompensated:
		return "compensated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Observer is notified of snapshot changes and operation outcomes. Calls are
// made without the ledger lock held.
type Observer[S any] interface {
	SnapshotChanged(S)
	Resolved(op Op[S], phase Phase, err error)
}

type entry[S any] struct {
	op     Op[S]
	result S
	prev   <-chan struct{}
	done   chan struct{}
	cause  error // set when compensated by an earlier failure
	phase  Phase
}

type Ledger[S any] struct {
	mu        sync.Mutex
	confirmed S
	pending   []*entry[S]
	tail      chan struct{}
	observer  Observer[S]
}

func NewLedger[S any](initial S, obs Observer[S]) *Ledger[S] {
	tail := make(chan struct{})
	close(tail)
	return &Ledger[S]{confirmed: initial, tail: tail, observer: obs}
}

// Current returns the speculative snapshot: the confirmed snapshot with every
// pending operation applied.
func (l *Ledger[S]) Current() S {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLocked()
}

// Confirmed returns the last snapshot acknowledged by persistence.
func (l *Ledger[S]) Confirmed() S {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.confirmed
}

// Pending reports how many operations are awaiting persistence.
func (l *Ledger[S]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Ledger[S]) currentLocked() S {
	if n := len(l.pending); n > 0 {
		return l.pending[n-1].result
	}
	return l.confirmed
}

// Replace swaps in an authoritative snapshot. It fails with ErrBusy while
// operations are pending so a fetched snapshot never erases speculative state
// that has not resolved yet.
func (l *Ledger[S]) Replace(s S) error {
	l.mu.Lock()
	if len(l.pending) > 0 {
		l.mu.Unlock()
		return ErrBusy
	}
	l.confirmed = s
	l.mu.Unlock()
	l.notifySnapshot(s)
	return nil
}

// Submit applies op speculatively, then persists it and blocks until it is
// committed or compensated. A local Apply error leaves the ledger unchanged
// and is returned as-is.
func (l *Ledger[S]) Submit(ctx context.Context, op Op[S]) error {
	e, err := l.begin(op)
	if err != nil {
		return err
	}
	return l.finish(ctx, e)
}

// SubmitAsync applies op speculatively and returns at once; the persistence
// outcome is delivered on the returned channel. Operations submitted this way
// keep their submission order with Submit calls. A local Apply error is
// returned directly and nothing is queued.
func (l *Ledger[S]) SubmitAsync(ctx context.Context, op Op[S]) (<-chan error, error) {
	e, err := l.begin(op)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() { done <- l.finish(ctx, e) }()
	return done, nil
}

func (l *Ledger[S]) begin(op Op[S]) (*entry[S], error) {
	l.mu.Lock()
	next, err := op.Apply(l.currentLocked())
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	e := &entry[S]{op: op, result: next, prev: l.tail, done: make(chan struct{})}
	l.tail = e.done
	l.pending = append(l.pending, e)
	l.mu.Unlock()

	l.notifySnapshot(next)
	return e, nil
}

func (l *Ledger[S]) finish(ctx context.Context, e *entry[S]) error {
	defer close(e.done)

	// Wait for every earlier operation to resolve. Persist receives ctx, so a
	// cancelled context surfaces as a persistence failure below.
	<-e.prev

	l.mu.Lock()
	if e.phase == PhaseCompensated {
		cause := e.cause
		l.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrSuperseded, cause)
		l.notifyResolved(e.op, PhaseCompensated, err)
		return err
	}
	l.mu.Unlock()

	var err error
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	} else {
		err = e.op.Persist(ctx)
	}

	l.mu.Lock()
	if err == nil {
		e.phase = PhaseCommitted
		l.confirmed = e.result
		l.removeLocked(e)
		l.mu.Unlock()
		l.notifyResolved(e.op, PhaseCommitted, nil)
		return nil
	}

	e.phase = PhaseCompensated
	idx := l.indexLocked(e)
	for _, later := range l.pending[idx+1:] {
		later.phase = PhaseCompensated
		later.cause = err
	}
	l.pending = l.pending[:idx]
	snap := l.currentLocked()
	l.mu.Unlock()

	l.notifySnapshot(snap)
	l.notifyResolved(e.op, PhaseCompensated, err)
	return err
}

func (l *Ledger[S]) indexLocked(e *entry[S]) int {
	for i, x := range l.pending {
		if x == e {
			return i
		}
	}
	return len(l.pending)
}

func (l *Ledger[S]) removeLocked(e *entry[S]) {
	i := l.indexLocked(e)
	if i >= len(l.pending) {
		return
	}
	l.pending = append(l.pending[:i:i], l.pending[i+1:]...)
}

func (l *Ledger[S]) notifySnapshot(s S) {
	if l.observer != nil {
		l.observer.SnapshotChanged(s)
	}
}

func (l *Ledger[S]) notifyResolved(op Op[S], phase Phase, err error) {
	if l.observer != nil {
		l.observer.Resolved(op, phase, err)
	}
}
