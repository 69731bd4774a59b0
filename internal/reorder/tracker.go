package reorder

import (
	"errors"
	"fmt"

	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
)

var (
	ErrNotDragging     = errors.New("reorder: no drag in progress")
	ErrAlreadyDragging = errors.New("reorder: drag already in progress")
	// ErrCrossContainer rejects drops into a different sibling group. Moves
	// never reparent a node.
	ErrCrossContainer = fmt.Errorf("%w: cross-container move", mutate.ErrInvalidIndex)
)

type State int

const (
	StateIdle State = iota
	StateDragging
)

type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeCommitted
)

func (o Outcome) String() string {
	if o == OutcomeCommitted {
		return "committed"
	}
	return "cancelled"
}

type DragStart struct {
	Source Target
}

// DragMove is an intermediate frame. Over, when set, bypasses geometry.
type DragMove struct {
	Pointer Point
	Over    *Target
}

// DragEnd releases the drag. Over, when set, is the drop target as already
// resolved by the caller. Otherwise Pointer is resolved against the layout,
// and when neither is given the last proposed position from DragMove is used.
type DragEnd struct {
	Pointer *Point
	Over    *Target
}

// Tracker is the gesture state machine: Idle -> Dragging -> Committed|Cancelled.
// It never touches the tree.
type Tracker struct {
	state  State
	source Target
	over   *Target
	layout Layout
}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) State() State { return t.state }

func (t *Tracker) SetLayout(l Layout) { t.layout = l }

func (t *Tracker) Start(ev DragStart) error {
	if t.state == StateDragging {
		return ErrAlreadyDragging
	}
	if _, _, err := ParseContainer(ev.Source.ContainerID); err != nil {
		return err
	}
	if ev.Source.Index < 0 {
		return mutate.IndexError{ParentID: ev.Source.ContainerID, From: ev.Source.Index, To: ev.Source.Index}
	}
	t.state = StateDragging
	t.source = ev.Source
	t.over = nil
	return nil
}

// Move updates the proposed drop position. It is UI feedback only.
func (t *Tracker) Move(ev DragMove) (Target, bool) {
	if t.state != StateDragging {
		return Target{}, false
	}
	if ev.Over != nil {
		over := *ev.Over
		t.over = &over
		return over, true
	}
	if over, ok := t.layout.Resolve(ev.Pointer); ok {
		t.over = &over
		return over, true
	}
	t.over = nil
	return Target{}, false
}

// Over returns the currently proposed drop position.
func (t *Tracker) Over() (Target, bool) {
	if t.state != StateDragging || t.over == nil {
		return Target{}, false
	}
	return *t.over, true
}

func (t *Tracker) Source() (Target, bool) {
	if t.state != StateDragging {
		return Target{}, false
	}
	return t.source, true
}

func (t *Tracker) Cancel() {
	t.state = StateIdle
	t.over = nil
}

// End finishes the gesture. A drop outside any container, onto the source
// position, or into another container yields OutcomeCancelled and no intent;
// the cross-container case also returns ErrCrossContainer.
func (t *Tracker) End(ev DragEnd) (model.ReorderIntent, Outcome, error) {
	if t.state != StateDragging {
		return model.ReorderIntent{}, OutcomeCancelled, ErrNotDragging
	}
	src := t.source
	var target *Target
	switch {
	case ev.Over != nil:
		over := *ev.Over
		target = &over
	case ev.Pointer != nil:
		if over, ok := t.layout.Resolve(*ev.Pointer); ok {
			target = &over
		}
	default:
		target = t.over
	}
	t.Cancel()

	if target == nil {
		return model.ReorderIntent{}, OutcomeCancelled, nil
	}
	if target.ContainerID != src.ContainerID {
		return model.ReorderIntent{}, OutcomeCancelled, ErrCrossContainer
	}
	if target.Index == src.Index {
		return model.ReorderIntent{}, OutcomeCancelled, nil
	}
	typ, parentID, err := ParseContainer(src.ContainerID)
	if err != nil {
		return model.ReorderIntent{}, OutcomeCancelled, err
	}
	return model.ReorderIntent{
		Type:        typ,
		ContainerID: src.ContainerID,
		ParentID:    parentID,
		FromIndex:   src.Index,
		ToIndex:     target.Index,
	}, OutcomeCommitted, nil
}
