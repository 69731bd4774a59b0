// Package expand holds the tree's expand/collapse state.
//
// At most one node per level is open at a time: opening a node collapses
// every other node of the same level anywhere in the tree, not only its
// siblings. State values are immutable; Reduce returns a new State.
package expand

import (
	"sort"

	"checklist-cli/internal/model"
)

type Level int

const (
	LevelMachine Level = iota
	LevelAssembly
	LevelPart
)

type node struct {
	level  Level
	parent string
}

// Levels indexes a tree snapshot by node id.
type Levels struct {
	nodes map[string]node
}

func IndexTree(t model.Tree) Levels {
	nodes := map[string]node{}
	for _, m := range t.Machines {
		nodes[m.ID] = node{level: LevelMachine}
		for _, a := range m.Assemblies {
			nodes[a.ID] = node{level: LevelAssembly, parent: m.ID}
			for _, p := range a.Parts {
				nodes[p.ID] = node{level: LevelPart, parent: a.ID}
			}
		}
	}
	return Levels{nodes: nodes}
}

func (l Levels) Level(id string) (Level, bool) {
	n, ok := l.nodes[id]
	return n.level, ok
}

func (l Levels) Parent(id string) string { return l.nodes[id].parent }

type State struct {
	open   map[string]bool
	levels Levels
}

func New(t model.Tree) State {
	return State{levels: IndexTree(t)}
}

func (s State) Expanded(id string) bool {
	_, ok := s.levels.nodes[id]
	return ok && s.open[id]
}

// Open lists expanded node ids present in the indexed tree, in sorted order.
func (s State) Open() []string {
	out := make([]string, 0, len(s.open))
	for id, v := range s.open {
		if _, ok := s.levels.nodes[id]; ok && v {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (s State) Levels() Levels { return s.levels }

// WithTree re-indexes against a new snapshot. Open flags of ids missing
// from t are kept but ignored, so a node that reappears after a rolled-back
// removal comes back in the state it had.
func (s State) WithTree(t model.Tree) State {
	next := s.clone()
	next.levels = IndexTree(t)
	return next
}

func (s *State) set(id string) {
	if s.open == nil {
		s.open = map[string]bool{}
	}
	s.open[id] = true
}

func (s State) clone() State {
	next := State{levels: s.levels}
	for id, v := range s.open {
		if v {
			next.set(id)
		}
	}
	return next
}

// openOnly expands id and collapses every other node at its level. Flags
// kept for ids outside the index are dropped too, since their level is
// unknown and they could otherwise reappear beside id.
func (s *State) openOnly(id string, lvl Level) {
	for other := range s.open {
		if l, ok := s.levels.Level(other); other != id && (!ok || l == lvl) {
			delete(s.open, other)
		}
	}
	s.set(id)
}

type Action interface{ isAction() }

// Toggle expands a collapsed node (closing the rest of its level) or collapses
// an expanded one.
type Toggle struct{ ID string }

// ExpandContaining opens the assembly owning PartID and that assembly's
// machine, collapsing every other assembly and machine.
type ExpandContaining struct{ PartID string }

type CollapseAll struct{}

func (Toggle) isAction()           {}
func (ExpandContaining) isAction() {}
func (CollapseAll) isAction()      {}

// Reduce applies a to s. Ids that are not in the indexed tree leave the
// state unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Toggle:
		lvl, ok := s.levels.Level(a.ID)
		if !ok {
			return s
		}
		next := s.clone()
		if next.open[a.ID] {
			delete(next.open, a.ID)
			return next
		}
		next.openOnly(a.ID, lvl)
		return next
	case ExpandContaining:
		lvl, ok := s.levels.Level(a.PartID)
		if !ok || lvl != LevelPart {
			return s
		}
		asm := s.levels.Parent(a.PartID)
		machine := s.levels.Parent(asm)
		next := s.clone()
		next.openOnly(asm, LevelAssembly)
		next.openOnly(machine, LevelMachine)
		return next
	case CollapseAll:
		return State{levels: s.levels}
	default:
		return s
	}
}
