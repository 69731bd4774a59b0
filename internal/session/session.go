// Package session is the UI-facing state container. It owns the tree
// snapshot (through an optimistic ledger), the loaded checklist items and
// the expansion state, and routes every mutation through the engine that
// issued it so rollbacks happen before errors reach the caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"checklist-cli/internal/expand"
	"checklist-cli/internal/logging"
	"checklist-cli/internal/metrics"
	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
	"checklist-cli/internal/optimistic"
	"checklist-cli/internal/remote"
	"checklist-cli/internal/reorder"
	"checklist-cli/internal/upload"

	"go.uber.org/zap"
)

// ErrUploadInProgress is returned when an item already has a pending upload.
var ErrUploadInProgress = errors.New("session: an upload is already pending for this item")

type Session struct {
	svc     remote.Sync
	log     *zap.Logger
	ledger  *optimistic.Ledger[model.Tree]
	reorder *reorder.Engine
	uploads *upload.Coordinator

	mu        sync.Mutex
	items     map[string][]model.ChecklistItem // part id -> items
	itemPart  map[string]string                // item id -> part id
	uploading map[string]bool                  // item ids with an upload reserved
	expand    expand.State
	onChange  func()
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = logging.OrNop(l) } }

// WithOnChange registers fn to run after any visible state changes. It is
// called without session locks held.
func WithOnChange(fn func()) Option { return func(s *Session) { s.onChange = fn } }

func New(svc remote.Sync, opts ...Option) *Session {
	s := &Session{
		svc:       svc,
		log:       zap.NewNop(),
		items:     map[string][]model.ChecklistItem{},
		itemPart:  map[string]string{},
		uploading: map[string]bool{},
		expand:    expand.New(model.Tree{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.ledger = optimistic.NewLedger[model.Tree](model.Tree{}, observer{s})
	s.reorder = reorder.NewEngine(s.ledger, svc, s.log.Named("reorder"))
	s.uploads = upload.New(svc, s, upload.WithLogger(s.log.Named("upload")))
	return s
}

// Load replaces the snapshot with the server's tree. It fails with
// optimistic.ErrBusy while mutations are in flight.
func (s *Session) Load(ctx context.Context) error {
	t, err := s.svc.FetchTree(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Replace(t); err != nil {
		return err
	}
	s.log.Debug("tree loaded", zap.Int("machines", len(t.Machines)))
	return nil
}

// Tree is the current snapshot, including unconfirmed mutations.
func (s *Session) Tree() model.Tree { return s.ledger.Current() }

// ConfirmedTree is the last snapshot acknowledged by the server.
func (s *Session) ConfirmedTree() model.Tree { return s.ledger.Confirmed() }

func (s *Session) Pending() int { return s.ledger.Pending() }

func (s *Session) Reorder() *reorder.Engine { return s.reorder }

func (s *Session) Uploads() *upload.Coordinator { return s.uploads }

func (s *Session) Rename(ctx context.Context, kind model.Kind, id, name string) error {
	op := mutate.RenameOp{Kind: kind, ID: id, Name: name}
	return s.submit(ctx, "rename", optimistic.OpFunc[model.Tree]{
		Name:      op.String(),
		ApplyFunc: op.Apply,
		PersistFunc: func(ctx context.Context) error {
			return s.svc.PersistRename(ctx, kind, id, name)
		},
	})
}

// Remove deletes an assembly (with its parts) or a part. Items loaded for
// removed parts are dropped once the server confirms.
func (s *Session) Remove(ctx context.Context, kind model.Kind, id string) error {
	op := mutate.RemoveOp{Kind: kind, ID: id}
	var removedParts []string
	err := s.submit(ctx, "remove", optimistic.OpFunc[model.Tree]{
		Name: op.String(),
		ApplyFunc: func(t model.Tree) (model.Tree, error) {
			removedParts = mutate.SubtreePartIDs(t, kind, id)
			return op.Apply(t)
		},
		PersistFunc: func(ctx context.Context) error {
			return s.svc.PersistDelete(ctx, kind, id)
		},
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, pid := range removedParts {
		for _, it := range s.items[pid] {
			delete(s.itemPart, it.ID)
		}
		delete(s.items, pid)
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) submit(ctx context.Context, label string, op optimistic.OpFunc[model.Tree]) error {
	err := s.ledger.Submit(ctx, op)
	switch {
	case err == nil:
		metrics.OptimisticOpsTotal.WithLabelValues(label, optimistic.PhaseCommitted.String()).Inc()
		return nil
	case errors.Is(err, mutate.ErrNotFound), errors.Is(err, mutate.ErrInvalidName), errors.Is(err, mutate.ErrInvalidIndex):
		return err
	default:
		metrics.OptimisticOpsTotal.WithLabelValues(label, optimistic.PhaseCompensated.String()).Inc()
		return fmt.Errorf("%s: %w", op.Name, err)
	}
}

// LoadItems fetches the checklist items of a part, replacing any cached copy.
func (s *Session) LoadItems(ctx context.Context, partID string) ([]model.ChecklistItem, error) {
	if !mutate.HasPart(s.Tree(), partID) {
		return nil, mutate.NotFoundError{Kind: model.KindPart, ID: partID}
	}
	items, err := s.svc.FetchItems(ctx, partID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for _, it := range s.items[partID] {
		delete(s.itemPart, it.ID)
	}
	s.items[partID] = items
	for _, it := range items {
		s.itemPart[it.ID] = partID
	}
	s.mu.Unlock()
	s.changed()
	return cloneItems(items), nil
}

// Items returns the cached items of a part.
func (s *Session) Items(partID string) []model.ChecklistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items[partID])
}

func (s *Session) Item(itemID string) (model.ChecklistItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, _, ok := s.itemLocked(itemID)
	if !ok {
		return model.ChecklistItem{}, false
	}
	it.Attachments = append([]model.Attachment(nil), it.Attachments...)
	return it, true
}

func (s *Session) itemLocked(itemID string) (model.ChecklistItem, int, bool) {
	pid, ok := s.itemPart[itemID]
	if !ok {
		return model.ChecklistItem{}, -1, false
	}
	for i, it := range s.items[pid] {
		if it.ID == itemID {
			return it, i, true
		}
	}
	return model.ChecklistItem{}, -1, false
}

// Update implements upload.Lists.
func (s *Session) Update(itemID string, fn func([]model.Attachment) []model.Attachment) error {
	s.mu.Lock()
	it, i, ok := s.itemLocked(itemID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", upload.ErrUnknownItem, itemID)
	}
	pid := s.itemPart[itemID]
	it.Attachments = fn(it.Attachments)
	// Copy on write so slices handed out earlier stay untouched.
	next := cloneItems(s.items[pid])
	next[i] = it
	s.items[pid] = next
	s.mu.Unlock()
	s.changed()
	return nil
}

// Upload attaches f to an item. Only one upload per item may be pending.
func (s *Session) Upload(ctx context.Context, itemID string, f remote.File) (model.Attachment, error) {
	s.mu.Lock()
	it, _, ok := s.itemLocked(itemID)
	if s.uploading[itemID] || (ok && upload.HasPending(it.Attachments)) {
		s.mu.Unlock()
		return model.Attachment{}, ErrUploadInProgress
	}
	s.uploading[itemID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.uploading, itemID)
		s.mu.Unlock()
	}()
	return s.uploads.Upload(ctx, itemID, f)
}

func (s *Session) DeleteAttachment(ctx context.Context, itemID, attachmentID string) error {
	return s.uploads.Delete(ctx, itemID, attachmentID)
}

func (s *Session) Expansion() expand.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expand
}

func (s *Session) Toggle(id string) { s.dispatch(expand.Toggle{ID: id}) }

func (s *Session) ExpandContaining(partID string) { s.dispatch(expand.ExpandContaining{PartID: partID}) }

func (s *Session) CollapseAll() { s.dispatch(expand.CollapseAll{}) }

func (s *Session) dispatch(a expand.Action) {
	s.mu.Lock()
	s.expand = expand.Reduce(s.expand, a)
	s.mu.Unlock()
	s.changed()
}

// Rows are the visible tree rows under the current expansion.
func (s *Session) Rows() []expand.Row {
	return expand.Visible(s.Tree(), s.Expansion())
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func cloneItems(in []model.ChecklistItem) []model.ChecklistItem {
	if in == nil {
		return nil
	}
	return append([]model.ChecklistItem(nil), in...)
}

type observer struct{ s *Session }

// SnapshotChanged re-indexes against the ledger's current snapshot, read
// under s.mu, instead of the notified one. Notifications from concurrent
// resolutions can arrive out of order.
func (o observer) SnapshotChanged(model.Tree) {
	o.s.mu.Lock()
	o.s.expand = o.s.expand.WithTree(o.s.ledger.Current())
	o.s.mu.Unlock()
	o.s.changed()
}

func (o observer) Resolved(op optimistic.Op[model.Tree], phase optimistic.Phase, err error) {
	name := fmt.Sprint(op)
	if phase == optimistic.PhaseCompensated {
		o.s.log.Info("mutation compensated", zap.String("op", name), zap.Error(err))
		return
	}
	o.s.log.Debug("mutation resolved", zap.String("op", name), zap.Stringer("phase", phase))
}
