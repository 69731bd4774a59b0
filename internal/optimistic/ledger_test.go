package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// appendOp appends v to a []string snapshot. Persist blocks until release
// receives a value (nil => success).
type appendOp struct {
	v       string
	release chan error
	started chan struct{}
}

func newAppendOp(v string) *appendOp {
	return &appendOp{v: v, release: make(chan error, 1), started: make(chan struct{})}
}

func (o *appendOp) Apply(s []string) ([]string, error) {
	if o.v == "" {
		return s, errors.New("empty value")
	}
	out := append([]string(nil), s...)
	return append(out, o.v), nil
}

func (o *appendOp) Persist(ctx context.Context) error {
	close(o.started)
	select {
	case err := <-o.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recorder struct {
	mu       sync.Mutex
	phases   []Phase
	lastSnap []string
}

func (r *recorder) SnapshotChanged(s []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSnap = s
}

func (r *recorder) Resolved(_ Op[[]string], p Phase, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitStarted(t *testing.T, op *appendOp) {
	t.Helper()
	select {
	case <-op.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("persist for %q never started", op.v)
	}
}

func TestSubmit_CommitPromotesSpeculativeState(t *testing.T) {
	rec := &recorder{}
	l := NewLedger([]string{"a"}, Observer[[]string](rec))

	op := newAppendOp("b")
	errCh := make(chan error, 1)
	go func() { errCh <- l.Submit(context.Background(), op) }()
	waitStarted(t, op)

	if got := l.Current(); !equal(got, []string{"a", "b"}) {
		t.Fatalf("expected speculative [a b], got %v", got)
	}
	if got := l.Confirmed(); !equal(got, []string{"a"}) {
		t.Fatalf("expected confirmed [a], got %v", got)
	}

	op.release <- nil
	if err := <-errCh; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := l.Confirmed(); !equal(got, []string{"a", "b"}) {
		t.Fatalf("expected confirmed [a b], got %v", got)
	}
	if l.Pending() != 0 {
		t.Fatalf("expected no pending ops")
	}
	if len(rec.phases) != 1 || rec.phases[0] != PhaseCommitted {
		t.Fatalf("unexpected phases %v", rec.phases)
	}
}

func TestSubmit_ApplyErrorLeavesLedgerUntouched(t *testing.T) {
	l := NewLedger([]string{"a"}, nil)
	if err := l.Submit(context.Background(), newAppendOp("")); err == nil {
		t.Fatalf("expected apply error")
	}
	if l.Pending() != 0 || !equal(l.Current(), []string{"a"}) {
		t.Fatalf("ledger changed after apply error: %v", l.Current())
	}
}

func TestSubmit_FailureCompensatesLaterOps(t *testing.T) {
	rec := &recorder{}
	l := NewLedger([]string{"a"}, Observer[[]string](rec))

	first := newAppendOp("b")
	second := newAppendOp("c")
	firstErr := make(chan error, 1)
	secondErr := make(chan error, 1)

	go func() { firstErr <- l.Submit(context.Background(), first) }()
	waitStarted(t, first)
	go func() { secondErr <- l.Submit(context.Background(), second) }()

	// The second op layers on the first's speculative result.
	deadline := time.Now().Add(2 * time.Second)
	for l.Pending() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("second op never became pending")
		}
		time.Sleep(time.Millisecond)
	}
	if got := l.Current(); !equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected [a b c], got %v", got)
	}

	boom := errors.New("boom")
	first.release <- boom
	if err := <-firstErr; !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	err := <-secondErr
	if !errors.Is(err, ErrSuperseded) || !errors.Is(err, boom) {
		t.Fatalf("expected superseded wrapping boom, got %v", err)
	}
	select {
	case <-second.started:
		t.Fatalf("superseded op must not be persisted")
	default:
	}

	if got := l.Current(); !equal(got, []string{"a"}) {
		t.Fatalf("expected rollback to [a], got %v", got)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !equal(rec.lastSnap, []string{"a"}) {
		t.Fatalf("observer saw %v after rollback", rec.lastSnap)
	}
}

func TestSubmit_SerialPersistence(t *testing.T) {
	l := NewLedger([]string{}, nil)
	first := newAppendOp("x")
	second := newAppendOp("y")
	errs := make(chan error, 2)

	go func() { errs <- l.Submit(context.Background(), first) }()
	waitStarted(t, first)
	go func() { errs <- l.Submit(context.Background(), second) }()

	select {
	case <-second.started:
		t.Fatalf("second op persisted before first resolved")
	case <-time.After(50 * time.Millisecond):
	}

	first.release <- nil
	waitStarted(t, second)
	second.release <- nil
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if got := l.Confirmed(); !equal(got, []string{"x", "y"}) {
		t.Fatalf("expected [x y], got %v", got)
	}
}

func TestSubmit_CancelledContextCompensates(t *testing.T) {
	l := NewLedger([]string{"a"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Submit(ctx, newAppendOp("b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := l.Current(); !equal(got, []string{"a"}) {
		t.Fatalf("expected [a], got %v", got)
	}
}

func TestReplace_BusyWhilePending(t *testing.T) {
	l := NewLedger([]string{"a"}, nil)
	op := newAppendOp("b")
	errCh := make(chan error, 1)
	go func() { errCh <- l.Submit(context.Background(), op) }()
	waitStarted(t, op)

	if err := l.Replace([]string{"z"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	op.release <- nil
	if err := <-errCh; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := l.Replace([]string{"z"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := l.Current(); !equal(got, []string{"z"}) {
		t.Fatalf("expected [z], got %v", got)
	}
}

func TestSubmitAsync_AppliesBeforeReturningAndKeepsOrder(t *testing.T) {
	l := NewLedger([]string{}, nil)
	first := newAppendOp("x")
	second := newAppendOp("y")

	d1, err := l.SubmitAsync(context.Background(), first)
	if err != nil {
		t.Fatalf("SubmitAsync: %v", err)
	}
	d2, err := l.SubmitAsync(context.Background(), second)
	if err != nil {
		t.Fatalf("SubmitAsync: %v", err)
	}
	if got := l.Current(); !equal(got, []string{"x", "y"}) {
		t.Fatalf("expected speculative [x y] on return, got %v", got)
	}

	waitStarted(t, first)
	first.release <- nil
	if err := <-d1; err != nil {
		t.Fatalf("first: %v", err)
	}
	waitStarted(t, second)
	second.release <- errors.New("nope")
	if err := <-d2; err == nil {
		t.Fatalf("expected second to fail")
	}
	if got := l.Current(); !equal(got, []string{"x"}) {
		t.Fatalf("expected [x] after second failed, got %v", got)
	}

	if _, err := l.SubmitAsync(context.Background(), newAppendOp("")); err == nil {
		t.Fatalf("expected apply error from SubmitAsync")
	}
}
