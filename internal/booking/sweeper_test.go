package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carwash/pkg/logging"
)

func TestSweeper_SelectsOnlyElapsedConfirmedAndInProgress(t *testing.T) {
	f := newFixture()
	past := f.now.Add(-time.Minute)
	confirmed := f.seed(StatusConfirmed, openCarwashID, past)
	started := f.seed(StatusInProgress, openCarwashID, past)
	pending := f.seed(StatusPending, openCarwashID, past)
	cancelled := f.seed(StatusCancelled, openCarwashID, past)
	future := f.seed(StatusConfirmed, openCarwashID, f.now.Add(time.Minute))
	exact := f.seed(StatusConfirmed, openCarwashID, f.now)

	sw := &Sweeper{Store: f.store, Log: logging.Discard()}
	rep, err := sw.Run(context.Background(), f.now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Scanned != 2 || rep.Completed != 2 || rep.Failed != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for _, b := range []*Booking{confirmed, started} {
		if got := f.store.row(b.ID); got.Status != StatusCompleted || !got.CompletedAt.Equal(f.now) {
			t.Fatalf("booking %d not completed at run time: %+v", b.ID, got)
		}
	}
	for _, b := range []*Booking{pending, cancelled, future, exact} {
		if got := f.store.row(b.ID); got.Status != b.Status {
			t.Fatalf("booking %d changed from %s to %s", b.ID, b.Status, got.Status)
		}
	}
}

func TestSweeper_RerunIsNoop(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.seed(StatusConfirmed, openCarwashID, f.now.Add(-time.Duration(i+1)*time.Hour))
	}
	sw := &Sweeper{Store: f.store, Publisher: f.pub, Log: logging.Discard()}

	first, err := sw.Run(context.Background(), f.now)
	if err != nil || first.Completed != 3 {
		t.Fatalf("first run: %+v %v", first, err)
	}
	writes := f.store.transitionCalls

	second, err := sw.Run(context.Background(), f.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Scanned != 0 || second.Completed != 0 || f.store.transitionCalls != writes {
		t.Fatalf("second run did work: %+v", second)
	}
	if len(f.pub.all()) != 3 {
		t.Fatalf("expected 3 events, got %d", len(f.pub.all()))
	}
}

func TestSweeper_GraceDelaysCompletion(t *testing.T) {
	f := newFixture()
	b := f.seed(StatusConfirmed, openCarwashID, f.now.Add(-10*time.Minute))
	sw := &Sweeper{Store: f.store, Grace: 30 * time.Minute, Log: logging.Discard()}

	rep, _ := sw.Run(context.Background(), f.now)
	if rep.Completed != 0 || f.store.row(b.ID).Status != StatusConfirmed {
		t.Fatalf("completed inside grace: %+v", rep)
	}
	rep, _ = sw.Run(context.Background(), f.now.Add(25*time.Minute))
	if rep.Completed != 1 {
		t.Fatalf("expected completion after grace: %+v", rep)
	}
}

func TestSweeper_RowFailureDoesNotAbort(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusConfirmed, openCarwashID, f.now.Add(-3*time.Hour))
	b := f.seed(StatusConfirmed, openCarwashID, f.now.Add(-2*time.Hour))
	c := f.seed(StatusInProgress, openCarwashID, f.now.Add(-time.Hour))
	f.store.failTransition[b.ID] = errTransient

	sw := &Sweeper{Store: f.store, Log: logging.Discard()}
	rep, err := sw.Run(context.Background(), f.now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Scanned != 3 || rep.Completed != 2 || rep.Failed != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if f.store.row(a.ID).Status != StatusCompleted || f.store.row(c.ID).Status != StatusCompleted {
		t.Fatalf("rows after the failure were not processed")
	}
	if got := f.store.row(b.ID); got.Status != StatusConfirmed || got.CompletedAt != nil {
		t.Fatalf("failed row half applied: %+v", got)
	}
}

func TestSweeper_PagesThroughBatches(t *testing.T) {
	f := newFixture()
	for i := 0; i < 7; i++ {
		f.seed(StatusConfirmed, openCarwashID, f.now.Add(-time.Duration(i+1)*time.Minute))
	}
	// A failing row stays eligible; the cursor must still move past it.
	f.store.failTransition[1] = errTransient

	sw := &Sweeper{Store: f.store, BatchSize: 2, Log: logging.Discard()}
	rep, err := sw.Run(context.Background(), f.now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Scanned != 7 || rep.Completed != 6 || rep.Failed != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestSweeper_ConcurrentRunsCompleteEachRowOnce(t *testing.T) {
	f := newFixture()
	const n = 40
	for i := 0; i < n; i++ {
		f.seed(StatusConfirmed, openCarwashID, f.now.Add(-time.Duration(i+1)*time.Minute))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports []SweepReport
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sw := &Sweeper{Store: f.store, Publisher: f.pub, BatchSize: 5, Log: logging.Discard()}
			rep, err := sw.Run(context.Background(), f.now)
			if err != nil {
				t.Errorf("sweep: %v", err)
				return
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
		}()
	}
	wg.Wait()

	total := 0
	for _, r := range reports {
		total += r.Completed
		if r.Failed != 0 {
			t.Fatalf("unexpected failures: %+v", r)
		}
	}
	if total != n {
		t.Fatalf("expected %d completions across sweeps, got %d", n, total)
	}
	if got := len(f.pub.all()); got != n {
		t.Fatalf("expected %d events, got %d", n, got)
	}
	for id := int64(1); id <= n; id++ {
		hist, _ := f.store.History(context.Background(), id)
		if len(hist) != 1 {
			t.Fatalf("booking %d transitioned %d times", id, len(hist))
		}
	}
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func TestSweeper_Locking(t *testing.T) {
	f := newFixture()
	f.seed(StatusConfirmed, openCarwashID, f.now.Add(-time.Hour))

	lock := &fakeLocker{held: true}
	sw := &Sweeper{Store: f.store, Locker: lock, Log: logging.Discard()}
	rep, err := sw.Run(context.Background(), f.now)
	if err != nil || !rep.Throttled || rep.Scanned != 0 {
		t.Fatalf("expected throttled run, got %+v %v", rep, err)
	}

	lock.held = false
	rep, err = sw.Run(context.Background(), f.now)
	if err != nil || rep.Completed != 1 || lock.released != 1 || lock.held {
		t.Fatalf("expected locked run to complete and release: %+v %v %+v", rep, err, lock)
	}

	// An unreachable lock backend degrades to an unthrottled run.
	f.seed(StatusConfirmed, openCarwashID, f.now.Add(-time.Hour))
	sw.Locker = &fakeLocker{err: errors.New("redis down")}
	rep, err = sw.Run(context.Background(), f.now)
	if err != nil || rep.Completed != 1 {
		t.Fatalf("expected run without lock: %+v %v", rep, err)
	}
}
