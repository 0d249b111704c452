package instance

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryRegister_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	id := Identity{Token: "123456:ABCDEFGHIJKLMNOPQRST", OwnerID: 42, Name: "twin_bot"}

	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	for range 64 {
		wg.Go(func() {
			if r.TryRegister(id) {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("winners = %d, want 1", got)
	}
	if active := r.ListActive(); len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
}

func TestRegistry_Transitions(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	id := Identity{Token: "t1", OwnerID: 1, Name: "one_bot"}

	if !r.TryRegister(id) {
		t.Fatal("first register should win")
	}
	rec, _ := r.Get("t1")
	if rec.State != StateStarting || rec.StartedAt.IsZero() {
		t.Fatalf("record = %+v", rec)
	}

	r.MarkRunning("t1")
	if rec, _ := r.Get("t1"); rec.State != StateRunning {
		t.Errorf("state = %s, want running", rec.State)
	}
	if r.TryRegister(id) {
		t.Error("register must fail while running")
	}

	r.MarkFailed("t1", ErrConflict)
	rec, _ = r.Get("t1")
	if rec.State != StateFailed || rec.LastError != ErrConflict.Error() {
		t.Errorf("record = %+v", rec)
	}

	r.MarkStopped("t1")
	if rec, _ := r.Get("t1"); rec.State != StateFailed {
		t.Errorf("stop must not hide a failure, got %s", rec.State)
	}

	if !r.TryRegister(id) {
		t.Error("a failed record should be replaceable")
	}
}

func TestRegistry_UnknownTokenIsNoop(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MarkRunning("nope")
	r.MarkFailed("nope", errors.New("x"))
	r.MarkStopped("nope")
	if _, ok := r.Get("nope"); ok {
		t.Error("unexpected record")
	}
}

func TestRegistry_ListActiveAndCounts(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for i := range 4 {
		r.TryRegister(Identity{Token: fmt.Sprintf("t%d", i), OwnerID: int64(i)})
	}
	r.MarkRunning("t0")
	r.MarkFailed("t1", ErrConflict)
	r.MarkStopped("t2")

	active := r.ListActive()
	if len(active) != 2 {
		t.Fatalf("active = %+v", active)
	}
	for _, rec := range active {
		if !rec.State.Live() {
			t.Errorf("non-live record in ListActive: %+v", rec)
		}
	}

	counts := r.Counts()
	want := map[State]int{StateStarting: 1, StateRunning: 1, StateFailed: 1, StateStopped: 1}
	for state, n := range want {
		if counts[state] != n {
			t.Errorf("counts[%s] = %d, want %d", state, counts[state], n)
		}
	}
	if len(r.List()) != 4 {
		t.Errorf("List = %d records, want 4", len(r.List()))
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.TryRegister(Identity{Token: "t"})
	snap := r.ListActive()
	snap[0].State = StateFailed

	if rec, _ := r.Get("t"); rec.State != StateStarting {
		t.Error("mutating a snapshot changed the registry")
	}
}

func TestRegistry_ListOrdersByStartThenToken(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stamps := map[string]time.Time{"b": base, "a": base, "c": base.Add(-time.Minute)}
	r := NewRegistry()
	var next string
	r.now = func() time.Time { return stamps[next] }
	for _, tok := range []string{"b", "a", "c"} {
		next = tok
		r.TryRegister(Identity{Token: tok})
	}

	var got []string
	for _, rec := range r.List() {
		got = append(got, rec.Token)
	}
	if fmt.Sprint(got) != "[c a b]" {
		t.Errorf("order = %v, want [c a b]", got)
	}
}
