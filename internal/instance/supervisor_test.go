package instance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner calls ready then blocks until ctx is done, unless err is set.
type fakeRunner struct {
	err     error
	noReady bool
}

func (r fakeRunner) Run(ctx context.Context, ready func()) error {
	if r.err != nil {
		return r.err
	}
	if !r.noReady {
		ready()
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeLauncher struct {
	mu       sync.Mutex
	runners  map[string]Runner
	panics   map[string]bool
	launched []string
}

func (l *fakeLauncher) Launch(id Identity, _ Handler) (Runner, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, id.Token)
	if l.panics[id.Token] {
		panic("boom")
	}
	if r, ok := l.runners[id.Token]; ok {
		return r, nil
	}
	return fakeRunner{}, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func stateOf(r *Registry, token string) State {
	rec, _ := r.Get(token)
	return rec.State
}

func TestSupervisor_StartInstance(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	l := &fakeLauncher{}
	s := NewSupervisor(reg, l, nil, SupervisorConfig{StartDelay: 10 * time.Millisecond, Logger: discardLogger()})
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	id := Identity{Token: "a", OwnerID: 1, Name: "a_bot"}
	if !s.StartInstance(id) {
		t.Fatal("expected start")
	}
	if s.StartInstance(id) {
		t.Error("duplicate start must be a no-op")
	}

	waitFor(t, func() bool { return stateOf(reg, "a") == StateRunning })
	if l.count() != 1 {
		t.Errorf("launched %d times, want 1", l.count())
	}
}

func TestSupervisor_ConcurrentStartLaunchesOnce(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	l := &fakeLauncher{}
	s := NewSupervisor(reg, l, nil, SupervisorConfig{StartDelay: 10 * time.Millisecond, Logger: discardLogger()})
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	id := Identity{Token: "shared", OwnerID: 1, Name: "shared_bot"}
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	gate := make(chan struct{})
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			if s.StartInstance(id) {
				winners.Add(1)
			}
		}()
	}
	close(gate)
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Fatalf("%d callers started the instance, want 1", n)
	}
	waitFor(t, func() bool { return stateOf(reg, "shared") == StateRunning })
	if l.count() != 1 {
		t.Errorf("launched %d times, want 1", l.count())
	}
}

func TestSupervisor_FailureIsIsolated(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		failed []Identity
	)
	reg := NewRegistry()
	l := &fakeLauncher{
		runners: map[string]Runner{"bad": fakeRunner{err: ErrConflict}},
		panics:  map[string]bool{"panicky": true},
	}
	s := NewSupervisor(reg, l, nil, SupervisorConfig{
		Logger: discardLogger(),
		OnFailure: func(id Identity, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, id)
		},
	})
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	s.StartInstance(Identity{Token: "good"})
	s.StartInstance(Identity{Token: "bad", OwnerID: 99})
	s.StartInstance(Identity{Token: "panicky"})

	waitFor(t, func() bool {
		return stateOf(reg, "good") == StateRunning &&
			stateOf(reg, "bad") == StateFailed &&
			stateOf(reg, "panicky") == StateFailed
	})

	rec, _ := reg.Get("bad")
	if rec.LastError != ErrConflict.Error() {
		t.Errorf("LastError = %q", rec.LastError)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 2 {
		t.Fatalf("OnFailure calls = %d, want 2", len(failed))
	}
}

func TestSupervisor_StartPrimary(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := NewSupervisor(reg, &fakeLauncher{}, nil, SupervisorConfig{StartDelay: time.Hour, Logger: discardLogger()})
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	if !s.StartPrimary(Identity{Token: "p"}, nil) {
		t.Fatal("expected primary start")
	}
	waitFor(t, func() bool { return stateOf(reg, "p") == StateRunning })

	rec, _ := reg.Get("p")
	if !rec.Primary {
		t.Error("record should be flagged primary")
	}
}

func TestSupervisor_Recover(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	l := &fakeLauncher{}
	s := NewSupervisor(reg, l, nil, SupervisorConfig{
		RecoveryDelay:  5 * time.Millisecond,
		RecoveryJitter: 20 * time.Millisecond,
		Logger:         discardLogger(),
	})
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	ids := []Identity{{Token: "r1"}, {Token: "r2"}, {Token: "r3"}, {Token: "r1"}}
	if n := s.Recover(ids); n != 3 {
		t.Errorf("recovered = %d, want 3", n)
	}
	waitFor(t, func() bool { return len(reg.ListActive()) == 3 && l.count() == 3 })
	waitFor(t, func() bool { return reg.Counts()[StateRunning] == 3 })
}

func TestSupervisor_StopCancelsDelayedStart(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	l := &fakeLauncher{}
	s := NewSupervisor(reg, l, nil, SupervisorConfig{StartDelay: time.Hour, Logger: discardLogger()})

	s.StartInstance(Identity{Token: "slow"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := stateOf(reg, "slow"); got != StateStopped {
		t.Errorf("state = %s, want stopped", got)
	}
	if l.count() != 0 {
		t.Error("launcher should not run after stop")
	}
	if s.StartInstance(Identity{Token: "late"}) {
		t.Error("start after stop must be refused")
	}
}

func TestSupervisor_StopMarksRunningStopped(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := NewSupervisor(reg, &fakeLauncher{}, nil, SupervisorConfig{Logger: discardLogger()})
	s.StartInstance(Identity{Token: "x"})
	waitFor(t, func() bool { return stateOf(reg, "x") == StateRunning })

	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := stateOf(reg, "x"); got != StateStopped {
		t.Errorf("state = %s, want stopped", got)
	}
}

func TestSupervisor_LaunchErrorFails(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := NewSupervisor(reg, launcherFunc(func(Identity, Handler) (Runner, error) {
		return nil, errors.New("bad token")
	}), nil, SupervisorConfig{Logger: discardLogger()})
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	s.StartInstance(Identity{Token: "z"})
	waitFor(t, func() bool { return stateOf(reg, "z") == StateFailed })
}

type launcherFunc func(Identity, Handler) (Runner, error)

func (f launcherFunc) Launch(id Identity, h Handler) (Runner, error) { return f(id, h) }
