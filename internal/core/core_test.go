package core

import (
	"context"
	"slices"
	"testing"
	"time"
)

type deadlineMod struct {
	got *time.Duration
}

func (m deadlineMod) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: "test.deadline", New: func() Module { return m }}
}

func (deadlineMod) Start() error { return nil }

func (m deadlineMod) Stop(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		*m.got = time.Until(dl)
	}
	return nil
}

func TestApp_ShutdownTimeout(t *testing.T) {
	var remaining time.Duration
	app := NewApp(NewAppContext(nil, "/data"), WithShutdownTimeout(2*time.Second))
	app.AppendModule("test.deadline", deadlineMod{got: &remaining})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	if remaining <= 0 || remaining > 2*time.Second {
		t.Errorf("stop deadline = %v, want within 2s", remaining)
	}
}

func TestApp_ShutdownTimeoutIgnoresZero(t *testing.T) {
	app := NewApp(NewAppContext(nil, "/data"), WithShutdownTimeout(0))
	if app.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdownTimeout = %v, want default", app.shutdownTimeout)
	}
}

func TestApp_ReleaseStopsUnstartedModules(t *testing.T) {
	var events []string
	app := NewApp(NewAppContext(nil, "/data"))
	app.AppendModule("store.mem", &lifecycleMod{name: "store.mem", events: &events})
	app.AppendModule("bot.instances", &lifecycleMod{name: "bot.instances", events: &events})

	if got := app.ModuleIDs(); !slices.Equal(got, []string{"store.mem", "bot.instances"}) {
		t.Errorf("ModuleIDs = %v", got)
	}

	app.Release()

	want := []string{"stop bot.instances", "stop store.mem"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if len(app.ModuleIDs()) != 0 {
		t.Error("modules kept after Release")
	}
}

type passiveMod struct{ closed *bool }

func (m passiveMod) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: "store.passive", New: func() Module { return m }}
}

func (m passiveMod) Stop(context.Context) error {
	*m.closed = true
	return nil
}

func TestApp_StopClosesPassiveModules(t *testing.T) {
	var closed bool
	app := NewApp(NewAppContext(nil, "/data"))
	app.AppendModule("store.passive", passiveMod{closed: &closed})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	if !closed {
		t.Error("module without Start was not stopped")
	}
}
