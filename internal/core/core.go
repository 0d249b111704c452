package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultShutdownTimeout bounds the whole Stop sequence when no option
// overrides it. Pollers need up to one long-poll interval to return.
const DefaultShutdownTimeout = 30 * time.Second

// App runs a set of modules through their lifecycle: load, start, stop.
type App struct {
	ctx             *AppContext
	modules         []moduleInstance
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

// Option configures an App.
type Option func(*App)

// WithShutdownTimeout sets the deadline given to Stop. Non-positive values
// keep the default.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// NewApp creates an App bound to ctx.
func NewApp(ctx *AppContext, opts ...Option) *App {
	a := &App{
		ctx:             ctx,
		logger:          ctx.Logger.With("component", "core"),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadModules configures, provisions and validates the registered modules
// named by ids, in order. On failure every module loaded so far is released.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.Release()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.modules = append(a.modules, moduleInstance{id: mod.ModuleInfo().ID, module: mod})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds a module built outside the registry, such as the bot
// service assembled from several provisioned modules. It starts after
// everything loaded before it.
func (a *App) AppendModule(id string, mod Module) {
	a.modules = append(a.modules, moduleInstance{id: ModuleID(id), module: mod})
	a.logger.Info("module appended", "module", id)
}

// Module returns the module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// ModuleIDs lists the modules in lifecycle order.
func (a *App) ModuleIDs() []string {
	ids := make([]string, len(a.modules))
	for i, mi := range a.modules {
		ids[i] = string(mi.id)
	}
	return ids
}

// Start starts every module implementing Starter, in order. When one fails,
// those already started are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			// Passive modules (stores) count as started so Stop closes them.
			mi.started = true
			continue
		}
		a.logger.Info("starting module", "module", string(mi.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			a.stopFrom(i - 1)
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
	}
	a.logger.Info("all modules started", "count", len(a.modules))
	return nil
}

// Stop stops the started modules in reverse order. All of them share one
// shutdown deadline.
func (a *App) Stop() {
	a.stopFrom(len(a.modules) - 1)
}

func (a *App) stopFrom(index int) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	for i := index; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			a.logger.Info("stopping module", "module", string(mi.id))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("module stop error", "module", string(mi.id), "error", err)
			}
		}
		mi.started = false
	}
}

// Release closes modules that were provisioned but never started, such as
// an opened database, then forgets them. Use Stop once Start has run.
func (a *App) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		if s, ok := a.modules[i].module.(Stopper); ok {
			if err := s.Stop(ctx); err != nil {
				a.logger.Warn("module release error", "module", string(a.modules[i].id), "error", err)
			}
		}
	}
	a.modules = nil
}
