package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/config"
	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/store"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ModuleConfig is the "scheduler.cron" configuration. An empty schedule
// disables the job.
type ModuleConfig struct {
	Digest            string        `yaml:"digest"`
	ActivityPrune     string        `yaml:"activity_prune"`
	ActivityRetention time.Duration `yaml:"activity_retention"`
	LimiterPrune      string        `yaml:"limiter_prune"`
}

func (c *ModuleConfig) defaults() {
	if c.ActivityRetention <= 0 {
		c.ActivityRetention = 30 * 24 * time.Hour
	}
}

// Module is the "scheduler.cron" module.
type Module struct {
	config    ModuleConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "scheduler.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)
	ctx.RegisterService("cron.scheduler", m.scheduler)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	var errs []error
	for name, expr := range map[string]string{
		"digest":         m.config.Digest,
		"activity_prune": m.config.ActivityPrune,
		"limiter_prune":  m.config.LimiterPrune,
	} {
		if expr == "" {
			continue
		}
		if err := ParseSchedule(expr); err != nil {
			errs = append(errs, fmt.Errorf("cron: %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Start implements core.Starter. Jobs whose dependencies are missing are
// skipped with a warning.
func (m *Module) Start() error {
	st, hasStore := core.Service[store.Store](m.appCtx, "store")

	if m.config.Digest != "" {
		bot, _ := core.Service[config.BotConfig](m.appCtx, "bot.config")
		sender, hasSender := core.Service[channel.Messenger](m.appCtx, "telegram.primary")
		instances, _ := core.Service[InstanceCounter](m.appCtx, "instance.registry")
		if hasStore && hasSender && bot.AdminID != 0 {
			m.register(&DigestJob{
				Store:        st,
				Instances:    instances,
				Sender:       sender,
				AdminID:      bot.AdminID,
				ScheduleExpr: m.config.Digest,
				Logger:       m.logger,
			})
		} else {
			m.logger.Warn("cron: digest disabled, missing store, sender or admin")
		}
	}

	if m.config.ActivityPrune != "" && hasStore {
		m.register(&ActivityPruneJob{
			Store:        st,
			Retention:    m.config.ActivityRetention,
			ScheduleExpr: m.config.ActivityPrune,
			Logger:       m.logger,
		})
	}

	if m.config.LimiterPrune != "" {
		var limiters []Pruner
		for _, name := range []string{"security.ratelimiter", "gateway.auth_limiter"} {
			if l, ok := core.Service[Pruner](m.appCtx, name); ok {
				limiters = append(limiters, l)
			}
		}
		if len(limiters) > 0 {
			m.register(&LimiterPruneJob{
				Limiters:     limiters,
				ScheduleExpr: m.config.LimiterPrune,
				Logger:       m.logger,
			})
		}
	}

	return m.scheduler.Start()
}

func (m *Module) register(j Job) {
	if err := m.scheduler.RegisterJob(j); err != nil {
		m.logger.Error("cron: register job", "job", j.Name(), "error", err)
	}
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Scheduler returns the module's scheduler. Nil before Provision.
func (m *Module) Scheduler() *Scheduler {
	return m.scheduler
}
