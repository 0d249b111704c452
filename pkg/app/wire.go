package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/lookupbot/internal/access"
	"github.com/flemzord/lookupbot/internal/activity"
	"github.com/flemzord/lookupbot/internal/bot"
	"github.com/flemzord/lookupbot/internal/broadcast"
	"github.com/flemzord/lookupbot/internal/config"
	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/lookup"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/internal/pipeline"
	"github.com/flemzord/lookupbot/internal/report"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/modules/channel/telegram"
)

// ErrNoLookupGateway is returned when no module provides "lookup.gateway".
var ErrNoLookupGateway = errors.New("app: a lookup module (e.g. lookup.http) is required")

// wireBot builds the gate, pipelines, broadcast fan-out, router and
// supervisor from the loaded modules, and appends the bot service to the
// app lifecycle. Must be called after LoadModules and before Start.
func wireBot(app *core.App, appCtx *core.AppContext, cfg config.BotConfig, registry *instance.Registry) error {
	logger := appCtx.Logger.With("component", "bot")

	factory, ok := core.Service[*telegram.Factory](appCtx, telegram.ServiceFactory)
	if !ok {
		return errors.New("app: channel.telegram did not register its factory")
	}
	primary := factory.Primary()

	gateway, ok := core.Service[lookup.Gateway](appCtx, "lookup.gateway")
	if !ok {
		return ErrNoLookupGateway
	}

	st, ok := core.Service[store.Store](appCtx, "store")
	if !ok {
		logger.Warn("no store module configured, clones will not survive a restart")
		st = store.NewMemory()
		appCtx.RegisterService("store", st)
	}

	audit, _ := core.Service[*security.AuditLogger](appCtx, "security.audit")
	limiter, _ := core.Service[*security.RateLimiter](appCtx, "security.ratelimiter")
	m, _ := core.Service[*metrics.Metrics](appCtx, "metrics")

	gate := access.NewGate(primary, cfg.RequiredGroups, logger, m)
	recorder := activity.NewRecorder(activity.Config{
		Store:   st,
		Admin:   primary,
		AdminID: cfg.AdminID,
		Notify:  cfg.NotifyAdmin,
		Logger:  logger,
	})

	pipelineCfg := pipeline.Config{
		Gate:             gate,
		Gateway:          gateway,
		Renderer:         report.NewRenderer(cfg.DataSource),
		ProgressInterval: cfg.ProgressInterval,
		Limiter:          limiter,
		Audit:            audit,
		Activity:         recorder,
		Metrics:          m,
		Logger:           logger,
	}
	primaryPipeline := pipeline.New(pipelineCfg)
	pipelineCfg.ProgressInterval = cfg.CloneProgressInterval
	clonePipeline := pipeline.New(pipelineCfg)

	fanout := broadcast.New(broadcast.Config{
		AdminID:     cfg.AdminID,
		Sender:      primary,
		Instances:   registry,
		Store:       st,
		Audit:       audit,
		Metrics:     m,
		Concurrency: cfg.BroadcastConcurrency,
		Logger:      logger,
	})

	router, err := bot.NewRouter(bot.Config{
		AdminID:       cfg.AdminID,
		Pipeline:      primaryPipeline,
		ClonePipeline: clonePipeline,
		Gate:          gate,
		Broadcast:     fanout,
		Store:         st,
		Probe:         factory.ProbeName,
		Notifier:      primary,
		Audit:         audit,
		Activity:      recorder,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("app: creating router: %w", err)
	}

	supervisor := instance.NewSupervisor(registry, factory, router.HandleClone, instance.SupervisorConfig{
		StartDelay:     cfg.CloneStartDelay,
		RecoveryDelay:  cfg.RecoveryDelay,
		RecoveryJitter: cfg.RecoveryJitter,
		OnFailure:      router.OnInstanceFailure,
		Logger:         logger.With("component", "supervisor"),
		Metrics:        m,
	})

	app.AppendModule(bot.ServiceID, bot.NewService(bot.ServiceConfig{
		Supervisor: supervisor,
		Router:     router,
		Primary:    factory.PrimaryIdentity,
		Store:      st,
		Logger:     logger,
	}))

	logger.Info("bot wired",
		slog.Int64("admin_id", cfg.AdminID),
		slog.Int("required_groups", len(cfg.RequiredGroups)),
	)
	return nil
}
