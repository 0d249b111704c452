package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/store"
)

// ServiceID is the lifecycle ID of the bot service.
const ServiceID = "bot.instances"

var (
	_ core.Starter = (*Service)(nil)
	_ core.Stopper = (*Service)(nil)
)

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Supervisor *instance.Supervisor
	Router     *Router
	// Primary returns the primary bot's identity. It is called at Start,
	// once the platform module has resolved the bot's name.
	Primary func() instance.Identity
	Store   store.Store
	Logger  *slog.Logger
}

// Service starts the primary bot and the persisted clones, and stops
// every instance on shutdown.
type Service struct {
	cfg    ServiceConfig
	logger *slog.Logger
}

// NewService creates a Service and binds its supervisor to the router.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Router.Bind(cfg.Supervisor)
	return &Service{cfg: cfg, logger: logger}
}

// ModuleInfo implements core.Module.
func (s *Service) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: ServiceID}
}

// Start implements core.Starter. It returns once every instance has been
// scheduled; none of them is waited on.
func (s *Service) Start() error {
	primary := s.cfg.Primary()
	if !s.cfg.Supervisor.StartPrimary(primary, s.cfg.Router.HandlePrimary) {
		return fmt.Errorf("bot: primary instance %s already registered", primary.Name)
	}

	clones, err := s.cfg.Store.ListClones(context.Background(), 0)
	if err != nil {
		return fmt.Errorf("bot: list clones: %w", err)
	}
	ids := make([]instance.Identity, 0, len(clones))
	for _, c := range clones {
		if c.Token == primary.Token {
			continue
		}
		ids = append(ids, instance.Identity{Token: c.Token, OwnerID: c.OwnerID, Name: c.Name})
	}
	n := s.cfg.Supervisor.Recover(ids)
	s.logger.Info("bot instances scheduled", "primary", primary.Name, "clones", n)
	return nil
}

// Stop implements core.Stopper.
func (s *Service) Stop(ctx context.Context) error {
	return s.cfg.Supervisor.Stop(ctx)
}
