package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/security"
	"gopkg.in/yaml.v3"
)

// Service names under which the module publishes its values.
const (
	ServiceFactory = "telegram.factory"
	ServicePrimary = "telegram.primary"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// Telegram is the "channel.telegram" module.
type Telegram struct {
	config  Config
	logger  *slog.Logger
	factory *Factory
	me      *User
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.logger = ctx.Logger

	redactor, _ := core.Service[*security.Redactor](ctx, "security.redactor")
	t.factory = NewFactory(t.config, t.logger, redactor)

	ctx.RegisterService(ServiceFactory, t.factory)
	ctx.RegisterService(ServicePrimary, t.factory.Primary())
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	return t.config.validate()
}

// Start implements core.Starter. It checks the primary token with getMe
// and names the primary instance after the bot's username. Polling is
// started by the instance supervisor.
func (t *Telegram) Start() error {
	user, err := t.factory.Probe(context.Background(), t.config.Token)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.me = user
	if user.Username != "" {
		t.factory.Primary().name = user.Username
		t.factory.Primary().logger = t.logger.With("instance", user.Username)
	}
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
	)
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(_ context.Context) error {
	t.logger.Info("telegram channel stopping")
	return nil
}

// Factory returns the bot factory. Nil before Provision.
func (t *Telegram) Factory() *Factory {
	return t.factory
}

// Me returns the primary bot's user, known after Start.
func (t *Telegram) Me() *User {
	return t.me
}
