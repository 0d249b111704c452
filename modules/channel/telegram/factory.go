package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/security"
)

var _ instance.Launcher = (*Factory)(nil)

// Factory builds bots that share one Config.
type Factory struct {
	config   Config
	logger   *slog.Logger
	redactor *security.Redactor
	primary  *Bot
}

// NewFactory creates a Factory. redactor may be nil.
func NewFactory(config Config, logger *slog.Logger, redactor *security.Redactor) *Factory {
	config.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{config: config, logger: logger, redactor: redactor}
}

// Launch implements instance.Launcher. The primary token reuses the
// primary Bot so that its Messenger and runner are the same value.
func (f *Factory) Launch(id instance.Identity, h instance.Handler) (instance.Runner, error) {
	if id.Token == "" {
		return nil, errors.New("telegram: empty token")
	}
	if f.primary != nil && f.primary.client.token == id.Token {
		f.primary.bind(h)
		return f.primary, nil
	}
	return f.newBot(id, h), nil
}

func (f *Factory) newBot(id instance.Identity, h instance.Handler) *Bot {
	if f.redactor != nil {
		f.redactor.AddLiteral(id.Token)
	}
	name := id.Name
	if name == "" {
		name = security.MaskToken(id.Token)
	}
	return newBot(NewClient(id.Token, f.config.APIURL), name, f.config, f.logger, h)
}

// Primary returns the primary bot, creating it on first use.
func (f *Factory) Primary() *Bot {
	if f.primary == nil {
		f.primary = f.newBot(instance.Identity{Token: f.config.Token, Name: "primary"}, nil)
	}
	return f.primary
}

// Probe checks a token with getMe and returns the bot it belongs to.
func (f *Factory) Probe(ctx context.Context, token string) (*User, error) {
	return NewClient(token, f.config.APIURL).GetMe(ctx)
}

// PrimaryIdentity identifies the primary bot under its current name.
func (f *Factory) PrimaryIdentity() instance.Identity {
	return instance.Identity{Token: f.config.Token, Name: f.Primary().Name()}
}

// ProbeName is Probe reduced to the bot's username.
func (f *Factory) ProbeName(ctx context.Context, token string) (string, error) {
	u, err := f.Probe(ctx, token)
	if err != nil {
		return "", err
	}
	if u.Username == "" {
		return security.MaskToken(token), nil
	}
	return u.Username, nil
}
