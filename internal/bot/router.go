// Package bot routes the updates of every instance: commands, button
// presses and plain text lookups.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/lookupbot/internal/access"
	"github.com/flemzord/lookupbot/internal/activity"
	"github.com/flemzord/lookupbot/internal/broadcast"
	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/pipeline"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Configuration errors returned by NewRouter.
var (
	ErrNoPipeline = errors.New("bot: pipeline is required")
	ErrNoGate     = errors.New("bot: access gate is required")
	ErrNoStore    = errors.New("bot: store is required")
)

// ForceJoinCallback is the callback data of the /start verification button.
const ForceJoinCallback = "force_join"

// ProbeFunc resolves a bot token to the bot's username.
type ProbeFunc func(ctx context.Context, token string) (username string, err error)

// InstanceStarter starts clones. Satisfied by *instance.Supervisor.
type InstanceStarter interface {
	StartInstance(id instance.Identity) bool
	Registry() *instance.Registry
}

// Config wires a Router.
type Config struct {
	AdminID int64

	// Pipeline serves the primary instance, ClonePipeline the clones.
	// ClonePipeline defaults to Pipeline.
	Pipeline      *pipeline.Pipeline
	ClonePipeline *pipeline.Pipeline

	Gate      *access.Gate
	Broadcast *broadcast.Fanout
	Store     store.Store
	Probe     ProbeFunc
	// Notifier reaches users outside an update, normally the primary bot.
	Notifier channel.Messenger

	Audit    *security.AuditLogger
	Activity *activity.Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.ClonePipeline == nil {
		c.ClonePipeline = c.Pipeline
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Router dispatches updates. HandlePrimary and HandleClone are the
// instance.Handler of the primary bot and of every clone.
type Router struct {
	cfg       Config
	logger    *slog.Logger
	startedAt time.Time
	instances InstanceStarter
}

// NewRouter creates a Router. Bind must be called before clones can be
// created.
func NewRouter(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	switch {
	case cfg.Pipeline == nil:
		return nil, ErrNoPipeline
	case cfg.Gate == nil:
		return nil, ErrNoGate
	case cfg.Store == nil:
		return nil, ErrNoStore
	}
	return &Router{cfg: cfg, logger: cfg.Logger, startedAt: cfg.Now()}, nil
}

// Bind attaches the supervisor that /clone starts instances through.
func (r *Router) Bind(s InstanceStarter) {
	r.instances = s
}

// HandlePrimary handles an update received by the primary bot.
func (r *Router) HandlePrimary(ctx context.Context, m channel.Messenger, msg message.InboundMessage) {
	if msg.IsCallback() {
		r.handleCallback(ctx, m, msg)
		return
	}

	name, args, ok := msg.Command()
	if !ok {
		r.cfg.Pipeline.Handle(ctx, m, msg)
		return
	}

	switch name {
	case "start":
		r.cmdStart(ctx, m, msg)
	case "help":
		r.reply(ctx, m, msg.ChatID, HelpText)
	case "check":
		r.cmdCheck(ctx, m, msg)
	case "aadhar":
		r.cmdAadhar(ctx, m, msg, args)
	case "clone":
		r.cmdClone(ctx, m, msg, args)
	case "broadcast":
		r.cmdBroadcast(ctx, m, msg, args)
	case "stats":
		r.cmdStats(ctx, m, msg)
	default:
		r.logger.Debug("unknown command", "command", name, "instance", msg.Instance)
	}
}

// HandleClone handles an update received by a clone. Clones share the
// lookup pipeline and gate but expose no admin or clone commands.
func (r *Router) HandleClone(ctx context.Context, m channel.Messenger, msg message.InboundMessage) {
	if msg.IsCallback() {
		r.handleCallback(ctx, m, msg)
		return
	}

	name, _, ok := msg.Command()
	if !ok {
		r.cfg.ClonePipeline.Handle(ctx, m, msg)
		return
	}
	switch name {
	case "start":
		r.reply(ctx, m, msg.ChatID, CloneWelcomeText)
	case "help":
		r.reply(ctx, m, msg.ChatID, CloneHelpText)
	default:
		r.logger.Debug("unknown clone command", "command", name, "instance", msg.Instance)
	}
}

func (r *Router) handleCallback(ctx context.Context, m channel.Messenger, msg message.InboundMessage) {
	cb := msg.Callback
	if err := m.AnswerCallback(ctx, cb.ID, ""); err != nil {
		r.logger.Debug("answer callback failed", "error", err)
	}

	member := r.cfg.Gate.Check(ctx, msg.Sender.ID) == nil

	var out message.OutboundMessage
	switch cb.Data {
	case access.CheckMembershipCallback:
		if member {
			out = message.NewTextMessage(msg.ChatID, AccessGrantedText)
		} else {
			out = pipeline.AccessDeniedMessage(msg.ChatID, r.cfg.Gate)
		}
	case ForceJoinCallback:
		if member {
			out = message.NewTextMessage(msg.ChatID, WelcomeText)
		} else {
			out = message.NewTextMessage(msg.ChatID, NotJoinedText).WithKeyboard(r.forceJoinKeyboard())
		}
	default:
		r.logger.Debug("unknown callback", "data", cb.Data)
		return
	}

	if err := m.Edit(ctx, cb.MessageID, out); err != nil {
		if !errors.Is(err, channel.ErrMessageGone) {
			r.logger.Warn("edit prompt failed", "error", err)
		}
		r.send(ctx, m, out)
	}
}

// forceJoinKeyboard is the gate's keyboard with the /start verification
// callback on its last button.
func (r *Router) forceJoinKeyboard() message.Keyboard {
	kb := r.cfg.Gate.JoinKeyboard()
	last := kb[len(kb)-1]
	last[0].CallbackData = ForceJoinCallback
	return kb
}

// OnInstanceFailure tells a clone's owner that it could not start.
func (r *Router) OnInstanceFailure(id instance.Identity, err error) {
	r.cfg.Audit.Log(security.AuditEvent{
		Type:     security.EventCloneFailed,
		Instance: id.Name,
		UserID:   id.OwnerID,
		Detail:   err.Error(),
	})
	if id.OwnerID == 0 || r.cfg.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.reply(ctx, r.cfg.Notifier, id.OwnerID, CloneFailedText(id.Name, err))
}

func (r *Router) reply(ctx context.Context, m channel.Messenger, chatID int64, text string) {
	r.send(ctx, m, message.NewTextMessage(chatID, text))
}

func (r *Router) send(ctx context.Context, m channel.Messenger, out message.OutboundMessage) {
	if _, err := m.Send(ctx, out); err != nil {
		r.logger.Warn("reply failed", "chat_id", out.ChatID, "error", err)
	}
}
