// Package pipeline runs one lookup request from raw chat text to a
// delivered report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flemzord/lookupbot/internal/access"
	"github.com/flemzord/lookupbot/internal/activity"
	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/lookup"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/internal/report"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/telemetry"
	"github.com/flemzord/lookupbot/pkg/message"
)

// State is where a request ended up.
type State string

// Request states. Delivered, Rejected and Errored are terminal.
const (
	StateClassifying State = "classifying"
	StateGating      State = "gating"
	StateFetching    State = "fetching"
	StateFormatting  State = "formatting"
	StateDelivered   State = "delivered"
	StateRejected    State = "rejected"
	StateErrored     State = "errored"
)

// ProgressSteps is the number of status updates shown before fetching.
const ProgressSteps = 5

// maxMessageLen is the Telegram text limit.
const maxMessageLen = 4096

// Outcome describes a finished request.
type Outcome struct {
	State State
	Kind  lookup.Kind
	// Found is false when the payload held no record.
	Found bool
	// Err is set for Rejected and Errored outcomes.
	Err error
}

// Config wires a Pipeline.
type Config struct {
	Gate     *access.Gate
	Gateway  lookup.Gateway
	Renderer *report.Renderer

	// ProgressInterval is the pause between status updates.
	ProgressInterval time.Duration
	// FetchTimeout bounds the gateway call. Zero leaves it to the gateway.
	FetchTimeout time.Duration

	Limiter  *security.RateLimiter
	Audit    *security.AuditLogger
	Activity *activity.Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Pipeline is shared by every bot instance. Safe for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = report.NewRenderer("")
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Handle classifies the text of msg and, when it is a valid identifier,
// runs the lookup. Replies are sent through m.
func (p *Pipeline) Handle(ctx context.Context, m channel.Messenger, msg message.InboundMessage) Outcome {
	kind, input, err := lookup.Classify(msg.Text)
	if err != nil {
		p.reply(ctx, m, msg.ChatID, validationReply(err))
		p.cfg.Metrics.ObserveLookup("", string(StateRejected))
		return Outcome{State: StateRejected, Err: err}
	}
	return p.Lookup(ctx, m, msg, kind, input)
}

// Lookup runs an already classified request: gate, progress, fetch,
// format and deliver.
func (p *Pipeline) Lookup(ctx context.Context, m channel.Messenger, msg message.InboundMessage, kind lookup.Kind, input string) Outcome {
	req := lookup.NewRequest(msg.Sender.ID, kind, input, time.Now())
	logger := p.logger.With("instance", msg.Instance, "request_id", req.ID, "kind", kind)

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.lookup")
	defer span.End()
	span.SetAttributes(
		attribute.String("lookup.kind", string(kind)),
		attribute.String("bot.instance", msg.Instance),
	)

	out := p.lookup(ctx, m, msg, req, logger)
	out.Kind = kind

	span.SetAttributes(attribute.String("pipeline.state", string(out.State)))
	if out.State == StateErrored {
		span.SetStatus(codes.Error, errString(out.Err))
	}
	p.cfg.Metrics.ObserveLookup(string(kind), string(out.State))
	return out
}

func (p *Pipeline) lookup(ctx context.Context, m channel.Messenger, msg message.InboundMessage, req lookup.Request, logger *slog.Logger) Outcome {
	if p.cfg.Gate != nil {
		if err := p.cfg.Gate.Check(ctx, req.RequesterID); err != nil {
			p.cfg.Audit.Log(security.AuditEvent{
				Type:     security.EventAccessDenied,
				Instance: msg.Instance,
				UserID:   req.RequesterID,
				Detail:   string(req.Kind),
			})
			p.send(ctx, m, AccessDeniedMessage(msg.ChatID, p.cfg.Gate))
			return Outcome{State: StateRejected, Err: err}
		}
	}

	if err := p.cfg.Limiter.Allow(strconv.FormatInt(req.RequesterID, 10)); err != nil {
		p.cfg.Metrics.IncRateLimited()
		p.cfg.Audit.Log(security.AuditEvent{
			Type:     security.EventRateLimit,
			Instance: msg.Instance,
			UserID:   req.RequesterID,
		})
		p.reply(ctx, m, msg.ChatID, RateLimitedText)
		return Outcome{State: StateRejected, Err: err}
	}

	return p.fetchAndDeliver(ctx, m, msg, req, logger)
}

// fetchAndDeliver covers the stages where failures are contained: errors
// and panics end in Errored with a generic reply, and the status message
// is removed on every path.
func (p *Pipeline) fetchAndDeliver(ctx context.Context, m channel.Messenger, msg message.InboundMessage, req lookup.Request, logger *slog.Logger) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("lookup panicked", "panic", r)
			p.reply(context.WithoutCancel(ctx), m, msg.ChatID, InternalErrorText)
			out = Outcome{State: StateErrored, Err: fmt.Errorf("pipeline: panic: %v", r)}
		}
	}()

	status := openStatus(ctx, m, msg.ChatID, req.Kind, logger)
	defer status.close(ctx)

	for step := 1; step < ProgressSteps; step++ {
		if err := sleep(ctx, p.cfg.ProgressInterval); err != nil {
			status.close(ctx)
			p.reply(context.WithoutCancel(ctx), m, msg.ChatID, FetchErrorText(req.Kind))
			return Outcome{State: StateErrored, Err: err}
		}
		status.update(ctx, step)
	}

	res, err := p.fetch(ctx, req)
	if err != nil || !res.Succeeded {
		if err == nil {
			err = lookup.ErrUpstreamUnavailable
		}
		logger.Warn("lookup failed", "error", err)
		status.close(ctx)
		p.reply(context.WithoutCancel(ctx), m, msg.ChatID, FetchErrorText(req.Kind))
		return Outcome{State: StateErrored, Err: err}
	}

	text, found := p.cfg.Renderer.Render(req.Kind, res.Payload)
	status.close(ctx)

	for _, chunk := range channel.SplitText(text, maxMessageLen) {
		if _, err := m.Send(ctx, message.NewTextMessage(msg.ChatID, chunk)); err != nil {
			logger.Error("report delivery failed", "error", err)
			return Outcome{State: StateErrored, Found: found, Err: err}
		}
	}

	p.cfg.Audit.Log(security.AuditEvent{
		Type:     security.EventLookup,
		Instance: msg.Instance,
		UserID:   req.RequesterID,
		Detail:   string(req.Kind),
		Metadata: map[string]string{
			"input":      req.Input,
			"request_id": req.ID,
			"found":      strconv.FormatBool(found),
		},
	})
	p.cfg.Activity.Record(ctx, activityEntry(msg, req))

	logger.Info("lookup delivered", "found", found)
	return Outcome{State: StateDelivered, Found: found}
}

func (p *Pipeline) fetch(ctx context.Context, req lookup.Request) (lookup.Result, error) {
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}
	res, err := lookup.Fetch(ctx, p.cfg.Gateway, req.Kind, req.Input)
	if err != nil && !errors.Is(err, lookup.ErrUpstreamUnavailable) {
		err = fmt.Errorf("%w: %w", lookup.ErrUpstreamUnavailable, err)
	}
	return res, err
}

func (p *Pipeline) reply(ctx context.Context, m channel.Messenger, chatID int64, text string) {
	p.send(ctx, m, message.NewTextMessage(chatID, text))
}

func (p *Pipeline) send(ctx context.Context, m channel.Messenger, out message.OutboundMessage) {
	if _, err := m.Send(ctx, out); err != nil {
		p.logger.Warn("reply failed", "chat_id", out.ChatID, "error", err)
	}
}

func activityEntry(msg message.InboundMessage, req lookup.Request) activity.Entry {
	action, label := activity.ActionPhoneLookup, "phone"
	if req.Kind == lookup.KindNationalID {
		action, label = activity.ActionAadharLookup, "Aadhar"
	}
	return activity.Entry{
		UserID:   req.RequesterID,
		Instance: msg.Instance,
		Action:   action,
		Data:     req.Input,
		Summary:  fmt.Sprintf("User %d looked up %s: %s", req.RequesterID, label, req.Input),
	}
}

func validationReply(err error) string {
	if errors.Is(err, lookup.ErrNonNumeric) {
		return NonNumericText
	}
	return WrongLengthText
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AccessDeniedMessage is the reply to a user who failed the gate.
func AccessDeniedMessage(chatID int64, gate *access.Gate) message.OutboundMessage {
	var b strings.Builder
	b.WriteString("🔒 *Access Denied!*\n\n")
	b.WriteString("You need to join our channels to use this feature:\n\n")
	for _, g := range gate.Groups() {
		b.WriteString("• " + message.EscapeMarkdown(g) + "\n")
	}
	b.WriteString("\nJoin the channels above and verify your membership.")
	return message.NewTextMessage(chatID, b.String()).WithKeyboard(gate.JoinKeyboard())
}
