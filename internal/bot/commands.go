package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/lookupbot/internal/activity"
	"github.com/flemzord/lookupbot/internal/broadcast"
	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/lookup"
	"github.com/flemzord/lookupbot/internal/pipeline"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/pkg/message"
)

// minTokenLen is the shortest string accepted as a bot token by /clone.
const minTokenLen = 20

func (r *Router) cmdStart(ctx context.Context, m channel.Messenger, msg message.InboundMessage) {
	r.send(ctx, m, message.NewTextMessage(msg.ChatID, ForceJoinText(r.cfg.Gate.Groups())).
		WithKeyboard(r.forceJoinKeyboard()))

	r.cfg.Activity.Record(ctx, activity.Entry{
		UserID:   msg.Sender.ID,
		Instance: msg.Instance,
		Action:   activity.ActionStart,
		Summary:  fmt.Sprintf("User %s (%d) started the bot", msg.Sender.DisplayName(), msg.Sender.ID),
	})
}

func (r *Router) cmdCheck(ctx context.Context, m channel.Messenger, msg message.InboundMessage) {
	if !r.gate(ctx, m, msg) {
		return
	}
	r.reply(ctx, m, msg.ChatID, AccessGrantedText)
}

// gate replies with the remediation prompt and returns false when the
// sender fails the membership check.
func (r *Router) gate(ctx context.Context, m channel.Messenger, msg message.InboundMessage) bool {
	if err := r.cfg.Gate.Check(ctx, msg.Sender.ID); err != nil {
		r.cfg.Audit.Log(security.AuditEvent{
			Type:     security.EventAccessDenied,
			Instance: msg.Instance,
			UserID:   msg.Sender.ID,
			Detail:   "command",
		})
		r.send(ctx, m, pipeline.AccessDeniedMessage(msg.ChatID, r.cfg.Gate))
		return false
	}
	return true
}

func (r *Router) cmdAadhar(ctx context.Context, m channel.Messenger, msg message.InboundMessage, args string) {
	if args == "" {
		r.reply(ctx, m, msg.ChatID, AadharUsageText)
		return
	}
	id, err := lookup.ValidateNationalID(strings.Fields(args)[0])
	if err != nil {
		if errors.Is(err, lookup.ErrNonNumeric) {
			r.reply(ctx, m, msg.ChatID, pipeline.NonNumericText)
		} else {
			r.reply(ctx, m, msg.ChatID, AadharUsageText)
		}
		return
	}
	r.cfg.Pipeline.Lookup(ctx, m, msg, lookup.KindNationalID, id)
}

func (r *Router) cmdClone(ctx context.Context, m channel.Messenger, msg message.InboundMessage, args string) {
	if !r.gate(ctx, m, msg) {
		return
	}
	if args == "" {
		r.reply(ctx, m, msg.ChatID, CloneUsageText)
		return
	}
	token := strings.Fields(args)[0]
	if !strings.Contains(token, ":") || len(token) < minTokenLen {
		r.reply(ctx, m, msg.ChatID, InvalidTokenText)
		return
	}
	if r.instances == nil || r.cfg.Probe == nil {
		r.logger.Error("clone requested before the supervisor was bound")
		r.reply(ctx, m, msg.ChatID, CloneErrorText(nil))
		return
	}

	name, err := r.cfg.Probe(ctx, token)
	if err != nil {
		r.logger.Warn("clone token rejected", "owner_id", msg.Sender.ID, "error", err)
		r.reply(ctx, m, msg.ChatID, CloneErrorText(err))
		return
	}

	id := instance.Identity{Token: token, OwnerID: msg.Sender.ID, Name: name}
	if err := r.cfg.Store.AddClone(ctx, store.Clone{Token: token, OwnerID: id.OwnerID, Name: name}); err != nil {
		r.logger.Error("clone not stored", "instance", name, "error", err)
		r.reply(ctx, m, msg.ChatID, CloneErrorText(err))
		return
	}

	if !r.instances.StartInstance(id) {
		r.reply(ctx, m, msg.ChatID, CloneAlreadyRunningText(name))
		return
	}

	r.cfg.Audit.Log(security.AuditEvent{
		Type:     security.EventCloneCreate,
		Instance: name,
		UserID:   id.OwnerID,
		Metadata: map[string]string{"token": security.MaskToken(token)},
	})
	r.reply(ctx, m, msg.ChatID, CloneCreatedText(name, token, id.OwnerID))
	r.cfg.Activity.Record(ctx, activity.Entry{
		UserID:   id.OwnerID,
		Instance: msg.Instance,
		Action:   activity.ActionCloneCreated,
		Data:     name,
		Summary:  fmt.Sprintf("User %d created clone bot @%s", id.OwnerID, name),
	})
}

func (r *Router) cmdBroadcast(ctx context.Context, m channel.Messenger, msg message.InboundMessage, args string) {
	if r.cfg.Broadcast == nil {
		r.rejectNonAdmin(ctx, m, msg, "broadcast")
		return
	}

	res, err := r.cfg.Broadcast.Broadcast(ctx, msg.Sender.ID, args)
	switch {
	case errors.Is(err, broadcast.ErrAdminOnly):
		r.rejectNonAdmin(ctx, m, msg, "broadcast")
		return
	case errors.Is(err, broadcast.ErrEmptyMessage):
		r.reply(ctx, m, msg.ChatID, BroadcastUsageText)
		return
	case err != nil:
		r.logger.Error("broadcast failed", "error", err)
		r.reply(ctx, m, msg.ChatID, pipeline.InternalErrorText)
		return
	}

	r.reply(ctx, m, msg.ChatID, BroadcastSentText(res, r.cfg.Now()))
	r.cfg.Activity.Record(ctx, activity.Entry{
		UserID:   msg.Sender.ID,
		Instance: msg.Instance,
		Action:   activity.ActionBroadcast,
		Data:     args,
		Summary:  fmt.Sprintf("Admin broadcast sent to %d clone owners", res.Delivered),
	})
}

func (r *Router) cmdStats(ctx context.Context, m channel.Messenger, msg message.InboundMessage) {
	if msg.Sender.ID != r.cfg.AdminID {
		r.rejectNonAdmin(ctx, m, msg, "stats")
		return
	}

	stats, err := r.cfg.Store.Stats(ctx)
	if err != nil {
		r.logger.Error("stats query failed", "error", err)
		r.reply(ctx, m, msg.ChatID, pipeline.InternalErrorText)
		return
	}
	var counts map[instance.State]int
	if r.instances != nil {
		counts = r.instances.Registry().Counts()
	}
	r.reply(ctx, m, msg.ChatID, StatsText(StatsView{
		TotalClones: stats.Clones,
		Running:     counts[instance.StateRunning],
		Starting:    counts[instance.StateStarting],
		Failed:      counts[instance.StateFailed],
		AdminID:     r.cfg.AdminID,
		Groups:      len(r.cfg.Gate.Groups()),
		Uptime:      r.cfg.Now().Sub(r.startedAt),
	}))
}

// rejectNonAdmin refuses a privileged command without side effects
// beyond the audit entry.
func (r *Router) rejectNonAdmin(ctx context.Context, m channel.Messenger, msg message.InboundMessage, command string) {
	r.cfg.Audit.Log(security.AuditEvent{
		Type:     security.EventAdminRejected,
		Instance: msg.Instance,
		UserID:   msg.Sender.ID,
		Detail:   command,
	})
	r.reply(ctx, m, msg.ChatID, AdminOnlyText)
}
