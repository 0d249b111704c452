// Package activity records user actions to the store and mirrors them to
// the admin chat.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Actions written to the activity log.
const (
	ActionStart        = "start"
	ActionPhoneLookup  = "phone_lookup"
	ActionAadharLookup = "aadhar_lookup"
	ActionCloneCreated = "clone_created"
	ActionBroadcast    = "broadcast"
)

// Entry is one recorded action.
type Entry struct {
	UserID   int64
	Instance string
	Action   string
	Data     string
	// Summary is the human-readable line sent to the admin.
	Summary string
}

// Config configures a Recorder.
type Config struct {
	Store   store.Store
	Admin   channel.Messenger
	AdminID int64
	Notify  bool
	Logger  *slog.Logger
	Now     func() time.Time
}

// Recorder persists entries and, when enabled, notifies the admin. It
// never fails the caller: errors are logged. A nil Recorder discards.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{cfg: cfg, logger: logger, now: now}
}

// Record stores e and notifies the admin.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	ts := r.now()

	if r.cfg.Store != nil {
		err := r.cfg.Store.LogActivity(ctx, store.Activity{
			UserID:    e.UserID,
			Action:    e.Action,
			Data:      e.Data,
			CreatedAt: ts.UTC(),
		})
		if err != nil {
			r.logger.Error("activity log write failed", "action", e.Action, "error", err)
		}
	}

	if !r.cfg.Notify || r.cfg.Admin == nil || r.cfg.AdminID == 0 {
		return
	}
	if _, err := r.cfg.Admin.Send(ctx, message.NewTextMessage(r.cfg.AdminID, r.format(e, ts))); err != nil {
		r.logger.Warn("admin notification failed", "action", e.Action, "error", err)
	}
}

func (r *Recorder) format(e Entry, ts time.Time) string {
	summary := e.Summary
	if summary == "" {
		summary = e.Action
	}
	if e.Instance != "" {
		summary = fmt.Sprintf("[%s] %s", e.Instance, summary)
	}
	return fmt.Sprintf("📝 *Bot Log*\n\n• Action: %s\n• Time: %s\n• User: %d",
		message.EscapeMarkdown(summary), ts.Format(time.DateTime), e.UserID)
}
