package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/lookup"
	"github.com/flemzord/lookupbot/pkg/message"
)

const cleanupTimeout = 10 * time.Second

// statusMessage is the transient progress message of one request. It is
// removed at most once; a failed send leaves nothing to remove.
type statusMessage struct {
	m      channel.Messenger
	chatID int64
	id     int
	title  string
	logger *slog.Logger

	once sync.Once
}

func openStatus(ctx context.Context, m channel.Messenger, chatID int64, kind lookup.Kind, logger *slog.Logger) *statusMessage {
	s := &statusMessage{m: m, chatID: chatID, title: progressTitle(kind), logger: logger}
	id, err := m.Send(ctx, message.NewTextMessage(chatID, s.render(0)))
	if err != nil {
		logger.Warn("status message not sent", "error", err)
		return s
	}
	s.id = id
	return s
}

func (s *statusMessage) update(ctx context.Context, step int) {
	if s.id == 0 {
		return
	}
	if err := s.m.Edit(ctx, s.id, message.NewTextMessage(s.chatID, s.render(step))); err != nil {
		s.logger.Debug("status update failed", "step", step, "error", err)
	}
}

// close deletes the message. Errors are swallowed and the deletion
// proceeds even when ctx is already canceled.
func (s *statusMessage) close(ctx context.Context) {
	s.once.Do(func() {
		if s.id == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := s.m.Delete(ctx, s.chatID, s.id); err != nil {
			s.logger.Debug("status message not removed", "error", err)
		}
	})
}

func (s *statusMessage) render(step int) string {
	return s.title + "\n\n" + ProgressBar(step)
}

// ProgressBar renders step (0..ProgressSteps-1) as a bar and percentage.
func ProgressBar(step int) string {
	step = max(0, min(step, ProgressSteps))
	return strings.Repeat("▰", step) + strings.Repeat("▱", ProgressSteps-step) +
		" " + strconv.Itoa(step*100/ProgressSteps) + "%"
}

func progressTitle(kind lookup.Kind) string {
	if kind == lookup.KindNationalID {
		return "🆔 *Aadhar Family Lookup in Progress...*"
	}
	return "📱 *Phone Lookup in Progress...*"
}
