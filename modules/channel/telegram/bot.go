package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flemzord/lookupbot/internal/access"
	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Compile-time interface guards.
var (
	_ channel.Messenger        = (*Bot)(nil)
	_ instance.Runner          = (*Bot)(nil)
	_ access.MembershipChecker = (*Bot)(nil)
)

// Bot is one Telegram bot identity: it polls for updates, hands each one
// to its handler on a new goroutine, and sends replies.
type Bot struct {
	client *Client
	name   string
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	handler  instance.Handler
	inflight sync.WaitGroup
}

func newBot(client *Client, name string, config Config, logger *slog.Logger, h instance.Handler) *Bot {
	return &Bot{
		client:  client,
		name:    name,
		config:  config,
		logger:  logger.With("instance", name),
		handler: h,
	}
}

// Name returns the instance name used in logs and inbound messages.
func (b *Bot) Name() string {
	return b.name
}

func (b *Bot) bind(h instance.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Run implements instance.Runner. It returns instance.ErrConflict when
// another process polls the same token. In-flight handlers are waited
// for before returning.
func (b *Bot) Run(ctx context.Context, ready func()) error {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h == nil {
		return errors.New("telegram: no handler bound")
	}

	if err := b.client.DeleteWebhook(ctx); err != nil {
		if fatal(err) {
			return err
		}
		b.logger.Warn("deleteWebhook failed", "error", err)
	}

	p := newPoller(b.client, b.logger, b.config)
	err := p.run(ctx, ready, func(u Update) { b.dispatch(ctx, h, u) })
	b.inflight.Wait()
	return err
}

func (b *Bot) dispatch(ctx context.Context, h instance.Handler, u Update) {
	msg, ok := convertInbound(&u, b.name)
	if !ok {
		b.logger.Debug("skipping update", "update_id", u.UpdateID)
		return
	}
	b.inflight.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("update handler panicked", "update_id", u.UpdateID, "panic", r)
			}
		}()
		h(ctx, b, msg)
	})
}

// Send implements channel.Messenger.
func (b *Bot) Send(ctx context.Context, msg message.OutboundMessage) (int, error) {
	sent, err := b.client.SendMessage(ctx, sendRequest(msg))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// Edit implements channel.Messenger.
func (b *Bot) Edit(ctx context.Context, messageID int, msg message.OutboundMessage) error {
	_, err := b.client.EditMessageText(ctx, editRequest(messageID, msg))
	return err
}

// Delete implements channel.Messenger.
func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	return b.client.DeleteMessage(ctx, chatID, messageID)
}

// AnswerCallback implements channel.Messenger.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return b.client.AnswerCallbackQuery(ctx, callbackID, text)
}

// MemberStatus implements access.MembershipChecker.
func (b *Bot) MemberStatus(ctx context.Context, group string, userID int64) (string, error) {
	member, err := b.client.GetChatMember(ctx, group, userID)
	if err != nil {
		return "", fmt.Errorf("telegram: getChatMember %s: %w", group, err)
	}
	return member.Status, nil
}
