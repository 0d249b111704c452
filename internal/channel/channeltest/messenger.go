// Package channeltest provides an in-memory channel.Messenger for tests.
package channeltest

import (
	"context"
	"sync"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Op is the kind of call recorded by Messenger.
type Op string

// Recorded operations.
const (
	OpSend   Op = "send"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
	OpAnswer Op = "answer"
)

// Call is one recorded Messenger call.
type Call struct {
	Op        Op
	MessageID int
	Msg       message.OutboundMessage
	Text      string
}

// Messenger records every call. The optional hooks override the default
// success behavior.
type Messenger struct {
	mu     sync.Mutex
	calls  []Call
	nextID int

	SendFunc   func(ctx context.Context, msg message.OutboundMessage) error
	DeleteFunc func(ctx context.Context, chatID int64, messageID int) error
}

var _ channel.Messenger = (*Messenger)(nil)

// Send implements channel.Messenger.
func (m *Messenger) Send(ctx context.Context, msg message.OutboundMessage) (int, error) {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, msg); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.calls = append(m.calls, Call{Op: OpSend, MessageID: m.nextID, Msg: msg})
	return m.nextID, nil
}

// Edit implements channel.Messenger.
func (m *Messenger) Edit(_ context.Context, messageID int, msg message.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpEdit, MessageID: messageID, Msg: msg})
	return nil
}

// Delete implements channel.Messenger.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, chatID, messageID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpDelete, MessageID: messageID})
	return nil
}

// AnswerCallback implements channel.Messenger.
func (m *Messenger) AnswerCallback(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpAnswer, Text: text})
	return nil
}

// Calls returns a copy of every recorded call.
func (m *Messenger) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Call, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Sent returns the outbound messages passed to Send, in order.
func (m *Messenger) Sent() []message.OutboundMessage {
	var out []message.OutboundMessage
	for _, c := range m.Calls() {
		if c.Op == OpSend {
			out = append(out, c.Msg)
		}
	}
	return out
}

// Count returns how many calls of the given kind were recorded.
func (m *Messenger) Count(op Op) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}
