package message

import (
	"strings"
	"time"
	"unicode"
)

// InboundMessage is a text message or button press received by a bot instance.
type InboundMessage struct {
	ID        int       `json:"id"`
	Instance  string    `json:"instance"`
	Timestamp time.Time `json:"timestamp"`
	Sender    Sender    `json:"sender"`
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text,omitempty"`
	Callback  *Callback `json:"callback,omitempty"`
}

// Callback carries an inline keyboard button press.
type Callback struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	MessageID int    `json:"message_id"`
}

// IsCallback reports whether the message is a button press.
func (m *InboundMessage) IsCallback() bool {
	return m.Callback != nil
}

// Command splits a "/name@bot args" text into its lower-cased name and the
// trimmed argument string. ok is false when the text is not a command.
func (m *InboundMessage) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
