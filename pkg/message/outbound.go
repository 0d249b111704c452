package message

// OutboundMessage is a message to send, or the new content of an edited message.
type OutboundMessage struct {
	ChatID         int64    `json:"chat_id"`
	Text           string   `json:"text"`
	ParseMode      string   `json:"parse_mode,omitempty"`
	Keyboard       Keyboard `json:"keyboard,omitempty"`
	DisablePreview bool     `json:"disable_preview,omitempty"`
}

// NewTextMessage creates a Markdown outbound message.
func NewTextMessage(chatID int64, text string) OutboundMessage {
	return OutboundMessage{ChatID: chatID, Text: text, ParseMode: ParseMarkdown}
}

// WithKeyboard returns a copy of the message carrying the keyboard.
func (m OutboundMessage) WithKeyboard(kb Keyboard) OutboundMessage {
	m.Keyboard = kb
	return m
}
