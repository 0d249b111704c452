// Package message defines the platform-agnostic messages exchanged between
// bot instances and the request handlers.
package message

import "strconv"

// ParseMarkdown selects Telegram's legacy Markdown formatting.
const ParseMarkdown = "Markdown"

// Sender identifies the author of an inbound message.
type Sender struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// DisplayName returns the best human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch {
	case s.FirstName != "":
		return s.FirstName
	case s.Username != "":
		return "@" + s.Username
	default:
		return strconv.FormatInt(s.ID, 10)
	}
}

// Button is one inline keyboard button. Exactly one of URL or CallbackData is set.
type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Keyboard is an inline keyboard laid out as rows of buttons.
type Keyboard [][]Button
