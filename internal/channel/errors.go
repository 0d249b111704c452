package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrBlocked indicates the recipient blocked the bot or never started it.
	ErrBlocked = errors.New("channel: recipient unreachable")

	// ErrMessageGone indicates the message to edit or delete no longer exists.
	ErrMessageGone = errors.New("channel: message not found")
)
