// Package channel defines how request handlers talk back to a chat platform.
package channel

import (
	"context"

	"github.com/flemzord/lookupbot/pkg/message"
)

// Messenger sends, edits and removes messages on behalf of one bot instance.
// Every bot instance (primary or clone) provides its own Messenger.
type Messenger interface {
	// Send delivers msg and returns the platform message ID.
	Send(ctx context.Context, msg message.OutboundMessage) (int, error)

	// Edit replaces the content of a message previously sent by this instance.
	Edit(ctx context.Context, messageID int, msg message.OutboundMessage) error

	// Delete removes a message previously sent by this instance.
	Delete(ctx context.Context, chatID int64, messageID int) error

	// AnswerCallback acknowledges a button press, optionally with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
