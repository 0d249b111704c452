package telegram

import (
	"time"

	"github.com/flemzord/lookupbot/pkg/message"
)

// convertInbound maps an update to an InboundMessage. ok is false for
// updates the bot does not act on.
func convertInbound(u *Update, instanceName string) (message.InboundMessage, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		in := message.InboundMessage{
			Instance:  instanceName,
			Timestamp: time.Now(),
			Sender:    convertSender(&cq.From),
			ChatID:    cq.From.ID,
			Callback:  &message.Callback{ID: cq.ID, Data: cq.Data},
		}
		if cq.Message != nil {
			in.ID = cq.Message.MessageID
			in.ChatID = cq.Message.Chat.ID
			in.Callback.MessageID = cq.Message.MessageID
		}
		return in, true

	case u.Message != nil && u.Message.Text != "":
		m := u.Message
		return message.InboundMessage{
			ID:        m.MessageID,
			Instance:  instanceName,
			Timestamp: time.Unix(int64(m.Date), 0),
			Sender:    convertSender(m.From),
			ChatID:    m.Chat.ID,
			Text:      m.Text,
		}, true
	}
	return message.InboundMessage{}, false
}

func convertSender(user *User) message.Sender {
	if user == nil {
		return message.Sender{}
	}
	return message.Sender{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
	}
}

func convertKeyboard(kb message.Keyboard) *InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	markup := &InlineKeyboardMarkup{InlineKeyboard: make([][]InlineKeyboardButton, 0, len(kb))}
	for _, row := range kb {
		buttons := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, InlineKeyboardButton{
				Text:         b.Text,
				URL:          b.URL,
				CallbackData: b.CallbackData,
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

func sendRequest(msg message.OutboundMessage) SendMessageRequest {
	return SendMessageRequest{
		ChatID:                msg.ChatID,
		Text:                  msg.Text,
		ParseMode:             msg.ParseMode,
		DisableWebPagePreview: msg.DisablePreview,
		ReplyMarkup:           convertKeyboard(msg.Keyboard),
	}
}

func editRequest(messageID int, msg message.OutboundMessage) EditMessageTextRequest {
	return EditMessageTextRequest{
		ChatID:                msg.ChatID,
		MessageID:             messageID,
		Text:                  msg.Text,
		ParseMode:             msg.ParseMode,
		DisableWebPagePreview: msg.DisablePreview,
		ReplyMarkup:           convertKeyboard(msg.Keyboard),
	}
}
