package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/calorie-helper/internal/interfaces"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	update       *UpdateHandler
	conversation interfaces.ConversationInterface
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(update *UpdateHandler, conversation interfaces.ConversationInterface) *CallbackHandler {
	return &CallbackHandler{update: update, conversation: conversation}
}

// Handle processes a callback query. Replies marked as edits replace the
// message that carried the button.
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	replies, err := h.conversation.HandleCallback(ctx, query.From.ID, query.Data)
	if err != nil {
		return err
	}

	to := target{callbackID: query.ID}
	if query.Message != nil {
		to.chatID = query.Message.Chat.ID
		to.messageID = query.Message.MessageID
	} else {
		to.chatID = query.From.ID
	}
	return h.update.send(ctx, to, replies)
}
