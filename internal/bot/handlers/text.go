package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/calorie-helper/internal/interfaces"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

// TextHandler handles text messages
type TextHandler struct {
	update       *UpdateHandler
	conversation interfaces.ConversationInterface
}

// NewTextHandler creates a new text handler
func NewTextHandler(update *UpdateHandler, conversation interfaces.ConversationInterface) *TextHandler {
	return &TextHandler{update: update, conversation: conversation}
}

// Handle processes a text message
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	logger.Debug("Received text", "user_id", message.From.ID, "length", len(message.Text))

	replies, err := h.conversation.HandleText(ctx, message.From.ID, message.Text)
	if err != nil {
		return err
	}
	return h.update.send(ctx, target{chatID: message.Chat.ID}, replies)
}
