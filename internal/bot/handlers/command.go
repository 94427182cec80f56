package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/calorie-helper/internal/interfaces"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

// CommandHandler handles bot commands
type CommandHandler struct {
	update       *UpdateHandler
	conversation interfaces.ConversationInterface
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(update *UpdateHandler, conversation interfaces.ConversationInterface) *CommandHandler {
	return &CommandHandler{update: update, conversation: conversation}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	logger.Info("Handling command", "command", message.Command(), "user_id", message.From.ID)

	replies, err := h.conversation.HandleCommand(ctx, message.From.ID, message.Command(), message.CommandArguments())
	if err != nil {
		return err
	}
	return h.update.send(ctx, target{chatID: message.Chat.ID}, replies)
}
