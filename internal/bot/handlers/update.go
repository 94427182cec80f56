package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/calorie-helper/internal/bot/keyboards"
	"github.com/vladimiradmaev/calorie-helper/internal/conversation"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/interfaces"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

const msgFailure = "Произошла ошибка. Попробуйте еще раз позже."

// UpdateHandler handles telegram updates and coordinates other handlers
type UpdateHandler struct {
	api             Sender
	userService     interfaces.UserServiceInterface
	conversation    interfaces.ConversationInterface
	errorHandler    *apperrors.Handler
	callbackHandler *CallbackHandler
	commandHandler  *CommandHandler
	textHandler     *TextHandler
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(api Sender, deps Dependencies) *UpdateHandler {
	h := &UpdateHandler{
		api:          api,
		userService:  deps.UserService,
		conversation: deps.Conversation,
		errorHandler: apperrors.NewHandler(logger.GetLogger()),
	}
	h.callbackHandler = NewCallbackHandler(h, deps.Conversation)
	h.commandHandler = NewCommandHandler(h, deps.Conversation)
	h.textHandler = NewTextHandler(h, deps.Conversation)
	return h
}

// UserID returns the telegram user an update comes from, 0 for updates the
// bot ignores
func UserID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// Handle processes a telegram update. Failures of the conversation are
// logged and answered with a generic message; the returned error is about
// talking to Telegram only.
func (h *UpdateHandler) Handle(ctx context.Context, update tgbotapi.Update) error {
	userID := UserID(update)
	if userID == 0 {
		return nil
	}

	if _, err := h.userService.RegisterUser(ctx, userID); err != nil {
		return h.fail(ctx, update, err)
	}

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = h.callbackHandler.Handle(ctx, update.CallbackQuery)
	case update.Message.IsCommand():
		err = h.commandHandler.Handle(ctx, update.Message)
	case update.Message.Text != "":
		err = h.textHandler.Handle(ctx, update.Message)
	}
	if err != nil {
		return h.fail(ctx, update, err)
	}
	return nil
}

func (h *UpdateHandler) fail(ctx context.Context, update tgbotapi.Update, err error) error {
	h.errorHandler.Handle(ctx, err)

	var chatID int64
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		if _, ackErr := h.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); ackErr != nil {
			logger.Warn("Failed to answer callback query", "error", ackErr)
		}
		chatID = update.CallbackQuery.Message.Chat.ID
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	default:
		return nil
	}

	if _, sendErr := h.api.Send(tgbotapi.NewMessage(chatID, msgFailure)); sendErr != nil {
		return fmt.Errorf("failed to send failure message: %w", sendErr)
	}
	return nil
}

// target is where replies go: the chat, the message to edit and the
// callback to answer
type target struct {
	chatID     int64
	messageID  int
	callbackID string
}

// send delivers replies in order. Toasts answer the callback; without a
// callback they become plain messages.
func (h *UpdateHandler) send(ctx context.Context, to target, replies []conversation.Reply) error {
	answered := false
	for _, r := range replies {
		if r.Toast && to.callbackID != "" && !answered {
			if _, err := h.api.Request(tgbotapi.NewCallback(to.callbackID, r.Text)); err != nil {
				return fmt.Errorf("failed to answer callback: %w", err)
			}
			answered = true
			continue
		}

		sent, err := h.api.Send(h.chattable(to, r))
		if err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
		h.conversation.RecordReportMessage(ctx, r.MealIDs, sent.MessageID)
	}

	if to.callbackID != "" && !answered {
		if _, err := h.api.Request(tgbotapi.NewCallback(to.callbackID, "")); err != nil {
			logger.Warn("Failed to answer callback query", "error", err)
		}
	}
	return nil
}

func (h *UpdateHandler) chattable(to target, r conversation.Reply) tgbotapi.Chattable {
	markup := keyboards.Inline(r.Buttons)

	if r.Edit && to.messageID != 0 {
		msg := tgbotapi.NewEditMessageText(to.chatID, to.messageID, r.Text)
		msg.ReplyMarkup = markup
		if r.Markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		return msg
	}

	msg := tgbotapi.NewMessage(to.chatID, r.Text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	return msg
}
