package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/calorie-helper/internal/bot/handlers"
	"github.com/vladimiradmaev/calorie-helper/internal/bot/menus"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

type Bot struct {
	api        *tgbotapi.BotAPI
	handler    *handlers.UpdateHandler
	dispatcher *Dispatcher
}

func NewBot(token string, deps handlers.Dependencies) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Bot authorized", "account", api.Self.UserName)

	if err := menus.RegisterCommands(api); err != nil {
		logger.Warn("Failed to register command menu", "error", err)
	}

	b := &Bot{
		api:     api,
		handler: handlers.NewUpdateHandler(api, deps),
	}
	b.dispatcher = NewDispatcher(b.handleUpdate)
	return b, nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if err := b.handler.Handle(ctx, update); err != nil {
		logger.Error("Error handling update", "update_id", update.UpdateID, "error", err)
	}
}

// Start polls Telegram until ctx is cancelled, then waits for the updates
// already queued
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logger.Info("Bot is now listening for updates")

	// queued updates still finish after shutdown starts
	workCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Bot is shutting down")
			b.api.StopReceivingUpdates()
			b.dispatcher.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.dispatcher.Wait()
				return nil
			}
			userID := handlers.UserID(update)
			if userID == 0 {
				continue
			}
			b.dispatcher.Dispatch(workCtx, userID, update)
		}
	}
}
