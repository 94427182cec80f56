package menus

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Commands is the command menu shown by Telegram clients
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Начать работу"},
		{Command: "help", Description: "Список команд"},
		{Command: "edit", Description: "Редактировать приемы пищи за сегодня"},
		{Command: "database", Description: "Показать базу продуктов"},
		{Command: "add", Description: "Добавить продукт: /add Название Калории"},
		{Command: "del", Description: "Удалить продукт: /del Название"},
		{Command: "sync", Description: "Синхронизировать с Google Docs"},
		{Command: "clear", Description: "Сбросить записи за сегодня"},
		{Command: "cancel", Description: "Отменить текущее действие"},
	}
}

// RegisterCommands publishes the command menu
func RegisterCommands(api interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}) error {
	_, err := api.Request(tgbotapi.NewSetMyCommands(Commands()...))
	return err
}
