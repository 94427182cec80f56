package conversation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// Button is an inline button; Data is returned as callback data
type Button struct {
	Text string
	Data string
}

// Reply is one outgoing message
type Reply struct {
	Text     string
	Markdown bool
	// Edit replaces the message whose button was pressed
	Edit bool
	// Toast is shown as a callback notification instead of a message
	Toast   bool
	Buttons [][]Button
	// MealIDs are the meals whose report this message shows
	MealIDs []string
}

// Callback data
const (
	cbAddCurrent     = "add_current"
	cbNewMeal        = "new_meal"
	cbOtherDay       = "other_day"
	cbConfirmSave    = "confirm_bulk_save"
	cbCancel         = "cancel_action"
	cbDeleteProduct  = "del_prod"
	cbEditMeal       = "edit_meal:"
	cbEditItem       = "edit_item:"
	cbEditBack       = "edit_back_to_meals"
	cbAction         = "action:"
	actionWeight     = "weight"
	actionKcal       = "kcal"
	actionDelete     = "delete"
	continuationText = "Прошло менее %d минут. Добавить к предыдущему приему?"
)

const (
	msgStart = "Привет! Я CalorieBot. \n" +
		"Просто напиши мне, что ты съел, например: 'Яблоко 150г, Творог 200г'.\n" +
		"Я автоматически рассчитаю калории и сохраню их в базу."
	msgHelp = "Команды:\n" +
		"/start - Начать работу\n" +
		"/database - Показать базу продуктов\n" +
		"/clear - Сбросить все записи за сегодня\n" +
		"/edit - Редактировать приемы пищи за сегодня\n" +
		"/sync - Синхронизировать с Google Docs сейчас\n" +
		"/add Название Калории - Добавить новый продукт\n" +
		"/del Название - Удалить продукт из базы\n" +
		"/cancel - Отменить текущее действие\n\n" +
		"Просто отправь текст с едой, чтобы добавить прием пищи."
	msgParseFailed      = "Извините, произошла ошибка при разборе текста (ИИ не смог распознать продукты). Попробуйте перефразировать."
	msgAskDate          = "📅 За какое число этот прием пищи?\nНапишите дату (например: 21.01) или 'вчера', 'позавчера'."
	msgDateInvalid      = "❌ Некорректная дата. Попробуйте еще раз или напишите 'отмена'."
	msgDateUnrecognized = "🤷 Не смог распознать дату. Напишите, например, '21.01' или 'вчера'."
	msgAskManualKcal    = "Я не знаю калорийность '%s'. Сколько в нем ккал на 100г?"
	msgOnlyNumber       = "Пожалуйста, введите только число."
	msgNumber           = "Пожалуйста, введите число."
	msgCancelled        = "Действие отменено."
	msgExpired          = "⌛ Действие устарело."
	msgUseButtons       = "Пожалуйста, выберите вариант кнопкой выше или отправьте /cancel."
	msgUnknownAction    = "Неизвестное действие."
	msgUnknownCommand   = "Неизвестная команда. Список команд: /help"
	msgNothingToSave    = "Нет продуктов для сохранения."
	msgSaved            = "✅ Успешно добавлено продуктов: %d"
	msgConfirmPending   = "Внести новый / новые продукты в базу данных?\n\n%s"
	msgEmptyCatalog     = "База данных пуста."
	msgCleared          = "🧹 Все записи за сегодня удалены из дневника."
	msgAddUsage         = "Формат: /add Название Калории\nПример: /add Чиабатта 260"
	msgAddUnparsed      = "Не удалось распознать название или калории. Попробуйте формат: /add Чиабатта 260"
	msgAddConfirm       = "Внести новый продукт в базу данных?\n\n🍎 **%s**\n🔥 **%d ккал на 100г**"
	msgDelUsage         = "Формат: /del Название\nПример: /del Алча"
	msgDelNotFound      = "Продукт '%s' не найден в базе."
	msgDelConfirm       = "Удалить значение из базы данных?\n\n❌ **%s - %d ккал**"
	msgDeleted          = "🗑 Продукт **%s** удален из базы."
	msgSyncNoDoc        = "❌ GOOGLE_DOC_ID не настроен."
	msgSyncBadDate      = "⚠️ Неверный формат даты. Используйте: /sync 25.01.26"
	msgSyncStarted      = "🔄 Синхронизирую данные за %s..."
	msgSyncDone         = "✅ Данные за %s успешно добавлены!"
	msgSyncEmpty        = "⚠️ Нет данных для синхронизации за %s или произошла ошибка."
	msgNoMealsToday     = "Сегодня вы еще ничего не записывали."
	msgPickMeal         = "Выберите прием пищи для редактирования:"
	msgPickItem         = "Выберите продукт для изменения:"
	msgMealNotFound     = "Прием пищи не найден."
	msgEntryNotFound    = "Запись не найдена."
	msgEditEntry        = "Редактирование: **%s**\nТекущие данные: %dг, %d ккал."
	msgAskWeight        = "Введите новый вес в граммах (только число):"
	msgAskKcal          = "Введите новое общее количество калорий:"
	msgWeightChanged    = "✅ Вес изменен на %dг. Калории пересчитаны."
	msgKcalChanged      = "✅ Калории изменены на %d ккал."
	msgEntryDeleted     = "✅ Удалено.\n\n%s"
)

func text(s string) Reply {
	return Reply{Text: s}
}

func toast(s string) Reply {
	return Reply{Text: s, Toast: true}
}

func mealChoiceReply(windowMinutes int) Reply {
	return Reply{
		Text: fmt.Sprintf(continuationText, windowMinutes),
		Buttons: [][]Button{
			{{Text: "➕ Добавить в текущий", Data: cbAddCurrent}},
			{{Text: "🆕 Новый прием", Data: cbNewMeal}},
			{{Text: "📅 Данные за другой день", Data: cbOtherDay}},
		},
	}
}

func confirmButtons() [][]Button {
	return [][]Button{
		{{Text: "✅ Внести", Data: cbConfirmSave}},
		{{Text: "❌ Не вносить", Data: cbCancel}},
	}
}

func pendingReply(pending []domain.PendingProduct) Reply {
	lines := make([]string, len(pending))
	for i, p := range pending {
		lines[i] = fmt.Sprintf("🔸 %s: %d ккал", capitalize(p.Name), int(p.KcalPer100))
	}
	return Reply{
		Text:    fmt.Sprintf(msgConfirmPending, strings.Join(lines, "\n")),
		Buttons: confirmButtons(),
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// escapeMarkdown protects names shown inside legacy Markdown messages
func escapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(s)
}

func formatAskManual(name string) string {
	return fmt.Sprintf(msgAskManualKcal, name)
}

func formatSaved(n int) string {
	return fmt.Sprintf(msgSaved, n)
}
