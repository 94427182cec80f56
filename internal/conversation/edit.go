package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vladimiradmaev/calorie-helper/internal/bot/state"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/services"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

// startEdit shows today's meals; edit is true when the menu replaces the
// message it was opened from
func (c *Controller) startEdit(ctx context.Context, userID int64, edit bool) ([]Reply, error) {
	meals, err := c.edit.TodayMeals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		if err := c.store.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{{Text: msgNoMealsToday, Edit: edit}}, nil
	}

	buttons := make([][]Button, 0, len(meals)+1)
	for _, m := range meals {
		buttons = append(buttons, []Button{{
			Text: fmt.Sprintf("🕒 %s (%d прод.)", m.Time.In(c.loc).Format("15:04"), m.Items),
			Data: cbEditMeal + m.MealID,
		}})
	}
	buttons = append(buttons, []Button{{Text: "❌ Отмена", Data: cbCancel}})

	if err := c.store.Set(ctx, userID, &state.Context{State: state.AwaitingMealSelect}); err != nil {
		return nil, err
	}
	return []Reply{{Text: msgPickMeal, Edit: edit, Buttons: buttons}}, nil
}

// handleEditCallback handles the edit menu buttons; ok is false when data
// is not an edit callback
func (c *Controller) handleEditCallback(ctx context.Context, userID int64, sc *state.Context, data string) ([]Reply, bool, error) {
	switch {
	case data == cbEditBack:
		replies, err := c.startEdit(ctx, userID, true)
		return replies, true, err

	case strings.HasPrefix(data, cbEditMeal):
		replies, err := c.showMealItems(ctx, userID, strings.TrimPrefix(data, cbEditMeal))
		return replies, true, err

	case strings.HasPrefix(data, cbEditItem):
		id, err := parseEntryID(strings.TrimPrefix(data, cbEditItem))
		if err != nil {
			return []Reply{toast(msgEntryNotFound)}, true, nil
		}
		replies, err := c.showEntry(ctx, userID, id)
		return replies, true, err

	case strings.HasPrefix(data, cbAction):
		parts := strings.Split(strings.TrimPrefix(data, cbAction), ":")
		if len(parts) != 2 {
			return []Reply{toast(msgUnknownAction)}, true, nil
		}
		id, err := parseEntryID(parts[1])
		if err != nil {
			return []Reply{toast(msgEntryNotFound)}, true, nil
		}
		replies, err := c.handleEditAction(ctx, userID, sc, parts[0], id)
		return replies, true, err
	}
	return nil, false, nil
}

func (c *Controller) showMealItems(ctx context.Context, userID int64, mealID string) ([]Reply, error) {
	items, err := c.edit.MealItems(ctx, userID, mealID)
	if errors.Is(err, apperrors.ErrMealNotFound) {
		return []Reply{toast(msgMealNotFound)}, nil
	}
	if err != nil {
		return nil, err
	}

	buttons := make([][]Button, 0, len(items)+1)
	for _, e := range items {
		weight := ""
		if e.WeightG > 0 {
			weight = fmt.Sprintf(" (%dг)", int(e.WeightG))
		}
		buttons = append(buttons, []Button{{
			Text: fmt.Sprintf("🍴 %s%s - %d ккал", capitalize(e.ProductName), weight, int(e.KcalTotal)),
			Data: cbEditItem + strconv.FormatUint(uint64(e.ID), 10),
		}})
	}
	buttons = append(buttons, []Button{{Text: "⬅️ Назад", Data: cbEditBack}})

	if err := c.store.Set(ctx, userID, &state.Context{State: state.AwaitingItemSelect, MealID: mealID}); err != nil {
		return nil, err
	}
	return []Reply{{Text: msgPickItem, Edit: true, Buttons: buttons}}, nil
}

func (c *Controller) showEntry(ctx context.Context, userID int64, entryID uint) ([]Reply, error) {
	entry, err := c.edit.Entry(ctx, userID, entryID)
	if errors.Is(err, apperrors.ErrEntryNotFound) {
		return []Reply{toast(msgEntryNotFound)}, nil
	}
	if err != nil {
		return nil, err
	}

	id := strconv.FormatUint(uint64(entry.ID), 10)
	buttons := [][]Button{
		{
			{Text: "⚖️ Вес", Data: cbAction + actionWeight + ":" + id},
			{Text: "🔥 Калории", Data: cbAction + actionKcal + ":" + id},
		},
		{{Text: "🗑 Удалить", Data: cbAction + actionDelete + ":" + id}},
		{{Text: "⬅️ Назад", Data: cbEditMeal + entry.MealID}},
	}

	next := &state.Context{State: state.AwaitingFieldSelect, MealID: entry.MealID, EntryID: entry.ID}
	if err := c.store.Set(ctx, userID, next); err != nil {
		return nil, err
	}
	return []Reply{{
		Text:     fmt.Sprintf(msgEditEntry, escapeMarkdown(entry.ProductName), int(entry.WeightG), int(entry.KcalTotal)),
		Markdown: true,
		Edit:     true,
		Buttons:  buttons,
	}}, nil
}

func (c *Controller) handleEditAction(ctx context.Context, userID int64, sc *state.Context, action string, entryID uint) ([]Reply, error) {
	switch action {
	case actionDelete:
		res, err := c.edit.Delete(ctx, userID, entryID)
		if errors.Is(err, apperrors.ErrEntryNotFound) {
			return []Reply{toast(msgEntryNotFound)}, nil
		}
		if err != nil {
			return nil, err
		}
		if err := c.store.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{{Text: fmt.Sprintf(msgEntryDeleted, res.Report.Text), Edit: true}}, nil

	case actionWeight, actionKcal:
		if _, err := c.edit.Entry(ctx, userID, entryID); err != nil {
			if errors.Is(err, apperrors.ErrEntryNotFound) {
				return []Reply{toast(msgEntryNotFound)}, nil
			}
			return nil, err
		}
		next := &state.Context{State: state.AwaitingEditWeight, MealID: sc.MealID, EntryID: entryID}
		prompt := msgAskWeight
		if action == actionKcal {
			next.State = state.AwaitingEditKcal
			prompt = msgAskKcal
		}
		if err := c.store.Set(ctx, userID, next); err != nil {
			return nil, err
		}
		return []Reply{{Text: prompt, Edit: true}}, nil
	}
	return []Reply{toast(msgUnknownAction)}, nil
}

func (c *Controller) handleEditValue(ctx context.Context, userID int64, sc *state.Context, msg string) ([]Reply, error) {
	value, ok := utils.ExtractNumber(msg)
	if !ok || value < 0 {
		return []Reply{text(msgNumber)}, nil
	}

	var (
		res  *services.EditResult
		err  error
		conf string
	)
	if sc.State == state.AwaitingEditWeight {
		res, err = c.edit.UpdateWeight(ctx, userID, sc.EntryID, value)
		conf = fmt.Sprintf(msgWeightChanged, int(value))
	} else {
		res, err = c.edit.UpdateKcal(ctx, userID, sc.EntryID, value)
		conf = fmt.Sprintf(msgKcalChanged, int(value))
	}

	if clearErr := c.store.Clear(ctx, userID); clearErr != nil {
		return nil, clearErr
	}
	if errors.Is(err, apperrors.ErrEntryNotFound) {
		return []Reply{text(msgEntryNotFound)}, nil
	}
	if err != nil {
		return nil, err
	}
	return []Reply{text(conf), text(res.Report.Text)}, nil
}

func parseEntryID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	return uint(id), err
}
