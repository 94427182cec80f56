package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/bot/state"
	"github.com/vladimiradmaev/calorie-helper/internal/catalog"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

const catalogListLimit = 70

// HandleCommand processes a slash command. Any operation in progress is
// abandoned first.
func (c *Controller) HandleCommand(ctx context.Context, userID int64, name, args string) ([]Reply, error) {
	unlock := c.locks.Lock(userID)
	defer unlock()

	if err := c.store.Clear(ctx, userID); err != nil {
		return nil, err
	}
	args = strings.TrimSpace(args)

	switch name {
	case "start":
		return []Reply{text(msgStart)}, nil
	case "help":
		return []Reply{text(msgHelp)}, nil
	case "cancel":
		return []Reply{text(msgCancelled)}, nil
	case "database":
		return c.cmdDatabase(ctx)
	case "clear", "resetday":
		if err := c.food.ClearDay(ctx, userID, c.now()); err != nil {
			return nil, err
		}
		return []Reply{text(msgCleared)}, nil
	case "edit":
		return c.startEdit(ctx, userID, false)
	case "add":
		return c.cmdAdd(ctx, userID, args)
	case "del":
		return c.cmdDel(ctx, userID, args)
	case "sync":
		return c.cmdSync(ctx, userID, args)
	}
	return []Reply{text(msgUnknownCommand)}, nil
}

func (c *Controller) cmdDatabase(ctx context.Context) ([]Reply, error) {
	products, err := c.catalog.List(ctx, catalogListLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return []Reply{text(msgEmptyCatalog)}, nil
	}

	var b strings.Builder
	b.WriteString("Продукты в базе:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "%s - %d ккал\n", p.Name, int(p.KcalPer100))
	}
	return []Reply{text(b.String())}, nil
}

func (c *Controller) cmdAdd(ctx context.Context, userID int64, args string) ([]Reply, error) {
	if args == "" {
		return []Reply{text(msgAddUsage)}, nil
	}
	name, kcal, ok := utils.ParseAddCommand(args)
	if !ok {
		return []Reply{text(msgAddUnparsed)}, nil
	}

	next := &state.Context{
		State:   state.None,
		Pending: []domain.PendingProduct{{Name: catalog.Normalize(name), KcalPer100: float64(kcal)}},
	}
	if err := c.store.Set(ctx, userID, next); err != nil {
		return nil, err
	}
	return []Reply{{
		Text:     fmt.Sprintf(msgAddConfirm, escapeMarkdown(capitalize(name)), kcal),
		Markdown: true,
		Buttons: [][]Button{{
			{Text: "✅ Внести", Data: cbConfirmSave},
			{Text: "❌ Не вносить", Data: cbCancel},
		}},
	}}, nil
}

func (c *Controller) cmdDel(ctx context.Context, userID int64, args string) ([]Reply, error) {
	query := catalog.Normalize(args)
	if query == "" {
		return []Reply{text(msgDelUsage)}, nil
	}

	product, err := c.catalog.Lookup(ctx, query)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return []Reply{text(fmt.Sprintf(msgDelNotFound, query))}, nil
	}

	if err := c.store.Set(ctx, userID, &state.Context{State: state.None, DeleteProduct: product.Name}); err != nil {
		return nil, err
	}
	return []Reply{{
		Text:     fmt.Sprintf(msgDelConfirm, escapeMarkdown(product.Name), int(product.KcalPer100)),
		Markdown: true,
		Buttons: [][]Button{{
			{Text: "🗑 Удалить", Data: cbDeleteProduct},
			{Text: "↩️ Отмена", Data: cbCancel},
		}},
	}}, nil
}

func (c *Controller) handleDeleteProduct(ctx context.Context, userID int64, sc *state.Context) ([]Reply, error) {
	if sc.DeleteProduct == "" {
		return []Reply{toast(msgExpired)}, nil
	}

	name := sc.DeleteProduct
	delErr := c.catalog.Delete(ctx, name)
	if delErr != nil && !apperrors.IsNotFound(delErr) {
		return nil, delErr
	}

	sc.DeleteProduct = ""
	if err := c.store.Set(ctx, userID, sc); err != nil {
		return nil, err
	}
	if delErr != nil {
		return []Reply{{Text: fmt.Sprintf(msgDelNotFound, name), Edit: true}}, nil
	}
	return []Reply{{Text: fmt.Sprintf(msgDeleted, escapeMarkdown(name)), Markdown: true, Edit: true}}, nil
}

func (c *Controller) cmdSync(ctx context.Context, userID int64, args string) ([]Reply, error) {
	if c.sync == nil || !c.sync.Enabled() {
		return []Reply{text(msgSyncNoDoc)}, nil
	}

	day, err := c.syncDay(ctx, userID, args)
	if errors.Is(err, utils.ErrDateUnrecognized) {
		return []Reply{text(msgSyncBadDate)}, nil
	}
	if err != nil {
		return nil, err
	}

	label := day.In(c.loc).Format("02.01.06")
	replies := []Reply{text(fmt.Sprintf(msgSyncStarted, label))}

	ok, err := c.sync.SyncUserDay(ctx, userID, day)
	if err != nil {
		logger.Error("Manual sync failed", "user_id", userID, "error", err)
		ok = false
	}
	if ok {
		return append(replies, text(fmt.Sprintf(msgSyncDone, label))), nil
	}
	return append(replies, text(fmt.Sprintf(msgSyncEmpty, label))), nil
}

// syncDay is the explicit date argument or, without one, the day of the
// user's latest entry
func (c *Controller) syncDay(ctx context.Context, userID int64, args string) (time.Time, error) {
	if args != "" {
		return utils.ParseSyncDate(args, c.loc)
	}
	return c.sync.DefaultDay(ctx, userID)
}
