package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/bot/state"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/services"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

// FoodLog stores submissions and renders reports
type FoodLog interface {
	Ingest(ctx context.Context, req services.IngestRequest) (*services.IngestResult, error)
	ResumeManualKcal(ctx context.Context, userID int64, pk domain.PendingKcal, per100 float64) (*services.ResumeResult, error)
	LastMeal(ctx context.Context, userID int64, now time.Time) (*domain.Meal, error)
	ClearDay(ctx context.Context, userID int64, t time.Time) error
	RecordReportMessage(ctx context.Context, mealIDs []string, messageID int) error
}

// Editor changes logged entries
type Editor interface {
	TodayMeals(ctx context.Context, userID int64) ([]services.MealSummary, error)
	MealItems(ctx context.Context, userID int64, mealID string) ([]domain.LogEntry, error)
	Entry(ctx context.Context, userID int64, entryID uint) (*domain.LogEntry, error)
	UpdateWeight(ctx context.Context, userID int64, entryID uint, weight float64) (*services.EditResult, error)
	UpdateKcal(ctx context.Context, userID int64, entryID uint, kcal float64) (*services.EditResult, error)
	Delete(ctx context.Context, userID int64, entryID uint) (*services.EditResult, error)
}

// Catalog manages known products
type Catalog interface {
	Lookup(ctx context.Context, name string) (*domain.Product, error)
	List(ctx context.Context, limit int) ([]domain.Product, error)
	AddPending(ctx context.Context, pending []domain.PendingProduct) (int, error)
	Delete(ctx context.Context, name string) error
}

// Syncer copies a day to the external document
type Syncer interface {
	Enabled() bool
	DefaultDay(ctx context.Context, userID int64) (time.Time, error)
	SyncUserDay(ctx context.Context, userID int64, day time.Time) (bool, error)
}

// Deps are the collaborators of a Controller
type Deps struct {
	Store   state.Store
	FoodLog FoodLog
	Editor  Editor
	Catalog Catalog
	Syncer  Syncer
	// Location is the user time zone
	Location *time.Location
	// Window is how long after a meal new text may still extend it
	Window time.Duration
}

// Controller drives the per-user conversation. It knows nothing about the
// chat transport: every entry point returns the replies to send.
type Controller struct {
	store   state.Store
	food    FoodLog
	edit    Editor
	catalog Catalog
	sync    Syncer
	loc     *time.Location
	window  time.Duration
	now     func() time.Time
	locks   *keyedMutex
}

// NewController creates a conversation controller
func NewController(d Deps) *Controller {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	window := d.Window
	if window <= 0 {
		window = time.Hour
	}
	return &Controller{
		store:   d.Store,
		food:    d.FoodLog,
		edit:    d.Editor,
		catalog: d.Catalog,
		sync:    d.Syncer,
		loc:     loc,
		window:  window,
		now:     time.Now,
		locks:   newKeyedMutex(),
	}
}

// HandleText processes a plain text message
func (c *Controller) HandleText(ctx context.Context, userID int64, msg string) ([]Reply, error) {
	unlock := c.locks.Lock(userID)
	defer unlock()

	sc, err := c.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch sc.State {
	case state.AwaitingBackdateDate:
		return c.handleBackdate(ctx, userID, sc, msg)
	case state.AwaitingManualKcal:
		return c.handleManualKcal(ctx, userID, sc, msg)
	case state.AwaitingEditWeight, state.AwaitingEditKcal:
		return c.handleEditValue(ctx, userID, sc, msg)
	case state.AwaitingMealChoice, state.AwaitingMealSelect, state.AwaitingItemSelect, state.AwaitingFieldSelect:
		return []Reply{text(msgUseButtons)}, nil
	default:
		return c.handleIdleText(ctx, userID, sc, msg)
	}
}

func (c *Controller) handleIdleText(ctx context.Context, userID int64, sc *state.Context, msg string) ([]Reply, error) {
	if !utils.HasDateOrTimeToken(msg) {
		now := c.now()
		last, err := c.food.LastMeal(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if last != nil {
			since := now.Sub(last.UpdatedAt)
			if since >= 0 && since < c.window {
				sc.State = state.AwaitingMealChoice
				sc.Text = msg
				sc.MealID = last.ID
				if err := c.store.Set(ctx, userID, sc); err != nil {
					return nil, err
				}
				return []Reply{mealChoiceReply(int(c.window.Minutes()))}, nil
			}
		}
	}
	return c.ingest(ctx, userID, sc, msg, "")
}

// ingest runs one submission and moves the context to what it needs next
func (c *Controller) ingest(ctx context.Context, userID int64, sc *state.Context, msg, appendTo string) ([]Reply, error) {
	res, err := c.food.Ingest(ctx, services.IngestRequest{UserID: userID, Text: msg, AppendMealID: appendTo})
	if err != nil {
		return nil, err
	}

	if !res.Parsed {
		next := &state.Context{State: state.None, Pending: sc.Pending}
		if err := c.store.Set(ctx, userID, next); err != nil {
			return nil, err
		}
		return []Reply{text(msgParseFailed)}, nil
	}

	if res.Suspended != nil {
		next := &state.Context{
			State:       state.AwaitingManualKcal,
			PendingKcal: res.Suspended,
			Pending:     res.Pending,
		}
		if err := c.store.Set(ctx, userID, next); err != nil {
			return nil, err
		}
		return []Reply{text(formatAskManual(res.Suspended.Name))}, nil
	}

	replies := make([]Reply, 0, len(res.Reports)+1)
	for _, r := range res.Reports {
		replies = append(replies, Reply{Text: r.Text, MealIDs: r.MealIDs})
	}
	if len(res.Pending) > 0 {
		replies = append(replies, pendingReply(res.Pending))
	}

	next := &state.Context{State: state.None, Pending: res.Pending}
	if err := c.store.Set(ctx, userID, next); err != nil {
		return nil, err
	}
	return replies, nil
}

func (c *Controller) handleBackdate(ctx context.Context, userID int64, sc *state.Context, msg string) ([]Reply, error) {
	if utils.IsCancelWord(msg) {
		if err := c.store.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{text(msgCancelled)}, nil
	}

	day, err := utils.ParseBackdate(msg, c.now().In(c.loc))
	switch {
	case errors.Is(err, utils.ErrDateInvalid):
		return []Reply{text(msgDateInvalid)}, nil
	case err != nil:
		return []Reply{text(msgDateUnrecognized)}, nil
	}

	held := day.Format("02/01/06") + "\n" + sc.Text
	logger.Debug("Backdated submission", "user_id", userID, "day", day.Format("2006-01-02"))
	return c.ingest(ctx, userID, sc, held, "")
}

func (c *Controller) handleManualKcal(ctx context.Context, userID int64, sc *state.Context, msg string) ([]Reply, error) {
	if utils.IsCancelWord(msg) {
		if err := c.store.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{text(msgCancelled)}, nil
	}

	per100, ok := utils.ExtractNumber(msg)
	if !ok || per100 < 0 || sc.PendingKcal == nil {
		return []Reply{text(msgOnlyNumber)}, nil
	}

	res, err := c.food.ResumeManualKcal(ctx, userID, *sc.PendingKcal, per100)
	if err != nil {
		return nil, err
	}

	pending := services.MergePending(sc.Pending, res.Pending)
	if err := c.store.Set(ctx, userID, &state.Context{State: state.None, Pending: pending}); err != nil {
		return nil, err
	}
	return []Reply{
		{Text: res.Report.Text, MealIDs: res.Report.MealIDs},
		pendingReply(pending),
	}, nil
}

// HandleCallback processes an inline button press
func (c *Controller) HandleCallback(ctx context.Context, userID int64, data string) ([]Reply, error) {
	unlock := c.locks.Lock(userID)
	defer unlock()

	sc, err := c.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch data {
	case cbAddCurrent, cbNewMeal, cbOtherDay:
		return c.handleMealChoice(ctx, userID, sc, data)
	case cbConfirmSave:
		return c.handleConfirmSave(ctx, userID, sc)
	case cbCancel:
		if err := c.store.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{{Text: msgCancelled, Edit: true}}, nil
	case cbDeleteProduct:
		return c.handleDeleteProduct(ctx, userID, sc)
	}

	if replies, ok, err := c.handleEditCallback(ctx, userID, sc, data); ok || err != nil {
		return replies, err
	}
	return []Reply{toast(msgUnknownAction)}, nil
}

func (c *Controller) handleMealChoice(ctx context.Context, userID int64, sc *state.Context, data string) ([]Reply, error) {
	if sc.State != state.AwaitingMealChoice {
		return []Reply{toast(msgExpired)}, nil
	}

	switch data {
	case cbAddCurrent:
		return c.ingest(ctx, userID, sc, sc.Text, sc.MealID)
	case cbNewMeal:
		return c.ingest(ctx, userID, sc, sc.Text, "")
	default:
		sc.State = state.AwaitingBackdateDate
		if err := c.store.Set(ctx, userID, sc); err != nil {
			return nil, err
		}
		return []Reply{text(msgAskDate)}, nil
	}
}

func (c *Controller) handleConfirmSave(ctx context.Context, userID int64, sc *state.Context) ([]Reply, error) {
	if len(sc.Pending) == 0 {
		return []Reply{toast(msgNothingToSave)}, nil
	}

	saved, err := c.catalog.AddPending(ctx, sc.Pending)
	if err != nil {
		return nil, err
	}
	sc.Pending = nil
	if err := c.store.Set(ctx, userID, sc); err != nil {
		return nil, err
	}
	return []Reply{{Text: formatSaved(saved), Edit: true}}, nil
}

// RecordReportMessage remembers which chat message showed the meals
func (c *Controller) RecordReportMessage(ctx context.Context, mealIDs []string, messageID int) {
	if len(mealIDs) == 0 {
		return
	}
	if err := c.food.RecordReportMessage(ctx, mealIDs, messageID); err != nil {
		logger.Warn("Failed to record report message", "message_id", messageID, "error", err)
	}
}
