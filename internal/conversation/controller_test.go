package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vladimiradmaev/calorie-helper/internal/bot/state"
	"github.com/vladimiradmaev/calorie-helper/internal/catalog"
	"github.com/vladimiradmaev/calorie-helper/internal/database"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/repository"
	"github.com/vladimiradmaev/calorie-helper/internal/services"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

const user int64 = 42

var yekt = time.FixedZone("YEKT", 5*60*60)

type fakeParser struct {
	mu      sync.Mutex
	answers map[string][]domain.ParsedItem
}

func (f *fakeParser) ParseFood(_ context.Context, text string) []domain.ParsedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[text]
}

func (f *fakeParser) set(text string, items ...domain.ParsedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[text] = items
}

type noEstimates struct{}

func (noEstimates) EstimateKcal(context.Context, string) (int, bool) { return 0, false }

type fakeSyncer struct {
	enabled bool
	days    []time.Time
}

func (f *fakeSyncer) Enabled() bool { return f.enabled }

func (f *fakeSyncer) DefaultDay(context.Context, int64) (time.Time, error) {
	return time.Date(2026, 1, 20, 0, 0, 0, 0, yekt), nil
}

func (f *fakeSyncer) SyncUserDay(_ context.Context, _ int64, day time.Time) (bool, error) {
	f.days = append(f.days, day)
	return true, nil
}

type harness struct {
	ctrl   *Controller
	parser *fakeParser
	repo   *repository.GormRepository
	store  *state.Manager
	sync   *fakeSyncer
	ctx    context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	repo := repository.New(db)
	products := catalog.NewService(repo, nil)
	_, err = products.Add(context.Background(), "рис", 130)
	require.NoError(t, err)

	parser := &fakeParser{answers: map[string][]domain.ParsedItem{}}
	store := state.NewManager()
	syncer := &fakeSyncer{}

	ctrl := NewController(Deps{
		Store:    store,
		FoodLog:  services.NewFoodLogService(repo, parser, services.NewCalorieResolver(products, noEstimates{}), yekt),
		Editor:   services.NewEditService(repo, products, yekt),
		Catalog:  products,
		Syncer:   syncer,
		Location: yekt,
		Window:   time.Hour,
	})
	return &harness{ctrl: ctrl, parser: parser, repo: repo, store: store, sync: syncer, ctx: context.Background()}
}

func (h *harness) text(t *testing.T, msg string) []Reply {
	t.Helper()
	replies, err := h.ctrl.HandleText(h.ctx, user, msg)
	require.NoError(t, err)
	require.NotEmpty(t, replies)
	return replies
}

func (h *harness) press(t *testing.T, data string) []Reply {
	t.Helper()
	replies, err := h.ctrl.HandleCallback(h.ctx, user, data)
	require.NoError(t, err)
	require.NotEmpty(t, replies)
	return replies
}

func (h *harness) command(t *testing.T, name, args string) []Reply {
	t.Helper()
	replies, err := h.ctrl.HandleCommand(h.ctx, user, name, args)
	require.NoError(t, err)
	require.NotEmpty(t, replies)
	return replies
}

func (h *harness) state(t *testing.T) *state.Context {
	t.Helper()
	sc, err := h.store.Get(h.ctx, user)
	require.NoError(t, err)
	return sc
}

func (h *harness) todayLogs(t *testing.T) []domain.LogEntry {
	t.Helper()
	start, end := utils.DayBounds(time.Now(), yekt)
	rows, err := h.repo.GetLogsBetween(h.ctx, user, start, end)
	require.NoError(t, err)
	return rows
}

// buttonData returns the callback data of the first button whose data
// starts with prefix
func buttonData(t *testing.T, r Reply, prefix string) string {
	t.Helper()
	for _, row := range r.Buttons {
		for _, b := range row {
			if strings.HasPrefix(b.Data, prefix) {
				return b.Data
			}
		}
	}
	t.Fatalf("no button with prefix %q in %+v", prefix, r.Buttons)
	return ""
}

func TestFirstMessageLogsNewMeal(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})

	replies := h.text(t, "рис 200г")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "рис 200г - 260 ккал")
	assert.Len(t, replies[0].MealIDs, 1)
	assert.True(t, h.state(t).IsIdle())
}

func TestUnparsedText(t *testing.T) {
	h := newHarness(t)
	replies := h.text(t, "привет")
	assert.Equal(t, msgParseFailed, replies[0].Text)
}

func TestContinuationAddToCurrent(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})
	h.parser.set("рис 50г", domain.ParsedItem{Name: "рис", Weight: 50})

	first := h.text(t, "рис 200г")
	mealID := first[0].MealIDs[0]

	replies := h.text(t, "рис 50г")
	require.Len(t, replies, 1)
	assert.Equal(t, "Прошло менее 60 минут. Добавить к предыдущему приему?", replies[0].Text)
	require.Len(t, replies[0].Buttons, 3)
	assert.Equal(t, state.AwaitingMealChoice, h.state(t).State)

	assert.Equal(t, msgUseButtons, h.text(t, "что-то еще")[0].Text)

	replies = h.press(t, cbAddCurrent)
	assert.Contains(t, replies[0].Text, "Итого 325 ккал")
	assert.Equal(t, []string{mealID}, replies[0].MealIDs)

	rows := h.todayLogs(t)
	require.Len(t, rows, 2)
	assert.Equal(t, mealID, rows[1].MealID)
	assert.True(t, h.state(t).IsIdle())
}

func TestContinuationNewMeal(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})

	first := h.text(t, "рис 200г")
	h.text(t, "рис 200г")
	replies := h.press(t, cbNewMeal)
	require.Len(t, replies[0].MealIDs, 1)
	assert.NotEqual(t, first[0].MealIDs[0], replies[0].MealIDs[0])
}

func TestExplicitDateSkipsContinuation(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})
	h.parser.set("21/01/26 рис 100г", domain.ParsedItem{Name: "рис", Weight: 100, Date: "2026-01-21"})

	h.text(t, "рис 200г")
	replies := h.text(t, "21/01/26 рис 100г")
	assert.Contains(t, replies[0].Text, "21/01/26")
	assert.Contains(t, replies[0].Text, "Всего 130 ккал")
}

func TestLaterHistoricalMealKeepsContinuation(t *testing.T) {
	h := newHarness(t)
	later := time.Now().In(yekt).Add(3 * time.Hour)
	historical := later.Format("02/01/06 15:04") + " рис 100г"
	h.parser.set(historical, domain.ParsedItem{
		Name: "рис", Weight: 100, Date: later.Format("2006-01-02"), Time: later.Format("15:04"),
	})
	h.parser.set("рис 50г", domain.ParsedItem{Name: "рис", Weight: 50})
	h.parser.set("рис 20г", domain.ParsedItem{Name: "рис", Weight: 20})

	h.text(t, historical)
	first := h.text(t, "рис 50г")
	require.Len(t, first[0].MealIDs, 1)
	assert.True(t, h.state(t).IsIdle())

	replies := h.text(t, "рис 20г")
	assert.Equal(t, "Прошло менее 60 минут. Добавить к предыдущему приему?", replies[0].Text)
	sc := h.state(t)
	assert.Equal(t, state.AwaitingMealChoice, sc.State)
	assert.Equal(t, first[0].MealIDs[0], sc.MealID)
}

func TestCancelledFirstItemLeavesNoMeal(t *testing.T) {
	h := newHarness(t)
	h.parser.set("квас 300г", domain.ParsedItem{Name: "квас", Weight: 300})
	h.parser.set("чай", domain.ParsedItem{Name: "чай", Weight: 200, ManualKcal: floatPtr(2), KcalMode: domain.KcalModeTotal})

	h.text(t, "квас 300г")
	require.Equal(t, state.AwaitingManualKcal, h.state(t).State)
	assert.Equal(t, msgCancelled, h.text(t, "отмена")[0].Text)

	replies := h.text(t, "чай")
	assert.Contains(t, replies[0].Text, "чай 200г - 2 ккал")
	assert.NotEqual(t, state.AwaitingMealChoice, h.state(t).State)
	assert.Len(t, h.todayLogs(t), 1)
}

func TestOtherDayFlow(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})
	h.text(t, "рис 200г")
	h.text(t, "рис 200г")

	replies := h.press(t, cbOtherDay)
	assert.Equal(t, msgAskDate, replies[0].Text)
	assert.Equal(t, state.AwaitingBackdateDate, h.state(t).State)

	assert.Equal(t, msgDateInvalid, h.text(t, "31.02")[0].Text)
	assert.Equal(t, msgDateUnrecognized, h.text(t, "когда-то")[0].Text)
	assert.Equal(t, state.AwaitingBackdateDate, h.state(t).State)

	yesterday := time.Now().In(yekt).AddDate(0, 0, -1)
	held := yesterday.Format("02/01/06") + "\nрис 200г"
	h.parser.set(held, domain.ParsedItem{Name: "рис", Weight: 200, Date: yesterday.Format("2006-01-02")})

	replies = h.text(t, "вчера")
	assert.Contains(t, replies[0].Text, yesterday.Format("02/01/06"))
	assert.True(t, h.state(t).IsIdle())
}

func TestBackdateCancel(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})
	h.text(t, "рис 200г")
	h.text(t, "рис 200г")
	h.press(t, cbOtherDay)

	assert.Equal(t, msgCancelled, h.text(t, "Отмена")[0].Text)
	assert.True(t, h.state(t).IsIdle())
	assert.Len(t, h.todayLogs(t), 1)
}

func TestMealChoiceExpired(t *testing.T) {
	h := newHarness(t)
	replies := h.press(t, cbAddCurrent)
	assert.True(t, replies[0].Toast)
	assert.Equal(t, msgExpired, replies[0].Text)
}

func TestManualKcalFlow(t *testing.T) {
	h := newHarness(t)
	h.parser.set("чак-чак 100г, кумыс 200г (50)",
		domain.ParsedItem{Name: "кумыс", Weight: 200, ManualKcal: floatPtr(50), KcalMode: domain.KcalModePer100},
		domain.ParsedItem{Name: "чак-чак", Weight: 100},
	)

	replies := h.text(t, "чак-чак 100г, кумыс 200г (50)")
	assert.Equal(t, "Я не знаю калорийность 'чак-чак'. Сколько в нем ккал на 100г?", replies[0].Text)
	sc := h.state(t)
	assert.Equal(t, state.AwaitingManualKcal, sc.State)
	assert.Len(t, sc.Pending, 1)

	assert.Equal(t, msgOnlyNumber, h.text(t, "много")[0].Text)

	replies = h.text(t, "400")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Text, "чак-чак 100г - 400 ккал")
	assert.Contains(t, replies[0].Text, "Всего 500 ккал")
	assert.Equal(t, "Внести новый / новые продукты в базу данных?\n\n🔸 Кумыс: 50 ккал\n🔸 Чак-чак: 400 ккал", replies[1].Text)

	replies = h.press(t, cbConfirmSave)
	assert.Equal(t, "✅ Успешно добавлено продуктов: 2", replies[0].Text)
	assert.True(t, replies[0].Edit)

	replies = h.press(t, cbConfirmSave)
	assert.True(t, replies[0].Toast)

	replies = h.command(t, "database", "")
	assert.Contains(t, replies[0].Text, "чак-чак - 400 ккал")
}

func TestCancelDropsPending(t *testing.T) {
	h := newHarness(t)
	h.parser.set("кумыс 200г (50)", domain.ParsedItem{Name: "кумыс", Weight: 200, ManualKcal: floatPtr(50)})

	replies := h.text(t, "кумыс 200г (50)")
	require.Len(t, replies, 2)
	h.press(t, cbCancel)
	assert.Empty(t, h.state(t).Pending)
}

func TestCommandResetsState(t *testing.T) {
	h := newHarness(t)
	h.parser.set("чак-чак 100г", domain.ParsedItem{Name: "чак-чак", Weight: 100})
	h.text(t, "чак-чак 100г")
	require.Equal(t, state.AwaitingManualKcal, h.state(t).State)

	h.command(t, "help", "")
	assert.True(t, h.state(t).IsIdle())
	assert.Nil(t, h.state(t).PendingKcal)
}

func TestAddAndDelCommands(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, msgAddUsage, h.command(t, "add", "")[0].Text)
	assert.Equal(t, msgAddUnparsed, h.command(t, "add", "чиабатта")[0].Text)

	replies := h.command(t, "add", "Чиабатта 260")
	assert.Contains(t, replies[0].Text, "Чиабатта")
	assert.Contains(t, replies[0].Text, "260 ккал на 100г")
	h.press(t, buttonData(t, replies[0], cbConfirmSave))

	replies = h.command(t, "del", "Чиабатта")
	assert.Contains(t, replies[0].Text, "чиабатта - 260 ккал")
	replies = h.press(t, cbDeleteProduct)
	assert.Contains(t, replies[0].Text, "удален из базы")

	assert.True(t, h.press(t, cbDeleteProduct)[0].Toast)
	assert.Equal(t, "Продукт 'чиабатта' не найден в базе.", h.command(t, "del", "чиабатта")[0].Text)
}

func TestClearCommand(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 200г", domain.ParsedItem{Name: "рис", Weight: 200})
	h.text(t, "рис 200г")

	assert.Equal(t, msgCleared, h.command(t, "clear", "")[0].Text)
	assert.Empty(t, h.todayLogs(t))
}

func TestEditFlow(t *testing.T) {
	h := newHarness(t)
	h.parser.set("плов 200г 300 ккал", domain.ParsedItem{Name: "плов", Weight: 200, ManualKcal: floatPtr(300), KcalMode: domain.KcalModeTotal})
	h.text(t, "плов 200г 300 ккал")

	replies := h.command(t, "edit", "")
	assert.Equal(t, msgPickMeal, replies[0].Text)
	assert.Equal(t, state.AwaitingMealSelect, h.state(t).State)

	replies = h.press(t, buttonData(t, replies[0], cbEditMeal))
	assert.Equal(t, msgPickItem, replies[0].Text)
	assert.Equal(t, "🍴 Плов (200г) - 300 ккал", replies[0].Buttons[0][0].Text)

	replies = h.press(t, buttonData(t, replies[0], cbEditItem))
	assert.Equal(t, "Редактирование: **плов**\nТекущие данные: 200г, 300 ккал.", replies[0].Text)
	assert.Equal(t, state.AwaitingFieldSelect, h.state(t).State)

	replies = h.press(t, buttonData(t, replies[0], cbAction+actionWeight))
	assert.Equal(t, msgAskWeight, replies[0].Text)
	assert.Equal(t, state.AwaitingEditWeight, h.state(t).State)

	assert.Equal(t, msgNumber, h.text(t, "половина")[0].Text)

	replies = h.text(t, "100")
	require.Len(t, replies, 2)
	assert.Equal(t, "✅ Вес изменен на 100г. Калории пересчитаны.", replies[0].Text)
	assert.Contains(t, replies[1].Text, "плов 100г - 150 ккал")
	assert.True(t, h.state(t).IsIdle())
}

func TestEditKcalAndDelete(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 100г", domain.ParsedItem{Name: "рис", Weight: 100})
	h.text(t, "рис 100г")
	entryID := h.todayLogs(t)[0].ID
	id := strings.TrimPrefix(buttonData(t, h.itemMenu(t), cbEditItem), cbEditItem)

	h.press(t, cbAction+actionKcal+":"+id)
	replies := h.text(t, "90")
	assert.Equal(t, "✅ Калории изменены на 90 ккал.", replies[0].Text)

	replies = h.press(t, cbAction+actionDelete+":"+id)
	assert.True(t, strings.HasPrefix(replies[0].Text, "✅ Удалено.\n\n"))
	assert.Contains(t, replies[0].Text, "Нет данных.")

	_, err := h.repo.GetLogEntry(h.ctx, entryID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func (h *harness) itemMenu(t *testing.T) Reply {
	t.Helper()
	meals := h.command(t, "edit", "")
	return h.press(t, buttonData(t, meals[0], cbEditMeal))[0]
}

func TestEditForeignEntry(t *testing.T) {
	h := newHarness(t)
	h.parser.set("рис 100г", domain.ParsedItem{Name: "рис", Weight: 100})
	h.text(t, "рис 100г")
	id := strings.TrimPrefix(buttonData(t, h.itemMenu(t), cbEditItem), cbEditItem)

	replies, err := h.ctrl.HandleCallback(h.ctx, user+1, cbEditItem+id)
	require.NoError(t, err)
	assert.True(t, replies[0].Toast)
	assert.Equal(t, msgEntryNotFound, replies[0].Text)
}

func TestEditWithoutMeals(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, msgNoMealsToday, h.command(t, "edit", "")[0].Text)
}

func TestSyncCommand(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, msgSyncNoDoc, h.command(t, "sync", "")[0].Text)

	h.sync.enabled = true
	assert.Equal(t, msgSyncBadDate, h.command(t, "sync", "January")[0].Text)

	replies := h.command(t, "sync", "25.01.26")
	require.Len(t, replies, 2)
	assert.Equal(t, "🔄 Синхронизирую данные за 25.01.26...", replies[0].Text)
	assert.Equal(t, "✅ Данные за 25.01.26 успешно добавлены!", replies[1].Text)

	replies = h.command(t, "sync", "")
	assert.Contains(t, replies[0].Text, "20.01.26")
	require.Len(t, h.sync.days, 2)
}

func TestUnknownCallbackAndCommand(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, msgUnknownAction, h.press(t, "bogus")[0].Text)
	assert.Equal(t, msgUnknownCommand, h.command(t, "bogus", "")[0].Text)
}

func TestKeyedMutexSerializesPerUser(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		guard   sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			guard.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			guard.Unlock()

			time.Sleep(time.Millisecond)

			guard.Lock()
			inside--
			guard.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.size())
}

func floatPtr(v float64) *float64 { return &v }
