package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

const userID int64 = 100

func TestIngestLiveMeal(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"рис": 130})
	env.parser.answers["рис 200г, смузи 300г (60), хлеб 50г 120 ккал"] = []domain.ParsedItem{
		{Name: "рис", Weight: 200},
		{Name: "смузи", Weight: 300, ManualKcal: ptr(60), KcalMode: domain.KcalModePer100},
		{Name: "хлеб", Weight: 50, ManualKcal: ptr(120), KcalMode: domain.KcalModeTotal},
	}

	res, err := env.log.Ingest(context.Background(), IngestRequest{UserID: userID, Text: "рис 200г, смузи 300г (60), хлеб 50г 120 ккал"})
	require.NoError(t, err)
	require.True(t, res.Parsed)
	assert.Nil(t, res.Suspended)

	assert.Equal(t, []domain.PendingProduct{
		{Name: "смузи", KcalPer100: 60},
		{Name: "хлеб", KcalPer100: 240},
	}, res.Pending)

	require.Len(t, res.Reports, 1)
	assert.Equal(t, "22/01/26\n\n"+
		"12:30\n\n"+
		"рис 200г - 260 ккал\n"+
		"смузи 300г - 180 ккал\n"+
		"хлеб 50г - 120 ккал\n"+
		"Итого 560 ккал\n\n"+
		"Всего 560 ккал", res.Reports[0].Text)
	require.Len(t, res.Reports[0].MealIDs, 1)

	meal, err := env.repo.GetMeal(context.Background(), res.Reports[0].MealIDs[0])
	require.NoError(t, err)
	assert.True(t, meal.CreatedAt.Equal(time.Date(2026, 1, 22, 12, 30, 0, 0, yekt)))
}

func TestIngestOnlyUnmatchedManualItemIsPending(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"рис": 130})
	env.parser.answers["text"] = []domain.ParsedItem{
		{Name: "рис", Weight: 200, ManualKcal: ptr(300), KcalMode: domain.KcalModeTotal},
		{Name: "кумыс", Weight: 500, ManualKcal: ptr(100), KcalMode: domain.KcalModePer100},
	}

	res, err := env.log.Ingest(context.Background(), IngestRequest{UserID: userID, Text: "text"})
	require.NoError(t, err)
	assert.Equal(t, []domain.PendingProduct{{Name: "кумыс", KcalPer100: 100}}, res.Pending)
	assert.Empty(t, env.oracle.calls)
}

func TestIngestUnparsedWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.log.Ingest(context.Background(), IngestRequest{UserID: userID, Text: "привет"})
	require.NoError(t, err)
	assert.False(t, res.Parsed)

	_, err = env.repo.GetLastMeal(context.Background(), userID, fixedNow)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestHistoricalResubmissionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"рис": 130, "кефир": 50})
	text := "20/01/26\n08:00\nрис 100г\n13:00\nкефир 200г"
	env.parser.answers[text] = []domain.ParsedItem{
		{Name: "рис", Weight: 100, Date: "2026-01-20", Time: "08:00"},
		{Name: "кефир", Weight: 200, Date: "2026-01-20", Time: "13:00"},
	}
	ctx := context.Background()

	first, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: text})
	require.NoError(t, err)
	second, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: text})
	require.NoError(t, err)

	day := time.Date(2026, 1, 20, 0, 0, 0, 0, yekt)
	rows := dayLogs(t, env.repo, userID, day)
	require.Len(t, rows, 2)
	assert.Equal(t, first.Reports[0].Text, second.Reports[0].Text)
	assert.Contains(t, second.Reports[0].Text, "Всего 230 ккал")

	// another user's identical meal is untouched
	_, err = env.log.Ingest(ctx, IngestRequest{UserID: userID + 1, Text: text})
	require.NoError(t, err)
	assert.Len(t, dayLogs(t, env.repo, userID, day), 2)
}

func TestIngestReportsEveryDayInOrder(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"суп": 40})
	env.parser.answers["text"] = []domain.ParsedItem{
		{Name: "суп", Weight: 300},
		{Name: "суп", Weight: 250, Date: "2026-01-19", Time: "14:00"},
	}

	res, err := env.log.Ingest(context.Background(), IngestRequest{UserID: userID, Text: "text"})
	require.NoError(t, err)
	require.Len(t, res.Reports, 2)
	assert.Contains(t, res.Reports[0].Text, "19/01/26")
	assert.Contains(t, res.Reports[1].Text, "22/01/26")
}

func TestIngestAppendsToCurrentMeal(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"чай": 1, "печенье": 450})
	env.parser.answers["чай"] = []domain.ParsedItem{{Name: "чай", Weight: 200}}
	env.parser.answers["печенье"] = []domain.ParsedItem{{Name: "печенье", Weight: 30}}
	ctx := context.Background()

	first, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: "чай"})
	require.NoError(t, err)
	mealID := first.Reports[0].MealIDs[0]

	env.log.now = func() time.Time { return fixedNow.Add(20 * time.Minute) }
	second, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: "печенье", AppendMealID: mealID})
	require.NoError(t, err)
	assert.Equal(t, []string{mealID}, second.Reports[0].MealIDs)

	meal, err := env.repo.GetLastMeal(ctx, userID, fixedNow.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, mealID, meal.ID)
	assert.True(t, meal.UpdatedAt.Equal(fixedNow.Add(20*time.Minute)))

	for _, row := range dayLogs(t, env.repo, userID, fixedNow) {
		assert.Equal(t, mealID, row.MealID)
	}
}

func TestIngestSuspendsOnUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"рис": 130, "хлеб": 250})
	env.oracle.kcal["гречка"] = 110
	text := "гречка 100г, рис 200г, чак-чак 100г, хлеб 50г"
	env.parser.answers[text] = []domain.ParsedItem{
		{Name: "гречка", Weight: 100},
		{Name: "рис", Weight: 200},
		{Name: "чак-чак", Weight: 100},
		{Name: "хлеб", Weight: 50},
	}
	ctx := context.Background()

	res, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: text})
	require.NoError(t, err)
	require.NotNil(t, res.Suspended)
	assert.Empty(t, res.Reports)
	assert.Equal(t, "чак-чак", res.Suspended.Name)
	assert.Equal(t, 100.0, res.Suspended.Weight)
	assert.Equal(t, text, res.Suspended.Text)
	assert.Equal(t, []domain.PendingProduct{{Name: "гречка", KcalPer100: 110}}, res.Pending)

	rows := dayLogs(t, env.repo, userID, fixedNow)
	require.Len(t, rows, 2)
	assert.Equal(t, res.Suspended.MealID, rows[0].MealID)

	resumed, err := env.log.ResumeManualKcal(ctx, userID, *res.Suspended, 400)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingProduct{Name: "чак-чак", KcalPer100: 400}, resumed.Pending)
	assert.Contains(t, resumed.Report.Text, "чак-чак 100г - 400 ккал")
	assert.Contains(t, resumed.Report.Text, "Всего 770 ккал")
	assert.NotContains(t, resumed.Report.Text, "хлеб")

	rows = dayLogs(t, env.repo, userID, fixedNow)
	require.Len(t, rows, 3)
	assert.True(t, rows[2].Timestamp.Equal(res.Suspended.Timestamp))
}

func TestIngestSuspendedOnFirstItemCreatesNoMeal(t *testing.T) {
	env := newTestEnv(t)
	env.parser.answers["квас 300г"] = []domain.ParsedItem{{Name: "квас", Weight: 300}}
	ctx := context.Background()

	res, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: "квас 300г"})
	require.NoError(t, err)
	require.NotNil(t, res.Suspended)
	assert.Empty(t, res.Suspended.MealID)

	_, err = env.repo.GetLastMeal(ctx, userID, fixedNow)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	resumed, err := env.log.ResumeManualKcal(ctx, userID, *res.Suspended, 30)
	require.NoError(t, err)
	require.Len(t, resumed.Report.MealIDs, 1)
	assert.Contains(t, resumed.Report.Text, "квас 300г - 90 ккал")

	meal, err := env.repo.GetLastMeal(ctx, userID, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, resumed.Report.MealIDs[0], meal.ID)
}

func TestResumeManualKcalRecreatesMissingMeal(t *testing.T) {
	env := newTestEnv(t)
	ts := time.Date(2026, 1, 18, 9, 0, 0, 0, yekt)

	res, err := env.log.ResumeManualKcal(context.Background(), userID, domain.PendingKcal{
		Name: "пирог", Weight: 150, MealID: "gone", Timestamp: ts, Historical: true,
	}, 300)
	require.NoError(t, err)
	assert.Contains(t, res.Report.Text, "18/01/26")
	require.Len(t, res.Report.MealIDs, 1)
	assert.NotEqual(t, "gone", res.Report.MealIDs[0])

	meal, err := env.repo.GetMeal(context.Background(), res.Report.MealIDs[0])
	require.NoError(t, err)
	assert.True(t, meal.CreatedAt.Equal(ts))
}

func TestClearDay(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"рис": 130})
	env.parser.answers["рис"] = []domain.ParsedItem{{Name: "рис", Weight: 100}}
	ctx := context.Background()

	_, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: "рис"})
	require.NoError(t, err)
	require.NoError(t, env.log.ClearDay(ctx, userID, fixedNow))

	assert.Empty(t, dayLogs(t, env.repo, userID, fixedNow))
	meal, err := env.log.LastMeal(ctx, userID, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, meal)
}

func TestRecordReportMessage(t *testing.T) {
	env := newTestEnv(t)
	seedProducts(t, env.repo, map[string]float64{"рис": 130})
	env.parser.answers["рис"] = []domain.ParsedItem{{Name: "рис", Weight: 100}}
	ctx := context.Background()

	res, err := env.log.Ingest(ctx, IngestRequest{UserID: userID, Text: "рис"})
	require.NoError(t, err)
	require.NoError(t, env.log.RecordReportMessage(ctx, res.Reports[0].MealIDs, 555))

	meal, err := env.repo.GetMeal(ctx, res.Reports[0].MealIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 555, meal.LastReportMessageID)
}

func TestMergePendingLastValueWins(t *testing.T) {
	var list []domain.PendingProduct
	list = MergePending(list, domain.PendingProduct{Name: "Кефир", KcalPer100: 50})
	list = MergePending(list, domain.PendingProduct{Name: "смузи", KcalPer100: 60})
	list = MergePending(list, domain.PendingProduct{Name: "кефир ", KcalPer100: 41})
	assert.Equal(t, []domain.PendingProduct{
		{Name: "кефир", KcalPer100: 41},
		{Name: "смузи", KcalPer100: 60},
	}, list)
}
