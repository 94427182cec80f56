package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vladimiradmaev/calorie-helper/internal/catalog"
	"github.com/vladimiradmaev/calorie-helper/internal/database"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/repository"
)

var yekt = time.FixedZone("YEKT", 5*60*60)

// fixedNow is 22.01.2026 12:30:15 in the user zone
var fixedNow = time.Date(2026, 1, 22, 12, 30, 15, 0, yekt)

func newTestRepo(t *testing.T) *repository.GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return repository.New(db)
}

func seedProducts(t *testing.T, repo domain.ProductRepository, products map[string]float64) {
	t.Helper()
	for name, kcal := range products {
		require.NoError(t, repo.UpsertProduct(context.Background(), &domain.Product{Name: name, KcalPer100: kcal, IsVerified: true}))
	}
}

type fakeParser struct {
	answers map[string][]domain.ParsedItem
}

func (f *fakeParser) ParseFood(_ context.Context, text string) []domain.ParsedItem {
	return f.answers[text]
}

type fakeOracle struct {
	kcal  map[string]int
	calls []string
}

func (f *fakeOracle) EstimateKcal(_ context.Context, name string) (int, bool) {
	f.calls = append(f.calls, name)
	v, ok := f.kcal[name]
	return v, ok
}

type testEnv struct {
	repo    *repository.GormRepository
	catalog *catalog.Service
	parser  *fakeParser
	oracle  *fakeOracle
	log     *FoodLogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newTestRepo(t)
	products := catalog.NewService(repo, nil)
	parser := &fakeParser{answers: map[string][]domain.ParsedItem{}}
	oracle := &fakeOracle{kcal: map[string]int{}}

	svc := NewFoodLogService(repo, parser, NewCalorieResolver(products, oracle), yekt)
	svc.now = func() time.Time { return fixedNow }
	return &testEnv{repo: repo, catalog: products, parser: parser, oracle: oracle, log: svc}
}

func ptr(v float64) *float64 { return &v }

func dayLogs(t *testing.T, repo domain.LogRepository, userID int64, day time.Time) []domain.LogEntry {
	t.Helper()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, yekt)
	rows, err := repo.GetLogsBetween(context.Background(), userID, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	return rows
}
