package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

// MealSummary is one of today's meals as offered for editing
type MealSummary struct {
	MealID string
	Time   time.Time
	Items  int
}

// EditResult carries the entry after a change and the refreshed report
type EditResult struct {
	Entry  domain.LogEntry
	Report DayReport
}

// EditService changes or removes already logged entries
type EditService struct {
	repo     domain.Repository
	products ProductLookup
	loc      *time.Location
	now      func() time.Time
}

// NewEditService creates an edit service
func NewEditService(repo domain.Repository, products ProductLookup, loc *time.Location) *EditService {
	if loc == nil {
		loc = time.UTC
	}
	return &EditService{repo: repo, products: products, loc: loc, now: time.Now}
}

func (s *EditService) today(ctx context.Context, userID int64) ([]domain.LogEntry, error) {
	start, end := utils.DayBounds(s.now(), s.loc)
	return s.repo.GetLogsBetween(ctx, userID, start, end)
}

// TodayMeals lists today's meals ordered by their first entry
func (s *EditService) TodayMeals(ctx context.Context, userID int64) ([]MealSummary, error) {
	rows, err := s.today(ctx, userID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var meals []MealSummary
	for _, row := range rows {
		i, ok := index[row.MealID]
		if !ok {
			i = len(meals)
			index[row.MealID] = i
			meals = append(meals, MealSummary{MealID: row.MealID, Time: row.Timestamp})
		}
		if row.Timestamp.Before(meals[i].Time) {
			meals[i].Time = row.Timestamp
		}
		meals[i].Items++
	}

	sort.SliceStable(meals, func(i, j int) bool {
		if !meals[i].Time.Equal(meals[j].Time) {
			return meals[i].Time.Before(meals[j].Time)
		}
		return meals[i].MealID < meals[j].MealID
	})
	return meals, nil
}

// MealItems returns today's entries of one meal
func (s *EditService) MealItems(ctx context.Context, userID int64, mealID string) ([]domain.LogEntry, error) {
	rows, err := s.today(ctx, userID)
	if err != nil {
		return nil, err
	}
	var items []domain.LogEntry
	for _, row := range rows {
		if row.MealID == mealID {
			items = append(items, row)
		}
	}
	if len(items) == 0 {
		return nil, apperrors.ErrMealNotFound
	}
	return items, nil
}

// Entry returns one of the user's entries. Entries of other users are
// reported as missing.
func (s *EditService) Entry(ctx context.Context, userID int64, entryID uint) (*domain.LogEntry, error) {
	entry, err := s.repo.GetLogEntry(ctx, entryID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		logger.Warn("Entry requested by another user", "entry_id", entryID, "user_id", userID)
		return nil, apperrors.ErrEntryNotFound
	}
	return entry, nil
}

// UpdateWeight changes the weight and recomputes the calories in proportion
func (s *EditService) UpdateWeight(ctx context.Context, userID int64, entryID uint, weight float64) (*EditResult, error) {
	if weight < 0 {
		return nil, apperrors.NewValidationError("weight must not be negative")
	}
	entry, err := s.Entry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	var per100 *float64
	if entry.WeightG <= 0 && s.products != nil {
		product, err := s.products.Lookup(ctx, entry.ProductName)
		if err != nil {
			return nil, err
		}
		if product != nil {
			per100 = &product.KcalPer100
		}
	}
	kcal := RecomputeKcalForWeight(entry.WeightG, entry.KcalTotal, weight, per100)

	if err := s.repo.UpdateLogEntry(ctx, entry.ID, &weight, &kcal); err != nil {
		return nil, s.mapMissing(err)
	}
	entry.WeightG, entry.KcalTotal = weight, kcal
	return s.result(ctx, userID, *entry)
}

// UpdateKcal overwrites the total calories of an entry
func (s *EditService) UpdateKcal(ctx context.Context, userID int64, entryID uint, kcal float64) (*EditResult, error) {
	if kcal < 0 {
		return nil, apperrors.NewValidationError("calories must not be negative")
	}
	entry, err := s.Entry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLogEntry(ctx, entry.ID, nil, &kcal); err != nil {
		return nil, s.mapMissing(err)
	}
	entry.KcalTotal = kcal
	return s.result(ctx, userID, *entry)
}

// Delete removes an entry
func (s *EditService) Delete(ctx context.Context, userID int64, entryID uint) (*EditResult, error) {
	entry, err := s.Entry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteLogEntry(ctx, entry.ID); err != nil {
		return nil, s.mapMissing(err)
	}
	return s.result(ctx, userID, *entry)
}

func (s *EditService) result(ctx context.Context, userID int64, entry domain.LogEntry) (*EditResult, error) {
	rep, err := renderDay(ctx, s.repo, s.loc, userID, entry.Timestamp)
	if err != nil {
		return nil, err
	}
	return &EditResult{Entry: entry, Report: rep}, nil
}

func (s *EditService) mapMissing(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.ErrEntryNotFound
	}
	return err
}

// RecomputeKcalForWeight scales the calories of an entry to a new weight.
// Without an old weight the catalog density is used, or zero when unknown.
func RecomputeKcalForWeight(oldWeight, oldKcal, newWeight float64, per100 *float64) float64 {
	if oldWeight > 0 {
		return oldKcal / oldWeight * newWeight
	}
	if per100 == nil {
		return 0
	}
	return domain.KcalFromPer100(newWeight, *per100)
}
