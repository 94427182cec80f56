package repository

import (
	"context"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// CreateMeal inserts a meal, storing its timestamps in UTC at second precision
func (r *GormRepository) CreateMeal(ctx context.Context, meal *domain.Meal) error {
	meal.CreatedAt = storedTime(meal.CreatedAt)
	meal.UpdatedAt = storedTime(meal.UpdatedAt)
	return wrapErr(r.conn(ctx).Create(meal).Error)
}

// GetMeal returns a meal by id
func (r *GormRepository) GetMeal(ctx context.Context, id string) (*domain.Meal, error) {
	var meal domain.Meal
	if err := r.conn(ctx).Where("id = ?", id).First(&meal).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &meal, nil
}

// GetLastMeal returns the user's most recently updated meal among those
// updated no later than at. Historical meals dated later the same day are
// skipped.
func (r *GormRepository) GetLastMeal(ctx context.Context, userID int64, at time.Time) (*domain.Meal, error) {
	var meal domain.Meal
	err := r.conn(ctx).
		Where("user_id = ? AND updated_at <= ?", userID, storedTime(at)).
		Order("updated_at DESC").
		First(&meal).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &meal, nil
}

// TouchMeal moves the updated_at of a meal
func (r *GormRepository) TouchMeal(ctx context.Context, id string, at time.Time) error {
	err := r.conn(ctx).Model(&domain.Meal{}).
		Where("id = ?", id).
		Update("updated_at", storedTime(at)).Error
	return wrapErr(err)
}

// UpdateMealReportMessage remembers the chat message that last showed the meal
func (r *GormRepository) UpdateMealReportMessage(ctx context.Context, id string, messageID int) error {
	err := r.conn(ctx).Model(&domain.Meal{}).
		Where("id = ?", id).
		Update("last_report_message_id", messageID).Error
	return wrapErr(err)
}

// DeleteMealsAt removes the user's meals created exactly at createdAt together
// with their log entries and returns the number of meals removed
func (r *GormRepository) DeleteMealsAt(ctx context.Context, userID int64, createdAt time.Time) (int64, error) {
	var ids []string
	err := r.conn(ctx).Model(&domain.Meal{}).
		Where("user_id = ? AND created_at = ?", userID, storedTime(createdAt)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, wrapErr(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := r.conn(ctx).Where("meal_id IN ?", ids).Delete(&domain.LogEntry{}).Error; err != nil {
		return 0, wrapErr(err)
	}
	result := r.conn(ctx).Where("id IN ?", ids).Delete(&domain.Meal{})
	if result.Error != nil {
		return 0, wrapErr(result.Error)
	}
	return result.RowsAffected, nil
}
