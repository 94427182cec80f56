package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

// OverwriteGuard removes a previously ingested meal at the same timestamp
// so that resubmitting a historical block replaces it instead of doubling it
type OverwriteGuard struct{}

// Clear deletes the user's meals created at ts with their entries. It must be
// called with the repository of the transaction that writes the new meal.
func (OverwriteGuard) Clear(ctx context.Context, tx domain.MealRepository, userID int64, ts time.Time) error {
	removed, err := tx.DeleteMealsAt(ctx, userID, ts)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Info("Replaced historical meal", "user_id", userID, "timestamp", ts, "meals", removed)
	}
	return nil
}
