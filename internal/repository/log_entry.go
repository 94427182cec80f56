package repository

import (
	"context"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// AddLogEntry inserts a log entry
func (r *GormRepository) AddLogEntry(ctx context.Context, entry *domain.LogEntry) error {
	entry.Timestamp = storedTime(entry.Timestamp)
	return wrapErr(r.conn(ctx).Create(entry).Error)
}

// GetLogEntry returns a log entry by id
func (r *GormRepository) GetLogEntry(ctx context.Context, id uint) (*domain.LogEntry, error) {
	var entry domain.LogEntry
	if err := r.conn(ctx).First(&entry, id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &entry, nil
}

// GetLogsBetween returns the user's entries with from <= timestamp < to,
// ordered by timestamp then id
func (r *GormRepository) GetLogsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry
	err := r.conn(ctx).
		Where("user_id = ? AND logged_at >= ? AND logged_at < ?", userID, storedTime(from), storedTime(to)).
		Order("logged_at").
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return entries, nil
}

// UpdateLogEntry overwrites weight and/or kcal; nil values are left untouched
func (r *GormRepository) UpdateLogEntry(ctx context.Context, id uint, weight, kcal *float64) error {
	updates := map[string]any{}
	if weight != nil {
		updates["weight_g"] = *weight
	}
	if kcal != nil {
		updates["kcal_total"] = *kcal
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.conn(ctx).Model(&domain.LogEntry{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return wrapErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteLogEntry removes a single entry
func (r *GormRepository) DeleteLogEntry(ctx context.Context, id uint) error {
	result := r.conn(ctx).Delete(&domain.LogEntry{}, id)
	if result.Error != nil {
		return wrapErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteLogsBetween removes the user's entries in [from, to) and the meals
// created in the same range
func (r *GormRepository) DeleteLogsBetween(ctx context.Context, userID int64, from, to time.Time) error {
	from, to = storedTime(from), storedTime(to)
	err := r.conn(ctx).
		Where("user_id = ? AND logged_at >= ? AND logged_at < ?", userID, from, to).
		Delete(&domain.LogEntry{}).Error
	if err != nil {
		return wrapErr(err)
	}
	err = r.conn(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Delete(&domain.Meal{}).Error
	return wrapErr(err)
}

// GetLastLogTime returns the timestamp of the user's latest entry
func (r *GormRepository) GetLastLogTime(ctx context.Context, userID int64) (time.Time, error) {
	var entry domain.LogEntry
	err := r.conn(ctx).
		Where("user_id = ?", userID).
		Order("logged_at DESC").
		First(&entry).Error
	if err != nil {
		return time.Time{}, wrapErr(err)
	}
	return entry.Timestamp, nil
}
