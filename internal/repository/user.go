package repository

import (
	"context"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// GetOrCreateUser gets an existing user or creates a new one
func (r *GormRepository) GetOrCreateUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	user := domain.User{ID: telegramID}
	if err := r.conn(ctx).FirstOrCreate(&user, domain.User{ID: telegramID}).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &user, nil
}

// ListUsers returns every known user ordered by id
func (r *GormRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.conn(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, wrapErr(err)
	}
	return users, nil
}
