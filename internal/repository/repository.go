package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
)

// GormRepository implements domain.Repository on top of gorm
type GormRepository struct {
	db *gorm.DB
}

// New creates a repository bound to db
func New(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// DB returns the underlying GORM database instance
func (r *GormRepository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn inside a database transaction. Any error rolls back
// every write made through tx.
func (r *GormRepository) Transaction(ctx context.Context, fn func(tx domain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// storedTime is the representation every timestamp is persisted in
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return apperrors.NewDatabaseError(err)
}
