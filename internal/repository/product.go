package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// ListProducts returns the whole catalog sorted by name
func (r *GormRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := r.conn(ctx).Order("name").Find(&products).Error; err != nil {
		return nil, wrapErr(err)
	}
	return products, nil
}

// ListStaleProducts returns up to limit products, least recently verified first
func (r *GormRepository) ListStaleProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	var products []domain.Product
	err := r.conn(ctx).
		Order("last_verified").
		Order("id").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return products, nil
}

// GetProductByName looks a product up by its exact stored name
func (r *GormRepository) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var product domain.Product
	if err := r.conn(ctx).Where("name = ?", name).First(&product).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &product, nil
}

// UpsertProduct inserts the product or overwrites the calorie density of an
// existing product with the same name
func (r *GormRepository) UpsertProduct(ctx context.Context, product *domain.Product) error {
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kcal_per_100g", "is_verified", "last_verified"}),
	}).Create(product).Error
	return wrapErr(err)
}

// DeleteProduct removes a product by exact name
func (r *GormRepository) DeleteProduct(ctx context.Context, name string) error {
	result := r.conn(ctx).Where("name = ?", name).Delete(&domain.Product{})
	if result.Error != nil {
		return wrapErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountProducts returns the catalog size
func (r *GormRepository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn(ctx).Model(&domain.Product{}).Count(&count).Error; err != nil {
		return 0, wrapErr(err)
	}
	return count, nil
}

// InsertProducts bulk inserts products, skipping names already present
func (r *GormRepository) InsertProducts(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	err := r.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		CreateInBatches(products, 100).Error
	return wrapErr(err)
}

// MarkProductVerified stamps the verification time of a product
func (r *GormRepository) MarkProductVerified(ctx context.Context, id uint, at time.Time) error {
	err := r.conn(ctx).Model(&domain.Product{}).
		Where("id = ?", id).
		Update("last_verified", storedTime(at)).Error
	return wrapErr(err)
}
