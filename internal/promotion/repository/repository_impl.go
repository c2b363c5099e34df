package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/promotion/domain"
	"gorm.io/gorm"
)

const promotionColumns = `id, product_id, name, description, discount_percent, start_date, end_date,
	target_audience, is_active, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, promotion *domain.Promotion) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO promotions (`+promotionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		promotion.ID,
		promotion.ProductID,
		promotion.Name,
		promotion.Description,
		promotion.DiscountPercent,
		promotion.StartDate,
		promotion.EndDate,
		promotion.TargetAudience,
		promotion.IsActive,
		promotion.CreatedAt,
		promotion.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, promotion *domain.Promotion) error {
	if promotion == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE promotions
		 SET name = ?, description = ?, discount_percent = ?, start_date = ?, end_date = ?,
		     target_audience = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		promotion.Name,
		promotion.Description,
		promotion.DiscountPercent,
		promotion.StartDate,
		promotion.EndDate,
		promotion.TargetAudience,
		promotion.IsActive,
		promotion.UpdatedAt,
		promotion.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM promotions WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Promotion, error) {
	var p domain.Promotion
	err := db.WithContext(ctx).Raw(
		`SELECT `+promotionColumns+` FROM promotions WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, productID *snowflake.ID) ([]*domain.Promotion, error) {
	var items []*domain.Promotion
	stmt := db.WithContext(ctx).Model(&domain.Promotion{})
	if productID != nil {
		stmt = stmt.Where("product_id = ?", *productID)
	}
	if err := stmt.Order("start_date asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindOverlapping(ctx context.Context, db *gorm.DB, productID snowflake.ID, start, end time.Time, excludeID snowflake.ID) ([]*domain.Promotion, error) {
	var items []*domain.Promotion
	err := db.WithContext(ctx).Raw(
		`SELECT `+promotionColumns+`
		 FROM promotions
		 WHERE product_id = ? AND is_active = ? AND id <> ?
		   AND start_date <= ? AND end_date >= ?
		 ORDER BY start_date ASC, id ASC`,
		productID, true, excludeID, end, start,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, today time.Time) ([]*domain.Promotion, error) {
	var items []*domain.Promotion
	err := db.WithContext(ctx).Raw(
		`SELECT `+promotionColumns+`
		 FROM promotions
		 WHERE is_active = ? AND end_date < ?
		 ORDER BY product_id ASC, id ASC`,
		true, today,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListValidOn(ctx context.Context, db *gorm.DB, day time.Time) ([]*domain.Promotion, error) {
	var items []*domain.Promotion
	err := db.WithContext(ctx).Raw(
		`SELECT `+promotionColumns+`
		 FROM promotions
		 WHERE is_active = ? AND start_date <= ? AND end_date >= ?
		 ORDER BY product_id ASC, id ASC`,
		true, day, day,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
