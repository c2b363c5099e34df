package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/product/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert and Update go through the model API so the save hook derives
// final_price and low_stock.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil || product.ID == 0 {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(product).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, name, list_price, discounted_price, promotion_audience, tax_rate,
		        final_price, current_stock, reserved_quantity, min_stock, low_stock,
		        active_promotion_id, created_at, updated_at
		 FROM products WHERE id = ?`,
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

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := pkgdb.ForUpdate(db.WithContext(ctx)).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, name, list_price, discounted_price, promotion_audience, tax_rate,
		        final_price, current_stock, reserved_quantity, min_stock, low_stock,
		        active_promotion_id, created_at, updated_at
		 FROM products WHERE sku = ?`,
		domain.NormalizeSKU(sku),
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Product, error) {
	var items []*domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})
	if filter.LowStock != nil {
		stmt = stmt.Where("low_stock = ?", *filter.LowStock)
	}
	if filter.Name != "" {
		stmt = stmt.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// RefreshLowStock flips low_stock wherever it disagrees with the current
// availability, stamps the rows with now and returns how many changed.
func (r *repo) RefreshLowStock(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	raised := db.WithContext(ctx).Exec(
		`UPDATE products SET low_stock = ?, updated_at = ?
		 WHERE low_stock = ? AND current_stock - reserved_quantity <= min_stock`,
		true, now, false,
	)
	if raised.Error != nil {
		return 0, raised.Error
	}
	cleared := db.WithContext(ctx).Exec(
		`UPDATE products SET low_stock = ?, updated_at = ?
		 WHERE low_stock = ? AND current_stock - reserved_quantity > min_stock`,
		false, now, true,
	)
	if cleared.Error != nil {
		return 0, cleared.Error
	}
	return raised.RowsAffected + cleared.RowsAffected, nil
}
