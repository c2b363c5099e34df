package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/order/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, folio, status, subtotal, total_tax, final_amount, money_saved_total,
		                     discount_ratio, is_birthday_discount_applied, payment_method, amount_received,
		                     change_due, points_used, store_credit_used, points_earned, customer_id,
		                     seller_id, created_at, updated_at, paid_at, cancelled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.Folio,
		order.Status,
		order.Subtotal,
		order.TotalTax,
		order.FinalAmount,
		order.MoneySavedTotal,
		order.DiscountRatio,
		order.IsBirthdayDiscountApplied,
		order.PaymentMethod,
		order.AmountReceived,
		order.ChangeDue,
		order.PointsUsed,
		order.StoreCreditUsed,
		order.PointsEarned,
		order.CustomerID,
		order.SellerID,
		order.CreatedAt,
		order.UpdatedAt,
		order.PaidAt,
		order.CancelledAt,
	).Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.OrderItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_items (id, order_id, product_id, product_name, sku, quantity, list_unit_price,
		                          unit_price, tax_amount, discount_amount, amount, promotion_id, promotion_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrderID,
		item.ProductID,
		item.ProductName,
		item.SKU,
		item.Quantity,
		item.ListUnitPrice,
		item.UnitPrice,
		item.TaxAmount,
		item.DiscountAmount,
		item.Amount,
		item.PromotionID,
		item.PromotionName,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil || order.ID == 0 {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, subtotal = ?, total_tax = ?, final_amount = ?, money_saved_total = ?,
		     discount_ratio = ?, is_birthday_discount_applied = ?, payment_method = ?,
		     amount_received = ?, change_due = ?, points_used = ?, store_credit_used = ?,
		     points_earned = ?, updated_at = ?, paid_at = ?, cancelled_at = ?
		 WHERE id = ?`,
		order.Status,
		order.Subtotal,
		order.TotalTax,
		order.FinalAmount,
		order.MoneySavedTotal,
		order.DiscountRatio,
		order.IsBirthdayDiscountApplied,
		order.PaymentMethod,
		order.AmountReceived,
		order.ChangeDue,
		order.PointsUsed,
		order.StoreCreditUsed,
		order.PointsEarned,
		order.UpdatedAt,
		order.PaidAt,
		order.CancelledAt,
		order.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(`SELECT * FROM orders WHERE id = ?`, id).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := pkgdb.ForUpdate(db.WithContext(ctx)).Where("id = ?", id).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) FolioExists(ctx context.Context, db *gorm.DB, folio string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM orders WHERE folio = ?`, folio).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM order_items WHERE order_id = ? ORDER BY id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Order, error) {
	var items []*domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.SellerID != nil {
		stmt = stmt.Where("seller_id = ?", *filter.SellerID)
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
