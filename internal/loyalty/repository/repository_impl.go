package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

// orderStatusPaid mirrors the order package's status value; importing it
// here would create a cycle.
const orderStatusPaid = "PAID"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPoints(ctx context.Context, db *gorm.DB, tx *domain.PointsTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO points_transactions (id, customer_id, order_id, type, amount, balance_after, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.CustomerID,
		tx.OrderID,
		tx.Type,
		tx.Amount,
		tx.BalanceAfter,
		tx.Description,
		tx.CreatedAt,
	).Error
}

func (r *repo) InsertCredit(ctx context.Context, db *gorm.DB, tx *domain.CreditTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (id, customer_id, order_id, type, amount, balance_after, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.CustomerID,
		tx.OrderID,
		tx.Type,
		tx.Amount,
		tx.BalanceAfter,
		tx.Description,
		tx.CreatedAt,
	).Error
}

func (r *repo) ListPoints(ctx context.Context, db *gorm.DB, customerID snowflake.ID, page pagination.Pagination) ([]*domain.PointsTransaction, error) {
	var items []*domain.PointsTransaction
	stmt, err := page.Apply(db.WithContext(ctx).Model(&domain.PointsTransaction{}).Where("customer_id = ?", customerID))
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCredit(ctx context.Context, db *gorm.DB, customerID snowflake.ID, page pagination.Pagination) ([]*domain.CreditTransaction, error) {
	var items []*domain.CreditTransaction
	stmt, err := page.Apply(db.WithContext(ctx).Model(&domain.CreditTransaction{}).Where("customer_id = ?", customerID))
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) PaidOrderTimes(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from, to time.Time) ([]time.Time, error) {
	var rows []struct {
		PaidAt time.Time
	}
	err := db.WithContext(ctx).Raw(
		`SELECT paid_at FROM orders
		 WHERE customer_id = ? AND status = ? AND paid_at >= ? AND paid_at < ?
		 ORDER BY paid_at ASC`,
		customerID, orderStatusPaid, from, to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.PaidAt)
	}
	return out, nil
}
