package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPoints(ctx context.Context, db *gorm.DB, tx *PointsTransaction) error
	InsertCredit(ctx context.Context, db *gorm.DB, tx *CreditTransaction) error
	ListPoints(ctx context.Context, db *gorm.DB, customerID snowflake.ID, page pagination.Pagination) ([]*PointsTransaction, error)
	ListCredit(ctx context.Context, db *gorm.DB, customerID snowflake.ID, page pagination.Pagination) ([]*CreditTransaction, error)
	// PaidOrderTimes returns paid_at of the customer's paid orders in [from, to).
	PaidOrderTimes(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from, to time.Time) ([]time.Time, error)
}
