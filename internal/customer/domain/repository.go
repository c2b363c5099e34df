package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	// UpdateBalances writes the ledger-owned columns of customer.
	UpdateBalances(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	ExistsByEmail(ctx context.Context, db *gorm.DB, email string) (bool, error)
	ExistsByPhone(ctx context.Context, db *gorm.DB, phone string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	// ListIDsAfter walks customers in id order for batch jobs.
	ListIDsAfter(ctx context.Context, db *gorm.DB, after snowflake.ID, limit int) ([]snowflake.ID, error)
}
