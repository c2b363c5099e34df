package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, promotion *Promotion) error
	Update(ctx context.Context, db *gorm.DB, promotion *Promotion) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Promotion, error)
	List(ctx context.Context, db *gorm.DB, productID *snowflake.ID) ([]*Promotion, error)
	// FindOverlapping returns active promotions of productID whose window
	// intersects [start, end], ordered by start date.
	FindOverlapping(ctx context.Context, db *gorm.DB, productID snowflake.ID, start, end time.Time, excludeID snowflake.ID) ([]*Promotion, error)
	ListExpired(ctx context.Context, db *gorm.DB, today time.Time) ([]*Promotion, error)
	ListValidOn(ctx context.Context, db *gorm.DB, day time.Time) ([]*Promotion, error)
}
