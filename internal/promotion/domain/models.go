package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/pricing"
)

const DateLayout = "2006-01-02"

type Promotion struct {
	ID              snowflake.ID     `json:"id" gorm:"primaryKey"`
	ProductID       snowflake.ID     `json:"product_id" gorm:"not null;index:ix_promotions_product_active,priority:1"`
	Name            string           `json:"name" gorm:"type:varchar(255);not null"`
	Description     string           `json:"description" gorm:"type:text"`
	DiscountPercent decimal.Decimal  `json:"discount_percent" gorm:"type:decimal(5,2);not null"`
	StartDate       time.Time        `json:"start_date" gorm:"type:date;not null"`
	EndDate         time.Time        `json:"end_date" gorm:"type:date;not null"`
	TargetAudience  pricing.Audience `json:"target_audience" gorm:"type:varchar(16);not null"`
	IsActive        bool             `json:"is_active" gorm:"not null;index:ix_promotions_product_active,priority:2"`
	CreatedAt       time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time        `json:"updated_at" gorm:"not null"`
}

func (Promotion) TableName() string { return "promotions" }

// ValidOn reports whether the promotion is live on the given calendar day.
func (p *Promotion) ValidOn(day time.Time) bool {
	return p.IsActive && !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// Overlaps reports whether [start, end] intersects the promotion window.
func (p *Promotion) Overlaps(start, end time.Time) bool {
	return !start.After(p.EndDate) && !p.StartDate.After(end)
}
