package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	"gorm.io/gorm"
)

type Product struct {
	ID                snowflake.ID        `json:"id" gorm:"primaryKey"`
	SKU               string              `json:"sku" gorm:"column:sku;type:varchar(64);not null;uniqueIndex:ux_products_sku"`
	Name              string              `json:"name" gorm:"type:varchar(255);not null"`
	ListPrice         decimal.Decimal     `json:"list_price" gorm:"type:decimal(12,2);not null"`
	DiscountedPrice   decimal.NullDecimal `json:"discounted_price" gorm:"type:decimal(12,2)"`
	PromotionAudience *pricing.Audience   `json:"promotion_audience,omitempty" gorm:"type:varchar(16)"`
	TaxCategory       pricing.TaxCategory `json:"tax_rate" gorm:"column:tax_rate;type:varchar(16);not null"`
	FinalPrice        decimal.Decimal     `json:"final_price" gorm:"type:decimal(12,2);not null"`
	CurrentStock      int64               `json:"current_stock" gorm:"not null;default:0"`
	ReservedQuantity  int64               `json:"reserved_quantity" gorm:"not null;default:0"`
	MinStock          int64               `json:"min_stock" gorm:"not null;default:0"`
	LowStock          bool                `json:"low_stock" gorm:"not null;default:false"`
	ActivePromotionID *snowflake.ID       `json:"active_promotion_id,omitempty" gorm:"index"`
	CreatedAt         time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time           `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// BeforeSave keeps the derived columns consistent on every write.
func (p *Product) BeforeSave(*gorm.DB) error {
	p.Normalize()
	return nil
}

// Normalize recomputes the columns callers may not set directly.
func (p *Product) Normalize() {
	p.SKU = NormalizeSKU(p.SKU)
	p.FinalPrice = pricing.FinalPrice(p.ShelfBase(), p.TaxCategory)
	p.LowStock = p.Available() <= p.MinStock
}

// ShelfBase is the tax-exclusive price shown to every walk-in buyer.
// Discounts restricted to frequent customers are resolved at checkout only.
func (p *Product) ShelfBase() decimal.Decimal {
	if p.DiscountedPrice.Valid && (p.PromotionAudience == nil || *p.PromotionAudience == pricing.AudienceAll) {
		return p.DiscountedPrice.Decimal
	}
	return p.ListPrice
}

// Available is stock that is neither sold nor held by a reservation.
func (p *Product) Available() int64 {
	return p.CurrentStock - p.ReservedQuantity
}

// PricingItem adapts the row for pricing.Resolve.
func (p *Product) PricingItem(promotionName string) pricing.Item {
	item := pricing.Item{
		ListPrice:       p.ListPrice,
		DiscountedPrice: p.DiscountedPrice,
		Audience:        pricing.AudienceAll,
		TaxCategory:     p.TaxCategory,
		PromotionID:     p.ActivePromotionID,
		PromotionName:   promotionName,
	}
	if p.PromotionAudience != nil {
		item.Audience = *p.PromotionAudience
	}
	return item
}

// ClearPromotion withdraws any promotional price from the row.
func (p *Product) ClearPromotion() {
	p.DiscountedPrice = decimal.NullDecimal{}
	p.PromotionAudience = nil
	p.ActivePromotionID = nil
}

func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
