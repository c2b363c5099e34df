package pricing

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Audience restricts who may benefit from a promotion.
type Audience string

const (
	AudienceAll          Audience = "ALL"
	AudienceFrequentOnly Audience = "FREQUENT_ONLY"
)

func (a Audience) Valid() bool {
	return a == AudienceAll || a == AudienceFrequentOnly
}

// Item is the pricing-relevant view of a product row.
type Item struct {
	ListPrice       decimal.Decimal
	DiscountedPrice decimal.NullDecimal
	Audience        Audience
	TaxCategory     TaxCategory
	PromotionID     *snowflake.ID
	PromotionName   string
}

// Buyer is nil for anonymous sales.
type Buyer struct {
	Frequent bool
}

type Quote struct {
	ListPrice      decimal.Decimal
	Base           decimal.Decimal
	Final          decimal.Decimal
	TaxCategory    TaxCategory
	PromotionID    *snowflake.ID
	PromotionLabel string
}

// Discounted reports whether the quote carries a promotional price.
func (q Quote) Discounted() bool {
	return q.PromotionID != nil
}

// Resolve picks the unit price a buyer pays for item right now.
func Resolve(item Item, buyer *Buyer) Quote {
	listQuote := Quote{
		ListPrice:   item.ListPrice,
		Base:        item.ListPrice,
		Final:       FinalPrice(item.ListPrice, item.TaxCategory),
		TaxCategory: item.TaxCategory,
	}

	if !item.DiscountedPrice.Valid {
		return listQuote
	}
	if item.Audience == AudienceFrequentOnly && (buyer == nil || !buyer.Frequent) {
		return listQuote
	}

	base := item.DiscountedPrice.Decimal
	return Quote{
		ListPrice:      item.ListPrice,
		Base:           base,
		Final:          FinalPrice(base, item.TaxCategory),
		TaxCategory:    item.TaxCategory,
		PromotionID:    item.PromotionID,
		PromotionLabel: item.PromotionName,
	}
}

// Line holds the monetary snapshot of one cart line.
type Line struct {
	Quantity  int64
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Savings   decimal.Decimal
	Amount    decimal.Decimal
}

// Line prices qty units at the quoted base. Tax is rounded once per line.
func (q Quote) Line(qty int64) Line {
	units := decimal.NewFromInt(qty)
	subtotal := q.Base.Mul(units).Round(2)
	tax := TaxOn(subtotal, q.TaxCategory)
	savings := q.ListPrice.Sub(q.Base).Mul(units).Round(2)
	if savings.IsNegative() {
		savings = decimal.Zero
	}
	return Line{
		Quantity:  qty,
		UnitPrice: q.Base,
		Subtotal:  subtotal,
		Tax:       tax,
		Savings:   savings,
		Amount:    subtotal.Add(tax),
	}
}
