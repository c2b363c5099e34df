package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "CASH"
	PaymentCard          PaymentMethod = "CARD"
	PaymentLoyaltyPoints PaymentMethod = "LOYALTY_POINTS"
	PaymentStoreCredit   PaymentMethod = "STORE_CREDIT"
)

// Order is a sales ticket. Totals are frozen once it leaves PENDING.
type Order struct {
	ID                        snowflake.ID        `json:"id" gorm:"primaryKey"`
	Folio                     string              `json:"folio" gorm:"type:char(8);not null;uniqueIndex:ux_orders_folio"`
	Status                    Status              `json:"status" gorm:"type:varchar(16);not null;index"`
	Subtotal                  decimal.Decimal     `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	TotalTax                  decimal.Decimal     `json:"total_tax" gorm:"type:decimal(12,2);not null"`
	FinalAmount               decimal.Decimal     `json:"final_amount" gorm:"type:decimal(12,2);not null"`
	MoneySavedTotal           decimal.Decimal     `json:"money_saved_total" gorm:"type:decimal(12,2);not null"`
	DiscountRatio             decimal.Decimal     `json:"discount_ratio" gorm:"type:decimal(7,4);not null"`
	IsBirthdayDiscountApplied bool                `json:"is_birthday_discount_applied" gorm:"not null;default:false"`
	PaymentMethod             *PaymentMethod      `json:"payment_method" gorm:"type:varchar(32)"`
	AmountReceived            decimal.NullDecimal `json:"amount_received" gorm:"type:decimal(12,2)"`
	ChangeDue                 decimal.Decimal     `json:"change_due" gorm:"type:decimal(12,2);not null"`
	PointsUsed                int64               `json:"points_used" gorm:"not null;default:0"`
	StoreCreditUsed           decimal.Decimal     `json:"store_credit_used" gorm:"type:decimal(12,2);not null"`
	PointsEarned              int64               `json:"points_earned" gorm:"not null;default:0"`
	CustomerID                *snowflake.ID       `json:"customer_id" gorm:"index"`
	SellerID                  snowflake.ID        `json:"seller_id" gorm:"not null;index"`
	CreatedAt                 time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt                 time.Time           `json:"updated_at" gorm:"not null"`
	PaidAt                    *time.Time          `json:"paid_at"`
	CancelledAt               *time.Time          `json:"cancelled_at"`
	Items                     []OrderItem         `json:"items,omitempty" gorm:"-"`
}

func (Order) TableName() string { return "orders" }

// OrderItem snapshots the product and price at the moment of sale.
type OrderItem struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderID        snowflake.ID    `json:"order_id" gorm:"not null;index"`
	ProductID      snowflake.ID    `json:"product_id" gorm:"not null;index"`
	ProductName    string          `json:"product_name" gorm:"type:varchar(255);not null"`
	SKU            string          `json:"sku" gorm:"column:sku;type:varchar(64);not null"`
	Quantity       int64           `json:"quantity" gorm:"not null"`
	ListUnitPrice  decimal.Decimal `json:"list_unit_price" gorm:"type:decimal(12,2);not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TaxAmount      decimal.Decimal `json:"tax_amount" gorm:"type:decimal(12,2);not null"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2);not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	PromotionID    *snowflake.ID   `json:"promotion_id"`
	PromotionName  *string         `json:"promotion_name" gorm:"type:varchar(255)"`
}

func (OrderItem) TableName() string { return "order_items" }

// Settled reports whether the totals are frozen.
func (o *Order) Settled() bool {
	return o.Status != StatusPending
}

// DiscountRatio is savings over the pre-discount gross. Zero when both are zero.
func DiscountRatio(finalAmount, savings decimal.Decimal) decimal.Decimal {
	gross := finalAmount.Add(savings)
	if gross.IsZero() {
		return decimal.Zero
	}
	return savings.Div(gross).Round(4)
}

// Event is the payload of the order.* outbox topics.
type Event struct {
	OrderID         string          `json:"order_id"`
	Folio           string          `json:"folio"`
	Status          Status          `json:"status"`
	CustomerID      *string         `json:"customer_id,omitempty"`
	SellerID        string          `json:"seller_id"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	MoneySavedTotal decimal.Decimal `json:"money_saved_total"`
	PaymentMethod   *PaymentMethod  `json:"payment_method,omitempty"`
	PointsEarned    int64           `json:"points_earned,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

func (o *Order) Event(at time.Time) Event {
	ev := Event{
		OrderID:         o.ID.String(),
		Folio:           o.Folio,
		Status:          o.Status,
		SellerID:        o.SellerID.String(),
		FinalAmount:     o.FinalAmount,
		MoneySavedTotal: o.MoneySavedTotal,
		PaymentMethod:   o.PaymentMethod,
		PointsEarned:    o.PointsEarned,
		OccurredAt:      at,
	}
	if o.CustomerID != nil {
		id := o.CustomerID.String()
		ev.CustomerID = &id
	}
	return ev
}
