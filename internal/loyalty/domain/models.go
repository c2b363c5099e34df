package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PointsType string

const (
	PointsEarn   PointsType = "EARN"
	PointsRedeem PointsType = "REDEEM"
	PointsAdjust PointsType = "ADJUST"
)

type CreditType string

const (
	CreditCharge  CreditType = "CHARGE"
	CreditPayment CreditType = "PAYMENT"
)

type PointsTransaction struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID   snowflake.ID  `gorm:"not null;index:ix_points_tx_customer_created,priority:1" json:"customer_id"`
	OrderID      *snowflake.ID `gorm:"index" json:"order_id,omitempty"`
	Type         PointsType    `gorm:"type:varchar(10);not null" json:"type"`
	Amount       int64         `gorm:"not null" json:"amount"`
	BalanceAfter int64         `gorm:"not null" json:"balance_after"`
	Description  string        `gorm:"type:varchar(255)" json:"description"`
	CreatedAt    time.Time     `gorm:"not null;index:ix_points_tx_customer_created,priority:2" json:"created_at"`
}

func (PointsTransaction) TableName() string { return "points_transactions" }

type CreditTransaction struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID   snowflake.ID    `gorm:"not null;index:ix_credit_tx_customer_created,priority:1" json:"customer_id"`
	OrderID      *snowflake.ID   `gorm:"index" json:"order_id,omitempty"`
	Type         CreditType      `gorm:"type:varchar(10);not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	Description  string          `gorm:"type:varchar(255)" json:"description"`
	CreatedAt    time.Time       `gorm:"not null;index:ix_credit_tx_customer_created,priority:2" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

// OrderRef ties a ledger movement to the ticket that caused it.
type OrderRef struct {
	OrderID *snowflake.ID
	Folio   string
}
