package domain

import (
	"context"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"gorm.io/gorm"
)

// Settlement is the locked state a Handler works on. Customer is nil for
// anonymous tickets.
type Settlement struct {
	Order          *orderdomain.Order
	Customer       *customerdomain.Customer
	AmountReceived *decimal.Decimal
}

func (s *Settlement) Ref() loyaltydomain.OrderRef {
	id := s.Order.ID
	return loyaltydomain.OrderRef{OrderID: &id, Folio: s.Order.Folio}
}

// Handler settles one payment method. Validate has no side effects; Execute
// moves the ledgers and fills the order's tender columns.
type Handler interface {
	Method() orderdomain.PaymentMethod
	Validate(s *Settlement) error
	Execute(ctx context.Context, tx *gorm.DB, s *Settlement) error
	// EarnsPoints reports whether the sale accrues loyalty points.
	EarnsPoints() bool
}
