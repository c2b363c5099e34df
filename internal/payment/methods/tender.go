package methods

import (
	"context"

	"github.com/shopspring/decimal"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/domain"
	"gorm.io/gorm"
)

type cash struct{}

func Cash() domain.Handler { return cash{} }

func (cash) Method() orderdomain.PaymentMethod { return orderdomain.PaymentCash }

func (cash) EarnsPoints() bool { return true }

func (cash) Validate(s *domain.Settlement) error {
	if s.AmountReceived == nil {
		return nil
	}
	if s.AmountReceived.IsNegative() {
		return domain.ErrInvalidAmountReceived
	}
	if s.AmountReceived.LessThan(s.Order.FinalAmount) {
		return &domain.InsufficientTenderError{Required: s.Order.FinalAmount, Received: *s.AmountReceived}
	}
	return nil
}

func (cash) Execute(_ context.Context, _ *gorm.DB, s *domain.Settlement) error {
	if s.AmountReceived == nil {
		s.Order.AmountReceived = decimal.NullDecimal{}
		s.Order.ChangeDue = decimal.Zero
		return nil
	}
	received := s.AmountReceived.Round(2)
	s.Order.AmountReceived = decimal.NewNullDecimal(received)
	s.Order.ChangeDue = received.Sub(s.Order.FinalAmount)
	return nil
}

type card struct{}

func Card() domain.Handler { return card{} }

func (card) Method() orderdomain.PaymentMethod { return orderdomain.PaymentCard }

func (card) EarnsPoints() bool { return true }

func (card) Validate(*domain.Settlement) error { return nil }

func (card) Execute(context.Context, *gorm.DB, *domain.Settlement) error { return nil }
