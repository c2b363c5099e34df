package methods

import (
	"context"

	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/domain"
	"gorm.io/gorm"
)

type loyaltyPoints struct {
	ledger loyaltydomain.Service
}

func LoyaltyPoints(ledger loyaltydomain.Service) domain.Handler {
	return loyaltyPoints{ledger: ledger}
}

func (loyaltyPoints) Method() orderdomain.PaymentMethod { return orderdomain.PaymentLoyaltyPoints }

func (loyaltyPoints) EarnsPoints() bool { return false }

// PointsRequired is one point per currency unit, rounded up.
func PointsRequired(order *orderdomain.Order) int64 {
	return order.FinalAmount.Ceil().IntPart()
}

func (loyaltyPoints) Validate(s *domain.Settlement) error {
	if s.Customer == nil {
		return domain.ErrCustomerRequired
	}
	required := PointsRequired(s.Order)
	if s.Customer.CurrentPoints < required {
		return &loyaltydomain.InsufficientPointsError{Required: required, Available: s.Customer.CurrentPoints}
	}
	return nil
}

func (h loyaltyPoints) Execute(ctx context.Context, tx *gorm.DB, s *domain.Settlement) error {
	required := PointsRequired(s.Order)
	if required > 0 {
		if _, err := h.ledger.RedeemPoints(ctx, tx, s.Customer, required, s.Ref()); err != nil {
			return err
		}
	}
	s.Order.PointsUsed = required
	return nil
}

type storeCredit struct {
	ledger loyaltydomain.Service
}

func StoreCredit(ledger loyaltydomain.Service) domain.Handler {
	return storeCredit{ledger: ledger}
}

func (storeCredit) Method() orderdomain.PaymentMethod { return orderdomain.PaymentStoreCredit }

func (storeCredit) EarnsPoints() bool { return false }

func (h storeCredit) Validate(s *domain.Settlement) error {
	if s.Customer == nil {
		return domain.ErrCustomerRequired
	}
	if !s.Customer.IsFrequent {
		return loyaltydomain.ErrNotFrequentCustomer
	}
	available := h.ledger.AvailableCredit(s.Customer)
	if s.Order.FinalAmount.GreaterThan(available) {
		return &loyaltydomain.CreditLimitExceededError{Required: s.Order.FinalAmount, Available: available}
	}
	return nil
}

func (h storeCredit) Execute(ctx context.Context, tx *gorm.DB, s *domain.Settlement) error {
	if s.Order.FinalAmount.IsPositive() {
		if _, err := h.ledger.ChargeCredit(ctx, tx, s.Customer, s.Order.FinalAmount, s.Ref()); err != nil {
			return err
		}
	}
	s.Order.StoreCreditUsed = s.Order.FinalAmount
	return nil
}
