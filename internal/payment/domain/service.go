package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
)

type Service interface {
	// PayOrder settles a pending order with exactly one instrument.
	PayOrder(ctx context.Context, req PayOrderRequest) (*orderdomain.Order, error)
}

type PayOrderRequest struct {
	OrderID        string           `json:"-"`
	Method         string           `json:"payment_method"`
	AmountReceived *decimal.Decimal `json:"amount_received"`
}

var (
	ErrInvalidOrder          = errors.New("invalid_order_id")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrAlreadyPaid           = errors.New("already_paid")
	ErrAlreadyCancelled      = errors.New("already_cancelled")
	ErrUnsupportedMethod     = errors.New("invalid_payment_method")
	ErrCustomerRequired      = errors.New("customer_required")
	ErrInvalidAmountReceived = errors.New("invalid_amount_received")
	ErrInsufficientTender    = errors.New("insufficient_tender")
)

// InsufficientTenderError reports cash that does not cover the ticket.
type InsufficientTenderError struct {
	Required decimal.Decimal
	Received decimal.Decimal
}

func (e *InsufficientTenderError) Error() string {
	return fmt.Sprintf("insufficient tender: required %s, received %s", e.Required.StringFixed(2), e.Received.StringFixed(2))
}

func (e *InsufficientTenderError) Is(target error) bool {
	return target == ErrInsufficientTender
}

func (e *InsufficientTenderError) Details() map[string]any {
	return map[string]any{
		"required": e.Required.StringFixed(2),
		"received": e.Received.StringFixed(2),
		"missing":  e.Required.Sub(e.Received).StringFixed(2),
	}
}
