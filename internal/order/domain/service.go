package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
)

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, id string) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type CreateOrderRequest struct {
	CustomerID string        `json:"customer_id"`
	SellerID   string        `json:"-"`
	Items      []LineRequest `json:"items"`
}

type LineRequest struct {
	ProductID   string `json:"product_id"`
	Quantity    int64  `json:"quantity"`
	PromotionID string `json:"promotion_id"`
}

type ListRequest struct {
	PageToken  string
	PageSize   int
	Status     string
	CustomerID string
	SellerID   string
}

type ListResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrEmptyCart         = errors.New("empty_cart")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidSeller     = errors.New("invalid_seller_id")
	ErrInvalidCustomer   = errors.New("invalid_customer_id")
	ErrInvalidProduct    = errors.New("invalid_product_id")
	ErrInvalidPromotion  = errors.New("invalid_promotion_id")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrCustomerNotFound  = errors.New("customer_not_found")
	ErrPromotionNotFound = errors.New("promotion_not_found")
	ErrPromotionMismatch = errors.New("promotion_mismatch")
	ErrNotFound          = errors.New("order_not_found")
	ErrCannotCancelPaid  = errors.New("cannot_cancel_paid")
	ErrAlreadyCancelled  = errors.New("already_cancelled")
	ErrFolioExhausted    = errors.New("folio_exhausted")
)

// LineError ties a failure to one cart line.
type LineError struct {
	Index int
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("items[%d]: %v", e.Index, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Field names the request field at fault, e.g. items[2].quantity.
func (e *LineError) Field() string {
	if name, ok := strings.CutPrefix(e.Err.Error(), "invalid_"); ok {
		return fmt.Sprintf("items[%d].%s", e.Index, name)
	}
	return fmt.Sprintf("items[%d]", e.Index)
}

func (e *LineError) Details() map[string]any {
	details := map[string]any{"line": e.Index}
	var detailed interface{ Details() map[string]any }
	if errors.As(e.Err, &detailed) {
		for k, v := range detailed.Details() {
			details[k] = v
		}
	}
	return details
}
