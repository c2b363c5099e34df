package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

// Service owns every movement of points and store credit. Methods taking a tx
// expect the customer row to be locked by the caller and mutate it in place.
type Service interface {
	CurrentPoints(ctx context.Context, customerID string) (int64, error)
	EarnPoints(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, amount int64, ref OrderRef) (*PointsTransaction, error)
	RedeemPoints(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, amount int64, ref OrderRef) (*PointsTransaction, error)
	AvailableCredit(customer *customerdomain.Customer) decimal.Decimal
	ChargeCredit(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, amount decimal.Decimal, ref OrderRef) (*CreditTransaction, error)
	RecomputeFrequentStatus(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer) (customerdomain.FrequentStatus, error)

	PayOffCredit(ctx context.Context, req PayOffCreditRequest) (PayOffCreditResult, error)
	AdjustPoints(ctx context.Context, req AdjustPointsRequest) (*PointsTransaction, error)
	PointsHistory(ctx context.Context, req HistoryRequest) (PointsHistoryResponse, error)
	CreditHistory(ctx context.Context, req HistoryRequest) (CreditHistoryResponse, error)
	// RecomputeAllFrequent refreshes every stale frequent flag and returns
	// how many customers were recomputed.
	RecomputeAllFrequent(ctx context.Context) (int, error)
}

type PayOffCreditRequest struct {
	CustomerID string          `json:"-"`
	Amount     decimal.Decimal `json:"amount"`
}

type PayOffCreditResult struct {
	Applied         decimal.Decimal `json:"applied"`
	CreditUsed      decimal.Decimal `json:"credit_used"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
}

type AdjustPointsRequest struct {
	CustomerID  string `json:"-"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type HistoryRequest struct {
	CustomerID string
	PageToken  string
	PageSize   int
}

type PointsHistoryResponse struct {
	pagination.PageInfo
	Transactions []PointsTransaction `json:"transactions"`
}

type CreditHistoryResponse struct {
	pagination.PageInfo
	Transactions []CreditTransaction `json:"transactions"`
}

var (
	ErrInvalidCustomer     = errors.New("invalid_customer_id")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientPoints  = errors.New("insufficient_points")
	ErrNotFrequentCustomer = errors.New("not_frequent_customer")
	ErrCreditLimitExceeded = errors.New("credit_limit_exceeded")
)

type InsufficientPointsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}

func (e *InsufficientPointsError) Details() map[string]any {
	return map[string]any{"required": e.Required, "available": e.Available}
}

type CreditLimitExceededError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("credit limit exceeded: required %s, available %s", e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *CreditLimitExceededError) Is(target error) bool {
	return target == ErrCreditLimitExceeded
}

func (e *CreditLimitExceededError) Details() map[string]any {
	return map[string]any{
		"required":  e.Required.StringFixed(2),
		"available": e.Available.StringFixed(2),
	}
}
