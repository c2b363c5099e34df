package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Promotion, error)
	Update(ctx context.Context, req UpdateRequest) (*Promotion, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Promotion, error)
	List(ctx context.Context, req ListRequest) ([]Promotion, error)

	// SyncProductPrice pushes or withdraws the promotion's discount on its
	// product. Safe to call repeatedly.
	SyncProductPrice(ctx context.Context, tx *gorm.DB, promotion *Promotion) error
	// Reconcile expires promotions past their end date and re-syncs every
	// promotion valid today, inside the caller's transaction.
	Reconcile(ctx context.Context, tx *gorm.DB) (ReconcileResult, error)
	// ReconcileNow runs Reconcile in its own transaction.
	ReconcileNow(ctx context.Context) (ReconcileResult, error)
}

type CreateRequest struct {
	ProductID       string           `json:"product_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	TargetAudience  pricing.Audience `json:"target_audience"`
	IsActive        *bool            `json:"is_active"`
}

type UpdateRequest struct {
	ID              string            `json:"-"`
	Name            *string           `json:"name"`
	Description     *string           `json:"description"`
	DiscountPercent *decimal.Decimal  `json:"discount_percent"`
	StartDate       *string           `json:"start_date"`
	EndDate         *string           `json:"end_date"`
	TargetAudience  *pricing.Audience `json:"target_audience"`
	IsActive        *bool             `json:"is_active"`
}

type ListRequest struct {
	ProductID string
}

type ReconcileResult struct {
	Expired int `json:"expired"`
	Synced  int `json:"synced"`
}

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidProduct         = errors.New("invalid_product_id")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidDiscountPercent = errors.New("invalid_discount_percent")
	ErrInvalidStartDate       = errors.New("invalid_start_date")
	ErrInvalidEndDate         = errors.New("invalid_end_date")
	ErrInvalidAudience        = errors.New("invalid_target_audience")
	ErrProductNotFound        = errors.New("product_not_found")
	ErrNotFound               = errors.New("not_found")
	ErrOverlap                = errors.New("promotion_overlap")
)

// OverlapError names the promotion that blocks a window and the nearest
// windows that would not conflict with it.
type OverlapError struct {
	ConflictID          string
	ConflictName        string
	ConflictStart       time.Time
	ConflictEnd         time.Time
	SuggestedEndBefore  time.Time
	SuggestedStartAfter time.Time
}

func NewOverlapError(conflict *Promotion) *OverlapError {
	return &OverlapError{
		ConflictID:          conflict.ID.String(),
		ConflictName:        conflict.Name,
		ConflictStart:       conflict.StartDate,
		ConflictEnd:         conflict.EndDate,
		SuggestedEndBefore:  conflict.StartDate.AddDate(0, 0, -1),
		SuggestedStartAfter: conflict.EndDate.AddDate(0, 0, 1),
	}
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("window overlaps promotion %q (%s to %s): end on or before %s or start on or after %s",
		e.ConflictName,
		e.ConflictStart.Format(DateLayout),
		e.ConflictEnd.Format(DateLayout),
		e.SuggestedEndBefore.Format(DateLayout),
		e.SuggestedStartAfter.Format(DateLayout),
	)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

// Details exposes the numeric context for API clients.
func (e *OverlapError) Details() map[string]any {
	return map[string]any{
		"conflict_id":           e.ConflictID,
		"conflict_name":         e.ConflictName,
		"conflict_start":        e.ConflictStart.Format(DateLayout),
		"conflict_end":          e.ConflictEnd.Format(DateLayout),
		"suggested_end_before":  e.SuggestedEndBefore.Format(DateLayout),
		"suggested_start_after": e.SuggestedStartAfter.Format(DateLayout),
	}
}

// ParseDate reads a YYYY-MM-DD calendar day as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}
