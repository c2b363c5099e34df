package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	"gorm.io/gorm"
)

type Service interface {
	// Reserve moves Delta units in (positive) or out of (negative) the
	// product's reservation in its own transaction.
	Reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error)
	// Commit sells qty units under the caller's transaction and returns the
	// locked row after mutation.
	Commit(ctx context.Context, tx *gorm.DB, productID snowflake.ID, qty int64, consumeReservation bool) (*productdomain.Product, error)
	// LockProducts takes the row locks for every listed product in ascending
	// id order so multi-line writes never wait on each other in a cycle.
	// Unknown ids are skipped.
	LockProducts(ctx context.Context, tx *gorm.DB, productIDs []snowflake.ID) error
	// Restock returns qty units to the shelf under the caller's transaction.
	Restock(ctx context.Context, tx *gorm.DB, productID snowflake.ID, qty int64) (*productdomain.Product, error)
	// SweepLowStock refreshes low-stock flags and returns how many changed.
	SweepLowStock(ctx context.Context) (int64, error)
}

type ReserveRequest struct {
	ProductID string `json:"-"`
	Delta     int64  `json:"amount"`
}

type ReserveResult struct {
	ProductID       string `json:"product_id"`
	Reserved        int64  `json:"reserved_quantity"`
	AvailableToSell int64  `json:"available_to_sell"`
}

var (
	ErrInvalidProduct    = errors.New("invalid_product_id")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrProductNotFound   = errors.New("product_not_found")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrOverRelease       = errors.New("reservation_over_release")
)

type InsufficientStockError struct {
	ProductID snowflake.ID
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func (e *InsufficientStockError) Details() map[string]any {
	return map[string]any{
		"product_id": e.ProductID.String(),
		"requested":  e.Requested,
		"available":  e.Available,
	}
}

// OverReleaseError reports an attempt to release or consume more units
// than are currently reserved.
type OverReleaseError struct {
	ProductID snowflake.ID
	Reserved  int64
	Requested int64
}

func (e *OverReleaseError) Error() string {
	return fmt.Sprintf("cannot release %d units of product %s: only %d reserved", e.Requested, e.ProductID, e.Reserved)
}

func (e *OverReleaseError) Is(target error) bool {
	return target == ErrOverRelease
}

func (e *OverReleaseError) Details() map[string]any {
	return map[string]any{
		"product_id": e.ProductID.String(),
		"reserved":   e.Reserved,
		"requested":  e.Requested,
	}
}
