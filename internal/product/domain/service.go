package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	UpdatePrice(ctx context.Context, req UpdatePriceRequest) (*Product, error)
}

type CreateRequest struct {
	SKU          string              `json:"sku"`
	Name         string              `json:"name"`
	ListPrice    decimal.Decimal     `json:"list_price"`
	TaxCategory  pricing.TaxCategory `json:"tax_rate"`
	CurrentStock int64               `json:"current_stock"`
	MinStock     int64               `json:"min_stock"`
}

type UpdatePriceRequest struct {
	ID          string               `json:"-"`
	ListPrice   *decimal.Decimal     `json:"list_price"`
	TaxCategory *pricing.TaxCategory `json:"tax_rate"`
}

type ListRequest struct {
	PageToken string
	PageSize  int
	LowStock  *bool
	Name      string
}

type ListFilter struct {
	LowStock *bool
	Name     string
}

type ListResponse struct {
	pagination.PageInfo
	Products []Product `json:"products"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidSKU         = errors.New("invalid_sku")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidListPrice   = errors.New("invalid_list_price")
	ErrInvalidTaxCategory = errors.New("invalid_tax_rate")
	ErrInvalidStock       = errors.New("invalid_current_stock")
	ErrInvalidMinStock    = errors.New("invalid_min_stock")
	ErrDuplicateSKU       = errors.New("duplicate_sku")
	ErrNotFound           = errors.New("not_found")
)
