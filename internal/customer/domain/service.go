package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	Email     string
	Frequent  *bool
}

type ListCustomerFilter struct {
	Email    string
	Frequent *bool
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone_number"`
	BirthDate   string          `json:"birth_date"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, string) (Customer, error)
}

var (
	ErrInvalidFirstName   = errors.New("invalid_first_name")
	ErrInvalidLastName    = errors.New("invalid_last_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidPhone       = errors.New("invalid_phone_number")
	ErrInvalidBirthDate   = errors.New("invalid_birth_date")
	ErrInvalidCreditLimit = errors.New("invalid_credit_limit")
	ErrDuplicateEmail     = errors.New("duplicate_email")
	ErrDuplicatePhone     = errors.New("duplicate_phone_number")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
