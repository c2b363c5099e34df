package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/customer/domain"
	"github.com/smallbiznis/tillpoint/internal/customer/repository"
	"github.com/smallbiznis/tillpoint/internal/customer/service"
	"github.com/smallbiznis/tillpoint/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &domain.Customer{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC))

	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fc,
	}), fc
}

func validRequest() domain.CreateCustomerRequest {
	return domain.CreateCustomerRequest{
		FirstName:   "Ana",
		LastName:    "Lopez",
		Email:       "ana@example.com",
		Phone:       "5550001111",
		BirthDate:   "1990-04-12",
		CreditLimit: decimal.RequireFromString("500"),
	}
}

func TestCreateCustomerStartsNonFrequent(t *testing.T) {
	svc, _ := newService(t)

	customer, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, customer.IsFrequent)
	assert.Equal(t, int64(0), customer.CurrentPoints)
	assert.Equal(t, "0.00", customer.CreditUsed.StringFixed(2))

	stored, err := svc.GetByID(context.Background(), customer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", stored.Email)
	assert.Equal(t, "1990-04-12", stored.BirthDate.Format("2006-01-02"))
	assert.Equal(t, "500.00", stored.CreditLimit.StringFixed(2))
}

func TestCreateCustomerRejectsDuplicates(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	dupEmail := validRequest()
	dupEmail.Phone = "5559999999"
	_, err = svc.Create(context.Background(), dupEmail)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	dupPhone := validRequest()
	dupPhone.Email = "other@example.com"
	_, err = svc.Create(context.Background(), dupPhone)
	assert.ErrorIs(t, err, domain.ErrDuplicatePhone)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc, _ := newService(t)

	cases := []struct {
		name   string
		mutate func(*domain.CreateCustomerRequest)
		err    error
	}{
		{"first name", func(r *domain.CreateCustomerRequest) { r.FirstName = "" }, domain.ErrInvalidFirstName},
		{"last name", func(r *domain.CreateCustomerRequest) { r.LastName = " " }, domain.ErrInvalidLastName},
		{"email", func(r *domain.CreateCustomerRequest) { r.Email = "nope" }, domain.ErrInvalidEmail},
		{"phone", func(r *domain.CreateCustomerRequest) { r.Phone = "" }, domain.ErrInvalidPhone},
		{"birth date format", func(r *domain.CreateCustomerRequest) { r.BirthDate = "12/04/1990" }, domain.ErrInvalidBirthDate},
		{"birth date future", func(r *domain.CreateCustomerRequest) { r.BirthDate = "2030-01-01" }, domain.ErrInvalidBirthDate},
		{"credit limit", func(r *domain.CreateCustomerRequest) { r.CreditLimit = decimal.NewFromInt(-1) }, domain.ErrInvalidCreditLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGetCustomerErrors(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.GetByID(context.Background(), "99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomersPaginates(t *testing.T) {
	svc, fc := newService(t)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		req := validRequest()
		req.Email = email
		req.Phone = "555000000" + string(rune('0'+i))
		_, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		fc.Advance(time.Second)
	}

	first, err := svc.List(context.Background(), domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "c@example.com", first.Customers[0].Email)

	second, err := svc.List(context.Background(), domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.Equal(t, "a@example.com", second.Customers[0].Email)
}

func TestBirthdayDiscountDue(t *testing.T) {
	c := domain.Customer{BirthDate: time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)}

	assert.True(t, c.BirthdayDiscountDue(time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)))
	assert.False(t, c.BirthdayDiscountDue(time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC)))

	c.LastBirthdayDiscountYear = 2025
	assert.False(t, c.BirthdayDiscountDue(time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)))
	assert.True(t, c.BirthdayDiscountDue(time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)))

	leap := domain.Customer{BirthDate: time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)}
	assert.True(t, leap.BirthdayDiscountDue(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.True(t, leap.BirthdayDiscountDue(time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.False(t, leap.BirthdayDiscountDue(time.Date(2028, 2, 28, 0, 0, 0, 0, time.UTC)))
}

func TestFrequentStatusStaleness(t *testing.T) {
	status := domain.FrequentStatus{CheckedMonth: "2025-06", Frequent: true}
	assert.False(t, status.StaleAt(time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)))
	assert.True(t, status.StaleAt(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}
