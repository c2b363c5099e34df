package methods

import (
	"testing"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(Cash(), Card())

	handler, err := registry.Lookup(" cash ")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.PaymentCash, handler.Method())

	_, err = registry.Lookup("LOYALTY_POINTS")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMethod)

	var empty *Registry
	_, err = empty.Lookup("CASH")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMethod)
}

func TestPointsRequiredRoundsUp(t *testing.T) {
	order := &orderdomain.Order{FinalAmount: decimal.RequireFromString("115.01")}
	assert.Equal(t, int64(116), PointsRequired(order))

	order.FinalAmount = decimal.RequireFromString("116.00")
	assert.Equal(t, int64(116), PointsRequired(order))
}

func TestCashValidate(t *testing.T) {
	order := &orderdomain.Order{FinalAmount: decimal.RequireFromString("50.00")}
	exact := decimal.RequireFromString("50")
	negative := decimal.RequireFromString("-1")

	assert.NoError(t, Cash().Validate(&domain.Settlement{Order: order}))
	assert.NoError(t, Cash().Validate(&domain.Settlement{Order: order, AmountReceived: &exact}))
	assert.ErrorIs(t, Cash().Validate(&domain.Settlement{Order: order, AmountReceived: &negative}), domain.ErrInvalidAmountReceived)
}

func TestStoreCreditNeedsCustomer(t *testing.T) {
	h := StoreCredit(nil)
	order := &orderdomain.Order{FinalAmount: decimal.RequireFromString("1")}
	assert.ErrorIs(t, h.Validate(&domain.Settlement{Order: order}), domain.ErrCustomerRequired)

	err := h.Validate(&domain.Settlement{Order: order, Customer: &customerdomain.Customer{}})
	assert.ErrorIs(t, err, loyaltydomain.ErrNotFrequentCustomer)
}
