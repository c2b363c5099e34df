package ticket

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidOrder() *orderdomain.Order {
	at := time.Date(2025, 7, 10, 10, 30, 0, 0, time.UTC)
	method := orderdomain.PaymentCash
	promo := "Summer 10%"
	return &orderdomain.Order{
		Folio:           "3F2A9C1B",
		Status:          orderdomain.StatusPaid,
		Subtotal:        decimal.RequireFromString("180"),
		TotalTax:        decimal.Zero,
		FinalAmount:     decimal.RequireFromString("180"),
		MoneySavedTotal: decimal.RequireFromString("20"),
		PaymentMethod:   &method,
		AmountReceived:  decimal.NewNullDecimal(decimal.RequireFromString("200")),
		ChangeDue:       decimal.RequireFromString("20"),
		PointsEarned:    2,
		CreatedAt:       at,
		PaidAt:          &at,
		Items: []orderdomain.OrderItem{{
			ProductName:    "Tortillas",
			Quantity:       2,
			UnitPrice:      decimal.RequireFromString("90"),
			DiscountAmount: decimal.RequireFromString("20"),
			Amount:         decimal.RequireFromString("180"),
			PromotionName:  &promo,
		}},
	}
}

func TestBuildFlattensOrder(t *testing.T) {
	data := Build("Tillpoint", paidOrder(), &customerdomain.Customer{FirstName: "Ana", LastName: "Lopez"})

	assert.Equal(t, "3F2A9C1B", data.Folio)
	assert.Equal(t, "Ana Lopez", data.CustomerName)
	assert.Equal(t, "CASH", data.PaymentMethod)
	assert.Equal(t, "200.00", data.AmountReceived)
	assert.Equal(t, "20.00", data.ChangeDue)
	assert.Equal(t, "2025-07-10 10:30", data.PaidAt)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Tortillas (Summer 10%)", data.Items[0].Description)
	assert.Equal(t, "20.00", data.Items[0].Discount)
}

func TestBuildWithoutCustomerOrPayment(t *testing.T) {
	order := paidOrder()
	order.Status = orderdomain.StatusPending
	order.PaymentMethod = nil
	order.PaidAt = nil
	order.AmountReceived = decimal.NullDecimal{}

	data := Build("Tillpoint", order, nil)
	assert.Empty(t, data.CustomerName)
	assert.Empty(t, data.PaymentMethod)
	assert.Empty(t, data.PaidAt)
	assert.Empty(t, data.AmountReceived)
}

func TestRenderProducesPDF(t *testing.T) {
	pdf, err := Render(Build("Tillpoint", paidOrder(), nil))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderRequiresFolio(t *testing.T) {
	_, err := Render(Data{})
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "ticket-3F2A9C1B-20250710.pdf", Filename("3F2A9C1B", time.Date(2025, 7, 10, 23, 0, 0, 0, time.UTC)))
}
