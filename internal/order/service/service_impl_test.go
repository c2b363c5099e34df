package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	inventorydomain "github.com/smallbiznis/tillpoint/internal/inventory/domain"
	"github.com/smallbiznis/tillpoint/internal/order/domain"
	paymentdomain "github.com/smallbiznis/tillpoint/internal/payment/domain"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	"github.com/smallbiznis/tillpoint/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var folioPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

func cartOf(env *testenv.Env, customerID string, lines ...domain.LineRequest) domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		CustomerID: customerID,
		SellerID:   env.Node.Generate().String(),
		Items:      lines,
	}
}

func line(productID string, qty int64) domain.LineRequest {
	return domain.LineRequest{ProductID: productID, Quantity: qty}
}

func createPromotion(t *testing.T, env *testenv.Env, productID, percent string, audience pricing.Audience) *promotiondomain.Promotion {
	t.Helper()
	promo, err := env.Promotions.Create(context.Background(), promotiondomain.CreateRequest{
		ProductID:       productID,
		Name:            "Summer " + percent,
		DiscountPercent: decimal.RequireFromString(percent),
		StartDate:       "2025-07-01",
		EndDate:         "2025-07-31",
		TargetAudience:  audience,
	})
	require.NoError(t, err)
	return promo
}

func TestCreateOrderAtListPrice(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "sku-1", "100.00", pricing.TaxGeneral, 5)

	order, err := env.Orders.CreateOrder(context.Background(), cartOf(env, "", line(product.ID.String(), 1)))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Regexp(t, folioPattern, order.Folio)
	assert.Equal(t, "100.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "16.00", order.TotalTax.StringFixed(2))
	assert.Equal(t, "116.00", order.FinalAmount.StringFixed(2))
	assert.True(t, order.MoneySavedTotal.IsZero())
	assert.True(t, order.DiscountRatio.IsZero())

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "SKU-1", item.SKU)
	assert.Equal(t, "100.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "116.00", item.Amount.StringFixed(2))
	assert.Nil(t, item.PromotionID)

	assert.Equal(t, int64(4), env.Product(t, product.ID).CurrentStock)
	assert.Equal(t, []string{eventsdomain.TopicOrderCreated}, env.OutboxTopics(t))
}

func TestCreateOrderAppliesPromotion(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "rice", "100.00", pricing.TaxExempt, 10)
	promo := createPromotion(t, env, product.ID.String(), "10", pricing.AudienceAll)

	order, err := env.Orders.CreateOrder(context.Background(), cartOf(env, "", line(product.ID.String(), 2)))
	require.NoError(t, err)

	assert.Equal(t, "180.00", order.FinalAmount.StringFixed(2))
	assert.Equal(t, "20.00", order.MoneySavedTotal.StringFixed(2))
	assert.Equal(t, "0.1000", order.DiscountRatio.StringFixed(4))
	assert.Equal(t, "200.00", order.Subtotal.Add(order.MoneySavedTotal).StringFixed(2))

	item := order.Items[0]
	assert.Equal(t, "90.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "100.00", item.ListUnitPrice.StringFixed(2))
	require.NotNil(t, item.PromotionID)
	assert.Equal(t, promo.ID, *item.PromotionID)
	require.NotNil(t, item.PromotionName)
	assert.Equal(t, promo.Name, *item.PromotionName)
}

func TestFrequentOnlyPromotionNeedsFrequentBuyer(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "coffee", "50.00", pricing.TaxZero, 10)
	createPromotion(t, env, product.ID.String(), "20", pricing.AudienceFrequentOnly)
	ctx := context.Background()

	walkIn, err := env.Orders.CreateOrder(ctx, cartOf(env, "", line(product.ID.String(), 1)))
	require.NoError(t, err)
	assert.Equal(t, "50.00", walkIn.FinalAmount.StringFixed(2))

	occasional := env.SeedCustomer(t, testenv.CustomerSeed{})
	order, err := env.Orders.CreateOrder(ctx, cartOf(env, occasional.ID.String(), line(product.ID.String(), 1)))
	require.NoError(t, err)
	assert.Equal(t, "50.00", order.FinalAmount.StringFixed(2))

	regular := env.SeedCustomer(t, testenv.CustomerSeed{Frequent: true})
	order, err = env.Orders.CreateOrder(ctx, cartOf(env, regular.ID.String(), line(product.ID.String(), 1)))
	require.NoError(t, err)
	assert.Equal(t, "40.00", order.FinalAmount.StringFixed(2))
	assert.Equal(t, "10.00", order.MoneySavedTotal.StringFixed(2))
}

func TestBirthdayDiscountOncePerYear(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "cake", "100.00", pricing.TaxGeneral, 10)
	customer := env.SeedCustomer(t, testenv.CustomerSeed{BirthDate: time.Date(1992, 7, 10, 0, 0, 0, 0, time.UTC)})
	ctx := context.Background()

	order, err := env.Orders.CreateOrder(ctx, cartOf(env, customer.ID.String(), line(product.ID.String(), 1)))
	require.NoError(t, err)
	assert.True(t, order.IsBirthdayDiscountApplied)
	assert.Equal(t, "90.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "14.40", order.TotalTax.StringFixed(2))
	assert.Equal(t, "104.40", order.FinalAmount.StringFixed(2))
	assert.Equal(t, "10.00", order.MoneySavedTotal.StringFixed(2))
	assert.Equal(t, 2025, env.Customer(t, customer.ID).LastBirthdayDiscountYear)

	again, err := env.Orders.CreateOrder(ctx, cartOf(env, customer.ID.String(), line(product.ID.String(), 1)))
	require.NoError(t, err)
	assert.False(t, again.IsBirthdayDiscountApplied)
	assert.Equal(t, "116.00", again.FinalAmount.StringFixed(2))
}

func TestCreateOrderValidation(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "milk", "10.00", pricing.TaxZero, 10)
	ctx := context.Background()

	_, err := env.Orders.CreateOrder(ctx, cartOf(env, ""))
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = env.Orders.CreateOrder(ctx, domain.CreateOrderRequest{Items: []domain.LineRequest{line(product.ID.String(), 1)}})
	assert.ErrorIs(t, err, domain.ErrInvalidSeller)

	_, err = env.Orders.CreateOrder(ctx, cartOf(env, "abc", line(product.ID.String(), 1)))
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = env.Orders.CreateOrder(ctx, cartOf(env, "", line(product.ID.String(), 1), line(product.ID.String(), 0)))
	var lineErr *domain.LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 1, lineErr.Index)
	assert.Equal(t, "items[1].quantity", lineErr.Field())
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = env.Orders.CreateOrder(ctx, cartOf(env, env.Node.Generate().String(), line(product.ID.String(), 1)))
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	assert.Equal(t, int64(10), env.Product(t, product.ID).CurrentStock)
	assert.Empty(t, env.OutboxTopics(t))
}

func TestCreateOrderRollsBackOnShortStock(t *testing.T) {
	env := testenv.New(t)
	plenty := env.SeedProduct(t, "bread", "20.00", pricing.TaxZero, 10)
	scarce := env.SeedProduct(t, "wine", "200.00", pricing.TaxGeneral, 1)

	_, err := env.Orders.CreateOrder(context.Background(), cartOf(env, "",
		line(plenty.ID.String(), 3),
		line(scarce.ID.String(), 2),
	))
	var short *inventorydomain.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, int64(1), short.Available)

	var lineErr *domain.LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 1, lineErr.Index)

	assert.Equal(t, int64(10), env.Product(t, plenty.ID).CurrentStock)
	var count int64
	require.NoError(t, env.DB.Model(&domain.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderRejectsForeignPromotion(t *testing.T) {
	env := testenv.New(t)
	soap := env.SeedProduct(t, "soap", "15.00", pricing.TaxGeneral, 5)
	towel := env.SeedProduct(t, "towel", "80.00", pricing.TaxGeneral, 5)
	promo := createPromotion(t, env, towel.ID.String(), "15", pricing.AudienceAll)

	req := cartOf(env, "", domain.LineRequest{ProductID: soap.ID.String(), Quantity: 1, PromotionID: promo.ID.String()})
	_, err := env.Orders.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrPromotionMismatch)

	req = cartOf(env, "", domain.LineRequest{ProductID: soap.ID.String(), Quantity: 1, PromotionID: env.Node.Generate().String()})
	_, err = env.Orders.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}

func TestCreateOrderLinesKeepCartOrder(t *testing.T) {
	env := testenv.New(t)
	first := env.SeedProduct(t, "milk", "10.00", pricing.TaxZero, 5)
	second := env.SeedProduct(t, "eggs", "20.00", pricing.TaxZero, 5)

	order, err := env.Orders.CreateOrder(context.Background(), cartOf(env, "",
		line(second.ID.String(), 1),
		line(first.ID.String(), 2),
		line(second.ID.String(), 3),
	))
	require.NoError(t, err)

	require.Len(t, order.Items, 3)
	assert.Equal(t, second.ID, order.Items[0].ProductID)
	assert.Equal(t, first.ID, order.Items[1].ProductID)
	assert.Equal(t, second.ID, order.Items[2].ProductID)
	assert.Equal(t, "100.00", order.FinalAmount.StringFixed(2))
	assert.Equal(t, int64(3), env.Product(t, first.ID).CurrentStock)
	assert.Equal(t, int64(1), env.Product(t, second.ID).CurrentStock)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	env := testenv.New(t)
	a := env.SeedProduct(t, "a", "10.00", pricing.TaxGeneral, 8)
	b := env.SeedProduct(t, "b", "5.00", pricing.TaxZero, 4)
	ctx := context.Background()

	order, err := env.Orders.CreateOrder(ctx, cartOf(env, "", line(a.ID.String(), 3), line(b.ID.String(), 4)))
	require.NoError(t, err)
	assert.Equal(t, int64(5), env.Product(t, a.ID).CurrentStock)
	assert.Equal(t, int64(0), env.Product(t, b.ID).CurrentStock)

	cancelled, err := env.Orders.CancelOrder(ctx, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, order.FinalAmount.StringFixed(2), cancelled.FinalAmount.StringFixed(2))

	assert.Equal(t, int64(8), env.Product(t, a.ID).CurrentStock)
	assert.Equal(t, int64(4), env.Product(t, b.ID).CurrentStock)
	assert.Equal(t, []string{eventsdomain.TopicOrderCreated, eventsdomain.TopicOrderCancelled}, env.OutboxTopics(t))

	_, err = env.Orders.CancelOrder(ctx, order.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	assert.Equal(t, int64(8), env.Product(t, a.ID).CurrentStock)
}

func TestCancelPaidOrderRejected(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "lamp", "30.00", pricing.TaxGeneral, 3)
	ctx := context.Background()

	order, err := env.Orders.CreateOrder(ctx, cartOf(env, "", line(product.ID.String(), 1)))
	require.NoError(t, err)
	_, err = env.Payments.PayOrder(ctx, paymentdomain.PayOrderRequest{OrderID: order.ID.String(), Method: "CARD"})
	require.NoError(t, err)

	_, err = env.Orders.CancelOrder(ctx, order.ID.String())
	assert.ErrorIs(t, err, domain.ErrCannotCancelPaid)
	assert.Equal(t, int64(2), env.Product(t, product.ID).CurrentStock)

	_, err = env.Orders.CancelOrder(ctx, env.Node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAndListOrders(t *testing.T) {
	env := testenv.New(t)
	product := env.SeedProduct(t, "pen", "2.50", pricing.TaxGeneral, 50)
	customer := env.SeedCustomer(t, testenv.CustomerSeed{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		order, err := env.Orders.CreateOrder(ctx, cartOf(env, customer.ID.String(), line(product.ID.String(), int64(i+1))))
		require.NoError(t, err)
		ids = append(ids, order.ID.String())
		env.Clock.Advance(time.Minute)
	}
	_, err := env.Orders.CreateOrder(ctx, cartOf(env, "", line(product.ID.String(), 1)))
	require.NoError(t, err)

	got, err := env.Orders.Get(ctx, ids[2])
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(3), got.Items[0].Quantity)
	assert.Equal(t, "8.70", got.FinalAmount.StringFixed(2))

	_, err = env.Orders.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	page, err := env.Orders.List(ctx, domain.ListRequest{CustomerID: customer.ID.String(), PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextPageToken)

	next, err := env.Orders.List(ctx, domain.ListRequest{CustomerID: customer.ID.String(), PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, next.Orders, 1)

	_, err = env.Orders.List(ctx, domain.ListRequest{Status: "shipped"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
