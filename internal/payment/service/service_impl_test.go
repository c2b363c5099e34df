package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/domain"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	"github.com/smallbiznis/tillpoint/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingOrder rings up one unit of a 100.00 general-rate product (116.00).
func pendingOrder(t *testing.T, env *testenv.Env, customerID string) *orderdomain.Order {
	t.Helper()
	product := env.SeedProduct(t, env.Node.Generate().String(), "100.00", pricing.TaxGeneral, 10)
	order, err := env.Orders.CreateOrder(context.Background(), orderdomain.CreateOrderRequest{
		CustomerID: customerID,
		SellerID:   env.Node.Generate().String(),
		Items:      []orderdomain.LineRequest{{ProductID: product.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "116.00", order.FinalAmount.StringFixed(2))
	return order
}

func reload(t *testing.T, env *testenv.Env, order *orderdomain.Order) *orderdomain.Order {
	t.Helper()
	got, err := env.Orders.Get(context.Background(), order.ID.String())
	require.NoError(t, err)
	return got
}

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestPayCashRecordsChangeAndAccruesPoints(t *testing.T) {
	env := testenv.New(t)
	customer := env.SeedCustomer(t, testenv.CustomerSeed{Points: 3})
	order := pendingOrder(t, env, customer.ID.String())

	paid, err := env.Payments.PayOrder(context.Background(), domain.PayOrderRequest{
		OrderID:        order.ID.String(),
		Method:         "cash",
		AmountReceived: amount("200"),
	})
	require.NoError(t, err)

	assert.Equal(t, orderdomain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentMethod)
	assert.Equal(t, orderdomain.PaymentCash, *paid.PaymentMethod)
	assert.Equal(t, "84.00", paid.ChangeDue.StringFixed(2))
	assert.Equal(t, int64(1), paid.PointsEarned)
	require.NotNil(t, paid.PaidAt)

	assert.Equal(t, int64(4), env.Customer(t, customer.ID).CurrentPoints)
	history, err := env.Loyalty.PointsHistory(context.Background(), loyaltydomain.HistoryRequest{CustomerID: customer.ID.String()})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, "Points for ticket "+order.Folio, history.Transactions[0].Description)

	assert.Equal(t, []string{eventsdomain.TopicOrderCreated, eventsdomain.TopicOrderPaid}, env.OutboxTopics(t))
}

func TestPayCashRejectsShortTender(t *testing.T) {
	env := testenv.New(t)
	order := pendingOrder(t, env, "")

	_, err := env.Payments.PayOrder(context.Background(), domain.PayOrderRequest{
		OrderID:        order.ID.String(),
		Method:         "CASH",
		AmountReceived: amount("100"),
	})
	var short *domain.InsufficientTenderError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, "16.00", short.Details()["missing"])
	assert.Equal(t, orderdomain.StatusPending, reload(t, env, order).Status)
}

func TestPayCardAnonymous(t *testing.T) {
	env := testenv.New(t)
	order := pendingOrder(t, env, "")

	paid, err := env.Payments.PayOrder(context.Background(), domain.PayOrderRequest{OrderID: order.ID.String(), Method: "CARD"})
	require.NoError(t, err)
	assert.Zero(t, paid.PointsEarned)
	assert.False(t, paid.AmountReceived.Valid)
}

func TestPayWithPoints(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	poor := env.SeedCustomer(t, testenv.CustomerSeed{Points: 50})
	order := pendingOrder(t, env, poor.ID.String())
	_, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "LOYALTY_POINTS"})
	var short *loyaltydomain.InsufficientPointsError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, int64(116), short.Required)
	assert.Equal(t, int64(50), short.Available)
	assert.Equal(t, orderdomain.StatusPending, reload(t, env, order).Status)
	assert.Equal(t, int64(50), env.Customer(t, poor.ID).CurrentPoints)

	rich := env.SeedCustomer(t, testenv.CustomerSeed{Points: 200})
	order = pendingOrder(t, env, rich.ID.String())
	paid, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "LOYALTY_POINTS"})
	require.NoError(t, err)
	assert.Equal(t, int64(116), paid.PointsUsed)
	assert.Zero(t, paid.PointsEarned)
	assert.Equal(t, int64(84), env.Customer(t, rich.ID).CurrentPoints)

	anonymous := pendingOrder(t, env, "")
	_, err = env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: anonymous.ID.String(), Method: "LOYALTY_POINTS"})
	assert.ErrorIs(t, err, domain.ErrCustomerRequired)
}

func TestPayWithStoreCredit(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	occasional := env.SeedCustomer(t, testenv.CustomerSeed{CreditLimit: "10000"})
	order := pendingOrder(t, env, occasional.ID.String())
	_, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "STORE_CREDIT"})
	assert.ErrorIs(t, err, loyaltydomain.ErrNotFrequentCustomer)

	capped := env.SeedCustomer(t, testenv.CustomerSeed{Frequent: true, CreditLimit: "150", CreditUsed: "40"})
	order = pendingOrder(t, env, capped.ID.String())
	_, err = env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "STORE_CREDIT"})
	var exceeded *loyaltydomain.CreditLimitExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "110.00", exceeded.Available.StringFixed(2))

	regular := env.SeedCustomer(t, testenv.CustomerSeed{Frequent: true, CreditLimit: "500"})
	order = pendingOrder(t, env, regular.ID.String())
	paid, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "STORE_CREDIT"})
	require.NoError(t, err)
	assert.Equal(t, "116.00", paid.StoreCreditUsed.StringFixed(2))
	assert.Equal(t, "116.00", env.Customer(t, regular.ID).CreditUsed.StringFixed(2))
}

func TestPayTwiceFails(t *testing.T) {
	env := testenv.New(t)
	customer := env.SeedCustomer(t, testenv.CustomerSeed{Points: 500, Frequent: true, CreditLimit: "1000"})
	order := pendingOrder(t, env, customer.ID.String())
	ctx := context.Background()

	first, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "CARD"})
	require.NoError(t, err)

	for _, method := range []string{"CASH", "CARD", "LOYALTY_POINTS", "STORE_CREDIT"} {
		_, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: method})
		assert.ErrorIs(t, err, domain.ErrAlreadyPaid, method)
	}

	after := reload(t, env, order)
	assert.Equal(t, first.FinalAmount.StringFixed(2), after.FinalAmount.StringFixed(2))
	assert.Equal(t, orderdomain.PaymentCard, *after.PaymentMethod)
	assert.Equal(t, "0.00", env.Customer(t, customer.ID).CreditUsed.StringFixed(2))
}

func TestPayRejectsUnknownMethodAndCancelledOrder(t *testing.T) {
	env := testenv.New(t)
	order := pendingOrder(t, env, "")
	ctx := context.Background()

	_, err := env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "BITCOIN"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMethod)

	_, err = env.Orders.CancelOrder(ctx, order.ID.String())
	require.NoError(t, err)
	_, err = env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: order.ID.String(), Method: "CASH"})
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	_, err = env.Payments.PayOrder(ctx, domain.PayOrderRequest{OrderID: env.Node.Generate().String(), Method: "CASH"})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
