package ticket_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/smallbiznis/tillpoint/internal/config"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	"github.com/smallbiznis/tillpoint/internal/testenv"
	"github.com/smallbiznis/tillpoint/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketForStoredOrder(t *testing.T) {
	env := testenv.New(t)
	customer := env.SeedCustomer(t, testenv.CustomerSeed{})
	product := env.SeedProduct(t, "SKU-1", "100.00", pricing.TaxGeneral, 5)

	order, err := env.Orders.CreateOrder(context.Background(), orderdomain.CreateOrderRequest{
		CustomerID: customer.ID.String(),
		SellerID:   env.Node.Generate().String(),
		Items:      []orderdomain.LineRequest{{ProductID: product.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	svc := ticket.New(ticket.Params{
		Config:    config.Config{AppName: "tillpoint"},
		Log:       env.Log,
		Orders:    env.Orders,
		Customers: env.Customers,
	})

	pdf, filename, err := svc.Ticket(context.Background(), order.ID.String())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, ticket.Filename(order.Folio, order.CreatedAt), filename)
}

func TestTicketUnknownOrder(t *testing.T) {
	env := testenv.New(t)
	svc := ticket.New(ticket.Params{Log: env.Log, Orders: env.Orders, Customers: env.Customers})

	_, _, err := svc.Ticket(context.Background(), env.Node.Generate().String())
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)
}
