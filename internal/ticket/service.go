package ticket

import (
	"context"
	"errors"

	"github.com/smallbiznis/tillpoint/internal/config"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Orders    orderdomain.Service
	Customers customerdomain.Service
}

type service struct {
	storeName string
	log       *zap.Logger
	orders    orderdomain.Service
	customers customerdomain.Service
}

func New(p Params) Service {
	return &service{
		storeName: p.Config.AppName,
		log:       p.Log.Named("ticket.service"),
		orders:    p.Orders,
		customers: p.Customers,
	}
}

func (s *service) Ticket(ctx context.Context, orderID string) ([]byte, string, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	var buyer *customerdomain.Customer
	if order.CustomerID != nil {
		customer, err := s.customers.GetByID(ctx, order.CustomerID.String())
		switch {
		case err == nil:
			buyer = &customer
		case errors.Is(err, customerdomain.ErrNotFound):
			s.log.Warn("ticket customer missing", zap.String("order_id", orderID))
		default:
			return nil, "", err
		}
	}

	pdf, err := Render(Build(s.storeName, order, buyer))
	if err != nil {
		s.log.Error("render ticket", zap.String("order_id", orderID), zap.Error(err))
		return nil, "", err
	}
	return pdf, Filename(order.Folio, order.CreatedAt), nil
}
