package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/methods"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Tx           *pkgdb.TxRunner
	Log          *zap.Logger
	Methods      *methods.Registry
	OrderRepo    orderdomain.Repository
	CustomerRepo customerdomain.Repository
	Loyalty      loyaltydomain.Service
	Outbox       eventsdomain.Outbox
	Policy       *config.PolicyHolder
	Clock        clock.Clock
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	tx           *pkgdb.TxRunner
	log          *zap.Logger
	methods      *methods.Registry
	orderRepo    orderdomain.Repository
	customerRepo customerdomain.Repository
	loyalty      loyaltydomain.Service
	outbox       eventsdomain.Outbox
	policy       *config.PolicyHolder
	clock        clock.Clock
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		tx:           p.Tx,
		log:          p.Log.Named("payment.service"),
		methods:      p.Methods,
		orderRepo:    p.OrderRepo,
		customerRepo: p.CustomerRepo,
		loyalty:      p.Loyalty,
		outbox:       p.Outbox,
		policy:       p.Policy,
		clock:        p.Clock,
		metrics:      p.Metrics,
	}
}

func (s *Service) PayOrder(ctx context.Context, req domain.PayOrderRequest) (*orderdomain.Order, error) {
	handler, err := s.methods.Lookup(req.Method)
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}
	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil || orderID <= 0 {
		return nil, domain.ErrInvalidOrder
	}

	var order *orderdomain.Order
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		order, err = s.orderRepo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		switch order.Status {
		case orderdomain.StatusPaid:
			return domain.ErrAlreadyPaid
		case orderdomain.StatusCancelled:
			return domain.ErrAlreadyCancelled
		}

		customer, err := s.lockCustomer(ctx, tx, order.CustomerID)
		if err != nil {
			return err
		}

		settlement := &domain.Settlement{Order: order, Customer: customer, AmountReceived: req.AmountReceived}
		if err := handler.Validate(settlement); err != nil {
			return err
		}
		if err := handler.Execute(ctx, tx, settlement); err != nil {
			return err
		}

		now := s.clock.Now()
		method := handler.Method()
		order.Status = orderdomain.StatusPaid
		order.PaymentMethod = &method
		order.PaidAt = &now
		order.UpdatedAt = now

		if customer != nil {
			if handler.EarnsPoints() {
				if err := s.accrue(ctx, tx, settlement); err != nil {
					return err
				}
			}
			if _, err := s.loyalty.RecomputeFrequentStatus(ctx, tx, customer); err != nil {
				return err
			}
		}

		if err := s.orderRepo.Update(ctx, tx, order); err != nil {
			return err
		}
		_, err = s.outbox.Enqueue(ctx, tx, eventsdomain.TopicOrderPaid, order.ID, order.Event(now))
		return err
	})
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	s.metrics.RecordOrderPaid(ctx, string(handler.Method()))
	s.log.Info("order paid",
		zap.String("order_id", order.ID.String()),
		zap.String("folio", order.Folio),
		zap.String("method", string(handler.Method())),
		zap.String("final_amount", order.FinalAmount.StringFixed(2)),
		zap.Int64("points_earned", order.PointsEarned),
	)
	return order, nil
}

// accrue credits round(final × earn rate) points to the buyer.
func (s *Service) accrue(ctx context.Context, tx *gorm.DB, settlement *domain.Settlement) error {
	rate := decimal.NewFromFloat(s.policy.Get().LoyaltyEarnRate)
	points := settlement.Order.FinalAmount.Mul(rate).Round(0).IntPart()
	if points <= 0 {
		return nil
	}
	if _, err := s.loyalty.EarnPoints(ctx, tx, settlement.Customer, points, settlement.Ref()); err != nil {
		return err
	}
	settlement.Order.PointsEarned = points
	return nil
}

func (s *Service) lockCustomer(ctx context.Context, tx *gorm.DB, id *snowflake.ID) (*customerdomain.Customer, error) {
	if id == nil {
		return nil, nil
	}
	customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, *id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, loyaltydomain.ErrCustomerNotFound
	}
	if _, err := s.loyalty.RecomputeFrequentStatus(ctx, tx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Service) reject(ctx context.Context, err error) {
	reason := metrics.RejectionReason(err,
		domain.ErrUnsupportedMethod,
		domain.ErrInvalidOrder,
		domain.ErrOrderNotFound,
		domain.ErrAlreadyPaid,
		domain.ErrAlreadyCancelled,
		domain.ErrCustomerRequired,
		domain.ErrInvalidAmountReceived,
		domain.ErrInsufficientTender,
		loyaltydomain.ErrInsufficientPoints,
		loyaltydomain.ErrNotFrequentCustomer,
		loyaltydomain.ErrCreditLimitExceeded,
		loyaltydomain.ErrCustomerNotFound,
		pkgdb.ErrTransient,
	)
	s.metrics.RecordCheckoutRejection(ctx, "pay_order", reason)
	if reason == "internal" {
		s.log.Error("payment failed", zap.Error(err))
	}
}
