package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	"github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recomputeBatchSize = 200

type Params struct {
	fx.In

	DB           *gorm.DB
	Tx           *pkgdb.TxRunner
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	Clock        clock.Clock
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	tx           *pkgdb.TxRunner
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	customerRepo customerdomain.Repository
	clock        clock.Clock
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		tx:           p.Tx,
		log:          p.Log.Named("loyalty.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		clock:        p.Clock,
		metrics:      p.Metrics,
	}
}

func (s *Service) CurrentPoints(ctx context.Context, customerID string) (int64, error) {
	id, err := parseCustomerID(customerID)
	if err != nil {
		return 0, err
	}
	customer, err := s.customerRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return 0, err
	}
	if customer == nil {
		return 0, domain.ErrCustomerNotFound
	}
	return customer.CurrentPoints, nil
}

func (s *Service) EarnPoints(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, amount int64, ref domain.OrderRef) (*domain.PointsTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	entry, err := s.movePoints(ctx, tx, customer, domain.PointsEarn, amount, ref.OrderID, fmt.Sprintf("Points for ticket %s", ref.Folio))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPointsEarned(ctx, amount)
	return entry, nil
}

func (s *Service) RedeemPoints(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, amount int64, ref domain.OrderRef) (*domain.PointsTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if customer.CurrentPoints < amount {
		return nil, &domain.InsufficientPointsError{Required: amount, Available: customer.CurrentPoints}
	}
	return s.movePoints(ctx, tx, customer, domain.PointsRedeem, -amount, ref.OrderID, fmt.Sprintf("Payment for ticket %s", ref.Folio))
}

func (s *Service) AvailableCredit(customer *customerdomain.Customer) decimal.Decimal {
	if customer == nil || !customer.IsFrequent {
		return decimal.Zero
	}
	return customer.AvailableCredit()
}

func (s *Service) ChargeCredit(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, amount decimal.Decimal, ref domain.OrderRef) (*domain.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !customer.IsFrequent {
		return nil, domain.ErrNotFrequentCustomer
	}
	available := s.AvailableCredit(customer)
	if amount.GreaterThan(available) {
		return nil, &domain.CreditLimitExceededError{Required: amount, Available: available}
	}

	customer.CreditUsed = customer.CreditUsed.Add(amount)
	return s.moveCredit(ctx, tx, customer, domain.CreditCharge, amount, ref.OrderID, fmt.Sprintf("Store credit for ticket %s", ref.Folio))
}

func (s *Service) RecomputeFrequentStatus(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer) (customerdomain.FrequentStatus, error) {
	now := s.clock.Now()
	current := customer.FrequentStatus()
	if !current.StaleAt(now) {
		return current, nil
	}

	from, to := priorMonth(now)
	purchases, err := s.repo.PaidOrderTimes(ctx, tx, customer.ID, from, to)
	if err != nil {
		return current, err
	}

	next := customerdomain.FrequentStatus{
		CheckedMonth: now.Format(customerdomain.MonthLayout),
		Frequent:     coversEveryWeek(from, to, purchases),
	}
	customer.SetFrequentStatus(next)
	customer.UpdatedAt = now
	if err := s.customerRepo.UpdateBalances(ctx, tx, customer); err != nil {
		return current, err
	}

	if next.Frequent != current.Frequent {
		s.log.Info("frequent status changed",
			zap.String("customer_id", customer.ID.String()),
			zap.Bool("frequent", next.Frequent),
		)
	}
	return next, nil
}

func (s *Service) PayOffCredit(ctx context.Context, req domain.PayOffCreditRequest) (domain.PayOffCreditResult, error) {
	id, err := parseCustomerID(req.CustomerID)
	if err != nil {
		return domain.PayOffCreditResult{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.PayOffCreditResult{}, domain.ErrInvalidAmount
	}

	var result domain.PayOffCreditResult
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		customer, err := s.lockCustomer(ctx, tx, id)
		if err != nil {
			return err
		}

		applied := decimal.Min(req.Amount.Round(2), customer.CreditUsed)
		if applied.IsPositive() {
			customer.CreditUsed = customer.CreditUsed.Sub(applied)
			if _, err := s.moveCredit(ctx, tx, customer, domain.CreditPayment, applied, nil, "Credit payment"); err != nil {
				return err
			}
		}
		result = domain.PayOffCreditResult{
			Applied:         applied,
			CreditUsed:      customer.CreditUsed,
			AvailableCredit: s.AvailableCredit(customer),
		}
		return nil
	})
	if err != nil {
		return domain.PayOffCreditResult{}, err
	}
	return result, nil
}

func (s *Service) AdjustPoints(ctx context.Context, req domain.AdjustPointsRequest) (*domain.PointsTransaction, error) {
	id, err := parseCustomerID(req.CustomerID)
	if err != nil {
		return nil, err
	}
	if req.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Manual adjustment"
	}

	var entry *domain.PointsTransaction
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		customer, err := s.lockCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		if customer.CurrentPoints+req.Amount < 0 {
			return &domain.InsufficientPointsError{Required: -req.Amount, Available: customer.CurrentPoints}
		}
		entry, err = s.movePoints(ctx, tx, customer, domain.PointsAdjust, req.Amount, nil, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) PointsHistory(ctx context.Context, req domain.HistoryRequest) (domain.PointsHistoryResponse, error) {
	id, err := s.existingCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.PointsHistoryResponse{}, err
	}
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.ListPoints(ctx, s.db, id, page)
	if err != nil {
		return domain.PointsHistoryResponse{}, err
	}
	items, info := pagination.BuildCursorPageInfo(items, page.Limit(), func(e *domain.PointsTransaction) pagination.Cursor {
		return pagination.Cursor{ID: e.ID.String(), CreatedAt: e.CreatedAt.Format(time.RFC3339Nano)}
	})

	out := make([]domain.PointsTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.PointsHistoryResponse{PageInfo: info, Transactions: out}, nil
}

func (s *Service) CreditHistory(ctx context.Context, req domain.HistoryRequest) (domain.CreditHistoryResponse, error) {
	id, err := s.existingCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.CreditHistoryResponse{}, err
	}
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.ListCredit(ctx, s.db, id, page)
	if err != nil {
		return domain.CreditHistoryResponse{}, err
	}
	items, info := pagination.BuildCursorPageInfo(items, page.Limit(), func(e *domain.CreditTransaction) pagination.Cursor {
		return pagination.Cursor{ID: e.ID.String(), CreatedAt: e.CreatedAt.Format(time.RFC3339Nano)}
	})

	out := make([]domain.CreditTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.CreditHistoryResponse{PageInfo: info, Transactions: out}, nil
}

func (s *Service) RecomputeAllFrequent(ctx context.Context) (int, error) {
	var (
		after      snowflake.ID
		recomputed int
	)
	for {
		ids, err := s.customerRepo.ListIDsAfter(ctx, s.db, after, recomputeBatchSize)
		if err != nil {
			return recomputed, err
		}
		if len(ids) == 0 {
			return recomputed, nil
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return recomputed, err
			}
			err := s.tx.Run(ctx, func(tx *gorm.DB) error {
				customer, err := s.lockCustomer(ctx, tx, id)
				if err != nil {
					return err
				}
				if !customer.FrequentStatus().StaleAt(s.clock.Now()) {
					return nil
				}
				if _, err := s.RecomputeFrequentStatus(ctx, tx, customer); err != nil {
					return err
				}
				recomputed++
				return nil
			})
			if err != nil {
				return recomputed, fmt.Errorf("recompute customer %s: %w", id, err)
			}
		}
		after = ids[len(ids)-1]
	}
}

func (s *Service) movePoints(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, kind domain.PointsType, delta int64, orderID *snowflake.ID, description string) (*domain.PointsTransaction, error) {
	now := s.clock.Now()
	customer.CurrentPoints += delta
	customer.UpdatedAt = now
	if err := s.customerRepo.UpdateBalances(ctx, tx, customer); err != nil {
		return nil, err
	}

	entry := &domain.PointsTransaction{
		ID:           s.genID.Generate(),
		CustomerID:   customer.ID,
		OrderID:      orderID,
		Type:         kind,
		Amount:       delta,
		BalanceAfter: customer.CurrentPoints,
		Description:  description,
		CreatedAt:    now,
	}
	if err := s.repo.InsertPoints(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// moveCredit persists customer.CreditUsed, which the caller has already moved.
func (s *Service) moveCredit(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, kind domain.CreditType, amount decimal.Decimal, orderID *snowflake.ID, description string) (*domain.CreditTransaction, error) {
	now := s.clock.Now()
	customer.UpdatedAt = now
	if err := s.customerRepo.UpdateBalances(ctx, tx, customer); err != nil {
		return nil, err
	}

	entry := &domain.CreditTransaction{
		ID:           s.genID.Generate(),
		CustomerID:   customer.ID,
		OrderID:      orderID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: customer.CreditUsed,
		Description:  description,
		CreatedAt:    now,
	}
	if err := s.repo.InsertCredit(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) lockCustomer(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*customerdomain.Customer, error) {
	customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (s *Service) existingCustomer(ctx context.Context, raw string) (snowflake.ID, error) {
	id, err := parseCustomerID(raw)
	if err != nil {
		return 0, err
	}
	customer, err := s.customerRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return 0, err
	}
	if customer == nil {
		return 0, domain.ErrCustomerNotFound
	}
	return id, nil
}

func parseCustomerID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidCustomer
	}
	return id, nil
}
