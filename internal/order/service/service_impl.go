package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	inventorydomain "github.com/smallbiznis/tillpoint/internal/inventory/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/internal/observability/metrics"
	"github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const folioAttempts = 5

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB            *gorm.DB
	Tx            *pkgdb.TxRunner
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	PromotionRepo promotiondomain.Repository
	Promotions    promotiondomain.Service
	Inventory     inventorydomain.Service
	CustomerRepo  customerdomain.Repository
	Loyalty       loyaltydomain.Service
	Outbox        eventsdomain.Outbox
	Policy        *config.PolicyHolder
	Clock         clock.Clock
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	tx            *pkgdb.TxRunner
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	promotionRepo promotiondomain.Repository
	promotions    promotiondomain.Service
	inventory     inventorydomain.Service
	customerRepo  customerdomain.Repository
	loyalty       loyaltydomain.Service
	outbox        eventsdomain.Outbox
	policy        *config.PolicyHolder
	clock         clock.Clock
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		tx:            p.Tx,
		log:           p.Log.Named("order.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		promotionRepo: p.PromotionRepo,
		promotions:    p.Promotions,
		inventory:     p.Inventory,
		customerRepo:  p.CustomerRepo,
		loyalty:       p.Loyalty,
		outbox:        p.Outbox,
		policy:        p.Policy,
		clock:         p.Clock,
		metrics:       p.Metrics,
	}
}

type cartLine struct {
	productID   snowflake.ID
	quantity    int64
	promotionID *snowflake.ID
}

type cart struct {
	customerID *snowflake.ID
	sellerID   snowflake.ID
	lines      []cartLine
}

func (c cart) productIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(c.lines))
	for _, line := range c.lines {
		ids = append(ids, line.productID)
	}
	return ids
}

type totals struct {
	subtotal decimal.Decimal
	tax      decimal.Decimal
	savings  decimal.Decimal
}

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	c, err := parseCart(req)
	if err != nil {
		s.reject(ctx, "create_order", err)
		return nil, err
	}

	var order *domain.Order
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		if _, err := s.promotions.Reconcile(ctx, tx); err != nil {
			return err
		}

		now := s.clock.Now()
		customer, err := s.lockBuyer(ctx, tx, c.customerID)
		if err != nil {
			return err
		}

		folio, err := s.newFolio(ctx, tx)
		if err != nil {
			return err
		}
		order = &domain.Order{
			ID:              s.genID.Generate(),
			Folio:           folio,
			Status:          domain.StatusPending,
			Subtotal:        decimal.Zero,
			TotalTax:        decimal.Zero,
			FinalAmount:     decimal.Zero,
			MoneySavedTotal: decimal.Zero,
			DiscountRatio:   decimal.Zero,
			ChangeDue:       decimal.Zero,
			StoreCreditUsed: decimal.Zero,
			CustomerID:      c.customerID,
			SellerID:        c.sellerID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}

		var buyer *pricing.Buyer
		if customer != nil {
			buyer = &pricing.Buyer{Frequent: customer.IsFrequent}
		}

		if err := s.inventory.LockProducts(ctx, tx, c.productIDs()); err != nil {
			return err
		}
		sum := totals{subtotal: decimal.Zero, tax: decimal.Zero, savings: decimal.Zero}
		for i, line := range c.lines {
			item, err := s.addLine(ctx, tx, order.ID, line, buyer)
			if err != nil {
				return &domain.LineError{Index: i, Err: err}
			}
			order.Items = append(order.Items, *item)
			sum.subtotal = sum.subtotal.Add(item.Amount.Sub(item.TaxAmount))
			sum.tax = sum.tax.Add(item.TaxAmount)
			sum.savings = sum.savings.Add(item.DiscountAmount)
		}

		if customer != nil && customer.BirthdayDiscountDue(clock.DateOf(now)) {
			percent := s.policy.Get().BirthdayDiscountPercent
			if percent > 0 {
				sum = applyBirthdayDiscount(sum, decimal.NewFromInt(percent))
				order.IsBirthdayDiscountApplied = true
				customer.LastBirthdayDiscountYear = now.Year()
				customer.UpdatedAt = now
				if err := s.customerRepo.UpdateBalances(ctx, tx, customer); err != nil {
					return err
				}
			}
		}

		order.Subtotal = sum.subtotal
		order.TotalTax = sum.tax
		order.FinalAmount = sum.subtotal.Add(sum.tax)
		order.MoneySavedTotal = sum.savings
		order.DiscountRatio = domain.DiscountRatio(order.FinalAmount, sum.savings)
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}

		_, err = s.outbox.Enqueue(ctx, tx, eventsdomain.TopicOrderCreated, order.ID, order.Event(now))
		return err
	})
	if err != nil {
		s.reject(ctx, "create_order", err)
		return nil, err
	}

	s.metrics.RecordOrderCreated(ctx)
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("folio", order.Folio),
		zap.Int("lines", len(order.Items)),
		zap.String("final_amount", order.FinalAmount.StringFixed(2)),
	)
	return order, nil
}

func (s *Service) addLine(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, line cartLine, buyer *pricing.Buyer) (*domain.OrderItem, error) {
	if line.promotionID != nil {
		promo, err := s.promotionRepo.FindByID(ctx, tx, *line.promotionID)
		if err != nil {
			return nil, err
		}
		if promo == nil {
			return nil, domain.ErrPromotionNotFound
		}
		if promo.ProductID != line.productID {
			return nil, domain.ErrPromotionMismatch
		}
	}

	product, err := s.inventory.Commit(ctx, tx, line.productID, line.quantity, false)
	if err != nil {
		return nil, err
	}

	var promotionName string
	if product.ActivePromotionID != nil {
		active, err := s.promotionRepo.FindByID(ctx, tx, *product.ActivePromotionID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			promotionName = active.Name
		}
	}

	quote := pricing.Resolve(product.PricingItem(promotionName), buyer)
	priced := quote.Line(line.quantity)

	item := &domain.OrderItem{
		ID:             s.genID.Generate(),
		OrderID:        orderID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		SKU:            product.SKU,
		Quantity:       line.quantity,
		ListUnitPrice:  quote.ListPrice,
		UnitPrice:      priced.UnitPrice,
		TaxAmount:      priced.Tax,
		DiscountAmount: priced.Savings,
		Amount:         priced.Amount,
	}
	if quote.Discounted() {
		item.PromotionID = quote.PromotionID
		label := quote.PromotionLabel
		item.PromotionName = &label
	}
	if err := s.repo.InsertItem(ctx, tx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// applyBirthdayDiscount takes percent off subtotal and tax separately. The
// pre-tax difference counts as savings.
func applyBirthdayDiscount(sum totals, percent decimal.Decimal) totals {
	factor := hundred.Sub(percent).Div(hundred)
	subtotal := sum.subtotal.Mul(factor).Round(2)
	return totals{
		subtotal: subtotal,
		tax:      sum.tax.Mul(factor).Round(2),
		savings:  sum.savings.Add(sum.subtotal.Sub(subtotal)),
	}
}

func (s *Service) lockBuyer(ctx context.Context, tx *gorm.DB, id *snowflake.ID) (*customerdomain.Customer, error) {
	if id == nil {
		return nil, nil
	}
	customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, *id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}
	if customer.FrequentStatus().StaleAt(s.clock.Now()) {
		if _, err := s.loyalty.RecomputeFrequentStatus(ctx, tx, customer); err != nil {
			return nil, err
		}
	}
	return customer, nil
}

// newFolio draws the first group of a random UUID until it is unused.
func (s *Service) newFolio(ctx context.Context, tx *gorm.DB) (string, error) {
	for range folioAttempts {
		folio := strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
		exists, err := s.repo.FolioExists(ctx, tx, folio)
		if err != nil {
			return "", err
		}
		if !exists {
			return folio, nil
		}
	}
	return "", domain.ErrFolioExhausted
}

func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	orderID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		order, err = s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		switch order.Status {
		case domain.StatusPaid:
			return domain.ErrCannotCancelPaid
		case domain.StatusCancelled:
			return domain.ErrAlreadyCancelled
		}

		items, err := s.repo.ListItems(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		productIDs := make([]snowflake.ID, 0, len(items))
		for _, item := range items {
			productIDs = append(productIDs, item.ProductID)
		}
		if err := s.inventory.LockProducts(ctx, tx, productIDs); err != nil {
			return err
		}
		for _, item := range items {
			if _, err := s.inventory.Restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		order.Status = domain.StatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		order.Items = items
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}

		_, err = s.outbox.Enqueue(ctx, tx, eventsdomain.TopicOrderCancelled, order.ID, order.Event(now))
		return err
	})
	if err != nil {
		s.reject(ctx, "cancel_order", err)
		return nil, err
	}

	s.metrics.RecordOrderCancelled(ctx)
	s.log.Info("order cancelled", zap.String("order_id", order.ID.String()), zap.String("folio", order.Folio))
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	orderID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	order.Items, err = s.repo.ListItems(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	var filter domain.ListFilter
	if status := domain.Status(strings.ToUpper(strings.TrimSpace(req.Status))); status != "" {
		switch status {
		case domain.StatusPending, domain.StatusPaid, domain.StatusCancelled:
			filter.Status = status
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID, domain.ErrInvalidCustomer)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.CustomerID = &id
	}
	if strings.TrimSpace(req.SellerID) != "" {
		id, err := parseID(req.SellerID, domain.ErrInvalidSeller)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.SellerID = &id
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListResponse{}, err
	}
	items, info := pagination.BuildCursorPageInfo(items, page.Limit(), func(o *domain.Order) pagination.Cursor {
		return pagination.Cursor{ID: o.ID.String(), CreatedAt: o.CreatedAt.Format(time.RFC3339Nano)}
	})

	orders := make([]domain.Order, 0, len(items))
	for _, o := range items {
		orders = append(orders, *o)
	}
	return domain.ListResponse{PageInfo: info, Orders: orders}, nil
}

func (s *Service) reject(ctx context.Context, operation string, err error) {
	reason := metrics.RejectionReason(err,
		domain.ErrEmptyCart,
		domain.ErrInvalidQuantity,
		domain.ErrInvalidSeller,
		domain.ErrInvalidCustomer,
		domain.ErrInvalidProduct,
		domain.ErrInvalidPromotion,
		domain.ErrInvalidID,
		domain.ErrCustomerNotFound,
		domain.ErrPromotionNotFound,
		domain.ErrPromotionMismatch,
		domain.ErrNotFound,
		domain.ErrCannotCancelPaid,
		domain.ErrAlreadyCancelled,
		inventorydomain.ErrInsufficientStock,
		inventorydomain.ErrProductNotFound,
		pkgdb.ErrTransient,
	)
	s.metrics.RecordCheckoutRejection(ctx, operation, reason)
	if reason == "internal" {
		s.log.Error("order operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

func parseCart(req domain.CreateOrderRequest) (cart, error) {
	var c cart

	sellerID, err := parseID(req.SellerID, domain.ErrInvalidSeller)
	if err != nil {
		return c, err
	}
	c.sellerID = sellerID

	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err := parseID(req.CustomerID, domain.ErrInvalidCustomer)
		if err != nil {
			return c, err
		}
		c.customerID = &customerID
	}

	if len(req.Items) == 0 {
		return c, domain.ErrEmptyCart
	}
	c.lines = make([]cartLine, 0, len(req.Items))
	for i, item := range req.Items {
		productID, err := parseID(item.ProductID, domain.ErrInvalidProduct)
		if err != nil {
			return c, &domain.LineError{Index: i, Err: err}
		}
		if item.Quantity <= 0 {
			return c, &domain.LineError{Index: i, Err: domain.ErrInvalidQuantity}
		}
		line := cartLine{productID: productID, quantity: item.Quantity}
		if strings.TrimSpace(item.PromotionID) != "" {
			promotionID, err := parseID(item.PromotionID, domain.ErrInvalidPromotion)
			if err != nil {
				return c, &domain.LineError{Index: i, Err: err}
			}
			line.promotionID = &promotionID
		}
		c.lines = append(c.lines, line)
	}
	return c, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}
