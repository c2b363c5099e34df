package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	"github.com/smallbiznis/tillpoint/internal/product/domain"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Tx            *pkgdb.TxRunner
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	PromotionRepo promotiondomain.Repository
	Clock         clock.Clock
}

type Service struct {
	db            *gorm.DB
	tx            *pkgdb.TxRunner
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	promotionRepo promotiondomain.Repository
	clock         clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		tx:            p.Tx,
		log:           p.Log.Named("product.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		promotionRepo: p.PromotionRepo,
		clock:         p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	sku := domain.NormalizeSKU(req.SKU)
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if !req.ListPrice.IsPositive() {
		return nil, domain.ErrInvalidListPrice
	}
	if !req.TaxCategory.Valid() {
		return nil, domain.ErrInvalidTaxCategory
	}
	if req.CurrentStock < 0 {
		return nil, domain.ErrInvalidStock
	}
	if req.MinStock < 0 {
		return nil, domain.ErrInvalidMinStock
	}

	existing, err := s.repo.FindBySKU(ctx, s.db, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateSKU
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:           s.genID.Generate(),
		SKU:          sku,
		Name:         name,
		ListPrice:    req.ListPrice.Round(2),
		TaxCategory:  req.TaxCategory,
		CurrentStock: req.CurrentStock,
		MinStock:     req.MinStock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, p); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSKU
		}
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", p.ID.String()),
		zap.String("sku", p.SKU),
		zap.String("final_price", p.FinalPrice.StringFixed(2)),
	)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		LowStock: req.LowStock,
		Name:     strings.TrimSpace(req.Name),
	}, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(p *domain.Product) pagination.Cursor {
		return pagination.Cursor{ID: p.ID.String(), CreatedAt: p.CreatedAt.Format(time.RFC3339Nano)}
	})

	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		products = append(products, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, Products: products}, nil
}

// UpdatePrice changes the list price or tax bracket. The promotional price of
// a live promotion is recomputed from the new list price before the save hook
// rederives final_price.
func (s *Service) UpdatePrice(ctx context.Context, req domain.UpdatePriceRequest) (*domain.Product, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if req.ListPrice != nil && !req.ListPrice.IsPositive() {
		return nil, domain.ErrInvalidListPrice
	}
	if req.TaxCategory != nil && !req.TaxCategory.Valid() {
		return nil, domain.ErrInvalidTaxCategory
	}

	var updated *domain.Product
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.ListPrice != nil {
			item.ListPrice = req.ListPrice.Round(2)
		}
		if req.TaxCategory != nil {
			item.TaxCategory = *req.TaxCategory
		}
		if err := s.repriceActivePromotion(ctx, tx, item); err != nil {
			return err
		}
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// repriceActivePromotion keeps discounted_price in step with list_price.
// A promotion that is gone or no longer live is cleared instead.
func (s *Service) repriceActivePromotion(ctx context.Context, tx *gorm.DB, item *domain.Product) error {
	if item.ActivePromotionID == nil {
		return nil
	}
	promo, err := s.promotionRepo.FindByID(ctx, tx, *item.ActivePromotionID)
	if err != nil {
		return err
	}
	if promo == nil || promo.ProductID != item.ID || !promo.ValidOn(clock.Today(s.clock)) {
		item.ClearPromotion()
		return nil
	}
	item.DiscountedPrice = decimal.NewNullDecimal(pricing.ApplyPercentOff(item.ListPrice, promo.DiscountPercent))
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
