package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	"github.com/smallbiznis/tillpoint/internal/promotion/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Tx          *pkgdb.TxRunner
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	tx          *pkgdb.TxRunner
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	productRepo productdomain.Repository
	clock       clock.Clock
}

var hundred = decimal.NewFromInt(100)

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		tx:          p.Tx,
		log:         p.Log.Named("promotion.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		clock:       p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Promotion, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		return nil, domain.ErrInvalidProduct
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	audience := req.TargetAudience
	if audience == "" {
		audience = pricing.AudienceAll
	}

	now := s.clock.Now()
	promo := &domain.Promotion{
		ID:              s.genID.Generate(),
		ProductID:       productID,
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		DiscountPercent: req.DiscountPercent,
		TargetAudience:  audience,
		IsActive:        active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if promo.StartDate, err = domain.ParseDate(strings.TrimSpace(req.StartDate)); err != nil {
		return nil, domain.ErrInvalidStartDate
	}
	if promo.EndDate, err = domain.ParseDate(strings.TrimSpace(req.EndDate)); err != nil {
		return nil, domain.ErrInvalidEndDate
	}

	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		if err := s.validate(ctx, tx, promo); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, promo); err != nil {
			return err
		}
		return s.SyncProductPrice(ctx, tx, promo)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("promotion created",
		zap.String("promotion_id", promo.ID.String()),
		zap.String("product_id", promo.ProductID.String()),
		zap.Bool("live", promo.ValidOn(clock.Today(s.clock))),
	)
	return promo, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Promotion, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Promotion
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		promo, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if promo == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			promo.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			promo.Description = strings.TrimSpace(*req.Description)
		}
		if req.DiscountPercent != nil {
			promo.DiscountPercent = *req.DiscountPercent
		}
		if req.StartDate != nil {
			if promo.StartDate, err = domain.ParseDate(strings.TrimSpace(*req.StartDate)); err != nil {
				return domain.ErrInvalidStartDate
			}
		}
		if req.EndDate != nil {
			if promo.EndDate, err = domain.ParseDate(strings.TrimSpace(*req.EndDate)); err != nil {
				return domain.ErrInvalidEndDate
			}
		}
		if req.TargetAudience != nil {
			promo.TargetAudience = *req.TargetAudience
		}
		if req.IsActive != nil {
			promo.IsActive = *req.IsActive
		}

		if err := s.validate(ctx, tx, promo); err != nil {
			return err
		}
		promo.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, promo); err != nil {
			return err
		}
		updated = promo
		return s.SyncProductPrice(ctx, tx, promo)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	promoID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.tx.Run(ctx, func(tx *gorm.DB) error {
		promo, err := s.repo.FindByID(ctx, tx, promoID)
		if err != nil {
			return err
		}
		if promo == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, promoID); err != nil {
			return err
		}
		promo.IsActive = false
		return s.SyncProductPrice(ctx, tx, promo)
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Promotion, error) {
	promoID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	promo, err := s.repo.FindByID(ctx, s.db, promoID)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, domain.ErrNotFound
	}
	return promo, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Promotion, error) {
	var productID *snowflake.ID
	if raw := strings.TrimSpace(req.ProductID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidProduct
		}
		productID = &id
	}

	items, err := s.repo.List(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Promotion, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) SyncProductPrice(ctx context.Context, tx *gorm.DB, promo *domain.Promotion) error {
	product, err := s.productRepo.FindByIDForUpdate(ctx, tx, promo.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return nil
	}

	if promo.ValidOn(clock.Today(s.clock)) {
		audience := promo.TargetAudience
		id := promo.ID
		product.DiscountedPrice = decimal.NewNullDecimal(pricing.ApplyPercentOff(product.ListPrice, promo.DiscountPercent))
		product.PromotionAudience = &audience
		product.ActivePromotionID = &id
	} else {
		if product.ActivePromotionID == nil || *product.ActivePromotionID != promo.ID {
			return nil
		}
		product.ClearPromotion()
	}

	product.UpdatedAt = s.clock.Now()
	return s.productRepo.Update(ctx, tx, product)
}

func (s *Service) Reconcile(ctx context.Context, tx *gorm.DB) (domain.ReconcileResult, error) {
	var result domain.ReconcileResult
	today := clock.Today(s.clock)

	expired, err := s.repo.ListExpired(ctx, tx, today)
	if err != nil {
		return result, err
	}
	for _, promo := range expired {
		promo.IsActive = false
		promo.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, promo); err != nil {
			return result, err
		}
		if err := s.SyncProductPrice(ctx, tx, promo); err != nil {
			return result, err
		}
		result.Expired++
	}

	live, err := s.repo.ListValidOn(ctx, tx, today)
	if err != nil {
		return result, err
	}
	for _, promo := range live {
		if err := s.SyncProductPrice(ctx, tx, promo); err != nil {
			return result, err
		}
		result.Synced++
	}

	if result.Expired > 0 {
		s.log.Info("promotions reconciled", zap.Int("expired", result.Expired), zap.Int("synced", result.Synced))
	}
	return result, nil
}

func (s *Service) ReconcileNow(ctx context.Context) (domain.ReconcileResult, error) {
	var result domain.ReconcileResult
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.Reconcile(ctx, tx)
		return err
	})
	return result, err
}

// validate checks fields in the order clients see them reported: the overlap
// check runs before the window ordering check.
func (s *Service) validate(ctx context.Context, tx *gorm.DB, promo *domain.Promotion) error {
	if promo.Name == "" {
		return domain.ErrInvalidName
	}
	if !promo.DiscountPercent.IsPositive() || promo.DiscountPercent.GreaterThan(hundred) {
		return domain.ErrInvalidDiscountPercent
	}
	if !promo.TargetAudience.Valid() {
		return domain.ErrInvalidAudience
	}

	product, err := s.productRepo.FindByID(ctx, tx, promo.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.ErrProductNotFound
	}

	conflicts, err := s.repo.FindOverlapping(ctx, tx, promo.ProductID, promo.StartDate, promo.EndDate, promo.ID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return domain.NewOverlapError(conflicts[0])
	}

	if promo.StartDate.After(promo.EndDate) {
		return domain.ErrInvalidEndDate
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

