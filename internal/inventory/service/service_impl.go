package service

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/inventory/domain"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
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
	ProductRepo productdomain.Repository
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	tx          *pkgdb.TxRunner
	log         *zap.Logger
	productRepo productdomain.Repository
	clock       clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		tx:          p.Tx,
		log:         p.Log.Named("inventory.service"),
		productRepo: p.ProductRepo,
		clock:       p.Clock,
	}
}

func (s *Service) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.ReserveResult, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		return domain.ReserveResult{}, domain.ErrInvalidProduct
	}
	if req.Delta == 0 {
		return domain.ReserveResult{}, domain.ErrInvalidQuantity
	}

	var result domain.ReserveResult
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		product, err := s.lock(ctx, tx, productID)
		if err != nil {
			return err
		}

		next := product.ReservedQuantity + req.Delta
		if next < 0 {
			return &domain.OverReleaseError{ProductID: productID, Reserved: product.ReservedQuantity, Requested: -req.Delta}
		}
		if next > product.CurrentStock {
			return &domain.InsufficientStockError{ProductID: productID, Requested: req.Delta, Available: product.Available()}
		}

		product.ReservedQuantity = next
		product.UpdatedAt = s.clock.Now()
		if err := s.productRepo.Update(ctx, tx, product); err != nil {
			return err
		}
		result = domain.ReserveResult{
			ProductID:       productID.String(),
			Reserved:        product.ReservedQuantity,
			AvailableToSell: product.Available(),
		}
		return nil
	})
	if err != nil {
		return domain.ReserveResult{}, err
	}
	return result, nil
}

func (s *Service) Commit(ctx context.Context, tx *gorm.DB, productID snowflake.ID, qty int64, consumeReservation bool) (*productdomain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.lock(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	if product.CurrentStock < qty {
		return nil, &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: product.CurrentStock}
	}
	if consumeReservation {
		if product.ReservedQuantity < qty {
			return nil, &domain.OverReleaseError{ProductID: productID, Reserved: product.ReservedQuantity, Requested: qty}
		}
		product.ReservedQuantity -= qty
	}
	product.CurrentStock -= qty
	if product.ReservedQuantity > product.CurrentStock {
		product.ReservedQuantity = product.CurrentStock
	}

	product.UpdatedAt = s.clock.Now()
	if err := s.productRepo.Update(ctx, tx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) Restock(ctx context.Context, tx *gorm.DB, productID snowflake.ID, qty int64) (*productdomain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.lock(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	product.CurrentStock += qty
	product.UpdatedAt = s.clock.Now()
	if err := s.productRepo.Update(ctx, tx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) LockProducts(ctx context.Context, tx *gorm.DB, productIDs []snowflake.ID) error {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, err := s.productRepo.FindByIDForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) SweepLowStock(ctx context.Context) (int64, error) {
	changed, err := s.productRepo.RefreshLowStock(ctx, s.db, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.log.Info("low stock flags refreshed", zap.Int64("changed", changed))
	}
	return changed, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, productID snowflake.ID) (*productdomain.Product, error) {
	product, err := s.productRepo.FindByIDForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}
