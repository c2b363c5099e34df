package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/inventory/domain"
	"github.com/smallbiznis/tillpoint/internal/inventory/service"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	productrepo "github.com/smallbiznis/tillpoint/internal/product/repository"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	products productdomain.Repository
	node     *snowflake.Node
	clock    *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, &productdomain.Product{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	products := productrepo.Provide()
	svc := service.New(service.Params{
		DB:          db,
		Tx:          pkgdb.NewTxRunner(db, pkgdb.Config{}),
		Log:         zap.NewNop(),
		ProductRepo: products,
		Clock:       fc,
	})
	return &fixture{db: db, svc: svc, products: products, node: node, clock: fc}
}

func (f *fixture) seed(t *testing.T, stock, reserved, minStock int64) *productdomain.Product {
	t.Helper()
	p := &productdomain.Product{
		ID:               f.node.Generate(),
		SKU:              f.node.Generate().String(),
		Name:             "Widget",
		ListPrice:        decimal.RequireFromString("10"),
		TaxCategory:      pricing.TaxGeneral,
		CurrentStock:     stock,
		ReservedQuantity: reserved,
		MinStock:         minStock,
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, f.products.Insert(context.Background(), f.db, p))
	return p
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *productdomain.Product {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestReserveAndRelease(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 10, 0, 0)
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: p.ID.String(), Delta: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Reserved)
	assert.Equal(t, int64(5), res.AvailableToSell)

	_, err = f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: p.ID.String(), Delta: 10})
	var short *domain.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, int64(5), short.Available)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	res, err = f.svc.Reserve(ctx, domain.ReserveRequest{ProductID: p.ID.String(), Delta: -2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Reserved)
	assert.Equal(t, int64(3), f.reload(t, p.ID).ReservedQuantity)
}

func TestReserveRejectsOverRelease(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 10, 2, 0)

	_, err := f.svc.Reserve(context.Background(), domain.ReserveRequest{ProductID: p.ID.String(), Delta: -3})
	var over *domain.OverReleaseError
	require.True(t, errors.As(err, &over))
	assert.Equal(t, int64(2), over.Reserved)
	assert.Equal(t, int64(3), over.Requested)
	assert.Equal(t, int64(2), f.reload(t, p.ID).ReservedQuantity)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 1, 0, 0)

	_, err := f.svc.Reserve(context.Background(), domain.ReserveRequest{ProductID: p.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Reserve(context.Background(), domain.ReserveRequest{ProductID: "x", Delta: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, err = f.svc.Reserve(context.Background(), domain.ReserveRequest{ProductID: "123", Delta: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestConcurrentReservationsNeverExceedStock(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 5, 0, 0)

	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Reserve(context.Background(), domain.ReserveRequest{ProductID: p.ID.String(), Delta: 1}); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), ok.Load())
	stored := f.reload(t, p.ID)
	assert.Equal(t, int64(5), stored.ReservedQuantity)
	assert.LessOrEqual(t, stored.ReservedQuantity, stored.CurrentStock)
}

func TestCommitWithoutReservationClampsReserved(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 10, 8, 0)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		updated, err := f.svc.Commit(context.Background(), tx, p.ID, 5, false)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(5), updated.CurrentStock)
		assert.Equal(t, int64(5), updated.ReservedQuantity)
		return nil
	})
	require.NoError(t, err)

	stored := f.reload(t, p.ID)
	assert.Equal(t, int64(5), stored.CurrentStock)
	assert.Equal(t, int64(5), stored.ReservedQuantity)
}

func TestCommitConsumesReservation(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 10, 4, 0)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Commit(context.Background(), tx, p.ID, 3, true)
		return err
	})
	require.NoError(t, err)
	stored := f.reload(t, p.ID)
	assert.Equal(t, int64(7), stored.CurrentStock)
	assert.Equal(t, int64(1), stored.ReservedQuantity)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Commit(context.Background(), tx, p.ID, 2, true)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrOverRelease)
}

func TestCommitShortfallLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 2, 0, 0)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Commit(context.Background(), tx, p.ID, 3, false)
		return err
	})
	var short *domain.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, int64(3), short.Requested)
	assert.Equal(t, int64(2), short.Available)
	assert.Equal(t, int64(2), f.reload(t, p.ID).CurrentStock)
}

func TestRestockAndLowStockSweep(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, 4, 0, 3)
	ctx := context.Background()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Commit(ctx, tx, p.ID, 2, false)
		return err
	})
	require.NoError(t, err)
	assert.True(t, f.reload(t, p.ID).LowStock)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Restock(ctx, tx, p.ID, 5)
		return err
	})
	require.NoError(t, err)
	stored := f.reload(t, p.ID)
	assert.Equal(t, int64(7), stored.CurrentStock)
	assert.False(t, stored.LowStock)

	require.NoError(t, f.db.Exec("UPDATE products SET reserved_quantity = 5 WHERE id = ?", p.ID).Error)
	f.clock.Advance(2 * time.Hour)
	changed, err := f.svc.SweepLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	swept := f.reload(t, p.ID)
	assert.True(t, swept.LowStock)
	assert.True(t, f.clock.Now().Equal(swept.UpdatedAt), "updated_at %s", swept.UpdatedAt)
}

type lockRecorder struct {
	productdomain.Repository
	locked []snowflake.ID
}

func (r *lockRecorder) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*productdomain.Product, error) {
	r.locked = append(r.locked, id)
	return r.Repository.FindByIDForUpdate(ctx, db, id)
}

func TestLockProductsAscendingAndDistinct(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, 5, 0, 0)
	b := f.seed(t, 5, 0, 0)
	c := f.seed(t, 5, 0, 0)

	recorder := &lockRecorder{Repository: f.products}
	svc := service.New(service.Params{
		DB:          f.db,
		Tx:          pkgdb.NewTxRunner(f.db, pkgdb.Config{}),
		Log:         zap.NewNop(),
		ProductRepo: recorder,
		Clock:       f.clock,
	})

	missing := f.node.Generate()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return svc.LockProducts(context.Background(), tx, []snowflake.ID{c.ID, a.ID, missing, c.ID, b.ID})
	})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{a.ID, b.ID, c.ID, missing}, recorder.locked)
}
