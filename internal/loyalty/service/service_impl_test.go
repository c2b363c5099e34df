package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	customerrepo "github.com/smallbiznis/tillpoint/internal/customer/repository"
	"github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/internal/loyalty/repository"
	"github.com/smallbiznis/tillpoint/internal/loyalty/service"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// paidOrder is the slice of the orders table the frequent check reads.
type paidOrder struct {
	ID         int64 `gorm:"primaryKey"`
	CustomerID int64
	Status     string
	PaidAt     *time.Time
}

func (paidOrder) TableName() string { return "orders" }

type fixture struct {
	db        *gorm.DB
	svc       domain.Service
	customers customerdomain.Repository
	node      *snowflake.Node
	clock     *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&customerdomain.Customer{},
		&domain.PointsTransaction{},
		&domain.CreditTransaction{},
		&paidOrder{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 7, 10, 10, 0, 0, 0, time.UTC))
	customers := customerrepo.Provide()

	svc := service.New(service.Params{
		DB:           db,
		Tx:           pkgdb.NewTxRunner(db, pkgdb.Config{}),
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         repository.Provide(),
		CustomerRepo: customers,
		Clock:        fc,
	})
	return &fixture{db: db, svc: svc, customers: customers, node: node, clock: fc}
}

func (f *fixture) seedCustomer(t *testing.T, points int64, frequent bool, limit, used string) *customerdomain.Customer {
	t.Helper()
	c := &customerdomain.Customer{
		ID:          f.node.Generate(),
		FirstName:   "Luis",
		LastName:    "Perez",
		Email:       f.node.Generate().String() + "@example.com",
		Phone:       f.node.Generate().String(),
		BirthDate:   time.Date(1985, 1, 2, 0, 0, 0, 0, time.UTC),
		IsFrequent:  frequent,
		CreditLimit: decimal.RequireFromString(limit),
		CreditUsed:  decimal.RequireFromString(used),
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	if frequent {
		c.FrequentCheckedMonth = f.clock.Now().Format(customerdomain.MonthLayout)
	}
	c.CurrentPoints = points
	require.NoError(t, f.customers.Insert(context.Background(), f.db, c))
	return c
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *customerdomain.Customer {
	t.Helper()
	c, err := f.customers.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestEarnAndRedeemPoints(t *testing.T) {
	f := newFixture(t)
	c := f.seedCustomer(t, 10, false, "0", "0")
	ctx := context.Background()
	orderID := f.node.Generate()
	ref := domain.OrderRef{OrderID: &orderID, Folio: "ABCD1234"}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		entry, err := f.svc.EarnPoints(ctx, tx, c, 5, ref)
		if err != nil {
			return err
		}
		assert.Equal(t, "Points for ticket ABCD1234", entry.Description)
		assert.Equal(t, int64(15), entry.BalanceAfter)

		_, err = f.svc.RedeemPoints(ctx, tx, c, 12, ref)
		return err
	})
	require.NoError(t, err)

	points, err := f.svc.CurrentPoints(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(3), points)

	history, err := f.svc.PointsHistory(ctx, domain.HistoryRequest{CustomerID: c.ID.String()})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 2)
}

func TestRedeemRejectsShortBalance(t *testing.T) {
	f := newFixture(t)
	c := f.seedCustomer(t, 4, false, "0", "0")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.RedeemPoints(context.Background(), tx, c, 5, domain.OrderRef{Folio: "X"})
		return err
	})
	var short *domain.InsufficientPointsError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, int64(5), short.Required)
	assert.Equal(t, int64(4), short.Available)
	assert.Equal(t, int64(4), f.reload(t, c.ID).CurrentPoints)
}

func TestChargeCreditRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	occasional := f.seedCustomer(t, 0, false, "500", "0")
	assert.True(t, f.svc.AvailableCredit(occasional).IsZero())
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.ChargeCredit(ctx, tx, occasional, decimal.RequireFromString("10"), domain.OrderRef{})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFrequentCustomer)

	regular := f.seedCustomer(t, 0, true, "500", "450")
	assert.Equal(t, "50.00", f.svc.AvailableCredit(regular).StringFixed(2))

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.ChargeCredit(ctx, tx, regular, decimal.RequireFromString("50.01"), domain.OrderRef{})
		return err
	})
	var exceeded *domain.CreditLimitExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "50.00", exceeded.Available.StringFixed(2))

	regular = f.reload(t, regular.ID)
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.ChargeCredit(ctx, tx, regular, decimal.RequireFromString("50"), domain.OrderRef{Folio: "F1"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", f.reload(t, regular.ID).CreditUsed.StringFixed(2))
}

func TestPayOffCreditFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	c := f.seedCustomer(t, 0, true, "300", "120")
	ctx := context.Background()

	res, err := f.svc.PayOffCredit(ctx, domain.PayOffCreditRequest{CustomerID: c.ID.String(), Amount: decimal.RequireFromString("200")})
	require.NoError(t, err)
	assert.Equal(t, "120.00", res.Applied.StringFixed(2))
	assert.Equal(t, "0.00", res.CreditUsed.StringFixed(2))
	assert.Equal(t, "300.00", res.AvailableCredit.StringFixed(2))

	history, err := f.svc.CreditHistory(ctx, domain.HistoryRequest{CustomerID: c.ID.String()})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, domain.CreditPayment, history.Transactions[0].Type)
	assert.Equal(t, "120.00", history.Transactions[0].Amount.StringFixed(2))

	_, err = f.svc.PayOffCredit(ctx, domain.PayOffCreditRequest{CustomerID: c.ID.String(), Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestAdjustPoints(t *testing.T) {
	f := newFixture(t)
	c := f.seedCustomer(t, 10, false, "0", "0")
	ctx := context.Background()

	entry, err := f.svc.AdjustPoints(ctx, domain.AdjustPointsRequest{CustomerID: c.ID.String(), Amount: -4})
	require.NoError(t, err)
	assert.Equal(t, domain.PointsAdjust, entry.Type)
	assert.Equal(t, int64(6), entry.BalanceAfter)
	assert.Equal(t, "Manual adjustment", entry.Description)

	_, err = f.svc.AdjustPoints(ctx, domain.AdjustPointsRequest{CustomerID: c.ID.String(), Amount: -7})
	assert.ErrorIs(t, err, domain.ErrInsufficientPoints)
	assert.Equal(t, int64(6), f.reload(t, c.ID).CurrentPoints)

	_, err = f.svc.AdjustPoints(ctx, domain.AdjustPointsRequest{CustomerID: "404", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func (f *fixture) seedPaidOrders(t *testing.T, customerID snowflake.ID, days ...int) {
	t.Helper()
	for _, d := range days {
		paidAt := time.Date(2025, 6, d, 15, 0, 0, 0, time.UTC)
		require.NoError(t, f.db.Create(&paidOrder{
			ID:         f.node.Generate().Int64(),
			CustomerID: customerID.Int64(),
			Status:     "PAID",
			PaidAt:     &paidAt,
		}).Error)
	}
}

func TestRecomputeFrequentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loyal := f.seedCustomer(t, 0, false, "0", "0")
	f.seedPaidOrders(t, loyal.ID, 1, 4, 10, 17, 24, 30)
	casual := f.seedCustomer(t, 0, false, "0", "0")
	f.seedPaidOrders(t, casual.ID, 4, 10)

	count, err := f.svc.RecomputeAllFrequent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored := f.reload(t, loyal.ID)
	assert.True(t, stored.IsFrequent)
	assert.Equal(t, "2025-07", stored.FrequentCheckedMonth)
	assert.False(t, f.reload(t, casual.ID).IsFrequent)

	count, err = f.svc.RecomputeAllFrequent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "status cached for the month")
}

func TestRecomputeSkipsFreshStatus(t *testing.T) {
	f := newFixture(t)
	c := f.seedCustomer(t, 0, true, "100", "0")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		status, err := f.svc.RecomputeFrequentStatus(context.Background(), tx, c)
		if err != nil {
			return err
		}
		assert.True(t, status.Frequent)
		return nil
	})
	require.NoError(t, err)

	f.clock.Set(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	err = f.db.Transaction(func(tx *gorm.DB) error {
		status, err := f.svc.RecomputeFrequentStatus(context.Background(), tx, c)
		if err != nil {
			return err
		}
		assert.False(t, status.Frequent)
		assert.Equal(t, "2025-08", status.CheckedMonth)
		return nil
	})
	require.NoError(t, err)
}
