// Package testenv wires the checkout services over an in-memory database for
// package tests.
package testenv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	customerrepo "github.com/smallbiznis/tillpoint/internal/customer/repository"
	customerservice "github.com/smallbiznis/tillpoint/internal/customer/service"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	eventsrepo "github.com/smallbiznis/tillpoint/internal/events/repository"
	eventsservice "github.com/smallbiznis/tillpoint/internal/events/service"
	inventorydomain "github.com/smallbiznis/tillpoint/internal/inventory/domain"
	inventoryservice "github.com/smallbiznis/tillpoint/internal/inventory/service"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	loyaltyrepo "github.com/smallbiznis/tillpoint/internal/loyalty/repository"
	loyaltyservice "github.com/smallbiznis/tillpoint/internal/loyalty/service"
	"github.com/smallbiznis/tillpoint/internal/migration"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	orderrepo "github.com/smallbiznis/tillpoint/internal/order/repository"
	orderservice "github.com/smallbiznis/tillpoint/internal/order/service"
	paymentdomain "github.com/smallbiznis/tillpoint/internal/payment/domain"
	"github.com/smallbiznis/tillpoint/internal/payment/methods"
	paymentservice "github.com/smallbiznis/tillpoint/internal/payment/service"
	"github.com/smallbiznis/tillpoint/internal/pricing"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	productrepo "github.com/smallbiznis/tillpoint/internal/product/repository"
	productservice "github.com/smallbiznis/tillpoint/internal/product/service"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	promotionrepo "github.com/smallbiznis/tillpoint/internal/promotion/repository"
	promotionservice "github.com/smallbiznis/tillpoint/internal/promotion/service"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/dbtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Start is the default fake time: a Thursday in July 2025.
var Start = time.Date(2025, 7, 10, 10, 0, 0, 0, time.UTC)

type Env struct {
	DB        *gorm.DB
	Node      *snowflake.Node
	Clock     *clock.FakeClock
	Policy    *config.PolicyHolder
	Tx        *pkgdb.TxRunner
	Log       *zap.Logger
	Publisher *Publisher

	ProductRepo   productdomain.Repository
	PromotionRepo promotiondomain.Repository
	CustomerRepo  customerdomain.Repository
	OrderRepo     orderdomain.Repository

	Products   productdomain.Service
	Promotions promotiondomain.Service
	Inventory  inventorydomain.Service
	Customers  customerdomain.Service
	Loyalty    loyaltydomain.Service
	Outbox     eventsdomain.Outbox
	Orders     orderdomain.Service
	Payments   paymentdomain.Service
}

func New(t testing.TB) *Env {
	t.Helper()

	db := dbtest.Open(t, migration.Models()...)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	e := &Env{
		DB:            db,
		Node:          node,
		Clock:         clock.NewFakeClock(Start),
		Policy:        config.NewStaticPolicyHolder(config.DefaultPricingPolicy()),
		Tx:            pkgdb.NewTxRunner(db, pkgdb.Config{}),
		Log:           zap.NewNop(),
		Publisher:     &Publisher{},
		ProductRepo:   productrepo.Provide(),
		PromotionRepo: promotionrepo.Provide(),
		CustomerRepo:  customerrepo.Provide(),
		OrderRepo:     orderrepo.Provide(),
	}

	e.Products = productservice.New(productservice.Params{
		DB: db, Tx: e.Tx, Log: e.Log, GenID: node, Repo: e.ProductRepo, PromotionRepo: e.PromotionRepo, Clock: e.Clock,
	})
	e.Promotions = promotionservice.New(promotionservice.Params{
		DB: db, Tx: e.Tx, Log: e.Log, GenID: node, Repo: e.PromotionRepo, ProductRepo: e.ProductRepo, Clock: e.Clock,
	})
	e.Inventory = inventoryservice.New(inventoryservice.Params{
		DB: db, Tx: e.Tx, Log: e.Log, ProductRepo: e.ProductRepo, Clock: e.Clock,
	})
	e.Customers = customerservice.New(customerservice.Params{
		DB: db, Log: e.Log, GenID: node, Repo: e.CustomerRepo, Clock: e.Clock,
	})
	e.Loyalty = loyaltyservice.New(loyaltyservice.Params{
		DB: db, Tx: e.Tx, Log: e.Log, GenID: node, Repo: loyaltyrepo.Provide(), CustomerRepo: e.CustomerRepo, Clock: e.Clock,
	})
	e.Outbox = eventsservice.New(eventsservice.Params{
		DB: db, Log: e.Log, GenID: node, Repo: eventsrepo.Provide(), Publisher: e.Publisher, Clock: e.Clock,
	})
	e.Orders = orderservice.New(orderservice.Params{
		DB:            db,
		Tx:            e.Tx,
		Log:           e.Log,
		GenID:         node,
		Repo:          e.OrderRepo,
		PromotionRepo: e.PromotionRepo,
		Promotions:    e.Promotions,
		Inventory:     e.Inventory,
		CustomerRepo:  e.CustomerRepo,
		Loyalty:       e.Loyalty,
		Outbox:        e.Outbox,
		Policy:        e.Policy,
		Clock:         e.Clock,
	})
	e.Payments = paymentservice.New(paymentservice.Params{
		Tx:  e.Tx,
		Log: e.Log,
		Methods: methods.NewRegistry(
			methods.Cash(),
			methods.Card(),
			methods.LoyaltyPoints(e.Loyalty),
			methods.StoreCredit(e.Loyalty),
		),
		OrderRepo:    e.OrderRepo,
		CustomerRepo: e.CustomerRepo,
		Loyalty:      e.Loyalty,
		Outbox:       e.Outbox,
		Policy:       e.Policy,
		Clock:        e.Clock,
	})
	return e
}

// SeedProduct stores a product at list price with the given stock.
func (e *Env) SeedProduct(t testing.TB, sku, listPrice string, category pricing.TaxCategory, stock int64) *productdomain.Product {
	t.Helper()
	now := e.Clock.Now()
	p := &productdomain.Product{
		ID:           e.Node.Generate(),
		SKU:          sku,
		Name:         "Product " + sku,
		ListPrice:    decimal.RequireFromString(listPrice),
		TaxCategory:  category,
		CurrentStock: stock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.ProductRepo.Insert(context.Background(), e.DB, p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// CustomerSeed overrides the defaults of SeedCustomer.
type CustomerSeed struct {
	Points      int64
	Frequent    bool
	CreditLimit string
	CreditUsed  string
	BirthDate   time.Time
}

func (e *Env) SeedCustomer(t testing.TB, seed CustomerSeed) *customerdomain.Customer {
	t.Helper()
	now := e.Clock.Now()
	id := e.Node.Generate()
	c := &customerdomain.Customer{
		ID:                   id,
		FirstName:            "Ana",
		LastName:             "Lopez",
		Email:                id.String() + "@example.com",
		Phone:                id.String(),
		BirthDate:            seed.BirthDate,
		CurrentPoints:        seed.Points,
		IsFrequent:           seed.Frequent,
		FrequentCheckedMonth: now.Format(customerdomain.MonthLayout),
		CreditLimit:          decimalOr(seed.CreditLimit),
		CreditUsed:           decimalOr(seed.CreditUsed),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if c.BirthDate.IsZero() {
		c.BirthDate = time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC)
	}
	if err := e.CustomerRepo.Insert(context.Background(), e.DB, c); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func (e *Env) Customer(t testing.TB, id snowflake.ID) *customerdomain.Customer {
	t.Helper()
	c, err := e.CustomerRepo.FindByID(context.Background(), e.DB, id)
	if err != nil || c == nil {
		t.Fatalf("load customer %s: %v", id, err)
	}
	return c
}

func (e *Env) Product(t testing.TB, id snowflake.ID) *productdomain.Product {
	t.Helper()
	p, err := e.ProductRepo.FindByID(context.Background(), e.DB, id)
	if err != nil || p == nil {
		t.Fatalf("load product %s: %v", id, err)
	}
	return p
}

// OutboxTopics returns the topics of every stored outbox event in order.
func (e *Env) OutboxTopics(t testing.TB) []string {
	t.Helper()
	var topics []string
	if err := e.DB.Model(&eventsdomain.OutboxEvent{}).Order("id ASC").Pluck("topic", &topics).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	return topics
}

func decimalOr(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(value)
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []eventsdomain.Message
}

func (p *Publisher) Publish(_ context.Context, msg eventsdomain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, msg)
	return nil
}

func (p *Publisher) Close() error { return nil }
