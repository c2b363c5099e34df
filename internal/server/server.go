package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tillpoint/internal/config"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	"github.com/smallbiznis/tillpoint/internal/idempotency"
	inventorydomain "github.com/smallbiznis/tillpoint/internal/inventory/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/internal/observability"
	obsmiddleware "github.com/smallbiznis/tillpoint/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tillpoint/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tillpoint/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	paymentdomain "github.com/smallbiznis/tillpoint/internal/payment/domain"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	"github.com/smallbiznis/tillpoint/internal/ticket"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	orderSvc     orderdomain.Service
	paymentSvc   paymentdomain.Service
	productSvc   productdomain.Service
	promotionSvc promotiondomain.Service
	inventorySvc inventorydomain.Service
	customerSvc  customerdomain.Service
	loyaltySvc   loyaltydomain.Service
	ticketSvc    ticket.Service
	idempotency  *idempotency.Guard
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	OrderSvc     orderdomain.Service
	PaymentSvc   paymentdomain.Service
	ProductSvc   productdomain.Service
	PromotionSvc promotiondomain.Service
	InventorySvc inventorydomain.Service
	CustomerSvc  customerdomain.Service
	LoyaltySvc   loyaltydomain.Service
	TicketSvc    ticket.Service
	Idempotency  *idempotency.Guard
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http"),
		orderSvc:     p.OrderSvc,
		paymentSvc:   p.PaymentSvc,
		productSvc:   p.ProductSvc,
		promotionSvc: p.PromotionSvc,
		inventorySvc: p.InventorySvc,
		customerSvc:  p.CustomerSvc,
		loyaltySvc:   p.LoyaltySvc,
		ticketSvc:    p.TicketSvc,
		idempotency:  p.Idempotency,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	orders := api.Group("/orders")
	orders.POST("", s.CreateOrder)
	orders.GET("", s.ListOrders)
	orders.GET("/:id", s.GetOrder)
	orders.POST("/:id/pay", s.PayOrder)
	orders.POST("/:id/cancel", s.CancelOrder)
	orders.GET("/:id/ticket", s.GetOrderTicket)

	products := api.Group("/products")
	products.POST("", s.CreateProduct)
	products.GET("", s.ListProducts)
	products.GET("/:id", s.GetProductByID)
	products.PATCH("/:id/price", s.UpdateProductPrice)
	products.POST("/:id/reserve", s.ReserveStock)

	promotions := api.Group("/promotions")
	promotions.POST("", s.CreatePromotion)
	promotions.GET("", s.ListPromotions)
	promotions.POST("/reconcile", s.ReconcilePromotions)
	promotions.GET("/:id", s.GetPromotion)
	promotions.PATCH("/:id", s.UpdatePromotion)
	promotions.DELETE("/:id", s.DeletePromotion)

	customers := api.Group("/customers")
	customers.POST("", s.CreateCustomer)
	customers.GET("", s.ListCustomers)
	customers.GET("/:id", s.GetCustomerByID)
	customers.POST("/:id/points", s.AdjustCustomerPoints)
	customers.POST("/:id/pay-credit", s.PayCustomerCredit)
	customers.GET("/:id/history", s.ListPointsHistory)
	customers.GET("/:id/credit-history", s.ListCreditHistory)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
