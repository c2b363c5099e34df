package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tillpoint/internal/idempotency"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	paymentdomain "github.com/smallbiznis/tillpoint/internal/payment/domain"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"go.uber.org/zap"
)

// CreateOrder checks out a cart. A repeated Idempotency-Key returns the
// order created by the first request instead of charging stock twice.
func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SellerID = sellerID(c)
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	ctx := c.Request.Context()
	var created *orderdomain.Order
	orderID, replayed, err := s.idempotency.Do(ctx, idempotency.ScopeOrders, idempotencyKey(c), func() (string, error) {
		order, err := s.orderSvc.CreateOrder(ctx, req)
		if err != nil {
			return "", err
		}
		created = order
		return order.ID.String(), nil
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !replayed {
		c.JSON(http.StatusCreated, gin.H{"data": created})
		return
	}

	order, err := s.orderSvc.Get(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.log.Info("replayed order creation",
		zap.String("order_id", orderID),
		zap.String("idempotency_key", idempotencyKey(c)),
	)
	c.Header(HeaderIdempotentReplay, "true")
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
		SellerID   string `form:"seller_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := parseOptionalSnowflakeID(query.CustomerID); err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		Status:     strings.TrimSpace(query.Status),
		CustomerID: strings.TrimSpace(query.CustomerID),
		SellerID:   strings.TrimSpace(query.SellerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelOrder(c *gin.Context) {
	resp, err := s.orderSvc.CancelOrder(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PayOrder(c *gin.Context) {
	var req paymentdomain.PayOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderID = strings.TrimSpace(c.Param("id"))
	req.Method = strings.TrimSpace(req.Method)

	resp, err := s.paymentSvc.PayOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrderTicket(c *gin.Context) {
	pdf, filename, err := s.ticketSvc.Ticket(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentTypePDF, pdf)
}
