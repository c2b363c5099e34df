package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
)

func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerdomain.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	resp, err := s.customerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Email    string `form:"email"`
		Frequent string `form:"frequent"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	frequent, err := parseOptionalBool(query.Frequent)
	if err != nil {
		AbortWithError(c, newValidationError("frequent", "invalid_frequent", "invalid frequent"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Email:     strings.TrimSpace(query.Email),
		Frequent:  frequent,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.customerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":             resp,
		"available_credit": s.loyaltySvc.AvailableCredit(&resp).StringFixed(2),
	})
}

func (s *Server) AdjustCustomerPoints(c *gin.Context) {
	var req loyaltydomain.AdjustPointsRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CustomerID = strings.TrimSpace(c.Param("id"))

	resp, err := s.loyaltySvc.AdjustPoints(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) PayCustomerCredit(c *gin.Context) {
	var req loyaltydomain.PayOffCreditRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CustomerID = strings.TrimSpace(c.Param("id"))

	resp, err := s.loyaltySvc.PayOffCredit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPointsHistory(c *gin.Context) {
	req, ok := historyRequest(c)
	if !ok {
		return
	}

	resp, err := s.loyaltySvc.PointsHistory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListCreditHistory(c *gin.Context) {
	req, ok := historyRequest(c)
	if !ok {
		return
	}

	resp, err := s.loyaltySvc.CreditHistory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func historyRequest(c *gin.Context) (loyaltydomain.HistoryRequest, bool) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return loyaltydomain.HistoryRequest{}, false
	}
	return loyaltydomain.HistoryRequest{
		CustomerID: strings.TrimSpace(c.Param("id")),
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	}, true
}
