package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
)

func (s *Server) CreatePromotion(c *gin.Context) {
	var req promotiondomain.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := s.promotionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPromotions(c *gin.Context) {
	var query struct {
		ProductID string `form:"product_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := parseOptionalSnowflakeID(query.ProductID); err != nil {
		AbortWithError(c, newValidationError("product_id", "invalid_product_id", "invalid product_id"))
		return
	}

	resp, err := s.promotionSvc.List(c.Request.Context(), promotiondomain.ListRequest{
		ProductID: strings.TrimSpace(query.ProductID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPromotion(c *gin.Context) {
	resp, err := s.promotionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePromotion(c *gin.Context) {
	var req promotiondomain.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.promotionSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePromotion(c *gin.Context) {
	if err := s.promotionSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReconcilePromotions runs the expiry and price sync pass on demand.
func (s *Server) ReconcilePromotions(c *gin.Context) {
	resp, err := s.promotionSvc.ReconcileNow(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
