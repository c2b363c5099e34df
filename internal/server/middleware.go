package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderSeller           = "X-Seller-Id"
	HeaderIdempotencyKey   = "Idempotency-Key"
	HeaderIdempotentReplay = "Idempotent-Replayed"
	contentTypePDF         = "application/pdf"
)

func sellerID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderSeller))
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
}

// bindJSON decodes the body and aborts with invalid_request on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}
