package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	"github.com/smallbiznis/tillpoint/internal/idempotency"
	inventorydomain "github.com/smallbiznis/tillpoint/internal/inventory/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	paymentdomain "github.com/smallbiznis/tillpoint/internal/payment/domain"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const retryAfterSeconds = "1"

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		field := validationErrorField(code)
		var lineErr *orderdomain.LineError
		if errors.As(err, &lineErr) {
			field = lineErr.Field()
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
			Details: errorDetails(err),
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    domainCode(err, "not_found"),
			Message: "not found",
			Details: errorDetails(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    domainCode(err, "conflict"),
			Message: "conflict",
			Details: errorDetails(err),
		}
	case isBusinessRuleError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "business_rule_violation",
			Code:    domainCode(err, "unprocessable"),
			Message: "request cannot be processed",
			Details: errorDetails(err),
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, pkgdb.ErrTransient),
		errors.Is(err, orderdomain.ErrFolioExhausted):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Code:    domainCode(err, "service_unavailable"),
			Message: "service unavailable, retry later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code the request log records.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isProductValidationError(err),
		isPromotionValidationError(err),
		isInventoryValidationError(err),
		isCustomerValidationError(err),
		isLoyaltyValidationError(err),
		isOrderValidationError(err),
		isPaymentValidationError(err):
		return true
	default:
		return false
	}
}

func isProductValidationError(err error) bool {
	switch {
	case errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidSKU),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidListPrice),
		errors.Is(err, productdomain.ErrInvalidTaxCategory),
		errors.Is(err, productdomain.ErrInvalidStock),
		errors.Is(err, productdomain.ErrInvalidMinStock):
		return true
	default:
		return false
	}
}

func isPromotionValidationError(err error) bool {
	switch {
	case errors.Is(err, promotiondomain.ErrInvalidID),
		errors.Is(err, promotiondomain.ErrInvalidProduct),
		errors.Is(err, promotiondomain.ErrInvalidName),
		errors.Is(err, promotiondomain.ErrInvalidDiscountPercent),
		errors.Is(err, promotiondomain.ErrInvalidStartDate),
		errors.Is(err, promotiondomain.ErrInvalidEndDate),
		errors.Is(err, promotiondomain.ErrInvalidAudience):
		return true
	default:
		return false
	}
}

func isInventoryValidationError(err error) bool {
	return errors.Is(err, inventorydomain.ErrInvalidProduct) ||
		errors.Is(err, inventorydomain.ErrInvalidQuantity)
}

func isCustomerValidationError(err error) bool {
	switch {
	case errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, customerdomain.ErrInvalidFirstName),
		errors.Is(err, customerdomain.ErrInvalidLastName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, customerdomain.ErrInvalidPhone),
		errors.Is(err, customerdomain.ErrInvalidBirthDate),
		errors.Is(err, customerdomain.ErrInvalidCreditLimit):
		return true
	default:
		return false
	}
}

func isLoyaltyValidationError(err error) bool {
	return errors.Is(err, loyaltydomain.ErrInvalidCustomer) ||
		errors.Is(err, loyaltydomain.ErrInvalidAmount)
}

func isOrderValidationError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidID),
		errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, orderdomain.ErrInvalidSeller),
		errors.Is(err, orderdomain.ErrInvalidCustomer),
		errors.Is(err, orderdomain.ErrInvalidProduct),
		errors.Is(err, orderdomain.ErrInvalidPromotion),
		errors.Is(err, orderdomain.ErrInvalidStatus),
		errors.Is(err, idempotency.ErrInvalidKey):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidOrder),
		errors.Is(err, paymentdomain.ErrUnsupportedMethod),
		errors.Is(err, paymentdomain.ErrInvalidAmountReceived):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, promotiondomain.ErrNotFound),
		errors.Is(err, promotiondomain.ErrProductNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, loyaltydomain.ErrCustomerNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrCustomerNotFound),
		errors.Is(err, orderdomain.ErrPromotionNotFound),
		errors.Is(err, paymentdomain.ErrOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, productdomain.ErrDuplicateSKU),
		errors.Is(err, promotiondomain.ErrOverlap),
		errors.Is(err, customerdomain.ErrDuplicateEmail),
		errors.Is(err, customerdomain.ErrDuplicatePhone),
		errors.Is(err, orderdomain.ErrCannotCancelPaid),
		errors.Is(err, orderdomain.ErrAlreadyCancelled),
		errors.Is(err, paymentdomain.ErrAlreadyPaid),
		errors.Is(err, paymentdomain.ErrAlreadyCancelled),
		errors.Is(err, idempotency.ErrInProgress):
		return true
	default:
		return false
	}
}

func isBusinessRuleError(err error) bool {
	switch {
	case errors.Is(err, inventorydomain.ErrInsufficientStock),
		errors.Is(err, inventorydomain.ErrOverRelease),
		errors.Is(err, loyaltydomain.ErrInsufficientPoints),
		errors.Is(err, loyaltydomain.ErrNotFrequentCustomer),
		errors.Is(err, loyaltydomain.ErrCreditLimitExceeded),
		errors.Is(err, orderdomain.ErrPromotionMismatch),
		errors.Is(err, paymentdomain.ErrCustomerRequired),
		errors.Is(err, paymentdomain.ErrInsufficientTender):
		return true
	default:
		return false
	}
}

// domainCode picks the innermost sentinel code so wrapped errors such as
// items[1]: insufficient_stock surface as insufficient_stock.
func domainCode(err error, fallback string) string {
	for _, sentinel := range knownCodes {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return fallback
}

var knownCodes = []error{
	inventorydomain.ErrInsufficientStock,
	inventorydomain.ErrOverRelease,
	loyaltydomain.ErrInsufficientPoints,
	loyaltydomain.ErrNotFrequentCustomer,
	loyaltydomain.ErrCreditLimitExceeded,
	orderdomain.ErrPromotionMismatch,
	paymentdomain.ErrCustomerRequired,
	paymentdomain.ErrInsufficientTender,
	productdomain.ErrDuplicateSKU,
	promotiondomain.ErrOverlap,
	customerdomain.ErrDuplicateEmail,
	customerdomain.ErrDuplicatePhone,
	orderdomain.ErrCannotCancelPaid,
	orderdomain.ErrAlreadyCancelled,
	paymentdomain.ErrAlreadyPaid,
	idempotency.ErrInProgress,
	orderdomain.ErrNotFound,
	orderdomain.ErrCustomerNotFound,
	orderdomain.ErrPromotionNotFound,
	promotiondomain.ErrProductNotFound,
	loyaltydomain.ErrCustomerNotFound,
	orderdomain.ErrFolioExhausted,
	pkgdb.ErrTransient,
}

func errorDetails(err error) map[string]any {
	var detailed interface{ Details() map[string]any }
	if errors.As(err, &detailed) {
		return detailed.Details()
	}
	return nil
}

func validationErrorCode(err error) string {
	var lineErr *orderdomain.LineError
	if errors.As(err, &lineErr) {
		return lineErr.Err.Error()
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, idempotency.ErrInvalidKey):
		return idempotency.ErrInvalidKey.Error()
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "empty_cart":
		return "items"
	case idempotency.ErrInvalidKey.Error():
		return "Idempotency-Key"
	}
	if field, ok := strings.CutPrefix(code, "invalid_"); ok {
		return field
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_cart":
		return "order must contain at least one item"
	default:
		return "invalid value"
	}
}
