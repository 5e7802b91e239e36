package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	orderdomain "github.com/smallbiznis/karat/internal/order/domain"
	"github.com/smallbiznis/karat/internal/pricingerr"
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
	Type      string            `json:"type"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

// validationErrors answer 400; the sentinel text is the reported code.
var validationErrors = []error{
	ErrInvalidRequest,
	goldratedomain.ErrInvalidRate,
	goldratedomain.ErrInvalidEffectiveDate,
	goldratedomain.ErrInvalidSource,
	goldratedomain.ErrInvalidID,
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidStock,
	catalogdomain.ErrEmptyUpdate,
	makingchargedomain.ErrInvalidCategory,
	makingchargedomain.ErrInvalidPercent,
	makingchargedomain.ErrInvalidFloor,
	orderdomain.ErrInvalidID,
	orderdomain.ErrEmptyCart,
	orderdomain.ErrTooManyItems,
	orderdomain.ErrInvalidQuantity,
	orderdomain.ErrInvalidProduct,
	orderdomain.ErrInvalidKey,
	orderdomain.ErrInvalidCustomerRef,
}

var notFoundErrors = []error{
	ErrNotFound,
	goldratedomain.ErrNotFound,
	catalogdomain.ErrProductNotFound,
	catalogdomain.ErrProductInactive,
	catalogdomain.ErrVariationNotFound,
	orderdomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

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

	// The engine taxonomy wraps domain sentinels, so it is checked first.
	var cfgErr *pricingerr.ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "pricing_unavailable",
			Code:    sentinelCode(cfgErr.Err),
			Message: "price is not available",
		}
	}

	var selErr *pricingerr.SelectionError
	if errors.As(err, &selErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "selection_error",
			Code:    sentinelCode(selErr.Err),
			Message: "selection cannot be sold",
			Errors: []ValidationError{
				{
					Field:   selErr.Group,
					Code:    sentinelCode(selErr.Err),
					Message: selectionMessage(selErr),
				},
			},
		}
	}

	var conErr *pricingerr.ConcurrencyError
	if errors.As(err, &conErr) {
		return http.StatusConflict, errorPayload{
			Type:      "retryable_conflict",
			Code:      sentinelCode(conErr.Err),
			Message:   "request conflicted with a concurrent change, retry",
			Retryable: true,
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if target := matchAny(err, validationErrors); target != nil {
		code := target.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case matchAny(err, notFoundErrors) != nil:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:      "rate_limited",
			Message:   "too many requests",
			Retryable: true,
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, orderdomain.ErrReceiptsDisabled):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
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

func matchAny(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func sentinelCode(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func selectionMessage(err *pricingerr.SelectionError) string {
	switch {
	case errors.Is(err, pricingerr.ErrVariationOutOfStock):
		return "variation is out of stock"
	case errors.Is(err, pricingerr.ErrVariationUnavailable):
		return "variation is unavailable"
	case errors.Is(err, pricingerr.ErrTooManySelections):
		return "only one variation may be selected in this group"
	default:
		return "invalid selection"
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
