package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationErrs are caller mistakes in the request itself.
var validationErrs = []error{
	ErrInvalidRequest,
	customerdomain.ErrInvalidID,
	customerdomain.ErrInvalidName,
	customerdomain.ErrInvalidClass,
	customerdomain.ErrInvalidPageToken,
	meterdomain.ErrInvalidID,
	meterdomain.ErrInvalidCustomer,
	meterdomain.ErrInvalidType,
	meterdomain.ErrInvalidPageToken,
	readingdomain.ErrInvalidID,
	readingdomain.ErrInvalidValue,
	readingdomain.ErrInvalidPageToken,
	tariffdomain.ErrInvalidID,
	tariffdomain.ErrInvalidName,
	tariffdomain.ErrInvalidClass,
	tariffdomain.ErrInvalidCharge,
	tariffdomain.ErrInvalidTiers,
	billingdomain.ErrInvalidID,
	billingdomain.ErrInvalidStatus,
	billingdomain.ErrInvalidPageToken,
	paymentdomain.ErrInvalidID,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidMethod,
	paymentdomain.ErrInvalidPageToken,
	activitydomain.ErrInvalidPageToken,
}

// notFoundErrs cover both the addressed resource and referenced ones.
var notFoundErrs = []error{
	customerdomain.ErrNotFound,
	meterdomain.ErrNotFound,
	meterdomain.ErrCustomerNotFound,
	readingdomain.ErrMeterNotFound,
	tariffdomain.ErrNotFound,
	billingdomain.ErrNotFound,
	billingdomain.ErrMeterNotFound,
	billingdomain.ErrReadingNotFound,
	paymentdomain.ErrNotFound,
	paymentdomain.ErrBillNotFound,
}

// conflictErrs are requests that are well formed but collide with the
// current state of the data.
var conflictErrs = []error{
	customerdomain.ErrNotActive,
	readingdomain.ErrNonMonotonicReading,
	billingdomain.ErrAlreadyBilled,
	billingdomain.ErrInsufficientData,
	billingdomain.ErrNegativeConsumption,
	billingdomain.ErrNoActiveTariff,
	billingdomain.ErrBillClosed,
	paymentdomain.ErrBillClosed,
	paymentdomain.ErrOverpayment,
	tariffdomain.ErrNoActive,
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

func mapError(err error) (int, errorPayload) {
	for _, candidate := range validationErrs {
		if errors.Is(err, candidate) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Code:    candidate.Error(),
				Message: "validation error",
			}
		}
	}

	for _, candidate := range notFoundErrs {
		if errors.Is(err, candidate) {
			return http.StatusNotFound, errorPayload{
				Type:    "not_found",
				Code:    candidate.Error(),
				Message: "resource not found",
			}
		}
	}

	for _, candidate := range conflictErrs {
		if errors.Is(err, candidate) {
			return http.StatusConflict, errorPayload{
				Type:    "conflict",
				Code:    candidate.Error(),
				Message: "request conflicts with current state",
			}
		}
	}

	if errors.Is(err, ErrTooManyRequests) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "too_many_requests",
			Message: "too many requests",
		}
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "unavailable",
			Code:    "service_unavailable",
			Message: "service unavailable",
		}
	}

	// never leak internals to the caller
	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Code:    "internal_error",
		Message: "internal server error",
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
