package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
	"github.com/bulkmat/order-api/internal/service"
)

var validate = newValidator()

// newValidator reports field paths by their json names and compares
// decimal fields numerically
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeAndValidate reads a JSON body into req and runs its validate tags.
// It writes the error response itself and reports whether the caller may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	errs := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			errs[fieldPath(fe)] = formatValidationError(fe)
		}
	}
	respondJSON(w, http.StatusBadRequest, domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: errs,
	})
}

// fieldPath drops the struct name from a namespace such as
// OrderEditPayload.items_update[0].quantity
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Must be a valid email address"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must contain at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "lt":
		return fmt.Sprintf("Must be less than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusPaymentRequired:
		return domain.ErrorTypePayment
	case http.StatusTooManyRequests:
		return domain.ErrorTypeRateLimited
	case http.StatusServiceUnavailable:
		return domain.ErrorTypeUnavailable
	default:
		return domain.ErrorTypeInternal
	}
}

// respondServiceError maps service and engine errors to HTTP responses.
// Unexpected errors are logged and answered with a 500.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var verr *fulfillment.ValidationError
	var wv *fulfillment.WorkflowViolationError
	var locked *fulfillment.DeliveryLockedError

	switch {
	case errors.As(err, &verr):
		status := http.StatusUnprocessableEntity
		errType := domain.ErrorTypeValidation
		if errors.As(err, &locked) {
			status = http.StatusConflict
			errType = domain.ErrorTypeLocked
		}
		respondJSON(w, status, domain.APIError{
			Type:   errType,
			Title:  "Validation Error",
			Status: status,
			Detail: fmt.Sprintf("%d problem(s) found", len(verr.Problems)),
			Errors: verr.FieldErrors(),
		})
	case errors.As(err, &locked):
		respondJSON(w, http.StatusConflict, domain.APIError{
			Type: domain.ErrorTypeLocked, Title: "Delivery Locked", Status: http.StatusConflict, Detail: locked.Error(),
		})
	case errors.As(err, &wv):
		respondJSON(w, http.StatusForbidden, domain.APIError{
			Type: domain.ErrorTypeWorkflow, Title: "Workflow Violation", Status: http.StatusForbidden, Detail: wv.Error(),
		})
	case errors.Is(err, service.ErrOrderNotFound):
		respondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrOrderItemNotFound):
		respondWithError(w, http.StatusNotFound, "Order item not found")
	case errors.Is(err, service.ErrDeliveryNotFound):
		respondWithError(w, http.StatusNotFound, "Delivery not found")
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, service.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrSupplierNotFound):
		respondWithError(w, http.StatusNotFound, "Supplier not found")
	case errors.Is(err, service.ErrInvoiceNotFound):
		respondWithError(w, http.StatusNotFound, "Invoice not found")
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrUserContextRequired):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "You do not have permission to perform this action")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEditInProgress):
		respondWithError(w, http.StatusConflict, "Another edit of this order is in progress, retry shortly")
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrOrderAlreadyPaid),
		errors.Is(err, service.ErrOrderCancelled):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentDeclined):
		respondWithError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrPaymentUnavailable),
		errors.Is(err, service.ErrPriceSyncUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("failed to "+action, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

// parseID reads a numeric path parameter
func parseID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}
