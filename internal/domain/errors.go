package domain

// APIError is the problem-details body of every error response. Errors maps
// field paths such as items_update[0].deliveries[1].truck_type to messages.
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// Fallback messages for validator tags the request DTOs use
var validationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"gte":      "Must be greater than or equal to minimum value",
	"gt":       "Must be greater than minimum value",
	"lte":      "Must be less than or equal to maximum value",
	"dive":     "Contains an invalid entry",
	"oneof":    "Must be one of the allowed values",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := validationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}

// Error types carried in APIError.Type
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeBadRequest   = "bad_request"
	ErrorTypeConflict     = "conflict"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeInternal     = "internal_error"
	ErrorTypeWorkflow     = "workflow_violation"
	ErrorTypeLocked       = "delivery_locked"
	ErrorTypePayment      = "payment_failed"
	ErrorTypeRateLimited  = "rate_limited"
	ErrorTypeUnavailable  = "service_unavailable"
)
