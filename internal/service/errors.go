package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUserContextRequired is returned when an operation needs an authenticated caller
	ErrUserContextRequired = errors.New("user context required")
)

// Order errors
var (
	// ErrOrderNotFound is returned when an order does not exist or is outside the caller's scope
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderItemNotFound is returned when an order item does not exist
	ErrOrderItemNotFound = errors.New("order item not found")

	// ErrDeliveryNotFound is returned when a delivery slot does not exist
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrProjectNotFound is returned when a project does not exist or belongs to another client
	ErrProjectNotFound = errors.New("project not found")

	// ErrProductNotFound is returned when an order references an unknown or inactive product
	ErrProductNotFound = errors.New("product not found")

	// ErrSupplierNotFound is returned when a supplier does not exist
	ErrSupplierNotFound = errors.New("supplier not found")

	// ErrEditInProgress is returned when another edit of the same order holds its lock
	ErrEditInProgress = errors.New("another edit of this order is in progress")

	// ErrOrderAlreadyPaid is returned when charging an order with nothing left to pay
	ErrOrderAlreadyPaid = errors.New("order is already paid")

	// ErrOrderCancelled is returned when charging a cancelled order
	ErrOrderCancelled = errors.New("order is cancelled")

	// ErrPaymentDeclined is returned when the provider refuses a charge
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrPaymentUnavailable is returned when the payment provider cannot be reached
	ErrPaymentUnavailable = errors.New("payment provider unavailable")

	// ErrInvoiceNotFound is returned when an order has no invoice document
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrPriceSyncUnavailable is returned when the ERP price source is not configured
	ErrPriceSyncUnavailable = errors.New("erp price list not available")
)
