package fulfillment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bulkmat/order-api/internal/domain"
)

var (
	// ErrLastSlot is returned when removing the only delivery slot of an item
	ErrLastSlot = errors.New("an item must keep at least one delivery slot")
	// ErrSlotIndex is returned when a slot index is out of range
	ErrSlotIndex = errors.New("delivery slot index out of range")
	// ErrInvalidTime is returned for delivery times that are not HH:MM
	ErrInvalidTime = errors.New("delivery time must be HH:MM (24-hour)")
	// ErrInvalidLoadSize is returned when a load size is not positive
	ErrInvalidLoadSize = errors.New("load size must be greater than zero")
	// ErrInvalidInterval is returned when a time interval is negative
	ErrInvalidInterval = errors.New("time interval must not be negative")
	// ErrExpansionPastMidnight is returned when repeated trips would run into the next day
	ErrExpansionPastMidnight = errors.New("repeated deliveries would run past midnight")
)

// Problem codes reported in a ValidationError
const (
	CodeRequired   = "required"
	CodePositive   = "positive"
	CodeAllocation = "allocation"
	CodeTruckType  = "truck_type"
	CodeDateFormat = "date_format"
	CodeTimeFormat = "time_format"
	CodeMinSlots   = "min_slots"
	CodeLocked     = "locked"
	CodeUnknownID  = "unknown_id"
	CodeDuplicate  = "duplicate"
	CodeExpansion  = "expansion"
	CodeForbidden  = "forbidden"
)

// Problem is a single local validation failure keyed by payload field path,
// e.g. items_update[0].deliveries[1].truck_type
type Problem struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError accumulates every problem found while building a payload.
// It is never truncated to the first failure.
type ValidationError struct {
	Problems []Problem
	causes   []error
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return fmt.Sprintf("validation failed (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes typed causes such as *DeliveryLockedError to errors.As
func (e *ValidationError) Unwrap() []error {
	return e.causes
}

// Add records a problem. Exact repeats are ignored.
func (e *ValidationError) Add(field, code, message string) {
	for _, p := range e.Problems {
		if p.Field == field && p.Code == code && p.Message == message {
			return
		}
	}
	e.Problems = append(e.Problems, Problem{Field: field, Code: code, Message: message})
}

// AddCause records a problem together with the typed error behind it
func (e *ValidationError) AddCause(field, code string, err error) {
	e.Add(field, code, err.Error())
	e.causes = append(e.causes, err)
}

// Merge appends all problems of another validation error
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, p := range other.Problems {
		e.Add(p.Field, p.Code, p.Message)
	}
	e.causes = append(e.causes, other.causes...)
}

// HasProblems reports whether anything was recorded
func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// ErrOrNil returns the error when problems were recorded, nil otherwise
func (e *ValidationError) ErrOrNil() error {
	if e == nil || !e.HasProblems() {
		return nil
	}
	return e
}

// FieldErrors flattens the problems into a field path → message map. When a
// field has several problems their messages are joined.
func (e *ValidationError) FieldErrors() map[string]string {
	out := make(map[string]string, len(e.Problems))
	for _, p := range e.Problems {
		if prev, ok := out[p.Field]; ok {
			out[p.Field] = prev + "; " + p.Message
			continue
		}
		out[p.Field] = p.Message
	}
	return out
}

// DeliveryLockedError is raised when an edit would remove or alter a delivery
// slot that the supplier has already confirmed
type DeliveryLockedError struct {
	ItemID uint
	SlotID uint
	Reason string
}

func (e *DeliveryLockedError) Error() string {
	if e.SlotID == 0 {
		return fmt.Sprintf("order item %d has a supplier-confirmed delivery: %s", e.ItemID, e.Reason)
	}
	return fmt.Sprintf("delivery %d is confirmed by the supplier: %s", e.SlotID, e.Reason)
}

// WorkflowViolationError is raised by the workflow gates when an action is not
// legal for the order's status or the caller's role. It is never retried.
type WorkflowViolationError struct {
	Action string
	Status domain.OrderStatus
	Role   domain.Role
	Reason string
}

func (e *WorkflowViolationError) Error() string {
	msg := fmt.Sprintf("cannot %s order in status %q as %s", e.Action, e.Status, e.Role)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// SubmissionError is a rejection returned by the backend for a submitted
// payload. FieldErrors uses the same field paths as ValidationError.
type SubmissionError struct {
	Status      int
	Type        string
	Message     string
	FieldErrors map[string]string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected (%d): %s", e.Status, e.Message)
}

// RetryableError marks a network or server side failure. The edit baseline is
// left untouched so a retry recomputes the same payload.
type RetryableError struct {
	Status int
	Err    error
}

func (e *RetryableError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("temporary failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("temporary failure: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transport level failure worth retrying
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// MergeProblems folds local problems and backend field errors into one field
// path → message map, so both layers render on the same error surface
func MergeProblems(local *ValidationError, submission *SubmissionError) map[string]string {
	out := make(map[string]string)
	if local != nil {
		for k, v := range local.FieldErrors() {
			out[k] = v
		}
	}
	if submission != nil {
		keys := make([]string, 0, len(submission.FieldErrors))
		for k := range submission.FieldErrors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := submission.FieldErrors[k]
			if prev, ok := out[k]; ok && prev != v {
				out[k] = prev + "; " + v
				continue
			}
			out[k] = v
		}
	}
	return out
}
