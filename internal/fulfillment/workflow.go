package fulfillment

import (
	"github.com/bulkmat/order-api/internal/domain"
)

// Workflow actions named in WorkflowViolationError
const (
	ActionCancel     = "cancel"
	ActionEdit       = "edit"
	ActionArchive    = "archive"
	ActionRemoveItem = "remove item from"
	ActionRepeat     = "repeat"
	ActionMarkRepeat = "mark as repeat"
	ActionTransition = "change status of"
	ActionConfirm    = "confirm a delivery of"
	ActionReprice    = "reprice"
)

// Statuses from which an order can still be cancelled or edited
var openStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusDraft:     true,
	domain.OrderStatusConfirmed: true,
	domain.OrderStatusScheduled: true,
	domain.OrderStatusInTransit: true,
}

// forward is the single-step lifecycle chain
var forward = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusDraft:     domain.OrderStatusConfirmed,
	domain.OrderStatusConfirmed: domain.OrderStatusScheduled,
	domain.OrderStatusScheduled: domain.OrderStatusInTransit,
	domain.OrderStatusInTransit: domain.OrderStatusDelivered,
	domain.OrderStatusDelivered: domain.OrderStatusCompleted,
}

// Forward moves a supplier may perform
var supplierMoves = map[domain.OrderStatus]bool{
	domain.OrderStatusScheduled: true,
	domain.OrderStatusInTransit: true,
}

// IsOpen reports whether an order in this status has not been delivered,
// completed or cancelled yet
func IsOpen(status domain.OrderStatus) bool {
	return openStatuses[status]
}

// NextStatus returns the status following s in the lifecycle
func NextStatus(s domain.OrderStatus) (domain.OrderStatus, bool) {
	next, ok := forward[s]
	return next, ok
}

// CanCancel reports whether an order can be cancelled. Suppliers never cancel.
func CanCancel(status domain.OrderStatus, role domain.Role) bool {
	if role != domain.RoleAdmin && role != domain.RoleClient {
		return false
	}
	return IsOpen(status)
}

// CanEditOrder reports whether an order's items, deliveries or contact
// fields may still be edited
func CanEditOrder(status domain.OrderStatus, role domain.Role) bool {
	if role != domain.RoleAdmin && role != domain.RoleClient {
		return false
	}
	return IsOpen(status)
}

// CanArchive reports whether the caller may hide an order from their own
// listings. Archiving is independent of the order status.
func CanArchive(role domain.Role) bool {
	return role == domain.RoleClient || role == domain.RoleAdmin
}

// CanRemoveItem reports whether an item may be dropped from its order
func CanRemoveItem(item Item, role domain.Role) bool {
	return EnsureRemoveItem(item, role) == nil
}

// CanRepeat reports whether a new order may be seeded from an existing one.
// The source order's status does not matter.
func CanRepeat(_ domain.OrderStatus, role domain.Role) bool {
	return role == domain.RoleClient || role == domain.RoleAdmin
}

// CanMarkRepeat reports whether the repeat flag may be set. Setting it twice is a no-op.
func CanMarkRepeat(role domain.Role) bool {
	return role == domain.RoleClient || role == domain.RoleAdmin
}

// CanReprice reports whether item pricing or order charges may change. Only
// admins reprice, and only while the order is open.
func CanReprice(status domain.OrderStatus, role domain.Role) bool {
	return role == domain.RoleAdmin && IsOpen(status)
}

// CanTransition reports whether role may move an order from one status to
// another. Admins advance one step at a time, suppliers report dispatch and
// delivery, and cancellation follows CanCancel.
func CanTransition(from, to domain.OrderStatus, role domain.Role) bool {
	if !from.IsValid() || !to.IsValid() || from == to {
		return false
	}
	if to == domain.OrderStatusCancelled {
		return CanCancel(from, role)
	}
	next, ok := forward[from]
	if !ok || next != to {
		return false
	}
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSupplier:
		return supplierMoves[from]
	default:
		return false
	}
}

// EnsureCancel returns a *WorkflowViolationError unless CanCancel holds
func EnsureCancel(status domain.OrderStatus, role domain.Role) error {
	if CanCancel(status, role) {
		return nil
	}
	return &WorkflowViolationError{Action: ActionCancel, Status: status, Role: role, Reason: cancelReason(status, role)}
}

// EnsureEditOrder returns a *WorkflowViolationError unless CanEditOrder holds
func EnsureEditOrder(status domain.OrderStatus, role domain.Role) error {
	if CanEditOrder(status, role) {
		return nil
	}
	reason := "order is closed"
	if role == domain.RoleSupplier {
		reason = "suppliers cannot edit orders"
	}
	return &WorkflowViolationError{Action: ActionEdit, Status: status, Role: role, Reason: reason}
}

// EnsureArchive returns a *WorkflowViolationError unless CanArchive holds
func EnsureArchive(status domain.OrderStatus, role domain.Role) error {
	if CanArchive(role) {
		return nil
	}
	return &WorkflowViolationError{Action: ActionArchive, Status: status, Role: role}
}

// EnsureReprice returns a *WorkflowViolationError unless CanReprice holds
func EnsureReprice(status domain.OrderStatus, role domain.Role) error {
	if CanReprice(status, role) {
		return nil
	}
	reason := "order is closed"
	if role != domain.RoleAdmin {
		reason = "only admins can change pricing"
	}
	return &WorkflowViolationError{Action: ActionReprice, Status: status, Role: role, Reason: reason}
}

// EnsureRemoveItem fails with *DeliveryLockedError when a slot of the item is
// supplier-confirmed, and with *WorkflowViolationError for roles that cannot
// edit items
func EnsureRemoveItem(item Item, role domain.Role) error {
	if role != domain.RoleAdmin && role != domain.RoleClient {
		return &WorkflowViolationError{Action: ActionRemoveItem, Role: role, Reason: "only clients and admins can remove items"}
	}
	for _, s := range item.Slots {
		if s.SupplierConfirms {
			return &DeliveryLockedError{ItemID: item.ID, SlotID: s.ID, Reason: "an item with a supplier-confirmed delivery cannot be removed"}
		}
	}
	return nil
}

// EnsureRepeat returns a *WorkflowViolationError unless CanRepeat holds
func EnsureRepeat(status domain.OrderStatus, role domain.Role) error {
	if CanRepeat(status, role) {
		return nil
	}
	return &WorkflowViolationError{Action: ActionRepeat, Status: status, Role: role}
}

// EnsureMarkRepeat returns a *WorkflowViolationError unless CanMarkRepeat holds
func EnsureMarkRepeat(status domain.OrderStatus, role domain.Role) error {
	if CanMarkRepeat(role) {
		return nil
	}
	return &WorkflowViolationError{Action: ActionMarkRepeat, Status: status, Role: role}
}

// EnsureTransition returns a *WorkflowViolationError unless CanTransition holds
func EnsureTransition(from, to domain.OrderStatus, role domain.Role) error {
	if CanTransition(from, to, role) {
		return nil
	}
	if to == domain.OrderStatusCancelled {
		return EnsureCancel(from, role)
	}
	return &WorkflowViolationError{
		Action: ActionTransition,
		Status: from,
		Role:   role,
		Reason: "cannot move to " + string(to),
	}
}

func cancelReason(status domain.OrderStatus, role domain.Role) string {
	if role == domain.RoleSupplier {
		return "suppliers cannot cancel orders"
	}
	return "order is already " + string(status)
}
