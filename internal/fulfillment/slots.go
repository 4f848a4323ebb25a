package fulfillment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bulkmat/order-api/internal/domain"
)

// Slot is the persisted state of a delivery slot
type Slot struct {
	ID               uint
	Quantity         decimal.Decimal
	DeliveryDate     string
	DeliveryTime     *string
	TruckType        domain.TruckType
	DeliveryCost     decimal.Decimal
	SupplierConfirms bool
	LoadSize         *decimal.Decimal
}

// SlotDraft is an edited slot. ID is nil for slots that were never persisted;
// those are identified by LocalID instead.
type SlotDraft struct {
	ID           *uint
	LocalID      string
	Quantity     decimal.Decimal
	DeliveryDate string
	DeliveryTime *string
	TruckType    domain.TruckType
	DeliveryCost *decimal.Decimal
	LoadSize     *decimal.Decimal
	TimeInterval *int
}

// DraftFromSlot turns a persisted slot into an unchanged draft
func DraftFromSlot(s Slot) SlotDraft {
	id := s.ID
	cost := s.DeliveryCost
	return SlotDraft{
		ID:           &id,
		Quantity:     s.Quantity,
		DeliveryDate: s.DeliveryDate,
		DeliveryTime: s.DeliveryTime,
		TruckType:    s.TruckType,
		DeliveryCost: &cost,
		LoadSize:     s.LoadSize,
	}
}

// ChangeKind tags how a slot differs from its persisted state
type ChangeKind int

const (
	ChangeUnchanged ChangeKind = iota
	ChangeAdd
	ChangeUpdate
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeRemove:
		return "remove"
	default:
		return "unchanged"
	}
}

// SlotChange classifies one slot. Before is nil for additions, After is nil
// for removals.
type SlotChange struct {
	Kind   ChangeKind
	Before *Slot
	After  *SlotDraft
}

// SlotDiff is the reconciliation of an item's edited slots against the
// persisted ones. Add, Update and Remove are disjoint.
type SlotDiff struct {
	Changes []SlotChange
	Add     []domain.DeliveryInput
	Update  []domain.DeliveryInput
	Remove  []uint
}

// HasChanges reports whether any slot was added, updated or removed
func (d SlotDiff) HasChanges() bool {
	return len(d.Add) > 0 || len(d.Update) > 0 || len(d.Remove) > 0
}

// DiffOptions controls a slot diff
type DiffOptions struct {
	// Role decides whether delivery costs are compared and emitted
	Role domain.Role
	// ItemID is used in lock errors
	ItemID uint
	// Field is the path prefix of the slot list, e.g. items_update[0].deliveries
	Field string
}

func (o DiffOptions) field(i int, name string) string {
	prefix := o.Field
	if prefix == "" {
		prefix = "deliveries"
	}
	if name == "" {
		return fmt.Sprintf("%s[%d]", prefix, i)
	}
	return fmt.Sprintf("%s[%d].%s", prefix, i, name)
}

// DiffSlots classifies every persisted and edited slot as added, updated,
// removed or unchanged. Supplier-confirmed slots may only move in date or
// time; removing or otherwise changing them fails with *DeliveryLockedError.
// Times are normalized before comparison.
func DiffSlots(persisted []Slot, edited []SlotDraft, opts DiffOptions) (SlotDiff, error) {
	var diff SlotDiff
	verr := &ValidationError{}
	showCost := opts.Role == domain.RoleAdmin

	byID := make(map[uint]*Slot, len(persisted))
	for i := range persisted {
		byID[persisted[i].ID] = &persisted[i]
	}
	seen := make(map[uint]bool, len(edited))

	for i := range edited {
		draft := edited[i]
		normTime, err := NormalizeTime(draft.DeliveryTime)
		if err != nil {
			verr.Add(opts.field(i, "delivery_time"), CodeTimeFormat, err.Error())
			normTime = draft.DeliveryTime
		}
		draft.DeliveryTime = normTime

		if draft.ID == nil {
			diff.Changes = append(diff.Changes, SlotChange{Kind: ChangeAdd, After: &draft})
			diff.Add = append(diff.Add, deliveryInput(draft, nil, showCost))
			continue
		}

		id := *draft.ID
		before, ok := byID[id]
		if !ok {
			verr.Add(opts.field(i, "id"), CodeUnknownID, fmt.Sprintf("delivery %d does not belong to this item", id))
			continue
		}
		if seen[id] {
			verr.Add(opts.field(i, "id"), CodeDuplicate, fmt.Sprintf("delivery %d is listed more than once", id))
			continue
		}
		seen[id] = true

		scheduleChanged, otherChanged := compareSlot(*before, draft, showCost)
		if before.SupplierConfirms && otherChanged {
			verr.AddCause(opts.field(i, ""), CodeLocked, &DeliveryLockedError{
				ItemID: opts.ItemID,
				SlotID: id,
				Reason: "only the delivery date and time can be changed",
			})
			continue
		}
		if !scheduleChanged && !otherChanged {
			diff.Changes = append(diff.Changes, SlotChange{Kind: ChangeUnchanged, Before: before, After: &draft})
			continue
		}
		diff.Changes = append(diff.Changes, SlotChange{Kind: ChangeUpdate, Before: before, After: &draft})
		diff.Update = append(diff.Update, deliveryInput(draft, before, showCost))
	}

	for i := range persisted {
		p := &persisted[i]
		if seen[p.ID] {
			continue
		}
		if p.SupplierConfirms {
			verr.AddCause(opts.Field, CodeLocked, &DeliveryLockedError{
				ItemID: opts.ItemID,
				SlotID: p.ID,
				Reason: "a supplier-confirmed delivery cannot be removed",
			})
			continue
		}
		diff.Changes = append(diff.Changes, SlotChange{Kind: ChangeRemove, Before: p})
		diff.Remove = append(diff.Remove, p.ID)
	}

	if err := verr.ErrOrNil(); err != nil {
		return SlotDiff{}, err
	}
	return diff, nil
}

// compareSlot splits differences into schedule (date/time) and everything else.
// An unset load size or cost keeps the persisted value. TimeInterval only
// spreads trips when a slot is created and is never compared.
func compareSlot(before Slot, after SlotDraft, withCost bool) (schedule, other bool) {
	beforeTime, _ := NormalizeTime(before.DeliveryTime)
	schedule = before.DeliveryDate != after.DeliveryDate || !sameTime(beforeTime, after.DeliveryTime)
	other = !before.Quantity.Equal(after.Quantity) || before.TruckType != after.TruckType
	if after.LoadSize != nil && (before.LoadSize == nil || !before.LoadSize.Equal(*after.LoadSize)) {
		other = true
	}
	if withCost && after.DeliveryCost != nil && !before.DeliveryCost.Equal(*after.DeliveryCost) {
		other = true
	}
	return schedule, other
}

// deliveryInput renders a draft as a wire instruction. The delivery cost is
// only emitted when withCost is set; an unset cost keeps the persisted one.
// TimeInterval is only emitted for new slots.
func deliveryInput(draft SlotDraft, before *Slot, withCost bool) domain.DeliveryInput {
	in := domain.DeliveryInput{
		ID:           draft.ID,
		Quantity:     draft.Quantity,
		DeliveryDate: draft.DeliveryDate,
		DeliveryTime: draft.DeliveryTime,
		TruckType:    draft.TruckType,
		LoadSize:     draft.LoadSize,
	}
	if before == nil {
		in.TimeInterval = draft.TimeInterval
	}
	if withCost {
		switch {
		case draft.DeliveryCost != nil:
			c := *draft.DeliveryCost
			in.DeliveryCost = &c
		case before != nil:
			c := before.DeliveryCost
			in.DeliveryCost = &c
		}
	}
	return in
}
