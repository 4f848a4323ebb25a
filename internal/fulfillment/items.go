package fulfillment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bulkmat/order-api/internal/domain"
)

// Actor is the authenticated caller a gate or edit is evaluated for
type Actor struct {
	Role   domain.Role
	UserID uint
}

// Item is the persisted state of an order item
type Item struct {
	ID             uint
	ProductID      uint
	Quantity       decimal.Decimal
	CustomBlendMix *string
	Slots          []Slot
}

// HasConfirmedSlot reports whether the supplier confirmed any of the item's slots
func (i Item) HasConfirmedSlot() bool {
	for _, s := range i.Slots {
		if s.SupplierConfirms {
			return true
		}
	}
	return false
}

// ItemDraft is an edited order item. ID is nil for new product lines.
// Field optionally overrides the path prefix used in problems.
type ItemDraft struct {
	ID             *uint
	LocalID        string
	ProductID      uint
	Quantity       decimal.Decimal
	CustomBlendMix *string
	Slots          []SlotDraft
	Field          string
}

// OrderFields are the top-level order fields an editor may change
type OrderFields struct {
	ContactPersonName   string
	ContactPersonNumber string
	SiteInstructions    string
}

// OrderState is the persisted order an edit is diffed against
type OrderState struct {
	ID     uint
	Status domain.OrderStatus
	Fields OrderFields
	Items  []Item
}

// OrderDraft is the desired state of an order
type OrderDraft struct {
	Fields OrderFields
	Items  []ItemDraft
}

// DraftFromState produces a draft identical to the persisted state
func DraftFromState(state OrderState) OrderDraft {
	draft := OrderDraft{Fields: state.Fields, Items: make([]ItemDraft, 0, len(state.Items))}
	for _, it := range state.Items {
		id := it.ID
		slots := make([]SlotDraft, 0, len(it.Slots))
		for _, s := range it.Slots {
			slots = append(slots, DraftFromSlot(s))
		}
		draft.Items = append(draft.Items, ItemDraft{
			ID:             &id,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			CustomBlendMix: it.CustomBlendMix,
			Slots:          slots,
		})
	}
	return draft
}

// Editor composes the allocator and the slot diff into order edit payloads
type Editor struct {
	Allocator Allocator
}

// NewEditor creates an editor using the given allocator
func NewEditor(alloc Allocator) *Editor {
	return &Editor{Allocator: alloc}
}

// BuildEditPayload diffs the desired order against its persisted state and
// returns the instruction set to submit. Every violation is collected into a
// single *ValidationError; workflow gates fail first with
// *WorkflowViolationError. The editor is pure.
func (e *Editor) BuildEditPayload(state OrderState, draft OrderDraft, actor Actor) (*domain.OrderEditPayload, error) {
	if err := EnsureEditOrder(state.Status, actor.Role); err != nil {
		return nil, err
	}

	payload := &domain.OrderEditPayload{Order: diffFields(state.Fields, draft.Fields)}
	verr := &ValidationError{}

	byID := make(map[uint]Item, len(state.Items))
	for _, it := range state.Items {
		byID[it.ID] = it
	}
	kept := make(map[uint]bool, len(draft.Items))

	for i, d := range draft.Items {
		field := d.Field
		if field == "" {
			field = fmt.Sprintf("items[%d]", i)
		}
		if d.ID == nil {
			add, problems := e.buildItemAdd(d, field, actor)
			verr.Merge(problems)
			if add != nil {
				payload.ItemsAdd = append(payload.ItemsAdd, *add)
			}
			continue
		}

		id := *d.ID
		persisted, ok := byID[id]
		if !ok {
			verr.Add(field+".order_item_id", CodeUnknownID, fmt.Sprintf("order item %d does not belong to this order", id))
			continue
		}
		if kept[id] {
			verr.Add(field+".order_item_id", CodeDuplicate, fmt.Sprintf("order item %d is listed more than once", id))
			continue
		}
		kept[id] = true

		update, problems := e.buildItemUpdate(persisted, d, field, actor)
		verr.Merge(problems)
		if update != nil {
			payload.ItemsUpdate = append(payload.ItemsUpdate, *update)
		}
	}

	for _, it := range state.Items {
		if kept[it.ID] {
			continue
		}
		field := fmt.Sprintf("items_remove[%d]", len(payload.ItemsRemove))
		if err := EnsureRemoveItem(it, actor.Role); err != nil {
			code := CodeLocked
			var wv *WorkflowViolationError
			if errors.As(err, &wv) {
				code = CodeForbidden
			}
			verr.AddCause(field, code, err)
			continue
		}
		payload.ItemsRemove = append(payload.ItemsRemove, it.ID)
	}

	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return payload, nil
}

func (e *Editor) buildItemAdd(d ItemDraft, field string, actor Actor) (*domain.ItemAdd, *ValidationError) {
	verr := &ValidationError{}
	if d.ProductID == 0 {
		verr.Add(field+".product_id", CodeRequired, "product is required")
	}

	slots, err := e.Allocator.ExpandSlots(d.Slots)
	if err != nil {
		verr.Add(field+".deliveries", CodeExpansion, err.Error())
		slots = d.Slots
	}
	e.validateItem(d.Quantity, slots, field, verr)

	showCost := actor.Role == domain.RoleAdmin
	add := &domain.ItemAdd{
		ProductID:      d.ProductID,
		Quantity:       d.Quantity,
		CustomBlendMix: d.CustomBlendMix,
		Deliveries:     make([]domain.DeliveryInput, 0, len(slots)),
	}
	for _, s := range slots {
		s.DeliveryTime, _ = NormalizeTime(s.DeliveryTime)
		add.Deliveries = append(add.Deliveries, deliveryInput(s, nil, showCost))
	}
	if verr.HasProblems() {
		return nil, verr
	}
	return add, nil
}

func (e *Editor) buildItemUpdate(persisted Item, d ItemDraft, field string, actor Actor) (*domain.ItemUpdate, *ValidationError) {
	verr := &ValidationError{}

	// Lines rescheduled from scratch (repeat orders) have no slots until the
	// first one is added; while they stay that way they are not validated.
	unscheduled := len(persisted.Slots) == 0 && len(d.Slots) == 0
	if !unscheduled {
		e.validateItem(d.Quantity, d.Slots, field, verr)
	} else if !d.Quantity.IsPositive() {
		verr.Add(field+".quantity", CodePositive, "quantity must be greater than zero")
	}

	diff, err := DiffSlots(persisted.Slots, d.Slots, DiffOptions{
		Role:   actor.Role,
		ItemID: persisted.ID,
		Field:  field + ".deliveries",
	})
	if err != nil {
		var sub *ValidationError
		if errors.As(err, &sub) {
			verr.Merge(sub)
		} else {
			verr.Add(field+".deliveries", CodeRequired, err.Error())
		}
	}
	if verr.HasProblems() {
		return nil, verr
	}

	update := domain.ItemUpdate{OrderItemID: persisted.ID}
	changed := false
	if !persisted.Quantity.Equal(d.Quantity) {
		q := d.Quantity
		update.Quantity = &q
		changed = true
	}
	if stringValue(persisted.CustomBlendMix) != stringValue(d.CustomBlendMix) {
		blend := stringValue(d.CustomBlendMix)
		update.CustomBlendMix = &blend
		changed = true
	}
	if diff.HasChanges() {
		showCost := actor.Role == domain.RoleAdmin
		update.Deliveries = make([]domain.DeliveryInput, 0, len(diff.Changes))
		for _, c := range diff.Changes {
			if c.After != nil {
				update.Deliveries = append(update.Deliveries, deliveryInput(*c.After, c.Before, showCost))
			}
		}
		update.DeliveriesAdd = diff.Add
		update.DeliveriesUpdate = diff.Update
		update.DeliveriesRemove = diff.Remove
		changed = true
	}
	if !changed {
		return nil, nil
	}
	return &update, nil
}

// validateItem checks quantity, per-slot fields and allocation conservation
func (e *Editor) validateItem(quantity decimal.Decimal, slots []SlotDraft, field string, verr *ValidationError) {
	if quantity.LessThan(MinSlotQuantity) {
		verr.Add(field+".quantity", CodePositive, fmt.Sprintf("quantity must be at least %s", MinSlotQuantity))
	}
	if len(slots) == 0 {
		verr.Add(field+".deliveries", CodeMinSlots, "at least one delivery is required")
		return
	}
	for j, s := range slots {
		validateSlot(s, fmt.Sprintf("%s.deliveries[%d]", field, j), verr)
	}
	alloc := e.Allocator.Allocate(quantity, slots)
	if !alloc.Valid {
		verr.Add(field+".deliveries", CodeAllocation, fmt.Sprintf(
			"deliveries add up to %s of %s (remaining %s)",
			alloc.Allocated.String(), quantity.String(), alloc.Remaining.String()))
	}
}

func validateSlot(s SlotDraft, field string, verr *ValidationError) {
	if !s.Quantity.IsPositive() {
		verr.Add(field+".quantity", CodePositive, "quantity must be greater than zero")
	}
	switch {
	case s.DeliveryDate == "":
		verr.Add(field+".delivery_date", CodeRequired, "delivery date is required")
	case !validDate(s.DeliveryDate):
		verr.Add(field+".delivery_date", CodeDateFormat, "delivery date must be YYYY-MM-DD")
	}
	if _, err := NormalizeTime(s.DeliveryTime); err != nil {
		verr.Add(field+".delivery_time", CodeTimeFormat, err.Error())
	}
	switch {
	case s.TruckType == "":
		verr.Add(field+".truck_type", CodeRequired, "truck type is required")
	case !s.TruckType.IsValid():
		verr.Add(field+".truck_type", CodeTruckType, fmt.Sprintf("unknown truck type %q", s.TruckType))
	}
	if s.LoadSize != nil && !s.LoadSize.IsPositive() {
		verr.Add(field+".load_size", CodePositive, ErrInvalidLoadSize.Error())
	}
	if s.DeliveryCost != nil && s.DeliveryCost.IsNegative() {
		verr.Add(field+".delivery_cost", CodePositive, "delivery cost must not be negative")
	}
}

func diffFields(before, after OrderFields) *domain.OrderFieldsUpdate {
	var u domain.OrderFieldsUpdate
	if before.ContactPersonName != after.ContactPersonName {
		v := after.ContactPersonName
		u.ContactPersonName = &v
	}
	if before.ContactPersonNumber != after.ContactPersonNumber {
		v := after.ContactPersonNumber
		u.ContactPersonNumber = &v
	}
	if before.SiteInstructions != after.SiteInstructions {
		v := after.SiteInstructions
		u.SiteInstructions = &v
	}
	if u.IsEmpty() {
		return nil
	}
	return &u
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
