package fulfillment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// DefaultEpsilon is the tolerance for allocation conservation
	DefaultEpsilon = decimal.RequireFromString("0.01")
	// MinSlotQuantity is the smallest quantity a new slot defaults to
	MinSlotQuantity = decimal.RequireFromString("0.01")
)

// DefaultMaxLoads bounds how many slots a single load-size expansion may produce
const DefaultMaxLoads = 200

// remainderPlaces is the rounding applied to the remaining quantity
const remainderPlaces = 4

// Allocation reports how an item's quantity is spread over its slots
type Allocation struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Allocated decimal.Decimal `json:"allocated"`
	Remaining decimal.Decimal `json:"remaining"`
	Valid     bool            `json:"valid"`
}

// Allocator validates the conservation of an item's quantity across its
// delivery slots. It never rebalances slots; it only reports the delta.
type Allocator struct {
	Epsilon  decimal.Decimal
	MaxLoads int
}

// NewAllocator creates an allocator with the given tolerance. A zero
// epsilon falls back to DefaultEpsilon.
func NewAllocator(epsilon decimal.Decimal) Allocator {
	if !epsilon.IsPositive() {
		epsilon = DefaultEpsilon
	}
	return Allocator{Epsilon: epsilon, MaxLoads: DefaultMaxLoads}
}

// Allocate sums the slot quantities against the item quantity
func (a Allocator) Allocate(quantity decimal.Decimal, slots []SlotDraft) Allocation {
	parts := make([]decimal.Decimal, len(slots))
	for i, s := range slots {
		parts[i] = s.Quantity
	}
	return a.AllocateQuantities(quantity, parts...)
}

// AllocateQuantities is Allocate over bare quantities
func (a Allocator) AllocateQuantities(quantity decimal.Decimal, parts ...decimal.Decimal) Allocation {
	allocated := decimal.Zero
	for _, p := range parts {
		allocated = allocated.Add(p)
	}
	remaining := quantity.Sub(allocated).Round(remainderPlaces)
	return Allocation{
		Quantity:  quantity,
		Allocated: allocated,
		Remaining: remaining,
		Valid:     remaining.Abs().LessThan(a.epsilon()),
	}
}

// NextSlotQuantity is the default quantity of a slot added to an item:
// the remaining quantity (at least 0.01) or 1 when nothing remains
func (a Allocator) NextSlotQuantity(alloc Allocation) decimal.Decimal {
	if alloc.Remaining.IsPositive() {
		return decimal.Max(MinSlotQuantity, alloc.Remaining)
	}
	return decimal.NewFromInt(1)
}

// AddSlot appends a new slot to an item draft, defaulting its quantity from
// the current allocation and copying the schedule of the last slot
func (a Allocator) AddSlot(item ItemDraft) ItemDraft {
	next := SlotDraft{
		LocalID:  uuid.NewString(),
		Quantity: a.NextSlotQuantity(a.Allocate(item.Quantity, item.Slots)),
	}
	if n := len(item.Slots); n > 0 {
		last := item.Slots[n-1]
		next.DeliveryDate = last.DeliveryDate
		next.DeliveryTime = last.DeliveryTime
		next.TruckType = last.TruckType
	}
	slots := make([]SlotDraft, 0, len(item.Slots)+1)
	slots = append(slots, item.Slots...)
	item.Slots = append(slots, next)
	return item
}

// RemoveSlot removes the slot at index. An item always keeps at least one slot.
func (a Allocator) RemoveSlot(slots []SlotDraft, index int) ([]SlotDraft, error) {
	if index < 0 || index >= len(slots) {
		return nil, fmt.Errorf("%w: %d", ErrSlotIndex, index)
	}
	if len(slots) == 1 {
		return nil, ErrLastSlot
	}
	out := make([]SlotDraft, 0, len(slots)-1)
	out = append(out, slots[:index]...)
	return append(out, slots[index+1:]...), nil
}

// ExpandLoads splits a new slot carrying load_size L and time_interval I into
// ceil(quantity/L) trips of min(L, remaining), each I minutes after the
// previous one on the same date. Slots without both fields, persisted slots
// and slots already at or below L are returned unchanged.
func (a Allocator) ExpandLoads(slot SlotDraft) ([]SlotDraft, error) {
	if slot.ID != nil || slot.LoadSize == nil || slot.TimeInterval == nil {
		return []SlotDraft{slot}, nil
	}
	size := *slot.LoadSize
	if !size.IsPositive() {
		return nil, ErrInvalidLoadSize
	}
	interval := *slot.TimeInterval
	if interval < 0 {
		return nil, ErrInvalidInterval
	}
	if !slot.Quantity.IsPositive() || slot.Quantity.LessThanOrEqual(size) {
		return []SlotDraft{slot}, nil
	}

	trips := slot.Quantity.Div(size).Ceil().IntPart()
	maxLoads := a.MaxLoads
	if maxLoads <= 0 {
		maxLoads = DefaultMaxLoads
	}
	if trips > int64(maxLoads) {
		return nil, fmt.Errorf("load size %s splits %s into %d trips, more than %d", size, slot.Quantity, trips, maxLoads)
	}

	baseTime, err := NormalizeTime(slot.DeliveryTime)
	if err != nil {
		return nil, err
	}

	out := make([]SlotDraft, 0, trips)
	remaining := slot.Quantity
	for k := 0; remaining.IsPositive(); k++ {
		trip := slot
		trip.Quantity = decimal.Min(size, remaining)
		remaining = remaining.Sub(trip.Quantity)
		if k > 0 {
			trip.LocalID = uuid.NewString()
		}
		if baseTime != nil {
			clock, err := addMinutes(*baseTime, k*interval)
			if err != nil {
				return nil, err
			}
			trip.DeliveryTime = &clock
		}
		out = append(out, trip)
	}
	return out, nil
}

// ExpandSlots applies ExpandLoads to every slot, preserving order
func (a Allocator) ExpandSlots(slots []SlotDraft) ([]SlotDraft, error) {
	out := make([]SlotDraft, 0, len(slots))
	for i, s := range slots {
		expanded, err := a.ExpandLoads(s)
		if err != nil {
			return nil, fmt.Errorf("delivery %d: %w", i, err)
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func (a Allocator) epsilon() decimal.Decimal {
	if a.Epsilon.IsPositive() {
		return a.Epsilon
	}
	return DefaultEpsilon
}
