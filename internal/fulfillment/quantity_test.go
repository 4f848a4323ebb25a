package fulfillment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func uintPtr(u uint) *uint {
	return &u
}

func slotsOf(quantities ...string) []fulfillment.SlotDraft {
	out := make([]fulfillment.SlotDraft, len(quantities))
	for i, q := range quantities {
		out[i] = fulfillment.SlotDraft{
			Quantity:     dec(q),
			DeliveryDate: "2026-03-02",
			DeliveryTime: strPtr("07:00"),
			TruckType:    domain.TruckTypeTipper,
		}
	}
	return out
}

func TestAllocator_Allocate(t *testing.T) {
	alloc := fulfillment.NewAllocator(fulfillment.DefaultEpsilon)

	tests := []struct {
		name      string
		quantity  string
		slots     []string
		valid     bool
		remaining string
	}{
		{name: "three way split within epsilon", quantity: "10", slots: []string{"3.33", "3.33", "3.34"}, valid: true, remaining: "0"},
		{name: "under allocated", quantity: "10", slots: []string{"4", "5"}, valid: false, remaining: "1"},
		{name: "over allocated", quantity: "10", slots: []string{"6", "5"}, valid: false, remaining: "-1"},
		{name: "rounding noise below epsilon", quantity: "10", slots: []string{"3.333", "3.333", "3.333"}, valid: true, remaining: "0.001"},
		{name: "exactly epsilon short is invalid", quantity: "10", slots: []string{"9.99"}, valid: false, remaining: "0.01"},
		{name: "remaining rounded to four places", quantity: "1", slots: []string{"0.33333"}, valid: false, remaining: "0.6667"},
		{name: "no slots", quantity: "5", slots: nil, valid: false, remaining: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alloc.Allocate(dec(tt.quantity), slotsOf(tt.slots...))
			assert.Equal(t, tt.valid, got.Valid)
			assert.True(t, dec(tt.remaining).Equal(got.Remaining), "remaining = %s", got.Remaining)
		})
	}
}

func TestAllocator_ConfigurableEpsilon(t *testing.T) {
	loose := fulfillment.NewAllocator(dec("0.5"))
	assert.True(t, loose.Allocate(dec("10"), slotsOf("9.6")).Valid)

	strict := fulfillment.NewAllocator(decimal.Zero)
	assert.True(t, strict.Epsilon.Equal(fulfillment.DefaultEpsilon))
	assert.False(t, strict.Allocate(dec("10"), slotsOf("9.6")).Valid)
}

func TestAllocator_NextSlotQuantity(t *testing.T) {
	alloc := fulfillment.NewAllocator(fulfillment.DefaultEpsilon)

	tests := []struct {
		name     string
		quantity string
		slots    []string
		want     string
	}{
		{name: "defaults to remaining", quantity: "10", slots: []string{"4"}, want: "6"},
		{name: "tiny remainder floors to minimum", quantity: "10", slots: []string{"9.995"}, want: "0.01"},
		{name: "fully allocated defaults to one", quantity: "10", slots: []string{"10"}, want: "1"},
		{name: "over allocated defaults to one", quantity: "10", slots: []string{"12"}, want: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alloc.NextSlotQuantity(alloc.Allocate(dec(tt.quantity), slotsOf(tt.slots...)))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestAllocator_AddSlot(t *testing.T) {
	alloc := fulfillment.NewAllocator(fulfillment.DefaultEpsilon)
	item := fulfillment.ItemDraft{Quantity: dec("10"), Slots: slotsOf("4")}

	got := alloc.AddSlot(item)

	require.Len(t, got.Slots, 2)
	assert.Len(t, item.Slots, 1, "input draft is not mutated")
	added := got.Slots[1]
	assert.True(t, dec("6").Equal(added.Quantity))
	assert.NotEmpty(t, added.LocalID)
	assert.Nil(t, added.ID)
	assert.Equal(t, "2026-03-02", added.DeliveryDate)
	assert.Equal(t, domain.TruckTypeTipper, added.TruckType)
	assert.True(t, alloc.Allocate(got.Quantity, got.Slots).Valid)
}

func TestAllocator_RemoveSlot(t *testing.T) {
	alloc := fulfillment.NewAllocator(fulfillment.DefaultEpsilon)

	t.Run("removes and keeps order", func(t *testing.T) {
		slots := slotsOf("1", "2", "3")
		got, err := alloc.RemoveSlot(slots, 1)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, dec("1").Equal(got[0].Quantity))
		assert.True(t, dec("3").Equal(got[1].Quantity))
		assert.Len(t, slots, 3)
	})

	t.Run("never rebalances siblings", func(t *testing.T) {
		got, err := alloc.RemoveSlot(slotsOf("5", "5"), 0)
		require.NoError(t, err)
		res := alloc.Allocate(dec("10"), got)
		assert.False(t, res.Valid)
		assert.True(t, dec("5").Equal(res.Remaining))
	})

	t.Run("last slot", func(t *testing.T) {
		_, err := alloc.RemoveSlot(slotsOf("10"), 0)
		assert.ErrorIs(t, err, fulfillment.ErrLastSlot)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := alloc.RemoveSlot(slotsOf("5", "5"), 2)
		assert.ErrorIs(t, err, fulfillment.ErrSlotIndex)
		_, err = alloc.RemoveSlot(slotsOf("5", "5"), -1)
		assert.ErrorIs(t, err, fulfillment.ErrSlotIndex)
	})
}

func TestAllocator_ExpandLoads(t *testing.T) {
	alloc := fulfillment.NewAllocator(fulfillment.DefaultEpsilon)

	t.Run("splits into timed trips", func(t *testing.T) {
		slot := fulfillment.SlotDraft{
			LocalID:      "a",
			Quantity:     dec("10"),
			DeliveryDate: "2026-03-02",
			DeliveryTime: strPtr("08:00"),
			TruckType:    domain.TruckTypeTruckAndDog,
			LoadSize:     decPtr("3"),
			TimeInterval: intPtr(60),
		}

		got, err := alloc.ExpandLoads(slot)
		require.NoError(t, err)
		require.Len(t, got, 4)

		wantQty := []string{"3", "3", "3", "1"}
		wantTime := []string{"08:00", "09:00", "10:00", "11:00"}
		ids := map[string]bool{}
		for i, s := range got {
			assert.True(t, dec(wantQty[i]).Equal(s.Quantity), "slot %d quantity %s", i, s.Quantity)
			require.NotNil(t, s.DeliveryTime)
			assert.Equal(t, wantTime[i], *s.DeliveryTime)
			assert.Equal(t, "2026-03-02", s.DeliveryDate)
			assert.Equal(t, domain.TruckTypeTruckAndDog, s.TruckType)
			ids[s.LocalID] = true
		}
		assert.Equal(t, "a", got[0].LocalID)
		assert.Len(t, ids, 4, "every trip gets its own local id")
		assert.True(t, alloc.Allocate(dec("10"), got).Valid)
	})

	t.Run("expanding expanded trips is the identity", func(t *testing.T) {
		slot := fulfillment.SlotDraft{
			Quantity: dec("7"), DeliveryDate: "2026-03-02", DeliveryTime: strPtr("6:30"),
			TruckType: domain.TruckTypeTipper, LoadSize: decPtr("2.5"), TimeInterval: intPtr(45),
		}
		first, err := alloc.ExpandSlots([]fulfillment.SlotDraft{slot})
		require.NoError(t, err)
		second, err := alloc.ExpandSlots(first)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, "06:30", *first[0].DeliveryTime)
		assert.Equal(t, "08:00", *first[2].DeliveryTime)
	})

	t.Run("no time stays unset", func(t *testing.T) {
		slot := fulfillment.SlotDraft{Quantity: dec("4"), LoadSize: decPtr("2"), TimeInterval: intPtr(30)}
		got, err := alloc.ExpandLoads(slot)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, s := range got {
			assert.Nil(t, s.DeliveryTime)
		}
	})

	t.Run("without both fields nothing happens", func(t *testing.T) {
		slot := fulfillment.SlotDraft{Quantity: dec("10"), LoadSize: decPtr("3")}
		got, err := alloc.ExpandLoads(slot)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("persisted slots are never expanded", func(t *testing.T) {
		slot := fulfillment.SlotDraft{ID: uintPtr(9), Quantity: dec("10"), LoadSize: decPtr("3"), TimeInterval: intPtr(60)}
		got, err := alloc.ExpandLoads(slot)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("past midnight", func(t *testing.T) {
		slot := fulfillment.SlotDraft{
			Quantity: dec("10"), DeliveryTime: strPtr("22:00"),
			LoadSize: decPtr("3"), TimeInterval: intPtr(60),
		}
		_, err := alloc.ExpandLoads(slot)
		assert.ErrorIs(t, err, fulfillment.ErrExpansionPastMidnight)
	})

	t.Run("invalid load size and interval", func(t *testing.T) {
		_, err := alloc.ExpandLoads(fulfillment.SlotDraft{Quantity: dec("10"), LoadSize: decPtr("0"), TimeInterval: intPtr(10)})
		assert.ErrorIs(t, err, fulfillment.ErrInvalidLoadSize)
		_, err = alloc.ExpandLoads(fulfillment.SlotDraft{Quantity: dec("10"), LoadSize: decPtr("2"), TimeInterval: intPtr(-5)})
		assert.ErrorIs(t, err, fulfillment.ErrInvalidInterval)
	})

	t.Run("too many trips", func(t *testing.T) {
		_, err := alloc.ExpandLoads(fulfillment.SlotDraft{Quantity: dec("1000"), LoadSize: decPtr("0.5"), TimeInterval: intPtr(0)})
		assert.Error(t, err)
	})
}
