package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
	"github.com/bulkmat/order-api/internal/testutil"
)

type editFixture struct {
	db       *gorm.DB
	svc      *service.OrderService
	locker   *lock.MemoryLocker
	project  *domain.Project
	product  *domain.Product
	supplier *domain.Supplier
}

func newEditFixture(t *testing.T) *editFixture {
	db := testutil.SetupTestDB(t)
	locker := lock.NewMemoryLocker()
	return &editFixture{
		db:       db,
		svc:      newOrderService(t, db, locker),
		locker:   locker,
		project:  testutil.CreateTestProject(t, db, 100, "Penrith Slab"),
		product:  testutil.CreateTestProduct(t, db, "Road Base"),
		supplier: testutil.CreateTestSupplier(t, db, "Hanson"),
	}
}

// order creates 20 t at 50/t in two slots: a confirmed one and an open one costing 60
func (f *editFixture) order(t *testing.T) (*domain.Order, domain.DeliverySlot, domain.DeliverySlot) {
	order := testutil.CreateTestOrder(t, f.db, f.project, testutil.ItemSpec{
		ProductID: f.product.ID, SupplierID: &f.supplier.ID, Quantity: "20", UnitCost: "50",
		Slots: []testutil.SlotSpec{
			{Quantity: "10", Date: "2026-03-02", Confirmed: true},
			{Quantity: "10", Date: "2026-03-03", Cost: "60"},
		},
	})
	item := order.Items[0]
	return order, item.Deliveries[0], item.Deliveries[1]
}

func TestOrderService_Edit(t *testing.T) {
	f := newEditFixture(t)
	order, _, _ := f.order(t)
	itemID := order.Items[0].ID

	dto, err := f.svc.Edit(testutil.ClientContext(100), order.ID, &domain.OrderEditPayload{
		Order: &domain.OrderFieldsUpdate{ContactPersonName: ptr("New Lead")},
		ItemsUpdate: []domain.ItemUpdate{{
			OrderItemID: itemID,
			Quantity:    ptr(dec("25")),
			DeliveriesAdd: []domain.DeliveryInput{
				{Quantity: dec("5"), DeliveryDate: "2026-03-04", DeliveryTime: ptr("7:30"), TruckType: domain.TruckTypeTipper},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "New Lead", dto.ContactPersonName)
	require.Len(t, dto.Items, 1)
	assert.True(t, dec("25").Equal(dto.Items[0].Quantity))
	require.Len(t, dto.Items[0].Deliveries, 3)
	added := dto.Items[0].Deliveries[2]
	require.NotNil(t, added.DeliveryTime)
	assert.Equal(t, "07:30", *added.DeliveryTime, "times are normalized")

	// 25 x 50 + 60 delivery, plus 10% GST
	view := pricingView(t, dto)
	assert.True(t, dec("1441").Equal(view.TotalPrice), view.TotalPrice.String())

	activities, total, err := repository.NewActivityRepository(f.db).ListByOrder(context.Background(), order.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Order edited", activities[0].Title)
}

func TestOrderService_EditFullDeliveryListKeepsCosts(t *testing.T) {
	f := newEditFixture(t)
	order, confirmed, open := f.order(t)

	dto, err := f.svc.Edit(testutil.AdminContext(), order.ID, &domain.OrderEditPayload{
		ItemsUpdate: []domain.ItemUpdate{{
			OrderItemID: order.Items[0].ID,
			Deliveries: []domain.DeliveryInput{
				{ID: &confirmed.ID, Quantity: dec("10"), DeliveryDate: "2026-03-09", TruckType: domain.TruckTypeTruckAndDog},
				{ID: &open.ID, Quantity: dec("10"), DeliveryDate: "2026-03-10", TruckType: domain.TruckTypeTruckAndDog},
			},
		}},
	})
	require.NoError(t, err, "a confirmed delivery may be rescheduled")

	byID := map[uint]domain.DeliverySlotDTO{}
	for _, d := range dto.Items[0].Deliveries {
		byID[d.ID] = d
	}
	assert.Equal(t, "2026-03-09", byID[confirmed.ID].DeliveryDate)
	assert.Equal(t, "2026-03-10", byID[open.ID].DeliveryDate)
	require.NotNil(t, byID[open.ID].DeliveryCost)
	assert.True(t, dec("60").Equal(*byID[open.ID].DeliveryCost), "omitted cost keeps the stored value")
}

func TestOrderService_EditRejects(t *testing.T) {
	f := newEditFixture(t)

	tests := []struct {
		name       string
		ctx        context.Context
		payload    func(order *domain.Order, confirmed, open domain.DeliverySlot) *domain.OrderEditPayload
		wantField  string
		wantLocked bool
		wantErr    interface{}
	}{
		{
			name: "removing a confirmed delivery",
			ctx:  testutil.ClientContext(100),
			payload: func(o *domain.Order, confirmed, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsUpdate: []domain.ItemUpdate{{
					OrderItemID: o.Items[0].ID, Quantity: ptr(dec("10")), DeliveriesRemove: []uint{confirmed.ID},
				}}}
			},
			wantField:  "items_update[0].deliveries",
			wantLocked: true,
		},
		{
			name: "changing the quantity of a confirmed delivery",
			ctx:  testutil.ClientContext(100),
			payload: func(o *domain.Order, confirmed, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsUpdate: []domain.ItemUpdate{{
					OrderItemID: o.Items[0].ID, Quantity: ptr(dec("18")),
					DeliveriesUpdate: []domain.DeliveryInput{{ID: &confirmed.ID, Quantity: dec("8"), DeliveryDate: "2026-03-02", TruckType: domain.TruckTypeTruckAndDog}},
				}}}
			},
			wantField:  "items_update[0].deliveries[0]",
			wantLocked: true,
		},
		{
			name: "removing an item with a confirmed delivery",
			ctx:  testutil.ClientContext(100),
			payload: func(o *domain.Order, _, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsRemove: []uint{o.Items[0].ID}}
			},
			wantField:  "items_remove[0]",
			wantLocked: true,
		},
		{
			name: "removing an unknown item",
			ctx:  testutil.ClientContext(100),
			payload: func(_ *domain.Order, _, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsRemove: []uint{424242}}
			},
			wantField: "items_remove[0]",
		},
		{
			name: "updating an unknown delivery",
			ctx:  testutil.ClientContext(100),
			payload: func(o *domain.Order, _, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsUpdate: []domain.ItemUpdate{{
					OrderItemID:      o.Items[0].ID,
					DeliveriesUpdate: []domain.DeliveryInput{{ID: ptr(uint(99999)), Quantity: dec("1"), DeliveryDate: "2026-03-02", TruckType: domain.TruckTypeTipper}},
				}}}
			},
			wantField: "items_update[0].deliveries_update[0].id",
		},
		{
			name: "quantity no longer matches deliveries",
			ctx:  testutil.ClientContext(100),
			payload: func(o *domain.Order, _, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsUpdate: []domain.ItemUpdate{{OrderItemID: o.Items[0].ID, Quantity: ptr(dec("30"))}}}
			},
			wantField: "items_update[0].deliveries",
		},
		{
			name: "adding an unknown product",
			ctx:  testutil.ClientContext(100),
			payload: func(_ *domain.Order, _, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{ItemsAdd: []domain.ItemAdd{{
					ProductID: 77777, Quantity: dec("3"),
					Deliveries: []domain.DeliveryInput{{Quantity: dec("3"), DeliveryDate: "2026-03-02", TruckType: domain.TruckTypeTipper}},
				}}}
			},
			wantField: "items_add[0].product_id",
		},
		{
			name: "suppliers cannot edit",
			ctx:  nil,
			payload: func(_ *domain.Order, _, _ domain.DeliverySlot) *domain.OrderEditPayload {
				return &domain.OrderEditPayload{Order: &domain.OrderFieldsUpdate{SiteInstructions: ptr("gate 4")}}
			},
			wantErr: &fulfillment.WorkflowViolationError{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, confirmed, open := f.order(t)
			ctx := tt.ctx
			if ctx == nil {
				ctx = testutil.SupplierContext(7, f.supplier.ID)
			}
			_, err := f.svc.Edit(ctx, order.ID, tt.payload(order, confirmed, open))
			require.Error(t, err)

			if tt.wantErr != nil {
				var wv *fulfillment.WorkflowViolationError
				assert.ErrorAs(t, err, &wv)
				return
			}
			assert.Contains(t, fieldErrors(t, err), tt.wantField)
			if tt.wantLocked {
				var locked *fulfillment.DeliveryLockedError
				assert.ErrorAs(t, err, &locked)
			}

			stored, err := repository.NewOrderRepository(f.db).GetByID(testutil.AdminContext(), order.ID)
			require.NoError(t, err)
			assert.True(t, dec("20").Equal(stored.Items[0].Quantity), "a rejected edit writes nothing")
			assert.Len(t, stored.Items[0].Deliveries, 2)
		})
	}
}

func TestOrderService_EditSingleFlight(t *testing.T) {
	f := newEditFixture(t)
	order, _, _ := f.order(t)

	release, err := f.locker.Acquire(context.Background(), lock.OrderKey(order.ID), time.Minute)
	require.NoError(t, err)

	payload := &domain.OrderEditPayload{Order: &domain.OrderFieldsUpdate{SiteInstructions: ptr("gate 4")}}
	_, err = f.svc.Edit(testutil.ClientContext(100), order.ID, payload)
	assert.ErrorIs(t, err, service.ErrEditInProgress)

	release()
	dto, err := f.svc.Edit(testutil.ClientContext(100), order.ID, payload)
	require.NoError(t, err)
	assert.Equal(t, "gate 4", dto.SiteInstructions)
}

func TestOrderService_EditWithoutChanges(t *testing.T) {
	f := newEditFixture(t)
	order, _, _ := f.order(t)

	dto, err := f.svc.Edit(testutil.ClientContext(100), order.ID, &domain.OrderEditPayload{
		ItemsUpdate: []domain.ItemUpdate{{OrderItemID: order.Items[0].ID, Quantity: ptr(dec("20"))}},
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, dto.ID)

	_, total, err := repository.NewActivityRepository(f.db).ListByOrder(context.Background(), order.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total, "nothing changed, nothing logged")
}
