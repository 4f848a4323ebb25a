package repository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestOrderRepository_ActorScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)

	product := testutil.CreateTestProduct(t, db, "20mm Blue Metal")
	supplier := testutil.CreateTestSupplier(t, db, "Hanson Quarry")
	other := testutil.CreateTestSupplier(t, db, "Boral Quarry")

	projectA := testutil.CreateTestProject(t, db, 100, "Site A")
	projectB := testutil.CreateTestProject(t, db, 200, "Site B")

	orderA := testutil.CreateTestOrder(t, db, projectA, testutil.ItemSpec{
		ProductID: product.ID, SupplierID: &supplier.ID, Quantity: "10",
		Slots: []testutil.SlotSpec{{Quantity: "10", Date: "2026-03-02"}},
	})
	orderB := testutil.CreateTestOrder(t, db, projectB, testutil.ItemSpec{
		ProductID: product.ID, SupplierID: &other.ID, Quantity: "5",
		Slots: []testutil.SlotSpec{{Quantity: "5", Date: "2026-03-03"}},
	})

	tests := []struct {
		name string
		ctx  context.Context
		want []uint
	}{
		{"admin sees everything", testutil.AdminContext(), []uint{orderA.ID, orderB.ID}},
		{"client sees own orders", testutil.ClientContext(100), []uint{orderA.ID}},
		{"supplier sees orders with its items", testutil.SupplierContext(9, other.ID), []uint{orderB.ID}},
		{"unknown client sees nothing", testutil.ClientContext(300), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, total, err := repo.List(tt.ctx, 1, 20, nil, repository.DefaultSortConfig())
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), total)
			var ids []uint
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	_, err := repo.GetByID(testutil.ClientContext(200), orderA.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_GetByIDPreloads(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)

	product := testutil.CreateTestProduct(t, db, "Road Base")
	project := testutil.CreateTestProject(t, db, 100, "Site A")
	order := testutil.CreateTestOrder(t, db, project, testutil.ItemSpec{
		ProductID: product.ID, Quantity: "20",
		Slots: []testutil.SlotSpec{
			{Quantity: "8", Date: "2026-03-05", Time: "09:00"},
			{Quantity: "12", Date: "2026-03-04", Time: "07:30"},
		},
	})

	got, err := repo.GetByID(testutil.AdminContext(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Project)
	assert.Equal(t, "Site A", got.Project.Name)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Product)
	assert.Equal(t, "Road Base", got.Items[0].Product.Name)
	require.Len(t, got.Items[0].Deliveries, 2)
	assert.Equal(t, "2026-03-04", got.Items[0].Deliveries[0].DeliveryDate.Format("2006-01-02"), "slots ordered by date")
	assert.True(t, dec("12").Equal(got.Items[0].Deliveries[0].Quantity))
}

func TestOrderRepository_ApplyEdit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)
	ctx := testutil.AdminContext()

	metal := testutil.CreateTestProduct(t, db, "20mm Blue Metal")
	sand := testutil.CreateTestProduct(t, db, "Washed Sand")
	project := testutil.CreateTestProject(t, db, 100, "Site A")
	order := testutil.CreateTestOrder(t, db, project,
		testutil.ItemSpec{ProductID: metal.ID, Quantity: "10", Slots: []testutil.SlotSpec{
			{Quantity: "6", Date: "2026-03-02", Time: "07:00"},
			{Quantity: "4", Date: "2026-03-03", Time: "07:00", Cost: "85"},
		}},
		testutil.ItemSpec{ProductID: sand.ID, Quantity: "3", Slots: []testutil.SlotSpec{
			{Quantity: "3", Date: "2026-03-02"},
		}},
	)
	keep, drop := order.Items[0], order.Items[1]
	slotA, slotB := keep.Deliveries[0], keep.Deliveries[1]

	payload := &domain.OrderEditPayload{
		Order: &domain.OrderFieldsUpdate{SiteInstructions: ptr("Gate code 1234")},
		ItemsUpdate: []domain.ItemUpdate{{
			OrderItemID: keep.ID,
			Quantity:    ptr(dec("12")),
			DeliveriesUpdate: []domain.DeliveryInput{{
				ID: &slotA.ID, Quantity: dec("8"), DeliveryDate: "2026-03-02", DeliveryTime: ptr("06:30"),
				TruckType: domain.TruckTypeSemiTipper,
			}},
			DeliveriesRemove: []uint{slotB.ID},
			DeliveriesAdd: []domain.DeliveryInput{{
				Quantity: dec("4"), DeliveryDate: "2026-03-04", TruckType: domain.TruckTypeTipper,
			}},
		}},
		ItemsRemove: []uint{drop.ID},
		ItemsAdd: []domain.ItemAdd{{
			ProductID: sand.ID, Quantity: dec("2"), CustomBlendMix: ptr("50/50"),
			Deliveries: []domain.DeliveryInput{{Quantity: dec("2"), DeliveryDate: "2026-03-06", TruckType: domain.TruckTypeTipper}},
		}},
	}
	require.NoError(t, repo.ApplyEdit(ctx, order.ID, payload))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gate code 1234", got.SiteInstructions)
	require.Len(t, got.Items, 2)

	updated := got.Items[0]
	assert.Equal(t, keep.ID, updated.ID)
	assert.True(t, dec("12").Equal(updated.Quantity))
	require.Len(t, updated.Deliveries, 2)
	assert.Equal(t, slotA.ID, updated.Deliveries[0].ID)
	assert.True(t, dec("8").Equal(updated.Deliveries[0].Quantity))
	assert.Equal(t, "06:30", *updated.Deliveries[0].DeliveryTime)
	assert.Equal(t, domain.TruckTypeSemiTipper, updated.Deliveries[0].TruckType)
	assert.Equal(t, "2026-03-04", updated.Deliveries[1].DeliveryDate.Format("2006-01-02"))

	added := got.Items[1]
	assert.Equal(t, sand.ID, added.ProductID)
	require.NotNil(t, added.CustomBlendMix)
	assert.Equal(t, "50/50", *added.CustomBlendMix)
	require.Len(t, added.Deliveries, 1)

	var orphans int64
	require.NoError(t, db.Model(&domain.DeliverySlot{}).Where("order_item_id = ?", drop.ID).Count(&orphans).Error)
	assert.Zero(t, orphans, "slots of removed items are deleted")
}

func TestOrderRepository_ApplyEditRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)
	ctx := testutil.AdminContext()

	product := testutil.CreateTestProduct(t, db, "Road Base")
	project := testutil.CreateTestProject(t, db, 100, "Site A")
	order := testutil.CreateTestOrder(t, db, project, testutil.ItemSpec{
		ProductID: product.ID, Quantity: "5",
		Slots: []testutil.SlotSpec{{Quantity: "5", Date: "2026-03-02"}},
	})

	err := repo.ApplyEdit(ctx, order.ID, &domain.OrderEditPayload{
		Order: &domain.OrderFieldsUpdate{ContactPersonName: ptr("Changed")},
		ItemsUpdate: []domain.ItemUpdate{{
			OrderItemID: order.Items[0].ID,
			DeliveriesAdd: []domain.DeliveryInput{{
				Quantity: dec("1"), DeliveryDate: "not-a-date", TruckType: domain.TruckTypeTipper,
			}},
		}},
	})
	require.Error(t, err)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ContactPersonName, "order fields roll back with the failed slot")
}

func TestOrderRepository_ConfirmSlotAndTotals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)
	ctx := testutil.AdminContext()

	product := testutil.CreateTestProduct(t, db, "Road Base")
	project := testutil.CreateTestProject(t, db, 100, "Site A")
	order := testutil.CreateTestOrder(t, db, project, testutil.ItemSpec{
		ProductID: product.ID, Quantity: "10",
		Slots: []testutil.SlotSpec{
			{Quantity: "5", Date: "2026-03-02"},
			{Quantity: "5", Date: "2026-03-03"},
		},
	})
	item := order.Items[0]

	require.NoError(t, repo.ConfirmSlot(ctx, &item.Deliveries[0]))
	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SupplierConfirms)
	assert.False(t, *got.SupplierConfirms)
	assert.True(t, got.HasConfirmedDelivery())

	require.NoError(t, repo.ConfirmSlot(ctx, &item.Deliveries[1]))
	got, err = repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, *got.SupplierConfirms)

	totals := repository.OrderTotals{
		CustomerItemCost:     dec("500"),
		CustomerDeliveryCost: dec("100"),
		GSTTax:               dec("60"),
		Discount:             decimal.Zero,
		OtherCharges:         decimal.Zero,
		TotalPrice:           dec("660"),
	}
	require.NoError(t, repo.SaveTotals(ctx, order.ID, totals, map[uint]decimal.Decimal{item.ID: dec("100")}))

	saved, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, dec("660").Equal(saved.TotalPrice))
	assert.True(t, dec("100").Equal(saved.Items[0].DeliveryCost))

	assert.ErrorIs(t, repo.UpdateStatus(ctx, 9999, domain.OrderStatusScheduled), gorm.ErrRecordNotFound)
}

func TestOrderRepository_ListFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)
	ctx := testutil.AdminContext()

	product := testutil.CreateTestProduct(t, db, "Road Base")
	project := testutil.CreateTestProject(t, db, 100, "Site A")
	spec := testutil.ItemSpec{ProductID: product.ID, Quantity: "1", Slots: []testutil.SlotSpec{{Quantity: "1", Date: "2026-03-02"}}}
	live := testutil.CreateTestOrder(t, db, project, spec)
	archived := testutil.CreateTestOrder(t, db, project, spec)
	require.NoError(t, repo.SetArchived(ctx, archived.ID, true))

	orders, total, err := repo.List(ctx, 1, 20, &domain.OrderFilters{}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, live.ID, orders[0].ID)

	_, total, err = repo.List(ctx, 1, 20, &domain.OrderFilters{IncludeArchived: true}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	status := domain.OrderStatusDraft
	_, total, err = repo.List(ctx, 1, 20, &domain.OrderFilters{Status: &status}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Zero(t, total)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{live.ID, archived.ID}, ids)
}

func TestOrderRepository_ApplyEditSyncsItemConfirmation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOrderRepository(db)
	ctx := testutil.AdminContext()

	product := testutil.CreateTestProduct(t, db, "Road Base")
	supplier := testutil.CreateTestSupplier(t, db, "Hanson")
	project := testutil.CreateTestProject(t, db, 100, "Site A")
	order := testutil.CreateTestOrder(t, db, project,
		testutil.ItemSpec{ProductID: product.ID, SupplierID: &supplier.ID, Quantity: "10", Slots: []testutil.SlotSpec{
			{Quantity: "5", Date: "2026-03-02"},
			{Quantity: "5", Date: "2026-03-03"},
		}},
		testutil.ItemSpec{ProductID: product.ID, Quantity: "4", Slots: []testutil.SlotSpec{
			{Quantity: "4", Date: "2026-03-02"},
		}},
	)
	item, unassigned := order.Items[0], order.Items[1]
	for i := range item.Deliveries {
		require.NoError(t, repo.ConfirmSlot(ctx, &item.Deliveries[i]))
	}

	confirmation := func(id uint) *bool {
		got, err := repo.GetItem(ctx, id)
		require.NoError(t, err)
		return got.SupplierConfirms
	}
	require.NotNil(t, confirmation(item.ID))
	assert.True(t, *confirmation(item.ID))

	require.NoError(t, repo.ApplyEdit(ctx, order.ID, &domain.OrderEditPayload{
		ItemsUpdate: []domain.ItemUpdate{
			{
				OrderItemID: item.ID,
				Quantity:    ptr(dec("15")),
				DeliveriesAdd: []domain.DeliveryInput{{
					Quantity: dec("5"), DeliveryDate: "2026-03-04", TruckType: domain.TruckTypeTipper,
				}},
			},
			{OrderItemID: unassigned.ID, CustomBlendMix: ptr("70/30")},
		},
	}))
	assert.False(t, *confirmation(item.ID), "a new open delivery makes the item pending again")
	assert.Nil(t, confirmation(unassigned.ID), "items without a supplier stay unassigned")

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got.Deliveries, 3)
	openSlot := got.Deliveries[2]
	require.False(t, openSlot.SupplierConfirms)

	require.NoError(t, repo.ApplyEdit(ctx, order.ID, &domain.OrderEditPayload{
		ItemsUpdate: []domain.ItemUpdate{{
			OrderItemID:      item.ID,
			Quantity:         ptr(dec("10")),
			DeliveriesRemove: []uint{openSlot.ID},
		}},
	}))
	assert.True(t, *confirmation(item.ID), "removing the last open delivery confirms the item")
}
