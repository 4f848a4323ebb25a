package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
	"github.com/bulkmat/order-api/internal/testutil"
)

func TestOrderService_CreateExpandsLoadsAndPrices(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newOrderService(t, db, lock.NewMemoryLocker())

	project := testutil.CreateTestProject(t, db, 100, "Penrith Slab")
	product := testutil.CreateTestProduct(t, db, "20mm Blue Metal")
	cheap := testutil.CreateTestSupplier(t, db, "Hanson")
	dear := testutil.CreateTestSupplier(t, db, "Boral")
	createOffer(t, db, cheap.ID, product.ID, "40.00")
	createOffer(t, db, dear.ID, product.ID, "44.00")

	dto, err := svc.Create(testutil.ClientContext(100), &domain.CreateOrderRequest{
		ProjectID: project.ID,
		Items: []domain.ItemAdd{{
			ProductID: product.ID,
			Quantity:  dec("30"),
			Deliveries: []domain.DeliveryInput{{
				Quantity:     dec("30"),
				DeliveryDate: "2026-03-02",
				DeliveryTime: ptr("07:00"),
				TruckType:    domain.TruckTypeTruckAndDog,
				LoadSize:     ptr(dec("10")),
				TimeInterval: ptr(30),
			}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusDraft, dto.OrderStatus)
	assert.Contains(t, dto.PONumber, "PO-")
	assert.Equal(t, project.DeliveryAddress, dto.DeliveryAddress, "address defaults from the project")
	assert.Equal(t, project.SiteContactName, dto.ContactPersonName)

	require.Len(t, dto.Items, 1)
	item := dto.Items[0]
	require.NotNil(t, item.SupplierID)
	assert.Equal(t, cheap.ID, *item.SupplierID, "cheapest offer wins")
	assert.True(t, item.IsAvailable)
	assert.Nil(t, item.SupplierUnitCost, "clients never see supplier cost")

	require.Len(t, item.Deliveries, 3)
	var times []string
	for _, d := range item.Deliveries {
		assert.True(t, dec("10").Equal(d.Quantity))
		require.NotNil(t, d.DeliveryTime)
		times = append(times, *d.DeliveryTime)
		assert.Nil(t, d.DeliveryCost)
	}
	assert.ElementsMatch(t, []string{"07:00", "07:30", "08:00"}, times)

	view := pricingView(t, dto)
	assert.True(t, dec("1200").Equal(view.CustomerItemCost), view.CustomerItemCost.String())
	assert.True(t, dec("120").Equal(view.GSTTax), view.GSTTax.String())
	assert.True(t, dec("1320").Equal(view.TotalPrice), view.TotalPrice.String())
	assert.Nil(t, view.Margin)

	stored, err := repository.NewOrderRepository(db).GetByID(testutil.AdminContext(), dto.ID)
	require.NoError(t, err)
	assert.True(t, dec("1320").Equal(stored.TotalPrice), "totals are persisted")
}

func TestOrderService_CreateRejects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newOrderService(t, db, lock.NewMemoryLocker())

	project := testutil.CreateTestProject(t, db, 100, "Penrith Slab")
	product := testutil.CreateTestProduct(t, db, "Road Base")

	slot := func(q string) []domain.DeliveryInput {
		return []domain.DeliveryInput{{Quantity: dec(q), DeliveryDate: "2026-03-02", TruckType: domain.TruckTypeTipper}}
	}

	tests := []struct {
		name      string
		req       *domain.CreateOrderRequest
		wantErr   error
		wantField string
	}{
		{
			name:      "slots do not add up",
			req:       &domain.CreateOrderRequest{ProjectID: project.ID, Items: []domain.ItemAdd{{ProductID: product.ID, Quantity: dec("30"), Deliveries: slot("20")}}},
			wantField: "items[0].deliveries",
		},
		{
			name:      "unknown product",
			req:       &domain.CreateOrderRequest{ProjectID: project.ID, Items: []domain.ItemAdd{{ProductID: 9999, Quantity: dec("5"), Deliveries: slot("5")}}},
			wantField: "items[0].product_id",
		},
		{
			name:      "missing truck type",
			req:       &domain.CreateOrderRequest{ProjectID: project.ID, Items: []domain.ItemAdd{{ProductID: product.ID, Quantity: dec("5"), Deliveries: []domain.DeliveryInput{{Quantity: dec("5"), DeliveryDate: "2026-03-02"}}}}},
			wantField: "items[0].deliveries[0].truck_type",
		},
		{
			name:    "invalid initial status",
			req:     &domain.CreateOrderRequest{ProjectID: project.ID, Status: domain.OrderStatusDelivered, Items: []domain.ItemAdd{{ProductID: product.ID, Quantity: dec("5"), Deliveries: slot("5")}}},
			wantErr: service.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(testutil.ClientContext(100), tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.Contains(t, fieldErrors(t, err), tt.wantField)
		})
	}

	t.Run("other client's project", func(t *testing.T) {
		_, err := svc.Create(testutil.ClientContext(200), &domain.CreateOrderRequest{
			ProjectID: project.ID,
			Items:     []domain.ItemAdd{{ProductID: product.ID, Quantity: dec("5"), Deliveries: slot("5")}},
		})
		assert.ErrorIs(t, err, service.ErrProjectNotFound)
	})

	t.Run("suppliers cannot order", func(t *testing.T) {
		_, err := svc.Create(testutil.SupplierContext(5, 1), &domain.CreateOrderRequest{ProjectID: project.ID})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})
}

func TestOrderService_GetScopesAndProjects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newOrderService(t, db, lock.NewMemoryLocker())

	project := testutil.CreateTestProject(t, db, 100, "Penrith Slab")
	product := testutil.CreateTestProduct(t, db, "Road Base")
	supplier := testutil.CreateTestSupplier(t, db, "Hanson")
	order := testutil.CreateTestOrder(t, db, project, testutil.ItemSpec{
		ProductID: product.ID, SupplierID: &supplier.ID, Quantity: "10", UnitCost: "50",
		Slots: []testutil.SlotSpec{{Quantity: "10", Date: "2026-03-02", Cost: "80"}},
	})

	admin, err := svc.Get(testutil.AdminContext(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, admin.Items[0].SupplierUnitCost)
	require.NotNil(t, admin.Items[0].Deliveries[0].DeliveryCost)
	adminView := pricingView(t, admin)
	require.NotNil(t, adminView.Margin)

	client, err := svc.Get(testutil.ClientContext(100), order.ID)
	require.NoError(t, err)
	assert.Nil(t, client.Items[0].SupplierUnitCost)
	assert.Nil(t, client.Items[0].Deliveries[0].DeliveryCost)
	clientView := pricingView(t, client)
	assert.Nil(t, clientView.Margin)
	// 500 items + 80 delivery + 58 GST
	assert.True(t, dec("638").Equal(clientView.TotalPrice), clientView.TotalPrice.String())

	_, err = svc.Get(testutil.ClientContext(200), order.ID)
	assert.ErrorIs(t, err, service.ErrOrderNotFound)

	supplierDTO, err := svc.Get(testutil.SupplierContext(7, supplier.ID), order.ID)
	require.NoError(t, err)
	assert.Nil(t, supplierDTO.Items[0].SupplierUnitCost)

	pricing, err := svc.Pricing(testutil.ClientContext(100), order.ID)
	require.NoError(t, err)
	assert.Nil(t, pricing.SupplierCost)
}

func TestOrderService_RecalculateAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newOrderService(t, db, lock.NewMemoryLocker())

	project := testutil.CreateTestProject(t, db, 100, "Penrith Slab")
	product := testutil.CreateTestProduct(t, db, "Road Base")
	supplier := testutil.CreateTestSupplier(t, db, "Hanson")
	drifted := testutil.CreateTestOrder(t, db, project, testutil.ItemSpec{
		ProductID: product.ID, SupplierID: &supplier.ID, Quantity: "10", UnitCost: "50",
		Slots: []testutil.SlotSpec{{Quantity: "10", Date: "2026-03-02"}},
	})
	testutil.CreateTestOrder(t, db, project, testutil.ItemSpec{
		ProductID: product.ID, Quantity: "4",
		Slots: []testutil.SlotSpec{{Quantity: "4", Date: "2026-03-02"}},
	})

	updated, failed, err := svc.RecalculateAll(testutil.AdminContext())
	require.NoError(t, err)
	assert.Equal(t, 1, updated, "an unpriced order already has zero totals")
	assert.Zero(t, failed)

	stored, err := repository.NewOrderRepository(db).GetByID(testutil.AdminContext(), drifted.ID)
	require.NoError(t, err)
	assert.True(t, dec("550").Equal(stored.TotalPrice), stored.TotalPrice.String())

	updated, _, err = svc.RecalculateAll(testutil.AdminContext())
	require.NoError(t, err)
	assert.Zero(t, updated, "a second pass finds nothing to fix")
}

func TestOrderService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newOrderService(t, db, lock.NewMemoryLocker())

	mine := testutil.CreateTestProject(t, db, 100, "Mine")
	theirs := testutil.CreateTestProject(t, db, 200, "Theirs")
	product := testutil.CreateTestProduct(t, db, "Road Base")
	spec := testutil.ItemSpec{ProductID: product.ID, Quantity: "4", Slots: []testutil.SlotSpec{{Quantity: "4", Date: "2026-03-02"}}}
	testutil.CreateTestOrder(t, db, mine, spec)
	testutil.CreateTestOrder(t, db, mine, spec)
	testutil.CreateTestOrder(t, db, theirs, spec)

	page, err := svc.List(testutil.ClientContext(100), 1, 1, &domain.OrderFilters{}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 1)

	page, err = svc.List(testutil.AdminContext(), 0, 0, nil, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 20, page.PageSize)
}
