package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/erp"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
	"github.com/bulkmat/order-api/internal/testutil"
)

type stubPriceSource struct {
	entries []erp.PriceListEntry
	err     error
}

func (s *stubPriceSource) SupplierPriceList(context.Context) ([]erp.PriceListEntry, error) {
	return s.entries, s.err
}

func newPriceSyncService(db *gorm.DB, source service.PriceSource) *service.PriceSyncService {
	return service.NewPriceSyncService(
		source,
		repository.NewSupplierRepository(db),
		repository.NewSupplierOfferRepository(db),
		repository.NewProductRepository(db),
		zap.NewNop(),
	)
}

func TestPriceSyncService_Sync(t *testing.T) {
	db := testutil.SetupTestDB(t)
	roadBase := testutil.CreateTestProduct(t, db, "Road Base")
	sand := testutil.CreateTestProduct(t, db, "Washed Sand")
	retired := testutil.CreateTestProduct(t, db, "Retired Blend")
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	updated := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	source := &stubPriceSource{entries: []erp.PriceListEntry{
		{SupplierRef: "V-100", SupplierName: "Hanson", ProductID: roadBase.ID, UnitCost: dec("42.5"), UpdatedAt: updated},
		{SupplierRef: "V-100", SupplierName: "Hanson", ProductID: sand.ID, UnitCost: dec("38")},
		{SupplierRef: "V-200", SupplierName: "", ProductID: roadBase.ID, UnitCost: dec("40")},
		{SupplierRef: "V-300", SupplierName: "Boral", ProductID: retired.ID, UnitCost: dec("10")},
		{SupplierRef: "V-300", SupplierName: "Boral", ProductID: 9999, UnitCost: dec("10")},
		{SupplierRef: "V-400", SupplierName: "Holcim", ProductID: sand.ID, UnitCost: dec("-1")},
		{SupplierRef: " ", SupplierName: "Nobody", ProductID: sand.ID, UnitCost: dec("5")},
	}}
	svc := newPriceSyncService(db, source)
	require.True(t, svc.IsEnabled())

	result, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Suppliers)
	assert.Equal(t, 3, result.Offers)
	assert.Equal(t, 4, result.Skipped)

	supplier, err := repository.NewSupplierRepository(db).GetByERPReference(context.Background(), "V-200")
	require.NoError(t, err)
	require.NotNil(t, supplier)
	assert.Equal(t, "V-200", supplier.Name, "unnamed suppliers are named after their reference")

	offers, err := repository.NewSupplierOfferRepository(db).ListByProduct(context.Background(), roadBase.ID)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.True(t, dec("40").Equal(offers[0].UnitCost), "cheapest first")
	require.NotNil(t, offers[1].SyncedAt)
	assert.True(t, updated.Equal(*offers[1].SyncedAt))

	t.Run("a second run updates in place", func(t *testing.T) {
		source.entries = source.entries[:1]
		source.entries[0].UnitCost = dec("39")

		result, err := svc.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Offers)

		offers, err := repository.NewSupplierOfferRepository(db).ListByProduct(context.Background(), roadBase.ID)
		require.NoError(t, err)
		require.Len(t, offers, 2)
		assert.True(t, dec("39").Equal(offers[0].UnitCost))
	})

	t.Run("source failure", func(t *testing.T) {
		source.err = errors.New("warehouse offline")
		_, err := svc.Sync(context.Background())
		assert.ErrorContains(t, err, "warehouse offline")
	})
}

func TestPriceSyncService_Disabled(t *testing.T) {
	svc := newPriceSyncService(testutil.SetupTestDB(t), nil)
	assert.False(t, svc.IsEnabled())
	_, err := svc.Sync(context.Background())
	assert.ErrorIs(t, err, service.ErrPriceSyncUnavailable)
}
