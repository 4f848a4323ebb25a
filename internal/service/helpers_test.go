package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		AllocationEpsilon: "0.01",
		GSTRate:           "0.1",
		MoneyPlaces:       2,
		MaxLoads:          50,
	}
}

func newOrderService(t *testing.T, db *gorm.DB, locker lock.Locker) *service.OrderService {
	t.Helper()
	svc, err := service.NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewProjectRepository(db),
		repository.NewProductRepository(db),
		repository.NewSupplierRepository(db),
		repository.NewSupplierOfferRepository(db),
		repository.NewActivityRepository(db),
		testEngineConfig(),
		locker,
		time.Second,
		zap.NewNop(),
	)
	require.NoError(t, err)
	return svc
}

func createOffer(t *testing.T, db *gorm.DB, supplierID, productID uint, cost string) *domain.SupplierOffer {
	t.Helper()
	now := time.Now().UTC()
	offer := &domain.SupplierOffer{SupplierID: supplierID, ProductID: productID, UnitCost: dec(cost), SyncedAt: &now}
	require.NoError(t, db.Create(offer).Error)
	return offer
}

func pricingView(t *testing.T, dto *domain.OrderDTO) fulfillment.PricingView {
	t.Helper()
	view, ok := dto.Pricing.(fulfillment.PricingView)
	require.True(t, ok, "pricing is %T", dto.Pricing)
	return view
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *fulfillment.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.FieldErrors()
}
