// Package testutil provides in-memory databases and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/database"
	"github.com/bulkmat/order-api/internal/domain"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// Each call gets its own database so tests can run in parallel.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "Failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db), "Failed to migrate test database")
	return db
}

// AdminContext returns a context carrying a platform admin
func AdminContext() context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      1,
		DisplayName: "Test Admin",
		Role:        domain.RoleAdmin,
	})
}

// ClientContext returns a context carrying the client with the given id
func ClientContext(clientID uint) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      clientID,
		DisplayName: fmt.Sprintf("Client %d", clientID),
		Role:        domain.RoleClient,
	})
}

// SupplierContext returns a context carrying a user of the given supplier
func SupplierContext(userID, supplierID uint) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: fmt.Sprintf("Supplier user %d", userID),
		Role:        domain.RoleSupplier,
		SupplierID:  &supplierID,
	})
}

// CreateTestProject creates a project owned by clientID
func CreateTestProject(t *testing.T, db *gorm.DB, clientID uint, name string) *domain.Project {
	t.Helper()
	project := &domain.Project{
		ClientID:          clientID,
		Name:              name,
		DeliveryAddress:   "12 Quarry Rd, Penrith NSW",
		SiteContactName:   "Site Lead",
		SiteContactNumber: "0400 000 000",
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateTestProduct creates an active catalog product
func CreateTestProduct(t *testing.T, db *gorm.DB, name string) *domain.Product {
	t.Helper()
	product := &domain.Product{Name: name, Category: "Aggregates", Unit: "t", IsActive: true}
	require.NoError(t, db.Create(product).Error)
	return product
}

// CreateTestSupplier creates an active supplier with a unique ERP reference
func CreateTestSupplier(t *testing.T, db *gorm.DB, name string) *domain.Supplier {
	t.Helper()
	supplier := &domain.Supplier{
		Name:         name,
		ERPReference: "V-" + uuid.NewString()[:8],
		IsActive:     true,
	}
	require.NoError(t, db.Create(supplier).Error)
	return supplier
}

// SlotSpec describes one delivery slot of a fixture order item
type SlotSpec struct {
	Quantity  string
	Date      string
	Time      string
	Confirmed bool
	Cost      string
}

// ItemSpec describes one item of a fixture order
type ItemSpec struct {
	ProductID  uint
	SupplierID *uint
	Quantity   string
	UnitCost   string
	Slots      []SlotSpec
}

// CreateTestOrder creates a confirmed order for the project with the given items
func CreateTestOrder(t *testing.T, db *gorm.DB, project *domain.Project, items ...ItemSpec) *domain.Order {
	t.Helper()
	order := &domain.Order{
		PONumber:        "PO-" + uuid.NewString()[:8],
		ProjectID:       project.ID,
		ClientID:        project.ClientID,
		OrderStatus:     domain.OrderStatusConfirmed,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		DeliveryAddress: project.DeliveryAddress,
	}
	for _, spec := range items {
		item := domain.OrderItem{
			ProductID:    spec.ProductID,
			SupplierID:   spec.SupplierID,
			Quantity:     decimal.RequireFromString(spec.Quantity),
			DeliveryType: domain.DeliveryTypeSupplier,
		}
		if spec.UnitCost != "" {
			item.SupplierUnitCost = decimal.NewNullDecimal(decimal.RequireFromString(spec.UnitCost))
		}
		for _, s := range spec.Slots {
			date, err := time.Parse("2006-01-02", s.Date)
			require.NoError(t, err)
			slot := domain.DeliverySlot{
				Quantity:         decimal.RequireFromString(s.Quantity),
				DeliveryDate:     date,
				TruckType:        domain.TruckTypeTruckAndDog,
				SupplierConfirms: s.Confirmed,
				DeliveryCost:     decimal.Zero,
			}
			if s.Time != "" {
				tm := s.Time
				slot.DeliveryTime = &tm
			}
			if s.Cost != "" {
				slot.DeliveryCost = decimal.RequireFromString(s.Cost)
			}
			item.Deliveries = append(item.Deliveries, slot)
		}
		order.Items = append(order.Items, item)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}
