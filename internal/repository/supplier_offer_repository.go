package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bulkmat/order-api/internal/domain"
)

// SupplierOfferRepository stores supplier unit costs per product.
//
// Index recommendations:
// - CREATE UNIQUE INDEX idx_supplier_product ON supplier_offers(supplier_id, product_id);
// - CREATE INDEX idx_supplier_offers_product_cost ON supplier_offers(product_id, unit_cost);
type SupplierOfferRepository struct {
	db *gorm.DB
}

func NewSupplierOfferRepository(db *gorm.DB) *SupplierOfferRepository {
	return &SupplierOfferRepository{db: db}
}

// Upsert inserts the offer or replaces the unit cost of the existing
// supplier/product pair
func (r *SupplierOfferRepository) Upsert(ctx context.Context, offer *domain.SupplierOffer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supplier_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"unit_cost", "synced_at", "updated_at"}),
	}).Create(offer).Error
}

// CheapestForProduct returns the lowest cost offer of an active supplier, or
// nil when no supplier offers the product
func (r *SupplierOfferRepository) CheapestForProduct(ctx context.Context, productID uint) (*domain.SupplierOffer, error) {
	var offer domain.SupplierOffer
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Joins("JOIN suppliers ON suppliers.id = supplier_offers.supplier_id").
		Where("supplier_offers.product_id = ? AND suppliers.is_active = ?", productID, true).
		Order("supplier_offers.unit_cost ASC, supplier_offers.id ASC").
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// Get returns the offer of one supplier for one product, or nil
func (r *SupplierOfferRepository) Get(ctx context.Context, supplierID, productID uint) (*domain.SupplierOffer, error) {
	var offer domain.SupplierOffer
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND product_id = ?", supplierID, productID).
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// ListByProduct returns all offers for a product, cheapest first
func (r *SupplierOfferRepository) ListByProduct(ctx context.Context, productID uint) ([]domain.SupplierOffer, error) {
	var offers []domain.SupplierOffer
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("product_id = ?", productID).
		Order("unit_cost ASC, id ASC").
		Find(&offers).Error
	return offers, err
}
