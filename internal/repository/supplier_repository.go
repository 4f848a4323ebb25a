package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bulkmat/order-api/internal/domain"
)

// supplierSortableFields maps API field names to database column names for suppliers
// Only fields in this map can be used for sorting (whitelist approach)
var supplierSortableFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// SupplierRepository handles supplier data access operations
type SupplierRepository struct {
	db *gorm.DB
}

// NewSupplierRepository creates a new supplier repository instance
func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create creates a new supplier in the database
func (r *SupplierRepository) Create(ctx context.Context, supplier *domain.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// GetByID retrieves a supplier by its ID
func (r *SupplierRepository) GetByID(ctx context.Context, id uint) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// GetByERPReference finds a supplier by its ERP vendor code. Returns nil, nil
// when no supplier carries the reference.
func (r *SupplierRepository) GetByERPReference(ctx context.Context, ref string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := r.db.WithContext(ctx).Where("erp_reference = ?", ref).First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &supplier, nil
}

// UpsertByERPReference creates the supplier or refreshes its name
func (r *SupplierRepository) UpsertByERPReference(ctx context.Context, supplier *domain.Supplier) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "erp_reference"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(supplier).Error
}

// List returns a paginated list of active suppliers
// Note: Suppliers are global entities, no actor scope applied
func (r *SupplierRepository) List(ctx context.Context, page, pageSize int, search string, sort SortConfig) ([]domain.Supplier, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var suppliers []domain.Supplier
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Supplier{}).Where("is_active = ?", true)
	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(erp_reference) LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, supplierSortableFields, "name")

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order(orderClause).Find(&suppliers).Error

	return suppliers, total, err
}
