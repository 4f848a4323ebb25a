package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
)

// ProductRepository reads the materials catalog
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActive returns orderable products, optionally within one category
func (r *ProductRepository) ListActive(ctx context.Context, category string) ([]domain.Product, error) {
	var products []domain.Product
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("category ASC, name ASC").Find(&products).Error
	return products, err
}

// ActiveIDs returns the subset of ids that belong to active products
func (r *ProductRepository) ActiveIDs(ctx context.Context, ids []uint) (map[uint]bool, error) {
	found := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []uint
	err := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}
