package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, doc *domain.InvoiceDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uint) (*domain.InvoiceDocument, error) {
	var doc domain.InvoiceDocument
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetLatestByOrder returns the most recently uploaded invoice of an order
func (r *InvoiceRepository) GetLatestByOrder(ctx context.Context, orderID uint) (*domain.InvoiceDocument, error) {
	var doc domain.InvoiceDocument
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByOrder returns all invoices attached to an order
func (r *InvoiceRepository) ListByOrder(ctx context.Context, orderID uint) ([]domain.InvoiceDocument, error) {
	var docs []domain.InvoiceDocument
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&docs).Error
	return docs, err
}

func (r *InvoiceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&domain.InvoiceDocument{}, "id = ?", id).Error
}
