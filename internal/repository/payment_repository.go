package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
)

// PaymentRepository stores payment attempts
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// ListByOrder returns all attempts against an order, oldest first
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID uint) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

// SumSucceeded totals the settled amount of an order
func (r *PaymentRepository) SumSucceeded(ctx context.Context, orderID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ? AND result = ?", orderID, domain.PaymentResultSucceeded).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}
