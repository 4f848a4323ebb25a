package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
)

// ActivityRepository handles database operations for order activities.
//
// Index recommendations for optimal query performance:
// - CREATE INDEX idx_order_activities_order_id ON order_activities(order_id, created_at DESC);
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.OrderActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// ListByOrder returns an order's timeline, newest first
func (r *ActivityRepository) ListByOrder(ctx context.Context, orderID uint, page, pageSize int) ([]domain.OrderActivity, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var activities []domain.OrderActivity
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.OrderActivity{}).Where("order_id = ?", orderID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting activities: %w", err)
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC, id DESC").Find(&activities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("fetching activities: %w", err)
	}

	return activities, total, nil
}

// CountSince counts activities with a given title recorded after since.
// The pricing audit uses it to report how many orders drifted per run.
func (r *ActivityRepository) CountSince(ctx context.Context, title string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.OrderActivity{}).
		Where("title = ? AND created_at >= ?", title, since).
		Count(&count).Error
	return count, err
}
