package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/mapper"
	"github.com/bulkmat/order-api/internal/repository"
)

// ActivityService serves the order timeline
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	orderRepo    *repository.OrderRepository
	logger       *zap.Logger
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(
	activityRepo *repository.ActivityRepository,
	orderRepo *repository.OrderRepository,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		orderRepo:    orderRepo,
		logger:       logger,
	}
}

// ListByOrder returns a page of an order's timeline, newest first. The order
// must be visible to the caller.
func (s *ActivityService) ListByOrder(ctx context.Context, orderID uint, page, pageSize int) (*domain.PaginatedResponse, error) {
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}

	activities, total, err := s.activityRepo.ListByOrder(ctx, orderID, page, pageSize)
	if err != nil {
		s.logger.Error("failed to list activities", zap.Uint("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	dtos := make([]domain.OrderActivityDTO, len(activities))
	for i := range activities {
		dtos[i] = mapper.ToActivityDTO(&activities[i])
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
