package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/mapper"
	"github.com/bulkmat/order-api/internal/repository"
)

// SupplierService handles business logic for suppliers and their standing
// offers. Supplier data is platform staff only.
type SupplierService struct {
	supplierRepo *repository.SupplierRepository
	offerRepo    *repository.SupplierOfferRepository
	logger       *zap.Logger
}

// NewSupplierService creates a new supplier service instance
func NewSupplierService(
	supplierRepo *repository.SupplierRepository,
	offerRepo *repository.SupplierOfferRepository,
	logger *zap.Logger,
) *SupplierService {
	return &SupplierService{
		supplierRepo: supplierRepo,
		offerRepo:    offerRepo,
		logger:       logger,
	}
}

// Create registers a supplier
func (s *SupplierService) Create(ctx context.Context, req *domain.CreateSupplierRequest) (*domain.SupplierDTO, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(req.ERPReference)
	if ref != "" {
		existing, err := s.supplierRepo.GetByERPReference(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to check erp reference: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: supplier with erp reference %s already exists", ErrConflict, ref)
		}
	} else {
		// erp_reference is unique; manual suppliers get a local one
		ref = "LOCAL-" + strings.ToUpper(uuid.NewString()[:8])
	}

	supplier := &domain.Supplier{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		ERPReference: ref,
		IsActive:     true,
	}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}

	s.logger.Info("supplier created", zap.Uint("supplier_id", supplier.ID), zap.String("erp_reference", ref))

	dto := mapper.ToSupplierDTO(supplier)
	return &dto, nil
}

// GetByID retrieves a supplier by ID
func (s *SupplierService) GetByID(ctx context.Context, id uint) (*domain.SupplierDTO, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	supplier, err := s.supplierRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	dto := mapper.ToSupplierDTO(supplier)
	return &dto, nil
}

// List returns a paginated list of active suppliers
func (s *SupplierService) List(ctx context.Context, page, pageSize int, search string, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
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

	suppliers, total, err := s.supplierRepo.List(ctx, page, pageSize, search, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}

	dtos := make([]domain.SupplierDTO, len(suppliers))
	for i := range suppliers {
		dtos[i] = mapper.ToSupplierDTO(&suppliers[i])
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

// ListOffers returns every supplier's standing offer for a product, cheapest first
func (s *SupplierService) ListOffers(ctx context.Context, productID uint) ([]domain.SupplierOfferDTO, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	offers, err := s.offerRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	dtos := make([]domain.SupplierOfferDTO, len(offers))
	for i := range offers {
		dtos[i] = mapper.ToSupplierOfferDTO(&offers[i])
	}
	return dtos, nil
}

func requireAdmin(ctx context.Context) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if !user.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}
