package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/mapper"
	"github.com/bulkmat/order-api/internal/repository"
)

// ProductService serves the materials catalog
type ProductService struct {
	productRepo *repository.ProductRepository
	logger      *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(productRepo *repository.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{productRepo: productRepo, logger: logger}
}

// List returns active products, optionally narrowed to one category
func (s *ProductService) List(ctx context.Context, category string) ([]domain.ProductDTO, error) {
	products, err := s.productRepo.ListActive(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	dtos := make([]domain.ProductDTO, len(products))
	for i := range products {
		dtos[i] = mapper.ToProductDTO(&products[i])
	}
	return dtos, nil
}

// Create adds a product to the catalog
func (s *ProductService) Create(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductDTO, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = "t"
	}
	product := &domain.Product{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Unit:     unit,
		IsActive: true,
	}
	if product.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.logger.Info("product created", zap.Uint("product_id", product.ID), zap.String("name", product.Name))
	dto := mapper.ToProductDTO(product)
	return &dto, nil
}
