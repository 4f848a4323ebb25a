package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/erp"
	"github.com/bulkmat/order-api/internal/repository"
)

// PriceSource yields the current supplier price lists
type PriceSource interface {
	SupplierPriceList(ctx context.Context) ([]erp.PriceListEntry, error)
}

// PriceSyncService imports supplier unit costs from the ERP warehouse into
// standing supplier offers
type PriceSyncService struct {
	source       PriceSource
	supplierRepo *repository.SupplierRepository
	offerRepo    *repository.SupplierOfferRepository
	productRepo  *repository.ProductRepository
	logger       *zap.Logger
}

// NewPriceSyncService creates a new PriceSyncService. A nil source disables syncing.
func NewPriceSyncService(
	source PriceSource,
	supplierRepo *repository.SupplierRepository,
	offerRepo *repository.SupplierOfferRepository,
	productRepo *repository.ProductRepository,
	logger *zap.Logger,
) *PriceSyncService {
	return &PriceSyncService{
		source:       source,
		supplierRepo: supplierRepo,
		offerRepo:    offerRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

// IsEnabled reports whether a price source is configured
func (s *PriceSyncService) IsEnabled() bool {
	return s.source != nil
}

// Sync pulls the price list and upserts suppliers and offers. Rows for
// unknown or inactive products, or with a negative cost, are skipped.
func (s *PriceSyncService) Sync(ctx context.Context) (*domain.PriceSyncResultDTO, error) {
	if s.source == nil {
		return nil, ErrPriceSyncUnavailable
	}

	entries, err := s.source.SupplierPriceList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read price list: %w", err)
	}

	productIDs := make([]uint, 0, len(entries))
	for _, e := range entries {
		productIDs = append(productIDs, e.ProductID)
	}
	active, err := s.productRepo.ActiveIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check products: %w", err)
	}

	result := &domain.PriceSyncResultDTO{}
	suppliers := make(map[string]uint)
	now := time.Now().UTC()

	for _, e := range entries {
		ref := strings.TrimSpace(e.SupplierRef)
		if ref == "" || !active[e.ProductID] || e.UnitCost.IsNegative() {
			result.Skipped++
			continue
		}

		supplierID, ok := suppliers[ref]
		if !ok {
			supplierID, err = s.syncSupplier(ctx, ref, e.SupplierName)
			if err != nil {
				return result, err
			}
			suppliers[ref] = supplierID
			result.Suppliers++
		}

		synced := now
		if !e.UpdatedAt.IsZero() {
			synced = e.UpdatedAt.UTC()
		}
		offer := &domain.SupplierOffer{
			SupplierID: supplierID,
			ProductID:  e.ProductID,
			UnitCost:   e.UnitCost,
			SyncedAt:   &synced,
		}
		if err := s.offerRepo.Upsert(ctx, offer); err != nil {
			return result, fmt.Errorf("failed to upsert offer %s/%d: %w", ref, e.ProductID, err)
		}
		result.Offers++
	}

	s.logger.Info("supplier price list synced",
		zap.Int("rows", len(entries)),
		zap.Int("suppliers", result.Suppliers),
		zap.Int("offers", result.Offers),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *PriceSyncService) syncSupplier(ctx context.Context, ref, name string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = ref
	}
	if err := s.supplierRepo.UpsertByERPReference(ctx, &domain.Supplier{Name: name, ERPReference: ref, IsActive: true}); err != nil {
		return 0, fmt.Errorf("failed to upsert supplier %s: %w", ref, err)
	}
	supplier, err := s.supplierRepo.GetByERPReference(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to reload supplier %s: %w", ref, err)
	}
	if supplier == nil {
		return 0, fmt.Errorf("supplier %s missing after upsert", ref)
	}
	return supplier.ID, nil
}
