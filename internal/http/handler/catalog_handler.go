package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
)

// CatalogHandler serves products, suppliers and supplier offers
type CatalogHandler struct {
	productService   *service.ProductService
	supplierService  *service.SupplierService
	priceSyncService *service.PriceSyncService
	logger           *zap.Logger
}

// NewCatalogHandler creates a new catalog handler instance
func NewCatalogHandler(
	productService *service.ProductService,
	supplierService *service.SupplierService,
	priceSyncService *service.PriceSyncService,
	logger *zap.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		productService:   productService,
		supplierService:  supplierService,
		priceSyncService: priceSyncService,
		logger:           logger,
	}
}

// ListProducts godoc
// @Summary List products
// @Tags Catalog
// @Produce json
// @Param category query string false "Filter by category"
// @Success 200 {array} domain.ProductDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products [get]
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// CreateProduct godoc
// @Summary Create product
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body domain.CreateProductRequest true "Product"
// @Success 201 {object} domain.ProductDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products [post]
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	product, err := h.productService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create product")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// ListOffers godoc
// @Summary List supplier offers for a product
// @Description Standing supplier offers for a product, cheapest first
// @Tags Catalog
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {array} domain.SupplierOfferDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products/{id}/offers [get]
func (h *CatalogHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	offers, err := h.supplierService.ListOffers(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list supplier offers")
		return
	}
	respondJSON(w, http.StatusOK, offers)
}

// ListSuppliers godoc
// @Summary List suppliers
// @Tags Catalog
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by name or ERP reference"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, name)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.SupplierDTO}
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /suppliers [get]
func (h *CatalogHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	sort := repository.DefaultSortConfig()
	if sortBy := r.URL.Query().Get("sortBy"); sortBy != "" {
		sort.Field = sortBy
	}
	if sortOrder := r.URL.Query().Get("sortOrder"); sortOrder != "" {
		sort.Order = repository.ParseSortOrder(sortOrder)
	}
	result, err := h.supplierService.List(
		r.Context(),
		parseIntQuery(r, "page", 1),
		parseIntQuery(r, "pageSize", 20),
		r.URL.Query().Get("search"),
		sort,
	)
	if err != nil {
		respondServiceError(w, h.logger, err, "list suppliers")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateSupplier godoc
// @Summary Create supplier
// @Description Registers a supplier. Without an ERP reference a LOCAL reference is generated.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body domain.CreateSupplierRequest true "Supplier"
// @Success 201 {object} domain.SupplierDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /suppliers [post]
func (h *CatalogHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSupplierRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	supplier, err := h.supplierService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create supplier")
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/suppliers/%d", supplier.ID))
	respondJSON(w, http.StatusCreated, supplier)
}

// GetSupplier godoc
// @Summary Get supplier
// @Tags Catalog
// @Produce json
// @Param id path int true "Supplier ID"
// @Success 200 {object} domain.SupplierDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /suppliers/{id} [get]
func (h *CatalogHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid supplier ID")
		return
	}
	supplier, err := h.supplierService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get supplier")
		return
	}
	respondJSON(w, http.StatusOK, supplier)
}

// SyncPrices godoc
// @Summary Import supplier prices
// @Description Pulls the supplier price list from the ERP warehouse and upserts suppliers and offers
// @Tags Catalog
// @Produce json
// @Success 200 {object} domain.PriceSyncResultDTO
// @Failure 403 {object} domain.APIError
// @Failure 503 {object} domain.APIError "ERP integration disabled"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /price-sync [post]
func (h *CatalogHandler) SyncPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.priceSyncService.Sync(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "sync supplier prices")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
