package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
)

// OrderHandler serves order reads, creation and edits
type OrderHandler struct {
	orderService    *service.OrderService
	activityService *service.ActivityService
	exportService   *service.ExportService
	logger          *zap.Logger
}

// NewOrderHandler creates a new order handler instance
func NewOrderHandler(
	orderService *service.OrderService,
	activityService *service.ActivityService,
	exportService *service.ExportService,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		orderService:    orderService,
		activityService: activityService,
		exportService:   exportService,
		logger:          logger,
	}
}

// List godoc
// @Summary List orders
// @Description Paginated orders visible to the caller. Clients see their own orders, suppliers the orders they supply.
// @Tags Orders
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectId query int false "Filter by project"
// @Param status query string false "Filter by order status"
// @Param paymentStatus query string false "Filter by payment status"
// @Param includeArchived query bool false "Include archived orders"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, deliveryDate, totalPrice, poNumber)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.OrderDTO}
// @Failure 401 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders [get]
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseIntQuery(r, "page", 1)
	pageSize := parseIntQuery(r, "pageSize", 20)

	filters := parseOrderFilters(r)

	sort := repository.DefaultSortConfig()
	if sortBy := r.URL.Query().Get("sortBy"); sortBy != "" {
		sort.Field = sortBy
	}
	if sortOrder := r.URL.Query().Get("sortOrder"); sortOrder != "" {
		sort.Order = repository.ParseSortOrder(sortOrder)
	}

	result, err := h.orderService.List(r.Context(), page, pageSize, filters, sort)
	if err != nil {
		respondServiceError(w, h.logger, err, "list orders")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get order
// @Description Order with items, deliveries and the pricing projection for the caller's role
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	order, err := h.orderService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// Create godoc
// @Summary Place order
// @Description Creates an order for one of the caller's projects. Deliveries with a load size and time interval are expanded into one delivery per load.
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body domain.CreateOrderRequest true "Order"
// @Success 201 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 422 {object} domain.APIError "Allocation or delivery problems, keyed by field path"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders [post]
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	order, err := h.orderService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create order")
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/orders/%d", order.ID))
	respondJSON(w, http.StatusCreated, order)
}

// Edit godoc
// @Summary Edit order
// @Description Applies an order edit instruction set. The edit is re-validated against the latest persisted order; supplier-confirmed deliveries may only be rescheduled.
// @Tags Orders
// @Accept json
// @Produce json
// @Param orderId path int true "Order ID"
// @Param request body domain.OrderEditPayload true "Edit instructions"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError "Workflow violation"
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Confirmed delivery touched, or another edit in progress"
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /order-edit/{orderId} [post]
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "orderId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	var req domain.OrderEditPayload
	if !decodeAndValidate(w, r, &req) {
		return
	}
	order, err := h.orderService.Edit(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "edit order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// Pricing godoc
// @Summary Order pricing
// @Description Price breakdown of an order. Supplier costs and margins are only shown to admins.
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} fulfillment.PricingView
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/pricing [get]
func (h *OrderHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	view, err := h.orderService.Pricing(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "price order")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Activities godoc
// @Summary Order timeline
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.OrderActivityDTO}
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/activities [get]
func (h *OrderHandler) Activities(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	result, err := h.activityService.ListByOrder(r.Context(), id, parseIntQuery(r, "page", 1), parseIntQuery(r, "pageSize", 20))
	if err != nil {
		respondServiceError(w, h.logger, err, "list order activities")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Export godoc
// @Summary Export orders
// @Description Admin export of the filtered orders as an XLSX workbook with an order sheet and an item sheet
// @Tags Orders
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param projectId query int false "Filter by project"
// @Param status query string false "Filter by order status"
// @Param includeArchived query bool false "Include archived orders"
// @Success 200 {file} file
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/export [get]
func (h *OrderHandler) Export(w http.ResponseWriter, r *http.Request) {
	// Buffer through the service so a failure can still produce a JSON error
	var buf bytes.Buffer
	n, err := h.exportService.ExportOrders(r.Context(), parseOrderFilters(r), &buf)
	if err != nil {
		respondServiceError(w, h.logger, err, "export orders")
		return
	}
	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("X-Total-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to stream export", zap.Error(err))
	}
}

func parseOrderFilters(r *http.Request) *domain.OrderFilters {
	q := r.URL.Query()
	filters := &domain.OrderFilters{}
	if pid := q.Get("projectId"); pid != "" {
		if id, err := strconv.ParseUint(pid, 10, 64); err == nil {
			v := uint(id)
			filters.ProjectID = &v
		}
	}
	if s := q.Get("status"); s != "" {
		status := domain.OrderStatus(s)
		filters.Status = &status
	}
	if s := q.Get("paymentStatus"); s != "" {
		status := domain.PaymentStatus(s)
		filters.PaymentStatus = &status
	}
	filters.IncludeArchived, _ = strconv.ParseBool(q.Get("includeArchived"))
	return filters
}
