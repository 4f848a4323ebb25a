package handler

import (
	"net/http"

	"github.com/bulkmat/order-api/internal/domain"
)

// ============================================================================
// Order Lifecycle Endpoints
// ============================================================================

// SetStatus godoc
// @Summary Change order status
// @Description Admins advance an order one status at a time, suppliers report transit and delivery, clients and admins cancel open orders.
// @Tags Orders
// @Accept json
// @Produce json
// @Param orderId path int true "Order ID"
// @Param request body domain.SetOrderStatusRequest true "New status"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError "Workflow violation"
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /set-order-status/{orderId} [post]
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "orderId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	var req domain.SetOrderStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	order, err := h.orderService.SetStatus(r.Context(), id, req.OrderStatus)
	if err != nil {
		respondServiceError(w, h.logger, err, "change order status")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// Archive godoc
// @Summary Archive order
// @Description Hides an order from listings. Archiving twice is a no-op.
// @Tags Orders
// @Param id path int true "Order ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id} [delete]
func (h *OrderHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	if err := h.orderService.Archive(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "archive order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Repeat godoc
// @Summary Repeat order
// @Description Creates a draft order from a previous one. Without a body the source lines are copied; deliveries are scheduled by editing the draft.
// @Tags Orders
// @Accept json
// @Produce json
// @Param orderId path int true "Source order ID"
// @Param request body domain.RepeatOrderRequest false "Replacement lines"
// @Success 201 {object} domain.OrderDTO
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /repeat-order/{orderId} [post]
func (h *OrderHandler) Repeat(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "orderId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	var req *domain.RepeatOrderRequest
	if r.ContentLength != 0 {
		req = &domain.RepeatOrderRequest{}
		if !decodeAndValidate(w, r, req) {
			return
		}
	}
	order, err := h.orderService.Repeat(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "repeat order")
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// MarkRepeat godoc
// @Summary Mark as repeat order
// @Tags Orders
// @Produce json
// @Param orderId path int true "Order ID"
// @Success 200 {object} domain.OrderDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /mark-repeat-order/{orderId} [post]
func (h *OrderHandler) MarkRepeat(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "orderId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	order, err := h.orderService.MarkRepeat(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "mark repeat order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateCharges godoc
// @Summary Update order charges
// @Description Admin only. Sets the order discount and other charges and re-prices the order.
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param request body domain.UpdateChargesRequest true "Charges"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/charges [put]
func (h *OrderHandler) UpdateCharges(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	var req domain.UpdateChargesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	order, err := h.orderService.UpdateCharges(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update order charges")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateItemPricing godoc
// @Summary Update item pricing
// @Description Admin only. Supplier assignment, quote, unit cost, supplier discount, delivery type and per-delivery costs of one item.
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path int true "Order item ID"
// @Param request body domain.UpdateItemPricingRequest true "Pricing"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /order-items/{id}/pricing [put]
func (h *OrderHandler) UpdateItemPricing(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order item ID")
		return
	}
	var req domain.UpdateItemPricingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	order, err := h.orderService.UpdateItemPricing(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update item pricing")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ConfirmDelivery godoc
// @Summary Confirm delivery
// @Description The assigned supplier confirms a delivery. Confirmed deliveries can afterwards only be rescheduled.
// @Tags Deliveries
// @Produce json
// @Param id path int true "Delivery ID"
// @Success 200 {object} domain.DeliverySlotDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deliveries/{id}/confirm [post]
func (h *OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid delivery ID")
		return
	}
	slot, err := h.orderService.ConfirmDelivery(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "confirm delivery")
		return
	}
	respondJSON(w, http.StatusOK, slot)
}
