package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	maxUploadMB    int64
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, maxUploadMB int64, logger *zap.Logger) *PaymentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &PaymentHandler{
		paymentService: paymentService,
		maxUploadMB:    maxUploadMB,
		logger:         logger,
	}
}

// paymentDeclinedResponse carries the recorded attempt next to the error
type paymentDeclinedResponse struct {
	domain.APIError
	Payment *domain.PaymentDTO `json:"payment"`
}

// ProcessPayment godoc
// @Summary Pay for an order
// @Description Charges the outstanding order total to a tokenized card. Declined charges are recorded and answered with 402.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body domain.ProcessPaymentRequest true "Payment"
// @Success 200 {object} domain.PaymentDTO
// @Failure 400 {object} domain.APIError
// @Failure 402 {object} domain.APIError "Card declined"
// @Failure 409 {object} domain.APIError "Already paid or cancelled"
// @Failure 503 {object} domain.APIError "Payment provider unavailable"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /process-payment [post]
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.ProcessPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.paymentService.ProcessPayment(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrPaymentDeclined) && result != nil {
			respondJSON(w, http.StatusPaymentRequired, paymentDeclinedResponse{
				APIError: domain.APIError{
					Type:   domain.ErrorTypePayment,
					Title:  http.StatusText(http.StatusPaymentRequired),
					Status: http.StatusPaymentRequired,
					Detail: err.Error(),
				},
				Payment: result,
			})
			return
		}
		respondServiceError(w, h.logger, err, "process payment")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListPayments godoc
// @Summary List payment attempts
// @Tags Payments
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {array} domain.PaymentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/payments [get]
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	payments, err := h.paymentService.ListPayments(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list payments")
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

// UploadInvoice godoc
// @Summary Upload invoice
// @Description Admin only. Accepts PDF, PNG or JPEG documents.
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Order ID"
// @Param file formData file true "Invoice document"
// @Success 201 {object} domain.InvoiceDocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/invoice [post]
func (h *PaymentHandler) UploadInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	limit := h.maxUploadMB * 1024 * 1024
	if r.ContentLength > limit {
		h.respondTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondTooLarge(w)
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	doc, err := h.paymentService.UploadInvoice(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondServiceError(w, h.logger, err, "upload invoice")
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (h *PaymentHandler) respondTooLarge(w http.ResponseWriter) {
	respondJSON(w, http.StatusRequestEntityTooLarge, domain.APIError{
		Type:   domain.ErrorTypeBadRequest,
		Title:  http.StatusText(http.StatusRequestEntityTooLarge),
		Status: http.StatusRequestEntityTooLarge,
		Detail: fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB),
	})
}

// DownloadInvoice godoc
// @Summary Download invoice
// @Description Latest invoice document of an order
// @Tags Payments
// @Produce application/pdf
// @Param id path int true "Order ID"
// @Success 200 {file} file
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/invoice [get]
func (h *PaymentHandler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	doc, reader, err := h.paymentService.DownloadInvoice(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "download invoice")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream invoice", zap.Uint("order_id", id), zap.Error(err))
	}
}
