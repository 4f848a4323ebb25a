package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/mapper"
	"github.com/bulkmat/order-api/internal/payment"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/storage"
)

// allowedInvoiceTypes are the content types accepted for invoice documents
var allowedInvoiceTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// PaymentService settles orders through the payment gateway and keeps their
// invoice documents
type PaymentService struct {
	orderRepo    *repository.OrderRepository
	paymentRepo  *repository.PaymentRepository
	invoiceRepo  *repository.InvoiceRepository
	activityRepo *repository.ActivityRepository
	gateway      payment.Gateway
	storage      storage.Storage
	currency     string
	logger       *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	orderRepo *repository.OrderRepository,
	paymentRepo *repository.PaymentRepository,
	invoiceRepo *repository.InvoiceRepository,
	activityRepo *repository.ActivityRepository,
	gateway payment.Gateway,
	store storage.Storage,
	currency string,
	logger *zap.Logger,
) *PaymentService {
	if currency == "" {
		currency = "AUD"
	}
	return &PaymentService{
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		invoiceRepo:  invoiceRepo,
		activityRepo: activityRepo,
		gateway:      gateway,
		storage:      store,
		currency:     currency,
		logger:       logger,
	}
}

// ProcessPayment charges the outstanding amount of an order to a tokenized
// card. A declined charge is recorded and returned together with an error
// wrapping ErrPaymentDeclined; the order keeps its payment status.
func (s *PaymentService) ProcessPayment(ctx context.Context, req *domain.ProcessPaymentRequest) (*domain.PaymentDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !user.HasRole(domain.RoleClient, domain.RoleAdmin) {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return nil, fmt.Errorf("%w: payment_method_id is required", ErrInvalidInput)
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}

	paid, err := s.paymentRepo.SumSucceeded(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}
	due := order.TotalPrice.Sub(paid)
	if !due.IsPositive() {
		return nil, ErrOrderAlreadyPaid
	}

	result, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		OrderID:         order.ID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          due,
		Currency:        s.currency,
		IdempotencyKey:  fmt.Sprintf("order-%d-%s", order.ID, uuid.NewString()),
	})
	if err != nil {
		s.logger.Error("payment gateway call failed", zap.Uint("order_id", order.ID), zap.Error(err))
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			return nil, ErrPaymentUnavailable
		}
		return nil, fmt.Errorf("failed to charge order: %w", err)
	}

	record := &domain.Payment{
		OrderID:           order.ID,
		Amount:            due,
		Result:            result.Result,
		ProviderReference: result.Reference,
		FailureReason:     result.FailureReason,
		ProcessedByID:     user.UserID,
	}
	if err := s.paymentRepo.Create(ctx, record); err != nil {
		// The charge already happened; the provider reference is the only trace
		s.logger.Error("failed to record payment",
			zap.Uint("order_id", order.ID),
			zap.String("reference", result.Reference),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	status := order.PaymentStatus
	switch result.Result {
	case domain.PaymentResultSucceeded:
		status = domain.PaymentStatusPaid
	case domain.PaymentResultPending:
		status = domain.PaymentStatusPending
	}
	if status != order.PaymentStatus {
		if err := s.orderRepo.UpdatePaymentStatus(ctx, order.ID, status); err != nil {
			return nil, fmt.Errorf("failed to update payment status: %w", err)
		}
	}

	s.logActivity(ctx, order.ID, "Payment "+string(result.Result),
		fmt.Sprintf("Card payment of %s %s: %s", due.StringFixed(2), s.currency, result.Result))
	s.logger.Info("payment processed",
		zap.Uint("order_id", order.ID),
		zap.String("amount", due.String()),
		zap.String("result", string(result.Result)),
		zap.String("reference", result.Reference))

	dto := mapper.ToPaymentDTO(record, status)
	if result.Result == domain.PaymentResultFailed {
		reason := result.FailureReason
		if reason == "" {
			reason = "declined by provider"
		}
		return &dto, fmt.Errorf("%w: %s", ErrPaymentDeclined, reason)
	}
	return &dto, nil
}

// ListPayments returns the payment attempts of an order visible to the caller
func (s *PaymentService) ListPayments(ctx context.Context, orderID uint) ([]domain.PaymentDTO, error) {
	order, err := s.visibleOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	dtos := make([]domain.PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = mapper.ToPaymentDTO(&payments[i], order.PaymentStatus)
	}
	return dtos, nil
}

// UploadInvoice stores an invoice document for an order
func (s *PaymentService) UploadInvoice(ctx context.Context, orderID uint, filename, contentType string, data io.Reader) (*domain.InvoiceDocumentDTO, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if _, err := s.visibleOrder(ctx, orderID); err != nil {
		return nil, err
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])); allowedInvoiceTypes[ct] {
		contentType = ct
	} else {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidInput, contentType)
	}

	key, size, err := s.storage.Upload(ctx, fmt.Sprintf("orders/%d/invoices", orderID), filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store invoice: %w", err)
	}

	doc := &domain.InvoiceDocument{
		OrderID:     orderID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StoragePath: key,
	}
	if err := s.invoiceRepo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned invoice file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.logActivity(ctx, orderID, "Invoice uploaded", filename)
	s.logger.Info("invoice uploaded", zap.Uint("order_id", orderID), zap.String("filename", filename), zap.Int64("size", size))

	dto := mapper.ToInvoiceDocumentDTO(doc)
	return &dto, nil
}

// DownloadInvoice opens the latest invoice of an order. The caller closes the reader.
func (s *PaymentService) DownloadInvoice(ctx context.Context, orderID uint) (*domain.InvoiceDocumentDTO, io.ReadCloser, error) {
	if _, err := s.visibleOrder(ctx, orderID); err != nil {
		return nil, nil, err
	}
	doc, err := s.invoiceRepo.GetLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvoiceNotFound
		}
		return nil, nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	rc, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrInvoiceNotFound
		}
		return nil, nil, fmt.Errorf("failed to read invoice: %w", err)
	}
	dto := mapper.ToInvoiceDocumentDTO(doc)
	return &dto, rc, nil
}

func (s *PaymentService) visibleOrder(ctx context.Context, orderID uint) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *PaymentService) logActivity(ctx context.Context, orderID uint, title, body string) {
	activity := &domain.OrderActivity{OrderID: orderID, ActorRole: domain.RoleAdmin, Title: title, Body: body}
	if user, ok := auth.FromContext(ctx); ok {
		activity.ActorID = user.UserID
		activity.ActorRole = user.Role
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to log activity", zap.Uint("order_id", orderID), zap.Error(err))
	}
}
