// Package payment charges orders through a card payment provider.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
)

// ErrGatewayUnavailable wraps transport failures and provider 5xx responses
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ChargeRequest is a single card charge
type ChargeRequest struct {
	OrderID         uint
	PaymentMethodID string
	Amount          decimal.Decimal
	Currency        string
	// IdempotencyKey makes retried charges safe at the provider
	IdempotencyKey string
}

// ChargeResult is the provider outcome of a charge
type ChargeResult struct {
	Result        domain.PaymentResult
	Reference     string
	FailureReason string
}

// Gateway charges payment methods
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// NewGateway creates the gateway selected by configuration
func NewGateway(cfg *config.PaymentConfig, logger *zap.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "", "sandbox":
		logger.Info("Using sandbox payment gateway")
		return NewSandboxGateway(), nil
	case "http":
		if cfg.BaseURL == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("payment.baseURL and payment api key are required for the http gateway")
		}
		return NewHTTPGateway(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.Provider)
	}
}

// Sandbox payment method ids with a fixed outcome
const (
	SandboxDeclined = "pm_card_declined"
	SandboxPending  = "pm_card_pending"
	SandboxOffline  = "pm_gateway_offline"
)

// SandboxGateway settles charges locally. Any payment method succeeds except
// the Sandbox* ids above.
type SandboxGateway struct{}

// NewSandboxGateway creates a sandbox gateway
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{}
}

// Charge settles the charge according to the payment method id
func (g *SandboxGateway) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("charge amount must be positive, got %s", req.Amount)
	}
	ref := "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	switch req.PaymentMethodID {
	case SandboxDeclined:
		return &ChargeResult{Result: domain.PaymentResultFailed, Reference: ref, FailureReason: "card declined"}, nil
	case SandboxPending:
		return &ChargeResult{Result: domain.PaymentResultPending, Reference: ref}, nil
	case SandboxOffline:
		return nil, fmt.Errorf("%w: sandbox offline", ErrGatewayUnavailable)
	default:
		return &ChargeResult{Result: domain.PaymentResultSucceeded, Reference: ref}, nil
	}
}

// HTTPGateway posts charges to a JSON payment API
type HTTPGateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway creates a gateway for a JSON payment API
func NewHTTPGateway(cfg *config.PaymentConfig, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:  logger,
	}
}

type chargeBody struct {
	PaymentMethodID string          `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Reference       string          `json:"reference"`
}

type chargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// Charge posts the charge to /charges
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(chargeBody{
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Reference:       fmt.Sprintf("order-%d", req.OrderID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	result := &ChargeResult{Reference: out.ID, FailureReason: out.FailureReason}
	switch {
	case resp.StatusCode >= 400:
		result.Result = domain.PaymentResultFailed
		if result.FailureReason == "" {
			result.FailureReason = fmt.Sprintf("declined with status %d", resp.StatusCode)
		}
	case out.Status == "succeeded":
		result.Result = domain.PaymentResultSucceeded
	case out.Status == "pending", out.Status == "processing":
		result.Result = domain.PaymentResultPending
	default:
		result.Result = domain.PaymentResultFailed
	}

	g.logger.Info("payment gateway charge",
		zap.Uint("order_id", req.OrderID),
		zap.String("reference", result.Reference),
		zap.String("result", string(result.Result)),
	)
	return result, nil
}
