// Package client is a typed Go client for the order API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
)

const defaultTimeout = 30 * time.Second

// Client calls the /api/v1 endpoints on behalf of one caller
type Client struct {
	baseURL string
	token   string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAPIKey authenticates with a system API key instead of a bearer token
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API rooted at baseURL, e.g.
// https://orders.example.com/api/v1. token is a JWT bearer token and may be
// empty when WithAPIKey is used.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrder fetches an order with its items and deliveries
func (c *Client) GetOrder(ctx context.Context, id uint) (*domain.OrderDTO, error) {
	var out domain.OrderDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns a page of orders visible to the caller
func (c *Client) ListOrders(ctx context.Context, page, pageSize int, status domain.OrderStatus) (*domain.PaginatedResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if status != "" {
		q.Set("status", string(status))
	}
	var out domain.PaginatedResponse
	if err := c.do(ctx, http.MethodGet, "/orders?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder places a new order
func (c *Client) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderDTO, error) {
	var out domain.OrderDTO
	if err := c.do(ctx, http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditOrder submits an edit payload and returns the updated order
func (c *Client) EditOrder(ctx context.Context, orderID uint, payload *domain.OrderEditPayload) (*domain.OrderDTO, error) {
	var out domain.OrderDTO
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/order-edit/%d", orderID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetStatus moves an order to status
func (c *Client) SetStatus(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.OrderDTO, error) {
	var out domain.OrderDTO
	body := domain.SetOrderStatusRequest{OrderStatus: status}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/set-order-status/%d", orderID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RepeatOrder seeds a new draft order from orderID. A nil request copies
// every item of the source order.
func (c *Client) RepeatOrder(ctx context.Context, orderID uint, req *domain.RepeatOrderRequest) (*domain.OrderDTO, error) {
	var body interface{}
	if req != nil {
		body = req
	}
	var out domain.OrderDTO
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repeat-order/%d", orderID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRepeat flags an order as a repeat order
func (c *Client) MarkRepeat(ctx context.Context, orderID uint) (*domain.OrderDTO, error) {
	var out domain.OrderDTO
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/mark-repeat-order/%d", orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ArchiveOrder hides an order from the caller's listings
func (c *Client) ArchiveOrder(ctx context.Context, orderID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/orders/%d", orderID), nil, nil)
}

// ConfirmDelivery records the supplier's confirmation of a delivery slot
func (c *Client) ConfirmDelivery(ctx context.Context, slotID uint) (*domain.DeliverySlotDTO, error) {
	var out domain.DeliverySlotDTO
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/deliveries/%d/confirm", slotID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessPayment charges the outstanding total of an order. A declined card
// is returned as a *fulfillment.SubmissionError with status 402.
func (c *Client) ProcessPayment(ctx context.Context, orderID uint, paymentMethodID string) (*domain.PaymentDTO, error) {
	var out domain.PaymentDTO
	body := domain.ProcessPaymentRequest{OrderID: orderID, PaymentMethodID: paymentMethodID}
	if err := c.do(ctx, http.MethodPost, "/process-payment", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects returns a page of the caller's projects
func (c *Client) ListProjects(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	var out domain.PaginatedResponse
	path := fmt.Sprintf("/projects?page=%d&pageSize=%d", page, pageSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProducts returns the active catalog
func (c *Client) ListProducts(ctx context.Context) ([]domain.ProductDTO, error) {
	var out []domain.ProductDTO
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends one request. Transport failures, 429 and 5xx answers become
// *fulfillment.RetryableError; other 4xx answers become
// *fulfillment.SubmissionError carrying the field errors of the response.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &fulfillment.RetryableError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var apiErr domain.APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Status == 0 {
		apiErr = domain.APIError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(raw))}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &fulfillment.RetryableError{Status: resp.StatusCode, Err: errors.New(apiErr.Detail)}
	}
	return &fulfillment.SubmissionError{
		Status:      resp.StatusCode,
		Type:        apiErr.Type,
		Message:     apiErr.Detail,
		FieldErrors: apiErr.Errors,
	}
}
