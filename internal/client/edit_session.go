package client

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
)

// ErrNothingPrepared is returned by Submit when Prepare has not produced a payload
var ErrNothingPrepared = errors.New("no prepared edit to submit")

// EditSession holds the persisted baseline of one order while it is being
// edited. Payloads are always computed against the baseline, which only
// changes when the backend accepts a submission.
type EditSession struct {
	client *Client
	editor *fulfillment.Editor
	actor  fulfillment.Actor

	mu       sync.Mutex
	baseline *domain.OrderDTO
	state    fulfillment.OrderState
	pending  *domain.OrderEditPayload
}

// NewEditSession starts a session from an order the caller already holds
func NewEditSession(c *Client, editor *fulfillment.Editor, actor fulfillment.Actor, baseline *domain.OrderDTO) *EditSession {
	return &EditSession{
		client:   c,
		editor:   editor,
		actor:    actor,
		baseline: baseline,
		state:    StateFromOrder(baseline),
	}
}

// OpenEdit fetches the order and starts an edit session on it
func (c *Client) OpenEdit(ctx context.Context, orderID uint, editor *fulfillment.Editor, actor fulfillment.Actor) (*EditSession, error) {
	order, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return NewEditSession(c, editor, actor, order), nil
}

// Baseline returns the last order state confirmed by the backend
func (s *EditSession) Baseline() *domain.OrderDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Draft returns a desired state identical to the baseline, ready to be modified
func (s *EditSession) Draft() fulfillment.OrderDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fulfillment.DraftFromState(s.state)
}

// Prepare runs the engine over desired and keeps the resulting payload for
// Submit. Local validation failures are returned without touching the network.
func (s *EditSession) Prepare(desired fulfillment.OrderDraft) (*domain.OrderEditPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.editor.BuildEditPayload(s.state, desired, s.actor)
	if err != nil {
		s.pending = nil
		return nil, err
	}
	s.pending = payload
	return payload, nil
}

// Submit posts the prepared payload. On success the response replaces the
// baseline; on failure the baseline and the prepared payload are kept so the
// caller can retry a *fulfillment.RetryableError as is. An empty payload
// completes without a request.
func (s *EditSession) Submit(ctx context.Context) (*domain.OrderDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return nil, ErrNothingPrepared
	}
	if s.pending.IsEmpty() {
		s.pending = nil
		return s.baseline, nil
	}

	updated, err := s.client.EditOrder(ctx, s.state.ID, s.pending)
	if err != nil {
		return nil, err
	}
	s.baseline = updated
	s.state = StateFromOrder(updated)
	s.pending = nil
	return updated, nil
}

// StateFromOrder converts an order read model into the engine's persisted
// state. Costs hidden from the caller's role are carried as zero.
func StateFromOrder(order *domain.OrderDTO) fulfillment.OrderState {
	if order == nil {
		return fulfillment.OrderState{}
	}
	state := fulfillment.OrderState{
		ID:     order.ID,
		Status: order.OrderStatus,
		Fields: fulfillment.OrderFields{
			ContactPersonName:   order.ContactPersonName,
			ContactPersonNumber: order.ContactPersonNumber,
			SiteInstructions:    order.SiteInstructions,
		},
		Items: make([]fulfillment.Item, 0, len(order.Items)),
	}
	for _, it := range order.Items {
		item := fulfillment.Item{
			ID:             it.ID,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			CustomBlendMix: it.CustomBlendMix,
			Slots:          make([]fulfillment.Slot, 0, len(it.Deliveries)),
		}
		for _, d := range it.Deliveries {
			cost := decimal.Zero
			if d.DeliveryCost != nil {
				cost = *d.DeliveryCost
			}
			item.Slots = append(item.Slots, fulfillment.Slot{
				ID:               d.ID,
				Quantity:         d.Quantity,
				DeliveryDate:     d.DeliveryDate,
				DeliveryTime:     d.DeliveryTime,
				TruckType:        d.TruckType,
				DeliveryCost:     cost,
				SupplierConfirms: d.SupplierConfirms,
				LoadSize:         d.LoadSize,
			})
		}
		state.Items = append(state.Items, item)
	}
	return state
}
