package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/mapper"
)

// Edit applies an order edit. The submitted instructions are replayed onto the
// latest persisted state and re-derived through the item editor, so a stale or
// hand-written payload is checked exactly like one built by a client. Only one
// edit of an order runs at a time.
func (s *OrderService) Edit(ctx context.Context, orderID uint, req *domain.OrderEditPayload) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	release, err := s.locker.Acquire(ctx, lock.OrderKey(orderID), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrEditInProgress
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	defer release()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	state := mapper.ToOrderState(order)

	draft, verr := draftFromRequest(state, req)
	payload, err := s.editor.BuildEditPayload(state, draft, user.Actor())
	if err != nil {
		var ve *fulfillment.ValidationError
		if errors.As(err, &ve) {
			verr.Merge(ve)
			return nil, verr
		}
		return nil, err
	}
	if verr.HasProblems() {
		return nil, verr
	}

	if payload.IsEmpty() {
		dto := mapper.ToOrderDTO(order, user.Role, s.calculator.Price(mapper.ToPricingInput(order)))
		return &dto, nil
	}
	if err := s.ensureProducts(ctx, payload.ItemsAdd, "items_add"); err != nil {
		return nil, err
	}

	if err := s.orderRepo.ApplyEdit(ctx, orderID, payload); err != nil {
		return nil, fmt.Errorf("failed to apply order edit: %w", err)
	}
	if len(payload.ItemsAdd) > 0 {
		s.assignNewItems(ctx, orderID)
	}

	updated, err := s.reprice(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, orderID, "Order edited", describeEdit(payload))
	s.logger.Info("order edited",
		zap.Uint("order_id", orderID),
		zap.Uint("user_id", user.UserID),
		zap.Int("items_added", len(payload.ItemsAdd)),
		zap.Int("items_updated", len(payload.ItemsUpdate)),
		zap.Int("items_removed", len(payload.ItemsRemove)))

	dto := mapper.ToOrderDTO(updated, user.Role, s.calculator.Price(mapper.ToPricingInput(updated)))
	return &dto, nil
}

// assignNewItems gives items created by an edit the cheapest supplier offer
func (s *OrderService) assignNewItems(ctx context.Context, orderID uint) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Warn("failed to reload order for supplier assignment", zap.Uint("order_id", orderID), zap.Error(err))
		return
	}
	for i := range order.Items {
		item := &order.Items[i]
		if item.SupplierID != nil {
			continue
		}
		s.assignCheapestSupplier(ctx, item)
		if item.SupplierID == nil {
			continue
		}
		updates := map[string]interface{}{
			"supplier_id":        *item.SupplierID,
			"supplier_offer_id":  *item.SupplierOfferID,
			"supplier_unit_cost": item.SupplierUnitCost,
			"supplier_confirms":  false,
		}
		if err := s.orderRepo.UpdateItemPricing(ctx, item.ID, updates, nil); err != nil {
			s.logger.Warn("failed to assign supplier", zap.Uint("order_item_id", item.ID), zap.Error(err))
		}
	}
}

// draftFromRequest replays a submitted edit onto the persisted state. References
// to items or deliveries that are not part of the order are reported against
// the request path they came from.
func draftFromRequest(state fulfillment.OrderState, req *domain.OrderEditPayload) (fulfillment.OrderDraft, *fulfillment.ValidationError) {
	verr := &fulfillment.ValidationError{}
	draft := fulfillment.DraftFromState(state)
	if req == nil {
		return draft, verr
	}

	if req.Order != nil {
		if req.Order.ContactPersonName != nil {
			draft.Fields.ContactPersonName = *req.Order.ContactPersonName
		}
		if req.Order.ContactPersonNumber != nil {
			draft.Fields.ContactPersonNumber = *req.Order.ContactPersonNumber
		}
		if req.Order.SiteInstructions != nil {
			draft.Fields.SiteInstructions = *req.Order.SiteInstructions
		}
	}

	persisted := make(map[uint]fulfillment.Item, len(state.Items))
	for _, it := range state.Items {
		persisted[it.ID] = it
	}
	indexOf := func(id uint) int {
		for i, d := range draft.Items {
			if d.ID != nil && *d.ID == id {
				return i
			}
		}
		return -1
	}

	for k, u := range req.ItemsUpdate {
		field := fmt.Sprintf("items_update[%d]", k)
		i := indexOf(u.OrderItemID)
		if i < 0 {
			verr.Add(field+".order_item_id", fulfillment.CodeUnknownID,
				fmt.Sprintf("order item %d does not belong to this order", u.OrderItemID))
			continue
		}
		d := &draft.Items[i]
		d.Field = field
		if u.Quantity != nil {
			d.Quantity = *u.Quantity
		}
		if u.CustomBlendMix != nil {
			blend := *u.CustomBlendMix
			d.CustomBlendMix = &blend
		}
		if u.Deliveries != nil {
			d.Slots = mergeSlots(persisted[u.OrderItemID], u.Deliveries)
			continue
		}
		d.Slots = applySlotDiff(d.Slots, u, field, verr)
	}

	for k, id := range req.ItemsRemove {
		i := indexOf(id)
		if i < 0 {
			verr.Add(fmt.Sprintf("items_remove[%d]", k), fulfillment.CodeUnknownID,
				fmt.Sprintf("order item %d does not belong to this order", id))
			continue
		}
		draft.Items = append(draft.Items[:i], draft.Items[i+1:]...)
	}

	for k, a := range req.ItemsAdd {
		draft.Items = append(draft.Items, fulfillment.ItemDraft{
			ProductID:      a.ProductID,
			Quantity:       a.Quantity,
			CustomBlendMix: a.CustomBlendMix,
			Slots:          mapper.ToSlotDrafts(a.Deliveries),
			Field:          fmt.Sprintf("items_add[%d]", k),
		})
	}
	return draft, verr
}

// mergeSlots turns a full desired slot list into drafts. Known slots that
// omit their cost or load size keep the persisted values.
func mergeSlots(item fulfillment.Item, inputs []domain.DeliveryInput) []fulfillment.SlotDraft {
	byID := make(map[uint]fulfillment.Slot, len(item.Slots))
	for _, s := range item.Slots {
		byID[s.ID] = s
	}
	drafts := mapper.ToSlotDrafts(inputs)
	for j := range drafts {
		if drafts[j].ID == nil {
			continue
		}
		before, ok := byID[*drafts[j].ID]
		if !ok {
			continue
		}
		if drafts[j].DeliveryCost == nil {
			cost := before.DeliveryCost
			drafts[j].DeliveryCost = &cost
		}
		if drafts[j].LoadSize == nil {
			drafts[j].LoadSize = before.LoadSize
		}
	}
	return drafts
}

// applySlotDiff applies explicit add, update and remove groups to the
// current slot drafts of an item
func applySlotDiff(slots []fulfillment.SlotDraft, u domain.ItemUpdate, field string, verr *fulfillment.ValidationError) []fulfillment.SlotDraft {
	indexOf := func(id uint) int {
		for j, s := range slots {
			if s.ID != nil && *s.ID == id {
				return j
			}
		}
		return -1
	}

	for j, in := range u.DeliveriesUpdate {
		if in.ID == nil {
			verr.Add(fmt.Sprintf("%s.deliveries_update[%d].id", field, j), fulfillment.CodeRequired, "delivery id is required")
			continue
		}
		idx := indexOf(*in.ID)
		if idx < 0 {
			verr.Add(fmt.Sprintf("%s.deliveries_update[%d].id", field, j), fulfillment.CodeUnknownID,
				fmt.Sprintf("delivery %d does not belong to this item", *in.ID))
			continue
		}
		cur := slots[idx]
		cur.Quantity = in.Quantity
		cur.DeliveryDate = in.DeliveryDate
		cur.DeliveryTime = in.DeliveryTime
		cur.TruckType = in.TruckType
		if in.DeliveryCost != nil {
			cur.DeliveryCost = in.DeliveryCost
		}
		if in.LoadSize != nil {
			cur.LoadSize = in.LoadSize
		}
		cur.TimeInterval = in.TimeInterval
		slots[idx] = cur
	}

	for j, id := range u.DeliveriesRemove {
		idx := indexOf(id)
		if idx < 0 {
			verr.Add(fmt.Sprintf("%s.deliveries_remove[%d]", field, j), fulfillment.CodeUnknownID,
				fmt.Sprintf("delivery %d does not belong to this item", id))
			continue
		}
		slots = append(slots[:idx], slots[idx+1:]...)
	}

	for j, draft := range mapper.ToSlotDrafts(u.DeliveriesAdd) {
		draft.ID = nil
		draft.LocalID = fmt.Sprintf("add-%d", j)
		slots = append(slots, draft)
	}
	return slots
}

func describeEdit(p *domain.OrderEditPayload) string {
	parts := make([]string, 0, 4)
	if !p.Order.IsEmpty() {
		parts = append(parts, "order details changed")
	}
	if n := len(p.ItemsAdd); n > 0 {
		parts = append(parts, fmt.Sprintf("%d item(s) added", n))
	}
	if n := len(p.ItemsUpdate); n > 0 {
		parts = append(parts, fmt.Sprintf("%d item(s) updated", n))
	}
	if n := len(p.ItemsRemove); n > 0 {
		parts = append(parts, fmt.Sprintf("%d item(s) removed", n))
	}
	return strings.Join(parts, ", ")
}
