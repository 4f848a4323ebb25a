package fulfillment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bulkmat/order-api/internal/domain"
)

// RepeatOverride replaces the quantity and/or custom blend of one source item
type RepeatOverride struct {
	Quantity       *decimal.Decimal
	CustomBlendMix *string
}

// ComposeRepeat derives the payload of a repeated order from the source
// order's items. Overrides are keyed by source order item id. Prices,
// supplier assignments and deliveries are never carried over.
func ComposeRepeat(items []Item, overrides map[uint]RepeatOverride) (domain.RepeatOrderRequest, error) {
	verr := &ValidationError{}
	known := make(map[uint]bool, len(items))
	req := domain.RepeatOrderRequest{Items: make([]domain.RepeatItem, 0, len(items))}

	for i, it := range items {
		known[it.ID] = true
		ri := domain.RepeatItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			CustomBlendMix: it.CustomBlendMix,
		}
		if o, ok := overrides[it.ID]; ok {
			if o.Quantity != nil {
				ri.Quantity = *o.Quantity
			}
			if o.CustomBlendMix != nil {
				blend := *o.CustomBlendMix
				ri.CustomBlendMix = &blend
			}
		}
		if !ri.Quantity.IsPositive() {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), CodePositive, "quantity must be greater than zero")
		}
		req.Items = append(req.Items, ri)
	}

	for id := range overrides {
		if !known[id] {
			verr.Add(fmt.Sprintf("overrides[%d]", id), CodeUnknownID, fmt.Sprintf("order item %d is not part of the source order", id))
		}
	}
	if len(items) == 0 {
		verr.Add("items", CodeRequired, "the source order has no items")
	}

	if err := verr.ErrOrNil(); err != nil {
		return domain.RepeatOrderRequest{}, err
	}
	return req, nil
}
