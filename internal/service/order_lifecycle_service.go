package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
	"github.com/bulkmat/order-api/internal/mapper"
)

// SetStatus moves an order through its workflow. Admins step forward one
// status at a time, suppliers report transit and delivery, and clients or
// admins may cancel an open order.
func (s *OrderService) SetStatus(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, status)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == status {
		dto := mapper.ToOrderDTO(order, user.Role, s.calculator.Price(mapper.ToPricingInput(order)))
		return &dto, nil
	}
	if err := fulfillment.EnsureTransition(order.OrderStatus, status, user.Role); err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	previous := order.OrderStatus
	order.OrderStatus = status

	s.logActivity(ctx, orderID, "Status changed",
		fmt.Sprintf("Order status changed from %s to %s", previous, status))
	s.logger.Info("order status changed",
		zap.Uint("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Uint("user_id", user.UserID))

	dto := mapper.ToOrderDTO(order, user.Role, s.calculator.Price(mapper.ToPricingInput(order)))
	return &dto, nil
}

// Archive hides an order from listings
func (s *OrderService) Archive(ctx context.Context, orderID uint) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if err := fulfillment.EnsureArchive(order.OrderStatus, user.Role); err != nil {
		return err
	}
	if order.IsArchived {
		return nil
	}
	if err := s.orderRepo.SetArchived(ctx, orderID, true); err != nil {
		return fmt.Errorf("failed to archive order: %w", err)
	}
	s.logActivity(ctx, orderID, "Order archived", "")
	s.logger.Info("order archived", zap.Uint("order_id", orderID), zap.Uint("user_id", user.UserID))
	return nil
}

// Repeat creates a new draft order from a previous one. Without explicit
// items the source order's lines are copied. Prices, supplier assignments and
// deliveries are never carried over; the new lines are scheduled by editing
// the draft.
func (s *OrderService) Repeat(ctx context.Context, orderID uint, req *domain.RepeatOrderRequest) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	source, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fulfillment.EnsureRepeat(source.OrderStatus, user.Role); err != nil {
		return nil, err
	}

	var items []domain.RepeatItem
	if req != nil && len(req.Items) > 0 {
		items = req.Items
	} else {
		composed, err := fulfillment.ComposeRepeat(mapper.ToOrderState(source).Items, nil)
		if err != nil {
			return nil, err
		}
		items = composed.Items
	}

	verr := &fulfillment.ValidationError{}
	adds := make([]domain.ItemAdd, 0, len(items))
	for i, it := range items {
		if !it.Quantity.IsPositive() {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), fulfillment.CodePositive, "quantity must be greater than zero")
		}
		adds = append(adds, domain.ItemAdd{ProductID: it.ProductID, Quantity: it.Quantity, CustomBlendMix: it.CustomBlendMix})
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	if err := s.ensureProducts(ctx, adds, "items"); err != nil {
		return nil, err
	}

	sourceID := source.ID
	order := &domain.Order{
		PONumber:            generatePONumber(),
		ProjectID:           source.ProjectID,
		ClientID:            source.ClientID,
		OrderStatus:         domain.OrderStatusDraft,
		PaymentStatus:       domain.PaymentStatusUnpaid,
		DeliveryAddress:     source.DeliveryAddress,
		Latitude:            source.Latitude,
		Longitude:           source.Longitude,
		DeliveryMethod:      source.DeliveryMethod,
		ContactPersonName:   source.ContactPersonName,
		ContactPersonNumber: source.ContactPersonNumber,
		SiteInstructions:    source.SiteInstructions,
		RepeatOfID:          &sourceID,
	}
	for _, add := range adds {
		item := domain.OrderItem{
			ProductID:      add.ProductID,
			Quantity:       add.Quantity,
			CustomBlendMix: add.CustomBlendMix,
			DeliveryType:   domain.DeliveryTypeSupplier,
		}
		s.assignCheapestSupplier(ctx, &item)
		order.Items = append(order.Items, item)
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create repeat order: %w", err)
	}
	created, err := s.reprice(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, order.ID, "Order repeated", fmt.Sprintf("Repeated from order %s", source.PONumber))
	s.logger.Info("order repeated",
		zap.Uint("source_order_id", source.ID),
		zap.Uint("order_id", order.ID),
		zap.Int("items", len(order.Items)))

	dto := mapper.ToOrderDTO(created, user.Role, s.calculator.Price(mapper.ToPricingInput(created)))
	return &dto, nil
}

// MarkRepeat flags an order as a repeat order. Marking twice is a no-op.
func (s *OrderService) MarkRepeat(ctx context.Context, orderID uint) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fulfillment.EnsureMarkRepeat(order.OrderStatus, user.Role); err != nil {
		return nil, err
	}
	if !order.RepeatOrder {
		if err := s.orderRepo.SetRepeatOrder(ctx, orderID, true); err != nil {
			return nil, fmt.Errorf("failed to mark repeat order: %w", err)
		}
		order.RepeatOrder = true
		s.logActivity(ctx, orderID, "Marked as repeat order", "")
	}
	dto := mapper.ToOrderDTO(order, user.Role, s.calculator.Price(mapper.ToPricingInput(order)))
	return &dto, nil
}

// UpdateCharges sets the order level discount and other charges
func (s *OrderService) UpdateCharges(ctx context.Context, orderID uint, req *domain.UpdateChargesRequest) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fulfillment.EnsureReprice(order.OrderStatus, user.Role); err != nil {
		return nil, err
	}
	if req.Discount != nil {
		if req.Discount.IsNegative() {
			return nil, fmt.Errorf("%w: discount must not be negative", ErrInvalidInput)
		}
		order.Discount = *req.Discount
	}
	if req.OtherCharges != nil {
		order.OtherCharges = *req.OtherCharges
	}

	b := s.calculator.Price(mapper.ToPricingInput(order))
	if err := s.saveTotals(ctx, order, b); err != nil {
		return nil, err
	}
	applyTotals(order, b)

	s.logActivity(ctx, orderID, "Charges updated",
		fmt.Sprintf("Discount %s, other charges %s", order.Discount.StringFixed(2), order.OtherCharges.StringFixed(2)))

	dto := mapper.ToOrderDTO(order, user.Role, b)
	return &dto, nil
}

// UpdateItemPricing stores the admin pricing of an order item: supplier
// assignment, quote, unit cost, discount, delivery type and slot costs. A
// supplier assignment without a unit cost takes the supplier's standing offer.
// Once a supplier has confirmed a delivery of the item, neither the supplier
// nor that delivery's cost can change.
func (s *OrderService) UpdateItemPricing(ctx context.Context, itemID uint, req *domain.UpdateItemPricingRequest) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	item, err := s.orderRepo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("failed to get order item: %w", err)
	}
	current, err := s.load(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if err := fulfillment.EnsureReprice(current.OrderStatus, user.Role); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.SupplierID != nil {
		supplier, err := s.supplierRepo.GetByID(ctx, *req.SupplierID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSupplierNotFound
			}
			return nil, fmt.Errorf("failed to get supplier: %w", err)
		}
		updates["supplier_id"] = supplier.ID
		if item.SupplierID == nil || *item.SupplierID != supplier.ID {
			if slot := firstConfirmed(item.Deliveries); slot != nil {
				return nil, &fulfillment.DeliveryLockedError{
					ItemID: item.ID,
					SlotID: slot.ID,
					Reason: "the supplier of an item with a confirmed delivery cannot change",
				}
			}
			updates["supplier_confirms"] = false
			updates["supplier_offer_id"] = nil
		}
		if req.SupplierUnitCost == nil {
			offer, err := s.offerRepo.Get(ctx, supplier.ID, item.ProductID)
			if err != nil {
				return nil, fmt.Errorf("failed to get supplier offer: %w", err)
			}
			if offer != nil {
				updates["supplier_offer_id"] = offer.ID
				updates["supplier_unit_cost"] = decimal.NewNullDecimal(offer.UnitCost)
			}
		}
	}
	if req.IsQuoted != nil {
		updates["is_quoted"] = *req.IsQuoted
	}
	if req.QuotedPrice != nil {
		updates["quoted_price"] = decimal.NewNullDecimal(*req.QuotedPrice)
	}
	if req.SupplierUnitCost != nil {
		updates["supplier_unit_cost"] = decimal.NewNullDecimal(*req.SupplierUnitCost)
	}
	if req.SupplierDiscount != nil {
		updates["supplier_discount"] = decimal.NewNullDecimal(*req.SupplierDiscount)
	}
	if req.DeliveryType != nil {
		if !req.DeliveryType.IsValid() {
			return nil, fmt.Errorf("%w: unknown delivery type %q", ErrInvalidInput, *req.DeliveryType)
		}
		updates["delivery_type"] = *req.DeliveryType
	}

	slotCosts := make(map[uint]decimal.Decimal, len(req.SlotCosts))
	for _, sc := range req.SlotCosts {
		if sc.DeliveryCost.IsNegative() {
			return nil, fmt.Errorf("%w: delivery cost must not be negative", ErrInvalidInput)
		}
		for _, d := range item.Deliveries {
			if d.ID == sc.DeliveryID && d.SupplierConfirms && !d.DeliveryCost.Equal(sc.DeliveryCost) {
				return nil, &fulfillment.DeliveryLockedError{
					ItemID: item.ID,
					SlotID: d.ID,
					Reason: "only the delivery date and time can be changed",
				}
			}
		}
		slotCosts[sc.DeliveryID] = sc.DeliveryCost
	}

	if err := s.orderRepo.UpdateItemPricing(ctx, itemID, updates, slotCosts); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to update item pricing: %w", err)
	}

	order, err := s.reprice(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, item.OrderID, "Item pricing updated", fmt.Sprintf("Pricing of item %d updated", itemID))
	s.logger.Info("item pricing updated",
		zap.Uint("order_id", item.OrderID),
		zap.Uint("order_item_id", itemID),
		zap.String("total", order.TotalPrice.String()))

	dto := mapper.ToOrderDTO(order, user.Role, s.calculator.Price(mapper.ToPricingInput(order)))
	return &dto, nil
}

// ConfirmDelivery records the supplier's confirmation of a delivery slot.
// Confirmed slots can afterwards only be rescheduled. Confirming twice is a no-op.
func (s *OrderService) ConfirmDelivery(ctx context.Context, slotID uint) (*domain.DeliverySlotDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !user.HasRole(domain.RoleSupplier, domain.RoleAdmin) {
		return nil, ErrPermissionDenied
	}

	slot, err := s.orderRepo.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	item, err := s.orderRepo.GetItem(ctx, slot.OrderItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order item: %w", err)
	}
	if user.Role == domain.RoleSupplier {
		if user.SupplierID == nil || item.SupplierID == nil || *item.SupplierID != *user.SupplierID {
			return nil, ErrDeliveryNotFound
		}
	}

	order, err := s.load(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if !fulfillment.IsOpen(order.OrderStatus) {
		return nil, &fulfillment.WorkflowViolationError{
			Action: fulfillment.ActionConfirm,
			Status: order.OrderStatus,
			Role:   user.Role,
			Reason: "order is closed",
		}
	}

	if !slot.SupplierConfirms {
		if err := s.orderRepo.ConfirmSlot(ctx, slot); err != nil {
			return nil, fmt.Errorf("failed to confirm delivery: %w", err)
		}
		slot.SupplierConfirms = true
		s.logActivity(ctx, item.OrderID, "Delivery confirmed",
			fmt.Sprintf("Delivery on %s confirmed by supplier", slot.DeliveryDate.Format("2006-01-02")))
		s.logger.Info("delivery confirmed",
			zap.Uint("order_id", item.OrderID),
			zap.Uint("delivery_id", slotID),
			zap.Uint("user_id", user.UserID))
	}

	dto := mapper.ToDeliverySlotDTO(slot, user.IsAdmin())
	return &dto, nil
}

func firstConfirmed(slots []domain.DeliverySlot) *domain.DeliverySlot {
	for i := range slots {
		if slots[i].SupplierConfirms {
			return &slots[i]
		}
	}
	return nil
}
