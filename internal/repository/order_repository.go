package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
)

// OrderRepository handles persistence of orders with their items and
// delivery slots.
//
// Index recommendations:
// - CREATE INDEX idx_order_items_supplier_id ON order_items(supplier_id) WHERE supplier_id IS NOT NULL;
// - CREATE INDEX idx_orders_client_status ON orders(client_id, order_status);
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// OrderTotals are the derived money columns of an order
type OrderTotals struct {
	CustomerItemCost     decimal.Decimal
	CustomerDeliveryCost decimal.Decimal
	GSTTax               decimal.Decimal
	Discount             decimal.Decimal
	OtherCharges         decimal.Decimal
	TotalPrice           decimal.Decimal
}

var orderSortFields = map[string]string{
	"created_at":   "orders.created_at",
	"updated_at":   "orders.updated_at",
	"total_price":  "orders.total_price",
	"order_status": "orders.order_status",
	"po_number":    "orders.po_number",
}

func preloadOrder(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Project").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.Product").
		Preload("Items.Supplier").
		Preload("Items.Deliveries", func(db *gorm.DB) *gorm.DB {
			return db.Order("delivery_slots.delivery_date ASC, delivery_slots.id ASC")
		})
}

// Create inserts an order together with its items and delivery slots
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID loads an order with its project, items and slots, scoped to the caller
func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*domain.Order, error) {
	var order domain.Order
	query := preloadOrder(r.db.WithContext(ctx).Model(&domain.Order{})).Where("orders.id = ?", id)
	query = ApplyActorScope(ctx, query)
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) filtered(ctx context.Context, filters *domain.OrderFilters) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&domain.Order{})
	query = ApplyActorScope(ctx, query)
	if filters == nil {
		return query.Where("orders.is_archived = ?", false)
	}
	if !filters.IncludeArchived {
		query = query.Where("orders.is_archived = ?", false)
	}
	if filters.ProjectID != nil {
		query = query.Where("orders.project_id = ?", *filters.ProjectID)
	}
	if filters.Status != nil {
		query = query.Where("orders.order_status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("orders.payment_status = ?", *filters.PaymentStatus)
	}
	return query
}

// List returns a page of orders visible to the caller
func (r *OrderRepository) List(ctx context.Context, page, pageSize int, filters *domain.OrderFilters, sort SortConfig) ([]domain.Order, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int64
	if err := r.filtered(ctx, filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []domain.Order
	err := preloadOrder(r.filtered(ctx, filters)).
		Order(BuildOrderClause(sort, orderSortFields, "orders.created_at DESC")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	return orders, total, err
}

// ListAll returns every order matching the filters, used for exports
func (r *OrderRepository) ListAll(ctx context.Context, filters *domain.OrderFilters) ([]domain.Order, error) {
	var orders []domain.Order
	err := preloadOrder(r.filtered(ctx, filters)).Order("orders.created_at ASC").Find(&orders).Error
	return orders, err
}

// ListIDs returns the ids of every order, archived ones included
func (r *OrderRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.Order{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// ApplyEdit executes an order edit instruction set in a single transaction.
// The payload must already be validated against the persisted order.
func (r *OrderRepository) ApplyEdit(ctx context.Context, orderID uint, p *domain.OrderEditPayload) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !p.Order.IsEmpty() {
			updates := map[string]interface{}{}
			if p.Order.ContactPersonName != nil {
				updates["contact_person_name"] = *p.Order.ContactPersonName
			}
			if p.Order.ContactPersonNumber != nil {
				updates["contact_person_number"] = *p.Order.ContactPersonNumber
			}
			if p.Order.SiteInstructions != nil {
				updates["site_instructions"] = *p.Order.SiteInstructions
			}
			if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update order fields: %w", err)
			}
		}

		if len(p.ItemsRemove) > 0 {
			if err := tx.Where("order_item_id IN ?", p.ItemsRemove).Delete(&domain.DeliverySlot{}).Error; err != nil {
				return fmt.Errorf("failed to remove deliveries of removed items: %w", err)
			}
			if err := tx.Where("order_id = ? AND id IN ?", orderID, p.ItemsRemove).Delete(&domain.OrderItem{}).Error; err != nil {
				return fmt.Errorf("failed to remove items: %w", err)
			}
		}

		for i, add := range p.ItemsAdd {
			slots, err := toDeliverySlots(add.Deliveries)
			if err != nil {
				return fmt.Errorf("items_add[%d]: %w", i, err)
			}
			item := domain.OrderItem{
				OrderID:        orderID,
				ProductID:      add.ProductID,
				Quantity:       add.Quantity,
				CustomBlendMix: blankToNil(add.CustomBlendMix),
				DeliveryType:   domain.DeliveryTypeSupplier,
				Deliveries:     slots,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to add item: %w", err)
			}
		}

		for i, up := range p.ItemsUpdate {
			if err := applyItemUpdate(tx, orderID, up); err != nil {
				return fmt.Errorf("items_update[%d]: %w", i, err)
			}
		}

		return tx.Model(&domain.Order{}).Where("id = ?", orderID).Update("updated_at", time.Now().UTC()).Error
	})
}

func applyItemUpdate(tx *gorm.DB, orderID uint, up domain.ItemUpdate) error {
	updates := map[string]interface{}{}
	if up.Quantity != nil {
		updates["quantity"] = *up.Quantity
	}
	if up.CustomBlendMix != nil {
		if *up.CustomBlendMix == "" {
			updates["custom_blend_mix"] = nil
		} else {
			updates["custom_blend_mix"] = *up.CustomBlendMix
		}
	}
	if len(updates) > 0 {
		res := tx.Model(&domain.OrderItem{}).Where("id = ? AND order_id = ?", up.OrderItemID, orderID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
	}

	if len(up.DeliveriesRemove) > 0 {
		if err := tx.Where("order_item_id = ? AND id IN ?", up.OrderItemID, up.DeliveriesRemove).
			Delete(&domain.DeliverySlot{}).Error; err != nil {
			return fmt.Errorf("failed to remove deliveries: %w", err)
		}
	}

	for _, d := range up.DeliveriesUpdate {
		if d.ID == nil {
			return fmt.Errorf("delivery update without id")
		}
		updates, err := slotUpdates(d)
		if err != nil {
			return err
		}
		res := tx.Model(&domain.DeliverySlot{}).Where("id = ? AND order_item_id = ?", *d.ID, up.OrderItemID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update delivery %d: %w", *d.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
	}

	for _, d := range up.DeliveriesAdd {
		slot, err := toDeliverySlot(d)
		if err != nil {
			return err
		}
		slot.OrderItemID = up.OrderItemID
		if err := tx.Create(&slot).Error; err != nil {
			return fmt.Errorf("failed to add delivery: %w", err)
		}
	}
	return syncItemConfirmation(tx, up.OrderItemID)
}

// syncItemConfirmation derives an item's supplier_confirms from its slots:
// true once every slot is confirmed, false while any is open. An item with
// no supplier and no confirmed slot keeps its null state.
func syncItemConfirmation(tx *gorm.DB, itemID uint) error {
	var total, confirmed int64
	if err := tx.Model(&domain.DeliverySlot{}).Where("order_item_id = ?", itemID).Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count deliveries: %w", err)
	}
	if err := tx.Model(&domain.DeliverySlot{}).
		Where("order_item_id = ? AND supplier_confirms = ?", itemID, true).
		Count(&confirmed).Error; err != nil {
		return fmt.Errorf("failed to count confirmed deliveries: %w", err)
	}
	query := tx.Model(&domain.OrderItem{}).Where("id = ?", itemID)
	if confirmed == 0 {
		query = query.Where("(supplier_id IS NOT NULL OR supplier_confirms IS NOT NULL)")
	}
	return query.Update("supplier_confirms", total > 0 && confirmed == total).Error
}

func slotUpdates(d domain.DeliveryInput) (map[string]interface{}, error) {
	date, err := time.Parse(dateLayout, d.DeliveryDate)
	if err != nil {
		return nil, fmt.Errorf("invalid delivery date %q: %w", d.DeliveryDate, err)
	}
	updates := map[string]interface{}{
		"quantity":      d.Quantity,
		"delivery_date": date,
		"delivery_time": d.DeliveryTime,
		"truck_type":    d.TruckType,
	}
	if d.LoadSize != nil {
		updates["load_size"] = decimal.NewNullDecimal(*d.LoadSize)
	}
	if d.DeliveryCost != nil {
		updates["delivery_cost"] = *d.DeliveryCost
	}
	return updates, nil
}

const dateLayout = "2006-01-02"

func toDeliverySlot(d domain.DeliveryInput) (domain.DeliverySlot, error) {
	date, err := time.Parse(dateLayout, d.DeliveryDate)
	if err != nil {
		return domain.DeliverySlot{}, fmt.Errorf("invalid delivery date %q: %w", d.DeliveryDate, err)
	}
	slot := domain.DeliverySlot{
		Quantity:     d.Quantity,
		DeliveryDate: date,
		DeliveryTime: d.DeliveryTime,
		TruckType:    d.TruckType,
		DeliveryCost: decimal.Zero,
		TimeInterval: d.TimeInterval,
	}
	if d.LoadSize != nil {
		slot.LoadSize = decimal.NewNullDecimal(*d.LoadSize)
	}
	if d.DeliveryCost != nil {
		slot.DeliveryCost = *d.DeliveryCost
	}
	return slot, nil
}

func toDeliverySlots(in []domain.DeliveryInput) ([]domain.DeliverySlot, error) {
	slots := make([]domain.DeliverySlot, 0, len(in))
	for j, d := range in {
		slot, err := toDeliverySlot(d)
		if err != nil {
			return nil, fmt.Errorf("deliveries[%d]: %w", j, err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// NewOrderItem converts a validated item with its deliveries into a model
func NewOrderItem(add domain.ItemAdd) (domain.OrderItem, error) {
	slots, err := toDeliverySlots(add.Deliveries)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return domain.OrderItem{
		ProductID:      add.ProductID,
		Quantity:       add.Quantity,
		CustomBlendMix: blankToNil(add.CustomBlendMix),
		DeliveryType:   domain.DeliveryTypeSupplier,
		Deliveries:     slots,
	}, nil
}

func blankToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// SaveTotals stores derived order totals and per item delivery costs
func (r *OrderRepository) SaveTotals(ctx context.Context, orderID uint, totals OrderTotals, itemDeliveryCosts map[uint]decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for itemID, cost := range itemDeliveryCosts {
			if err := tx.Model(&domain.OrderItem{}).
				Where("id = ? AND order_id = ?", itemID, orderID).
				Update("delivery_cost", cost).Error; err != nil {
				return fmt.Errorf("failed to store item delivery cost: %w", err)
			}
		}
		return tx.Model(&domain.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
			"customer_item_cost":     totals.CustomerItemCost,
			"customer_delivery_cost": totals.CustomerDeliveryCost,
			"gst_tax":                totals.GSTTax,
			"discount":               totals.Discount,
			"other_charges":          totals.OtherCharges,
			"total_price":            totals.TotalPrice,
		}).Error
	})
}

// UpdateStatus sets the workflow status of an order
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uint, status domain.OrderStatus) error {
	return r.updateColumn(ctx, orderID, "order_status", status)
}

// UpdatePaymentStatus sets the payment status of an order
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID uint, status domain.PaymentStatus) error {
	return r.updateColumn(ctx, orderID, "payment_status", status)
}

// SetArchived flags an order as archived; archived orders are hidden from listings
func (r *OrderRepository) SetArchived(ctx context.Context, orderID uint, archived bool) error {
	return r.updateColumn(ctx, orderID, "is_archived", archived)
}

// SetRepeatOrder flags an order as a repeat order
func (r *OrderRepository) SetRepeatOrder(ctx context.Context, orderID uint, repeat bool) error {
	return r.updateColumn(ctx, orderID, "repeat_order", repeat)
}

func (r *OrderRepository) updateColumn(ctx context.Context, orderID uint, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", orderID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetItem loads an order item with its deliveries
func (r *OrderRepository) GetItem(ctx context.Context, itemID uint) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := r.db.WithContext(ctx).
		Preload("Deliveries", func(db *gorm.DB) *gorm.DB { return db.Order("delivery_slots.id ASC") }).
		First(&item, "id = ?", itemID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemPricing stores the admin pricing of an item and its slot costs
func (r *OrderRepository) UpdateItemPricing(ctx context.Context, itemID uint, updates map[string]interface{}, slotCosts map[uint]decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&domain.OrderItem{}).Where("id = ?", itemID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update item pricing: %w", err)
			}
		}
		for slotID, cost := range slotCosts {
			res := tx.Model(&domain.DeliverySlot{}).
				Where("id = ? AND order_item_id = ?", slotID, itemID).
				Update("delivery_cost", cost)
			if res.Error != nil {
				return fmt.Errorf("failed to update delivery cost: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

// GetSlot loads a delivery slot
func (r *OrderRepository) GetSlot(ctx context.Context, slotID uint) (*domain.DeliverySlot, error) {
	var slot domain.DeliverySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", slotID).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// ConfirmSlot marks a delivery as confirmed by the supplier. The item is
// flagged confirmed once every one of its slots is.
func (r *OrderRepository) ConfirmSlot(ctx context.Context, slot *domain.DeliverySlot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.DeliverySlot{}).Where("id = ?", slot.ID).
			Update("supplier_confirms", true).Error; err != nil {
			return fmt.Errorf("failed to confirm delivery: %w", err)
		}
		return syncItemConfirmation(tx, slot.OrderItemID)
	})
}
