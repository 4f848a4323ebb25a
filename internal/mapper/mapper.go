package mapper

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
)

const (
	timestampLayout = "2006-01-02T15:04:05Z"
	dateLayout      = "2006-01-02"
)

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	return domain.ProjectDTO{
		ID:                project.ID,
		ClientID:          project.ClientID,
		Name:              project.Name,
		DeliveryAddress:   project.DeliveryAddress,
		Latitude:          project.Latitude,
		Longitude:         project.Longitude,
		SiteContactName:   project.SiteContactName,
		SiteContactNumber: project.SiteContactNumber,
		SiteInstructions:  project.SiteInstructions,
		CreatedAt:         project.CreatedAt.Format(timestampLayout),
		UpdatedAt:         project.UpdatedAt.Format(timestampLayout),
	}
}

// ToProductDTO converts Product to ProductDTO
func ToProductDTO(product *domain.Product) domain.ProductDTO {
	return domain.ProductDTO{
		ID:       product.ID,
		Name:     product.Name,
		Category: product.Category,
		Unit:     product.Unit,
	}
}

// ToSupplierDTO converts Supplier to SupplierDTO
func ToSupplierDTO(supplier *domain.Supplier) domain.SupplierDTO {
	return domain.SupplierDTO{
		ID:           supplier.ID,
		Name:         supplier.Name,
		Email:        supplier.Email,
		Phone:        supplier.Phone,
		ERPReference: supplier.ERPReference,
		IsActive:     supplier.IsActive,
	}
}

// ToSupplierOfferDTO converts SupplierOffer to SupplierOfferDTO
func ToSupplierOfferDTO(offer *domain.SupplierOffer) domain.SupplierOfferDTO {
	dto := domain.SupplierOfferDTO{
		ID:         offer.ID,
		SupplierID: offer.SupplierID,
		ProductID:  offer.ProductID,
		UnitCost:   offer.UnitCost,
	}
	if offer.Supplier != nil {
		dto.SupplierName = offer.Supplier.Name
	}
	if offer.SyncedAt != nil {
		synced := offer.SyncedAt.Format(timestampLayout)
		dto.SyncedAt = &synced
	}
	return dto
}

// ToOrderDTO converts an order with its items and slots into the read model
// for a role. Supplier cost fields and per slot delivery costs are admin only.
func ToOrderDTO(order *domain.Order, role domain.Role, pricing fulfillment.Breakdown) domain.OrderDTO {
	dto := domain.OrderDTO{
		ID:                  order.ID,
		PONumber:            order.PONumber,
		ProjectID:           order.ProjectID,
		ClientID:            order.ClientID,
		OrderStatus:         order.OrderStatus,
		PaymentStatus:       order.PaymentStatus,
		DeliveryAddress:     order.DeliveryAddress,
		Latitude:            order.Latitude,
		Longitude:           order.Longitude,
		DeliveryTime:        order.DeliveryTime,
		DeliveryMethod:      order.DeliveryMethod,
		ContactPersonName:   order.ContactPersonName,
		ContactPersonNumber: order.ContactPersonNumber,
		SiteInstructions:    order.SiteInstructions,
		RepeatOrder:         order.RepeatOrder,
		RepeatOfID:          order.RepeatOfID,
		IsArchived:          order.IsArchived,
		Pricing:             pricing.ViewFor(role),
		Items:               make([]domain.OrderItemDTO, 0, len(order.Items)),
		CreatedAt:           order.CreatedAt.Format(timestampLayout),
		UpdatedAt:           order.UpdatedAt.Format(timestampLayout),
	}
	if order.Project != nil {
		dto.ProjectName = order.Project.Name
	}
	if order.DeliveryDate != nil {
		d := order.DeliveryDate.Format(dateLayout)
		dto.DeliveryDate = &d
	}

	available := make(map[uint]bool, len(pricing.Items))
	for _, ib := range pricing.Items {
		available[ib.ItemID] = ib.IsAvailable
	}
	for i := range order.Items {
		item := ToOrderItemDTO(&order.Items[i], role)
		item.IsAvailable = available[item.ID]
		dto.Items = append(dto.Items, item)
	}
	return dto
}

// ToOrderItemDTO converts an order item for a role
func ToOrderItemDTO(item *domain.OrderItem, role domain.Role) domain.OrderItemDTO {
	admin := role == domain.RoleAdmin
	dto := domain.OrderItemDTO{
		ID:               item.ID,
		ProductID:        item.ProductID,
		SupplierID:       item.SupplierID,
		Quantity:         item.Quantity,
		IsQuoted:         item.IsQuoted,
		DeliveryType:     item.DeliveryType,
		SupplierConfirms: item.SupplierConfirms,
		CustomBlendMix:   item.CustomBlendMix,
		Deliveries:       make([]domain.DeliverySlotDTO, 0, len(item.Deliveries)),
	}
	if item.Product != nil {
		dto.ProductName = item.Product.Name
	}
	if item.Supplier != nil {
		dto.SupplierName = item.Supplier.Name
	}
	if item.IsQuoted {
		dto.QuotedPrice = nullDecimalPtr(item.QuotedPrice)
	}
	if admin {
		dto.SupplierUnitCost = nullDecimalPtr(item.SupplierUnitCost)
		dto.SupplierDiscount = nullDecimalPtr(item.SupplierDiscount)
		cost := item.DeliveryCost
		dto.DeliveryCost = &cost
	}
	for i := range item.Deliveries {
		dto.Deliveries = append(dto.Deliveries, ToDeliverySlotDTO(&item.Deliveries[i], admin))
	}
	return dto
}

// ToDeliverySlotDTO converts a delivery slot; withCost discloses its delivery cost
func ToDeliverySlotDTO(slot *domain.DeliverySlot, withCost bool) domain.DeliverySlotDTO {
	dto := domain.DeliverySlotDTO{
		ID:               slot.ID,
		Quantity:         slot.Quantity,
		DeliveryDate:     slot.DeliveryDate.Format(dateLayout),
		DeliveryTime:     slot.DeliveryTime,
		TruckType:        slot.TruckType,
		LoadSize:         nullDecimalPtr(slot.LoadSize),
		SupplierConfirms: slot.SupplierConfirms,
	}
	if withCost {
		cost := slot.DeliveryCost
		dto.DeliveryCost = &cost
	}
	return dto
}

// ToActivityDTO converts OrderActivity to OrderActivityDTO
func ToActivityDTO(activity *domain.OrderActivity) domain.OrderActivityDTO {
	return domain.OrderActivityDTO{
		ID:        activity.ID,
		OrderID:   activity.OrderID,
		ActorID:   activity.ActorID,
		ActorRole: activity.ActorRole,
		Title:     activity.Title,
		Body:      activity.Body,
		CreatedAt: activity.CreatedAt.Format(timestampLayout),
	}
}

// ToPaymentDTO converts Payment to PaymentDTO with the resulting order payment status
func ToPaymentDTO(payment *domain.Payment, status domain.PaymentStatus) domain.PaymentDTO {
	return domain.PaymentDTO{
		ID:                payment.ID,
		OrderID:           payment.OrderID,
		Amount:            payment.Amount,
		Result:            payment.Result,
		ProviderReference: payment.ProviderReference,
		FailureReason:     payment.FailureReason,
		PaymentStatus:     status,
		CreatedAt:         payment.CreatedAt.Format(timestampLayout),
	}
}

// ToInvoiceDocumentDTO converts InvoiceDocument to InvoiceDocumentDTO
func ToInvoiceDocumentDTO(doc *domain.InvoiceDocument) domain.InvoiceDocumentDTO {
	return domain.InvoiceDocumentDTO{
		ID:          doc.ID,
		OrderID:     doc.OrderID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		CreatedAt:   doc.CreatedAt.Format(timestampLayout),
	}
}

// ToOrderState converts a persisted order into the state the item editor diffs against
func ToOrderState(order *domain.Order) fulfillment.OrderState {
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
		state.Items = append(state.Items, ToItemState(&it))
	}
	return state
}

// ToItemState converts a persisted order item into engine state
func ToItemState(item *domain.OrderItem) fulfillment.Item {
	out := fulfillment.Item{
		ID:             item.ID,
		ProductID:      item.ProductID,
		Quantity:       item.Quantity,
		CustomBlendMix: item.CustomBlendMix,
		Slots:          make([]fulfillment.Slot, 0, len(item.Deliveries)),
	}
	for _, s := range item.Deliveries {
		out.Slots = append(out.Slots, fulfillment.Slot{
			ID:               s.ID,
			Quantity:         s.Quantity,
			DeliveryDate:     s.DeliveryDate.Format(dateLayout),
			DeliveryTime:     s.DeliveryTime,
			TruckType:        s.TruckType,
			DeliveryCost:     s.DeliveryCost,
			SupplierConfirms: s.SupplierConfirms,
			LoadSize:         nullDecimalPtr(s.LoadSize),
		})
	}
	return out
}

// ToPricingInput collects the price inputs of an order
func ToPricingInput(order *domain.Order) fulfillment.PricingInput {
	in := fulfillment.PricingInput{
		Items:        make([]fulfillment.PricingItem, 0, len(order.Items)),
		Discount:     order.Discount,
		OtherCharges: order.OtherCharges,
	}
	for _, it := range order.Items {
		pi := fulfillment.PricingItem{
			ItemID:           it.ID,
			Quantity:         it.Quantity,
			SupplierAssigned: it.SupplierID != nil,
			IsQuoted:         it.IsQuoted,
			QuotedPrice:      it.QuotedPrice,
			SupplierUnitCost: it.SupplierUnitCost,
			SupplierDiscount: it.SupplierDiscount,
			DeliveryType:     it.DeliveryType,
			Slots:            make([]fulfillment.SlotCost, 0, len(it.Deliveries)),
		}
		for _, s := range it.Deliveries {
			pi.Slots = append(pi.Slots, fulfillment.SlotCost{SlotID: s.ID, Cost: s.DeliveryCost})
		}
		in.Items = append(in.Items, pi)
	}
	return in
}

// ToDeliveryInputs converts editor slot drafts back into submitted deliveries
func ToDeliveryInputs(slots []fulfillment.SlotDraft) []domain.DeliveryInput {
	out := make([]domain.DeliveryInput, 0, len(slots))
	for _, s := range slots {
		out = append(out, domain.DeliveryInput{
			ID:           s.ID,
			Quantity:     s.Quantity,
			DeliveryDate: s.DeliveryDate,
			DeliveryTime: s.DeliveryTime,
			TruckType:    s.TruckType,
			LoadSize:     s.LoadSize,
			TimeInterval: s.TimeInterval,
			DeliveryCost: s.DeliveryCost,
		})
	}
	return out
}

// ToSlotDrafts converts submitted deliveries into editor drafts. Slots without
// an id get a local id derived from their position.
func ToSlotDrafts(inputs []domain.DeliveryInput) []fulfillment.SlotDraft {
	out := make([]fulfillment.SlotDraft, 0, len(inputs))
	for j, d := range inputs {
		draft := fulfillment.SlotDraft{
			ID:           d.ID,
			Quantity:     d.Quantity,
			DeliveryDate: d.DeliveryDate,
			DeliveryTime: d.DeliveryTime,
			TruckType:    d.TruckType,
			DeliveryCost: d.DeliveryCost,
			LoadSize:     d.LoadSize,
			TimeInterval: d.TimeInterval,
		}
		if d.ID == nil {
			draft.LocalID = fmt.Sprintf("new-%d", j)
		}
		out = append(out, draft)
	}
	return out
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
