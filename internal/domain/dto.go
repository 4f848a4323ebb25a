package domain

import (
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Order edit payload (POST /order-edit/{orderId})
// ---------------------------------------------------------------------------

// DeliveryInput is one delivery slot as submitted by an editor. ID is nil for
// slots that do not exist yet.
type DeliveryInput struct {
	ID           *uint            `json:"id"`
	Quantity     decimal.Decimal  `json:"quantity"`
	DeliveryDate string           `json:"delivery_date"`
	DeliveryTime *string          `json:"delivery_time"`
	TruckType    TruckType        `json:"truck_type"`
	LoadSize     *decimal.Decimal `json:"load_size,omitempty"`
	TimeInterval *int             `json:"time_interval,omitempty"`
	DeliveryCost *decimal.Decimal `json:"delivery_cost,omitempty"`
}

// OrderFieldsUpdate carries the top-level order fields an editor may change.
// Monetary fields are never part of it.
type OrderFieldsUpdate struct {
	ContactPersonName   *string `json:"contact_person_name,omitempty" validate:"omitempty,max=200"`
	ContactPersonNumber *string `json:"contact_person_number,omitempty" validate:"omitempty,max=50"`
	SiteInstructions    *string `json:"site_instructions,omitempty" validate:"omitempty,max=2000"`
}

// IsEmpty reports whether no order field is being changed
func (u *OrderFieldsUpdate) IsEmpty() bool {
	return u == nil || (u.ContactPersonName == nil && u.ContactPersonNumber == nil && u.SiteInstructions == nil)
}

// ItemAdd is a new product line with its fully allocated delivery slots
type ItemAdd struct {
	ProductID      uint            `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	CustomBlendMix *string         `json:"custom_blend_mix,omitempty"`
	Deliveries     []DeliveryInput `json:"deliveries"`
}

// ItemUpdate changes an existing product line. Deliveries is the full desired
// slot list; the add/update/remove groups are the same change expressed as a diff.
type ItemUpdate struct {
	OrderItemID      uint             `json:"order_item_id"`
	Quantity         *decimal.Decimal `json:"quantity,omitempty"`
	CustomBlendMix   *string          `json:"custom_blend_mix,omitempty"`
	Deliveries       []DeliveryInput  `json:"deliveries,omitempty"`
	DeliveriesAdd    []DeliveryInput  `json:"deliveries_add,omitempty"`
	DeliveriesUpdate []DeliveryInput  `json:"deliveries_update,omitempty"`
	DeliveriesRemove []uint           `json:"deliveries_remove,omitempty"`
}

// HasSlotChanges reports whether the update touches the item's delivery slots
func (u ItemUpdate) HasSlotChanges() bool {
	return u.Deliveries != nil || len(u.DeliveriesAdd) > 0 || len(u.DeliveriesUpdate) > 0 || len(u.DeliveriesRemove) > 0
}

// OrderEditPayload is the instruction set produced by the item editor and
// accepted by the order-edit endpoint
type OrderEditPayload struct {
	Order       *OrderFieldsUpdate `json:"order,omitempty"`
	ItemsAdd    []ItemAdd          `json:"items_add,omitempty"`
	ItemsUpdate []ItemUpdate       `json:"items_update,omitempty"`
	ItemsRemove []uint             `json:"items_remove,omitempty"`
}

// IsEmpty reports whether the payload carries no instruction at all
func (p *OrderEditPayload) IsEmpty() bool {
	return p == nil || (p.Order.IsEmpty() && len(p.ItemsAdd) == 0 && len(p.ItemsUpdate) == 0 && len(p.ItemsRemove) == 0)
}

// ---------------------------------------------------------------------------
// Order requests
// ---------------------------------------------------------------------------

// CreateOrderRequest places a new order for one of the caller's projects
type CreateOrderRequest struct {
	ProjectID           uint        `json:"project_id" validate:"required"`
	PONumber            string      `json:"po_number,omitempty" validate:"max=50"`
	DeliveryAddress     string      `json:"delivery_address,omitempty" validate:"max=500"`
	Latitude            *float64    `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude           *float64    `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	DeliveryMethod      string      `json:"delivery_method,omitempty" validate:"max=50"`
	ContactPersonName   string      `json:"contact_person_name,omitempty" validate:"max=200"`
	ContactPersonNumber string      `json:"contact_person_number,omitempty" validate:"max=50"`
	SiteInstructions    string      `json:"site_instructions,omitempty" validate:"max=2000"`
	Items               []ItemAdd   `json:"items" validate:"required,min=1"`
	Status              OrderStatus `json:"order_status,omitempty"`
}

// SetOrderStatusRequest moves an order through its workflow
type SetOrderStatusRequest struct {
	OrderStatus OrderStatus `json:"order_status" validate:"required"`
}

// RepeatItem is one product line of a repeated order
type RepeatItem struct {
	ProductID      uint            `json:"product_id" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gt=0"`
	CustomBlendMix *string         `json:"custom_blend_mix,omitempty" validate:"omitempty,max=2000"`
}

// RepeatOrderRequest seeds a new draft order from a previous one
type RepeatOrderRequest struct {
	Items []RepeatItem `json:"items" validate:"required,min=1,dive"`
}

// ProcessPaymentRequest settles an order with a tokenized card
type ProcessPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,max=200"`
	OrderID         uint   `json:"order_id" validate:"required"`
}

// UpdateChargesRequest sets the admin controlled order level adjustments
type UpdateChargesRequest struct {
	Discount     *decimal.Decimal `json:"discount,omitempty" validate:"omitempty,gte=0"`
	OtherCharges *decimal.Decimal `json:"other_charges,omitempty"`
}

// SlotCostInput sets the delivery cost of one slot
type SlotCostInput struct {
	DeliveryID   uint            `json:"delivery_id" validate:"required"`
	DeliveryCost decimal.Decimal `json:"delivery_cost" validate:"gte=0"`
}

// UpdateItemPricingRequest is the admin pricing form of one order item
type UpdateItemPricingRequest struct {
	SupplierID       *uint            `json:"supplier_id,omitempty"`
	IsQuoted         *bool            `json:"is_quoted,omitempty"`
	QuotedPrice      *decimal.Decimal `json:"quoted_price,omitempty" validate:"omitempty,gte=0"`
	SupplierUnitCost *decimal.Decimal `json:"supplier_unit_cost,omitempty" validate:"omitempty,gte=0"`
	SupplierDiscount *decimal.Decimal `json:"supplier_discount,omitempty" validate:"omitempty,gte=0"`
	DeliveryType     *DeliveryType    `json:"delivery_type,omitempty"`
	SlotCosts        []SlotCostInput  `json:"slot_costs,omitempty" validate:"omitempty,dive"`
}

// CreateProjectRequest registers a delivery site for the calling client
type CreateProjectRequest struct {
	Name              string   `json:"name" validate:"required,max=200"`
	DeliveryAddress   string   `json:"delivery_address" validate:"required,max=500"`
	Latitude          *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude         *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	SiteContactName   string   `json:"site_contact_name,omitempty" validate:"max=200"`
	SiteContactNumber string   `json:"site_contact_number,omitempty" validate:"max=50"`
	SiteInstructions  string   `json:"site_instructions,omitempty" validate:"max=2000"`
}

// UpdateProjectRequest replaces a project's editable fields
type UpdateProjectRequest = CreateProjectRequest

// CreateProductRequest adds an entry to the materials catalog
type CreateProductRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Category string `json:"category,omitempty" validate:"max=100"`
	Unit     string `json:"unit,omitempty" validate:"max=20"`
}

// CreateSupplierRequest registers a supplier that is not synced from the ERP
type CreateSupplierRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone        string `json:"phone,omitempty" validate:"max=50"`
	ERPReference string `json:"erp_reference,omitempty" validate:"max=100"`
}

// ---------------------------------------------------------------------------
// Read models
// ---------------------------------------------------------------------------

type ProjectDTO struct {
	ID                uint     `json:"id"`
	ClientID          uint     `json:"client_id"`
	Name              string   `json:"name"`
	DeliveryAddress   string   `json:"delivery_address"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	SiteContactName   string   `json:"site_contact_name,omitempty"`
	SiteContactNumber string   `json:"site_contact_number,omitempty"`
	SiteInstructions  string   `json:"site_instructions,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

type ProductDTO struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Unit     string `json:"unit"`
}

type SupplierDTO struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ERPReference string `json:"erp_reference,omitempty"`
	IsActive     bool   `json:"is_active"`
}

type SupplierOfferDTO struct {
	ID           uint            `json:"id"`
	SupplierID   uint            `json:"supplier_id"`
	SupplierName string          `json:"supplier_name,omitempty"`
	ProductID    uint            `json:"product_id"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SyncedAt     *string         `json:"synced_at,omitempty"`
}

// PriceSyncResultDTO summarizes one ERP price list import
type PriceSyncResultDTO struct {
	Suppliers int `json:"suppliers"`
	Offers    int `json:"offers"`
	Skipped   int `json:"skipped"`
}

// DeliverySlotDTO is the read model of a slot. DeliveryCost is only populated for admins.
type DeliverySlotDTO struct {
	ID               uint             `json:"id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	DeliveryDate     string           `json:"delivery_date"`
	DeliveryTime     *string          `json:"delivery_time"`
	TruckType        TruckType        `json:"truck_type"`
	LoadSize         *decimal.Decimal `json:"load_size,omitempty"`
	DeliveryCost     *decimal.Decimal `json:"delivery_cost,omitempty"`
	SupplierConfirms bool             `json:"supplier_confirms"`
}

// OrderItemDTO is the read model of an order item. Supplier cost fields are only
// populated for admins.
type OrderItemDTO struct {
	ID               uint              `json:"id"`
	ProductID        uint              `json:"product_id"`
	ProductName      string            `json:"product_name,omitempty"`
	SupplierID       *uint             `json:"supplier_id,omitempty"`
	SupplierName     string            `json:"supplier_name,omitempty"`
	Quantity         decimal.Decimal   `json:"quantity"`
	IsQuoted         bool              `json:"is_quoted"`
	QuotedPrice      *decimal.Decimal  `json:"quoted_price,omitempty"`
	SupplierUnitCost *decimal.Decimal  `json:"supplier_unit_cost,omitempty"`
	SupplierDiscount *decimal.Decimal  `json:"supplier_discount,omitempty"`
	DeliveryCost     *decimal.Decimal  `json:"delivery_cost,omitempty"`
	DeliveryType     DeliveryType      `json:"delivery_type"`
	SupplierConfirms *bool             `json:"supplier_confirms"`
	CustomBlendMix   *string           `json:"custom_blend_mix,omitempty"`
	IsAvailable      bool              `json:"is_available"`
	Deliveries       []DeliverySlotDTO `json:"deliveries"`
}

type OrderDTO struct {
	ID                  uint           `json:"id"`
	PONumber            string         `json:"po_number"`
	ProjectID           uint           `json:"project_id"`
	ProjectName         string         `json:"project_name,omitempty"`
	ClientID            uint           `json:"client_id"`
	OrderStatus         OrderStatus    `json:"order_status"`
	PaymentStatus       PaymentStatus  `json:"payment_status"`
	DeliveryAddress     string         `json:"delivery_address"`
	Latitude            *float64       `json:"latitude,omitempty"`
	Longitude           *float64       `json:"longitude,omitempty"`
	DeliveryDate        *string        `json:"delivery_date"`
	DeliveryTime        *string        `json:"delivery_time"`
	DeliveryMethod      string         `json:"delivery_method,omitempty"`
	ContactPersonName   string         `json:"contact_person_name"`
	ContactPersonNumber string         `json:"contact_person_number"`
	SiteInstructions    string         `json:"site_instructions"`
	RepeatOrder         bool           `json:"repeat_order"`
	RepeatOfID          *uint          `json:"repeat_of_id,omitempty"`
	IsArchived          bool           `json:"is_archived"`
	Pricing             interface{}    `json:"pricing"`
	Items               []OrderItemDTO `json:"items"`
	CreatedAt           string         `json:"created_at"`
	UpdatedAt           string         `json:"updated_at"`
}

type OrderActivityDTO struct {
	ID        uint   `json:"id"`
	OrderID   uint   `json:"order_id"`
	ActorID   uint   `json:"actor_id"`
	ActorRole Role   `json:"actor_role"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	CreatedAt string `json:"created_at"`
}

type PaymentDTO struct {
	ID                uint            `json:"id"`
	OrderID           uint            `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	Result            PaymentResult   `json:"result"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	CreatedAt         string          `json:"created_at"`
}

type InvoiceDocumentDTO struct {
	ID          uint   `json:"id"`
	OrderID     uint   `json:"order_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// OrderFilters narrows an order listing
type OrderFilters struct {
	ProjectID       *uint
	Status          *OrderStatus
	PaymentStatus   *PaymentStatus
	IncludeArchived bool
}
