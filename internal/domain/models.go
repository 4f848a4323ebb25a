package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Quantities and amounts travel as JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// Base model with common fields
type BaseModel struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// Project is a client's delivery context. Orders inherit its address and site contact.
type Project struct {
	BaseModel
	ClientID          uint     `gorm:"not null;index;column:client_id"`
	Name              string   `gorm:"type:varchar(200);not null"`
	DeliveryAddress   string   `gorm:"type:varchar(500);not null;column:delivery_address"`
	Latitude          *float64 `gorm:"column:latitude"`
	Longitude         *float64 `gorm:"column:longitude"`
	SiteContactName   string   `gorm:"type:varchar(200);column:site_contact_name"`
	SiteContactNumber string   `gorm:"type:varchar(50);column:site_contact_number"`
	SiteInstructions  string   `gorm:"type:text;column:site_instructions"`
	Orders            []Order  `gorm:"foreignKey:ProjectID"`
}

// Product is an entry in the master materials catalog
type Product struct {
	BaseModel
	Name     string `gorm:"type:varchar(200);not null;index"`
	Category string `gorm:"type:varchar(100);index"`
	Unit     string `gorm:"type:varchar(20);not null;default:'t'"`
	IsActive bool   `gorm:"not null;default:true;column:is_active"`
}

// Supplier fulfils order items
type Supplier struct {
	BaseModel
	Name         string `gorm:"type:varchar(200);not null"`
	Email        string `gorm:"type:varchar(255)"`
	Phone        string `gorm:"type:varchar(50)"`
	ERPReference string `gorm:"type:varchar(100);uniqueIndex;column:erp_reference"`
	IsActive     bool   `gorm:"not null;default:true;column:is_active"`
}

// SupplierOffer is a supplier's standing unit cost for a product
type SupplierOffer struct {
	BaseModel
	SupplierID uint            `gorm:"not null;uniqueIndex:idx_supplier_product;column:supplier_id"`
	Supplier   *Supplier       `gorm:"foreignKey:SupplierID"`
	ProductID  uint            `gorm:"not null;uniqueIndex:idx_supplier_product;column:product_id"`
	Product    *Product        `gorm:"foreignKey:ProductID"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(12,4);not null;column:unit_cost"`
	SyncedAt   *time.Time      `gorm:"column:synced_at"`
}

// Order is a client's purchase of one or more products for one project
type Order struct {
	BaseModel
	PONumber             string          `gorm:"type:varchar(50);uniqueIndex;column:po_number"`
	ProjectID            uint            `gorm:"not null;index;column:project_id"`
	Project              *Project        `gorm:"foreignKey:ProjectID"`
	ClientID             uint            `gorm:"not null;index;column:client_id"`
	OrderStatus          OrderStatus     `gorm:"type:varchar(30);not null;default:'Draft';index;column:order_status"`
	PaymentStatus        PaymentStatus   `gorm:"type:varchar(30);not null;default:'Unpaid';column:payment_status"`
	DeliveryAddress      string          `gorm:"type:varchar(500);column:delivery_address"`
	Latitude             *float64        `gorm:"column:latitude"`
	Longitude            *float64        `gorm:"column:longitude"`
	DeliveryDate         *time.Time      `gorm:"type:date;column:delivery_date"`
	DeliveryTime         *string         `gorm:"type:varchar(5);column:delivery_time"`
	DeliveryMethod       string          `gorm:"type:varchar(50);column:delivery_method"`
	ContactPersonName    string          `gorm:"type:varchar(200);column:contact_person_name"`
	ContactPersonNumber  string          `gorm:"type:varchar(50);column:contact_person_number"`
	SiteInstructions     string          `gorm:"type:text;column:site_instructions"`
	RepeatOrder          bool            `gorm:"not null;default:false;column:repeat_order"`
	RepeatOfID           *uint           `gorm:"column:repeat_of_id"`
	CustomerItemCost     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0;column:customer_item_cost"`
	CustomerDeliveryCost decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0;column:customer_delivery_cost"`
	GSTTax               decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0;column:gst_tax"`
	Discount             decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	OtherCharges         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0;column:other_charges"`
	TotalPrice           decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0;column:total_price"`
	IsArchived           bool            `gorm:"not null;default:false;column:is_archived"`
	Items                []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem is one product line of an order. The sum of its delivery slot
// quantities must match Quantity once the slots are fully specified.
type OrderItem struct {
	BaseModel
	OrderID          uint                `gorm:"not null;index;column:order_id"`
	ProductID        uint                `gorm:"not null;index;column:product_id"`
	Product          *Product            `gorm:"foreignKey:ProductID"`
	SupplierID       *uint               `gorm:"index;column:supplier_id"`
	Supplier         *Supplier           `gorm:"foreignKey:SupplierID"`
	SupplierOfferID  *uint               `gorm:"column:supplier_offer_id"`
	Quantity         decimal.Decimal     `gorm:"type:decimal(12,4);not null"`
	IsQuoted         bool                `gorm:"not null;default:false;column:is_quoted"`
	QuotedPrice      decimal.NullDecimal `gorm:"type:decimal(12,4);column:quoted_price"`
	SupplierUnitCost decimal.NullDecimal `gorm:"type:decimal(12,4);column:supplier_unit_cost"`
	SupplierDiscount decimal.NullDecimal `gorm:"type:decimal(12,2);column:supplier_discount"`
	DeliveryCost     decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0;column:delivery_cost"`
	DeliveryType     DeliveryType        `gorm:"type:varchar(20);not null;default:'Supplier';column:delivery_type"`
	SupplierConfirms *bool               `gorm:"column:supplier_confirms"`
	CustomBlendMix   *string             `gorm:"type:text;column:custom_blend_mix"`
	Deliveries       []DeliverySlot      `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE"`
}

// HasConfirmedDelivery reports whether the supplier has confirmed any slot
func (i *OrderItem) HasConfirmedDelivery() bool {
	for _, d := range i.Deliveries {
		if d.SupplierConfirms {
			return true
		}
	}
	return false
}

// DeliverySlot is a single scheduled delivery event of an order item
type DeliverySlot struct {
	BaseModel
	OrderItemID      uint                `gorm:"not null;index;column:order_item_id"`
	Quantity         decimal.Decimal     `gorm:"type:decimal(12,4);not null"`
	DeliveryDate     time.Time           `gorm:"type:date;not null;column:delivery_date"`
	DeliveryTime     *string             `gorm:"type:varchar(5);column:delivery_time"`
	TruckType        TruckType           `gorm:"type:varchar(30);not null;column:truck_type"`
	DeliveryCost     decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0;column:delivery_cost"`
	SupplierConfirms bool                `gorm:"not null;default:false;column:supplier_confirms"`
	LoadSize         decimal.NullDecimal `gorm:"type:decimal(12,4);column:load_size"`
	TimeInterval     *int                `gorm:"column:time_interval"`
}

// OrderActivity is an audit entry on an order's timeline
type OrderActivity struct {
	BaseModel
	OrderID   uint   `gorm:"not null;index;column:order_id"`
	ActorID   uint   `gorm:"not null;column:actor_id"`
	ActorRole Role   `gorm:"type:varchar(20);not null;column:actor_role"`
	Title     string `gorm:"type:varchar(200);not null"`
	Body      string `gorm:"type:varchar(2000)"`
}

// Payment records a card payment attempt against an order
type Payment struct {
	BaseModel
	OrderID           uint            `gorm:"not null;index;column:order_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Result            PaymentResult   `gorm:"type:varchar(20);not null"`
	ProviderReference string          `gorm:"type:varchar(200);column:provider_reference"`
	FailureReason     string          `gorm:"type:varchar(500);column:failure_reason"`
	ProcessedByID     uint            `gorm:"not null;column:processed_by_id"`
}

// InvoiceDocument is an invoice file attached to an order
type InvoiceDocument struct {
	BaseModel
	OrderID     uint   `gorm:"not null;index;column:order_id"`
	Filename    string `gorm:"type:varchar(255);not null"`
	ContentType string `gorm:"type:varchar(100);not null;column:content_type"`
	Size        int64  `gorm:"not null"`
	StoragePath string `gorm:"type:varchar(500);not null;unique;column:storage_path"`
}
