package domain

// Role represents the capability set of an authenticated caller
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleClient   Role = "client"
	RoleSupplier Role = "supplier"
)

// IsValid checks if the Role is a valid enum value
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleSupplier:
		return true
	}
	return false
}

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "Draft"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusScheduled OrderStatus = "Scheduled"
	OrderStatusInTransit OrderStatus = "In Transit"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// AllOrderStatuses lists every order status in lifecycle order
var AllOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusConfirmed,
	OrderStatusScheduled,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// IsValid checks if the OrderStatus is a valid enum value
func (s OrderStatus) IsValid() bool {
	for _, status := range AllOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// PaymentStatus represents the settlement state of an order
type PaymentStatus string

const (
	PaymentStatusUnpaid          PaymentStatus = "Unpaid"
	PaymentStatusPending         PaymentStatus = "Pending"
	PaymentStatusPartiallyPaid   PaymentStatus = "Partially Paid"
	PaymentStatusPaid            PaymentStatus = "Paid"
	PaymentStatusPartialRefunded PaymentStatus = "Partial Refunded"
	PaymentStatusRefunded        PaymentStatus = "Refunded"
	PaymentStatusRequested       PaymentStatus = "Requested"
)

// IsValid checks if the PaymentStatus is a valid enum value
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusPartiallyPaid, PaymentStatusPaid,
		PaymentStatusPartialRefunded, PaymentStatusRefunded, PaymentStatusRequested:
		return true
	}
	return false
}

// DeliveryType represents who carries out (and charges for) delivery of an item
type DeliveryType string

const (
	DeliveryTypeIncluded   DeliveryType = "Included"
	DeliveryTypeSupplier   DeliveryType = "Supplier"
	DeliveryTypeThirdParty DeliveryType = "ThirdParty"
	DeliveryTypeFleet      DeliveryType = "Fleet"
	DeliveryTypeNone       DeliveryType = "None"
)

// IsValid checks if the DeliveryType is a valid enum value
func (t DeliveryType) IsValid() bool {
	switch t {
	case DeliveryTypeIncluded, DeliveryTypeSupplier, DeliveryTypeThirdParty, DeliveryTypeFleet, DeliveryTypeNone:
		return true
	}
	return false
}

// Chargeable reports whether per-delivery costs are billed to the customer
func (t DeliveryType) Chargeable() bool {
	return t != DeliveryTypeIncluded
}

// TruckType represents the vehicle category required for a delivery
type TruckType string

const (
	TruckTypeTipper       TruckType = "Tipper"
	TruckTypeTruckAndDog  TruckType = "Truck and Dog"
	TruckTypeSemiTipper   TruckType = "Semi Tipper"
	TruckTypeSideTipper   TruckType = "Side Tipper"
	TruckTypeBodyTruck    TruckType = "Body Truck"
	TruckTypeAgitator     TruckType = "Agitator"
	TruckTypeMiniMixer    TruckType = "Mini Mixer"
	TruckTypeConcretePump TruckType = "Concrete Pump"
	TruckTypeFlatbed      TruckType = "Flatbed"
	TruckTypeCraneTruck   TruckType = "Crane Truck"
	TruckTypeWalkingFloor TruckType = "Walking Floor"
)

// AllTruckTypes lists every supported truck category
var AllTruckTypes = []TruckType{
	TruckTypeTipper,
	TruckTypeTruckAndDog,
	TruckTypeSemiTipper,
	TruckTypeSideTipper,
	TruckTypeBodyTruck,
	TruckTypeAgitator,
	TruckTypeMiniMixer,
	TruckTypeConcretePump,
	TruckTypeFlatbed,
	TruckTypeCraneTruck,
	TruckTypeWalkingFloor,
}

// IsValid checks if the TruckType is a valid enum value
func (t TruckType) IsValid() bool {
	for _, tt := range AllTruckTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// PaymentResult represents the outcome of a payment attempt
type PaymentResult string

const (
	PaymentResultSucceeded PaymentResult = "succeeded"
	PaymentResultPending   PaymentResult = "pending"
	PaymentResultFailed    PaymentResult = "failed"
)
