package fulfillment

import (
	"github.com/shopspring/decimal"

	"github.com/bulkmat/order-api/internal/domain"
)

var (
	// DefaultGSTRate is the goods and services tax applied to orders
	DefaultGSTRate = decimal.RequireFromString("0.10")
)

// DefaultMoneyPlaces is the rounding applied to money amounts
const DefaultMoneyPlaces = 2

// SlotCost is the delivery cost of one slot
type SlotCost struct {
	SlotID uint
	Cost   decimal.Decimal
}

// PricingItem carries the price inputs of one order item
type PricingItem struct {
	ItemID           uint
	Quantity         decimal.Decimal
	SupplierAssigned bool
	IsQuoted         bool
	QuotedPrice      decimal.NullDecimal
	SupplierUnitCost decimal.NullDecimal
	SupplierDiscount decimal.NullDecimal
	DeliveryType     domain.DeliveryType
	Slots            []SlotCost
}

// PricingInput is everything the calculator derives a breakdown from. Discount
// and OtherCharges are the only order level amounts set by hand.
type PricingInput struct {
	Items        []PricingItem
	Discount     decimal.Decimal
	OtherCharges decimal.Decimal
}

// ItemBreakdown is the derived pricing of one item
type ItemBreakdown struct {
	ItemID       uint
	IsAvailable  bool
	UnitPrice    decimal.Decimal
	Subtotal     decimal.Decimal
	SupplierCost decimal.Decimal
	Margin       decimal.Decimal
	DeliveryCost decimal.Decimal
	Slots        []SlotCost
}

// Breakdown is the canonical pricing record of an order. Role specific
// projections are taken from it with AdminView and ClientView.
type Breakdown struct {
	Items                []ItemBreakdown
	CustomerItemCost     decimal.Decimal
	CustomerDeliveryCost decimal.Decimal
	Discount             decimal.Decimal
	GSTTax               decimal.Decimal
	OtherCharges         decimal.Decimal
	TotalPrice           decimal.Decimal
	SupplierCost         decimal.Decimal
	Margin               decimal.Decimal
}

// Calculator derives order totals from item and delivery level inputs
type Calculator struct {
	GSTRate decimal.Decimal
	Places  int32
}

// NewCalculator creates a calculator. A zero rate falls back to DefaultGSTRate
// and non-positive places to DefaultMoneyPlaces.
func NewCalculator(gstRate decimal.Decimal, places int32) Calculator {
	if gstRate.IsZero() {
		gstRate = DefaultGSTRate
	}
	if places <= 0 {
		places = DefaultMoneyPlaces
	}
	return Calculator{GSTRate: gstRate, Places: places}
}

// EffectiveUnitPrice is the quoted price of a quoted item, else the supplier
// unit cost when a supplier is assigned. ok is false when neither resolves.
func EffectiveUnitPrice(it PricingItem) (price decimal.Decimal, ok bool) {
	if it.IsQuoted && it.QuotedPrice.Valid {
		return it.QuotedPrice.Decimal, true
	}
	if !it.IsQuoted && it.SupplierAssigned && it.SupplierUnitCost.Valid {
		return it.SupplierUnitCost.Decimal, true
	}
	return decimal.Zero, false
}

// Price computes the breakdown of an order
func (c Calculator) Price(in PricingInput) Breakdown {
	b := Breakdown{
		Items:                make([]ItemBreakdown, 0, len(in.Items)),
		CustomerItemCost:     decimal.Zero,
		CustomerDeliveryCost: decimal.Zero,
		SupplierCost:         decimal.Zero,
		Margin:               decimal.Zero,
		Discount:             c.round(in.Discount),
		OtherCharges:         c.round(in.OtherCharges),
	}

	for _, it := range in.Items {
		ib := ItemBreakdown{ItemID: it.ItemID, Slots: it.Slots, DeliveryCost: decimal.Zero}
		for _, s := range it.Slots {
			ib.DeliveryCost = ib.DeliveryCost.Add(s.Cost)
		}
		ib.DeliveryCost = c.round(ib.DeliveryCost)
		if it.DeliveryType.Chargeable() {
			b.CustomerDeliveryCost = b.CustomerDeliveryCost.Add(ib.DeliveryCost)
		}

		price, ok := EffectiveUnitPrice(it)
		ib.IsAvailable = ok
		if ok {
			ib.UnitPrice = price
			subtotal := price.Mul(it.Quantity)
			if it.SupplierDiscount.Valid {
				subtotal = subtotal.Sub(it.SupplierDiscount.Decimal)
			}
			ib.Subtotal = c.round(clampZero(subtotal))
			b.CustomerItemCost = b.CustomerItemCost.Add(ib.Subtotal)

			if it.SupplierUnitCost.Valid {
				ib.SupplierCost = c.round(it.SupplierUnitCost.Decimal.Mul(it.Quantity))
				ib.Margin = ib.Subtotal.Sub(ib.SupplierCost)
				b.SupplierCost = b.SupplierCost.Add(ib.SupplierCost)
				b.Margin = b.Margin.Add(ib.Margin)
			}
		}
		b.Items = append(b.Items, ib)
	}

	taxable := clampZero(b.CustomerItemCost.Add(b.CustomerDeliveryCost).Sub(b.Discount))
	b.GSTTax = c.round(taxable.Mul(c.rate()))
	b.TotalPrice = c.round(clampZero(
		b.CustomerItemCost.Add(b.CustomerDeliveryCost).Add(b.GSTTax).Sub(b.Discount).Add(b.OtherCharges),
	))
	return b
}

// round rounds half away from zero, which is half-up for the non-negative
// amounts priced here
func (c Calculator) round(d decimal.Decimal) decimal.Decimal {
	places := c.Places
	if places <= 0 {
		places = DefaultMoneyPlaces
	}
	return d.Round(places)
}

func (c Calculator) rate() decimal.Decimal {
	if c.GSTRate.IsZero() {
		return DefaultGSTRate
	}
	return c.GSTRate
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ItemPricingView is the projection of one item for a role
type ItemPricingView struct {
	ItemID       uint             `json:"item_id"`
	IsAvailable  bool             `json:"is_available"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Subtotal     decimal.Decimal  `json:"subtotal"`
	SupplierCost *decimal.Decimal `json:"supplier_cost,omitempty"`
	Margin       *decimal.Decimal `json:"margin,omitempty"`
	DeliveryCost *decimal.Decimal `json:"delivery_cost,omitempty"`
}

// PricingView is the role projection of a Breakdown. Admin-only fields are
// nil in the client projection.
type PricingView struct {
	CustomerItemCost     decimal.Decimal   `json:"customer_item_cost"`
	CustomerDeliveryCost decimal.Decimal   `json:"customer_delivery_cost"`
	Discount             decimal.Decimal   `json:"discount"`
	GSTTax               decimal.Decimal   `json:"gst_tax"`
	OtherCharges         decimal.Decimal   `json:"other_charges"`
	TotalPrice           decimal.Decimal   `json:"total_price"`
	SupplierCost         *decimal.Decimal  `json:"supplier_cost,omitempty"`
	Margin               *decimal.Decimal  `json:"margin,omitempty"`
	Items                []ItemPricingView `json:"items"`
}

// AdminView exposes every figure of the breakdown
func (b Breakdown) AdminView() PricingView {
	v := b.baseView()
	supplierCost, margin := b.SupplierCost, b.Margin
	v.SupplierCost = &supplierCost
	v.Margin = &margin
	for i, ib := range b.Items {
		if ib.IsAvailable {
			price := ib.UnitPrice
			v.Items[i].UnitPrice = &price
			sc, m := ib.SupplierCost, ib.Margin
			v.Items[i].SupplierCost = &sc
			v.Items[i].Margin = &m
		}
		dc := ib.DeliveryCost
		v.Items[i].DeliveryCost = &dc
	}
	return v
}

// ClientView exposes cost fields only: no margin, supplier cost or per item
// delivery cost
func (b Breakdown) ClientView() PricingView {
	v := b.baseView()
	for i, ib := range b.Items {
		if ib.IsAvailable {
			price := ib.UnitPrice
			v.Items[i].UnitPrice = &price
		}
	}
	return v
}

// ViewFor picks the projection matching a role. Suppliers see the client projection.
func (b Breakdown) ViewFor(role domain.Role) PricingView {
	if role == domain.RoleAdmin {
		return b.AdminView()
	}
	return b.ClientView()
}

func (b Breakdown) baseView() PricingView {
	v := PricingView{
		CustomerItemCost:     b.CustomerItemCost,
		CustomerDeliveryCost: b.CustomerDeliveryCost,
		Discount:             b.Discount,
		GSTTax:               b.GSTTax,
		OtherCharges:         b.OtherCharges,
		TotalPrice:           b.TotalPrice,
		Items:                make([]ItemPricingView, len(b.Items)),
	}
	for i, ib := range b.Items {
		v.Items[i] = ItemPricingView{
			ItemID:      ib.ItemID,
			IsAvailable: ib.IsAvailable,
			Subtotal:    ib.Subtotal,
		}
	}
	return v
}
