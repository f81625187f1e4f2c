package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Channel is where an order came from.
type Channel string

const (
	ChannelPhone    Channel = "phone"
	ChannelWebsite  Channel = "website"
	ChannelSocial   Channel = "social"
	ChannelBoltFood Channel = "bolt_food"
	ChannelChowdeck Channel = "chowdeck"
	ChannelGlovo    Channel = "glovo"
	ChannelWalkIn   Channel = "walk_in"
	ChannelPOS      Channel = "pos"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelPhone, ChannelWebsite, ChannelSocial, ChannelBoltFood,
		ChannelChowdeck, ChannelGlovo, ChannelWalkIn, ChannelPOS:
		return true
	}
	return false
}

// DeliveryType is how the order reaches the customer.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDineIn   DeliveryType = "dine_in"
)

func (d DeliveryType) Valid() bool {
	switch d {
	case DeliveryTypeDelivery, DeliveryTypePickup, DeliveryTypeDineIn:
		return true
	}
	return false
}

// PaymentMethod is how an order was paid. Orders carry no method until paid.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodTransfer    PaymentMethod = "transfer"
	PaymentMethodPOS         PaymentMethod = "pos"
	PaymentMethodPaymentLink PaymentMethod = "payment_link"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer,
		PaymentMethodPOS, PaymentMethodPaymentLink:
		return true
	}
	return false
}

// Order is a placed order with its frozen items and persisted timeline.
type Order struct {
	ID               uuid.UUID
	BranchID         uuid.UUID
	OrderNumber      string
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    string
	Channel          Channel
	DeliveryType     DeliveryType
	DeliveryAddress  *string
	Subtotal         decimal.Decimal
	DeliveryFee      decimal.Decimal
	TotalAmount      decimal.Decimal
	PaymentMethod    *PaymentMethod
	PaymentReference *string
	Notes            string
	Status           OrderStatus
	PaidAt           *time.Time
	ReadyAt          *time.Time
	DispatchedAt     *time.Time
	DeliveredAt      *time.Time
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items  []OrderItem
	Events []TimelineEvent
}

// OrderItem is a CartLine frozen at creation time. TotalPrice is
// Quantity x UnitPrice; add-ons are carried on their own lines.
type OrderItem struct {
	ID          uuid.UUID
	MenuItemID  uuid.UUID
	Name        string
	VariantName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal // excludes add-ons; order subtotal sums LineTotal
	Notes       string
	Addons      []OrderItemAddon
}

// AddonsTotal is the sum of price x quantity over the item's add-ons.
func (i OrderItem) AddonsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range i.Addons {
		total = total.Add(a.Price.Mul(decimal.NewFromInt32(a.Quantity)))
	}
	return total
}

// LineTotal is what the line contributes to the order subtotal.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.TotalPrice.Add(i.AddonsTotal())
}

// OrderItemAddon is a priced extra on an order item.
type OrderItemAddon struct {
	ID       uuid.UUID
	Name     string
	Price    decimal.Decimal
	Quantity int32
}

// TimelineEvent is one entry of an order's history. Synthesized entries for
// stages not reached yet have a zero OccurredAt and Completed false.
type TimelineEvent struct {
	Status      OrderStatus
	Description string
	OccurredAt  time.Time
	Completed   bool
}
