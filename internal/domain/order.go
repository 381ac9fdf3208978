package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the fulfillment aggregate root. Its lines are read-only
// after creation; the monetary breakdown is computed once in NewOrder
// and never recalculated.
type Order struct {
	ID                  int64
	RestaurantID        int64
	CustomerID          int64
	Number              string
	Type                OrderType
	Status              Status
	TableNumber         *string
	DeliveryAddress     *string
	SpecialInstructions string
	Priority            bool

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	EstimatedReadyAt *time.Time
	ActualReadyAt    *time.Time
	DeliveredAt      *time.Time

	CancelledAt        *time.Time
	CancelledBy        *int64
	CancellationReason string

	Lines []OrderLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLine is one priced catalog item within an order, immutable once
// the order is placed.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ItemID    int64
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
	Modifiers []LineModifier
	Subtotal  decimal.Decimal
}

type LineModifier struct {
	ID         int64
	ModifierID int64
	Name       string
	Price      decimal.Decimal
}

// CalculateSubtotal prices one line: (unit price + modifiers) * qty.
func (l *OrderLine) CalculateSubtotal() {
	price := l.UnitPrice
	for _, m := range l.Modifiers {
		price = price.Add(m.Price)
	}
	l.Subtotal = price.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Pricing carries the restaurant-level money parameters applied once
// at order creation.
type Pricing struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
	PrepMinutes int
}

type NewOrderParams struct {
	RestaurantID        int64
	CustomerID          int64
	Number              string
	Type                OrderType
	TableNumber         *string
	DeliveryAddress     *string
	SpecialInstructions string
	Discount            decimal.Decimal
	Lines               []OrderLine
}

// NewOrder builds a PENDING order, validating the type-specific
// preconditions and computing the monetary breakdown.
func NewOrder(p NewOrderParams, pricing Pricing, now time.Time) (*Order, error) {
	switch p.Type {
	case OrderTypeDineIn:
		if p.TableNumber == nil || *p.TableNumber == "" {
			return nil, BadRequestf("table number is required for dine-in orders")
		}
	case OrderTypeDelivery:
		if p.DeliveryAddress == nil || *p.DeliveryAddress == "" {
			return nil, BadRequestf("delivery address is required for delivery orders")
		}
	case OrderTypeTakeaway:
	default:
		return nil, BadRequestf("invalid order type %q", p.Type)
	}

	if len(p.Lines) == 0 {
		return nil, BadRequestf("order must contain at least one line")
	}

	o := &Order{
		RestaurantID:        p.RestaurantID,
		CustomerID:          p.CustomerID,
		Number:              p.Number,
		Type:                p.Type,
		Status:              StatusPending,
		TableNumber:         p.TableNumber,
		DeliveryAddress:     p.DeliveryAddress,
		SpecialInstructions: p.SpecialInstructions,
		DiscountAmount:      p.Discount.Round(2),
		Lines:               p.Lines,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	subtotal := decimal.Zero
	for i := range o.Lines {
		o.Lines[i].CalculateSubtotal()
		subtotal = subtotal.Add(o.Lines[i].Subtotal)
	}
	o.Subtotal = subtotal.Round(2)
	o.TaxAmount = subtotal.Mul(pricing.TaxRate).Round(2)
	if p.Type == OrderTypeDelivery {
		o.DeliveryFee = pricing.DeliveryFee.Round(2)
	} else {
		o.DeliveryFee = decimal.Zero
	}
	o.TotalAmount = o.Subtotal.Add(o.TaxAmount).Add(o.DeliveryFee).Sub(o.DiscountAmount).Round(2)

	ready := now.Add(time.Duration(pricing.PrepMinutes) * time.Minute)
	o.EstimatedReadyAt = &ready

	return o, nil
}

// TransitionTo moves the order along a legal edge of the status
// machine and stamps the status-dependent timestamps. It does not
// check actor authority.
func (o *Order) TransitionTo(target Status, now time.Time) error {
	if o.Status.Terminal() {
		return BadRequestf("order %s is %s and cannot change status", o.Number, o.Status)
	}
	if !o.Status.CanTransitionTo(target) {
		return BadRequestf("invalid status transition from %s to %s", o.Status, target)
	}

	o.Status = target
	o.UpdatedAt = now

	switch target {
	case StatusReady:
		t := now
		o.ActualReadyAt = &t
	case StatusCompleted:
		if o.Type == OrderTypeDelivery {
			t := now
			o.DeliveredAt = &t
		}
	}

	return nil
}

// Cancel records the cancellation metadata alongside the CANCELLED
// transition.
func (o *Order) Cancel(actorID int64, reason string, now time.Time) error {
	if err := o.TransitionTo(StatusCancelled, now); err != nil {
		return err
	}
	t := now
	o.CancelledAt = &t
	o.CancelledBy = &actorID
	o.CancellationReason = reason
	return nil
}
