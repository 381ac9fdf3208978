package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testPricing() Pricing {
	return Pricing{
		TaxRate:     decimal.RequireFromString("0.10"),
		DeliveryFee: decimal.RequireFromString("5.00"),
		PrepMinutes: 30,
	}
}

func strPtr(s string) *string { return &s }

func testLines() []OrderLine {
	return []OrderLine{
		{
			ItemID:    1,
			ItemName:  "Margherita",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("12.50"),
			Modifiers: []LineModifier{
				{ModifierID: 10, Name: "Extra cheese", Price: decimal.RequireFromString("1.50")},
			},
		},
		{
			ItemID:    2,
			ItemName:  "Lemonade",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("4.00"),
		},
	}
}

func TestNewOrderMoney(t *testing.T) {
	now := time.Now()
	order, err := NewOrder(NewOrderParams{
		RestaurantID:    1,
		CustomerID:      7,
		Number:          "ORD-20260829-ABCD1234",
		Type:            OrderTypeDelivery,
		DeliveryAddress: strPtr("42 Main St"),
		Discount:        decimal.RequireFromString("2.00"),
		Lines:           testLines(),
	}, testPricing(), now)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	// (12.50 + 1.50) * 2 + 4.00 = 32.00
	if got := order.Subtotal.String(); got != "32" {
		t.Errorf("subtotal = %s, want 32", got)
	}
	if got := order.TaxAmount.String(); got != "3.2" {
		t.Errorf("tax = %s, want 3.2", got)
	}
	if got := order.DeliveryFee.String(); got != "5" {
		t.Errorf("delivery fee = %s, want 5", got)
	}
	// 32.00 + 3.20 + 5.00 - 2.00 = 38.20
	if got := order.TotalAmount.String(); got != "38.2" {
		t.Errorf("total = %s, want 38.2", got)
	}

	if order.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", order.Status)
	}
	if order.EstimatedReadyAt == nil {
		t.Fatal("estimated ready time not set")
	}
	if got := order.EstimatedReadyAt.Sub(now); got != 30*time.Minute {
		t.Errorf("estimated ready offset = %v, want 30m", got)
	}
}

func TestNewOrderNoDeliveryFeeForDineIn(t *testing.T) {
	order, err := NewOrder(NewOrderParams{
		RestaurantID: 1,
		CustomerID:   7,
		Number:       "ORD-20260829-AAAA0001",
		Type:         OrderTypeDineIn,
		TableNumber:  strPtr("12"),
		Lines:        testLines(),
	}, testPricing(), time.Now())
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	if !order.DeliveryFee.IsZero() {
		t.Errorf("dine-in delivery fee = %s, want 0", order.DeliveryFee)
	}
}

func TestNewOrderValidation(t *testing.T) {
	cases := []struct {
		name   string
		params NewOrderParams
	}{
		{
			name: "dine-in without table",
			params: NewOrderParams{
				Type:  OrderTypeDineIn,
				Lines: testLines(),
			},
		},
		{
			name: "delivery without address",
			params: NewOrderParams{
				Type:  OrderTypeDelivery,
				Lines: testLines(),
			},
		},
		{
			name: "no lines",
			params: NewOrderParams{
				Type: OrderTypeTakeaway,
			},
		},
		{
			name: "unknown type",
			params: NewOrderParams{
				Type:  OrderType("DRIVE_THROUGH"),
				Lines: testLines(),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder(tc.params, testPricing(), time.Now())
			if !IsBadRequest(err) {
				t.Fatalf("got %v, want bad request", err)
			}
		})
	}
}

func TestTransitionToStampsTimestamps(t *testing.T) {
	now := time.Now()
	order, err := NewOrder(NewOrderParams{
		Type:            OrderTypeDelivery,
		DeliveryAddress: strPtr("42 Main St"),
		Number:          "ORD-20260829-BBBB0001",
		Lines:           testLines(),
	}, testPricing(), now)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	steps := []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusCompleted}
	for _, target := range steps {
		now = now.Add(time.Minute)
		if err := order.TransitionTo(target, now); err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
	}

	if order.ActualReadyAt == nil {
		t.Error("READY did not stamp ActualReadyAt")
	}
	if order.DeliveredAt == nil {
		t.Error("COMPLETED did not stamp DeliveredAt for delivery order")
	}

	if err := order.TransitionTo(StatusPending, now); !IsBadRequest(err) {
		t.Errorf("transition out of terminal state: got %v, want bad request", err)
	}
}

func TestCancelRecordsMetadata(t *testing.T) {
	now := time.Now()
	order, err := NewOrder(NewOrderParams{
		Type:   OrderTypeTakeaway,
		Number: "ORD-20260829-CCCC0001",
		Lines:  testLines(),
	}, testPricing(), now)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if err := order.Cancel(99, "changed my mind", now.Add(time.Minute)); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if order.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", order.Status)
	}
	if order.CancelledBy == nil || *order.CancelledBy != 99 {
		t.Errorf("cancelled by = %v, want 99", order.CancelledBy)
	}
	if order.CancellationReason != "changed my mind" {
		t.Errorf("reason = %q", order.CancellationReason)
	}
	if order.CancelledAt == nil {
		t.Error("cancelled at not stamped")
	}
}
