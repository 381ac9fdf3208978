package domain

import (
	"testing"
	"time"
)

func TestDeliveryAdvanceForwardOnly(t *testing.T) {
	now := time.Now()
	a := &DeliveryAssignment{Status: DeliveryAssigned, AssignedAt: now}

	if err := a.Advance(DeliveryPickedUp, now); !IsBadRequest(err) {
		t.Fatalf("skipping ACCEPTED: got %v, want bad request", err)
	}

	steps := []DeliveryStatus{DeliveryAccepted, DeliveryPickedUp, DeliveryInTransit, DeliveryDelivered}
	for _, target := range steps {
		now = now.Add(5 * time.Minute)
		if err := a.Advance(target, now); err != nil {
			t.Fatalf("advance to %s failed: %v", target, err)
		}
	}

	if a.AcceptedAt == nil || a.PickedUpAt == nil || a.DeliveredAt == nil {
		t.Error("progression timestamps not stamped")
	}
	if err := a.Advance(DeliveryAccepted, now); !IsBadRequest(err) {
		t.Errorf("backward move: got %v, want bad request", err)
	}
}

func TestDeliveryPickedUpStraightToDelivered(t *testing.T) {
	now := time.Now()
	a := &DeliveryAssignment{Status: DeliveryPickedUp, AssignedAt: now}
	if err := a.Advance(DeliveryDelivered, now.Add(20*time.Minute)); err != nil {
		t.Fatalf("PICKED_UP -> DELIVERED should be allowed: %v", err)
	}
}

func TestDeliveryActive(t *testing.T) {
	for _, s := range ActiveDeliveryStatuses {
		a := &DeliveryAssignment{Status: s}
		if !a.Active() {
			t.Errorf("%s should count as active", s)
		}
	}
	done := &DeliveryAssignment{Status: DeliveryDelivered}
	if done.Active() {
		t.Error("DELIVERED should not count as active")
	}
}

func TestDeliveryTotalMinutes(t *testing.T) {
	now := time.Now()
	a := &DeliveryAssignment{Status: DeliveryInTransit, AssignedAt: now}
	if a.TotalMinutes() != nil {
		t.Error("total minutes should be nil before delivery")
	}

	delivered := now.Add(42 * time.Minute)
	a.Status = DeliveryDelivered
	a.DeliveredAt = &delivered
	if got := a.TotalMinutes(); got == nil || *got != 42 {
		t.Errorf("total minutes = %v, want 42", got)
	}
}
