package domain

import "time"

type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "ASSIGNED"
	DeliveryAccepted  DeliveryStatus = "ACCEPTED"
	DeliveryPickedUp  DeliveryStatus = "PICKED_UP"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
)

// ActiveDeliveryStatuses are the states counted against a partner's
// capacity cap.
var ActiveDeliveryStatuses = []DeliveryStatus{
	DeliveryAssigned,
	DeliveryAccepted,
	DeliveryPickedUp,
	DeliveryInTransit,
}

// DeliveryAssignment attaches a delivery partner to a ready delivery
// order. At most one exists per order; its status track advances
// forward-only in parallel with the order's.
type DeliveryAssignment struct {
	ID        int64
	OrderID   int64
	PartnerID int64
	Status    DeliveryStatus

	AssignedAt  time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time

	EstimatedPickupAt   *time.Time
	EstimatedDeliveryAt *time.Time

	CurrentLatitude     *float64
	CurrentLongitude    *float64
	LastLocationAt      *time.Time
	DistanceRemainingKm *float64

	Notes string
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryAssigned:  {DeliveryAccepted},
	DeliveryAccepted:  {DeliveryPickedUp},
	DeliveryPickedUp:  {DeliveryInTransit, DeliveryDelivered},
	DeliveryInTransit: {DeliveryDelivered},
	DeliveryDelivered: {},
}

// Advance enforces the forward-only delivery progression and stamps
// the per-state timestamps.
func (d *DeliveryAssignment) Advance(target DeliveryStatus, now time.Time) error {
	allowed := false
	for _, s := range deliveryTransitions[d.Status] {
		if s == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return BadRequestf("cannot move delivery from %s to %s", d.Status, target)
	}

	d.Status = target
	switch target {
	case DeliveryAccepted:
		t := now
		d.AcceptedAt = &t
	case DeliveryPickedUp:
		t := now
		d.PickedUpAt = &t
	case DeliveryDelivered:
		t := now
		d.DeliveredAt = &t
	}

	return nil
}

// Active reports whether the assignment still counts against the
// partner's capacity cap.
func (d *DeliveryAssignment) Active() bool {
	for _, s := range ActiveDeliveryStatuses {
		if d.Status == s {
			return true
		}
	}
	return false
}

// TotalMinutes is the assigned-to-delivered duration, nil until
// delivered.
func (d *DeliveryAssignment) TotalMinutes() *int {
	if d.DeliveredAt == nil {
		return nil
	}
	m := int(d.DeliveredAt.Sub(d.AssignedAt).Minutes())
	return &m
}

// PartnerInfo is the directory projection of a delivery partner used
// in customer-facing tracking views.
type PartnerInfo struct {
	ID    int64
	Name  string
	Phone string
}
