package domain

import "time"

type EventKind string

const (
	EventOrderPlaced      EventKind = "ORDER_PLACED"
	EventOrderConfirmed   EventKind = "ORDER_CONFIRMED"
	EventKitchenStarted   EventKind = "KITCHEN_STARTED"
	EventFoodReady        EventKind = "FOOD_READY"
	EventDeliveryAssigned EventKind = "DELIVERY_ASSIGNED"
	EventPickedUp         EventKind = "DELIVERY_PICKED_UP"
	EventOutForDelivery   EventKind = "OUT_FOR_DELIVERY"
	EventDelivered        EventKind = "DELIVERED"
	EventCompleted        EventKind = "COMPLETED"
	EventCancelled        EventKind = "CANCELLED"
)

var milestoneEvents = map[EventKind]bool{
	EventOrderPlaced:    true,
	EventOrderConfirmed: true,
	EventFoodReady:      true,
	EventDelivered:      true,
	EventCompleted:      true,
}

// TimelineEvent is one immutable entry in the customer-facing narrated
// order history.
type TimelineEvent struct {
	ID          int64
	OrderID     int64
	Kind        EventKind
	Title       string
	Description string
	At          time.Time
	Milestone   bool
}

func NewTimelineEvent(orderID int64, kind EventKind, title, description string, now time.Time) *TimelineEvent {
	return &TimelineEvent{
		OrderID:     orderID,
		Kind:        kind,
		Title:       title,
		Description: description,
		At:          now,
		Milestone:   milestoneEvents[kind],
	}
}
