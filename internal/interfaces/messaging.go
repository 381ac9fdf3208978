package interfaces

import (
	"context"
	"time"

	"github.com/dastanm/restops/internal/domain"
)

// OrderStatusMessage is published on every order status change.
type OrderStatusMessage struct {
	OrderID      int64          `json:"order_id"`
	OrderNumber  string         `json:"order_number"`
	RestaurantID int64          `json:"restaurant_id"`
	CustomerID   int64          `json:"customer_id"`
	OldStatus    *domain.Status `json:"old_status,omitempty"`
	NewStatus    domain.Status  `json:"new_status"`
	Message      string         `json:"message"`
	ChangedBy    int64          `json:"changed_by"`
	Timestamp    time.Time      `json:"timestamp"`
}

// DeliveryUpdateMessage is published on every delivery assignment
// state change.
type DeliveryUpdateMessage struct {
	OrderID     int64                 `json:"order_id"`
	OrderNumber string                `json:"order_number"`
	CustomerID  int64                 `json:"customer_id"`
	PartnerID   int64                 `json:"partner_id"`
	Status      domain.DeliveryStatus `json:"status"`
	Message     string                `json:"message"`
	Timestamp   time.Time             `json:"timestamp"`
}

// NotificationGateway fans customer-facing updates out to the
// downstream channels (push/SMS/in-app subscribers). Publish failures
// never fail the originating operation.
type NotificationGateway interface {
	PublishOrderStatus(ctx context.Context, msg OrderStatusMessage) error
	PublishDeliveryUpdate(ctx context.Context, msg DeliveryUpdateMessage) error
}

type NotificationConsumer interface {
	ConsumeNotifications(ctx context.Context, handler NotificationHandler) error
}

type NotificationHandler func(ctx context.Context, body []byte) error
