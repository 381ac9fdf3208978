package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/interfaces"
)

// NotificationHandler is the subscriber-side sink for the fanout. It
// distinguishes the two message shapes by their fields: delivery
// updates carry a partner_id, order status changes carry new_status.
type NotificationHandler struct {
	logger logger.Logger
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
	}
}

func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var probe struct {
		PartnerID int64 `json:"partner_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}

	if probe.PartnerID != 0 {
		return h.handleDeliveryUpdate(body)
	}
	return h.handleStatusChange(body)
}

func (h *NotificationHandler) handleStatusChange(body []byte) error {
	var msg interfaces.OrderStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse status notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received status update for order %s", msg.OrderNumber),
		msg.OrderNumber, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"new_status":   msg.NewStatus,
		})

	old := "NONE"
	if msg.OldStatus != nil {
		old = string(*msg.OldStatus)
	}
	fmt.Printf("Notification for order %s: Status changed from '%s' to '%s'. %s\n",
		msg.OrderNumber, old, msg.NewStatus, msg.Message)

	return nil
}

func (h *NotificationHandler) handleDeliveryUpdate(body []byte) error {
	var msg interfaces.DeliveryUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse delivery notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received delivery update for order %s", msg.OrderNumber),
		msg.OrderNumber, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"status":       msg.Status,
		})

	fmt.Printf("Delivery update for order %s: %s. %s\n",
		msg.OrderNumber, msg.Status, msg.Message)

	return nil
}
