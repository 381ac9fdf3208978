package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dastanm/restops/internal/interfaces"
)

const (
	orderEventsExchange   = "order_events"
	notificationsExchange = "notifications_fanout"
)

// publisher fans each event out twice: to the order_events topic
// exchange for routed internal subscribers, and to the notifications
// fanout consumed by the customer-facing channels.
type publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) interfaces.NotificationGateway {
	return &publisher{conn: conn}
}

func (p *publisher) PublishOrderStatus(ctx context.Context, msg interfaces.OrderStatusMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	routingKey := fmt.Sprintf("order.status.%s", strings.ToLower(string(msg.NewStatus)))
	return p.publish(routingKey, body)
}

func (p *publisher) PublishDeliveryUpdate(ctx context.Context, msg interfaces.DeliveryUpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	routingKey := fmt.Sprintf("delivery.status.%s", strings.ToLower(string(msg.Status)))
	return p.publish(routingKey, body)
}

func (p *publisher) publish(routingKey string, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(orderEventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(notificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	err = ch.Publish(orderEventsExchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	err = ch.Publish(notificationsExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}
