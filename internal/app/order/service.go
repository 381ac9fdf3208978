package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/app/timeline"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
	"github.com/dastanm/restops/internal/lock"
)

// Service owns the order aggregate and its status state machine. All
// mutating operations on one order are serialized through the keyed
// lock; operations across different orders run in parallel.
type Service struct {
	orders     interfaces.OrderRepository
	deliveries interfaces.DeliveryRepository
	gate       interfaces.AuthorizationGate
	ledger     interfaces.InventoryLedger
	catalog    interfaces.CatalogLookup
	recorder   *timeline.Recorder
	notifier   interfaces.NotificationGateway
	locks      *lock.KeyedMutex
	logger     logger.Logger
	pricing    domain.Pricing

	// Bound after construction; the kitchen coordinator in turn calls
	// back into Transition for auto-ready.
	kitchen interfaces.UnitMaterializer
}

func NewService(
	orders interfaces.OrderRepository,
	deliveries interfaces.DeliveryRepository,
	gate interfaces.AuthorizationGate,
	ledger interfaces.InventoryLedger,
	catalog interfaces.CatalogLookup,
	recorder *timeline.Recorder,
	notifier interfaces.NotificationGateway,
	locks *lock.KeyedMutex,
	pricing domain.Pricing,
	logger logger.Logger,
) *Service {
	return &Service{
		orders:     orders,
		deliveries: deliveries,
		gate:       gate,
		ledger:     ledger,
		catalog:    catalog,
		recorder:   recorder,
		notifier:   notifier,
		locks:      locks,
		logger:     logger,
		pricing:    pricing,
	}
}

// BindKitchen attaches the unit materializer invoked on the first
// transition into PREPARING.
func (s *Service) BindKitchen(k interfaces.UnitMaterializer) {
	s.kitchen = k
}

func orderKey(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func (s *Service) Create(ctx context.Context, cmd interfaces.CreateOrderCommand, actor domain.Actor) (*domain.Order, error) {
	if !actor.HasRole(domain.RoleCustomer) {
		return nil, domain.Forbiddenf("only customers can place orders")
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, actor.RestaurantID); err != nil {
		return nil, err
	}

	lines, err := s.priceLines(ctx, actor.RestaurantID, cmd.Lines)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order, err := domain.NewOrder(domain.NewOrderParams{
		RestaurantID:        actor.RestaurantID,
		CustomerID:          actor.ID,
		Number:              generateOrderNumber(now),
		Type:                domain.OrderType(cmd.OrderType),
		TableNumber:         cmd.TableNumber,
		DeliveryAddress:     cmd.DeliveryAddress,
		SpecialInstructions: cmd.SpecialInstructions,
		Discount:            cmd.Discount,
		Lines:               lines,
	}, s.pricing, now)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Deduct(ctx, order.RestaurantID, order.Lines); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("order_create_failed", "Failed to persist order", "", nil, err)
		return nil, err
	}

	rec := &domain.StatusTransitionRecord{
		OrderID: order.ID,
		To:      domain.StatusPending,
		ActorID: actor.ID,
		Notes:   "Order created",
		At:      now,
	}
	if err := s.orders.AppendTransition(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, order.ID, domain.EventOrderPlaced,
		"Order placed", "We've received your order and are reviewing it"); err != nil {
		return nil, err
	}

	s.publishStatus(ctx, order, nil, actor.ID)

	s.logger.Info("order_created", fmt.Sprintf("Order %s created", order.Number), "", map[string]interface{}{
		"order_id": order.ID,
		"type":     string(order.Type),
		"total":    order.TotalAmount.String(),
	})

	return order, nil
}

func (s *Service) priceLines(ctx context.Context, restaurantID int64, cmds []interfaces.CreateOrderLineCommand) ([]domain.OrderLine, error) {
	if len(cmds) == 0 {
		return nil, domain.BadRequestf("order must contain at least one line")
	}

	lines := make([]domain.OrderLine, 0, len(cmds))
	for _, lc := range cmds {
		if lc.Quantity < 1 {
			return nil, domain.BadRequestf("line quantity must be at least 1")
		}

		item, err := s.catalog.Item(ctx, restaurantID, lc.ItemID)
		if err != nil {
			return nil, err
		}

		line := domain.OrderLine{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Quantity:  lc.Quantity,
			UnitPrice: item.Price,
		}
		for _, mid := range lc.ModifierIDs {
			mod, err := s.catalog.Modifier(ctx, restaurantID, mid)
			if err != nil {
				return nil, err
			}
			line.Modifiers = append(line.Modifiers, domain.LineModifier{
				ModifierID: mod.ID,
				Name:       mod.Name,
				Price:      mod.Price,
			})
		}
		lines = append(lines, line)
	}

	return lines, nil
}

func generateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

// Transition moves an order along one edge of the status machine,
// validating role authority and appending the audit trail. CANCELLED
// routes through Cancel so the cancellation metadata is recorded.
func (s *Service) Transition(ctx context.Context, orderID int64, target domain.Status, notes string, actor domain.Actor) (*domain.Order, error) {
	if target == domain.StatusCancelled {
		return s.Cancel(ctx, orderID, notes, actor)
	}

	s.locks.Lock(orderKey(orderID))
	defer s.locks.Unlock(orderKey(orderID))

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return nil, err
	}

	// Auto-ready may fire twice when the last two units complete
	// near-simultaneously; the second invocation is a no-op.
	if actor.System && target == domain.StatusReady && order.Status == domain.StatusReady {
		return order, nil
	}

	if !actor.CanSetStatus(target) {
		return nil, domain.Forbiddenf("actor is not allowed to set status %s", target)
	}

	oldStatus := order.Status
	now := time.Now()
	if err := order.TransitionTo(target, now); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		return nil, err
	}

	rec := &domain.StatusTransitionRecord{
		OrderID: order.ID,
		From:    &oldStatus,
		To:      target,
		ActorID: actor.ID,
		Notes:   notes,
		At:      now,
	}
	if err := s.orders.AppendTransition(ctx, rec); err != nil {
		return nil, err
	}

	if target == domain.StatusPreparing && s.kitchen != nil {
		if err := s.kitchen.MaterializeUnits(ctx, order, nil); err != nil {
			return nil, err
		}
	}

	kind, title, desc := timelineFor(order, target)
	if err := s.recorder.Record(ctx, order.ID, kind, title, desc); err != nil {
		return nil, err
	}

	s.publishStatus(ctx, order, &oldStatus, actor.ID)

	s.logger.Info("order_status_changed", fmt.Sprintf("Order %s moved from %s to %s", order.Number, oldStatus, target), "", map[string]interface{}{
		"order_id": order.ID,
	})

	return order, nil
}

// Cancel is the CANCELLED edge. Terminal violations are BadRequest;
// missing authority (a customer past PENDING) is Forbidden.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string, actor domain.Actor) (*domain.Order, error) {
	s.locks.Lock(orderKey(orderID))
	defer s.locks.Unlock(orderKey(orderID))

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return nil, domain.BadRequestf("order %s is %s and cannot be cancelled", order.Number, order.Status)
	}
	if !actor.CanCancel(order) {
		return nil, domain.Forbiddenf("actor is not allowed to cancel this order")
	}

	oldStatus := order.Status
	now := time.Now()
	if err := order.Cancel(actor.ID, reason, now); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		return nil, err
	}

	rec := &domain.StatusTransitionRecord{
		OrderID: order.ID,
		From:    &oldStatus,
		To:      domain.StatusCancelled,
		ActorID: actor.ID,
		Notes:   "Cancelled: " + reason,
		At:      now,
	}
	if err := s.orders.AppendTransition(ctx, rec); err != nil {
		return nil, err
	}

	// Stock was deducted at creation; hand it back to the ledger. A
	// release failure is the ledger's problem, not the cancellation's.
	if err := s.ledger.Release(ctx, order.RestaurantID, order.Lines); err != nil {
		s.logger.Error("stock_release_failed", "Failed to release stock for cancelled order", "", map[string]interface{}{
			"order_id": order.ID,
		}, err)
	}

	if err := s.recorder.Record(ctx, order.ID, domain.EventCancelled,
		"Order cancelled", "This order has been cancelled"); err != nil {
		return nil, err
	}

	s.publishStatus(ctx, order, &oldStatus, actor.ID)

	s.logger.Info("order_cancelled", fmt.Sprintf("Order %s cancelled", order.Number), "", map[string]interface{}{
		"order_id": order.ID,
		"reason":   reason,
	})

	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID int64, actor domain.Actor) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, status *domain.Status, orderType *domain.OrderType, actor domain.Actor) ([]*domain.Order, error) {
	if err := s.gate.AuthorizeRestaurant(ctx, actor, actor.RestaurantID); err != nil {
		return nil, err
	}

	if actor.HasRole(domain.RoleCustomer) && !actor.HasAnyRole(domain.RoleManager, domain.RoleAdmin) {
		return s.orders.ListByCustomer(ctx, actor.RestaurantID, actor.ID)
	}

	var statuses []domain.Status
	if status != nil {
		statuses = []domain.Status{*status}
	}
	return s.orders.ListByStatus(ctx, actor.RestaurantID, statuses, orderType)
}

func (s *Service) History(ctx context.Context, orderID int64, actor domain.Actor) ([]*domain.StatusTransitionRecord, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, order, actor); err != nil {
		return nil, err
	}
	return s.orders.Transitions(ctx, orderID)
}

func (s *Service) authorizeRead(ctx context.Context, order *domain.Order, actor domain.Actor) error {
	if actor.System {
		return nil
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return err
	}
	if actor.HasAnyRole(domain.RoleManager, domain.RoleAdmin, domain.RoleKitchenStaff) {
		return nil
	}
	if actor.HasRole(domain.RoleCustomer) {
		if order.CustomerID != actor.ID {
			return domain.Forbiddenf("access denied to this order")
		}
		return nil
	}
	if actor.HasRole(domain.RoleDeliveryPartner) {
		a, err := s.deliveries.FindByOrder(ctx, order.ID)
		if err != nil || a.PartnerID != actor.ID {
			return domain.Forbiddenf("access denied to this order")
		}
		return nil
	}
	return domain.Forbiddenf("access denied to this order")
}

func (s *Service) publishStatus(ctx context.Context, order *domain.Order, old *domain.Status, changedBy int64) {
	msg := interfaces.OrderStatusMessage{
		OrderID:      order.ID,
		OrderNumber:  order.Number,
		RestaurantID: order.RestaurantID,
		CustomerID:   order.CustomerID,
		OldStatus:    old,
		NewStatus:    order.Status,
		Message:      statusMessage(order),
		ChangedBy:    changedBy,
		Timestamp:    time.Now(),
	}
	if err := s.notifier.PublishOrderStatus(ctx, msg); err != nil {
		// Notification loss never fails the transition itself.
		s.logger.Error("notify_publish_failed", "Failed to publish status notification", "", map[string]interface{}{
			"order_id": order.ID,
		}, err)
	}
}

func timelineFor(order *domain.Order, target domain.Status) (domain.EventKind, string, string) {
	switch target {
	case domain.StatusConfirmed:
		return domain.EventOrderConfirmed, "Order confirmed",
			"Your order has been confirmed and will be prepared soon"
	case domain.StatusPreparing:
		return domain.EventKitchenStarted, "Kitchen has started preparing your order",
			"Your food is being prepared by our chefs"
	case domain.StatusReady:
		desc := "Your order is ready for pickup"
		if order.Type == domain.OrderTypeDineIn {
			desc = "Your food will be served shortly"
		}
		return domain.EventFoodReady, "Your order is ready!", desc
	case domain.StatusOutForDelivery:
		return domain.EventOutForDelivery, "Order is on the way!",
			"Your delivery partner is heading to your location"
	case domain.StatusCompleted:
		if order.Type == domain.OrderTypeDelivery {
			return domain.EventDelivered, "Order delivered!",
				"Your order has been delivered. Enjoy your meal!"
		}
		return domain.EventCompleted, "Order completed", "Thank you for your order!"
	default:
		return domain.EventCancelled, "Order cancelled", "This order has been cancelled"
	}
}

func statusMessage(order *domain.Order) string {
	switch order.Status {
	case domain.StatusPending:
		return "We've received your order and are reviewing it"
	case domain.StatusConfirmed:
		return "Your order has been confirmed and will be prepared soon"
	case domain.StatusPreparing:
		return "Our chefs are preparing your food"
	case domain.StatusReady:
		if order.Type == domain.OrderTypeDineIn {
			return "Your food will be served shortly"
		}
		return "Your order is ready for pickup"
	case domain.StatusOutForDelivery:
		return "Your order is on the way to you"
	case domain.StatusCompleted:
		return "Enjoy your meal!"
	case domain.StatusCancelled:
		return "This order has been cancelled"
	default:
		return ""
	}
}
