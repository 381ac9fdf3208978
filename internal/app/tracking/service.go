package tracking

import (
	"context"
	"time"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/app/timeline"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

// Service is the read-only customer-facing view over the fulfillment
// state: live progress, narrated timeline, delivery position and ETAs.
// It never mutates anything.
type Service struct {
	orders     interfaces.OrderRepository
	units      interfaces.KitchenRepository
	deliveries interfaces.DeliveryRepository
	partners   interfaces.PartnerDirectory
	recorder   *timeline.Recorder
	gate       interfaces.AuthorizationGate
	logger     logger.Logger
}

func NewService(
	orders interfaces.OrderRepository,
	units interfaces.KitchenRepository,
	deliveries interfaces.DeliveryRepository,
	partners interfaces.PartnerDirectory,
	recorder *timeline.Recorder,
	gate interfaces.AuthorizationGate,
	logger logger.Logger,
) *Service {
	return &Service{
		orders:     orders,
		units:      units,
		deliveries: deliveries,
		partners:   partners,
		recorder:   recorder,
		gate:       gate,
		logger:     logger,
	}
}

var progressPercent = map[domain.Status]int{
	domain.StatusPending:        10,
	domain.StatusConfirmed:      25,
	domain.StatusPreparing:      50,
	domain.StatusReady:          75,
	domain.StatusOutForDelivery: 90,
	domain.StatusCompleted:      100,
	domain.StatusCancelled:      0,
}

func (s *Service) LiveStatus(ctx context.Context, orderID int64, actor domain.Actor) (*interfaces.LiveOrderStatus, error) {
	order, err := s.load(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}

	units, err := s.units.UnitsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	prepared := 0
	for _, u := range units {
		if u.State == domain.UnitDone {
			prepared++
		}
	}

	assignment := s.assignment(ctx, order)

	live := &interfaces.LiveOrderStatus{
		OrderID:          order.ID,
		OrderNumber:      order.Number,
		Status:           order.Status,
		StatusDisplay:    statusDisplay(order.Status),
		StatusMessage:    statusMessage(order),
		NextStatus:       nextStatus(order),
		ProgressPercent:  progressPercent[order.Status],
		OrderedAt:        order.CreatedAt,
		EstimatedReadyAt: order.EstimatedReadyAt,
		ActualReadyAt:    order.ActualReadyAt,
		RemainingMinutes: remainingMinutes(order, assignment, time.Now()),
		TotalUnits:       len(units),
		UnitsPrepared:    prepared,
		UnitsRemaining:   len(units) - prepared,
		CanCancel:        actor.CanCancel(order),
	}

	if assignment != nil {
		live.EstimatedDeliveryAt = assignment.EstimatedDeliveryAt
		live.CanTrackDelivery = assignment.Status == domain.DeliveryPickedUp ||
			assignment.Status == domain.DeliveryInTransit
		if snap, err := s.snapshot(ctx, assignment); err == nil {
			live.Delivery = snap
		}
	}

	return live, nil
}

func (s *Service) Timeline(ctx context.Context, orderID int64, actor domain.Actor) ([]*domain.TimelineEvent, error) {
	if _, err := s.load(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.recorder.Timeline(ctx, orderID)
}

func (s *Service) DeliveryTracking(ctx context.Context, orderID int64, actor domain.Actor) (*interfaces.DeliveryTracking, error) {
	order, err := s.load(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if order.Type != domain.OrderTypeDelivery {
		return nil, domain.BadRequestf("order %s is not a delivery order", order.Number)
	}

	assignment, err := s.deliveries.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, assignment)
	if err != nil {
		return nil, err
	}

	return &interfaces.DeliveryTracking{
		OrderID:          order.ID,
		OrderNumber:      order.Number,
		Snapshot:         *snap,
		RemainingMinutes: remainingMinutes(order, assignment, time.Now()),
	}, nil
}

func (s *Service) EstimatedTime(ctx context.Context, orderID int64, actor domain.Actor) (*interfaces.EstimatedTime, error) {
	order, err := s.load(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}

	assignment := s.assignment(ctx, order)

	est := &interfaces.EstimatedTime{
		OrderID:          order.ID,
		EstimatedReadyAt: order.EstimatedReadyAt,
		RemainingMinutes: remainingMinutes(order, assignment, time.Now()),
		Message:          statusMessage(order),
	}
	if assignment != nil {
		est.EstimatedDeliveryAt = assignment.EstimatedDeliveryAt
	}
	return est, nil
}

// load resolves the order and applies read authorization: staff see
// everything in their restaurant, customers their own orders, partners
// the orders assigned to them.
func (s *Service) load(ctx context.Context, orderID int64, actor domain.Actor) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.System {
		return order, nil
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return nil, err
	}
	if actor.HasAnyRole(domain.RoleManager, domain.RoleAdmin, domain.RoleKitchenStaff) {
		return order, nil
	}
	if actor.HasRole(domain.RoleCustomer) {
		if order.CustomerID != actor.ID {
			return nil, domain.Forbiddenf("access denied to this order")
		}
		return order, nil
	}
	if actor.HasRole(domain.RoleDeliveryPartner) {
		a, err := s.deliveries.FindByOrder(ctx, order.ID)
		if err != nil || a.PartnerID != actor.ID {
			return nil, domain.Forbiddenf("access denied to this order")
		}
		return order, nil
	}
	return nil, domain.Forbiddenf("access denied to this order")
}

func (s *Service) assignment(ctx context.Context, order *domain.Order) *domain.DeliveryAssignment {
	if order.Type != domain.OrderTypeDelivery {
		return nil
	}
	a, err := s.deliveries.FindByOrder(ctx, order.ID)
	if err != nil {
		return nil
	}
	return a
}

func (s *Service) snapshot(ctx context.Context, a *domain.DeliveryAssignment) (*interfaces.DeliverySnapshot, error) {
	partner, err := s.partners.Partner(ctx, a.PartnerID)
	if err != nil {
		return nil, err
	}
	return &interfaces.DeliverySnapshot{
		PartnerName:         partner.Name,
		PartnerPhone:        partner.Phone,
		Status:              a.Status,
		Latitude:            a.CurrentLatitude,
		Longitude:           a.CurrentLongitude,
		DistanceRemainingKm: a.DistanceRemainingKm,
		LastLocationAt:      a.LastLocationAt,
	}, nil
}

// remainingMinutes is the customer's countdown: against the delivery
// ETA once the order is out for delivery, against the kitchen estimate
// before that. Never negative; nil once the order is terminal or no
// target exists.
func remainingMinutes(order *domain.Order, a *domain.DeliveryAssignment, now time.Time) *int {
	if order.Status.Terminal() {
		return nil
	}

	var target *time.Time
	if order.Status == domain.StatusOutForDelivery && a != nil && a.EstimatedDeliveryAt != nil {
		target = a.EstimatedDeliveryAt
	} else if order.EstimatedReadyAt != nil {
		target = order.EstimatedReadyAt
	}
	if target == nil {
		return nil
	}

	m := int(target.Sub(now).Minutes())
	if m < 0 {
		m = 0
	}
	return &m
}

func statusDisplay(s domain.Status) string {
	switch s {
	case domain.StatusPending:
		return "Order Placed"
	case domain.StatusConfirmed:
		return "Confirmed"
	case domain.StatusPreparing:
		return "Being Prepared"
	case domain.StatusReady:
		return "Ready"
	case domain.StatusOutForDelivery:
		return "Out for Delivery"
	case domain.StatusCompleted:
		return "Completed"
	case domain.StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

func nextStatus(order *domain.Order) *domain.Status {
	var next domain.Status
	switch order.Status {
	case domain.StatusPending:
		next = domain.StatusConfirmed
	case domain.StatusConfirmed:
		next = domain.StatusPreparing
	case domain.StatusPreparing:
		next = domain.StatusReady
	case domain.StatusReady:
		if order.Type == domain.OrderTypeDelivery {
			next = domain.StatusOutForDelivery
		} else {
			next = domain.StatusCompleted
		}
	case domain.StatusOutForDelivery:
		next = domain.StatusCompleted
	default:
		return nil
	}
	return &next
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
