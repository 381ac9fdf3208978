package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/app/timeline"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
	"github.com/dastanm/restops/internal/lock"
)

// Service dispatches ready delivery orders to partners and walks each
// assignment through its forward-only progression. A partner carries
// at most Capacity concurrently active assignments; the count-and-create
// in Assign runs under the partner lock so concurrent assignments
// cannot overshoot the cap.
type Service struct {
	orders    interfaces.OrderRepository
	repo      interfaces.DeliveryRepository
	lifecycle interfaces.OrderLifecycle
	gate      interfaces.AuthorizationGate
	partners  interfaces.PartnerDirectory
	recorder  *timeline.Recorder
	notifier  interfaces.NotificationGateway
	locks     *lock.KeyedMutex
	logger    logger.Logger

	capacity           int
	pickupEtaMinutes   int
	deliveryEtaMinutes int
}

func NewService(
	orders interfaces.OrderRepository,
	repo interfaces.DeliveryRepository,
	lifecycle interfaces.OrderLifecycle,
	gate interfaces.AuthorizationGate,
	partners interfaces.PartnerDirectory,
	recorder *timeline.Recorder,
	notifier interfaces.NotificationGateway,
	locks *lock.KeyedMutex,
	capacity, pickupEtaMinutes, deliveryEtaMinutes int,
	logger logger.Logger,
) *Service {
	return &Service{
		orders:             orders,
		repo:               repo,
		lifecycle:          lifecycle,
		gate:               gate,
		partners:           partners,
		recorder:           recorder,
		notifier:           notifier,
		locks:              locks,
		capacity:           capacity,
		pickupEtaMinutes:   pickupEtaMinutes,
		deliveryEtaMinutes: deliveryEtaMinutes,
		logger:             logger,
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func partnerKey(id int64) string {
	return fmt.Sprintf("partner:%d", id)
}

// Assign attaches a partner to a ready delivery order. Manager
// authority only; one assignment per order; the partner must be under
// the capacity cap.
func (s *Service) Assign(ctx context.Context, orderID, partnerID int64, actor domain.Actor) (*domain.DeliveryAssignment, error) {
	if !actor.HasAnyRole(domain.RoleManager, domain.RoleAdmin) {
		return nil, domain.Forbiddenf("assigning deliveries requires manager authority")
	}

	partner, err := s.partners.Partner(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(orderKey(orderID))
	defer s.locks.Unlock(orderKey(orderID))
	s.locks.Lock(partnerKey(partnerID))
	defer s.locks.Unlock(partnerKey(partnerID))

	// The order is read under its lock so the READY check cannot race
	// a concurrent status change.
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return nil, err
	}

	if order.Type != domain.OrderTypeDelivery {
		return nil, domain.BadRequestf("order %s is not a delivery order", order.Number)
	}
	if order.Status != domain.StatusReady {
		return nil, domain.BadRequestf("order %s is %s, only READY orders can be assigned", order.Number, order.Status)
	}

	if existing, err := s.repo.FindByOrder(ctx, orderID); err == nil && existing != nil {
		return nil, domain.BadRequestf("order %s already has a delivery assignment", order.Number)
	} else if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	active, err := s.repo.CountActiveForPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if active >= s.capacity {
		return nil, domain.BadRequestf("partner %s already has %d active deliveries", partner.Name, active)
	}

	now := time.Now()
	pickup := now.Add(time.Duration(s.pickupEtaMinutes) * time.Minute)

	// The delivery window starts from the moment the food was ready,
	// not from the assignment.
	readyAt := now
	if order.ActualReadyAt != nil {
		readyAt = *order.ActualReadyAt
	}
	eta := readyAt.Add(time.Duration(s.deliveryEtaMinutes) * time.Minute)

	a := &domain.DeliveryAssignment{
		OrderID:             orderID,
		PartnerID:           partnerID,
		Status:              domain.DeliveryAssigned,
		AssignedAt:          now,
		EstimatedPickupAt:   &pickup,
		EstimatedDeliveryAt: &eta,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, orderID, domain.EventDeliveryAssigned,
		"Delivery partner assigned", fmt.Sprintf("%s will deliver your order", partner.Name)); err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, order, a, fmt.Sprintf("%s has been assigned to your order", partner.Name))

	s.logger.Info("delivery_assigned", fmt.Sprintf("Order %s assigned to partner %d", order.Number, partnerID), "", map[string]interface{}{
		"order_id":   orderID,
		"partner_id": partnerID,
	})

	return a, nil
}

func (s *Service) Accept(ctx context.Context, assignmentID int64, actor domain.Actor) (*domain.DeliveryAssignment, error) {
	a, order, err := s.loadOwned(ctx, assignmentID, actor)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(orderKey(a.OrderID))
	defer s.locks.Unlock(orderKey(a.OrderID))

	if err := a.Advance(domain.DeliveryAccepted, time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, order, a, "Your delivery partner has accepted the order")
	return a, nil
}

// MarkPickedUp advances the assignment to PICKED_UP and moves the
// order to OUT_FOR_DELIVERY on the partner's authority.
func (s *Service) MarkPickedUp(ctx context.Context, assignmentID int64, loc *interfaces.LocationUpdate, actor domain.Actor) (*domain.DeliveryAssignment, error) {
	a, order, err := s.loadOwned(ctx, assignmentID, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := a.Advance(domain.DeliveryPickedUp, now); err != nil {
		return nil, err
	}
	if loc != nil {
		applyLocation(a, *loc, now)
	}

	// The order transition commits first; a refused transition leaves
	// the assignment untouched in the store.
	order, err = s.lifecycle.Transition(ctx, a.OrderID, domain.StatusOutForDelivery, "Picked up by delivery partner", actor)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(orderKey(a.OrderID))
	err = s.repo.Update(ctx, a)
	s.locks.Unlock(orderKey(a.OrderID))
	if err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, a.OrderID, domain.EventPickedUp,
		"Order picked up", "Your delivery partner has picked up your order"); err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, order, a, "Your order is on the way to you")
	return a, nil
}

func (s *Service) MarkInTransit(ctx context.Context, assignmentID int64, actor domain.Actor) (*domain.DeliveryAssignment, error) {
	a, order, err := s.loadOwned(ctx, assignmentID, actor)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(orderKey(a.OrderID))
	defer s.locks.Unlock(orderKey(a.OrderID))

	if err := a.Advance(domain.DeliveryInTransit, time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, order, a, "Your order is in transit")
	return a, nil
}

// MarkDelivered closes the assignment and completes the order.
func (s *Service) MarkDelivered(ctx context.Context, assignmentID int64, notes string, actor domain.Actor) (*domain.DeliveryAssignment, error) {
	a, order, err := s.loadOwned(ctx, assignmentID, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := a.Advance(domain.DeliveryDelivered, now); err != nil {
		return nil, err
	}
	if notes != "" {
		a.Notes = notes
	}

	// Same write ordering as pickup: order first, assignment second.
	order, err = s.lifecycle.Transition(ctx, a.OrderID, domain.StatusCompleted, "Delivered to customer", actor)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(orderKey(a.OrderID))
	err = s.repo.Update(ctx, a)
	s.locks.Unlock(orderKey(a.OrderID))
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, order, a, "Your order has been delivered. Enjoy your meal!")

	s.logger.Info("delivery_completed", fmt.Sprintf("Order %s delivered by partner %d", order.Number, a.PartnerID), "", map[string]interface{}{
		"order_id":      a.OrderID,
		"total_minutes": a.TotalMinutes(),
	})

	return a, nil
}

// UpdateLocation is a high-frequency position ping. Last write wins;
// no locks, no status validation. Only an ownership mismatch rejects
// a ping.
func (s *Service) UpdateLocation(ctx context.Context, assignmentID int64, loc interfaces.LocationUpdate, actor domain.Actor) error {
	a, _, err := s.loadOwned(ctx, assignmentID, actor)
	if err != nil {
		return err
	}

	applyLocation(a, loc, time.Now())
	return s.repo.UpdatePosition(ctx, a)
}

// AvailableOrders lists READY delivery orders that have no assignment
// yet.
func (s *Service) AvailableOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if !actor.HasAnyRole(domain.RoleDeliveryPartner, domain.RoleManager, domain.RoleAdmin) {
		return nil, domain.Forbiddenf("listing available deliveries requires partner or manager authority")
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, actor.RestaurantID); err != nil {
		return nil, err
	}

	t := domain.OrderTypeDelivery
	ready, err := s.orders.ListByStatus(ctx, actor.RestaurantID, []domain.Status{domain.StatusReady}, &t)
	if err != nil {
		return nil, err
	}

	available := make([]*domain.Order, 0, len(ready))
	for _, o := range ready {
		_, err := s.repo.FindByOrder(ctx, o.ID)
		if domain.IsNotFound(err) {
			available = append(available, o)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return available, nil
}

func (s *Service) ActiveForPartner(ctx context.Context, actor domain.Actor) ([]*interfaces.DeliveryView, error) {
	if !actor.HasRole(domain.RoleDeliveryPartner) {
		return nil, domain.Forbiddenf("only delivery partners have an active delivery list")
	}

	assignments, err := s.repo.ListActiveForPartner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	views := make([]*interfaces.DeliveryView, 0, len(assignments))
	for _, a := range assignments {
		order, err := s.orders.FindByID(ctx, a.OrderID)
		if err != nil {
			return nil, err
		}
		v := &interfaces.DeliveryView{Assignment: a, OrderNumber: order.Number}
		if order.DeliveryAddress != nil {
			v.Address = *order.DeliveryAddress
		}
		views = append(views, v)
	}
	return views, nil
}

// loadOwned resolves an assignment and checks the caller is the
// assigned partner. Nobody else progresses a delivery, managers
// included.
func (s *Service) loadOwned(ctx context.Context, assignmentID int64, actor domain.Actor) (*domain.DeliveryAssignment, *domain.Order, error) {
	a, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.orders.FindByID(ctx, a.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return nil, nil, err
	}

	if !actor.HasRole(domain.RoleDeliveryPartner) || actor.ID != a.PartnerID {
		return nil, nil, domain.Forbiddenf("this delivery is assigned to a different partner")
	}
	return a, order, nil
}

func applyLocation(a *domain.DeliveryAssignment, loc interfaces.LocationUpdate, now time.Time) {
	lat, lng := loc.Latitude, loc.Longitude
	a.CurrentLatitude = &lat
	a.CurrentLongitude = &lng
	a.DistanceRemainingKm = loc.DistanceRemainingKm
	t := now
	a.LastLocationAt = &t
}

func (s *Service) publishUpdate(ctx context.Context, order *domain.Order, a *domain.DeliveryAssignment, message string) {
	msg := interfaces.DeliveryUpdateMessage{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		CustomerID:  order.CustomerID,
		PartnerID:   a.PartnerID,
		Status:      a.Status,
		Message:     message,
		Timestamp:   time.Now(),
	}
	if err := s.notifier.PublishDeliveryUpdate(ctx, msg); err != nil {
		s.logger.Error("notify_publish_failed", "Failed to publish delivery notification", "", map[string]interface{}{
			"order_id": order.ID,
		}, err)
	}
}
