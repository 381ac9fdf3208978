package kitchen

import (
	"context"
	"fmt"
	"time"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
	"github.com/dastanm/restops/internal/lock"
)

// Service tracks per-line preparation units and escalates the order to
// READY once every unit is done. Unit materialization is idempotent:
// the unit set is created exactly once, on the order's first entry
// into PREPARING, one unit per order line.
type Service struct {
	orders    interfaces.OrderRepository
	units     interfaces.KitchenRepository
	lifecycle interfaces.OrderLifecycle
	gate      interfaces.AuthorizationGate
	locks     *lock.KeyedMutex
	logger    logger.Logger

	defaultTargetMinutes int
}

func NewService(
	orders interfaces.OrderRepository,
	units interfaces.KitchenRepository,
	lifecycle interfaces.OrderLifecycle,
	gate interfaces.AuthorizationGate,
	locks *lock.KeyedMutex,
	defaultTargetMinutes int,
	logger logger.Logger,
) *Service {
	return &Service{
		orders:               orders,
		units:                units,
		lifecycle:            lifecycle,
		gate:                 gate,
		locks:                locks,
		defaultTargetMinutes: defaultTargetMinutes,
		logger:               logger,
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func kitchenAuthority(actor domain.Actor) error {
	if actor.System {
		return nil
	}
	if !actor.HasAnyRole(domain.RoleKitchenStaff, domain.RoleManager, domain.RoleAdmin) {
		return domain.Forbiddenf("kitchen operations require kitchen staff authority")
	}
	return nil
}

// StartPreparation is the kitchen entry point: it transitions the
// order into PREPARING (which materializes the unit set) and applies
// the request-supplied per-line staff/station assignments.
func (s *Service) StartPreparation(ctx context.Context, orderID int64, cmd interfaces.StartPreparationCommand, actor domain.Actor) (*interfaces.KitchenOrderView, error) {
	if err := kitchenAuthority(actor); err != nil {
		return nil, err
	}

	order, err := s.lifecycle.Transition(ctx, orderID, domain.StatusPreparing, cmd.Notes, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if cmd.EstimatedMinutes != nil {
		ready := now.Add(time.Duration(*cmd.EstimatedMinutes) * time.Minute)
		order.EstimatedReadyAt = &ready
		if err := s.orders.UpdateStatus(ctx, order); err != nil {
			return nil, err
		}
		if m, merr := s.units.MetricsByOrder(ctx, orderID); merr == nil {
			m.TargetMinutes = *cmd.EstimatedMinutes
			if err := s.units.SaveMetrics(ctx, m); err != nil {
				return nil, err
			}
		}
	}

	if len(cmd.Assignments) > 0 {
		if err := s.applyAssignments(ctx, orderID, cmd.Assignments); err != nil {
			return nil, err
		}
	}

	s.logger.Info("preparation_started", fmt.Sprintf("Kitchen started on order %s", order.Number), "", map[string]interface{}{
		"order_id": order.ID,
	})

	return s.view(ctx, order)
}

// MaterializeUnits creates the preparation unit set for an order, one
// unit per line. Re-invocation is a no-op. Invoked by the lifecycle
// manager on every transition into PREPARING.
func (s *Service) MaterializeUnits(ctx context.Context, order *domain.Order, assignments []interfaces.UnitAssignment) error {
	existing, err := s.units.UnitsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	byLine := make(map[int64]interfaces.UnitAssignment, len(assignments))
	for _, a := range assignments {
		byLine[a.OrderLineID] = a
	}

	now := time.Now()
	units := make([]*domain.PreparationUnit, 0, len(order.Lines))
	for _, line := range order.Lines {
		u := &domain.PreparationUnit{
			OrderID:     order.ID,
			OrderLineID: line.ID,
			State:       domain.UnitPending,
			CreatedAt:   now,
		}
		if a, ok := byLine[line.ID]; ok {
			u.AssignedStaffID = a.StaffID
			u.Station = a.Station
		}
		units = append(units, u)
	}

	if err := s.units.CreateUnits(ctx, units); err != nil {
		return err
	}

	return s.enterKitchenMetrics(ctx, order, len(units), now)
}

func (s *Service) applyAssignments(ctx context.Context, orderID int64, assignments []interfaces.UnitAssignment) error {
	units, err := s.units.UnitsByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	byLine := make(map[int64]interfaces.UnitAssignment, len(assignments))
	for _, a := range assignments {
		byLine[a.OrderLineID] = a
	}

	for _, u := range units {
		a, ok := byLine[u.OrderLineID]
		if !ok {
			continue
		}
		u.AssignedStaffID = a.StaffID
		u.Station = a.Station
		if err := s.units.UpdateUnit(ctx, u); err != nil {
			return err
		}
	}

	return nil
}

// UpdateUnit advances one preparation unit and applies the auto-ready
// rule: when the last unit reaches DONE the order escalates to READY
// on behalf of the system actor. The unit write and the all-done check
// run under the order lock so concurrent completions of the last two
// units fire the escalation exactly once.
func (s *Service) UpdateUnit(ctx context.Context, orderID, unitID int64, cmd interfaces.UpdateUnitCommand, actor domain.Actor) (*domain.PreparationUnit, error) {
	if err := kitchenAuthority(actor); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, order.RestaurantID); err != nil {
		return nil, err
	}

	var unit *domain.PreparationUnit
	allDone := false

	s.locks.Lock(orderKey(orderID))
	unit, allDone, err = s.advanceUnit(ctx, orderID, unitID, cmd)
	s.locks.Unlock(orderKey(orderID))
	if err != nil {
		return nil, err
	}

	if allDone && order.Status == domain.StatusPreparing {
		if _, err := s.lifecycle.Transition(ctx, orderID, domain.StatusReady, "All items prepared", domain.SystemActor); err != nil {
			// A concurrent manual ready or cancellation got there
			// first; the unit update itself already succeeded.
			s.logger.Error("auto_ready_failed", "Automatic READY escalation rejected", "", map[string]interface{}{
				"order_id": orderID,
			}, err)
		} else {
			s.logger.Info("auto_ready", fmt.Sprintf("All units done, order %s auto-escalated to READY", order.Number), "", map[string]interface{}{
				"order_id": orderID,
			})
			if err := s.completeMetrics(ctx, orderID, time.Now()); err != nil {
				return nil, err
			}
		}
	}

	return unit, nil
}

func (s *Service) advanceUnit(ctx context.Context, orderID, unitID int64, cmd interfaces.UpdateUnitCommand) (*domain.PreparationUnit, bool, error) {
	units, err := s.units.UnitsByOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	var unit *domain.PreparationUnit
	for _, u := range units {
		if u.ID == unitID {
			unit = u
			break
		}
	}
	if unit == nil {
		return nil, false, domain.NotFoundf("preparation unit %d not found for order %d", unitID, orderID)
	}

	if err := unit.Advance(cmd.State, cmd.Notes, time.Now()); err != nil {
		return nil, false, err
	}
	if err := s.units.UpdateUnit(ctx, unit); err != nil {
		return nil, false, err
	}

	allDone := len(units) > 0
	for _, u := range units {
		if u.State != domain.UnitDone {
			allDone = false
			break
		}
	}

	return unit, allDone, nil
}

// MarkReady is the manual PREPARING -> READY path.
func (s *Service) MarkReady(ctx context.Context, orderID int64, notes string, actor domain.Actor) (*domain.Order, error) {
	if err := kitchenAuthority(actor); err != nil {
		return nil, err
	}

	order, err := s.lifecycle.Transition(ctx, orderID, domain.StatusReady, notes, actor)
	if err != nil {
		return nil, err
	}

	if err := s.completeMetrics(ctx, orderID, time.Now()); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *Service) ActiveOrders(ctx context.Context, actor domain.Actor) ([]*interfaces.KitchenOrderView, error) {
	if err := kitchenAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, actor.RestaurantID); err != nil {
		return nil, err
	}

	active := []domain.Status{domain.StatusConfirmed, domain.StatusPreparing}
	orders, err := s.orders.ListByStatus(ctx, actor.RestaurantID, active, nil)
	if err != nil {
		return nil, err
	}

	views := make([]*interfaces.KitchenOrderView, 0, len(orders))
	for _, o := range orders {
		v, err := s.view(ctx, o)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) DailyMetrics(ctx context.Context, day time.Time, actor domain.Actor) (*interfaces.KitchenMetricsSummary, error) {
	if err := kitchenAuthority(actor); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRestaurant(ctx, actor, actor.RestaurantID); err != nil {
		return nil, err
	}

	metrics, err := s.units.MetricsByDate(ctx, actor.RestaurantID, day)
	if err != nil {
		return nil, err
	}

	summary := &interfaces.KitchenMetricsSummary{Date: day, TotalOrders: len(metrics)}
	if len(metrics) == 0 {
		return summary, nil
	}

	var prepSum, prepCount int
	for _, m := range metrics {
		if m.ReadyAt != nil {
			summary.CompletedOrders++
		}
		if m.ActualMinutes != nil {
			prepSum += *m.ActualMinutes
			prepCount++
		}
		if m.OnTime {
			summary.OrdersOnTime++
		}
	}
	summary.InProgressOrders = summary.TotalOrders - summary.CompletedOrders
	summary.OrdersDelayed = summary.TotalOrders - summary.OrdersOnTime
	if prepCount > 0 {
		summary.AvgPrepMinutes = float64(prepSum) / float64(prepCount)
	}
	summary.OnTimePercent = float64(summary.OrdersOnTime) * 100.0 / float64(summary.TotalOrders)

	return summary, nil
}

// enterKitchenMetrics seeds the metrics row when the order enters
// active preparation.
func (s *Service) enterKitchenMetrics(ctx context.Context, order *domain.Order, totalUnits int, now time.Time) error {
	m, err := s.units.MetricsByOrder(ctx, order.ID)
	if err != nil {
		if !domain.IsNotFound(err) {
			return err
		}
		m = &domain.PreparationMetrics{
			OrderID:       order.ID,
			RestaurantID:  order.RestaurantID,
			TargetMinutes: s.defaultTargetMinutes,
			OnTime:        true,
		}
	}

	t := now
	m.KitchenStartedAt = &t
	m.TotalUnits = totalUnits
	if confirmed := s.confirmedAt(ctx, order.ID); confirmed != nil {
		m.ConfirmedAt = confirmed
	}
	m.Recalculate()

	return s.units.SaveMetrics(ctx, m)
}

// completeMetrics closes the metrics row when the order reaches READY,
// whether manually or through auto-ready.
func (s *Service) completeMetrics(ctx context.Context, orderID int64, now time.Time) error {
	m, err := s.units.MetricsByOrder(ctx, orderID)
	if err != nil {
		if !domain.IsNotFound(err) {
			return err
		}
		m = &domain.PreparationMetrics{
			OrderID:       orderID,
			TargetMinutes: s.defaultTargetMinutes,
			OnTime:        true,
		}
	}

	t := now
	m.KitchenCompletedAt = &t
	m.ReadyAt = &t
	m.Recalculate()

	return s.units.SaveMetrics(ctx, m)
}

func (s *Service) confirmedAt(ctx context.Context, orderID int64) *time.Time {
	recs, err := s.orders.Transitions(ctx, orderID)
	if err != nil {
		return nil
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].To == domain.StatusConfirmed {
			t := recs[i].At
			return &t
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, order *domain.Order) (*interfaces.KitchenOrderView, error) {
	units, err := s.units.UnitsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	done := 0
	for _, u := range units {
		if u.State == domain.UnitDone {
			done++
		}
	}

	return &interfaces.KitchenOrderView{
		Order:          order,
		Units:          units,
		UnitsDone:      done,
		ElapsedMinutes: int(time.Since(order.CreatedAt).Minutes()),
	}, nil
}
