package kitchen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/adapter/memory"
	"github.com/dastanm/restops/internal/app/order"
	"github.com/dastanm/restops/internal/app/timeline"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
	"github.com/dastanm/restops/internal/lock"
)

type testEnv struct {
	kitchen *Service
	orders  *order.Service
	repo    *memory.KitchenRepository
	store   *memory.OrderRepository
	events  *memory.TimelineRepository
}

var (
	customer = domain.Actor{ID: 7, RestaurantID: 1, Roles: []domain.Role{domain.RoleCustomer}}
	manager  = domain.Actor{ID: 2, RestaurantID: 1, Roles: []domain.Role{domain.RoleManager}}
	chef     = domain.Actor{ID: 3, RestaurantID: 1, Roles: []domain.Role{domain.RoleKitchenStaff}}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewOrderRepository()
	kitchenRepo := memory.NewKitchenRepository()
	events := memory.NewTimelineRepository()
	ledger := memory.NewInventoryLedger()
	ledger.SetStock(1, 100)
	ledger.SetStock(2, 100)

	catalog := memory.NewCatalog()
	catalog.AddItem(interfaces.CatalogItem{ID: 1, Name: "Margherita", Price: decimal.RequireFromString("12.50")})
	catalog.AddItem(interfaces.CatalogItem{ID: 2, Name: "Lemonade", Price: decimal.RequireFromString("4.00")})

	lgr := logger.NewNop()
	locks := lock.NewKeyedMutex()
	pricing := domain.Pricing{
		TaxRate:     decimal.RequireFromString("0.10"),
		DeliveryFee: decimal.RequireFromString("5.00"),
		PrepMinutes: 30,
	}

	orderSvc := order.NewService(store, memory.NewDeliveryRepository(), memory.NewAuthorizationGate(),
		ledger, catalog, timeline.NewRecorder(events, lgr), memory.NewNotificationGateway(),
		locks, pricing, lgr)
	kitchenSvc := NewService(store, kitchenRepo, orderSvc, memory.NewAuthorizationGate(),
		locks, 30, lgr)
	orderSvc.BindKitchen(kitchenSvc)

	return &testEnv{
		kitchen: kitchenSvc,
		orders:  orderSvc,
		repo:    kitchenRepo,
		store:   store,
		events:  events,
	}
}

func (e *testEnv) confirmedOrder(t *testing.T) *domain.Order {
	t.Helper()
	ctx := context.Background()

	addr := "42 Main St"
	o, err := e.orders.Create(ctx, interfaces.CreateOrderCommand{
		OrderType:       "DELIVERY",
		DeliveryAddress: &addr,
		Lines: []interfaces.CreateOrderLineCommand{
			{ItemID: 1, Quantity: 2},
			{ItemID: 2, Quantity: 1},
		},
	}, customer)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := e.orders.Transition(ctx, o.ID, domain.StatusConfirmed, "", manager); err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	return o
}

func TestStartPreparationCreatesUnits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.confirmedOrder(t)

	staffID := int64(3)
	station := "grill"
	full, _ := env.orders.Get(ctx, o.ID, manager)

	view, err := env.kitchen.StartPreparation(ctx, o.ID, interfaces.StartPreparationCommand{
		Assignments: []interfaces.UnitAssignment{
			{OrderLineID: full.Lines[0].ID, StaffID: &staffID, Station: &station},
		},
	}, chef)
	if err != nil {
		t.Fatalf("start preparation: %v", err)
	}

	if view.Order.Status != domain.StatusPreparing {
		t.Errorf("status = %s, want PREPARING", view.Order.Status)
	}
	if len(view.Units) != len(full.Lines) {
		t.Fatalf("units = %d, want one per line (%d)", len(view.Units), len(full.Lines))
	}
	for _, u := range view.Units {
		if u.State != domain.UnitPending {
			t.Errorf("unit %d state = %s, want PENDING", u.ID, u.State)
		}
	}

	var assigned *domain.PreparationUnit
	for _, u := range view.Units {
		if u.OrderLineID == full.Lines[0].ID {
			assigned = u
		}
	}
	if assigned == nil || assigned.AssignedStaffID == nil || *assigned.AssignedStaffID != staffID {
		t.Errorf("assignment not applied: %+v", assigned)
	}

	m, err := env.repo.MetricsByOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("metrics missing: %v", err)
	}
	if m.KitchenStartedAt == nil || m.TotalUnits != len(full.Lines) {
		t.Errorf("metrics = %+v", m)
	}
	if m.ConfirmedAt == nil {
		t.Error("metrics missing confirmation time")
	}
}

func TestMaterializeUnitsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.confirmedOrder(t)

	if _, err := env.kitchen.StartPreparation(ctx, o.ID, interfaces.StartPreparationCommand{}, chef); err != nil {
		t.Fatalf("start preparation: %v", err)
	}
	before, _ := env.repo.UnitsByOrder(ctx, o.ID)

	full, _ := env.orders.Get(ctx, o.ID, manager)
	if err := env.kitchen.MaterializeUnits(ctx, full, nil); err != nil {
		t.Fatalf("re-materialize: %v", err)
	}

	after, _ := env.repo.UnitsByOrder(ctx, o.ID)
	if len(after) != len(before) {
		t.Errorf("units grew from %d to %d on re-materialize", len(before), len(after))
	}
}

func TestStartPreparationRequiresKitchenRole(t *testing.T) {
	env := newTestEnv(t)
	o := env.confirmedOrder(t)

	_, err := env.kitchen.StartPreparation(context.Background(), o.ID, interfaces.StartPreparationCommand{}, customer)
	if !domain.IsForbidden(err) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestAutoReadyWhenAllUnitsDone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.confirmedOrder(t)

	view, err := env.kitchen.StartPreparation(ctx, o.ID, interfaces.StartPreparationCommand{}, chef)
	if err != nil {
		t.Fatalf("start preparation: %v", err)
	}

	for i, u := range view.Units {
		if _, err := env.kitchen.UpdateUnit(ctx, o.ID, u.ID, interfaces.UpdateUnitCommand{State: domain.UnitInProgress}, chef); err != nil {
			t.Fatalf("unit %d in progress: %v", i, err)
		}
	}

	// First unit done: order stays PREPARING.
	if _, err := env.kitchen.UpdateUnit(ctx, o.ID, view.Units[0].ID, interfaces.UpdateUnitCommand{State: domain.UnitDone}, chef); err != nil {
		t.Fatalf("first unit done: %v", err)
	}
	mid, _ := env.orders.Get(ctx, o.ID, manager)
	if mid.Status != domain.StatusPreparing {
		t.Fatalf("status after first unit = %s, want PREPARING", mid.Status)
	}

	// Last unit done: order escalates to READY.
	if _, err := env.kitchen.UpdateUnit(ctx, o.ID, view.Units[1].ID, interfaces.UpdateUnitCommand{State: domain.UnitDone}, chef); err != nil {
		t.Fatalf("last unit done: %v", err)
	}
	done, _ := env.orders.Get(ctx, o.ID, manager)
	if done.Status != domain.StatusReady {
		t.Fatalf("status = %s, want READY", done.Status)
	}
	if done.ActualReadyAt == nil {
		t.Error("ActualReadyAt not stamped")
	}

	m, _ := env.repo.MetricsByOrder(ctx, o.ID)
	if m == nil || m.ReadyAt == nil || m.KitchenCompletedAt == nil {
		t.Errorf("completion metrics = %+v", m)
	}
}

func TestAutoReadyFiresOnceUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.confirmedOrder(t)

	view, err := env.kitchen.StartPreparation(ctx, o.ID, interfaces.StartPreparationCommand{}, chef)
	if err != nil {
		t.Fatalf("start preparation: %v", err)
	}
	if len(view.Units) != 2 {
		t.Fatalf("units = %d, want 2", len(view.Units))
	}

	// Complete the last two units from separate goroutines.
	var wg sync.WaitGroup
	wg.Add(2)
	for _, u := range view.Units {
		go func(unitID int64) {
			defer wg.Done()
			if _, err := env.kitchen.UpdateUnit(ctx, o.ID, unitID, interfaces.UpdateUnitCommand{State: domain.UnitDone}, chef); err != nil {
				t.Errorf("unit %d done: %v", unitID, err)
			}
		}(u.ID)
	}
	wg.Wait()

	final, _ := env.orders.Get(ctx, o.ID, manager)
	if final.Status != domain.StatusReady {
		t.Fatalf("status = %s, want READY", final.Status)
	}

	history, _ := env.store.Transitions(ctx, o.ID)
	ready := 0
	for _, rec := range history {
		if rec.To == domain.StatusReady {
			ready++
		}
	}
	if ready != 1 {
		t.Errorf("READY transitions = %d, want exactly 1", ready)
	}
}

func TestUpdateUnitUnknownUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.confirmedOrder(t)
	if _, err := env.kitchen.StartPreparation(ctx, o.ID, interfaces.StartPreparationCommand{}, chef); err != nil {
		t.Fatalf("start preparation: %v", err)
	}

	_, err := env.kitchen.UpdateUnit(ctx, o.ID, 9999, interfaces.UpdateUnitCommand{State: domain.UnitDone}, chef)
	if !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestMarkReadyManually(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.confirmedOrder(t)
	if _, err := env.kitchen.StartPreparation(ctx, o.ID, interfaces.StartPreparationCommand{}, chef); err != nil {
		t.Fatalf("start preparation: %v", err)
	}

	ready, err := env.kitchen.MarkReady(ctx, o.ID, "expedited", chef)
	if err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if ready.Status != domain.StatusReady {
		t.Errorf("status = %s, want READY", ready.Status)
	}

	m, _ := env.repo.MetricsByOrder(ctx, o.ID)
	if m == nil || m.ReadyAt == nil {
		t.Errorf("metrics after manual ready = %+v", m)
	}
}

func TestDailyMetrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	done := env.confirmedOrder(t)
	if _, err := env.kitchen.StartPreparation(ctx, done.ID, interfaces.StartPreparationCommand{}, chef); err != nil {
		t.Fatalf("start preparation: %v", err)
	}
	if _, err := env.kitchen.MarkReady(ctx, done.ID, "", chef); err != nil {
		t.Fatalf("mark ready: %v", err)
	}

	open := env.confirmedOrder(t)
	if _, err := env.kitchen.StartPreparation(ctx, open.ID, interfaces.StartPreparationCommand{}, chef); err != nil {
		t.Fatalf("start preparation: %v", err)
	}

	summary, err := env.kitchen.DailyMetrics(ctx, time.Now(), chef)
	if err != nil {
		t.Fatalf("daily metrics: %v", err)
	}
	if summary.TotalOrders != 2 || summary.CompletedOrders != 1 || summary.InProgressOrders != 1 {
		t.Errorf("summary = %+v", summary)
	}
	// Orders still in the kitchen count as on-time until measured late.
	if summary.OrdersOnTime != 2 || summary.OnTimePercent != 100.0 {
		t.Errorf("on-time = %d (%v%%), want 2 (100%%)", summary.OrdersOnTime, summary.OnTimePercent)
	}

	if _, err := env.kitchen.DailyMetrics(ctx, time.Now(), customer); !domain.IsForbidden(err) {
		t.Errorf("customer: got %v, want forbidden", err)
	}
}

func TestActiveOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.confirmedOrder(t)
	b := env.confirmedOrder(t)
	if _, err := env.kitchen.StartPreparation(ctx, b.ID, interfaces.StartPreparationCommand{}, chef); err != nil {
		t.Fatalf("start preparation: %v", err)
	}

	views, err := env.kitchen.ActiveOrders(ctx, chef)
	if err != nil {
		t.Fatalf("active orders: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("active = %d, want 2 (confirmed %d + preparing %d)", len(views), a.ID, b.ID)
	}
}
