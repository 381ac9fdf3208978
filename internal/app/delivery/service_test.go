package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"

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
	dispatch *Service
	orders   *order.Service
	repo     *memory.DeliveryRepository
	events   *memory.TimelineRepository
	gateway  *memory.NotificationGateway
	partners *memory.PartnerDirectory
}

var (
	customer = domain.Actor{ID: 7, RestaurantID: 1, Roles: []domain.Role{domain.RoleCustomer}}
	manager  = domain.Actor{ID: 2, RestaurantID: 1, Roles: []domain.Role{domain.RoleManager}}
	chef     = domain.Actor{ID: 3, RestaurantID: 1, Roles: []domain.Role{domain.RoleKitchenStaff}}
	partnerA = domain.Actor{ID: 20, RestaurantID: 1, Roles: []domain.Role{domain.RoleDeliveryPartner}}
	partnerB = domain.Actor{ID: 21, RestaurantID: 1, Roles: []domain.Role{domain.RoleDeliveryPartner}}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewOrderRepository()
	deliveries := memory.NewDeliveryRepository()
	events := memory.NewTimelineRepository()
	gateway := memory.NewNotificationGateway()
	partners := memory.NewPartnerDirectory()
	partners.AddPartner(domain.PartnerInfo{ID: partnerA.ID, Name: "Aruzhan", Phone: "+7 701 000 0001"})
	partners.AddPartner(domain.PartnerInfo{ID: partnerB.ID, Name: "Bekzat", Phone: "+7 701 000 0002"})

	ledger := memory.NewInventoryLedger()
	ledger.SetStock(1, 100)

	catalog := memory.NewCatalog()
	catalog.AddItem(interfaces.CatalogItem{ID: 1, Name: "Margherita", Price: decimal.RequireFromString("12.50")})

	lgr := logger.NewNop()
	locks := lock.NewKeyedMutex()
	recorder := timeline.NewRecorder(events, lgr)
	pricing := domain.Pricing{
		TaxRate:     decimal.RequireFromString("0.10"),
		DeliveryFee: decimal.RequireFromString("5.00"),
		PrepMinutes: 30,
	}

	orderSvc := order.NewService(store, deliveries, memory.NewAuthorizationGate(),
		ledger, catalog, recorder, gateway, locks, pricing, lgr)
	dispatch := NewService(store, deliveries, orderSvc, memory.NewAuthorizationGate(),
		partners, recorder, gateway, locks, 3, 10, 30, lgr)

	return &testEnv{
		dispatch: dispatch,
		orders:   orderSvc,
		repo:     deliveries,
		events:   events,
		gateway:  gateway,
		partners: partners,
	}
}

// readyOrder drives a fresh delivery order through the kitchen stages
// to READY.
func (e *testEnv) readyOrder(t *testing.T) *domain.Order {
	t.Helper()
	o := e.newOrder(t, "DELIVERY")

	ctx := context.Background()
	for _, status := range []domain.Status{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady} {
		if _, err := e.orders.Transition(ctx, o.ID, status, "", manager); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	fresh, err := e.orders.Get(ctx, o.ID, manager)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return fresh
}

func (e *testEnv) newOrder(t *testing.T, orderType string) *domain.Order {
	t.Helper()

	cmd := interfaces.CreateOrderCommand{
		OrderType: orderType,
		Lines:     []interfaces.CreateOrderLineCommand{{ItemID: 1, Quantity: 1}},
	}
	if orderType == "DELIVERY" {
		addr := "42 Main St"
		cmd.DeliveryAddress = &addr
	} else {
		table := "5"
		cmd.TableNumber = &table
	}

	o, err := e.orders.Create(context.Background(), cmd, customer)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestAssign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	a, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if a.Status != domain.DeliveryAssigned {
		t.Errorf("status = %s, want ASSIGNED", a.Status)
	}
	if a.PartnerID != partnerA.ID || a.OrderID != o.ID {
		t.Errorf("assignment = %+v", a)
	}
	if a.EstimatedPickupAt == nil || a.EstimatedDeliveryAt == nil {
		t.Error("ETAs not stamped")
	}
	if a.EstimatedPickupAt != nil && a.EstimatedDeliveryAt != nil &&
		!a.EstimatedDeliveryAt.After(*a.EstimatedPickupAt) {
		t.Errorf("delivery ETA %v not after pickup ETA %v", a.EstimatedDeliveryAt, a.EstimatedPickupAt)
	}

	evts, _ := env.events.ByOrder(ctx, o.ID)
	found := false
	for _, evt := range evts {
		if evt.Kind == domain.EventDeliveryAssigned {
			found = true
		}
	}
	if !found {
		t.Error("no DELIVERY_ASSIGNED timeline event")
	}
	if len(env.gateway.DeliveryUpdates) == 0 {
		t.Error("no delivery update published")
	}
}

func TestAssignRequiresManager(t *testing.T) {
	env := newTestEnv(t)
	o := env.readyOrder(t)

	for _, actor := range []domain.Actor{customer, chef, partnerA} {
		if _, err := env.dispatch.Assign(context.Background(), o.ID, partnerA.ID, actor); !domain.IsForbidden(err) {
			t.Errorf("actor %d: got %v, want forbidden", actor.ID, err)
		}
	}
}

func TestAssignRejectsWrongOrderState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	notReady := env.newOrder(t, "DELIVERY")
	if _, err := env.dispatch.Assign(ctx, notReady.ID, partnerA.ID, manager); !domain.IsBadRequest(err) {
		t.Errorf("pending order: got %v, want bad request", err)
	}

	dineIn := env.newOrder(t, "DINE_IN")
	for _, status := range []domain.Status{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady} {
		if _, err := env.orders.Transition(ctx, dineIn.ID, status, "", manager); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	if _, err := env.dispatch.Assign(ctx, dineIn.ID, partnerA.ID, manager); !domain.IsBadRequest(err) {
		t.Errorf("dine-in order: got %v, want bad request", err)
	}
}

func TestAssignUnknownPartner(t *testing.T) {
	env := newTestEnv(t)
	o := env.readyOrder(t)

	if _, err := env.dispatch.Assign(context.Background(), o.ID, 999, manager); !domain.IsNotFound(err) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestAssignOncePerOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	if _, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := env.dispatch.Assign(ctx, o.ID, partnerB.ID, manager); !domain.IsBadRequest(err) {
		t.Errorf("second assign: got %v, want bad request", err)
	}
}

func TestPartnerCapacityCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o := env.readyOrder(t)
		if _, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager); err != nil {
			t.Fatalf("assign %d: %v", i+1, err)
		}
	}

	fourth := env.readyOrder(t)
	if _, err := env.dispatch.Assign(ctx, fourth.ID, partnerA.ID, manager); !domain.IsBadRequest(err) {
		t.Errorf("fourth assign: got %v, want bad request", err)
	}
}

func TestCapacityCapUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orders := make([]*domain.Order, 4)
	for i := range orders {
		orders[i] = env.readyOrder(t)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(orders))
	for i, o := range orders {
		wg.Add(1)
		go func(i int, orderID int64) {
			defer wg.Done()
			_, errs[i] = env.dispatch.Assign(ctx, orderID, partnerA.ID, manager)
		}(i, o.ID)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !domain.IsBadRequest(err) {
			t.Errorf("unexpected error kind: %v", err)
		}
	}
	if ok != 3 {
		t.Errorf("successful assigns = %d, want exactly 3", ok)
	}

	active, _ := env.repo.CountActiveForPartner(ctx, partnerA.ID)
	if active != 3 {
		t.Errorf("active count = %d, want 3", active)
	}
}

func TestFullDeliveryProgression(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	a, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if a, err = env.dispatch.Accept(ctx, a.ID, partnerA); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if a.Status != domain.DeliveryAccepted || a.AcceptedAt == nil {
		t.Errorf("after accept: %+v", a)
	}

	loc := &interfaces.LocationUpdate{Latitude: 43.238949, Longitude: 76.889709}
	if a, err = env.dispatch.MarkPickedUp(ctx, a.ID, loc, partnerA); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if a.Status != domain.DeliveryPickedUp || a.PickedUpAt == nil {
		t.Errorf("after pickup: %+v", a)
	}
	if a.CurrentLatitude == nil || *a.CurrentLatitude != loc.Latitude {
		t.Errorf("pickup location not recorded: %+v", a)
	}
	mid, _ := env.orders.Get(ctx, o.ID, manager)
	if mid.Status != domain.StatusOutForDelivery {
		t.Errorf("order status after pickup = %s, want OUT_FOR_DELIVERY", mid.Status)
	}

	if a, err = env.dispatch.MarkInTransit(ctx, a.ID, partnerA); err != nil {
		t.Fatalf("in transit: %v", err)
	}

	if a, err = env.dispatch.MarkDelivered(ctx, a.ID, "left at door", partnerA); err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if a.Status != domain.DeliveryDelivered || a.DeliveredAt == nil {
		t.Errorf("after delivery: %+v", a)
	}

	final, _ := env.orders.Get(ctx, o.ID, manager)
	if final.Status != domain.StatusCompleted {
		t.Errorf("order status = %s, want COMPLETED", final.Status)
	}
	if final.DeliveredAt == nil {
		t.Error("order DeliveredAt not stamped")
	}
}

func TestProgressionOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	a, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := env.dispatch.Accept(ctx, a.ID, partnerB); !domain.IsForbidden(err) {
		t.Errorf("foreign partner accept: got %v, want forbidden", err)
	}
	if _, err := env.dispatch.Accept(ctx, a.ID, customer); !domain.IsForbidden(err) {
		t.Errorf("customer accept: got %v, want forbidden", err)
	}
	// Managers dispatch but never progress a delivery themselves.
	if _, err := env.dispatch.Accept(ctx, a.ID, manager); !domain.IsForbidden(err) {
		t.Errorf("manager accept: got %v, want forbidden", err)
	}
	if _, err := env.dispatch.MarkDelivered(ctx, a.ID, "", manager); !domain.IsForbidden(err) {
		t.Errorf("manager delivered: got %v, want forbidden", err)
	}
}

func TestSkippedStageRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	a, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Pickup before accept violates the progression.
	if _, err := env.dispatch.MarkPickedUp(ctx, a.ID, nil, partnerA); !domain.IsBadRequest(err) {
		t.Errorf("got %v, want bad request", err)
	}
}

func TestUpdateLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	a, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err = env.dispatch.Accept(ctx, a.ID, partnerA); err != nil {
		t.Fatalf("accept: %v", err)
	}

	pings := []interfaces.LocationUpdate{
		{Latitude: 43.2, Longitude: 76.8},
		{Latitude: 43.3, Longitude: 76.9},
	}
	for _, p := range pings {
		if err := env.dispatch.UpdateLocation(ctx, a.ID, p, partnerA); err != nil {
			t.Fatalf("update location: %v", err)
		}
	}

	got, _ := env.repo.FindByID(ctx, a.ID)
	if got.CurrentLatitude == nil || *got.CurrentLatitude != 43.3 {
		t.Errorf("last write did not win: %+v", got)
	}

	// Only an ownership mismatch rejects a ping.
	if err := env.dispatch.UpdateLocation(ctx, a.ID, pings[0], partnerB); !domain.IsForbidden(err) {
		t.Errorf("foreign partner ping: got %v, want forbidden", err)
	}

	// Pings keep landing after the delivery closes.
	if _, err = env.dispatch.MarkPickedUp(ctx, a.ID, nil, partnerA); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err = env.dispatch.MarkDelivered(ctx, a.ID, "", partnerA); err != nil {
		t.Fatalf("delivered: %v", err)
	}
	late := interfaces.LocationUpdate{Latitude: 43.4, Longitude: 77.0}
	if err := env.dispatch.UpdateLocation(ctx, a.ID, late, partnerA); err != nil {
		t.Errorf("ping after delivery: %v", err)
	}
	got, _ = env.repo.FindByID(ctx, a.ID)
	if got.CurrentLatitude == nil || *got.CurrentLatitude != 43.4 {
		t.Errorf("late ping not recorded: %+v", got)
	}
	if got.Status != domain.DeliveryDelivered {
		t.Errorf("late ping changed status to %s", got.Status)
	}
}

func TestCapacityFreedAfterDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.dispatch.Assign(ctx, env.readyOrder(t).ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign 1: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := env.dispatch.Assign(ctx, env.readyOrder(t).ID, partnerA.ID, manager); err != nil {
			t.Fatalf("assign %d: %v", i+2, err)
		}
	}

	blocked := env.readyOrder(t)
	if _, err := env.dispatch.Assign(ctx, blocked.ID, partnerA.ID, manager); !domain.IsBadRequest(err) {
		t.Fatalf("assign at cap: got %v, want bad request", err)
	}

	// Completing one delivery frees a slot.
	if _, err := env.dispatch.Accept(ctx, first.ID, partnerA); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.dispatch.MarkPickedUp(ctx, first.ID, nil, partnerA); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := env.dispatch.MarkDelivered(ctx, first.ID, "", partnerA); err != nil {
		t.Fatalf("delivered: %v", err)
	}

	if _, err := env.dispatch.Assign(ctx, blocked.ID, partnerA.ID, manager); err != nil {
		t.Errorf("assign after slot freed: %v", err)
	}
}

func TestDeliveredNotRecordedWhenOrderRefuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.readyOrder(t)

	a, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := env.dispatch.Accept(ctx, a.ID, partnerA); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.dispatch.MarkPickedUp(ctx, a.ID, nil, partnerA); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	// The order completes out of band; the partner's MarkDelivered then
	// hits a terminal order and must leave the assignment untouched.
	if _, err := env.orders.Transition(ctx, o.ID, domain.StatusCompleted, "", manager); err != nil {
		t.Fatalf("complete order: %v", err)
	}
	if _, err := env.dispatch.MarkDelivered(ctx, a.ID, "", partnerA); !domain.IsBadRequest(err) {
		t.Fatalf("delivered on terminal order: got %v, want bad request", err)
	}

	got, _ := env.repo.FindByID(ctx, a.ID)
	if got.Status != domain.DeliveryPickedUp {
		t.Errorf("assignment = %s, want PICKED_UP", got.Status)
	}
}

func TestAvailableOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.readyOrder(t)
	taken := env.readyOrder(t)
	if _, err := env.dispatch.Assign(ctx, taken.ID, partnerB.ID, manager); err != nil {
		t.Fatalf("assign: %v", err)
	}

	avail, err := env.dispatch.AvailableOrders(ctx, partnerA)
	if err != nil {
		t.Fatalf("available orders: %v", err)
	}
	if len(avail) != 1 || avail[0].ID != open.ID {
		ids := make([]string, len(avail))
		for i, o := range avail {
			ids[i] = fmt.Sprint(o.ID)
		}
		t.Errorf("available = %v, want [%d]", ids, open.ID)
	}
}

func TestActiveForPartner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	o := env.readyOrder(t)
	if _, err := env.dispatch.Assign(ctx, o.ID, partnerA.ID, manager); err != nil {
		t.Fatalf("assign: %v", err)
	}

	views, err := env.dispatch.ActiveForPartner(ctx, partnerA)
	if err != nil {
		t.Fatalf("active for partner: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	v := views[0]
	if v.OrderNumber != o.Number || v.Address != "42 Main St" {
		t.Errorf("view = %+v", v)
	}

	other, err := env.dispatch.ActiveForPartner(ctx, partnerB)
	if err != nil {
		t.Fatalf("active for partner B: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("partner B views = %d, want 0", len(other))
	}
}
