package memory

import (
	"context"
	"sync"

	"github.com/dastanm/restops/internal/domain"
)

// OrderRepository is the in-memory order store used by tests and local
// development. All methods copy on the way in and out so callers never
// share mutable state with the store.
type OrderRepository struct {
	mu          sync.Mutex
	orders      map[int64]*domain.Order
	byNumber    map[string]int64
	transitions map[int64][]*domain.StatusTransitionRecord
	nextID      int64
	nextLineID  int64
	nextRecID   int64
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:      make(map[int64]*domain.Order),
		byNumber:    make(map[string]int64),
		transitions: make(map[int64][]*domain.StatusTransitionRecord),
	}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byNumber[order.Number]; exists {
		return domain.BadRequestf("order number %s already exists", order.Number)
	}

	r.nextID++
	order.ID = r.nextID
	for i := range order.Lines {
		r.nextLineID++
		order.Lines[i].ID = r.nextLineID
		order.Lines[i].OrderID = order.ID
	}

	r.orders[order.ID] = cloneOrder(order)
	r.byNumber[order.Number] = order.ID
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NotFoundf("order %d not found", id)
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byNumber[number]
	if !ok {
		return nil, domain.NotFoundf("order %s not found", number)
	}
	return cloneOrder(r.orders[id]), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		return domain.NotFoundf("order %d not found", order.ID)
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) ListByStatus(ctx context.Context, restaurantID int64, statuses []domain.Status, orderType *domain.OrderType) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[domain.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []*domain.Order
	for _, o := range r.orders {
		if o.RestaurantID != restaurantID {
			continue
		}
		if len(want) > 0 && !want[o.Status] {
			continue
		}
		if orderType != nil && o.Type != *orderType {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sortOrders(out)
	return out, nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, restaurantID, customerID int64) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Order
	for _, o := range r.orders {
		if o.RestaurantID == restaurantID && o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	sortOrders(out)
	return out, nil
}

func (r *OrderRepository) AppendTransition(ctx context.Context, rec *domain.StatusTransitionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextRecID++
	rec.ID = r.nextRecID
	c := *rec
	r.transitions[rec.OrderID] = append(r.transitions[rec.OrderID], &c)
	return nil
}

func (r *OrderRepository) Transitions(ctx context.Context, orderID int64) ([]*domain.StatusTransitionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := r.transitions[orderID]
	out := make([]*domain.StatusTransitionRecord, len(recs))
	for i, rec := range recs {
		c := *rec
		out[i] = &c
	}
	return out, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = make([]domain.OrderLine, len(o.Lines))
	copy(c.Lines, o.Lines)
	for i := range c.Lines {
		mods := make([]domain.LineModifier, len(o.Lines[i].Modifiers))
		copy(mods, o.Lines[i].Modifiers)
		c.Lines[i].Modifiers = mods
	}
	return &c
}

// Newest first, matching the SQL adapter's ORDER BY created_at DESC.
func sortOrders(orders []*domain.Order) {
	for i := 1; i < len(orders); i++ {
		for j := i; j > 0 && orders[j].CreatedAt.After(orders[j-1].CreatedAt); j-- {
			orders[j], orders[j-1] = orders[j-1], orders[j]
		}
	}
}
