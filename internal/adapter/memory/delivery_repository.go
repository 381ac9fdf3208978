package memory

import (
	"context"
	"sync"

	"github.com/dastanm/restops/internal/domain"
)

type DeliveryRepository struct {
	mu          sync.Mutex
	assignments map[int64]*domain.DeliveryAssignment
	byOrder     map[int64]int64
	nextID      int64
}

func NewDeliveryRepository() *DeliveryRepository {
	return &DeliveryRepository{
		assignments: make(map[int64]*domain.DeliveryAssignment),
		byOrder:     make(map[int64]int64),
	}
}

func (r *DeliveryRepository) Create(ctx context.Context, a *domain.DeliveryAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[a.OrderID]; exists {
		return domain.BadRequestf("order %d already has a delivery assignment", a.OrderID)
	}

	r.nextID++
	a.ID = r.nextID
	c := *a
	r.assignments[a.ID] = &c
	r.byOrder[a.OrderID] = a.ID
	return nil
}

func (r *DeliveryRepository) FindByID(ctx context.Context, id int64) (*domain.DeliveryAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assignments[id]
	if !ok {
		return nil, domain.NotFoundf("delivery assignment %d not found", id)
	}
	c := *a
	return &c, nil
}

func (r *DeliveryRepository) FindByOrder(ctx context.Context, orderID int64) (*domain.DeliveryAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.NotFoundf("no delivery assignment for order %d", orderID)
	}
	c := *r.assignments[id]
	return &c, nil
}

func (r *DeliveryRepository) Update(ctx context.Context, a *domain.DeliveryAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assignments[a.ID]; !ok {
		return domain.NotFoundf("delivery assignment %d not found", a.ID)
	}
	c := *a
	r.assignments[a.ID] = &c
	return nil
}

// UpdatePosition writes only the position fields so a stale ping can
// never roll back a status change that landed in between.
func (r *DeliveryRepository) UpdatePosition(ctx context.Context, a *domain.DeliveryAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.assignments[a.ID]
	if !ok {
		return domain.NotFoundf("delivery assignment %d not found", a.ID)
	}
	stored.CurrentLatitude = a.CurrentLatitude
	stored.CurrentLongitude = a.CurrentLongitude
	stored.DistanceRemainingKm = a.DistanceRemainingKm
	stored.LastLocationAt = a.LastLocationAt
	return nil
}

func (r *DeliveryRepository) CountActiveForPartner(ctx context.Context, partnerID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range r.assignments {
		if a.PartnerID == partnerID && a.Active() {
			n++
		}
	}
	return n, nil
}

func (r *DeliveryRepository) ListActiveForPartner(ctx context.Context, partnerID int64) ([]*domain.DeliveryAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.DeliveryAssignment
	for _, a := range r.assignments {
		if a.PartnerID == partnerID && a.Active() {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}
