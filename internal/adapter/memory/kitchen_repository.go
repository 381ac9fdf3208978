package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dastanm/restops/internal/domain"
)

type KitchenRepository struct {
	mu           sync.Mutex
	units        map[int64]*domain.PreparationUnit
	unitsByOrder map[int64][]int64
	metrics      map[int64]*domain.PreparationMetrics
	nextUnitID   int64
	nextMetricID int64
}

func NewKitchenRepository() *KitchenRepository {
	return &KitchenRepository{
		units:        make(map[int64]*domain.PreparationUnit),
		unitsByOrder: make(map[int64][]int64),
		metrics:      make(map[int64]*domain.PreparationMetrics),
	}
}

func (r *KitchenRepository) CreateUnits(ctx context.Context, units []*domain.PreparationUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range units {
		r.nextUnitID++
		u.ID = r.nextUnitID
		c := *u
		r.units[u.ID] = &c
		r.unitsByOrder[u.OrderID] = append(r.unitsByOrder[u.OrderID], u.ID)
	}
	return nil
}

func (r *KitchenRepository) UnitsByOrder(ctx context.Context, orderID int64) ([]*domain.PreparationUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.unitsByOrder[orderID]
	out := make([]*domain.PreparationUnit, 0, len(ids))
	for _, id := range ids {
		c := *r.units[id]
		out = append(out, &c)
	}
	return out, nil
}

func (r *KitchenRepository) UpdateUnit(ctx context.Context, unit *domain.PreparationUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[unit.ID]; !ok {
		return domain.NotFoundf("preparation unit %d not found", unit.ID)
	}
	c := *unit
	r.units[unit.ID] = &c
	return nil
}

func (r *KitchenRepository) SaveMetrics(ctx context.Context, m *domain.PreparationMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.metrics[m.OrderID]; ok {
		m.ID = existing.ID
	} else {
		r.nextMetricID++
		m.ID = r.nextMetricID
	}
	c := *m
	r.metrics[m.OrderID] = &c
	return nil
}

func (r *KitchenRepository) MetricsByOrder(ctx context.Context, orderID int64) (*domain.PreparationMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[orderID]
	if !ok {
		return nil, domain.NotFoundf("no kitchen metrics for order %d", orderID)
	}
	c := *m
	return &c, nil
}

func (r *KitchenRepository) MetricsByDate(ctx context.Context, restaurantID int64, day time.Time) ([]*domain.PreparationMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	y, mo, d := day.Date()
	var out []*domain.PreparationMetrics
	for _, m := range r.metrics {
		if m.RestaurantID != restaurantID || m.KitchenStartedAt == nil {
			continue
		}
		sy, smo, sd := m.KitchenStartedAt.Date()
		if sy == y && smo == mo && sd == d {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}
