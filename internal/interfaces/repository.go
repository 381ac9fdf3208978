package interfaces

import (
	"context"
	"time"

	"github.com/dastanm/restops/internal/domain"
)

// OrderRepository persists the order aggregate root and its
// append-only transition log.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	FindByNumber(ctx context.Context, number string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, order *domain.Order) error
	ListByStatus(ctx context.Context, restaurantID int64, statuses []domain.Status, orderType *domain.OrderType) ([]*domain.Order, error)
	ListByCustomer(ctx context.Context, restaurantID, customerID int64) ([]*domain.Order, error)
	AppendTransition(ctx context.Context, rec *domain.StatusTransitionRecord) error
	Transitions(ctx context.Context, orderID int64) ([]*domain.StatusTransitionRecord, error)
}

// KitchenRepository persists preparation units and the derived
// per-order metrics row.
type KitchenRepository interface {
	CreateUnits(ctx context.Context, units []*domain.PreparationUnit) error
	UnitsByOrder(ctx context.Context, orderID int64) ([]*domain.PreparationUnit, error)
	UpdateUnit(ctx context.Context, unit *domain.PreparationUnit) error
	SaveMetrics(ctx context.Context, m *domain.PreparationMetrics) error
	MetricsByOrder(ctx context.Context, orderID int64) (*domain.PreparationMetrics, error)
	MetricsByDate(ctx context.Context, restaurantID int64, day time.Time) ([]*domain.PreparationMetrics, error)
}

// DeliveryRepository persists delivery assignments. UpdatePosition is
// a field-level write that never touches the status columns.
type DeliveryRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAssignment) error
	FindByID(ctx context.Context, id int64) (*domain.DeliveryAssignment, error)
	FindByOrder(ctx context.Context, orderID int64) (*domain.DeliveryAssignment, error)
	Update(ctx context.Context, a *domain.DeliveryAssignment) error
	UpdatePosition(ctx context.Context, a *domain.DeliveryAssignment) error
	CountActiveForPartner(ctx context.Context, partnerID int64) (int, error)
	ListActiveForPartner(ctx context.Context, partnerID int64) ([]*domain.DeliveryAssignment, error)
}

// TimelineRepository stores the narrated per-order event log.
// ByOrder returns events newest first.
type TimelineRepository interface {
	Append(ctx context.Context, ev *domain.TimelineEvent) error
	ByOrder(ctx context.Context, orderID int64) ([]*domain.TimelineEvent, error)
}
