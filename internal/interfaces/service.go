package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dastanm/restops/internal/domain"
)

// Commands

type CreateOrderCommand struct {
	OrderType           string
	TableNumber         *string
	DeliveryAddress     *string
	SpecialInstructions string
	Discount            decimal.Decimal
	Lines               []CreateOrderLineCommand
}

type CreateOrderLineCommand struct {
	ItemID      int64
	Quantity    int
	ModifierIDs []int64
}

type UnitAssignment struct {
	OrderLineID int64
	StaffID     *int64
	Station     *string
}

type StartPreparationCommand struct {
	EstimatedMinutes *int
	Notes            string
	Assignments      []UnitAssignment
}

type UpdateUnitCommand struct {
	State domain.UnitState
	Notes string
}

type LocationUpdate struct {
	Latitude            float64
	Longitude           float64
	DistanceRemainingKm *float64
}

// Service contracts

// OrderLifecycle owns the order aggregate and its status machine.
type OrderLifecycle interface {
	Create(ctx context.Context, cmd CreateOrderCommand, actor domain.Actor) (*domain.Order, error)
	Transition(ctx context.Context, orderID int64, target domain.Status, notes string, actor domain.Actor) (*domain.Order, error)
	Cancel(ctx context.Context, orderID int64, reason string, actor domain.Actor) (*domain.Order, error)
	Get(ctx context.Context, orderID int64, actor domain.Actor) (*domain.Order, error)
	List(ctx context.Context, status *domain.Status, orderType *domain.OrderType, actor domain.Actor) ([]*domain.Order, error)
	History(ctx context.Context, orderID int64, actor domain.Actor) ([]*domain.StatusTransitionRecord, error)
}

// UnitMaterializer is the slice of the kitchen coordinator the
// lifecycle manager needs for the PREPARING side effect. Bound after
// construction to break the mutual dependency.
type UnitMaterializer interface {
	MaterializeUnits(ctx context.Context, order *domain.Order, assignments []UnitAssignment) error
}

type KitchenCoordinator interface {
	UnitMaterializer
	StartPreparation(ctx context.Context, orderID int64, cmd StartPreparationCommand, actor domain.Actor) (*KitchenOrderView, error)
	UpdateUnit(ctx context.Context, orderID, unitID int64, cmd UpdateUnitCommand, actor domain.Actor) (*domain.PreparationUnit, error)
	MarkReady(ctx context.Context, orderID int64, notes string, actor domain.Actor) (*domain.Order, error)
	ActiveOrders(ctx context.Context, actor domain.Actor) ([]*KitchenOrderView, error)
	DailyMetrics(ctx context.Context, day time.Time, actor domain.Actor) (*KitchenMetricsSummary, error)
}

type DeliveryDispatcher interface {
	Assign(ctx context.Context, orderID, partnerID int64, actor domain.Actor) (*domain.DeliveryAssignment, error)
	Accept(ctx context.Context, assignmentID int64, actor domain.Actor) (*domain.DeliveryAssignment, error)
	MarkPickedUp(ctx context.Context, assignmentID int64, loc *LocationUpdate, actor domain.Actor) (*domain.DeliveryAssignment, error)
	MarkInTransit(ctx context.Context, assignmentID int64, actor domain.Actor) (*domain.DeliveryAssignment, error)
	MarkDelivered(ctx context.Context, assignmentID int64, notes string, actor domain.Actor) (*domain.DeliveryAssignment, error)
	UpdateLocation(ctx context.Context, assignmentID int64, loc LocationUpdate, actor domain.Actor) error
	AvailableOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	ActiveForPartner(ctx context.Context, actor domain.Actor) ([]*DeliveryView, error)
}

type TrackingAggregator interface {
	LiveStatus(ctx context.Context, orderID int64, actor domain.Actor) (*LiveOrderStatus, error)
	Timeline(ctx context.Context, orderID int64, actor domain.Actor) ([]*domain.TimelineEvent, error)
	DeliveryTracking(ctx context.Context, orderID int64, actor domain.Actor) (*DeliveryTracking, error)
	EstimatedTime(ctx context.Context, orderID int64, actor domain.Actor) (*EstimatedTime, error)
}

// Views

type KitchenOrderView struct {
	Order          *domain.Order
	Units          []*domain.PreparationUnit
	UnitsDone      int
	ElapsedMinutes int
}

type KitchenMetricsSummary struct {
	Date             time.Time
	TotalOrders      int
	CompletedOrders  int
	InProgressOrders int
	AvgPrepMinutes   float64
	OrdersOnTime     int
	OrdersDelayed    int
	OnTimePercent    float64
}

type DeliveryView struct {
	Assignment  *domain.DeliveryAssignment
	OrderNumber string
	Address     string
}

type DeliverySnapshot struct {
	PartnerName         string
	PartnerPhone        string
	Status              domain.DeliveryStatus
	Latitude            *float64
	Longitude           *float64
	DistanceRemainingKm *float64
	LastLocationAt      *time.Time
}

type LiveOrderStatus struct {
	OrderID             int64
	OrderNumber         string
	Status              domain.Status
	StatusDisplay       string
	StatusMessage       string
	NextStatus          *domain.Status
	ProgressPercent     int
	OrderedAt           time.Time
	EstimatedReadyAt    *time.Time
	ActualReadyAt       *time.Time
	EstimatedDeliveryAt *time.Time
	RemainingMinutes    *int
	TotalUnits          int
	UnitsPrepared       int
	UnitsRemaining      int
	CanCancel           bool
	CanTrackDelivery    bool
	Delivery            *DeliverySnapshot
}

type DeliveryTracking struct {
	OrderID          int64
	OrderNumber      string
	Snapshot         DeliverySnapshot
	RemainingMinutes *int
}

type EstimatedTime struct {
	OrderID             int64
	EstimatedReadyAt    *time.Time
	EstimatedDeliveryAt *time.Time
	RemainingMinutes    *int
	Message             string
}
