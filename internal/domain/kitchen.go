package domain

import "time"

type UnitState string

const (
	UnitPending    UnitState = "PENDING"
	UnitInProgress UnitState = "IN_PROGRESS"
	UnitDone       UnitState = "DONE"
)

// PreparationUnit is the kitchen's per-line tracking record. The set
// of units for an order is created exactly once, on the order's first
// entry into PREPARING, with one unit per order line.
type PreparationUnit struct {
	ID              int64
	OrderID         int64
	OrderLineID     int64
	State           UnitState
	AssignedStaffID *int64
	Station         *string
	Notes           string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// Advance moves the unit to newState, stamping StartedAt on the first
// entry into IN_PROGRESS and CompletedAt on DONE.
func (u *PreparationUnit) Advance(newState UnitState, notes string, now time.Time) error {
	switch newState {
	case UnitPending, UnitInProgress, UnitDone:
	default:
		return BadRequestf("invalid preparation state %q", newState)
	}

	u.State = newState
	if notes != "" {
		u.Notes = notes
	}

	switch newState {
	case UnitInProgress:
		if u.StartedAt == nil {
			t := now
			u.StartedAt = &t
		}
	case UnitDone:
		t := now
		u.CompletedAt = &t
	}

	return nil
}

// PreparationMetrics is the derived per-order kitchen performance row,
// recalculated at each relevant status change.
type PreparationMetrics struct {
	ID                 int64
	OrderID            int64
	RestaurantID       int64
	ConfirmedAt        *time.Time
	KitchenStartedAt   *time.Time
	KitchenCompletedAt *time.Time
	ReadyAt            *time.Time
	TargetMinutes      int
	ActualMinutes      *int
	OnTime             bool
	DelayMinutes       int
	TotalUnits         int
}

// Recalculate derives the duration fields from whichever timestamps
// are present. On-time means actual <= target.
func (m *PreparationMetrics) Recalculate() {
	m.OnTime = true
	m.DelayMinutes = 0
	if m.KitchenStartedAt != nil && m.KitchenCompletedAt != nil {
		actual := int(m.KitchenCompletedAt.Sub(*m.KitchenStartedAt).Minutes())
		m.ActualMinutes = &actual
		if m.TargetMinutes > 0 && actual > m.TargetMinutes {
			m.OnTime = false
			m.DelayMinutes = actual - m.TargetMinutes
		}
	}
}
