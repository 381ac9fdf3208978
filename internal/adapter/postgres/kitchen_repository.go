package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type kitchenRepository struct {
	db DB
}

func NewKitchenRepository(db DB) interfaces.KitchenRepository {
	return &kitchenRepository{db: db}
}

func (r *kitchenRepository) CreateUnits(ctx context.Context, units []*domain.PreparationUnit) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO preparation_units (order_id, order_line_id, state, assigned_staff_id,
		                               station, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	for _, u := range units {
		if err := tx.QueryRow(ctx, query,
			u.OrderID, u.OrderLineID, u.State, u.AssignedStaffID, u.Station, u.Notes, u.CreatedAt,
		).Scan(&u.ID); err != nil {
			return fmt.Errorf("failed to insert preparation unit: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *kitchenRepository) UnitsByOrder(ctx context.Context, orderID int64) ([]*domain.PreparationUnit, error) {
	query := `
		SELECT id, order_id, order_line_id, state, assigned_staff_id, station, notes,
		       started_at, completed_at, created_at
		FROM preparation_units
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query preparation units: %w", err)
	}
	defer rows.Close()

	var units []*domain.PreparationUnit
	for rows.Next() {
		var u domain.PreparationUnit
		if err := rows.Scan(&u.ID, &u.OrderID, &u.OrderLineID, &u.State, &u.AssignedStaffID,
			&u.Station, &u.Notes, &u.StartedAt, &u.CompletedAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preparation unit: %w", err)
		}
		units = append(units, &u)
	}
	return units, nil
}

func (r *kitchenRepository) UpdateUnit(ctx context.Context, unit *domain.PreparationUnit) error {
	query := `
		UPDATE preparation_units
		SET state = $1, assigned_staff_id = $2, station = $3, notes = $4,
		    started_at = $5, completed_at = $6
		WHERE id = $7
	`
	tag, err := r.db.Exec(ctx, query,
		unit.State, unit.AssignedStaffID, unit.Station, unit.Notes,
		unit.StartedAt, unit.CompletedAt, unit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update preparation unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("preparation unit %d not found", unit.ID)
	}
	return nil
}

func (r *kitchenRepository) SaveMetrics(ctx context.Context, m *domain.PreparationMetrics) error {
	query := `
		INSERT INTO preparation_metrics (order_id, restaurant_id, confirmed_at,
		                                 kitchen_started_at, kitchen_completed_at, ready_at,
		                                 target_minutes, actual_minutes, on_time,
		                                 delay_minutes, total_units)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO UPDATE
		SET confirmed_at = EXCLUDED.confirmed_at,
		    kitchen_started_at = EXCLUDED.kitchen_started_at,
		    kitchen_completed_at = EXCLUDED.kitchen_completed_at,
		    ready_at = EXCLUDED.ready_at,
		    target_minutes = EXCLUDED.target_minutes,
		    actual_minutes = EXCLUDED.actual_minutes,
		    on_time = EXCLUDED.on_time,
		    delay_minutes = EXCLUDED.delay_minutes,
		    total_units = EXCLUDED.total_units
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, query,
		m.OrderID, m.RestaurantID, m.ConfirmedAt, m.KitchenStartedAt, m.KitchenCompletedAt,
		m.ReadyAt, m.TargetMinutes, m.ActualMinutes, m.OnTime, m.DelayMinutes, m.TotalUnits,
	).Scan(&m.ID); err != nil {
		return fmt.Errorf("failed to save preparation metrics: %w", err)
	}
	return nil
}

func (r *kitchenRepository) MetricsByOrder(ctx context.Context, orderID int64) (*domain.PreparationMetrics, error) {
	query := `
		SELECT id, order_id, restaurant_id, confirmed_at, kitchen_started_at,
		       kitchen_completed_at, ready_at, target_minutes, actual_minutes,
		       on_time, delay_minutes, total_units
		FROM preparation_metrics
		WHERE order_id = $1
	`
	var m domain.PreparationMetrics
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&m.ID, &m.OrderID, &m.RestaurantID, &m.ConfirmedAt, &m.KitchenStartedAt,
		&m.KitchenCompletedAt, &m.ReadyAt, &m.TargetMinutes, &m.ActualMinutes,
		&m.OnTime, &m.DelayMinutes, &m.TotalUnits,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("no kitchen metrics for order %d", orderID)
		}
		return nil, fmt.Errorf("failed to load preparation metrics: %w", err)
	}
	return &m, nil
}

func (r *kitchenRepository) MetricsByDate(ctx context.Context, restaurantID int64, day time.Time) ([]*domain.PreparationMetrics, error) {
	query := `
		SELECT id, order_id, restaurant_id, confirmed_at, kitchen_started_at,
		       kitchen_completed_at, ready_at, target_minutes, actual_minutes,
		       on_time, delay_minutes, total_units
		FROM preparation_metrics
		WHERE restaurant_id = $1 AND kitchen_started_at::date = $2::date
	`
	rows, err := r.db.Query(ctx, query, restaurantID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query preparation metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*domain.PreparationMetrics
	for rows.Next() {
		var m domain.PreparationMetrics
		if err := rows.Scan(&m.ID, &m.OrderID, &m.RestaurantID, &m.ConfirmedAt,
			&m.KitchenStartedAt, &m.KitchenCompletedAt, &m.ReadyAt, &m.TargetMinutes,
			&m.ActualMinutes, &m.OnTime, &m.DelayMinutes, &m.TotalUnits); err != nil {
			return nil, fmt.Errorf("failed to scan preparation metrics: %w", err)
		}
		metrics = append(metrics, &m)
	}
	return metrics, nil
}
