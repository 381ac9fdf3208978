package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type deliveryRepository struct {
	db DB
}

func NewDeliveryRepository(db DB) interfaces.DeliveryRepository {
	return &deliveryRepository{db: db}
}

const assignmentColumns = `id, order_id, partner_id, status, assigned_at, accepted_at,
	       picked_up_at, delivered_at, estimated_pickup_at, estimated_delivery_at,
	       current_latitude, current_longitude, last_location_at,
	       distance_remaining_km, notes`

func (r *deliveryRepository) Create(ctx context.Context, a *domain.DeliveryAssignment) error {
	query := `
		INSERT INTO delivery_assignments (order_id, partner_id, status, assigned_at,
		                                  estimated_pickup_at, estimated_delivery_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, query,
		a.OrderID, a.PartnerID, a.Status, a.AssignedAt,
		a.EstimatedPickupAt, a.EstimatedDeliveryAt, a.Notes,
	).Scan(&a.ID); err != nil {
		return fmt.Errorf("failed to insert delivery assignment: %w", err)
	}
	return nil
}

func (r *deliveryRepository) FindByID(ctx context.Context, id int64) (*domain.DeliveryAssignment, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *deliveryRepository) FindByOrder(ctx context.Context, orderID int64) (*domain.DeliveryAssignment, error) {
	return r.findOne(ctx, "order_id = $1", orderID)
}

func (r *deliveryRepository) findOne(ctx context.Context, where string, arg any) (*domain.DeliveryAssignment, error) {
	query := "SELECT " + assignmentColumns + " FROM delivery_assignments WHERE " + where

	var a domain.DeliveryAssignment
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.OrderID, &a.PartnerID, &a.Status, &a.AssignedAt, &a.AcceptedAt,
		&a.PickedUpAt, &a.DeliveredAt, &a.EstimatedPickupAt, &a.EstimatedDeliveryAt,
		&a.CurrentLatitude, &a.CurrentLongitude, &a.LastLocationAt,
		&a.DistanceRemainingKm, &a.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("delivery assignment not found")
		}
		return nil, fmt.Errorf("failed to load delivery assignment: %w", err)
	}
	return &a, nil
}

func (r *deliveryRepository) Update(ctx context.Context, a *domain.DeliveryAssignment) error {
	query := `
		UPDATE delivery_assignments
		SET status = $1, accepted_at = $2, picked_up_at = $3, delivered_at = $4,
		    current_latitude = $5, current_longitude = $6, last_location_at = $7,
		    distance_remaining_km = $8, notes = $9
		WHERE id = $10
	`
	tag, err := r.db.Exec(ctx, query,
		a.Status, a.AcceptedAt, a.PickedUpAt, a.DeliveredAt,
		a.CurrentLatitude, a.CurrentLongitude, a.LastLocationAt,
		a.DistanceRemainingKm, a.Notes, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("delivery assignment %d not found", a.ID)
	}
	return nil
}

// UpdatePosition touches only the location columns so a late ping can
// never overwrite a status change.
func (r *deliveryRepository) UpdatePosition(ctx context.Context, a *domain.DeliveryAssignment) error {
	query := `
		UPDATE delivery_assignments
		SET current_latitude = $1, current_longitude = $2, last_location_at = $3,
		    distance_remaining_km = $4
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query,
		a.CurrentLatitude, a.CurrentLongitude, a.LastLocationAt,
		a.DistanceRemainingKm, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("delivery assignment %d not found", a.ID)
	}
	return nil
}

func activeStatusList() string {
	parts := make([]string, len(domain.ActiveDeliveryStatuses))
	for i, s := range domain.ActiveDeliveryStatuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}

func (r *deliveryRepository) CountActiveForPartner(ctx context.Context, partnerID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM delivery_assignments
		WHERE partner_id = $1 AND status IN (` + activeStatusList() + `)
	`
	var n int
	if err := r.db.QueryRow(ctx, query, partnerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active deliveries: %w", err)
	}
	return n, nil
}

func (r *deliveryRepository) ListActiveForPartner(ctx context.Context, partnerID int64) ([]*domain.DeliveryAssignment, error) {
	query := "SELECT " + assignmentColumns + ` FROM delivery_assignments
		WHERE partner_id = $1 AND status IN (` + activeStatusList() + `)
		ORDER BY assigned_at`

	rows, err := r.db.Query(ctx, query, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active deliveries: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeliveryAssignment
	for rows.Next() {
		var a domain.DeliveryAssignment
		if err := rows.Scan(&a.ID, &a.OrderID, &a.PartnerID, &a.Status, &a.AssignedAt,
			&a.AcceptedAt, &a.PickedUpAt, &a.DeliveredAt, &a.EstimatedPickupAt,
			&a.EstimatedDeliveryAt, &a.CurrentLatitude, &a.CurrentLongitude,
			&a.LastLocationAt, &a.DistanceRemainingKm, &a.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan delivery assignment: %w", err)
		}
		out = append(out, &a)
	}
	return out, nil
}
