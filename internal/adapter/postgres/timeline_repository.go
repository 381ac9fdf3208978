package postgres

import (
	"context"
	"fmt"

	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type timelineRepository struct {
	db DB
}

func NewTimelineRepository(db DB) interfaces.TimelineRepository {
	return &timelineRepository{db: db}
}

func (r *timelineRepository) Append(ctx context.Context, ev *domain.TimelineEvent) error {
	query := `
		INSERT INTO order_timeline (order_id, kind, title, description, occurred_at, milestone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, query,
		ev.OrderID, ev.Kind, ev.Title, ev.Description, ev.At, ev.Milestone,
	).Scan(&ev.ID); err != nil {
		return fmt.Errorf("failed to insert timeline event: %w", err)
	}
	return nil
}

func (r *timelineRepository) ByOrder(ctx context.Context, orderID int64) ([]*domain.TimelineEvent, error) {
	query := `
		SELECT id, order_id, kind, title, description, occurred_at, milestone
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY occurred_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var events []*domain.TimelineEvent
	for rows.Next() {
		var ev domain.TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Kind, &ev.Title, &ev.Description,
			&ev.At, &ev.Milestone); err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, nil
}
