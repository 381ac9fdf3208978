package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, restaurant_id, customer_id, number, type, status, table_number,
	       delivery_address, special_instructions, priority, subtotal, tax_amount,
	       delivery_fee, discount_amount, total_amount, estimated_ready_at,
	       actual_ready_at, delivered_at, cancelled_at, cancelled_by,
	       cancellation_reason, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (restaurant_id, customer_id, number, type, status, table_number,
		                    delivery_address, special_instructions, priority, subtotal,
		                    tax_amount, delivery_fee, discount_amount, total_amount,
		                    estimated_ready_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`
	err = tx.QueryRow(ctx, query,
		order.RestaurantID, order.CustomerID, order.Number, order.Type, order.Status,
		order.TableNumber, order.DeliveryAddress, order.SpecialInstructions, order.Priority,
		order.Subtotal, order.TaxAmount, order.DeliveryFee, order.DiscountAmount,
		order.TotalAmount, order.EstimatedReadyAt, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		lineQuery := `
			INSERT INTO order_lines (order_id, item_id, item_name, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err = tx.QueryRow(ctx, lineQuery,
			order.ID, line.ItemID, line.ItemName, line.Quantity, line.UnitPrice, line.Subtotal,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
		line.OrderID = order.ID

		for j := range line.Modifiers {
			mod := &line.Modifiers[j]
			modQuery := `
				INSERT INTO order_line_modifiers (order_line_id, modifier_id, name, price)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`
			if err := tx.QueryRow(ctx, modQuery, line.ID, mod.ModifierID, mod.Name, mod.Price).Scan(&mod.ID); err != nil {
				return fmt.Errorf("failed to insert line modifier: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *orderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.findOne(ctx, "number = $1", number)
}

func (r *orderRepository) findOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE " + where

	var order domain.Order
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&order.ID, &order.RestaurantID, &order.CustomerID, &order.Number, &order.Type,
		&order.Status, &order.TableNumber, &order.DeliveryAddress, &order.SpecialInstructions,
		&order.Priority, &order.Subtotal, &order.TaxAmount, &order.DeliveryFee,
		&order.DiscountAmount, &order.TotalAmount, &order.EstimatedReadyAt,
		&order.ActualReadyAt, &order.DeliveredAt, &order.CancelledAt, &order.CancelledBy,
		&order.CancellationReason, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if err := r.loadLines(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) loadLines(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, item_id, item_name, quantity, unit_price, subtotal
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.ItemName,
			&line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return fmt.Errorf("failed to scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		modQuery := `
			SELECT id, modifier_id, name, price
			FROM order_line_modifiers
			WHERE order_line_id = $1
			ORDER BY id
		`
		modRows, err := r.db.Query(ctx, modQuery, line.ID)
		if err != nil {
			return fmt.Errorf("failed to load line modifiers: %w", err)
		}
		for modRows.Next() {
			var mod domain.LineModifier
			if err := modRows.Scan(&mod.ID, &mod.ModifierID, &mod.Name, &mod.Price); err != nil {
				modRows.Close()
				return fmt.Errorf("failed to scan line modifier: %w", err)
			}
			line.Modifiers = append(line.Modifiers, mod)
		}
		modRows.Close()
	}

	return nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, estimated_ready_at = $2, actual_ready_at = $3, delivered_at = $4,
		    cancelled_at = $5, cancelled_by = $6, cancellation_reason = $7, updated_at = $8
		WHERE id = $9
	`
	tag, err := r.db.Exec(ctx, query,
		order.Status, order.EstimatedReadyAt, order.ActualReadyAt, order.DeliveredAt,
		order.CancelledAt, order.CancelledBy, order.CancellationReason, order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("order %d not found", order.ID)
	}
	return nil
}

func (r *orderRepository) ListByStatus(ctx context.Context, restaurantID int64, statuses []domain.Status, orderType *domain.OrderType) ([]*domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE restaurant_id = $1"
	args := []any{restaurantID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			args = append(args, s)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if orderType != nil {
		args = append(args, *orderType)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	return r.list(ctx, query, args...)
}

func (r *orderRepository) ListByCustomer(ctx context.Context, restaurantID, customerID int64) ([]*domain.Order, error) {
	query := "SELECT " + orderColumns + ` FROM orders
		WHERE restaurant_id = $1 AND customer_id = $2
		ORDER BY created_at DESC`
	return r.list(ctx, query, restaurantID, customerID)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.RestaurantID, &order.CustomerID, &order.Number, &order.Type,
			&order.Status, &order.TableNumber, &order.DeliveryAddress, &order.SpecialInstructions,
			&order.Priority, &order.Subtotal, &order.TaxAmount, &order.DeliveryFee,
			&order.DiscountAmount, &order.TotalAmount, &order.EstimatedReadyAt,
			&order.ActualReadyAt, &order.DeliveredAt, &order.CancelledAt, &order.CancelledBy,
			&order.CancellationReason, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}

	for _, order := range orders {
		if err := r.loadLines(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepository) AppendTransition(ctx context.Context, rec *domain.StatusTransitionRecord) error {
	query := `
		INSERT INTO order_status_log (order_id, from_status, to_status, actor_id, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, query,
		rec.OrderID, rec.From, rec.To, rec.ActorID, rec.Notes, rec.At,
	).Scan(&rec.ID); err != nil {
		return fmt.Errorf("failed to log status transition: %w", err)
	}
	return nil
}

func (r *orderRepository) Transitions(ctx context.Context, orderID int64) ([]*domain.StatusTransitionRecord, error) {
	query := `
		SELECT id, order_id, from_status, to_status, actor_id, notes, changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var recs []*domain.StatusTransitionRecord
	for rows.Next() {
		var rec domain.StatusTransitionRecord
		var at time.Time
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.From, &rec.To, &rec.ActorID, &rec.Notes, &at); err != nil {
			return nil, fmt.Errorf("failed to scan status record: %w", err)
		}
		rec.At = at
		recs = append(recs, &rec)
	}
	return recs, nil
}
