package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

// The collaborator tables (users, menu_items, inventory) are owned by
// the surrounding platform; this service only reads them, except for
// the inventory stock counters.

type authorizationGate struct {
	db DB
}

func NewAuthorizationGate(db DB) interfaces.AuthorizationGate {
	return &authorizationGate{db: db}
}

func (g *authorizationGate) AuthorizeRestaurant(ctx context.Context, actor domain.Actor, restaurantID int64) error {
	if actor.System {
		return nil
	}
	if actor.RestaurantID != restaurantID {
		return domain.Forbiddenf("access denied to restaurant %d", restaurantID)
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND restaurant_id = $2 AND active)`
	if err := g.db.QueryRow(ctx, query, actor.ID, restaurantID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check restaurant membership: %w", err)
	}
	if !exists {
		return domain.Forbiddenf("access denied to restaurant %d", restaurantID)
	}
	return nil
}

type inventoryLedger struct {
	db DB
}

func NewInventoryLedger(db DB) interfaces.InventoryLedger {
	return &inventoryLedger{db: db}
}

// Deduct takes all lines or none: the conditional UPDATE fails the
// whole transaction as soon as one item lacks stock.
func (l *inventoryLedger) Deduct(ctx context.Context, restaurantID int64, lines []domain.OrderLine) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE inventory
		SET stock = stock - $1
		WHERE restaurant_id = $2 AND item_id = $3 AND stock >= $1
	`
	for _, line := range lines {
		tag, err := tx.Exec(ctx, query, line.Quantity, restaurantID, line.ItemID)
		if err != nil {
			return fmt.Errorf("failed to deduct stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.BadRequestf("insufficient stock for %s", line.ItemName)
		}
	}

	return tx.Commit(ctx)
}

func (l *inventoryLedger) Release(ctx context.Context, restaurantID int64, lines []domain.OrderLine) error {
	query := `
		UPDATE inventory
		SET stock = stock + $1
		WHERE restaurant_id = $2 AND item_id = $3
	`
	for _, line := range lines {
		if _, err := l.db.Exec(ctx, query, line.Quantity, restaurantID, line.ItemID); err != nil {
			return fmt.Errorf("failed to release stock: %w", err)
		}
	}
	return nil
}

type catalogLookup struct {
	db DB
}

func NewCatalogLookup(db DB) interfaces.CatalogLookup {
	return &catalogLookup{db: db}
}

func (c *catalogLookup) Item(ctx context.Context, restaurantID, itemID int64) (interfaces.CatalogItem, error) {
	var item interfaces.CatalogItem
	query := `SELECT id, name, price FROM menu_items WHERE id = $1 AND restaurant_id = $2 AND available`
	err := c.db.QueryRow(ctx, query, itemID, restaurantID).Scan(&item.ID, &item.Name, &item.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item, domain.NotFoundf("menu item %d not found", itemID)
		}
		return item, fmt.Errorf("failed to load menu item: %w", err)
	}
	return item, nil
}

func (c *catalogLookup) Modifier(ctx context.Context, restaurantID, modifierID int64) (interfaces.CatalogModifier, error) {
	var mod interfaces.CatalogModifier
	query := `SELECT id, name, price FROM menu_modifiers WHERE id = $1 AND restaurant_id = $2`
	err := c.db.QueryRow(ctx, query, modifierID, restaurantID).Scan(&mod.ID, &mod.Name, &mod.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mod, domain.NotFoundf("modifier %d not found", modifierID)
		}
		return mod, fmt.Errorf("failed to load modifier: %w", err)
	}
	return mod, nil
}

type partnerDirectory struct {
	db DB
}

func NewPartnerDirectory(db DB) interfaces.PartnerDirectory {
	return &partnerDirectory{db: db}
}

func (d *partnerDirectory) Partner(ctx context.Context, partnerID int64) (domain.PartnerInfo, error) {
	var p domain.PartnerInfo
	query := `SELECT id, name, phone FROM users WHERE id = $1 AND role = 'DELIVERY_PARTNER' AND active`
	err := d.db.QueryRow(ctx, query, partnerID).Scan(&p.ID, &p.Name, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, domain.NotFoundf("delivery partner %d not found", partnerID)
		}
		return p, fmt.Errorf("failed to load delivery partner: %w", err)
	}
	return p, nil
}
