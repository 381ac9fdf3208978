package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dastanm/restops/internal/domain"
)

// External collaborators. These subsystems (RBAC resolution, inventory
// arithmetic, catalog CRUD, user management, push/SMS) live outside
// this service; it consumes them behind interfaces and substitutes
// them in tests.

// AuthorizationGate is the tenant-access decision. Role authority over
// individual transitions is the lifecycle manager's own concern.
type AuthorizationGate interface {
	AuthorizeRestaurant(ctx context.Context, actor domain.Actor, restaurantID int64) error
}

// InventoryLedger deducts stock when an order is placed and releases
// it on cancellation. Insufficient stock surfaces as a BadRequest
// domain error.
type InventoryLedger interface {
	Deduct(ctx context.Context, restaurantID int64, lines []domain.OrderLine) error
	Release(ctx context.Context, restaurantID int64, lines []domain.OrderLine) error
}

// CatalogLookup resolves item and modifier names/prices at order
// creation; the order stores copies so later menu edits cannot change
// a placed order.
type CatalogLookup interface {
	Item(ctx context.Context, restaurantID, itemID int64) (CatalogItem, error)
	Modifier(ctx context.Context, restaurantID, modifierID int64) (CatalogModifier, error)
}

type CatalogItem struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type CatalogModifier struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// PartnerDirectory resolves delivery partner contact details for
// customer-facing tracking views.
type PartnerDirectory interface {
	Partner(ctx context.Context, partnerID int64) (domain.PartnerInfo, error)
}
