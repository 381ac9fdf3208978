package memory

import (
	"context"
	"sync"

	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

// In-memory collaborator implementations for tests and local
// development. The gate trusts the actor's own restaurant claim;
// production wiring checks it against the users table.

type AuthorizationGate struct{}

func NewAuthorizationGate() *AuthorizationGate {
	return &AuthorizationGate{}
}

func (g *AuthorizationGate) AuthorizeRestaurant(ctx context.Context, actor domain.Actor, restaurantID int64) error {
	if actor.System || actor.RestaurantID == restaurantID {
		return nil
	}
	return domain.Forbiddenf("access denied to restaurant %d", restaurantID)
}

type InventoryLedger struct {
	mu    sync.Mutex
	stock map[int64]int
}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{stock: make(map[int64]int)}
}

func (l *InventoryLedger) SetStock(itemID int64, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[itemID] = qty
}

func (l *InventoryLedger) Stock(itemID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[itemID]
}

func (l *InventoryLedger) Deduct(ctx context.Context, restaurantID int64, lines []domain.OrderLine) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, line := range lines {
		if l.stock[line.ItemID] < line.Quantity {
			return domain.BadRequestf("insufficient stock for %s", line.ItemName)
		}
	}
	for _, line := range lines {
		l.stock[line.ItemID] -= line.Quantity
	}
	return nil
}

func (l *InventoryLedger) Release(ctx context.Context, restaurantID int64, lines []domain.OrderLine) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, line := range lines {
		l.stock[line.ItemID] += line.Quantity
	}
	return nil
}

type Catalog struct {
	mu        sync.Mutex
	items     map[int64]interfaces.CatalogItem
	modifiers map[int64]interfaces.CatalogModifier
}

func NewCatalog() *Catalog {
	return &Catalog{
		items:     make(map[int64]interfaces.CatalogItem),
		modifiers: make(map[int64]interfaces.CatalogModifier),
	}
}

func (c *Catalog) AddItem(item interfaces.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

func (c *Catalog) AddModifier(mod interfaces.CatalogModifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modifiers[mod.ID] = mod
}

func (c *Catalog) Item(ctx context.Context, restaurantID, itemID int64) (interfaces.CatalogItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[itemID]
	if !ok {
		return item, domain.NotFoundf("menu item %d not found", itemID)
	}
	return item, nil
}

func (c *Catalog) Modifier(ctx context.Context, restaurantID, modifierID int64) (interfaces.CatalogModifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mod, ok := c.modifiers[modifierID]
	if !ok {
		return mod, domain.NotFoundf("modifier %d not found", modifierID)
	}
	return mod, nil
}

type PartnerDirectory struct {
	mu       sync.Mutex
	partners map[int64]domain.PartnerInfo
}

func NewPartnerDirectory() *PartnerDirectory {
	return &PartnerDirectory{partners: make(map[int64]domain.PartnerInfo)}
}

func (d *PartnerDirectory) AddPartner(p domain.PartnerInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partners[p.ID] = p
}

func (d *PartnerDirectory) Partner(ctx context.Context, partnerID int64) (domain.PartnerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.partners[partnerID]
	if !ok {
		return p, domain.NotFoundf("delivery partner %d not found", partnerID)
	}
	return p, nil
}

// NotificationGateway records everything published, for assertions.
type NotificationGateway struct {
	mu              sync.Mutex
	StatusMessages  []interfaces.OrderStatusMessage
	DeliveryUpdates []interfaces.DeliveryUpdateMessage
}

func NewNotificationGateway() *NotificationGateway {
	return &NotificationGateway{}
}

func (g *NotificationGateway) PublishOrderStatus(ctx context.Context, msg interfaces.OrderStatusMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.StatusMessages = append(g.StatusMessages, msg)
	return nil
}

func (g *NotificationGateway) PublishDeliveryUpdate(ctx context.Context, msg interfaces.DeliveryUpdateMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DeliveryUpdates = append(g.DeliveryUpdates, msg)
	return nil
}

func (g *NotificationGateway) Statuses() []interfaces.OrderStatusMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]interfaces.OrderStatusMessage, len(g.StatusMessages))
	copy(out, g.StatusMessages)
	return out
}
