package domain

type Role string

const (
	RoleCustomer        Role = "CUSTOMER"
	RoleDeliveryPartner Role = "DELIVERY_PARTNER"
	RoleKitchenStaff    Role = "KITCHEN_STAFF"
	RoleManager         Role = "MANAGER"
	RoleAdmin           Role = "ADMIN"
)

// Actor is the authenticated caller of an operation. System is set
// only on the internal actor used for automatic transitions; it
// bypasses role authority but not the status machine.
type Actor struct {
	ID           int64
	RestaurantID int64
	Roles        []Role
	System       bool
}

// SystemActor performs automatic transitions such as the all-units-done
// escalation to READY.
var SystemActor = Actor{System: true}

func (a Actor) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (a Actor) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// CanSetStatus is the per-target role authority table. Cancellation
// authority lives in CanCancel because it depends on the order, not
// just the target.
func (a Actor) CanSetStatus(target Status) bool {
	if a.System {
		return true
	}
	switch target {
	case StatusConfirmed:
		return a.HasAnyRole(RoleManager, RoleAdmin)
	case StatusPreparing, StatusReady:
		return a.HasAnyRole(RoleKitchenStaff, RoleManager, RoleAdmin)
	case StatusOutForDelivery, StatusCompleted:
		return a.HasAnyRole(RoleDeliveryPartner, RoleManager, RoleAdmin)
	default:
		return false
	}
}

// CanCancel: managers and admins may cancel any non-terminal order;
// the owning customer only while it is still PENDING.
func (a Actor) CanCancel(o *Order) bool {
	if o.Status.Terminal() {
		return false
	}
	if a.System {
		return false
	}
	if a.HasAnyRole(RoleManager, RoleAdmin) {
		return true
	}
	if a.HasRole(RoleCustomer) && o.CustomerID == a.ID {
		return o.Status == StatusPending
	}
	return false
}
