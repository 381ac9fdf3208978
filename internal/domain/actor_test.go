package domain

import "testing"

func actorWith(id int64, roles ...Role) Actor {
	return Actor{ID: id, RestaurantID: 1, Roles: roles}
}

func TestCanSetStatus(t *testing.T) {
	cases := []struct {
		name   string
		actor  Actor
		target Status
		want   bool
	}{
		{"manager confirms", actorWith(1, RoleManager), StatusConfirmed, true},
		{"customer confirms", actorWith(1, RoleCustomer), StatusConfirmed, false},
		{"kitchen staff confirms", actorWith(1, RoleKitchenStaff), StatusConfirmed, false},
		{"kitchen staff starts preparing", actorWith(1, RoleKitchenStaff), StatusPreparing, true},
		{"kitchen staff marks ready", actorWith(1, RoleKitchenStaff), StatusReady, true},
		{"partner marks ready", actorWith(1, RoleDeliveryPartner), StatusReady, false},
		{"partner out for delivery", actorWith(1, RoleDeliveryPartner), StatusOutForDelivery, true},
		{"partner completes", actorWith(1, RoleDeliveryPartner), StatusCompleted, true},
		{"customer completes", actorWith(1, RoleCustomer), StatusCompleted, false},
		{"admin anywhere", actorWith(1, RoleAdmin), StatusPreparing, true},
		{"system bypasses authority", SystemActor, StatusReady, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.actor.CanSetStatus(tc.target); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanCancel(t *testing.T) {
	owner := actorWith(7, RoleCustomer)
	stranger := actorWith(8, RoleCustomer)
	manager := actorWith(2, RoleManager)

	cases := []struct {
		name   string
		actor  Actor
		status Status
		want   bool
	}{
		{"owner while pending", owner, StatusPending, true},
		{"owner after confirmation", owner, StatusConfirmed, false},
		{"owner while preparing", owner, StatusPreparing, false},
		{"stranger while pending", stranger, StatusPending, false},
		{"manager while preparing", manager, StatusPreparing, true},
		{"manager when completed", manager, StatusCompleted, false},
		{"manager when cancelled", manager, StatusCancelled, false},
		{"system actor", SystemActor, StatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &Order{CustomerID: 7, Status: tc.status}
			if got := tc.actor.CanCancel(order); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
