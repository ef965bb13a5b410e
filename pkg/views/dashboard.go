package views

import (
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"golang.org/x/exp/slices"
)

// Bundle is one snapshot of each collection a dashboard is built from
type Bundle struct {
	Vehicles      []*fleet.Vehicle
	Routes        []*fleet.Route
	Occupants     []*fleet.Occupant
	Notifications []*fleet.Notification
}

// NewBundle types the items of the snapshots it is given, matching them by collection
func NewBundle(snapshots ...store.Snapshot) Bundle {
	var bundle Bundle

	for _, snapshot := range snapshots {
		switch snapshot.Collection {
		case fleet.CollectionVehicles:
			bundle.Vehicles = store.Items[*fleet.Vehicle](snapshot)
		case fleet.CollectionRoutes:
			bundle.Routes = store.Items[*fleet.Route](snapshot)
		case fleet.CollectionOccupants:
			bundle.Occupants = store.Items[*fleet.Occupant](snapshot)
		case fleet.CollectionNotifications:
			bundle.Notifications = store.Items[*fleet.Notification](snapshot)
		}
	}

	return bundle
}

type Dashboard struct {
	User          *fleet.User           `json:"user" groups:"basic"`
	Vehicles      []*fleet.Vehicle      `json:"vehicles" groups:"basic"`
	Routes        []*fleet.Route        `json:"routes" groups:"basic"`
	Occupants     []*fleet.Occupant     `json:"occupants" groups:"basic"`
	Notifications []*fleet.Notification `json:"notifications" groups:"basic"`
	Summary       *Summary              `json:"summary,omitempty" groups:"detailed"`
}

// ForUser scopes the bundle to what the user's role may see. Parents see their own
// children and the vehicles carrying them, drivers see their vehicle and its riders,
// admins see everything. Users without a known role get an empty dashboard.
func ForUser(user *fleet.User, bundle Bundle) Dashboard {
	dashboard := Dashboard{
		User:          user,
		Vehicles:      []*fleet.Vehicle{},
		Routes:        []*fleet.Route{},
		Occupants:     []*fleet.Occupant{},
		Notifications: []*fleet.Notification{},
	}

	if user == nil {
		return dashboard
	}

	switch user.Role {
	case fleet.RoleParent:
		dashboard.Occupants = FilterByGuardianID(bundle.Occupants, user.ID)
		dashboard.Vehicles = VehiclesForOccupants(bundle.Vehicles, dashboard.Occupants)
	case fleet.RoleDriver:
		dashboard.Vehicles = FilterByDriverID(bundle.Vehicles, user.ID)
		dashboard.Occupants = OccupantsForVehicles(bundle.Occupants, dashboard.Vehicles)
	case fleet.RoleAdmin:
		summary := FleetSummary(bundle.Vehicles, bundle.Occupants)

		dashboard.Vehicles = Fleet(bundle.Vehicles)
		dashboard.Occupants = slices.Clone(bundle.Occupants)
		dashboard.Routes = slices.Clone(bundle.Routes)
		dashboard.Notifications = slices.Clone(bundle.Notifications)
		dashboard.Summary = &summary
		return dashboard
	default:
		return dashboard
	}

	dashboard.Routes = RoutesForVehicles(bundle.Routes, dashboard.Vehicles)
	dashboard.Notifications = NotificationsForVehicles(bundle.Notifications, dashboard.Vehicles)

	return dashboard
}
