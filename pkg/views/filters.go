// Package views narrows collection snapshots to what a single viewer needs.
//
// Every function here is pure: the inputs are never modified, relative order is kept
// and applying a filter twice gives the same result as applying it once.
package views

import (
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/util"
	"golang.org/x/exp/slices"
)

// Fleet is the admin view, every vehicle
func Fleet(vehicles []*fleet.Vehicle) []*fleet.Vehicle {
	return slices.Clone(vehicles)
}

func FilterByVehicleID(vehicles []*fleet.Vehicle, vehicleID string) []*fleet.Vehicle {
	return util.Filter(vehicles, func(v *fleet.Vehicle) bool {
		return v.ID == vehicleID
	})
}

func FilterByDriverID(vehicles []*fleet.Vehicle, driverID string) []*fleet.Vehicle {
	return util.Filter(vehicles, func(v *fleet.Vehicle) bool {
		return v.DriverID == driverID
	})
}

func FilterByGuardianID(occupants []*fleet.Occupant, guardianID string) []*fleet.Occupant {
	return util.Filter(occupants, func(o *fleet.Occupant) bool {
		return o.GuardianID == guardianID
	})
}

// VehiclesForOccupants returns the vehicles any of the occupants is assigned to
func VehiclesForOccupants(vehicles []*fleet.Vehicle, occupants []*fleet.Occupant) []*fleet.Vehicle {
	assigned := map[string]bool{}
	for _, occupant := range occupants {
		assigned[occupant.VehicleID] = true
	}

	return util.Filter(vehicles, func(v *fleet.Vehicle) bool {
		return assigned[v.ID]
	})
}

// OccupantsForVehicles returns the occupants assigned to any of the vehicles
func OccupantsForVehicles(occupants []*fleet.Occupant, vehicles []*fleet.Vehicle) []*fleet.Occupant {
	ids := vehicleIDs(vehicles)

	return util.Filter(occupants, func(o *fleet.Occupant) bool {
		return ids[o.VehicleID]
	})
}

func RoutesForVehicles(routes []*fleet.Route, vehicles []*fleet.Vehicle) []*fleet.Route {
	assigned := map[string]bool{}
	for _, vehicle := range vehicles {
		assigned[vehicle.RouteID] = true
	}

	return util.Filter(routes, func(r *fleet.Route) bool {
		return assigned[r.ID]
	})
}

// NotificationsForVehicles returns the notifications raised about any of the vehicles
func NotificationsForVehicles(notifications []*fleet.Notification, vehicles []*fleet.Vehicle) []*fleet.Notification {
	ids := vehicleIDs(vehicles)

	return util.Filter(notifications, func(n *fleet.Notification) bool {
		return ids[n.VehicleID]
	})
}

func vehicleIDs(vehicles []*fleet.Vehicle) map[string]bool {
	ids := map[string]bool{}
	for _, vehicle := range vehicles {
		ids[vehicle.ID] = true
	}

	return ids
}
