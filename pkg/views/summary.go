package views

import "github.com/go2school/go2school/pkg/fleet"

// Summary is the admin overview of the fleet
type Summary struct {
	Vehicles       int     `json:"vehicles" groups:"basic"`
	Active         int     `json:"active" groups:"basic"`
	Occupants      int     `json:"occupants" groups:"basic"`
	Boarded        int     `json:"boarded" groups:"basic"`
	Seats          int     `json:"seats" groups:"detailed"`
	Occupancy      int     `json:"occupancy" groups:"detailed"`
	AverageSafety  float64 `json:"averageSafety" groups:"basic"`
	OccupancyRatio float64 `json:"occupancyRatio" groups:"detailed"`
}

// FleetSummary totals the fleet. Averages and ratios are zero for an empty fleet.
func FleetSummary(vehicles []*fleet.Vehicle, occupants []*fleet.Occupant) Summary {
	summary := Summary{
		Vehicles:  len(vehicles),
		Occupants: len(occupants),
	}

	var safety float64
	for _, vehicle := range vehicles {
		if vehicle.Active() {
			summary.Active++
		}
		summary.Seats += vehicle.Capacity
		summary.Occupancy += vehicle.Occupancy
		safety += vehicle.SafetyScore
	}

	for _, occupant := range occupants {
		if occupant.Status == fleet.BoardingStatusBoarded {
			summary.Boarded++
		}
	}

	if len(vehicles) > 0 {
		summary.AverageSafety = safety / float64(len(vehicles))
	}

	if summary.Seats > 0 {
		summary.OccupancyRatio = float64(summary.Occupancy) / float64(summary.Seats)
	}

	return summary
}
