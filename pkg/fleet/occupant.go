package fleet

import "time"

type BoardingStatus string

const (
	BoardingStatusNotBoarded BoardingStatus = "not-boarded"
	BoardingStatusBoarded    BoardingStatus = "boarded"
	BoardingStatusDeboarded  BoardingStatus = "de-boarded"
)

// Occupant is a student riding one of the vehicles. Vehicle, route and stop are
// referenced by identifier only.
type Occupant struct {
	ID         string `json:"id" groups:"basic"`
	Name       string `json:"name" groups:"basic"`
	GuardianID string `json:"guardianId" groups:"detailed" validate:"required"`
	RouteID    string `json:"routeId" groups:"basic"`
	VehicleID  string `json:"vehicleId" groups:"basic"`
	StopID     string `json:"stopId" groups:"basic"`

	Status     BoardingStatus `json:"status" groups:"basic" validate:"oneof=not-boarded boarded de-boarded"`
	BoardTime  *time.Time     `json:"boardTime,omitempty" groups:"basic"`
	LastUpdate time.Time      `json:"lastUpdate" groups:"basic"`
}

func (o *Occupant) EntityID() string {
	return o.ID
}

func (o *Occupant) Clone() Entity {
	cloned := *o
	if o.BoardTime != nil {
		boardTime := *o.BoardTime
		cloned.BoardTime = &boardTime
	}
	return &cloned
}
