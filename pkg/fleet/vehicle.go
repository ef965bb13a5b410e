package fleet

import "time"

type VehicleStatus string

const (
	VehicleStatusIdle    VehicleStatus = "idle"
	VehicleStatusOnRoute VehicleStatus = "on-route"
	VehicleStatusDelayed VehicleStatus = "delayed"
)

type Vehicle struct {
	ID          string `json:"id" groups:"basic"`
	Name        string `json:"name" groups:"basic"`
	DriverID    string `json:"driverId" groups:"detailed"`
	RouteID     string `json:"routeId" groups:"basic" validate:"required"`
	SchoolBrand string `json:"schoolBrand" groups:"basic"`

	Location Location      `json:"location" groups:"basic"`
	Speed    float64       `json:"speed" groups:"basic" validate:"gte=0"`
	Status   VehicleStatus `json:"status" groups:"basic" validate:"oneof=idle on-route delayed"`

	Capacity  int `json:"capacity" groups:"detailed" validate:"gte=0"`
	Occupancy int `json:"occupancy" groups:"detailed" validate:"gte=0,ltefield=Capacity"`

	SafetyScore float64   `json:"safetyScore" groups:"basic" validate:"gte=0,lte=100"`
	LastUpdate  time.Time `json:"lastUpdate" groups:"basic"`
}

func (v *Vehicle) EntityID() string {
	return v.ID
}

func (v *Vehicle) Clone() Entity {
	cloned := *v
	return &cloned
}

// Active reports whether the vehicle is out on its route
func (v *Vehicle) Active() bool {
	return v.Status != VehicleStatusIdle
}
