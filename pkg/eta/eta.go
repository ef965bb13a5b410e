// Package eta derives arrival estimates and alert conditions from vehicle telemetry.
package eta

import (
	"fmt"
	"math"

	"github.com/go2school/go2school/pkg/config"
	"github.com/go2school/go2school/pkg/fleet"
)

// Estimate is a whole-minute arrival estimate. The zero value is Unavailable.
type Estimate struct {
	Available  bool    `json:"available" groups:"basic"`
	Minutes    int     `json:"minutes" groups:"basic"`
	DistanceKm float64 `json:"distanceKm" groups:"detailed"`
	Speed      float64 `json:"speed" groups:"detailed"`
}

// Unavailable is returned when there is no vehicle data to estimate from
var Unavailable = Estimate{}

func (e Estimate) String() string {
	if !e.Available {
		return "N/A"
	}

	return fmt.Sprintf("%d mins", e.Minutes)
}

type Evaluator struct {
	config config.Tracking
	rules  []rule
}

// New builds an evaluator from the configured thresholds, compiling any alert rules.
func New(cfg config.Tracking) (*Evaluator, error) {
	rules, err := compileRules(cfg.AlertRules)
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		config: cfg,
		rules:  rules,
	}, nil
}

// Minutes converts a distance at a speed to whole minutes. A speed that is not
// positive is replaced by the nominal speed.
func (e *Evaluator) Minutes(distanceKm float64, speed float64) int {
	if speed <= 0 || math.IsNaN(speed) {
		speed = e.config.NominalSpeed
	}

	return int(math.Round(distanceKm / speed * 60))
}

// ETA estimates the time for the vehicle to reach the final stop of its route. In the
// fixed mode the configured distance is used; in the route mode the remaining distance
// is measured along the route from the vehicle position. A nil vehicle is Unavailable.
func (e *Evaluator) ETA(vehicle *fleet.Vehicle, route *fleet.Route) Estimate {
	if vehicle == nil {
		return Unavailable
	}

	distance := e.config.ETADistanceKm
	if e.config.ETAMode == config.ETAModeRoute && route != nil && len(route.Stops) > 0 {
		distance = RemainingDistanceKm(vehicle.Location, route)
	}

	return Estimate{
		Available:  true,
		Minutes:    e.Minutes(distance, vehicle.Speed),
		DistanceKm: distance,
		Speed:      vehicle.Speed,
	}
}

// RemainingDistanceKm is the distance from the location to the final stop, travelling
// via the end of the route segment closest to the location.
func RemainingDistanceKm(location fleet.Location, route *fleet.Route) float64 {
	stops := route.Stops
	if len(stops) == 1 {
		return location.DistanceKm(stops[0].Location)
	}

	closest := 0
	closestDistance := math.Inf(1)
	for i := 0; i < len(stops)-1; i++ {
		distance := location.DistanceFromLine(stops[i].Location, stops[i+1].Location)
		if distance < closestDistance {
			closest = i
			closestDistance = distance
		}
	}

	remaining := location.DistanceKm(stops[closest+1].Location)
	for i := closest + 1; i < len(stops)-1; i++ {
		remaining += stops[i].Location.DistanceKm(stops[i+1].Location)
	}

	return remaining
}
