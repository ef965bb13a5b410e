package fleet

import "golang.org/x/exp/slices"

type Stop struct {
	ID               string   `json:"id" groups:"basic" validate:"required"`
	Name             string   `json:"name" groups:"basic"`
	Location         Location `json:"location" groups:"basic"`
	ScheduledArrival string   `json:"scheduledArrival" groups:"basic"`
}

// Route is an ordered stop sequence; order is traversal order.
type Route struct {
	ID       string `json:"id" groups:"basic"`
	Name     string `json:"name" groups:"basic"`
	SchoolID string `json:"schoolId" groups:"detailed"`
	Stops    []Stop `json:"stops" groups:"basic" validate:"required,min=1,dive"`
}

func (r *Route) EntityID() string {
	return r.ID
}

func (r *Route) Clone() Entity {
	cloned := *r
	cloned.Stops = slices.Clone(r.Stops)
	return &cloned
}

// Segment returns the stop at index and the one after it, wrapping to the first stop.
func (r *Route) Segment(index int) (Stop, Stop) {
	count := len(r.Stops)
	current := ((index % count) + count) % count

	return r.Stops[current], r.Stops[(current+1)%count]
}

func (r *Route) StopIndex(stopID string) int {
	return slices.IndexFunc(r.Stops, func(s Stop) bool {
		return s.ID == stopID
	})
}
