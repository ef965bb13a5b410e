package fleet

import (
	"github.com/golang/geo/s2"
)

const EarthRadiusKm = 6371.0

type Location struct {
	Lat float64 `json:"lat" groups:"basic"`
	Lng float64 `json:"lng" groups:"basic"`
}

func (l Location) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(l.Lat, l.Lng)
}

// DistanceKm returns the great-circle distance between two locations
func (l Location) DistanceKm(other Location) float64 {
	return l.LatLng().Distance(other.LatLng()).Radians() * EarthRadiusKm
}

// Interpolate returns the point a fraction of the way from l to other, treating the
// short segment as planar.
func (l Location) Interpolate(other Location, fraction float64) Location {
	return Location{
		Lat: l.Lat + (other.Lat-l.Lat)*fraction,
		Lng: l.Lng + (other.Lng-l.Lng)*fraction,
	}
}

// Shameless taken 'inspiration' from https://stackoverflow.com/a/6853926
func (l Location) DistanceFromLine(a Location, b Location) float64 {
	A := l.Lng - a.Lng
	B := l.Lat - a.Lat
	C := b.Lng - a.Lng
	D := b.Lat - a.Lat

	dot := A*C + B*D
	lenSq := C*C + D*D

	param := -1.0
	if lenSq != 0 {
		param = dot / lenSq
	}

	var closest Location

	if param < 0 {
		closest = a
	} else if param > 1 {
		closest = b
	} else {
		closest = Location{Lng: a.Lng + param*C, Lat: a.Lat + param*D}
	}

	return l.DistanceKm(closest)
}
