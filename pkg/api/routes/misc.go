package routes

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/gofiber/fiber/v2"
	"github.com/golang/geo/s2"
)

// getBoundsQuery parses ?bounds=minLng,minLat,maxLng,maxLat. A missing filter returns ok=false.
func getBoundsQuery(c *fiber.Ctx) (s2.Rect, bool, error) {
	bounds := c.Query("bounds")

	if bounds == "" {
		return s2.EmptyRect(), false, nil
	}

	boundsSplit := strings.Split(bounds, ",")
	if len(boundsSplit) != 4 {
		return s2.EmptyRect(), false, errors.New("Bounds must contain 4 co-ordinates")
	}

	coordinates := make([]float64, 4)
	for i, value := range boundsSplit {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return s2.EmptyRect(), false, errors.New("Bounds must be numeric")
		}
		coordinates[i] = parsed
	}

	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(coordinates[1], coordinates[0]))
	rect = rect.AddPoint(s2.LatLngFromDegrees(coordinates[3], coordinates[2]))

	return rect, true, nil
}

func withinBounds(vehicles []*fleet.Vehicle, rect s2.Rect) []*fleet.Vehicle {
	filtered := []*fleet.Vehicle{}
	for _, vehicle := range vehicles {
		if rect.ContainsLatLng(vehicle.Location.LatLng()) {
			filtered = append(filtered, vehicle)
		}
	}
	return filtered
}
