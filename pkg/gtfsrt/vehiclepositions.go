// Package gtfsrt publishes the simulated fleet as a GTFS-Realtime feed.
package gtfsrt

import (
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go2school/go2school/pkg/fleet"
	"google.golang.org/protobuf/proto"
)

const Version = "2.0"

// VehiclePositions builds a full-dataset feed with one entity per vehicle
func VehiclePositions(vehicles []*fleet.Vehicle, now time.Time) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(Version),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: make([]*gtfs.FeedEntity, 0, len(vehicles)),
	}

	for _, vehicle := range vehicles {
		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:      proto.String(vehicle.ID),
			Vehicle: vehiclePosition(vehicle, now),
		})
	}

	return feed
}

func vehiclePosition(vehicle *fleet.Vehicle, now time.Time) *gtfs.VehiclePosition {
	recordedAt := vehicle.LastUpdate
	if recordedAt.IsZero() {
		recordedAt = now
	}

	position := &gtfs.VehiclePosition{
		Trip: &gtfs.TripDescriptor{
			RouteId: proto.String(vehicle.RouteID),
		},
		Vehicle: &gtfs.VehicleDescriptor{
			Id:    proto.String(vehicle.ID),
			Label: proto.String(vehicle.Name),
		},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(vehicle.Location.Lat)),
			Longitude: proto.Float32(float32(vehicle.Location.Lng)),
			// km/h to m/s
			Speed: proto.Float32(float32(vehicle.Speed / 3.6)),
		},
		Timestamp:       proto.Uint64(uint64(recordedAt.Unix())),
		OccupancyStatus: OccupancyStatus(vehicle.Occupancy, vehicle.Capacity).Enum(),
	}

	if vehicle.Status == fleet.VehicleStatusIdle {
		position.CurrentStatus = gtfs.VehiclePosition_STOPPED_AT.Enum()
	} else {
		position.CurrentStatus = gtfs.VehiclePosition_IN_TRANSIT_TO.Enum()
	}

	if vehicle.Capacity > 0 {
		position.OccupancyPercentage = proto.Uint32(uint32(vehicle.Occupancy * 100 / vehicle.Capacity))
	}

	return position
}

// OccupancyStatus maps a seat count onto the GTFS-RT crowding scale
func OccupancyStatus(occupancy int, capacity int) gtfs.VehiclePosition_OccupancyStatus {
	if capacity <= 0 {
		return gtfs.VehiclePosition_NO_DATA_AVAILABLE
	}

	ratio := float64(occupancy) / float64(capacity)

	switch {
	case occupancy == 0:
		return gtfs.VehiclePosition_EMPTY
	case ratio < 0.5:
		return gtfs.VehiclePosition_MANY_SEATS_AVAILABLE
	case ratio < 0.9:
		return gtfs.VehiclePosition_FEW_SEATS_AVAILABLE
	case ratio < 1:
		return gtfs.VehiclePosition_STANDING_ROOM_ONLY
	default:
		return gtfs.VehiclePosition_FULL
	}
}
