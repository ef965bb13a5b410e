package gtfsrt

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestVehiclePositions(t *testing.T) {
	now := time.Date(2025, 6, 2, 7, 42, 0, 0, time.UTC)
	lastUpdate := now.Add(-5 * time.Second)

	feed := VehiclePositions([]*fleet.Vehicle{
		{
			ID:          "G2S-01",
			Name:        "G2S-01",
			RouteID:     "r1",
			Location:    fleet.Location{Lat: 22.5726, Lng: 88.3639},
			Speed:       36,
			Status:      fleet.VehicleStatusOnRoute,
			Capacity:    40,
			Occupancy:   38,
			LastUpdate:  lastUpdate,
			SafetyScore: 95,
		},
		{ID: "G2S-02", RouteID: "r2", Status: fleet.VehicleStatusIdle},
	}, now)

	body, err := proto.Marshal(feed)
	require.NoError(t, err)

	decoded := &gtfs.FeedMessage{}
	require.NoError(t, proto.Unmarshal(body, decoded))

	assert.Equal(t, Version, decoded.GetHeader().GetGtfsRealtimeVersion())
	assert.Equal(t, gtfs.FeedHeader_FULL_DATASET, decoded.GetHeader().GetIncrementality())
	assert.Equal(t, uint64(now.Unix()), decoded.GetHeader().GetTimestamp())
	require.Len(t, decoded.Entity, 2)

	first := decoded.Entity[0].GetVehicle()
	assert.Equal(t, "G2S-01", decoded.Entity[0].GetId())
	assert.Equal(t, "r1", first.GetTrip().GetRouteId())
	assert.InDelta(t, 22.5726, first.GetPosition().GetLatitude(), 1e-4)
	assert.InDelta(t, 88.3639, first.GetPosition().GetLongitude(), 1e-4)
	assert.InDelta(t, 10.0, first.GetPosition().GetSpeed(), 1e-4)
	assert.Equal(t, uint64(lastUpdate.Unix()), first.GetTimestamp())
	assert.Equal(t, gtfs.VehiclePosition_STANDING_ROOM_ONLY, first.GetOccupancyStatus())
	assert.Equal(t, uint32(95), first.GetOccupancyPercentage())
	assert.Equal(t, gtfs.VehiclePosition_IN_TRANSIT_TO, first.GetCurrentStatus())

	second := decoded.Entity[1].GetVehicle()
	assert.Equal(t, uint64(now.Unix()), second.GetTimestamp())
	assert.Equal(t, gtfs.VehiclePosition_STOPPED_AT, second.GetCurrentStatus())
	assert.Equal(t, gtfs.VehiclePosition_NO_DATA_AVAILABLE, second.GetOccupancyStatus())
	assert.Nil(t, second.OccupancyPercentage)
}

func TestOccupancyStatus(t *testing.T) {
	tests := []struct {
		occupancy int
		capacity  int
		expected  gtfs.VehiclePosition_OccupancyStatus
	}{
		{occupancy: 0, capacity: 40, expected: gtfs.VehiclePosition_EMPTY},
		{occupancy: 10, capacity: 40, expected: gtfs.VehiclePosition_MANY_SEATS_AVAILABLE},
		{occupancy: 20, capacity: 40, expected: gtfs.VehiclePosition_FEW_SEATS_AVAILABLE},
		{occupancy: 38, capacity: 40, expected: gtfs.VehiclePosition_STANDING_ROOM_ONLY},
		{occupancy: 40, capacity: 40, expected: gtfs.VehiclePosition_FULL},
		{occupancy: 0, capacity: 0, expected: gtfs.VehiclePosition_NO_DATA_AVAILABLE},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, OccupancyStatus(tt.occupancy, tt.capacity), "%d/%d", tt.occupancy, tt.capacity)
	}
}

func TestEmptyFleet(t *testing.T) {
	feed := VehiclePositions(nil, time.Now())

	assert.Empty(t, feed.Entity)
	assert.NotNil(t, feed.Header)
}
