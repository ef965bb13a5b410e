package store

import (
	"errors"
	"testing"
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *Store {
	t.Helper()

	s := New()
	require.NoError(t, s.Load(fleet.CollectionVehicles,
		&fleet.Vehicle{ID: "G2S-01", RouteID: "r1", Status: fleet.VehicleStatusOnRoute, Capacity: 40, Occupancy: 38, Speed: 32, SafetyScore: 95, Location: fleet.Location{Lat: 22.5726, Lng: 88.3639}},
		&fleet.Vehicle{ID: "G2S-02", RouteID: "r1", Status: fleet.VehicleStatusIdle, Capacity: 30, Occupancy: 0, SafetyScore: 90},
	))
	require.NoError(t, s.Load(fleet.CollectionOccupants,
		&fleet.Occupant{ID: "s1", Name: "Aarav Sharma", GuardianID: "parent1", VehicleID: "G2S-01", StopID: "stop1", Status: fleet.BoardingStatusNotBoarded},
	))

	return s
}

func TestGetReturnsCopies(t *testing.T) {
	s := seededStore(t)

	snapshot := s.Get(fleet.CollectionVehicles)
	require.Equal(t, 2, snapshot.Len())

	vehicles := Items[*fleet.Vehicle](snapshot)
	vehicles[0].Speed = 99

	again := Items[*fleet.Vehicle](s.Get("buses"))
	assert.Equal(t, 32.0, again[0].Speed)
	assert.Equal(t, "G2S-01", again[0].ID)
	assert.Equal(t, "G2S-02", again[1].ID)
}

func TestGetUnknownCollectionIsEmpty(t *testing.T) {
	s := New()

	snapshot := s.Get("revenue")
	assert.NotNil(t, snapshot.Items)
	assert.Equal(t, 0, snapshot.Len())

	_, err := s.Lookup("revenue")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestUpdateMergesFields(t *testing.T) {
	s := seededStore(t)
	before := s.Version(fleet.CollectionVehicles)

	err := s.Update("vehicles", "G2S-01", fleet.Fields{
		"speed":    28.5,
		"location": fleet.Location{Lat: 22.5626, Lng: 88.3539},
	})
	require.NoError(t, err)

	vehicle := Items[*fleet.Vehicle](s.Get(fleet.CollectionVehicles))[0]
	assert.Equal(t, 28.5, vehicle.Speed)
	assert.Equal(t, fleet.Location{Lat: 22.5626, Lng: 88.3539}, vehicle.Location)
	assert.Equal(t, 38, vehicle.Occupancy)
	assert.Equal(t, 95.0, vehicle.SafetyScore)
	assert.Equal(t, before+1, s.Version(fleet.CollectionVehicles))
}

func TestUpdateKeysAreCaseInsensitive(t *testing.T) {
	s := seededStore(t)

	require.NoError(t, s.Update("vehicles", "G2S-01", fleet.Fields{"safetyScore": 87, "Location": map[string]interface{}{"Lat": 1.5}}))

	vehicle := Items[*fleet.Vehicle](s.Get(fleet.CollectionVehicles))[0]
	assert.Equal(t, 87.0, vehicle.SafetyScore)
	assert.Equal(t, 1.5, vehicle.Location.Lat)
	assert.Equal(t, 88.3639, vehicle.Location.Lng)
}

func TestUpdateFailures(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		id         string
		fields     fleet.Fields
		expected   error
	}{
		{name: "missing entity", collection: "vehicles", id: "G2S-99", fields: fleet.Fields{"speed": 1}, expected: ErrNotFound},
		{name: "unknown collection", collection: "revenue", id: "x", fields: fleet.Fields{"amount": 1}, expected: ErrUnknownCollection},
		{name: "unknown field", collection: "vehicles", id: "G2S-01", fields: fleet.Fields{"colour": "yellow"}, expected: ErrInvalidFields},
		{name: "identifier change", collection: "vehicles", id: "G2S-01", fields: fleet.Fields{"id": "G2S-03"}, expected: ErrInvalidFields},
		{name: "occupancy over capacity", collection: "vehicles", id: "G2S-01", fields: fleet.Fields{"occupancy": 41}, expected: ErrInvalidFields},
		{name: "invalid status", collection: "occupants", id: "s1", fields: fleet.Fields{"status": "sleeping"}, expected: ErrInvalidFields},
		{name: "wrong type", collection: "vehicles", id: "G2S-01", fields: fleet.Fields{"speed": "fast"}, expected: ErrInvalidFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore(t)
			before := s.Get(fleet.CollectionVehicles)

			err := s.Update(tt.collection, tt.id, tt.fields)
			assert.True(t, errors.Is(err, tt.expected), "expected %v, got %v", tt.expected, err)

			after := s.Get(fleet.CollectionVehicles)
			assert.Equal(t, before, after)
		})
	}
}

func TestUpdateBoardTime(t *testing.T) {
	s := seededStore(t)
	boardTime := time.Date(2026, 10, 19, 7, 32, 0, 0, time.UTC)

	require.NoError(t, s.Update("students", "s1", fleet.Fields{
		"status":    fleet.BoardingStatusBoarded,
		"boardTime": boardTime,
	}))

	occupant := Items[*fleet.Occupant](s.Get(fleet.CollectionOccupants))[0]
	require.NotNil(t, occupant.BoardTime)
	assert.True(t, boardTime.Equal(*occupant.BoardTime))
	assert.Equal(t, fleet.BoardingStatusBoarded, occupant.Status)
	assert.Equal(t, "Aarav Sharma", occupant.Name)
	assert.Equal(t, "parent1", occupant.GuardianID)

	require.NoError(t, s.Update("students", "s1", fleet.Fields{"boardTime": nil}))
	occupant = Items[*fleet.Occupant](s.Get(fleet.CollectionOccupants))[0]
	assert.Nil(t, occupant.BoardTime)
}

func TestAppend(t *testing.T) {
	s := New()

	notification := &fleet.Notification{ID: "a1", Kind: fleet.NotificationKindBoarding, Severity: fleet.SeverityInfo, Message: "boarded Bus G2S-01"}
	require.NoError(t, s.Append("alerts", notification))
	assert.ErrorIs(t, s.Append("alerts", notification), ErrDuplicate)
	assert.ErrorIs(t, s.Append("alerts", &fleet.Notification{ID: "a2", Kind: "gossip", Severity: fleet.SeverityInfo}), ErrInvalidFields)
	assert.ErrorIs(t, s.Append("revenue", notification), ErrUnknownCollection)

	assert.Equal(t, 1, s.Get(fleet.CollectionNotifications).Len())
}

func TestLoadRejectsInvalid(t *testing.T) {
	s := New()

	assert.ErrorIs(t, s.Load(fleet.CollectionRoutes, &fleet.Route{ID: "r1"}), ErrInvalidFields)
	assert.ErrorIs(t, s.Load(fleet.CollectionUsers,
		&fleet.User{ID: "u1", Role: fleet.RoleAdmin},
		&fleet.User{ID: "u1", Role: fleet.RoleAdmin},
	), ErrDuplicate)
	assert.ErrorIs(t, s.Load("revenue"), ErrUnknownCollection)
}
