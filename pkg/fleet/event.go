package fleet

import "time"

type Event struct {
	Type      EventType
	Timestamp time.Time
	Body      interface{}
}

type EventType string

const (
	EventTypeVehicleTelemetry    EventType = "VehicleTelemetry"
	EventTypeNotificationCreated EventType = "NotificationCreated"
)
