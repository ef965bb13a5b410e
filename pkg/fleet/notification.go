package fleet

import "time"

type NotificationKind string

const (
	NotificationKindBoarding   NotificationKind = "boarding"
	NotificationKindDeboarding NotificationKind = "deboarding"
	NotificationKindDistress   NotificationKind = "distress"
	NotificationKindSpeed      NotificationKind = "speed"
	NotificationKindAttendance NotificationKind = "attendance"
	NotificationKindSafety     NotificationKind = "safety"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is an alert shown to guardians, drivers and admins. The collection is
// append-only.
type Notification struct {
	ID        string           `json:"id" groups:"basic"`
	Kind      NotificationKind `json:"kind" groups:"basic" validate:"oneof=boarding deboarding distress speed attendance safety"`
	Severity  Severity         `json:"severity" groups:"basic" validate:"oneof=info warning critical"`
	Message   string           `json:"message" groups:"basic"`
	Subject   string           `json:"subject,omitempty" groups:"basic"`
	VehicleID string           `json:"vehicleId,omitempty" groups:"basic"`
	Timestamp time.Time        `json:"timestamp" groups:"basic"`
}

func (n *Notification) EntityID() string {
	return n.ID
}

func (n *Notification) Clone() Entity {
	cloned := *n
	return &cloned
}
