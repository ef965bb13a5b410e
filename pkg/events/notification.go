package events

import (
	"fmt"

	"github.com/go2school/go2school/pkg/fleet"
)

type NotificationData struct {
	Title   string
	Message string

	Severity  fleet.Severity
	VehicleID string
	Subject   string
}

// GetNotificationData builds the title and message shown on a guardian or driver
// device for a relayed notification.
func GetNotificationData(notification *fleet.Notification) NotificationData {
	notificationData := NotificationData{
		Message:   notification.Message,
		Severity:  notification.Severity,
		VehicleID: notification.VehicleID,
		Subject:   notification.Subject,
	}

	switch notification.Kind {
	case fleet.NotificationKindBoarding:
		notificationData.Title = "Boarded"
	case fleet.NotificationKindDeboarding:
		notificationData.Title = "Got off"
	case fleet.NotificationKindDistress:
		notificationData.Title = fmt.Sprintf("SOS on Bus %s", notification.VehicleID)
	case fleet.NotificationKindSpeed:
		notificationData.Title = "Speed alert"
	case fleet.NotificationKindSafety:
		notificationData.Title = "Safety alert"
	case fleet.NotificationKindAttendance:
		notificationData.Title = "Attendance update"
	default:
		notificationData.Title = "Bus update"
	}

	if notification.VehicleID != "" && notification.Kind != fleet.NotificationKindDistress {
		notificationData.Title = fmt.Sprintf("%s - Bus %s", notificationData.Title, notification.VehicleID)
	}

	return notificationData
}
