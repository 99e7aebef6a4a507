package services

import (
	"fmt"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
)

const (
	appointmentDateLayout = "Jan 2, 2006"
	appointmentTimeLayout = "3:04 PM"
)

func FormatAppointmentDate(ts time.Time) string {
	return ts.Format(appointmentDateLayout)
}

func FormatAppointmentTime(ts time.Time) string {
	return ts.Format(appointmentTimeLayout)
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// renderNotificationContent is the single place notification wording lives.
// otherMembers is only consulted for group notifications.
func renderNotificationContent(
	kind models.NotificationKind,
	date string,
	start string,
	counselor string,
	otherMembers int,
) (string, error) {
	switch kind {
	case models.NotificationCancelled:
		return fmt.Sprintf("Your appointment on %s at %s has been cancelled by %s.", date, start, counselor), nil
	case models.NotificationRescheduled:
		return fmt.Sprintf("Your appointment on %s at %s has been rescheduled by %s.", date, start, counselor), nil
	case models.NotificationFollowUpNeeded:
		return fmt.Sprintf("Your appointment on %s at %s requires follow-up with %s.", date, start, counselor), nil
	case models.NotificationNoShow:
		return fmt.Sprintf("You missed your appointment on %s at %s with %s.", date, start, counselor), nil
	case models.NotificationGroupAdded:
		content := fmt.Sprintf("You have been added to a group appointment on %s by %s.", date, counselor)
		if otherMembers > 0 {
			return content + fmt.Sprintf(" (%d other participants)", otherMembers), nil
		}
		return content + " You are currently the only participant.", nil
	default:
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}
}

func renderBookingConfirmation(date, start, counselor string) string {
	return fmt.Sprintf("Your appointment on %s at %s with %s has been booked.", date, start, counselor)
}
