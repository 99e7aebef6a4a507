package models

import (
	"time"

	"github.com/google/uuid"
)

const NotificationStatusSent = "sent"

type RegularNotification struct {
	ID      uuid.UUID `json:"notification_id"`
	UserID  uuid.UUID `json:"user_id"`
	Content string    `json:"notification_content"`
	Status  string    `json:"status"`
	SentAt  time.Time `json:"sent_at"`
}

type NotificationKind string

const (
	NotificationCancelled      NotificationKind = "cancelled"
	NotificationRescheduled    NotificationKind = "rescheduled"
	NotificationFollowUpNeeded NotificationKind = "follow_up_needed"
	NotificationNoShow         NotificationKind = "no_show"
	NotificationGroupAdded     NotificationKind = "group_added"
)

// NotificationKinds lists every kind in feed merge order.
var NotificationKinds = []NotificationKind{
	NotificationCancelled,
	NotificationRescheduled,
	NotificationFollowUpNeeded,
	NotificationNoShow,
	NotificationGroupAdded,
}

func ParseNotificationKind(raw string) (NotificationKind, bool) {
	for _, kind := range NotificationKinds {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

// AppointmentStatus is the appointment status a kind is derived from. Group
// notifications come from membership rows and have no status.
func (k NotificationKind) AppointmentStatus() (string, bool) {
	switch k {
	case NotificationCancelled:
		return AppointmentStatusCancelled, true
	case NotificationRescheduled:
		return AppointmentStatusRescheduled, true
	case NotificationFollowUpNeeded:
		return AppointmentStatusFollowUpNeeded, true
	case NotificationNoShow:
		return AppointmentStatusNoShow, true
	default:
		return "", false
	}
}

// AppointmentNotification is derived on every fetch and never stored. Date is
// when the appointment takes place and is the only sort key.
type AppointmentNotification struct {
	ID              string           `json:"id"`
	Type            NotificationKind `json:"type"`
	Content         string           `json:"content"`
	Date            time.Time        `json:"date"`
	AppointmentID   uuid.UUID        `json:"appointment_id"`
	AppointmentDate string           `json:"appointmentDate"`
	AppointmentTime string           `json:"appointmentTime"`
	CounselorName   string           `json:"counselorName"`
	GroupMembers    []string         `json:"groupMembers,omitempty"`
}

type FeedTab string

const (
	FeedTabAppointment FeedTab = "appointment"
	FeedTabRegular     FeedTab = "regular"
)

// Section is one rendered block of the notification screen. Exactly one of
// the two slices is populated, matching Kind.
type Section struct {
	Title        string                    `json:"title"`
	Kind         FeedTab                   `json:"kind"`
	Appointments []AppointmentNotification `json:"appointments,omitempty"`
	Regular      []RegularNotification     `json:"regular,omitempty"`
}
