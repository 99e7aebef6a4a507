package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentStatusBooked         = "booked"
	AppointmentStatusCancelled      = "cancelled"
	AppointmentStatusRescheduled    = "rescheduled"
	AppointmentStatusFollowUpNeeded = "follow_up_needed"
	AppointmentStatusNoShow         = "no_show"
	AppointmentStatusCompleted      = "completed"
)

type Appointment struct {
	ID                     uuid.UUID `json:"appointment_id"`
	UserID                 uuid.UUID `json:"user_id"`
	CounselorID            uuid.UUID `json:"counselor_id"`
	AvailabilityScheduleID uuid.UUID `json:"availability_schedule_id"`
	Status                 string    `json:"status"`
	AppointmentType        string    `json:"appointment_type"`
	Reason                 *string   `json:"reason"`
	IsGroupEligible        bool      `json:"is_group_eligible"`
	CreatedAt              time.Time `json:"created_at"`
}

// AvailabilitySchedule is one bookable slot. Date and times are kept in the
// textual form Postgres renders them in (2006-01-02, 15:04:05).
type AvailabilitySchedule struct {
	ID          uuid.UUID `json:"availability_schedule_id"`
	CounselorID uuid.UUID `json:"counselor_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
}

// StartsAt parses the slot's date and start time as a wall-clock instant.
func (s AvailabilitySchedule) StartsAt() (time.Time, error) {
	return parseSlotTime(s.Date, s.StartTime)
}

func parseSlotTime(date, clock string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if ts, err := time.Parse(layout, date+"T"+clock); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid slot time %q %q", date, clock)
}

type GroupAppointmentMember struct {
	ID            uuid.UUID `json:"g_appointment_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	UserID        uuid.UUID `json:"user_id"`
	UserName      string    `json:"user_name,omitempty"`
}
