package services

import "github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"

const AppointmentFilterAll = "all"

const (
	appointmentSectionTitle = "Appointment Updates"
	regularSectionTitle     = "Notifications"
)

// GetSections renders exactly one tab. The appointment filter is either
// "all" or a notification kind and only narrows the appointment tab. An
// empty result is an empty slice, for the caller to show its empty state.
func GetSections(
	activeTab models.FeedTab,
	appointmentFilter string,
	regular []models.RegularNotification,
	appointment []models.AppointmentNotification,
) []models.Section {
	switch activeTab {
	case models.FeedTabAppointment:
		filtered := FilterAppointments(appointment, appointmentFilter)
		if len(filtered) == 0 {
			return []models.Section{}
		}
		return []models.Section{{
			Title:        appointmentSectionTitle,
			Kind:         models.FeedTabAppointment,
			Appointments: filtered,
		}}
	case models.FeedTabRegular:
		if len(regular) == 0 {
			return []models.Section{}
		}
		items := make([]models.RegularNotification, len(regular))
		copy(items, regular)
		return []models.Section{{
			Title:   regularSectionTitle,
			Kind:    models.FeedTabRegular,
			Regular: items,
		}}
	default:
		return []models.Section{}
	}
}

func FilterAppointments(items []models.AppointmentNotification, filter string) []models.AppointmentNotification {
	filtered := make([]models.AppointmentNotification, 0, len(items))
	for _, item := range items {
		if filter == "" || filter == AppointmentFilterAll || string(item.Type) == filter {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func ValidAppointmentFilter(filter string) bool {
	if filter == "" || filter == AppointmentFilterAll {
		return true
	}
	_, ok := models.ParseNotificationKind(filter)
	return ok
}

func ParseFeedTab(raw string) (models.FeedTab, bool) {
	switch models.FeedTab(raw) {
	case models.FeedTabAppointment, models.FeedTabRegular:
		return models.FeedTab(raw), true
	default:
		return "", false
	}
}
