package repository

import (
	"context"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

const appointmentColumns = `appointment_id, user_id, counselor_id, availability_schedule_id, status,
	appointment_type, reason, is_group_eligible, created_at`

type CreateAppointmentInput struct {
	UserID                 uuid.UUID
	CounselorID            uuid.UUID
	AvailabilityScheduleID uuid.UUID
	AppointmentType        string
	Reason                 *string
	IsGroupEligible        bool
}

type AppointmentRepository struct {
	db DBTX
}

func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(
	ctx context.Context,
	input CreateAppointmentInput,
) (*models.Appointment, error) {
	query := `
		INSERT INTO appointments (user_id, counselor_id, availability_schedule_id, status, appointment_type, reason, is_group_eligible)
		VALUES ($1, $2, $3, 'booked', $4, $5, $6)
		RETURNING ` + appointmentColumns

	return scanAppointment(r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.CounselorID,
		input.AvailabilityScheduleID,
		input.AppointmentType,
		input.Reason,
		input.IsGroupEligible,
	))
}

func (r *AppointmentRepository) GetByID(ctx context.Context, appointmentID uuid.UUID) (*models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE appointment_id = $1
	`
	return scanAppointment(r.db.QueryRow(ctx, query, appointmentID))
}

func (r *AppointmentRepository) ListByUserAndStatus(
	ctx context.Context,
	userID uuid.UUID,
	status string,
) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at ASC, appointment_id ASC
	`

	rows, err := r.db.Query(ctx, query, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]models.Appointment, 0)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return appointments, nil
}

func (r *AppointmentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	appointmentID uuid.UUID,
	currentStatus string,
	nextStatus string,
) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $3
		WHERE appointment_id = $1 AND status = $2
		RETURNING ` + appointmentColumns

	return scanAppointment(r.db.QueryRow(ctx, query, appointmentID, currentStatus, nextStatus))
}

// Reschedule moves the appointment to another slot and sets its status, as
// long as nobody changed the status in between.
func (r *AppointmentRepository) Reschedule(
	ctx context.Context,
	appointmentID uuid.UUID,
	currentStatus string,
	scheduleID uuid.UUID,
) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'rescheduled', availability_schedule_id = $3
		WHERE appointment_id = $1 AND status = $2
		RETURNING ` + appointmentColumns

	return scanAppointment(r.db.QueryRow(ctx, query, appointmentID, currentStatus, scheduleID))
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var appointment models.Appointment
	err := row.Scan(
		&appointment.ID,
		&appointment.UserID,
		&appointment.CounselorID,
		&appointment.AvailabilityScheduleID,
		&appointment.Status,
		&appointment.AppointmentType,
		&appointment.Reason,
		&appointment.IsGroupEligible,
		&appointment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}
