package repository

import (
	"context"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

type GroupAppointmentRepository struct {
	db DBTX
}

func NewGroupAppointmentRepository(db DBTX) *GroupAppointmentRepository {
	return &GroupAppointmentRepository{db: db}
}

func (r *GroupAppointmentRepository) Add(
	ctx context.Context,
	appointmentID uuid.UUID,
	userID uuid.UUID,
) (*models.GroupAppointmentMember, error) {
	query := `
		INSERT INTO groupappointments (appointment_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (appointment_id, user_id)
		DO UPDATE SET appointment_id = groupappointments.appointment_id
		RETURNING g_appointment_id, appointment_id, user_id, ''
	`
	return scanGroupMember(r.db.QueryRow(ctx, query, appointmentID, userID))
}

func (r *GroupAppointmentRepository) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]models.GroupAppointmentMember, error) {
	return r.list(ctx, `
		SELECT g.g_appointment_id, g.appointment_id, g.user_id, COALESCE(u.name, '')
		FROM groupappointments g
		LEFT JOIN users u ON u.user_id = g.user_id
		WHERE g.user_id = $1
		ORDER BY g.g_appointment_id ASC
	`, userID)
}

// ListMembers returns every membership row of the appointment, including the
// caller's own.
func (r *GroupAppointmentRepository) ListMembers(
	ctx context.Context,
	appointmentID uuid.UUID,
) ([]models.GroupAppointmentMember, error) {
	return r.list(ctx, `
		SELECT g.g_appointment_id, g.appointment_id, g.user_id, COALESCE(u.name, '')
		FROM groupappointments g
		LEFT JOIN users u ON u.user_id = g.user_id
		WHERE g.appointment_id = $1
		ORDER BY u.name ASC NULLS LAST, g.g_appointment_id ASC
	`, appointmentID)
}

func (r *GroupAppointmentRepository) list(
	ctx context.Context,
	query string,
	args ...any,
) ([]models.GroupAppointmentMember, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.GroupAppointmentMember, 0)
	for rows.Next() {
		member, err := scanGroupMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return members, nil
}

func scanGroupMember(row rowScanner) (*models.GroupAppointmentMember, error) {
	var member models.GroupAppointmentMember
	if err := row.Scan(&member.ID, &member.AppointmentID, &member.UserID, &member.UserName); err != nil {
		return nil, err
	}
	return &member, nil
}
