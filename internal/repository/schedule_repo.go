package repository

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
)

const scheduleColumns = `availability_schedule_id, counselor_id, date::text, start_time::text,
	end_time::text, is_available`

type ScheduleRepository struct {
	db DBTX
}

func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) GetByID(ctx context.Context, scheduleID uuid.UUID) (*models.AvailabilitySchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM availability_schedules
		WHERE availability_schedule_id = $1
	`
	return scanSchedule(r.db.QueryRow(ctx, query, scheduleID))
}

// ListAvailable returns open slots on or after the given day. A nil
// counselorID lists slots of every counselor.
func (r *ScheduleRepository) ListAvailable(
	ctx context.Context,
	counselorID *uuid.UUID,
	from time.Time,
) ([]models.AvailabilitySchedule, error) {
	builder := psql.
		Select(scheduleColumns).
		From("availability_schedules").
		Where(squirrel.Eq{"is_available": true}).
		Where(squirrel.GtOrEq{"date": from.Format("2006-01-02")}).
		OrderBy("date ASC", "start_time ASC")
	if counselorID != nil {
		builder = builder.Where(squirrel.Eq{"counselor_id": *counselorID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.AvailabilitySchedule, 0)
	for rows.Next() {
		slot, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

// Reserve flips is_available to false only if it is still true, so two
// concurrent bookings of the same slot cannot both succeed. pgx.ErrNoRows
// means the slot is gone or already taken.
func (r *ScheduleRepository) Reserve(ctx context.Context, scheduleID uuid.UUID) (*models.AvailabilitySchedule, error) {
	query := `
		UPDATE availability_schedules
		SET is_available = FALSE
		WHERE availability_schedule_id = $1 AND is_available = TRUE
		RETURNING ` + scheduleColumns
	return scanSchedule(r.db.QueryRow(ctx, query, scheduleID))
}

func (r *ScheduleRepository) Release(ctx context.Context, scheduleID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE availability_schedules
		SET is_available = TRUE
		WHERE availability_schedule_id = $1
	`, scheduleID)
	return err
}

func scanSchedule(row rowScanner) (*models.AvailabilitySchedule, error) {
	var slot models.AvailabilitySchedule
	err := row.Scan(
		&slot.ID,
		&slot.CounselorID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsAvailable,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
