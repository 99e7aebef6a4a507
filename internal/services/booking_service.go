package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const defaultAppointmentType = "individual"

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type slotReader interface {
	GetByID(ctx context.Context, scheduleID uuid.UUID) (*models.AvailabilitySchedule, error)
	ListAvailable(ctx context.Context, counselorID *uuid.UUID, from time.Time) ([]models.AvailabilitySchedule, error)
}

type groupMembershipWriter interface {
	Add(ctx context.Context, appointmentID uuid.UUID, userID uuid.UUID) (*models.GroupAppointmentMember, error)
}

type BookingService struct {
	db           txBeginner
	schedules    slotReader
	appointments appointmentReader
	groups       groupMembershipWriter
	users        userReader
	timeout      time.Duration
	now          func() time.Time
}

func NewBookingService(
	db txBeginner,
	schedules slotReader,
	appointments appointmentReader,
	groups groupMembershipWriter,
	users userReader,
	timeout time.Duration,
) *BookingService {
	return &BookingService{
		db:           db,
		schedules:    schedules,
		appointments: appointments,
		groups:       groups,
		users:        users,
		timeout:      timeout,
		now:          time.Now,
	}
}

type BookSlotInput struct {
	AppointmentType string
	Reason          *string
	IsGroupEligible bool
}

type UpdateAppointmentStatusInput struct {
	Status     string
	ScheduleID *uuid.UUID
}

func (s *BookingService) ListSlots(ctx context.Context, counselorID *uuid.UUID) ([]models.AvailabilitySchedule, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.schedules.ListAvailable(ctx, counselorID, s.now().UTC())
}

// BookSlot takes the slot for the user. Losing the race for a slot returns
// ErrSlotUnavailable and leaves nothing written; it is not retried.
func (s *BookingService) BookSlot(
	ctx context.Context,
	userID uuid.UUID,
	slotID uuid.UUID,
	input BookSlotInput,
) (*models.Appointment, error) {
	if input.Reason != nil && strings.TrimSpace(*input.Reason) == "" {
		return nil, ErrInvalidInput
	}
	appointmentType := strings.TrimSpace(input.AppointmentType)
	if appointmentType == "" {
		appointmentType = defaultAppointmentType
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	slot, err := s.getSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.CounselorID == userID {
		return nil, ErrInvalidInput
	}
	if !slot.IsAvailable {
		return nil, ErrSlotUnavailable
	}
	startsAt, err := slot.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", slot.ID, err)
	}
	if startsAt.Before(s.now().UTC()) {
		return nil, ErrInvalidInput
	}

	counselor, err := s.users.GetByID(ctx, slot.CounselorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txScheduleRepo := repository.NewScheduleRepository(tx)
	txAppointmentRepo := repository.NewAppointmentRepository(tx)
	txNotificationRepo := repository.NewNotificationRepository(tx)

	if _, err := txScheduleRepo.Reserve(ctx, slotID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	appointment, err := txAppointmentRepo.Create(ctx, repository.CreateAppointmentInput{
		UserID:                 userID,
		CounselorID:            slot.CounselorID,
		AvailabilityScheduleID: slot.ID,
		AppointmentType:        appointmentType,
		Reason:                 input.Reason,
		IsGroupEligible:        input.IsGroupEligible,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	confirmation := renderBookingConfirmation(
		FormatAppointmentDate(startsAt),
		FormatAppointmentTime(startsAt),
		counselor.Name,
	)
	if _, err := txNotificationRepo.Create(ctx, userID, confirmation); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	log.Printf("booking: user %s booked slot %s as appointment %s", userID, slot.ID, appointment.ID)
	return appointment, nil
}

// UpdateAppointmentStatus is the counselor side of an appointment. Cancelling
// frees the slot; rescheduling with a ScheduleID moves the appointment onto
// that slot and frees the old one.
func (s *BookingService) UpdateAppointmentStatus(
	ctx context.Context,
	counselorID uuid.UUID,
	appointmentID uuid.UUID,
	input UpdateAppointmentStatusInput,
) (*models.Appointment, error) {
	nextStatus, err := normalizeAppointmentStatus(input.Status)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.CounselorID != counselorID {
		return nil, ErrForbidden
	}
	if err := validateAppointmentTransition(appointment.Status, nextStatus); err != nil {
		return nil, err
	}

	moveTo := uuid.Nil
	if nextStatus == models.AppointmentStatusRescheduled && input.ScheduleID != nil &&
		*input.ScheduleID != appointment.AvailabilityScheduleID {
		slot, err := s.getSlot(ctx, *input.ScheduleID)
		if err != nil {
			return nil, err
		}
		if slot.CounselorID != counselorID {
			return nil, ErrForbidden
		}
		moveTo = slot.ID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txScheduleRepo := repository.NewScheduleRepository(tx)
	txAppointmentRepo := repository.NewAppointmentRepository(tx)

	var updated *models.Appointment
	if moveTo != uuid.Nil {
		if _, err := txScheduleRepo.Reserve(ctx, moveTo); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrSlotUnavailable
			}
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		if err := txScheduleRepo.Release(ctx, appointment.AvailabilityScheduleID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		updated, err = txAppointmentRepo.Reschedule(ctx, appointment.ID, appointment.Status, moveTo)
	} else {
		updated, err = txAppointmentRepo.UpdateStatusIfCurrent(ctx, appointment.ID, appointment.Status, nextStatus)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	if nextStatus == models.AppointmentStatusCancelled {
		if err := txScheduleRepo.Release(ctx, appointment.AvailabilityScheduleID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return updated, nil
}

func (s *BookingService) AddGroupMember(
	ctx context.Context,
	counselorID uuid.UUID,
	appointmentID uuid.UUID,
	userID uuid.UUID,
) (*models.GroupAppointmentMember, error) {
	if userID == uuid.Nil || userID == counselorID {
		return nil, ErrInvalidInput
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.CounselorID != counselorID {
		return nil, ErrForbidden
	}
	if !appointment.IsGroupEligible {
		return nil, ErrInvalidInput
	}
	if isTerminalAppointmentStatus(appointment.Status) {
		return nil, ErrInvalidStateTransition
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	member, err := s.groups.Add(ctx, appointmentID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return member, nil
}

func (s *BookingService) getSlot(ctx context.Context, slotID uuid.UUID) (*models.AvailabilitySchedule, error) {
	slot, err := s.schedules.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return slot, nil
}

func (s *BookingService) getAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return appointment, nil
}

func normalizeAppointmentStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "cancel", "cancelled", "canceled":
		return models.AppointmentStatusCancelled, nil
	case "reschedule", "rescheduled":
		return models.AppointmentStatusRescheduled, nil
	case "follow_up", "follow-up", "follow_up_needed":
		return models.AppointmentStatusFollowUpNeeded, nil
	case "no_show", "no-show", "noshow":
		return models.AppointmentStatusNoShow, nil
	case "complete", "completed":
		return models.AppointmentStatusCompleted, nil
	default:
		return "", ErrInvalidStatus
	}
}

func isTerminalAppointmentStatus(status string) bool {
	switch status {
	case models.AppointmentStatusCancelled, models.AppointmentStatusCompleted, models.AppointmentStatusNoShow:
		return true
	default:
		return false
	}
}

func validateAppointmentTransition(currentStatus string, nextStatus string) error {
	if isTerminalAppointmentStatus(currentStatus) {
		return ErrInvalidStateTransition
	}
	if currentStatus == nextStatus && nextStatus != models.AppointmentStatusRescheduled {
		return ErrInvalidStateTransition
	}
	return nil
}
