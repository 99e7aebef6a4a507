package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

type appointmentReader interface {
	GetByID(ctx context.Context, appointmentID uuid.UUID) (*models.Appointment, error)
	ListByUserAndStatus(ctx context.Context, userID uuid.UUID, status string) ([]models.Appointment, error)
}

type scheduleReader interface {
	GetByID(ctx context.Context, scheduleID uuid.UUID) (*models.AvailabilitySchedule, error)
}

type groupMembershipReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.GroupAppointmentMember, error)
	ListMembers(ctx context.Context, appointmentID uuid.UUID) ([]models.GroupAppointmentMember, error)
}

type notificationStore interface {
	ListSent(ctx context.Context, userID uuid.UUID) ([]models.RegularNotification, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) (*models.RegularNotification, error)
}

type NotificationService struct {
	appointments  appointmentReader
	schedules     scheduleReader
	users         userReader
	groups        groupMembershipReader
	notifications notificationStore
	timeout       time.Duration
}

func NewNotificationService(
	appointments appointmentReader,
	schedules scheduleReader,
	users userReader,
	groups groupMembershipReader,
	notifications notificationStore,
	timeout time.Duration,
) *NotificationService {
	return &NotificationService{
		appointments:  appointments,
		schedules:     schedules,
		users:         users,
		groups:        groups,
		notifications: notifications,
		timeout:       timeout,
	}
}

// Synthesize builds the appointment notifications of a user from the
// appointment rows in a notifiable status and the user's group memberships.
// It never fails: a category whose query fails is left out and an
// appointment whose counselor or slot cannot be read is skipped, both with a
// log line. The result is ordered by when each appointment takes place,
// latest first.
func (s *NotificationService) Synthesize(ctx context.Context, userID uuid.UUID) []models.AppointmentNotification {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	perKind := make([][]models.AppointmentNotification, len(models.NotificationKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range models.NotificationKinds {
		i, kind := i, kind
		g.Go(func() error {
			perKind[i] = s.synthesizeKind(gctx, userID, kind)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]models.AppointmentNotification, 0)
	for _, items := range perKind {
		merged = append(merged, items...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})
	return merged
}

func (s *NotificationService) synthesizeKind(
	ctx context.Context,
	userID uuid.UUID,
	kind models.NotificationKind,
) []models.AppointmentNotification {
	if kind == models.NotificationGroupAdded {
		return s.synthesizeGroup(ctx, userID)
	}

	status, ok := kind.AppointmentStatus()
	if !ok {
		log.Printf("notifications: no appointment status for kind %q", kind)
		return nil
	}

	appointments, err := s.appointments.ListByUserAndStatus(ctx, userID, status)
	if err != nil {
		log.Printf("notifications: %v", fmt.Errorf("%w: %s appointments for %s: %v", ErrQueryFailure, status, userID, err))
		return nil
	}

	items := make([]models.AppointmentNotification, 0, len(appointments))
	for _, appointment := range appointments {
		item, err := s.buildNotification(ctx, kind, fmt.Sprintf("%s-%s", kind, appointment.ID), appointment, 0, nil)
		if err != nil {
			log.Printf("notifications: skipping appointment %s: %v", appointment.ID, err)
			continue
		}
		items = append(items, *item)
	}
	return items
}

func (s *NotificationService) synthesizeGroup(ctx context.Context, userID uuid.UUID) []models.AppointmentNotification {
	memberships, err := s.groups.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("notifications: %v", fmt.Errorf("%w: group memberships for %s: %v", ErrQueryFailure, userID, err))
		return nil
	}

	items := make([]models.AppointmentNotification, 0, len(memberships))
	for _, membership := range memberships {
		appointment, err := s.appointments.GetByID(ctx, membership.AppointmentID)
		if err != nil {
			log.Printf("notifications: skipping group membership %s: %v", membership.ID,
				fmt.Errorf("%w: appointment %s: %v", ErrJoinFailure, membership.AppointmentID, err))
			continue
		}

		members, err := s.groups.ListMembers(ctx, membership.AppointmentID)
		if err != nil {
			log.Printf("notifications: skipping group membership %s: %v", membership.ID,
				fmt.Errorf("%w: members of %s: %v", ErrJoinFailure, membership.AppointmentID, err))
			continue
		}
		others := otherMemberNames(members, userID)

		item, err := s.buildNotification(
			ctx,
			models.NotificationGroupAdded,
			fmt.Sprintf("%s-%s", models.NotificationGroupAdded, membership.ID),
			*appointment,
			len(others),
			others,
		)
		if err != nil {
			log.Printf("notifications: skipping group membership %s: %v", membership.ID, err)
			continue
		}
		items = append(items, *item)
	}
	return items
}

func (s *NotificationService) buildNotification(
	ctx context.Context,
	kind models.NotificationKind,
	id string,
	appointment models.Appointment,
	otherMembers int,
	memberNames []string,
) (*models.AppointmentNotification, error) {
	counselor, err := s.users.GetByID(ctx, appointment.CounselorID)
	if err != nil {
		return nil, fmt.Errorf("%w: counselor %s: %v", ErrJoinFailure, appointment.CounselorID, err)
	}

	slot, err := s.schedules.GetByID(ctx, appointment.AvailabilityScheduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: slot %s: %v", ErrJoinFailure, appointment.AvailabilityScheduleID, err)
	}
	startsAt, err := slot.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("%w: slot %s: %v", ErrJoinFailure, slot.ID, err)
	}

	date := FormatAppointmentDate(startsAt)
	start := FormatAppointmentTime(startsAt)
	content, err := renderNotificationContent(kind, date, start, counselor.Name, otherMembers)
	if err != nil {
		return nil, err
	}

	return &models.AppointmentNotification{
		ID:              id,
		Type:            kind,
		Content:         content,
		Date:            startsAt,
		AppointmentID:   appointment.ID,
		AppointmentDate: date,
		AppointmentTime: start,
		CounselorName:   counselor.Name,
		GroupMembers:    memberNames,
	}, nil
}

// otherMemberNames lists everyone in the group except userID. Members whose
// name could not be joined still count, as "Participant".
func otherMemberNames(members []models.GroupAppointmentMember, userID uuid.UUID) []string {
	seen := make(map[uuid.UUID]struct{}, len(members))
	names := make([]string, 0, len(members))
	for _, member := range members {
		if member.UserID == userID {
			continue
		}
		if _, dup := seen[member.UserID]; dup {
			continue
		}
		seen[member.UserID] = struct{}{}
		name := member.UserName
		if name == "" {
			name = "Participant"
		}
		names = append(names, name)
	}
	return names
}

// ListRegular returns the user's sent notifications, newest first. Failures
// are logged and produce an empty list.
func (s *NotificationService) ListRegular(ctx context.Context, userID uuid.UUID) []models.RegularNotification {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	notifications, err := s.notifications.ListSent(ctx, userID)
	if err != nil {
		log.Printf("notifications: %v", fmt.Errorf("%w: regular notifications for %s: %v", ErrQueryFailure, userID, err))
		return []models.RegularNotification{}
	}

	sent := make([]models.RegularNotification, 0, len(notifications))
	for _, notification := range notifications {
		if notification.Status == models.NotificationStatusSent {
			sent = append(sent, notification)
		}
	}
	sort.SliceStable(sent, func(i, j int) bool {
		return sent[i].SentAt.After(sent[j].SentAt)
	})
	return sent
}

func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, notificationID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.notifications.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return nil
}

// Feed fetches both notification sources and renders the sections of the
// requested tab.
func (s *NotificationService) Feed(
	ctx context.Context,
	userID uuid.UUID,
	tab models.FeedTab,
	appointmentFilter string,
) []models.Section {
	regular := s.ListRegular(ctx, userID)
	appointments := s.Synthesize(ctx, userID)
	return GetSections(tab, appointmentFilter, regular, appointments)
}
