package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stubConversationStore struct {
	conversations []models.Conversation
	listErr       error
	createErr     error
	created       []models.Conversation
}

func (s *stubConversationStore) GetByID(_ context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	for _, conversation := range s.conversations {
		if conversation.ID == conversationID {
			found := conversation
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubConversationStore) ListBetween(_ context.Context, firstID uuid.UUID, secondID uuid.UUID) ([]models.Conversation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	linked := make([]models.Conversation, 0)
	for _, conversation := range s.conversations {
		if (conversation.CreatedBy == firstID && conversation.UserID == secondID) ||
			(conversation.CreatedBy == secondID && conversation.UserID == firstID) {
			linked = append(linked, conversation)
		}
	}
	return linked, nil
}

func (s *stubConversationStore) ListForParticipant(_ context.Context, participantID uuid.UUID) ([]models.Conversation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	rows := make([]models.Conversation, 0)
	for _, conversation := range s.conversations {
		if conversation.CreatedBy == participantID || conversation.UserID == participantID {
			rows = append(rows, conversation)
		}
	}
	return rows, nil
}

func (s *stubConversationStore) Create(_ context.Context, createdBy uuid.UUID, userID uuid.UUID, conversationType string) (*models.Conversation, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	conversation := models.Conversation{
		ID:               uuid.New(),
		CreatedBy:        createdBy,
		UserID:           userID,
		ConversationType: conversationType,
		CreatedAt:        time.Now().UTC(),
	}
	s.conversations = append(s.conversations, conversation)
	s.created = append(s.created, conversation)
	return &conversation, nil
}

type stubMessageStore struct {
	mu          sync.Mutex
	messages    []models.Message
	listErr     error
	createErr   error
	created     []models.Message
	markedIDs   []uuid.UUID
	markedBy    uuid.UUID
	listedCalls int
}

func (s *stubMessageStore) Create(_ context.Context, conversationID uuid.UUID, senderID uuid.UUID, content string, sentAt time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	message := models.Message{
		ID:             uuid.New(),
		SenderID:       senderID,
		ConversationID: conversationID,
		Content:        content,
		SentAt:         sentAt,
	}
	s.messages = append(s.messages, message)
	s.created = append(s.created, message)
	return &message, nil
}

func (s *stubMessageStore) ListByConversations(_ context.Context, conversationIDs []uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listedCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	wanted := make(map[uuid.UUID]struct{}, len(conversationIDs))
	for _, id := range conversationIDs {
		wanted[id] = struct{}{}
	}
	matched := make([]models.Message, 0)
	for _, message := range s.messages {
		if _, ok := wanted[message.ConversationID]; ok {
			matched = append(matched, message)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SentAt.Before(matched[j].SentAt)
	})
	return matched, nil
}

func (s *stubMessageStore) MarkRead(_ context.Context, conversationIDs []uuid.UUID, readerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markedIDs = conversationIDs
	s.markedBy = readerID
	return nil
}

type stubUserReader struct {
	users  map[uuid.UUID]models.User
	errFor map[uuid.UUID]error
}

func (s *stubUserReader) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if err, ok := s.errFor[id]; ok {
		return nil, err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

type stubAppointmentReader struct {
	byStatus    map[string][]models.Appointment
	byID        map[uuid.UUID]models.Appointment
	statusErr   map[string]error
	statusCalls map[string]int
	mu          sync.Mutex
}

func (s *stubAppointmentReader) GetByID(_ context.Context, appointmentID uuid.UUID) (*models.Appointment, error) {
	appointment, ok := s.byID[appointmentID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &appointment, nil
}

func (s *stubAppointmentReader) ListByUserAndStatus(_ context.Context, userID uuid.UUID, status string) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusCalls == nil {
		s.statusCalls = make(map[string]int)
	}
	s.statusCalls[status]++
	if err, ok := s.statusErr[status]; ok {
		return nil, err
	}
	rows := make([]models.Appointment, 0)
	for _, appointment := range s.byStatus[status] {
		if appointment.UserID == userID {
			rows = append(rows, appointment)
		}
	}
	return rows, nil
}

type stubScheduleReader struct {
	slots map[uuid.UUID]models.AvailabilitySchedule
}

func (s *stubScheduleReader) GetByID(_ context.Context, scheduleID uuid.UUID) (*models.AvailabilitySchedule, error) {
	slot, ok := s.slots[scheduleID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &slot, nil
}

func (s *stubScheduleReader) ListAvailable(_ context.Context, counselorID *uuid.UUID, _ time.Time) ([]models.AvailabilitySchedule, error) {
	slots := make([]models.AvailabilitySchedule, 0)
	for _, slot := range s.slots {
		if slot.IsAvailable && (counselorID == nil || slot.CounselorID == *counselorID) {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

type stubGroupReader struct {
	byUser     map[uuid.UUID][]models.GroupAppointmentMember
	members    map[uuid.UUID][]models.GroupAppointmentMember
	listErr    error
	membersErr map[uuid.UUID]error
	added      []models.GroupAppointmentMember
}

func (s *stubGroupReader) ListByUser(_ context.Context, userID uuid.UUID) ([]models.GroupAppointmentMember, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.byUser[userID], nil
}

func (s *stubGroupReader) ListMembers(_ context.Context, appointmentID uuid.UUID) ([]models.GroupAppointmentMember, error) {
	if err, ok := s.membersErr[appointmentID]; ok {
		return nil, err
	}
	return s.members[appointmentID], nil
}

func (s *stubGroupReader) Add(_ context.Context, appointmentID uuid.UUID, userID uuid.UUID) (*models.GroupAppointmentMember, error) {
	member := models.GroupAppointmentMember{ID: uuid.New(), AppointmentID: appointmentID, UserID: userID}
	s.added = append(s.added, member)
	return &member, nil
}

type stubNotificationStore struct {
	notifications []models.RegularNotification
	listErr       error
	markErr       error
	lastMarked    uuid.UUID
}

func (s *stubNotificationStore) ListSent(_ context.Context, userID uuid.UUID) ([]models.RegularNotification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	rows := make([]models.RegularNotification, 0)
	for _, notification := range s.notifications {
		if notification.UserID == userID {
			rows = append(rows, notification)
		}
	}
	return rows, nil
}

func (s *stubNotificationStore) MarkRead(_ context.Context, notificationID uuid.UUID, userID uuid.UUID) (*models.RegularNotification, error) {
	if s.markErr != nil {
		return nil, s.markErr
	}
	s.lastMarked = notificationID
	return &models.RegularNotification{ID: notificationID, UserID: userID, Status: "read"}, nil
}

func slot(counselorID uuid.UUID, date string, start string) models.AvailabilitySchedule {
	return models.AvailabilitySchedule{
		ID:          uuid.New(),
		CounselorID: counselorID,
		Date:        date,
		StartTime:   start,
		EndTime:     start,
		IsAvailable: false,
	}
}
